package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestKeys generates a fresh subscription key pair plus its encoded
// configuration form.
func newTestKeys(t *testing.T) (*Keys, *ecdh.PublicKey, []byte) {
	t.Helper()

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	authSecret := make([]byte, 16)
	_, err = rand.Read(authSecret)
	require.NoError(t, err)

	keys, err := NewKeys(
		base64.RawURLEncoding.EncodeToString(priv.Bytes()),
		base64.RawURLEncoding.EncodeToString(authSecret),
	)
	require.NoError(t, err)

	return keys, priv.PublicKey(), authSecret
}

func sealForTest(t *testing.T, recipient *ecdh.PublicKey, authSecret, plaintext []byte) (salt, senderPub, body []byte) {
	t.Helper()

	sender, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	salt = make([]byte, 16)
	_, err = rand.Read(salt)
	require.NoError(t, err)

	body, err = Seal(recipient, authSecret, salt, sender, plaintext)
	require.NoError(t, err)
	return salt, sender.PublicKey().Bytes(), body
}

func TestSealUnsealRoundTrip(t *testing.T) {
	keys, pub, auth := newTestKeys(t)

	plaintext := []byte(`{"title":"hello"}`)
	salt, dh, body := sealForTest(t, pub, auth, plaintext)

	got, err := keys.Unseal(salt, dh, body)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestUnsealRejectsTamperedCiphertext(t *testing.T) {
	keys, pub, auth := newTestKeys(t)

	salt, dh, body := sealForTest(t, pub, auth, []byte("payload"))
	body[0] ^= 0xff

	_, err := keys.Unseal(salt, dh, body)
	assert.Error(t, err)
}

func TestUnsealRejectsWrongRecipient(t *testing.T) {
	keys, _, _ := newTestKeys(t)
	_, otherPub, otherAuth := newTestKeys(t)

	salt, dh, body := sealForTest(t, otherPub, otherAuth, []byte("payload"))

	_, err := keys.Unseal(salt, dh, body)
	assert.Error(t, err)
}

func TestUnsealRejectsBadSalt(t *testing.T) {
	keys, pub, auth := newTestKeys(t)

	_, dh, body := sealForTest(t, pub, auth, []byte("payload"))
	_, err := keys.Unseal([]byte("short"), dh, body)
	assert.Error(t, err)
}

func TestNewKeysValidation(t *testing.T) {
	_, err := NewKeys("not-base64!!", "AAAAAAAAAAAAAAAAAAAAAA")
	assert.Error(t, err)

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	privB64 := base64.RawURLEncoding.EncodeToString(priv.Bytes())

	// Auth secret of the wrong length.
	_, err = NewKeys(privB64, base64.RawURLEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestStripPadding(t *testing.T) {
	got, err := stripPadding([]byte{'h', 'i', 0x02, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	_, err = stripPadding([]byte{'h', 'i'})
	assert.Error(t, err)

	_, err = stripPadding([]byte{0x00, 0x00})
	assert.Error(t, err)
}
