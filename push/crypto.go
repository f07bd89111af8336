// Package push receives, authenticates and decrypts push messages and fans
// them out to the registered feature and observers. The transport is a Redis
// pub/sub channel; message payloads follow the web-push aes128gcm shape.
package push

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// authSecretLen is the length of the subscription auth secret.
	authSecretLen = 16

	// saltLen is the length of the per-message salt.
	saltLen = 16

	keyInfoPrefix = "WebPush: info\x00"
	cekInfo       = "Content-Encoding: aes128gcm\x00"
	nonceInfo     = "Content-Encoding: nonce\x00"
	cekLen        = 16
	nonceLen      = 12
)

// Keys holds the subscription-side key material needed to unseal payloads.
type Keys struct {
	// private is the subscription's ECDH P-256 private key.
	private *ecdh.PrivateKey
	// authSecret is the 16-byte subscription auth secret.
	authSecret []byte
}

// NewKeys builds Keys from the base64url-encoded private scalar and auth
// secret, as they appear in configuration.
func NewKeys(privateB64, authSecretB64 string) (*Keys, error) {
	rawPriv, err := base64.RawURLEncoding.DecodeString(privateB64)
	if err != nil {
		return nil, fmt.Errorf("malformed subscription key: %w", err)
	}
	priv, err := ecdh.P256().NewPrivateKey(rawPriv)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription key: %w", err)
	}

	auth, err := base64.RawURLEncoding.DecodeString(authSecretB64)
	if err != nil {
		return nil, fmt.Errorf("malformed auth secret: %w", err)
	}
	if len(auth) != authSecretLen {
		return nil, fmt.Errorf("auth secret must be %d bytes, got %d", authSecretLen, len(auth))
	}

	return &Keys{private: priv, authSecret: auth}, nil
}

// Unseal decrypts an aes128gcm payload. salt is the per-message salt and
// senderPub the sender's ephemeral P-256 public key, both from the message
// envelope.
func (k *Keys) Unseal(salt, senderPub, ciphertext []byte) ([]byte, error) {
	if len(salt) != saltLen {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", saltLen, len(salt))
	}

	pub, err := ecdh.P256().NewPublicKey(senderPub)
	if err != nil {
		return nil, fmt.Errorf("invalid sender public key: %w", err)
	}
	sharedSecret, err := k.private.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ECDH agreement failed: %w", err)
	}

	// IKM = HKDF(auth_secret, shared, "WebPush: info" || 0x00 || ua_pub || as_pub)
	keyInfo := make([]byte, 0, len(keyInfoPrefix)+2*65)
	keyInfo = append(keyInfo, keyInfoPrefix...)
	keyInfo = append(keyInfo, k.private.PublicKey().Bytes()...)
	keyInfo = append(keyInfo, senderPub...)

	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, k.authSecret, keyInfo), ikm); err != nil {
		return nil, fmt.Errorf("HKDF ikm derivation failed: %w", err)
	}

	cek := make([]byte, cekLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte(cekInfo)), cek); err != nil {
		return nil, fmt.Errorf("HKDF cek derivation failed: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte(nonceInfo)), nonce); err != nil {
		return nil, fmt.Errorf("HKDF nonce derivation failed: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("payload decryption failed: %w", err)
	}

	return stripPadding(plain)
}

// Seal is the sender side of Unseal: it encrypts plaintext for the
// subscription identified by recipientPub and authSecret, using the given
// per-message salt and ephemeral sender key. Used by tooling and tests; the
// production sender lives on the push service, not here.
func Seal(recipientPub *ecdh.PublicKey, authSecret, salt []byte, sender *ecdh.PrivateKey, plaintext []byte) ([]byte, error) {
	sharedSecret, err := sender.ECDH(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH agreement failed: %w", err)
	}

	keyInfo := make([]byte, 0, len(keyInfoPrefix)+2*65)
	keyInfo = append(keyInfo, keyInfoPrefix...)
	keyInfo = append(keyInfo, recipientPub.Bytes()...)
	keyInfo = append(keyInfo, sender.PublicKey().Bytes()...)

	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, authSecret, keyInfo), ikm); err != nil {
		return nil, fmt.Errorf("HKDF ikm derivation failed: %w", err)
	}

	cek := make([]byte, cekLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte(cekInfo)), cek); err != nil {
		return nil, fmt.Errorf("HKDF cek derivation failed: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte(nonceInfo)), nonce); err != nil {
		return nil, fmt.Errorf("HKDF nonce derivation failed: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	record := make([]byte, 0, len(plaintext)+1)
	record = append(record, plaintext...)
	record = append(record, 0x02)

	return gcm.Seal(nil, nonce, record, nil), nil
}

// stripPadding removes the aes128gcm record padding: plaintext, a 0x02
// delimiter for the final record, then zero padding.
func stripPadding(record []byte) ([]byte, error) {
	i := len(record) - 1
	for i >= 0 && record[i] == 0x00 {
		i--
	}
	if i < 0 || record[i] != 0x02 {
		return nil, fmt.Errorf("malformed record padding")
	}
	return record[:i], nil
}
