package push

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"browserd/metrics"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Envelope is the wire shape of one push message as published on the
// transport channel: a delivery scope, a VAPID-style JWT authorizing the
// sender, and the aes128gcm-sealed body.
type Envelope struct {
	Scope string `json:"scope"`
	Token string `json:"token"`
	// Salt and DH are the per-message salt and ephemeral sender public key,
	// base64url without padding.
	Salt string `json:"salt"`
	DH   string `json:"dh"`
	Body string `json:"body"`
}

// Message is one authenticated, decrypted push message.
type Message struct {
	Scope   string
	Payload []byte
}

// Observer receives processed messages.
type Observer func(msg Message)

// Processor authenticates, decrypts and fans out push messages. The feature
// driving the transport is installed with Install; installation is idempotent
// in the sense that the latest installed feature wins.
type Processor struct {
	keys      *Keys
	verifyKey *ecdsa.PublicKey
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	feature   *Feature
	observers []Observer
	firstInit func()
	firstOnce sync.Once
}

// NewProcessor creates a processor. verifyKey authenticates message JWTs;
// keys unseal payloads.
func NewProcessor(keys *Keys, verifyKey *ecdsa.PublicKey, logger *zap.SugaredLogger) *Processor {
	return &Processor{
		keys:      keys,
		verifyKey: verifyKey,
		logger:    logger,
	}
}

// Install registers the feature the processor delivers through. The previous
// registration, if any, is replaced.
func (p *Processor) Install(f *Feature) {
	p.mu.Lock()
	p.feature = f
	p.mu.Unlock()
}

// Feature returns the currently installed feature, or nil.
func (p *Processor) Feature() *Feature {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feature
}

// AddObserver registers an observer for processed messages.
func (p *Processor) AddObserver(o Observer) {
	p.mu.Lock()
	p.observers = append(p.observers, o)
	p.mu.Unlock()
}

// OnFirstMessage arranges for fn to run exactly once, on the first
// successfully processed message. Used for deferred account-manager
// initialization.
func (p *Processor) OnFirstMessage(fn func()) {
	p.mu.Lock()
	p.firstInit = fn
	p.mu.Unlock()
}

// Process handles one raw envelope from the transport: decode, verify the
// sender JWT, unseal the body, then fan out. Failures are logged and counted;
// a bad message never stops the receive loop.
func (p *Processor) Process(raw []byte) {
	msg, err := p.decode(raw)
	if err != nil {
		metrics.PushMessages.WithLabelValues("rejected").Inc()
		p.logger.Warnw("Push message rejected", "error", err)
		return
	}
	metrics.PushMessages.WithLabelValues("delivered").Inc()

	p.mu.Lock()
	observers := append([]Observer(nil), p.observers...)
	firstInit := p.firstInit
	p.mu.Unlock()

	if firstInit != nil {
		p.firstOnce.Do(firstInit)
	}

	for _, o := range observers {
		o(msg)
	}
}

func (p *Processor) decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Scope == "" {
		return Message{}, fmt.Errorf("envelope missing scope")
	}

	if err := p.verifyToken(env.Token); err != nil {
		return Message{}, err
	}

	salt, err := base64.RawURLEncoding.DecodeString(env.Salt)
	if err != nil {
		return Message{}, fmt.Errorf("malformed salt: %w", err)
	}
	dh, err := base64.RawURLEncoding.DecodeString(env.DH)
	if err != nil {
		return Message{}, fmt.Errorf("malformed sender key: %w", err)
	}
	body, err := base64.RawURLEncoding.DecodeString(env.Body)
	if err != nil {
		return Message{}, fmt.Errorf("malformed body: %w", err)
	}

	payload, err := p.keys.Unseal(salt, dh, body)
	if err != nil {
		return Message{}, err
	}

	return Message{Scope: env.Scope, Payload: payload}, nil
}

func (p *Processor) verifyToken(token string) error {
	if token == "" {
		return fmt.Errorf("envelope missing sender token")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.verifyKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("sender token verification failed: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("sender token carries no claims")
	}
	// VAPID tokens must not be valid for more than 24 hours.
	if exp, err := claims.GetExpirationTime(); err != nil || exp == nil || time.Until(exp.Time) > 24*time.Hour {
		return fmt.Errorf("sender token expiry out of bounds")
	}
	return nil
}
