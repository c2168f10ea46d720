package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSessionTTL = 7 * 24 * time.Hour

var (
	errMissingSigningSecret = errors.New("session issuer: signing secret must be provided")
	errMissingIssuer        = errors.New("session issuer: issuer must be provided")
)

// SessionIssuerConfig configures the session cookie issuer.
type SessionIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TTL           time.Duration
	Clock         func() time.Time
}

// SessionIssuer signs session JWTs for authenticated users. Tokens are
// verified by a SessionValidator configured with the same secret and issuer.
type SessionIssuer struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
}

// NewSessionIssuer constructs a SessionIssuer, defaulting the TTL to one week.
func NewSessionIssuer(cfg SessionIssuerConfig) (*SessionIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errMissingIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// TTL reports how long issued sessions stay valid.
func (i *SessionIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue produces a signed session token and its expiry for the given user.
func (i *SessionIssuer) Issue(userID, username string) (string, time.Time, error) {
	claims, err := newSessionClaims(userID, username, i.issuer, i.clock().UTC(), i.ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.NewWithClaims(sessionSigningMethod, claims).SignedString(i.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}
