package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionIssuerIssuesTokens(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        testSessionIssuer,
		TTL:           30 * time.Minute,
		Clock: func() time.Time {
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	tokenString, expiresAt, err := issuer.Issue(testSessionUserID, testSessionUsername)
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if !expiresAt.Equal(clockNow.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithTimeFunc(func() time.Time { return clockNow }))
	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if claims.Subject != testSessionUserID || claims.UserID != testSessionUserID {
		t.Fatalf("unexpected subject %s / %s", claims.Subject, claims.UserID)
	}
	if claims.Issuer != testSessionIssuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
}

func TestSessionIssuerDefaultsTTL(t *testing.T) {
	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        testSessionIssuer,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if issuer.TTL() != defaultSessionTTL {
		t.Fatalf("expected default ttl, got %s", issuer.TTL())
	}
}

func TestSessionIssuerRejectsInvalidConfig(t *testing.T) {
	if _, err := NewSessionIssuer(SessionIssuerConfig{Issuer: testSessionIssuer}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte("secret"), Issuer: " "}); err == nil {
		t.Fatalf("expected error for missing issuer")
	}
}

func TestSessionIssuerRequiresUserID(t *testing.T) {
	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        testSessionIssuer,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, _, err := issuer.Issue(" ", "nobody"); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestSessionIssuerRequiresUsername(t *testing.T) {
	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        testSessionIssuer,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, _, err := issuer.Issue(testSessionUserID, "  "); !errors.Is(err, ErrMissingSessionUsername) {
		t.Fatalf("expected missing username error, got %v", err)
	}
}
