package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSessionSubject  = errors.New("session: user id required")
	ErrMissingSessionUsername = errors.New("session: username required")
	ErrSessionSubjectMismatch = errors.New("session: subject does not match user id")
)

var sessionSigningMethod = jwt.SigningMethodHS256

// SessionClaims is the JWT payload stored in the session cookie. The request
// layer builds the acting user from UserID and Username.
type SessionClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// newSessionClaims builds the claims for a session starting at issuedAt.
func newSessionClaims(userID, username, issuer string, issuedAt time.Time, ttl time.Duration) (SessionClaims, error) {
	claims := SessionClaims{
		UserID:   strings.TrimSpace(userID),
		Username: strings.TrimSpace(username),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(userID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	if err := claims.checkIdentity(); err != nil {
		return SessionClaims{}, err
	}
	return claims, nil
}

// checkIdentity enforces the fields a session must carry to name its user.
func (c SessionClaims) checkIdentity() error {
	switch {
	case strings.TrimSpace(c.UserID) == "":
		return ErrMissingSessionSubject
	case strings.TrimSpace(c.Username) == "":
		return ErrMissingSessionUsername
	case c.Subject != c.UserID:
		return ErrSessionSubjectMismatch
	}
	return nil
}

func sessionKeyFunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != sessionSigningMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm %s", token.Method.Alg())
		}
		return secret, nil
	}
}
