package services

import (
	"errors"
	"strings"
	"time"

	"github.com/edusphere/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed payload of a session token.
type SessionClaims struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	AccountType types.Role `json:"accountType"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies HS256 session tokens.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for claims and returns it with its expiry.
func (s *SessionIssuer) Issue(claims types.Claims) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		ID:          claims.ID,
		Email:       claims.Email,
		AccountType: claims.AccountType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the carried claims.
func (s *SessionIssuer) Verify(tokenString string) (types.Claims, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return types.Claims{}, err
	}
	if !token.Valid {
		return types.Claims{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return types.Claims{}, errors.New("missing subject")
	}
	return types.Claims{ID: claims.ID, Email: claims.Email, AccountType: claims.AccountType}, nil
}
