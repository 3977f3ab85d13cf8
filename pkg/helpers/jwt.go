package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// PurposeReset marks a token that may only be used to reset a password.
const PurposeReset = "reset"

// ErrInvalidToken covers bad signatures, malformed input and expiry alike.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager handles generation and validation of JWT tokens
type JWTManager struct {
	Secret    []byte
	AccessTTL time.Duration
	Now       func() time.Time
}

func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{
		Secret:    []byte(secret),
		AccessTTL: accessTTL,
		Now:       time.Now,
	}
}

// Claims carry the user id in the standard subject claim.
// Session tokens set Email and Name; reset tokens set Purpose.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

func (m *JWTManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// IssueSession signs a bearer token for the given user with the configured access TTL.
func (m *JWTManager) IssueSession(userID, email, name string) (string, time.Time, error) {
	return m.sign(&Claims{Email: email, Name: name}, userID, m.AccessTTL)
}

// IssueReset signs a single-purpose reset token. Every call yields a distinct token.
func (m *JWTManager) IssueReset(userID string, ttl time.Duration) (string, time.Time, error) {
	c := &Claims{Purpose: PurposeReset}
	c.ID = uuid.NewString()
	return m.sign(c, userID, ttl)
}

func (m *JWTManager) sign(c *Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(ttl)
	c.Subject = subject
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(exp)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	s, err := t.SignedString(m.Secret)
	return s, exp, err
}

// Validate parses and verifies a token. Any failure is reported as ErrInvalidToken.
func (m *JWTManager) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
