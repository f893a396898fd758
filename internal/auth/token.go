package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenState classifies the outcome of validating a bearer token. Expired
// and invalid tokens are expected conditions, not errors.
type TokenState int

const (
	TokenValid TokenState = iota
	TokenExpired
	TokenInvalid
)

// Claims is the signed token payload. The jti (RegisteredClaims.ID) ties
// the otherwise stateless token to a revocable session row; the ip claim
// binds the token to the address it was issued for.
type Claims struct {
	IP string `json:"ip"`
	jwt.RegisteredClaims
}

// TokenIssuer creates and validates HS256 bearer tokens. A token is never
// sufficient on its own: every protected call additionally requires a live
// session row for the embedded jti.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the user bound to the given IP.
// Returns the encoded token, its jti and its expiry.
func (t *TokenIssuer) Issue(userID, ip string) (string, string, time.Time, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()
	expiresAt := now.Add(t.ttl)

	claims := Claims{
		IP: ip,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return encoded, jti, expiresAt, nil
}

// Validate parses and verifies a token. The claims are only non-nil when
// the state is TokenValid.
func (t *TokenIssuer) Validate(tokenStr string) (*Claims, TokenState) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, TokenExpired
		}
		return nil, TokenInvalid
	}
	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, TokenInvalid
	}
	return claims, TokenValid
}
