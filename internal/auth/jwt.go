package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"attendsheets/internal/domain"
)

var (
	ErrTokenExpired = fmt.Errorf("token expired: %w", domain.ErrExpired)
	ErrTokenInvalid = fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
)

// Token is an issued bearer credential.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 bearer tokens bound to an identity and role.
type Issuer struct {
	issuer string
	key    []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer.
func NewIssuer(issuer, signingKey string) *Issuer {
	return &Issuer{issuer: issuer, key: []byte(signingKey), now: time.Now}
}

// Issue signs a token for identity valid for ttl.
func (i *Issuer) Issue(identity domain.Identity, ttl time.Duration) (Token, error) {
	now := i.now()
	exp := now.Add(ttl)
	claims := Claims{
		Email: identity.Email,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Verify validates a token and returns its claims.
func (i *Issuer) Verify(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrTokenInvalid
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Claims{}, ErrTokenInvalid
	}
	if claims.Email == "" || !claims.Role.Valid() {
		return Claims{}, ErrTokenInvalid
	}
	return *claims, nil
}
