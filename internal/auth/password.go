package auth

import (
	"golang.org/x/crypto/bcrypt"

	"attendsheets/internal/domain"
)

// Password length bounds accepted on signup, reset and change. bcrypt refuses input
// longer than MaxPasswordBytes.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// CheckStrength rejects passwords shorter than MinPasswordLength or longer than
// MaxPasswordBytes.
func CheckStrength(password string) error {
	if len(password) < MinPasswordLength {
		return domain.ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return domain.ErrPasswordTooLong
	}
	return nil
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
