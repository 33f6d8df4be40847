// Package codestore keeps one-time verification codes. A PendingCode exists per
// (kind, subject); issuing overwrites, consuming deletes, and expiry is detected
// lazily on access.
package codestore

import (
	"crypto/rand"
	"math/big"
	"time"

	"attendsheets/internal/domain"
)

// CodeLength is the number of decimal digits in every generated code.
const CodeLength = 6

// Kind separates the code namespaces so a signup code can't complete a reset.
type Kind string

const (
	KindSignup         Kind = "signup"
	KindPasswordReset  Kind = "password_reset"
	KindPasswordChange Kind = "password_change"
)

// Payload is the data materialized when a signup code is consumed.
// Reset and change codes carry an empty payload.
type Payload struct {
	Name         string      `json:"name,omitempty"`
	PasswordHash string      `json:"password_hash,omitempty"`
	Role         domain.Role `json:"role,omitempty"`
}

// PendingCode is an outstanding, not yet consumed code.
type PendingCode struct {
	Kind      Kind      `json:"kind"`
	Subject   string    `json:"subject"`
	Code      string    `json:"code"`
	Payload   Payload   `json:"payload"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether now is past the code's expiry instant.
func (p PendingCode) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// GenerateCode returns CodeLength digits, each drawn independently and uniformly
// from 0-9 using crypto/rand.
func GenerateCode() (string, error) {
	ten := big.NewInt(10)
	b := make([]byte, CodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b), nil
}

// WellFormed reports whether code has the expected length and charset.
func WellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
