package verification

import (
	"context"
	"errors"

	"attendsheets/internal/auth"
	"attendsheets/internal/domain"
)

// Login checks a password against the stored hash. Unknown email and wrong password
// fail the same way.
func (f *Flow) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	id, err := f.ids.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, domain.ErrInvalidCredentials
		}
		return domain.Identity{}, err
	}
	if !auth.VerifyPassword(id.PasswordHash, password) {
		return domain.Identity{}, domain.ErrInvalidCredentials
	}
	return id, nil
}

// Lookup returns the identity registered under email.
func (f *Flow) Lookup(ctx context.Context, email string) (domain.Identity, error) {
	return f.ids.FindByEmail(ctx, email)
}
