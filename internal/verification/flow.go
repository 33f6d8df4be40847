// Package verification runs the signup, password reset and password change flows:
// issue a code, deliver it out of band, then consume it exactly once.
package verification

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"attendsheets/internal/auth"
	"attendsheets/internal/codestore"
	"attendsheets/internal/domain"
	"attendsheets/internal/identity"
	"attendsheets/internal/mailer"
	"attendsheets/internal/metrics"
)

// Delivery reports whether the code reached the mailer. It never decides the outcome
// of the operation that produced it.
type Delivery struct {
	Delivered bool
}

// SignupRequest starts a signup.
type SignupRequest struct {
	Email    string
	Name     string
	Password string
	Role     domain.Role
}

// Flow wires the code store to identities and mail.
type Flow struct {
	codes *codestore.Store
	ids   identity.Store
	mail  mailer.Mailer
	ttl   time.Duration
	log   *zap.Logger
}

// New creates a Flow. ttl is the lifetime of every issued code.
func New(codes *codestore.Store, ids identity.Store, m mailer.Mailer, ttl time.Duration, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{codes: codes, ids: ids, mail: m, ttl: ttl, log: log}
}

// BeginSignup stores the would-be account in a pending code and mails the code.
// It fails with ErrDuplicateIdentity when the email is already registered.
func (f *Flow) BeginSignup(ctx context.Context, req SignupRequest) (Delivery, error) {
	email, err := parseEmail(req.Email)
	if err != nil {
		return Delivery{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Delivery{}, fmt.Errorf("name required: %w", domain.ErrInvalidInput)
	}
	if !req.Role.Valid() {
		return Delivery{}, domain.ErrInvalidRole
	}
	if err := auth.CheckStrength(req.Password); err != nil {
		return Delivery{}, err
	}

	if _, err := f.ids.FindByEmail(ctx, email); err == nil {
		return Delivery{}, domain.ErrDuplicateIdentity
	} else if !errors.Is(err, domain.ErrNotFound) {
		return Delivery{}, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Delivery{}, domain.Internal("hash password", err)
	}
	pc, err := f.codes.Issue(ctx, codestore.KindSignup, email, f.ttl, codestore.Payload{
		Name:         name,
		PasswordHash: hash,
		Role:         req.Role,
	})
	if err != nil {
		return Delivery{}, err
	}
	subject, body := signupMessage(name, pc.Code, f.ttl)
	return f.deliver(ctx, "signup", email, subject, body), nil
}

// CompleteSignup consumes the signup code and materializes the identity.
func (f *Flow) CompleteSignup(ctx context.Context, email, code string) (domain.Identity, error) {
	pc, err := f.codes.Consume(ctx, codestore.KindSignup, email, code)
	if err != nil {
		return domain.Identity{}, err
	}
	return f.ids.Create(ctx, domain.NewIdentity{
		Email:        pc.Subject,
		Name:         pc.Payload.Name,
		PasswordHash: pc.Payload.PasswordHash,
		Role:         pc.Payload.Role,
	})
}

// ResendSignup issues a new code for a pending signup, reusing its payload.
func (f *Flow) ResendSignup(ctx context.Context, email string) (Delivery, error) {
	email = domain.NormalizeEmail(email)
	pc, err := f.codes.Reissue(ctx, codestore.KindSignup, email, f.ttl)
	if errors.Is(err, domain.ErrCodeNotFound) {
		if _, findErr := f.ids.FindByEmail(ctx, email); findErr == nil {
			return Delivery{}, domain.ErrAlreadyVerified
		} else if !errors.Is(findErr, domain.ErrNotFound) {
			return Delivery{}, findErr
		}
		return Delivery{}, domain.ErrNoPendingRequest
	}
	if err != nil {
		return Delivery{}, err
	}
	subject, body := signupMessage(pc.Payload.Name, pc.Code, f.ttl)
	return f.deliver(ctx, "signup_resend", email, subject, body), nil
}

// BeginReset issues a reset code whether or not the email belongs to an account, so
// the response never reveals account existence. Mail is only sent to real accounts.
func (f *Flow) BeginReset(ctx context.Context, email string) (Delivery, error) {
	email, err := parseEmail(email)
	if err != nil {
		return Delivery{}, err
	}
	id, err := f.ids.FindByEmail(ctx, email)
	known := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Delivery{}, err
	}

	pc, err := f.codes.Issue(ctx, codestore.KindPasswordReset, email, f.ttl, codestore.Payload{})
	if err != nil {
		return Delivery{}, err
	}
	if !known {
		f.log.Debug("password reset requested for unknown email; mail skipped", zap.String("email", email))
		return Delivery{}, nil
	}
	subject, body := resetMessage(id.Name, pc.Code, f.ttl)
	return f.deliver(ctx, "password_reset", email, subject, body), nil
}

// CompleteReset consumes a reset code and stores the new password.
func (f *Flow) CompleteReset(ctx context.Context, email, code, newPassword string) error {
	return f.completePassword(ctx, codestore.KindPasswordReset, email, code, newPassword)
}

// RequestChange mails a password change code to a signed-in account.
func (f *Flow) RequestChange(ctx context.Context, email string) (Delivery, error) {
	id, err := f.ids.FindByEmail(ctx, email)
	if err != nil {
		return Delivery{}, err
	}
	pc, err := f.codes.Issue(ctx, codestore.KindPasswordChange, id.Email, f.ttl, codestore.Payload{})
	if err != nil {
		return Delivery{}, err
	}
	subject, body := changeMessage(id.Name, pc.Code, f.ttl)
	return f.deliver(ctx, "password_change", id.Email, subject, body), nil
}

// CompleteChange consumes a change code and stores the new password.
func (f *Flow) CompleteChange(ctx context.Context, email, code, newPassword string) error {
	return f.completePassword(ctx, codestore.KindPasswordChange, email, code, newPassword)
}

// completePassword reports code problems first, then password problems. A rejected
// password leaves the code usable. The code is consumed before the identity lookup so
// a wrong code reads the same whether or not the account exists.
func (f *Flow) completePassword(ctx context.Context, kind codestore.Kind, email, code, newPassword string) error {
	if err := f.codes.Verify(ctx, kind, email, code); err != nil {
		return err
	}
	if err := auth.CheckStrength(newPassword); err != nil {
		return err
	}
	pc, err := f.codes.Consume(ctx, kind, email, code)
	if err != nil {
		return err
	}
	id, err := f.ids.FindByEmail(ctx, pc.Subject)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domain.Internal("hash password", err)
	}
	return f.ids.UpdatePasswordHash(ctx, id, hash)
}

func (f *Flow) deliver(ctx context.Context, purpose, to, subject, body string) Delivery {
	err := f.mail.Send(ctx, to, subject, body)
	metrics.MailDeliveries.WithLabelValues(purpose, metrics.Result(err)).Inc()
	if err != nil {
		f.log.Warn("code delivery failed", zap.String("purpose", purpose), zap.String("to", to), zap.Error(err))
		return Delivery{}
	}
	return Delivery{Delivered: true}
}

func parseEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	if email == "" {
		return "", fmt.Errorf("email required: %w", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", fmt.Errorf("malformed email: %w", domain.ErrInvalidInput)
	}
	return addr.Address, nil
}
