package verification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"attendsheets/internal/auth"
	"attendsheets/internal/codestore"
	"attendsheets/internal/domain"
	"attendsheets/internal/identity"
)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

// --- builder ---

type fixture struct {
	flow  *Flow
	codes *codestore.Store
	ids   *identity.MemoryStore
	mail  *mockMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codes := codestore.New(codestore.NewMemoryBackend())
	ids := identity.NewMemoryStore()
	ml := &mockMailer{}
	return &fixture{
		flow:  New(codes, ids, ml, 15*time.Minute, nil),
		codes: codes,
		ids:   ids,
		mail:  ml,
	}
}

func (f *fixture) pendingCode(t *testing.T, kind codestore.Kind, email string) string {
	t.Helper()
	pc, err := f.codes.Peek(context.Background(), kind, email)
	require.NoError(t, err)
	return pc.Code
}

func (f *fixture) seed(t *testing.T, email, password string, role domain.Role) domain.Identity {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	id, err := f.ids.Create(context.Background(), domain.NewIdentity{Email: email, Name: "Seeded", PasswordHash: hash, Role: role})
	require.NoError(t, err)
	return id
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

// --- signup ---

func TestBeginSignup_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.mail.On("Send", mock.Anything, "ada@school.edu", "Verify your email", mock.Anything).Return(nil)

	d, err := f.flow.BeginSignup(context.Background(), SignupRequest{
		Email: "Ada@School.edu", Name: "Ada", Password: "password1", Role: domain.RoleTeacher,
	})
	require.NoError(t, err)
	assert.True(t, d.Delivered)
	f.mail.AssertExpectations(t)

	pc, err := f.codes.Peek(context.Background(), codestore.KindSignup, "ada@school.edu")
	require.NoError(t, err)
	assert.Equal(t, "Ada", pc.Payload.Name)
	assert.Equal(t, domain.RoleTeacher, pc.Payload.Role)
	assert.True(t, auth.VerifyPassword(pc.Payload.PasswordHash, "password1"))
}

func TestBeginSignup_MailFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.mail.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	d, err := f.flow.BeginSignup(context.Background(), SignupRequest{
		Email: "a@b.com", Name: "A", Password: "password1", Role: domain.RoleStudent,
	})
	require.NoError(t, err)
	assert.False(t, d.Delivered)

	_, err = f.codes.Peek(context.Background(), codestore.KindSignup, "a@b.com")
	assert.NoError(t, err)
}

func TestBeginSignup_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.flow.BeginSignup(ctx, SignupRequest{Email: "not-an-email", Name: "A", Password: "password1", Role: domain.RoleTeacher})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.flow.BeginSignup(ctx, SignupRequest{Email: "a@b.com", Name: " ", Password: "password1", Role: domain.RoleTeacher})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.flow.BeginSignup(ctx, SignupRequest{Email: "a@b.com", Name: "A", Password: "short", Role: domain.RoleTeacher})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	_, err = f.flow.BeginSignup(ctx, SignupRequest{Email: "a@b.com", Name: "A", Password: "password1", Role: "admin"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBeginSignup_RejectsDisplayNameAddresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, raw := range []string{"Bob <bob@x.com>", "<bob@x.com>", `"Bob" <bob@x.com>`} {
		_, err := f.flow.BeginSignup(ctx, SignupRequest{Email: raw, Name: "Bob", Password: "password1", Role: domain.RoleTeacher})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
	_, err := f.flow.BeginReset(ctx, "Bob <bob@x.com>")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.codes.Peek(ctx, codestore.KindSignup, "bob@x.com")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
	f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBeginSignup_PasswordTooLong(t *testing.T) {
	f := newFixture(t)

	_, err := f.flow.BeginSignup(context.Background(), SignupRequest{
		Email: "a@b.com", Name: "A", Password: strings.Repeat("p", 80), Role: domain.RoleTeacher,
	})
	assert.ErrorIs(t, err, domain.ErrPasswordTooLong)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotErrorIs(t, err, domain.ErrInternal)
}

func TestBeginSignup_DuplicateIdentity(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a@b.com", "password1", domain.RoleStudent)

	_, err := f.flow.BeginSignup(context.Background(), SignupRequest{
		Email: "a@b.com", Name: "A", Password: "password1", Role: domain.RoleTeacher,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
	f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteSignup_CreatesIdentityOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mail.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.flow.BeginSignup(ctx, SignupRequest{Email: "s@school.edu", Name: "Sam", Password: "password1", Role: domain.RoleStudent})
	require.NoError(t, err)
	code := f.pendingCode(t, codestore.KindSignup, "s@school.edu")

	_, err = f.flow.CompleteSignup(ctx, "s@school.edu", wrongCode(code))
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	id, err := f.flow.CompleteSignup(ctx, "s@school.edu", code)
	require.NoError(t, err)
	assert.Equal(t, "Sam", id.Name)
	assert.True(t, id.IsStudent())

	_, err = f.flow.CompleteSignup(ctx, "s@school.edu", code)
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)

	logged, err := f.flow.Login(ctx, "s@school.edu", "password1")
	require.NoError(t, err)
	assert.Equal(t, id.ID, logged.ID)
}

// --- resend ---

func TestResendSignup_ReusesPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mail.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.flow.BeginSignup(ctx, SignupRequest{Email: "a@b.com", Name: "Ann", Password: "password1", Role: domain.RoleTeacher})
	require.NoError(t, err)
	before, err := f.codes.Peek(ctx, codestore.KindSignup, "a@b.com")
	require.NoError(t, err)

	d, err := f.flow.ResendSignup(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, d.Delivered)

	after, err := f.codes.Peek(ctx, codestore.KindSignup, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, before.Payload, after.Payload)
	f.mail.AssertNumberOfCalls(t, "Send", 2)
}

func TestResendSignup_NoPendingRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.flow.ResendSignup(context.Background(), "ghost@b.com")
	assert.ErrorIs(t, err, domain.ErrNoPendingRequest)
}

func TestResendSignup_AlreadyVerified(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a@b.com", "password1", domain.RoleTeacher)

	_, err := f.flow.ResendSignup(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

// --- reset ---

func TestBeginReset_UnknownEmailIssuesCodeWithoutMail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.flow.BeginReset(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, d.Delivered)
	f.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	code := f.pendingCode(t, codestore.KindPasswordReset, "nobody@x.com")
	err = f.flow.CompleteReset(ctx, "nobody@x.com", code, "newpassword")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	_, err = f.codes.Peek(ctx, codestore.KindPasswordReset, "nobody@x.com")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestBeginReset_KnownEmailMails(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "t@school.edu", "password1", domain.RoleTeacher)
	f.mail.On("Send", mock.Anything, "t@school.edu", "Reset your password", mock.Anything).Return(nil)

	d, err := f.flow.BeginReset(context.Background(), "t@school.edu")
	require.NoError(t, err)
	assert.True(t, d.Delivered)
	f.mail.AssertExpectations(t)
}

func TestCompleteReset_WeakPasswordKeepsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "t@school.edu", "password1", domain.RoleTeacher)
	f.mail.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.flow.BeginReset(ctx, "t@school.edu")
	require.NoError(t, err)
	code := f.pendingCode(t, codestore.KindPasswordReset, "t@school.edu")

	err = f.flow.CompleteReset(ctx, "t@school.edu", code, "short")
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	require.NoError(t, f.flow.CompleteReset(ctx, "t@school.edu", code, "brandnewpass"))

	_, err = f.flow.Login(ctx, "t@school.edu", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.flow.Login(ctx, "t@school.edu", "brandnewpass")
	assert.NoError(t, err)
}

func TestCompleteReset_StudentPasswordUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "kid@school.edu", "password1", domain.RoleStudent)
	f.mail.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.flow.BeginReset(ctx, "kid@school.edu")
	require.NoError(t, err)
	code := f.pendingCode(t, codestore.KindPasswordReset, "kid@school.edu")

	require.NoError(t, f.flow.CompleteReset(ctx, "kid@school.edu", code, "anotherpass"))
	id, err := f.flow.Login(ctx, "kid@school.edu", "anotherpass")
	require.NoError(t, err)
	assert.True(t, id.IsStudent())
}

func TestCompleteReset_CodeErrorsComeBeforePasswordErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "t@school.edu", "password1", domain.RoleTeacher)
	f.mail.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := f.flow.CompleteReset(ctx, "t@school.edu", "123456", "short")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)

	_, err = f.flow.BeginReset(ctx, "t@school.edu")
	require.NoError(t, err)
	code := f.pendingCode(t, codestore.KindPasswordReset, "t@school.edu")

	err = f.flow.CompleteReset(ctx, "t@school.edu", wrongCode(code), "short")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	err = f.flow.CompleteReset(ctx, "t@school.edu", code, strings.Repeat("p", 80))
	assert.ErrorIs(t, err, domain.ErrPasswordTooLong)

	require.NoError(t, f.flow.CompleteReset(ctx, "t@school.edu", code, "brandnewpass"))
}

// --- change ---

func TestRequestChange_UnknownIdentity(t *testing.T) {
	f := newFixture(t)
	_, err := f.flow.RequestChange(context.Background(), "ghost@b.com")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestChange_HappyPathAndKindIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "t@school.edu", "password1", domain.RoleTeacher)
	f.mail.On("Send", mock.Anything, "t@school.edu", "Confirm your password change", mock.Anything).Return(nil)

	d, err := f.flow.RequestChange(ctx, "t@school.edu")
	require.NoError(t, err)
	assert.True(t, d.Delivered)
	code := f.pendingCode(t, codestore.KindPasswordChange, "t@school.edu")

	err = f.flow.CompleteReset(ctx, "t@school.edu", code, "changedpass")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)

	require.NoError(t, f.flow.CompleteChange(ctx, "t@school.edu", code, "changedpass"))
	_, err = f.flow.Login(ctx, "t@school.edu", "changedpass")
	assert.NoError(t, err)
}

// --- login ---

func TestLogin_UnknownAndWrongPasswordLookAlike(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a@b.com", "password1", domain.RoleTeacher)

	_, err := f.flow.Login(context.Background(), "nobody@b.com", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.flow.Login(context.Background(), "a@b.com", "password2")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
