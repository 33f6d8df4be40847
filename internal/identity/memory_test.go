package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendsheets/internal/domain"
)

func TestMemoryStore_CreateFindUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.Create(ctx, domain.NewIdentity{Email: "Kid@School.edu", Name: "Kid", PasswordHash: "h1", Role: domain.RoleStudent})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "kid@school.edu", created.Email)

	found, err := s.FindByEmail(ctx, "kid@school.edu")
	require.NoError(t, err)
	assert.True(t, found.IsStudent())

	require.NoError(t, s.UpdatePasswordHash(ctx, found, "h2"))
	found, err = s.FindByEmail(ctx, "KID@school.edu")
	require.NoError(t, err)
	assert.Equal(t, "h2", found.PasswordHash)
}

func TestMemoryStore_Duplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, domain.NewIdentity{Email: "a@b.com", Role: domain.RoleTeacher})
	require.NoError(t, err)
	_, err = s.Create(ctx, domain.NewIdentity{Email: "a@b.com", Role: domain.RoleStudent})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.FindByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	err = s.UpdatePasswordHash(ctx, domain.Identity{ID: "x", Email: "nobody@x.com"}, "h")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}
