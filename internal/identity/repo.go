// Package identity persists teacher and student accounts. Both kinds live in their own
// table but are resolved through one lookup so callers never query tables ad hoc.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"attendsheets/internal/domain"
)

// Store is what the verification flow and handlers need from account storage.
type Store interface {
	FindByEmail(ctx context.Context, email string) (domain.Identity, error)
	Create(ctx context.Context, n domain.NewIdentity) (domain.Identity, error)
	UpdatePasswordHash(ctx context.Context, id domain.Identity, hash string) error
}

// Repository persists identities in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func tableFor(role domain.Role) string {
	if role == domain.RoleStudent {
		return "students"
	}
	return "teachers"
}

// FindByEmail returns the teacher or student registered under email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, 'teacher' AS role, created_at FROM teachers WHERE email = $1
		UNION ALL
		SELECT id, email, name, password_hash, 'student' AS role, created_at FROM students WHERE email = $1
		LIMIT 1
	`, domain.NormalizeEmail(email))
	var id domain.Identity
	var role string
	if err := row.Scan(&id.ID, &id.Email, &id.Name, &id.PasswordHash, &role, &id.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Identity{}, domain.ErrIdentityNotFound
		}
		return domain.Identity{}, domain.Internal("find identity", err)
	}
	id.Role = domain.Role(role)
	return id, nil
}

// Create inserts a verified identity. An email already used by either table fails
// with ErrDuplicateIdentity.
func (r *Repository) Create(ctx context.Context, n domain.NewIdentity) (domain.Identity, error) {
	id := domain.Identity{
		ID:           uuid.NewString(),
		Email:        domain.NormalizeEmail(n.Email),
		Name:         n.Name,
		PasswordHash: n.PasswordHash,
		Role:         n.Role,
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Identity{}, domain.Internal("begin create identity", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM teachers WHERE email = $1)
		    OR EXISTS (SELECT 1 FROM students WHERE email = $1)
	`, id.Email).Scan(&exists); err != nil {
		return domain.Identity{}, domain.Internal("check identity", err)
	}
	if exists {
		return domain.Identity{}, domain.ErrDuplicateIdentity
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO `+tableFor(id.Role)+` (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, id.ID, id.Email, id.Name, id.PasswordHash, id.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Identity{}, domain.ErrDuplicateIdentity
		}
		return domain.Identity{}, domain.Internal("insert identity", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Identity{}, domain.Internal("commit identity", err)
	}
	return id, nil
}

// UpdatePasswordHash rewrites the stored hash in the table owning id.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id domain.Identity, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE `+tableFor(id.Role)+` SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, id.ID, hash)
	if err != nil {
		return domain.Internal("update password", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}
