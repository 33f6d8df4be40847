package codestore

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"go.uber.org/zap"

	"attendsheets/internal/domain"
	"attendsheets/internal/keylock"
	"attendsheets/internal/metrics"
)

// DefaultRetention is how long an expired record may linger in a TTL-capable backend
// so a late consume can still report Expired instead of NotFound.
const DefaultRetention = time.Hour

// Backend persists pending codes by key. Get returns (nil, nil) when nothing is stored.
// retain is a hint for backends with native expiry; records may be dropped after it.
type Backend interface {
	Get(ctx context.Context, key string) (*PendingCode, error)
	Put(ctx context.Context, key string, pc PendingCode, retain time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Store enforces the issue/consume lifecycle on top of a Backend. All access to a
// single (kind, subject) is serialized.
type Store struct {
	backend   Backend
	locks     *keylock.Locker
	now       func() time.Time
	generate  func() (string, error)
	retention time.Duration
	log       *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithGenerator overrides GenerateCode.
func WithGenerator(gen func() (string, error)) Option {
	return func(s *Store) { s.generate = gen }
}

// WithRetention sets how long expired records are retained by the backend.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		locks:     keylock.New(),
		now:       time.Now,
		generate:  GenerateCode,
		retention: DefaultRetention,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func storeKey(kind Kind, subject string) string {
	return string(kind) + ":" + subject
}

// Issue creates a fresh code for subject, replacing any pending one.
func (s *Store) Issue(ctx context.Context, kind Kind, subject string, ttl time.Duration, payload Payload) (PendingCode, error) {
	subject = domain.NormalizeEmail(subject)
	if subject == "" {
		return PendingCode{}, fmt.Errorf("subject required: %w", domain.ErrInvalidInput)
	}
	if ttl <= 0 {
		return PendingCode{}, fmt.Errorf("ttl must be positive: %w", domain.ErrInvalidInput)
	}

	key := storeKey(kind, subject)
	unlock := s.locks.Lock(key)
	defer unlock()

	pc, err := s.put(ctx, kind, subject, ttl, payload)
	if err != nil {
		return PendingCode{}, err
	}
	metrics.CodesIssued.WithLabelValues(string(kind)).Inc()
	return pc, nil
}

// Reissue replaces the code of an existing, unexpired PendingCode while keeping its
// payload. It fails with ErrCodeNotFound when nothing live is pending.
func (s *Store) Reissue(ctx context.Context, kind Kind, subject string, ttl time.Duration) (PendingCode, error) {
	subject = domain.NormalizeEmail(subject)
	if ttl <= 0 {
		return PendingCode{}, fmt.Errorf("ttl must be positive: %w", domain.ErrInvalidInput)
	}

	key := storeKey(kind, subject)
	unlock := s.locks.Lock(key)
	defer unlock()

	cur, err := s.load(ctx, key)
	if err != nil {
		return PendingCode{}, err
	}
	if cur == nil {
		return PendingCode{}, domain.ErrCodeNotFound
	}
	pc, err := s.put(ctx, kind, subject, ttl, cur.Payload)
	if err != nil {
		return PendingCode{}, err
	}
	metrics.CodesIssued.WithLabelValues(string(kind)).Inc()
	return pc, nil
}

// Peek returns the live PendingCode for subject without consuming it.
func (s *Store) Peek(ctx context.Context, kind Kind, subject string) (PendingCode, error) {
	key := storeKey(kind, domain.NormalizeEmail(subject))
	unlock := s.locks.Lock(key)
	defer unlock()

	cur, err := s.load(ctx, key)
	if err != nil {
		return PendingCode{}, err
	}
	if cur == nil {
		return PendingCode{}, domain.ErrCodeNotFound
	}
	return *cur, nil
}

// Consume checks existence, then expiry, then the code itself. On success the record
// is deleted and returned. A wrong code leaves the record in place; an expired one is
// deleted.
func (s *Store) Consume(ctx context.Context, kind Kind, subject, code string) (PendingCode, error) {
	subject = domain.NormalizeEmail(subject)
	key := storeKey(kind, subject)
	unlock := s.locks.Lock(key)
	defer unlock()

	pc, err := s.consume(ctx, key, code)
	metrics.CodesConsumed.WithLabelValues(string(kind), consumeResult(err)).Inc()
	return pc, err
}

// Verify runs the same checks as Consume without deleting a matching record. An
// expired record is still deleted.
func (s *Store) Verify(ctx context.Context, kind Kind, subject, code string) error {
	key := storeKey(kind, domain.NormalizeEmail(subject))
	unlock := s.locks.Lock(key)
	defer unlock()

	_, err := s.check(ctx, key, code)
	return err
}

func (s *Store) consume(ctx context.Context, key, code string) (PendingCode, error) {
	cur, err := s.check(ctx, key, code)
	if err != nil {
		return PendingCode{}, err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return PendingCode{}, domain.Internal("delete pending code", err)
	}
	return *cur, nil
}

// check loads the record under key and matches code against it: existence, then
// expiry, then equality.
func (s *Store) check(ctx context.Context, key, code string) (*PendingCode, error) {
	cur, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, domain.Internal("load pending code", err)
	}
	if cur == nil {
		return nil, domain.ErrCodeNotFound
	}
	if cur.Expired(s.now()) {
		s.drop(ctx, key)
		return nil, domain.ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(cur.Code), []byte(code)) != 1 {
		return nil, domain.ErrInvalidCode
	}
	return cur, nil
}

// load returns the live record for key, deleting it when it has expired.
func (s *Store) load(ctx context.Context, key string) (*PendingCode, error) {
	cur, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, domain.Internal("load pending code", err)
	}
	if cur == nil {
		return nil, nil
	}
	if cur.Expired(s.now()) {
		s.drop(ctx, key)
		return nil, nil
	}
	return cur, nil
}

func (s *Store) put(ctx context.Context, kind Kind, subject string, ttl time.Duration, payload Payload) (PendingCode, error) {
	code, err := s.generate()
	if err != nil {
		return PendingCode{}, domain.Internal("generate code", err)
	}
	now := s.now()
	pc := PendingCode{
		Kind:      kind,
		Subject:   subject,
		Code:      code,
		Payload:   payload,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.backend.Put(ctx, storeKey(kind, subject), pc, ttl+s.retention); err != nil {
		return PendingCode{}, domain.Internal("save pending code", err)
	}
	return pc, nil
}

func (s *Store) drop(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete expired pending code", zap.String("key", key), zap.Error(err))
	}
}

func consumeResult(err error) string {
	switch err {
	case nil:
		return "ok"
	case domain.ErrCodeNotFound:
		return "not_found"
	case domain.ErrCodeExpired:
		return "expired"
	case domain.ErrInvalidCode:
		return "invalid"
	default:
		return "error"
	}
}
