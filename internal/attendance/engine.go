// Package attendance runs live QR attendance sessions: one per class, accepting
// scans from enrolled students and reconciling absentees when the teacher stops it.
package attendance

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"attendsheets/internal/codestore"
	"attendsheets/internal/domain"
	"attendsheets/internal/keylock"
	"attendsheets/internal/metrics"
)

// Engine owns session state transitions. Start, Stop, Peek and Scan against one
// class are serialized; different classes run in parallel.
type Engine struct {
	store           Store
	locks           *keylock.Locker
	now             func() time.Time
	generate        func() (string, error)
	loc             *time.Location
	defaultRotation time.Duration
	log             *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithGenerator overrides the session code generator.
func WithGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.generate = gen }
}

// WithLocation sets the zone used to decide a session's attendance date.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithDefaultRotation sets the interval used when Start gets zero.
func WithDefaultRotation(d time.Duration) Option {
	return func(e *Engine) { e.defaultRotation = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		locks:           keylock.New(),
		now:             time.Now,
		generate:        codestore.GenerateCode,
		loc:             time.UTC,
		defaultRotation: 5 * time.Second,
		log:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lock(classID int64) func() {
	return e.locks.Lock(strconv.FormatInt(classID, 10))
}

// Start opens a fresh session for classID, replacing any previous one and its scan
// membership. Entries written under the old session are left alone.
func (e *Engine) Start(ctx context.Context, teacher domain.Identity, classID int64, rotation time.Duration) (Snapshot, error) {
	if rotation < 0 {
		return Snapshot{}, fmt.Errorf("rotation interval must not be negative: %w", domain.ErrInvalidInput)
	}
	if rotation == 0 {
		rotation = e.defaultRotation
	}

	unlock := e.lock(classID)
	defer unlock()

	if err := e.checkOwner(ctx, teacher, classID); err != nil {
		return Snapshot{}, err
	}
	code, err := e.generate()
	if err != nil {
		return Snapshot{}, domain.Internal("generate session code", err)
	}

	now := e.now()
	s := Session{
		ID:               ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		ClassID:          classID,
		TeacherID:        teacher.ID,
		Status:           StatusActive,
		CurrentCode:      code,
		RotationInterval: rotation,
		CodeGeneratedAt:  now,
		AttendanceDate:   now.In(e.loc).Format(DateLayout),
		StartedAt:        now,
	}
	if err := e.store.ReplaceSession(ctx, s); err != nil {
		return Snapshot{}, domain.Internal("replace session", err)
	}

	metrics.SessionsStarted.Inc()
	e.log.Info("attendance session started",
		zap.Int64("class_id", classID),
		zap.String("session_id", s.ID),
		zap.String("date", s.AttendanceDate))
	return s.snapshot(now, 0), nil
}

// Peek returns the active session of classID. A missing session, or one owned by
// another teacher, reads as inactive.
func (e *Engine) Peek(ctx context.Context, teacher domain.Identity, classID int64) (Snapshot, error) {
	unlock := e.lock(classID)
	defer unlock()

	s, err := e.store.ActiveSession(ctx, classID)
	if errors.Is(err, domain.ErrNoActiveSession) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, domain.Internal("load session", err)
	}
	if s.TeacherID != teacher.ID {
		return Snapshot{}, nil
	}
	scanned, err := e.store.ScannedSet(ctx, classID)
	if err != nil {
		return Snapshot{}, domain.Internal("load scans", err)
	}
	return s.snapshot(e.now(), len(scanned)), nil
}

// Stop reconciles absentees and closes the active session. Only an ACTIVE session
// can be stopped, so reconciliation runs once per session.
func (e *Engine) Stop(ctx context.Context, teacher domain.Identity, classID int64) (StopResult, error) {
	unlock := e.lock(classID)
	defer unlock()

	s, err := e.store.ActiveSession(ctx, classID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			return StopResult{}, err
		}
		return StopResult{}, domain.Internal("load session", err)
	}
	if s.TeacherID != teacher.ID {
		return StopResult{}, domain.ErrNotClassOwner
	}

	res, err := e.reconcile(ctx, s)
	if err != nil {
		return StopResult{}, err
	}
	if err := e.store.MarkSessionStopped(ctx, classID, e.now()); err != nil {
		return res, domain.Internal("stop session", err)
	}

	metrics.SessionsStopped.Inc()
	e.log.Info("attendance session stopped",
		zap.Int64("class_id", classID),
		zap.String("session_id", s.ID),
		zap.Int("absent", res.AbsentCount),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (e *Engine) checkOwner(ctx context.Context, teacher domain.Identity, classID int64) error {
	if !teacher.IsTeacher() {
		return domain.ErrNotClassOwner
	}
	owner, err := e.store.ClassOwner(ctx, classID)
	if err != nil {
		if errors.Is(err, domain.ErrClassNotFound) {
			return err
		}
		return domain.Internal("load class", err)
	}
	if owner != teacher.ID {
		return domain.ErrNotClassOwner
	}
	return nil
}
