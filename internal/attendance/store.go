package attendance

import (
	"context"
	"time"
)

// Store is the relational collaborator behind sessions, enrollments and entries.
// Missing rows are reported with the domain errors ErrClassNotFound,
// ErrNoActiveSession and ErrNotEnrolled; anything else is a collaborator failure.
type Store interface {
	// ClassOwner returns the id of the teacher owning classID.
	ClassOwner(ctx context.Context, classID int64) (string, error)

	// ReplaceSession writes s as the class's only session row and clears the
	// class's scan membership.
	ReplaceSession(ctx context.Context, s Session) error
	ActiveSession(ctx context.Context, classID int64) (Session, error)
	MarkSessionStopped(ctx context.Context, classID int64, at time.Time) error
	TouchSession(ctx context.Context, classID int64, at time.Time) error

	// AddScan records membership; adding an existing member is a no-op.
	AddScan(ctx context.Context, classID int64, studentRecordID string) error
	ScannedSet(ctx context.Context, classID int64) (map[string]struct{}, error)

	ActiveEnrollments(ctx context.Context, classID int64) ([]Enrollment, error)
	EnrollmentByStudent(ctx context.Context, classID int64, studentID string) (Enrollment, error)

	// UpsertEntry writes status, overwriting any existing mark.
	UpsertEntry(ctx context.Context, key EntryKey, status EntryStatus) error
	// InsertEntryIfAbsent writes status only when no entry exists and reports
	// whether it did.
	InsertEntryIfAbsent(ctx context.Context, key EntryKey, status EntryStatus) (bool, error)
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)
