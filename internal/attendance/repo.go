package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"attendsheets/internal/domain"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ClassOwner returns the teacher id of a class.
func (r *Repository) ClassOwner(ctx context.Context, classID int64) (string, error) {
	var owner string
	err := r.db.QueryRowContext(ctx, `SELECT teacher_id FROM classes WHERE id = $1`, classID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrClassNotFound
		}
		return "", err
	}
	return owner, nil
}

// ReplaceSession upserts the class's session row and drops its scan membership in one
// transaction.
func (r *Repository) ReplaceSession(ctx context.Context, s Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO qr_sessions (class_id, session_id, teacher_id, status, current_code, rotation_interval_seconds,
			code_generated_at, attendance_date, started_at, last_scan_at, stopped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9, NULL, NULL)
		ON CONFLICT (class_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			teacher_id = EXCLUDED.teacher_id,
			status = EXCLUDED.status,
			current_code = EXCLUDED.current_code,
			rotation_interval_seconds = EXCLUDED.rotation_interval_seconds,
			code_generated_at = EXCLUDED.code_generated_at,
			attendance_date = EXCLUDED.attendance_date,
			started_at = EXCLUDED.started_at,
			last_scan_at = NULL,
			stopped_at = NULL
	`, s.ClassID, s.ID, s.TeacherID, string(s.Status), s.CurrentCode, int(s.RotationInterval/time.Second),
		s.CodeGeneratedAt, s.AttendanceDate, s.StartedAt)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM qr_scanned_students WHERE class_id = $1`, s.ClassID); err != nil {
		return err
	}
	return tx.Commit()
}

// ActiveSession returns the ACTIVE session row of a class.
func (r *Repository) ActiveSession(ctx context.Context, classID int64) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT class_id, session_id, teacher_id, status, current_code, rotation_interval_seconds,
			code_generated_at, attendance_date::text, started_at, last_scan_at, stopped_at
		FROM qr_sessions
		WHERE class_id = $1 AND status = $2
	`, classID, string(StatusActive))
	var (
		s       Session
		status  string
		seconds int
	)
	if err := row.Scan(&s.ClassID, &s.ID, &s.TeacherID, &status, &s.CurrentCode, &seconds,
		&s.CodeGeneratedAt, &s.AttendanceDate, &s.StartedAt, &s.LastScanAt, &s.StoppedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, domain.ErrNoActiveSession
		}
		return Session{}, err
	}
	s.Status = Status(status)
	s.RotationInterval = time.Duration(seconds) * time.Second
	return s, nil
}

// MarkSessionStopped closes the class's session row.
func (r *Repository) MarkSessionStopped(ctx context.Context, classID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE qr_sessions SET status = $2, stopped_at = $3 WHERE class_id = $1
	`, classID, string(StatusStopped), at)
	return err
}

// TouchSession records the time of the latest accepted scan.
func (r *Repository) TouchSession(ctx context.Context, classID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE qr_sessions SET last_scan_at = $2 WHERE class_id = $1`, classID, at)
	return err
}

// AddScan records scan membership once per student record.
func (r *Repository) AddScan(ctx context.Context, classID int64, studentRecordID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO qr_scanned_students (class_id, student_record_id)
		VALUES ($1, $2)
		ON CONFLICT (class_id, student_record_id) DO NOTHING
	`, classID, studentRecordID)
	return err
}

// ScannedSet returns the student records that scanned in the current session.
func (r *Repository) ScannedSet(ctx context.Context, classID int64) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT student_record_id FROM qr_scanned_students WHERE class_id = $1`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// ActiveEnrollments lists a class's active roster records.
func (r *Repository) ActiveEnrollments(ctx context.Context, classID int64) ([]Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT class_id, student_record_id, COALESCE(student_id, '')
		FROM class_enrollments
		WHERE class_id = $1 AND status = 'active'
		ORDER BY student_record_id
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Enrollment
	for rows.Next() {
		e := Enrollment{Active: true}
		if err := rows.Scan(&e.ClassID, &e.StudentRecordID, &e.StudentID); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EnrollmentByStudent resolves a student account to its active roster record.
func (r *Repository) EnrollmentByStudent(ctx context.Context, classID int64, studentID string) (Enrollment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT class_id, student_record_id, student_id
		FROM class_enrollments
		WHERE class_id = $1 AND student_id = $2 AND status = 'active'
		LIMIT 1
	`, classID, studentID)
	e := Enrollment{Active: true}
	if err := row.Scan(&e.ClassID, &e.StudentRecordID, &e.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, domain.ErrNotEnrolled
		}
		return Enrollment{}, err
	}
	return e, nil
}

// UpsertEntry writes a mark, replacing whatever was there.
func (r *Repository) UpsertEntry(ctx context.Context, key EntryKey, status EntryStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_entries (class_id, student_record_id, attendance_date, status)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (class_id, student_record_id, attendance_date) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = NOW()
	`, key.ClassID, key.StudentRecordID, key.Date, string(status))
	return err
}

// InsertEntryIfAbsent writes a mark only when the key has none.
func (r *Repository) InsertEntryIfAbsent(ctx context.Context, key EntryKey, status EntryStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_entries (class_id, student_record_id, attendance_date, status)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (class_id, student_record_id, attendance_date) DO NOTHING
	`, key.ClassID, key.StudentRecordID, key.Date, string(status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
