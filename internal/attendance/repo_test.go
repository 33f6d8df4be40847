package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendsheets/internal/domain"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewRepository(db), mock
}

var repoKey = EntryKey{ClassID: 7, StudentRecordID: "r1", Date: "2026-10-18"}

func TestRepository_InsertEntryIfAbsent(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO attendance_entries .* ON CONFLICT \(class_id, student_record_id, attendance_date\) DO NOTHING`).
		WithArgs(int64(7), "r1", "2026-10-18", "A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`ON CONFLICT .* DO NOTHING`).
		WithArgs(int64(7), "r1", "2026-10-18", "A").
		WillReturnResult(sqlmock.NewResult(0, 0))

	wrote, err := repo.InsertEntryIfAbsent(ctx, repoKey, Absent)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = repo.InsertEntryIfAbsent(ctx, repoKey, Absent)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestRepository_InsertEntryIfAbsentError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO attendance_entries`).WillReturnError(boom)

	wrote, err := repo.InsertEntryIfAbsent(context.Background(), repoKey, Absent)
	assert.ErrorIs(t, err, boom)
	assert.False(t, wrote)
}

func TestRepository_UpsertEntryOverwrites(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO attendance_entries .* ON CONFLICT \(class_id, student_record_id, attendance_date\) DO UPDATE SET status = EXCLUDED.status`).
		WithArgs(int64(7), "r1", "2026-10-18", "P").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertEntry(context.Background(), repoKey, Present))
}

func testSession() Session {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return Session{
		ID:               "s1",
		ClassID:          7,
		TeacherID:        "t1",
		Status:           StatusActive,
		CurrentCode:      "abc",
		RotationInterval: 30 * time.Second,
		CodeGeneratedAt:  now,
		AttendanceDate:   "2026-10-18",
		StartedAt:        now,
	}
}

func TestRepository_ReplaceSessionCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	s := testSession()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO qr_sessions .* ON CONFLICT \(class_id\) DO UPDATE`).
		WithArgs(int64(7), "s1", "t1", "ACTIVE", "abc", int64(30), s.CodeGeneratedAt, "2026-10-18", s.StartedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM qr_scanned_students WHERE class_id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceSession(context.Background(), s))
}

func TestRepository_ReplaceSessionRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO qr_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM qr_scanned_students`).WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.ReplaceSession(context.Background(), testSession())
	assert.ErrorIs(t, err, boom)
}

func TestRepository_ActiveSession(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	s := testSession()
	cols := []string{"class_id", "session_id", "teacher_id", "status", "current_code", "rotation_interval_seconds",
		"code_generated_at", "attendance_date", "started_at", "last_scan_at", "stopped_at"}

	mock.ExpectQuery(`FROM qr_sessions WHERE class_id = \$1 AND status = \$2`).
		WithArgs(int64(7), "ACTIVE").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(7), "s1", "t1", "ACTIVE", "abc", int64(30),
			s.CodeGeneratedAt, "2026-10-18", s.StartedAt, nil, nil))
	mock.ExpectQuery(`FROM qr_sessions`).
		WithArgs(int64(8), "ACTIVE").
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.ActiveSession(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = repo.ActiveSession(ctx, 8)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestRepository_ClassOwnerMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT teacher_id FROM classes WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id"}))

	_, err := repo.ClassOwner(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrClassNotFound)
}

func TestRepository_EnrollmentByStudentMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM class_enrollments WHERE class_id = \$1 AND student_id = \$2`).
		WithArgs(int64(7), "stu").
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "student_record_id", "student_id"}))

	_, err := repo.EnrollmentByStudent(context.Background(), 7, "stu")
	assert.ErrorIs(t, err, domain.ErrNotEnrolled)
}

func TestRepository_ScannedSet(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT student_record_id FROM qr_scanned_students`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"student_record_id"}).AddRow("r1").AddRow("r2"))

	set, err := repo.ScannedSet(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"r1": {}, "r2": {}}, set)
}
