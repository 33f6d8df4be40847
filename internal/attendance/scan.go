package attendance

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"attendsheets/internal/domain"
	"attendsheets/internal/metrics"
)

// Scan marks student Present for the session's date. Replaying the same scan only
// re-confirms Present and leaves one membership record.
func (e *Engine) Scan(ctx context.Context, student domain.Identity, classID int64, code string) (ScanResult, error) {
	res, err := e.scan(ctx, student, classID, code)
	metrics.Scans.WithLabelValues(scanResult(err)).Inc()
	return res, err
}

func (e *Engine) scan(ctx context.Context, student domain.Identity, classID int64, code string) (ScanResult, error) {
	if !student.IsStudent() {
		return ScanResult{}, domain.ErrNotStudent
	}

	unlock := e.lock(classID)
	defer unlock()

	s, err := e.store.ActiveSession(ctx, classID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			return ScanResult{}, err
		}
		return ScanResult{}, domain.Internal("load session", err)
	}
	if subtle.ConstantTimeCompare([]byte(s.CurrentCode), []byte(code)) != 1 {
		return ScanResult{}, domain.ErrInvalidCode
	}

	enr, err := e.store.EnrollmentByStudent(ctx, classID, student.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotEnrolled) {
			return ScanResult{}, err
		}
		return ScanResult{}, domain.Internal("load enrollment", err)
	}

	key := EntryKey{ClassID: classID, StudentRecordID: enr.StudentRecordID, Date: s.AttendanceDate}
	if err := e.store.UpsertEntry(ctx, key, Present); err != nil {
		return ScanResult{}, domain.Internal("mark present", err)
	}
	if err := e.store.AddScan(ctx, classID, enr.StudentRecordID); err != nil {
		return ScanResult{}, domain.Internal("record scan", err)
	}
	if err := e.store.TouchSession(ctx, classID, e.now()); err != nil {
		e.log.Warn("failed to update last scan time", zap.Int64("class_id", classID), zap.Error(err))
	}
	return ScanResult{Date: s.AttendanceDate, Status: Present}, nil
}

func scanResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoActiveSession):
		return "no_session"
	case errors.Is(err, domain.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, domain.ErrNotEnrolled):
		return "not_enrolled"
	case errors.Is(err, domain.ErrNotStudent):
		return "not_student"
	default:
		return "error"
	}
}
