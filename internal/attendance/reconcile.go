package attendance

import (
	"context"

	"go.uber.org/zap"

	"attendsheets/internal/domain"
	"attendsheets/internal/metrics"
)

// reconcile marks Absent every active enrollment that neither scanned nor already
// has an entry for the session date. A failed write is counted and skipped; the
// writes that landed stay.
func (e *Engine) reconcile(ctx context.Context, s Session) (StopResult, error) {
	res := StopResult{Date: s.AttendanceDate}

	enrolled, err := e.store.ActiveEnrollments(ctx, s.ClassID)
	if err != nil {
		return res, domain.Internal("load enrollments", err)
	}
	scanned, err := e.store.ScannedSet(ctx, s.ClassID)
	if err != nil {
		return res, domain.Internal("load scans", err)
	}

	for _, enr := range enrolled {
		if _, ok := scanned[enr.StudentRecordID]; ok {
			continue
		}
		key := EntryKey{ClassID: s.ClassID, StudentRecordID: enr.StudentRecordID, Date: s.AttendanceDate}
		inserted, err := e.store.InsertEntryIfAbsent(ctx, key, Absent)
		if err != nil {
			res.Failed++
			metrics.ReconcileFailures.Inc()
			e.log.Warn("absent mark failed",
				zap.Int64("class_id", s.ClassID),
				zap.String("student_record_id", enr.StudentRecordID),
				zap.Error(err))
			continue
		}
		if inserted {
			res.AbsentCount++
		}
	}

	res.Partial = res.Failed > 0
	metrics.AbsentMarked.Add(float64(res.AbsentCount))
	return res, nil
}
