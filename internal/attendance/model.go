package attendance

import "time"

// Status is the lifecycle state of a class's QR session row.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusStopped Status = "STOPPED"
)

// EntryStatus is the mark stored for one student on one date.
type EntryStatus string

const (
	Present EntryStatus = "P"
	Absent  EntryStatus = "A"
	Late    EntryStatus = "L"
)

// DateLayout is the format of attendance dates.
const DateLayout = "2006-01-02"

// Session is the single QR session row kept per class. Starting a new session
// overwrites it.
type Session struct {
	ID               string
	ClassID          int64
	TeacherID        string
	Status           Status
	CurrentCode      string
	RotationInterval time.Duration
	CodeGeneratedAt  time.Time
	AttendanceDate   string
	StartedAt        time.Time
	LastScanAt       *time.Time
	StoppedAt        *time.Time
}

// Enrollment links a roster record of a class to a student account.
type Enrollment struct {
	ClassID         int64
	StudentRecordID string
	StudentID       string
	Active          bool
}

// EntryKey is the natural key of an attendance entry.
type EntryKey struct {
	ClassID         int64
	StudentRecordID string
	Date            string
}

// Snapshot is what callers see of a session.
type Snapshot struct {
	Active           bool       `json:"active"`
	SessionID        string     `json:"session_id,omitempty"`
	ClassID          int64      `json:"class_id,omitempty"`
	TeacherID        string     `json:"teacher_id,omitempty"`
	Status           Status     `json:"status,omitempty"`
	CurrentCode      string     `json:"current_code,omitempty"`
	RotationInterval int        `json:"rotation_interval,omitempty"`
	CodeGeneratedAt  *time.Time `json:"code_generated_at,omitempty"`
	ExpiresIn        int        `json:"expires_in"`
	AttendanceDate   string     `json:"attendance_date,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	LastScanAt       *time.Time `json:"last_scan_at,omitempty"`
	ScannedCount     int        `json:"scanned_count"`
}

// ScanResult is returned for an accepted scan.
type ScanResult struct {
	Date   string      `json:"date"`
	Status EntryStatus `json:"status"`
}

// StopResult summarizes reconciliation. Partial is set when some absent writes
// failed; AbsentCount only counts the writes that landed.
type StopResult struct {
	AbsentCount int    `json:"absent_count"`
	Date        string `json:"date"`
	Partial     bool   `json:"partial,omitempty"`
	Failed      int    `json:"failed,omitempty"`
}

// ExpiresIn is the display countdown for the current code, clamped at zero.
func (s Session) ExpiresIn(now time.Time) time.Duration {
	left := s.RotationInterval - now.Sub(s.CodeGeneratedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (s Session) snapshot(now time.Time, scanned int) Snapshot {
	generated := s.CodeGeneratedAt
	started := s.StartedAt
	return Snapshot{
		Active:           s.Status == StatusActive,
		SessionID:        s.ID,
		ClassID:          s.ClassID,
		TeacherID:        s.TeacherID,
		Status:           s.Status,
		CurrentCode:      s.CurrentCode,
		RotationInterval: int(s.RotationInterval / time.Second),
		CodeGeneratedAt:  &generated,
		ExpiresIn:        int(s.ExpiresIn(now) / time.Second),
		AttendanceDate:   s.AttendanceDate,
		StartedAt:        &started,
		LastScanAt:       s.LastScanAt,
		ScannedCount:     scanned,
	}
}
