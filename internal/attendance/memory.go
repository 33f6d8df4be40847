package attendance

import (
	"context"
	"sync"
	"time"

	"attendsheets/internal/domain"
)

// MemoryStore keeps classes, sessions and entries in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	owners      map[int64]string
	sessions    map[int64]Session
	scans       map[int64]map[string]struct{}
	enrollments map[int64]map[string]Enrollment
	entries     map[EntryKey]EntryStatus
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		owners:      make(map[int64]string),
		sessions:    make(map[int64]Session),
		scans:       make(map[int64]map[string]struct{}),
		enrollments: make(map[int64]map[string]Enrollment),
		entries:     make(map[EntryKey]EntryStatus),
	}
}

// AddClass registers classID as owned by teacherID.
func (m *MemoryStore) AddClass(classID int64, teacherID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[classID] = teacherID
}

// Enroll adds or replaces a roster record.
func (m *MemoryStore) Enroll(e Enrollment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byRecord, ok := m.enrollments[e.ClassID]
	if !ok {
		byRecord = make(map[string]Enrollment)
		m.enrollments[e.ClassID] = byRecord
	}
	byRecord[e.StudentRecordID] = e
}

// SetEntry writes a mark directly, the way a teacher editing the sheet would.
func (m *MemoryStore) SetEntry(key EntryKey, status EntryStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = status
}

// Entry returns the mark stored under key.
func (m *MemoryStore) Entry(key EntryKey) (EntryStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.entries[key]
	return st, ok
}

// Entries returns the number of stored marks.
func (m *MemoryStore) Entries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Session returns the class's session row in any state.
func (m *MemoryStore) Session(classID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[classID]
	return s, ok
}

func (m *MemoryStore) ClassOwner(_ context.Context, classID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[classID]
	if !ok {
		return "", domain.ErrClassNotFound
	}
	return owner, nil
}

func (m *MemoryStore) ReplaceSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ClassID] = s
	delete(m.scans, s.ClassID)
	return nil
}

func (m *MemoryStore) ActiveSession(_ context.Context, classID int64) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[classID]
	if !ok || s.Status != StatusActive {
		return Session{}, domain.ErrNoActiveSession
	}
	return s, nil
}

func (m *MemoryStore) MarkSessionStopped(_ context.Context, classID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[classID]
	if !ok {
		return domain.ErrNoActiveSession
	}
	s.Status = StatusStopped
	s.StoppedAt = &at
	m.sessions[classID] = s
	return nil
}

func (m *MemoryStore) TouchSession(_ context.Context, classID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[classID]
	if !ok {
		return domain.ErrNoActiveSession
	}
	s.LastScanAt = &at
	m.sessions[classID] = s
	return nil
}

func (m *MemoryStore) AddScan(_ context.Context, classID int64, studentRecordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.scans[classID]
	if !ok {
		set = make(map[string]struct{})
		m.scans[classID] = set
	}
	set[studentRecordID] = struct{}{}
	return nil
}

func (m *MemoryStore) ScannedSet(_ context.Context, classID int64) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{}, len(m.scans[classID]))
	for id := range m.scans[classID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *MemoryStore) ActiveEnrollments(_ context.Context, classID int64) ([]Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Enrollment
	for _, e := range m.enrollments[classID] {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) EnrollmentByStudent(_ context.Context, classID int64, studentID string) (Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.enrollments[classID] {
		if e.Active && e.StudentID != "" && e.StudentID == studentID {
			return e, nil
		}
	}
	return Enrollment{}, domain.ErrNotEnrolled
}

func (m *MemoryStore) UpsertEntry(_ context.Context, key EntryKey, status EntryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = status
	return nil
}

func (m *MemoryStore) InsertEntryIfAbsent(_ context.Context, key EntryKey, status EntryStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = status
	return true, nil
}
