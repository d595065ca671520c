package attendance

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/sentinel"
)

// MemoryStore keeps everything in process memory. Each session has its own
// mutex so WithinSession serializes per session, like a row lock.
type MemoryStore struct {
	mu            sync.RWMutex
	professionals map[string]Professional
	byCode        map[string]string
	byEmail       map[string]string
	byRegCode     map[string]string
	sessions      map[string]Session
	locks         map[string]*sync.Mutex
	checkins      map[string][]CheckinRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		professionals: make(map[string]Professional),
		byCode:        make(map[string]string),
		byEmail:       make(map[string]string),
		byRegCode:     make(map[string]string),
		sessions:      make(map[string]Session),
		locks:         make(map[string]*sync.Mutex),
		checkins:      make(map[string][]CheckinRecord),
	}
}

func (m *MemoryStore) CreateProfessional(_ context.Context, p Professional) (Professional, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[p.Code]; ok {
		return Professional{}, ErrDuplicateCode
	}
	if _, ok := m.byEmail[p.Email]; ok {
		return Professional{}, ErrDuplicateEmail
	}
	if p.RegistrationCode != "" {
		if _, ok := m.byRegCode[p.RegistrationCode]; ok {
			return Professional{}, ErrRegistrationCodeTaken
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.professionals[p.ID] = p
	m.byCode[p.Code] = p.ID
	m.byEmail[p.Email] = p.ID
	if p.RegistrationCode != "" {
		m.byRegCode[p.RegistrationCode] = p.ID
	}
	return p, nil
}

func (m *MemoryStore) ProfessionalByCode(_ context.Context, code string) (Professional, error) {
	return m.professionalBy(m.byCode, code)
}

func (m *MemoryStore) ProfessionalByEmail(_ context.Context, email string) (Professional, error) {
	return m.professionalBy(m.byEmail, email)
}

func (m *MemoryStore) professionalBy(index map[string]string, key string) (Professional, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := index[key]
	if !ok {
		return Professional{}, sentinel.ErrNotFound
	}
	return m.professionals[id], nil
}

func (m *MemoryStore) ListProfessionals(_ context.Context) ([]Professional, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Professional, 0, len(m.professionals))
	for _, p := range m.professionals {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Professional) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = s.CreatedAt
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	m.sessions[s.ID] = s
	m.locks[s.ID] = &sync.Mutex{}
	return s, nil
}

func (m *MemoryStore) Session(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, sentinel.ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListSessions(_ context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Session) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *MemoryStore) ListCheckins(_ context.Context, sessionID string) ([]CheckinView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.checkins[sessionID]
	out := make([]CheckinView, 0, len(recs))
	for _, r := range recs {
		out = append(out, viewOf(r, m.professionals[r.ProfessionalID]))
	}
	slices.SortFunc(out, func(a, b CheckinView) int { return a.Sequence - b.Sequence })
	return out, nil
}

func (m *MemoryStore) WithinSession(ctx context.Context, sessionID string, fn func(tx SessionTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	lock, ok := m.locks[sessionID]
	m.mu.RUnlock()
	if !ok {
		return sentinel.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	sess := m.sessions[sessionID]
	m.mu.RUnlock()

	tx := &memoryTx{store: m, session: sess}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memoryTx buffers writes until commit.
type memoryTx struct {
	store     *MemoryStore
	session   Session
	pending   []CheckinRecord
	completed bool
}

func (tx *memoryTx) Session() Session { return tx.session }

func (tx *memoryTx) committed() []CheckinRecord {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	return tx.store.checkins[tx.session.ID]
}

func (tx *memoryTx) CountCheckins(_ context.Context) (int, error) {
	return len(tx.committed()) + len(tx.pending), nil
}

func (tx *memoryTx) CheckinExists(_ context.Context, professionalID string) (bool, error) {
	for _, r := range append(slices.Clone(tx.committed()), tx.pending...) {
		if r.ProfessionalID == professionalID {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) InsertCheckin(_ context.Context, rec CheckinRecord) (CheckinRecord, error) {
	for _, r := range append(slices.Clone(tx.committed()), tx.pending...) {
		if r.ProfessionalID == rec.ProfessionalID {
			return CheckinRecord{}, ErrDuplicateCheckin
		}
		if r.Sequence == rec.Sequence {
			return CheckinRecord{}, sentinel.Newf(sentinel.ErrConflict, "sequence %d already assigned", rec.Sequence)
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.EnteredAt.IsZero() {
		rec.EnteredAt = time.Now().UTC()
	}
	rec.SessionID = tx.session.ID
	tx.pending = append(tx.pending, rec)
	return rec, nil
}

func (tx *memoryTx) Complete(_ context.Context, endedAt time.Time, duration string) (Session, error) {
	tx.session.Status = StatusCompleted
	tx.session.EndedAt = &endedAt
	tx.session.Duration = &duration
	tx.completed = true
	return tx.session, nil
}

func (tx *memoryTx) commit() {
	m := tx.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(tx.pending) > 0 {
		m.checkins[tx.session.ID] = append(m.checkins[tx.session.ID], tx.pending...)
	}
	if tx.completed {
		m.sessions[tx.session.ID] = tx.session
	}
}
