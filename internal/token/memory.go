package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a map-backed Repository used by tests and local
// development. All methods copy on the way out so callers never share
// internal state.
type MemoryRepository struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]Doctor
	slots   map[uuid.UUID]Slot
	tokens  map[uuid.UUID]Token
	audits  []AuditRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors: make(map[uuid.UUID]Doctor),
		slots:   make(map[uuid.UUID]Slot),
		tokens:  make(map[uuid.UUID]Token),
	}
}

func (r *MemoryRepository) CreateDoctor(ctx context.Context, name string, specialization *string) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	d := Doctor{
		ID:             uuid.New(),
		Name:           name,
		Specialization: specialization,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.doctors[d.ID] = d
	return &d, nil
}

func (r *MemoryRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, capacity int) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	s := Slot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		Capacity:  capacity,
		Status:    SlotScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.slots[s.ID] = s
	return &s, nil
}

func (r *MemoryRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	r.slots[id] = s
	return &s, nil
}

func (r *MemoryRepository) UpdateSlotDelay(ctx context.Context, id uuid.UUID, delayMinutes int) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.DelayMinutes = delayMinutes
	s.UpdatedAt = time.Now()
	r.slots[id] = s
	return &s, nil
}

func (r *MemoryRepository) ListActiveTokens(ctx context.Context, slotID uuid.UUID) ([]Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Token
	for _, t := range r.tokens {
		if t.SlotID == slotID && t.Status == StatusActive {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *MemoryRepository) GetTokenByID(ctx context.Context, id uuid.UUID) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) CreateToken(ctx context.Context, t Token) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.tokens[t.ID] = t
	return &t, nil
}

func (r *MemoryRepository) UpdateTokenStatus(ctx context.Context, id uuid.UUID, status Status) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	r.tokens[id] = t
	return &t, nil
}

func (r *MemoryRepository) CompleteActiveTokens(ctx context.Context, slotID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, t := range r.tokens {
		if t.SlotID == slotID && t.Status == StatusActive {
			t.Status = StatusCompleted
			t.UpdatedAt = time.Now()
			r.tokens[id] = t
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) InsertAudit(ctx context.Context, rec AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.ID = int64(len(r.audits) + 1)
	rec.CreatedAt = time.Now()
	r.audits = append(r.audits, rec)
	return nil
}

// Audits returns a copy of the audit trail, oldest first.
func (r *MemoryRepository) Audits() []AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AuditRecord, len(r.audits))
	copy(out, r.audits)
	return out
}

// InTx runs fn directly; the per-call mutexes on each method already give
// single-statement atomicity, and the slot lock serializes multi-statement
// units the way the Redis locker does in production.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	return fn(r)
}

// LocalLocker serializes slot access with in-process mutexes. It stands in
// for the Redis locker in tests and single-node setups.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *LocalLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[slotID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[slotID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}
