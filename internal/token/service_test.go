package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewService(repo, NewLocalLocker(), zerolog.Nop()), repo
}

func createTestSlot(t *testing.T, svc *Service, capacity int) *Slot {
	t.Helper()
	ctx := context.Background()

	doc, err := svc.CreateDoctor(ctx, "Dr. Test", nil)
	require.NoError(t, err)

	start := time.Now().Add(time.Hour)
	slot, err := svc.CreateSlot(ctx, doc.ID, start, start.Add(time.Hour), capacity)
	require.NoError(t, err)
	return slot
}

func allocateTest(t *testing.T, svc *Service, slot *Slot, priority Priority) (*Token, error) {
	t.Helper()
	return svc.Allocate(context.Background(), AllocateParams{
		SlotID:    slot.ID,
		DoctorID:  slot.DoctorID,
		PatientID: uuid.New(),
		Priority:  priority,
		Source:    SourceWalkIn,
	})
}

func TestAllocateAssignsIncreasingSequences(t *testing.T) {
	svc, _ := newTestService(t)
	slot := createTestSlot(t, svc, 5)

	for i := 1; i <= 3; i++ {
		tok, err := allocateTest(t, svc, slot, PriorityFollowUp)
		require.NoError(t, err)
		assert.Equal(t, i, tok.SequenceNumber)
		assert.Equal(t, StatusActive, tok.Status)
	}
}

func TestAllocateUnknownSlot(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Allocate(context.Background(), AllocateParams{
		SlotID:    uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Priority:  PriorityPaid,
		Source:    SourceOnline,
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestAllocateCompletedSlotUnavailable(t *testing.T) {
	svc, _ := newTestService(t)
	slot := createTestSlot(t, svc, 2)

	_, err := svc.CompleteSlot(context.Background(), slot.ID)
	require.NoError(t, err)

	_, err = allocateTest(t, svc, slot, PriorityEmergency)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestAllocateFullSlotRejectsWithoutDisplacement(t *testing.T) {
	svc, repo := newTestService(t)
	slot := createTestSlot(t, svc, 2)
	ctx := context.Background()

	_, err := allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)
	_, err = allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)

	before, err := repo.ListActiveTokens(ctx, slot.ID)
	require.NoError(t, err)

	_, err = allocateTest(t, svc, slot, PriorityFollowUp)
	assert.ErrorIs(t, err, ErrSlotFull)

	after, err := repo.ListActiveTokens(ctx, slot.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, before, after, "rejected allocation must leave the active set unchanged")
}

// The spec scenario: capacity 3, three FOLLOW_UPs, then a PAID arrival.
// The newest FOLLOW_UP (seq 3) is displaced and the PAID gets seq 4.
func TestAllocateDisplacement(t *testing.T) {
	svc, repo := newTestService(t)
	slot := createTestSlot(t, svc, 3)
	ctx := context.Background()

	var followUps []*Token
	for i := 0; i < 3; i++ {
		tok, err := allocateTest(t, svc, slot, PriorityFollowUp)
		require.NoError(t, err)
		followUps = append(followUps, tok)
	}

	paid, err := allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)
	assert.Equal(t, 4, paid.SequenceNumber)

	displaced, err := repo.GetTokenByID(ctx, followUps[2].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDisplaced, displaced.Status)
	assert.Equal(t, 3, displaced.SequenceNumber, "victim keeps its sequence number")

	active, err := repo.ListActiveTokens(ctx, slot.ID)
	require.NoError(t, err)
	assert.Len(t, active, 3, "active count unchanged by displacement")

	seqs := make([]int, 0, len(active))
	for _, tok := range active {
		seqs = append(seqs, tok.SequenceNumber)
	}
	assert.ElementsMatch(t, []int{1, 2, 4}, seqs)
}

func TestAllocateEmergencyIntoEmergencyFullSlot(t *testing.T) {
	svc, _ := newTestService(t)
	slot := createTestSlot(t, svc, 3)

	_, err := allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)
	_, err = allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)
	_, err = allocateTest(t, svc, slot, PriorityEmergency)
	require.NoError(t, err)

	// PAID seq 2 is the lowest ranked candidate, so this EMERGENCY admits.
	_, err = allocateTest(t, svc, slot, PriorityEmergency)
	require.NoError(t, err)

	// Now {EMERGENCY seq 3, EMERGENCY seq 4, PAID seq 1}; another
	// EMERGENCY displaces the remaining PAID.
	_, err = allocateTest(t, svc, slot, PriorityEmergency)
	require.NoError(t, err)

	// All EMERGENCY: equal rank never displaces.
	_, err = allocateTest(t, svc, slot, PriorityEmergency)
	assert.ErrorIs(t, err, ErrSlotFull)
}

func TestAllocateWritesAuditTrail(t *testing.T) {
	svc, repo := newTestService(t)
	slot := createTestSlot(t, svc, 1)

	first, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)

	second, err := allocateTest(t, svc, slot, PriorityEmergency)
	require.NoError(t, err)

	audits := repo.Audits()
	require.Len(t, audits, 2)

	assert.Equal(t, AuditTokenAllocated, audits[0].Action)
	assert.Equal(t, first.ID, audits[0].TokenID)
	assert.Nil(t, audits[0].DisplacedTokenID)

	assert.Equal(t, second.ID, audits[1].TokenID)
	require.NotNil(t, audits[1].DisplacedTokenID)
	assert.Equal(t, first.ID, *audits[1].DisplacedTokenID)
}

func TestCancelLeavesOtherTokensAlone(t *testing.T) {
	svc, repo := newTestService(t)
	slot := createTestSlot(t, svc, 3)
	ctx := context.Background()

	a, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)
	b, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, a.SequenceNumber, cancelled.SequenceNumber)

	other, err := repo.GetTokenByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, other.Status)
	assert.Equal(t, b.SequenceNumber, other.SequenceNumber)
}

func TestCancelUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMarkNoShow(t *testing.T) {
	svc, _ := newTestService(t)
	slot := createTestSlot(t, svc, 2)

	tok, err := allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)

	updated, err := svc.MarkNoShow(context.Background(), tok.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, updated.Status)

	_, err = svc.MarkNoShow(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSequenceNotReusedAfterCancellation(t *testing.T) {
	svc, _ := newTestService(t)
	slot := createTestSlot(t, svc, 3)
	ctx := context.Background()

	a, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)
	b, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, b.ID)
	require.NoError(t, err)

	// Max over *active* tokens is a's seq 1, so the next token takes 2:
	// b's number may be reissued only because b is no longer active, and
	// an ACTIVE duplicate can never occur.
	c, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)
	assert.Greater(t, c.SequenceNumber, a.SequenceNumber)
}

func TestCompleteSlot(t *testing.T) {
	svc, repo := newTestService(t)
	slot := createTestSlot(t, svc, 3)
	ctx := context.Background()

	a, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)
	b, err := allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, a.ID)
	require.NoError(t, err)

	updated, err := svc.CompleteSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, SlotCompleted, updated.Status)

	completed, err := repo.GetTokenByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	// Cancelled token is untouched by completion.
	still, err := repo.GetTokenByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, still.Status)

	// Completing again finds no active tokens and does not error.
	_, err = svc.CompleteSlot(ctx, slot.ID)
	assert.NoError(t, err)

	_, err = svc.CompleteSlot(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestMarkDelayed(t *testing.T) {
	svc, _ := newTestService(t)
	slot := createTestSlot(t, svc, 2)
	ctx := context.Background()

	tok, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)

	updated, err := svc.MarkDelayed(ctx, slot.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.DelayMinutes)

	// Tokens untouched.
	queue, err := svc.Queue(ctx, slot.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, tok.ID, queue[0].ID)

	_, err = svc.MarkDelayed(ctx, uuid.New(), 5)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestQueueServingOrder(t *testing.T) {
	svc, _ := newTestService(t)
	slot := createTestSlot(t, svc, 5)
	ctx := context.Background()

	f1, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)
	p2, err := allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)
	e3, err := allocateTest(t, svc, slot, PriorityEmergency)
	require.NoError(t, err)
	p4, err := allocateTest(t, svc, slot, PriorityPaid)
	require.NoError(t, err)

	queue, err := svc.Queue(ctx, slot.ID)
	require.NoError(t, err)
	require.Len(t, queue, 4)

	assert.Equal(t, e3.ID, queue[0].ID)
	assert.Equal(t, p2.ID, queue[1].ID)
	assert.Equal(t, p4.ID, queue[2].ID)
	assert.Equal(t, f1.ID, queue[3].ID)
}

func TestReleaseCapacityDoesNotPromote(t *testing.T) {
	svc, repo := newTestService(t)
	slot := createTestSlot(t, svc, 1)
	ctx := context.Background()

	first, err := allocateTest(t, svc, slot, PriorityFollowUp)
	require.NoError(t, err)

	// Displace it, then cancel the winner: capacity is free again.
	winner, err := allocateTest(t, svc, slot, PriorityEmergency)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, winner.ID)
	require.NoError(t, err)

	remaining, err := svc.ReleaseCapacity(ctx, slot.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining, "displaced token must not be auto-promoted")

	displaced, err := repo.GetTokenByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDisplaced, displaced.Status)
}

// Concurrent non-displacing arrivals against one slot must never exceed
// capacity, and every admitted token must carry a distinct sequence number.
func TestConcurrentAllocationRespectsCapacity(t *testing.T) {
	svc, repo := newTestService(t)
	slot := createTestSlot(t, svc, 3)
	ctx := context.Background()

	const attempts = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted []*Token
		rejected int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := allocateTest(t, svc, slot, PriorityFollowUp)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrSlotFull)
				rejected++
				return
			}
			admitted = append(admitted, tok)
		}()
	}
	wg.Wait()

	assert.Len(t, admitted, 3, "exactly capacity admissions")
	assert.Equal(t, attempts-3, rejected)

	seen := make(map[int]bool)
	for _, tok := range admitted {
		assert.False(t, seen[tok.SequenceNumber], "sequence %d reused", tok.SequenceNumber)
		seen[tok.SequenceNumber] = true
	}

	active, err := repo.ListActiveTokens(ctx, slot.ID)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}
