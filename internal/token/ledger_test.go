package token

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkToken(priority Priority, seq int) Token {
	return Token{
		ID:             uuid.New(),
		Priority:       priority,
		SequenceNumber: seq,
		Status:         StatusActive,
	}
}

func TestDecideBelowCapacity(t *testing.T) {
	active := []Token{mkToken(PriorityFollowUp, 1)}

	d := Decide(active, 3, PriorityFollowUp)
	assert.Equal(t, AdmitDirect, d.Outcome)
	assert.Nil(t, d.Victim)
}

func TestDecideEmptySlot(t *testing.T) {
	d := Decide(nil, 1, PriorityFollowUp)
	assert.Equal(t, AdmitDirect, d.Outcome)
}

func TestDecideZeroCapacityAlwaysRejects(t *testing.T) {
	for _, p := range []Priority{PriorityEmergency, PriorityPaid, PriorityFollowUp} {
		d := Decide(nil, 0, p)
		assert.Equal(t, Reject, d.Outcome, "priority %s", p)
	}
}

func TestDecideFullSlotRejectsEqualRank(t *testing.T) {
	active := []Token{
		mkToken(PriorityFollowUp, 1),
		mkToken(PriorityFollowUp, 2),
	}

	d := Decide(active, 2, PriorityFollowUp)
	assert.Equal(t, Reject, d.Outcome)
}

func TestDecideDisplacesNewestOfLowestClass(t *testing.T) {
	oldest := mkToken(PriorityFollowUp, 1)
	middle := mkToken(PriorityFollowUp, 2)
	newest := mkToken(PriorityFollowUp, 3)
	active := []Token{oldest, newest, middle}

	d := Decide(active, 3, PriorityPaid)
	require.Equal(t, AdmitWithDisplacement, d.Outcome)
	require.NotNil(t, d.Victim)
	assert.Equal(t, newest.ID, d.Victim.ID, "most recent arrival in the lowest class is displaced first")
}

func TestDecidePicksLowestRankBeforeSequence(t *testing.T) {
	followUp := mkToken(PriorityFollowUp, 1)
	paid := mkToken(PriorityPaid, 2)
	active := []Token{paid, followUp}

	d := Decide(active, 2, PriorityEmergency)
	require.Equal(t, AdmitWithDisplacement, d.Outcome)
	assert.Equal(t, followUp.ID, d.Victim.ID, "lower rank beats higher sequence")
}

func TestDecideEmergencyCannotDisplaceEmergency(t *testing.T) {
	active := []Token{
		mkToken(PriorityPaid, 1),
		mkToken(PriorityPaid, 2),
		mkToken(PriorityEmergency, 3),
	}

	// Lowest ranked is the PAID with seq 2; an EMERGENCY displaces it.
	d := Decide(active, 3, PriorityEmergency)
	require.Equal(t, AdmitWithDisplacement, d.Outcome)
	assert.Equal(t, PriorityPaid, d.Victim.Priority)

	// All EMERGENCY: equal rank never displaces, so the slot is full.
	allEmergency := []Token{
		mkToken(PriorityEmergency, 1),
		mkToken(PriorityEmergency, 2),
		mkToken(PriorityEmergency, 3),
	}
	d = Decide(allEmergency, 3, PriorityEmergency)
	assert.Equal(t, Reject, d.Outcome)
}

func TestNextSequence(t *testing.T) {
	assert.Equal(t, 1, NextSequence(nil))

	active := []Token{
		mkToken(PriorityFollowUp, 1),
		mkToken(PriorityFollowUp, 4),
		mkToken(PriorityPaid, 2),
	}
	// Max over active, not count: gaps from cancelled tokens are kept.
	assert.Equal(t, 5, NextSequence(active))
}

func TestServingOrder(t *testing.T) {
	e2 := mkToken(PriorityEmergency, 2)
	p3 := mkToken(PriorityPaid, 3)
	p5 := mkToken(PriorityPaid, 5)
	f1 := mkToken(PriorityFollowUp, 1)

	got := ServingOrder([]Token{p5, f1, e2, p3})

	require.Len(t, got, 4)
	assert.Equal(t, e2.ID, got[0].ID)
	assert.Equal(t, p3.ID, got[1].ID)
	assert.Equal(t, p5.ID, got[2].ID)
	assert.Equal(t, f1.ID, got[3].ID)
}

func TestServingOrderDoesNotMutateInput(t *testing.T) {
	in := []Token{mkToken(PriorityFollowUp, 2), mkToken(PriorityEmergency, 1)}
	first := in[0].ID

	_ = ServingOrder(in)
	assert.Equal(t, first, in[0].ID)
}
