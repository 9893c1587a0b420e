package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanDisplace(t *testing.T) {
	cases := []struct {
		name     string
		incoming Priority
		existing Priority
		want     bool
	}{
		{"emergency displaces paid", PriorityEmergency, PriorityPaid, true},
		{"emergency displaces follow-up", PriorityEmergency, PriorityFollowUp, true},
		{"paid displaces follow-up", PriorityPaid, PriorityFollowUp, true},
		{"follow-up never displaces paid", PriorityFollowUp, PriorityPaid, false},
		{"follow-up never displaces emergency", PriorityFollowUp, PriorityEmergency, false},
		{"paid never displaces emergency", PriorityPaid, PriorityEmergency, false},
		{"emergency never displaces emergency", PriorityEmergency, PriorityEmergency, false},
		{"paid never displaces paid", PriorityPaid, PriorityPaid, false},
		{"follow-up never displaces follow-up", PriorityFollowUp, PriorityFollowUp, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanDisplace(tc.incoming, tc.existing))
		})
	}
}

func TestRankOrdering(t *testing.T) {
	assert.Greater(t, Rank(PriorityEmergency), Rank(PriorityPaid))
	assert.Greater(t, Rank(PriorityPaid), Rank(PriorityFollowUp))
	assert.Greater(t, Rank(PriorityFollowUp), Rank(Priority("BOGUS")))
}
