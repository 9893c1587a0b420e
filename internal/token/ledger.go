package token

import "sort"

// Outcome is the admission decision for one allocation attempt.
type Outcome int

const (
	AdmitDirect Outcome = iota
	AdmitWithDisplacement
	Reject
)

// Decision is the result of consulting the capacity ledger. Victim is set
// only for AdmitWithDisplacement.
type Decision struct {
	Outcome Outcome
	Victim  *Token
}

// Decide determines the admission outcome for an incoming priority given
// the slot's currently active tokens and its capacity.
//
// Below capacity the arrival is admitted directly. At capacity the lowest
// ranked active token is the displacement candidate: lowest priority rank
// first, and among equal priority the highest sequence number, so the most
// recent arrival in the lowest class is displaced first. If the incoming
// priority cannot displace that candidate the attempt is rejected. A zero
// capacity slot rejects every attempt.
func Decide(active []Token, capacity int, incoming Priority) Decision {
	if len(active) < capacity {
		return Decision{Outcome: AdmitDirect}
	}

	victim := lowestRanked(active)
	if victim == nil || !CanDisplace(incoming, victim.Priority) {
		return Decision{Outcome: Reject}
	}

	return Decision{Outcome: AdmitWithDisplacement, Victim: victim}
}

// NextSequence computes the sequence number for a new token: one past the
// highest sequence among the tokens active before this admission, or 1 for
// an empty slot. Cancelled or displaced tokens keep their numbers, so
// sequences can have gaps; they are never reused.
func NextSequence(active []Token) int {
	max := 0
	for _, t := range active {
		if t.SequenceNumber > max {
			max = t.SequenceNumber
		}
	}
	return max + 1
}

func lowestRanked(active []Token) *Token {
	if len(active) == 0 {
		return nil
	}

	sorted := make([]Token, len(active))
	copy(sorted, active)
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := Rank(sorted[i].Priority), Rank(sorted[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].SequenceNumber > sorted[j].SequenceNumber
	})

	return &sorted[0]
}

// ServingOrder sorts tokens the way patients are called: priority rank
// descending, then sequence number ascending.
func ServingOrder(tokens []Token) []Token {
	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := Rank(sorted[i].Priority), Rank(sorted[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})
	return sorted
}
