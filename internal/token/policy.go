package token

var priorityRank = map[Priority]int{
	PriorityEmergency: 3,
	PriorityPaid:      2,
	PriorityFollowUp:  1,
}

// Rank returns the numeric rank of a priority class, higher is served
// first. Unknown priorities rank below FOLLOW_UP.
func Rank(p Priority) int {
	return priorityRank[p]
}

// CanDisplace reports whether an incoming arrival may displace an existing
// active token. EMERGENCY is an explicit override class; otherwise only a
// strictly higher rank displaces. Equal ranks never displace each other,
// including EMERGENCY vs EMERGENCY.
func CanDisplace(incoming, existing Priority) bool {
	if incoming == existing {
		return false
	}
	return incoming == PriorityEmergency || Rank(incoming) > Rank(existing)
}
