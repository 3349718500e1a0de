package core

// transitions lists the allowed lifecycle moves. Emptying the trash is not a
// transition: it removes the note.
var transitions = map[State][]State{
	StateActive:   {StateArchived, StateTrashed},
	StateArchived: {StateActive, StateTrashed},
	StateTrashed:  {StateActive},
}

// CanTransition reports whether a note in state from may move to state to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// activeDelta is the change to a kind's active counter when a note moves
// from old to new: +1 entering Active, -1 leaving it, 0 otherwise.
func activeDelta(old, new State) int {
	switch {
	case old != StateActive && new == StateActive:
		return 1
	case old == StateActive && new != StateActive:
		return -1
	default:
		return 0
	}
}
