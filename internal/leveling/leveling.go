// Package leveling maps a point balance to a user level.
package leveling

// Threshold is the number of points each level spans.
const Threshold = 190

// Level returns floor(balance/Threshold)+1, never less than 1. It is a pure
// function of the balance, so a balance that drops lowers the level too.
func Level(balance int64) int {
	if balance < Threshold {
		return 1
	}
	return int(balance/Threshold) + 1
}

// NextLevelAt returns the balance at which the level after Level(balance)
// is reached.
func NextLevelAt(balance int64) int64 {
	return int64(Level(balance)) * Threshold
}
