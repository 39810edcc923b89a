// README: Departure status derivation from remaining seats.
package departure

// LowThreshold is max(1, floor(seatsTotal*20%)).
func LowThreshold(seatsTotal int) int {
	t := seatsTotal / 5
	if t < 1 {
		return 1
	}
	return t
}

func DeriveStatus(current Status, seatsRemaining, seatsTotal int) Status {
	if current.Terminal() {
		return current
	}
	if seatsRemaining <= 0 {
		return StatusSoldOut
	}
	if seatsRemaining <= LowThreshold(seatsTotal) {
		return StatusLowAvailability
	}
	return StatusScheduled
}
