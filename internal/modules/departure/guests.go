// README: Guest counter shared by occupancy aggregation and reservation validation.
package departure

// CountGuests sums the party; nil counts are zero.
func CountGuests(adults, children, infants *int) int {
	return deref(adults) + deref(children) + deref(infants)
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
