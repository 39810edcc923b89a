// README: Occupancy aggregator; sums active reservation guests per departure.
package departure

import (
	"context"

	"tourstay/internal/types"
)

// ReservationFinder returns reservation lines in ActiveReservationStatuses for the given departures.
type ReservationFinder interface {
	FindActiveReservations(ctx context.Context, departureIDs []types.ID) ([]ReservationLine, error)
}

// BookedGuests maps departure id to booked guests. Departures with no active guests are absent.
func BookedGuests(ctx context.Context, finder ReservationFinder, ids ...types.ID) (map[types.ID]int, error) {
	booked := make(map[types.ID]int)
	if len(ids) == 0 {
		return booked, nil
	}
	lines, err := finder.FindActiveReservations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		n := CountGuests(l.Adults, l.Children, l.Infants)
		if n == 0 {
			continue
		}
		booked[l.DepartureID] += n
	}
	return booked, nil
}
