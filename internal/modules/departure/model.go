// README: Departure capacity record, reservation and status definitions.
package departure

import (
	"time"

	"tourstay/internal/types"
)

type Status string

const (
	StatusScheduled       Status = "SCHEDULED"
	StatusLowAvailability Status = "LOW_AVAILABILITY"
	StatusSoldOut         Status = "SOLD_OUT"
	StatusCancelled       Status = "CANCELLED"
	StatusCompleted       Status = "COMPLETED"
)

// Terminal statuses are never overwritten by capacity math.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationRejected  ReservationStatus = "REJECTED"
)

// ActiveReservationStatuses is the fixed set of statuses that consume seats.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationCompleted,
}

func (s ReservationStatus) Active() bool {
	for _, a := range ActiveReservationStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCompleted, ReservationCancelled, ReservationRejected:
		return true
	}
	return false
}

type Departure struct {
	ID             types.ID
	TourID         types.ID
	DepartureDate  time.Time
	SeatsTotal     int
	SeatsAvailable int
	Status         Status
	UpdatedAt      time.Time
}

// Reservation is owned by the verified caller (OwnerUID) that created it.
type Reservation struct {
	ID          types.ID
	DepartureID types.ID
	OwnerUID    string
	Adults      *int
	Children    *int
	Infants     *int
	Status      ReservationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r Reservation) Guests() int {
	return CountGuests(r.Adults, r.Children, r.Infants)
}

// ReservationLine is the projection the occupancy aggregator needs.
type ReservationLine struct {
	DepartureID types.ID
	Adults      *int
	Children    *int
	Infants     *int
}

// Availability is the result of one recompute, kept for logging and API output.
type Availability struct {
	DepartureID    types.ID `json:"departure_id"`
	SeatsAvailable int      `json:"seats_available"`
	SeatsTotal     int      `json:"seats_total"`
	Status         Status   `json:"status"`
	BookedGuests   int      `json:"booked_guests"`
	LowThreshold   int      `json:"low_threshold"`
}
