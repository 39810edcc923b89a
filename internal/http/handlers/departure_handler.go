// README: Departure availability and reservation lifecycle handlers.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tourstay/internal/http/middleware"
	"tourstay/internal/modules/departure"
	"tourstay/internal/types"
)

type DepartureService interface {
	Get(ctx context.Context, id types.ID) (*departure.Departure, error)
	Recalculate(ctx context.Context, id types.ID) (departure.Availability, error)
	RecalculateMany(ctx context.Context, ids []types.ID) ([]departure.Availability, error)
	Cancel(ctx context.Context, id types.ID) (*departure.Departure, error)
	Complete(ctx context.Context, id types.ID) (*departure.Departure, error)
	CreateDeparture(ctx context.Context, cmd departure.CreateDepartureCommand) (*departure.Departure, error)
	GetReservation(ctx context.Context, id types.ID, actor departure.Actor) (*departure.Reservation, error)
	CreateReservation(ctx context.Context, cmd departure.CreateReservationCommand) (*departure.Reservation, departure.Availability, error)
	UpdateReservation(ctx context.Context, cmd departure.UpdateReservationCommand) (*departure.Reservation, departure.Availability, error)
	ChangeReservationStatus(ctx context.Context, cmd departure.ChangeReservationStatusCommand) (*departure.Reservation, departure.Availability, error)
	DeleteReservation(ctx context.Context, id types.ID) (departure.Availability, error)
}

type DepartureHandler struct {
	departures DepartureService
}

func NewDepartureHandler(svc DepartureService) *DepartureHandler {
	return &DepartureHandler{departures: svc}
}

type departureResp struct {
	ID             types.ID         `json:"id"`
	TourID         types.ID         `json:"tour_id"`
	DepartureDate  string           `json:"departure_date"`
	SeatsTotal     int              `json:"seats_total"`
	SeatsAvailable int              `json:"seats_available"`
	Status         departure.Status `json:"status"`
	LowThreshold   int              `json:"low_threshold"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func toDepartureResp(d *departure.Departure) departureResp {
	return departureResp{
		ID:             d.ID,
		TourID:         d.TourID,
		DepartureDate:  d.DepartureDate.Format(types.DayLayout),
		SeatsTotal:     d.SeatsTotal,
		SeatsAvailable: d.SeatsAvailable,
		Status:         d.Status,
		LowThreshold:   departure.LowThreshold(d.SeatsTotal),
		UpdatedAt:      d.UpdatedAt,
	}
}

type reservationResp struct {
	ID           types.ID                    `json:"id"`
	DepartureID  types.ID                    `json:"departure_id"`
	OwnerUID     string                      `json:"owner_uid"`
	Adults       *int                        `json:"adults"`
	Children     *int                        `json:"children"`
	Infants      *int                        `json:"infants"`
	Guests       int                         `json:"guests"`
	Status       departure.ReservationStatus `json:"status"`
	Availability departure.Availability      `json:"availability"`
}

func toReservationResp(r *departure.Reservation, a departure.Availability) reservationResp {
	return reservationResp{
		ID:           r.ID,
		DepartureID:  r.DepartureID,
		OwnerUID:     r.OwnerUID,
		Adults:       r.Adults,
		Children:     r.Children,
		Infants:      r.Infants,
		Guests:       r.Guests(),
		Status:       r.Status,
		Availability: a,
	}
}

// actor is the verified caller; Auth must run first.
func actor(c *gin.Context) departure.Actor {
	return departure.Actor{
		UID:   middleware.CallerUID(c),
		Admin: middleware.CallerRole(c) == middleware.RoleAdmin,
	}
}

// GetAvailability serves the cached capacity row; it never recomputes.
func (h *DepartureHandler) GetAvailability(c *gin.Context) {
	d, err := h.departures.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDepartureResp(d))
}

func (h *DepartureHandler) Recalculate(c *gin.Context) {
	a, err := h.departures.Recalculate(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

type recalculateManyReq struct {
	DepartureIDs []types.ID `json:"departure_ids"`
}

func (h *DepartureHandler) RecalculateMany(c *gin.Context) {
	var req recalculateManyReq
	if err := c.ShouldBindJSON(&req); err != nil || len(req.DepartureIDs) == 0 {
		writeError(c, http.StatusBadRequest, "departure_ids is required")
		return
	}
	out, err := h.departures.RecalculateMany(c.Request.Context(), req.DepartureIDs)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"departures": out})
}

func (h *DepartureHandler) Cancel(c *gin.Context) {
	h.terminal(c, h.departures.Cancel)
}

func (h *DepartureHandler) Complete(c *gin.Context) {
	h.terminal(c, h.departures.Complete)
}

func (h *DepartureHandler) terminal(c *gin.Context, fn func(context.Context, types.ID) (*departure.Departure, error)) {
	d, err := fn(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDepartureResp(d))
}

type createDepartureReq struct {
	TourID        string `json:"tour_id"`
	DepartureDate string `json:"departure_date"`
	SeatsTotal    int    `json:"seats_total"`
}

func (h *DepartureHandler) CreateDeparture(c *gin.Context) {
	var req createDepartureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	date, err := types.ParseDay(req.DepartureDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, "departure_date must be YYYY-MM-DD")
		return
	}
	d, err := h.departures.CreateDeparture(c.Request.Context(), departure.CreateDepartureCommand{
		TourID:        types.ID(req.TourID),
		DepartureDate: date,
		SeatsTotal:    req.SeatsTotal,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toDepartureResp(d))
}

// GetReservation answers the reservation owner or an admin.
func (h *DepartureHandler) GetReservation(c *gin.Context) {
	r, err := h.departures.GetReservation(c.Request.Context(), types.ID(c.Param("id")), actor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toReservationResp(r, departure.Availability{}))
}

type createReservationReq struct {
	DepartureID string `json:"departure_id"`
	Adults      *int   `json:"adults"`
	Children    *int   `json:"children"`
	Infants     *int   `json:"infants"`
	Status      string `json:"status"`
}

func (h *DepartureHandler) CreateReservation(c *gin.Context) {
	var req createReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, a, err := h.departures.CreateReservation(c.Request.Context(), departure.CreateReservationCommand{
		DepartureID: types.ID(req.DepartureID),
		OwnerUID:    middleware.CallerUID(c),
		Adults:      req.Adults,
		Children:    req.Children,
		Infants:     req.Infants,
		Status:      departure.ReservationStatus(strings.ToUpper(req.Status)),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toReservationResp(r, a))
}

type updateReservationReq struct {
	Adults   *int `json:"adults"`
	Children *int `json:"children"`
	Infants  *int `json:"infants"`
}

func (h *DepartureHandler) UpdateReservation(c *gin.Context) {
	var req updateReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, a, err := h.departures.UpdateReservation(c.Request.Context(), departure.UpdateReservationCommand{
		ReservationID: types.ID(c.Param("id")),
		Actor:         actor(c),
		Adults:        req.Adults,
		Children:      req.Children,
		Infants:       req.Infants,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toReservationResp(r, a))
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *DepartureHandler) ChangeReservationStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "status is required")
		return
	}
	r, a, err := h.departures.ChangeReservationStatus(c.Request.Context(), departure.ChangeReservationStatusCommand{
		ReservationID: types.ID(c.Param("id")),
		Actor:         actor(c),
		Status:        departure.ReservationStatus(strings.ToUpper(req.Status)),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toReservationResp(r, a))
}

func (h *DepartureHandler) DeleteReservation(c *gin.Context) {
	a, err := h.departures.DeleteReservation(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deleted": c.Param("id"), "availability": a})
}
