// README: Room calendar handlers (public read, caller holds, admin batch write).
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tourstay/internal/modules/calendar"
	"tourstay/internal/types"
)

type CalendarService interface {
	ApplyEntries(ctx context.Context, room types.ID, entries []calendar.EntryInput, overwriteRange bool) (calendar.ApplyResult, error)
	ReadAvailability(ctx context.Context, room types.ID, start, end *time.Time) ([]calendar.DayAvailability, error)
	Hold(ctx context.Context, room types.ID, checkIn, checkOut time.Time, units int) error
	Release(ctx context.Context, room types.ID, checkIn, checkOut time.Time, units int) error
}

type CalendarHandler struct {
	calendar CalendarService
}

func NewCalendarHandler(svc CalendarService) *CalendarHandler {
	return &CalendarHandler{calendar: svc}
}

// Read accepts start, end and days; days is ignored when end is given.
func (h *CalendarHandler) Read(c *gin.Context) {
	start, ok := optionalDay(c, "start")
	if !ok {
		return
	}
	end, ok := optionalDay(c, "end")
	if !ok {
		return
	}
	if raw := c.Query("days"); raw != "" && end == nil {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			writeError(c, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		from := types.Today()
		if start != nil {
			from = *start
		}
		to := types.AddDays(from, days)
		end = &to
	}

	room := types.ID(c.Param("id"))
	out, err := h.calendar.ReadAvailability(c.Request.Context(), room, start, end)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"room_id": room, "days": out})
}

type applyEntriesReq struct {
	Entries        []calendar.EntryInput `json:"entries"`
	OverwriteRange bool                  `json:"overwrite_range"`
}

func (h *CalendarHandler) Apply(c *gin.Context) {
	var req applyEntriesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := h.calendar.ApplyEntries(c.Request.Context(), types.ID(c.Param("id")), req.Entries, req.OverwriteRange)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"room_id":  res.RoomID,
		"from":     res.From.Format(types.DayLayout),
		"to":       res.To.Format(types.DayLayout),
		"upserted": res.Upserted,
		"deleted":  res.Deleted,
	})
}

type holdReq struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Units    int    `json:"units"`
}

func (h *CalendarHandler) Hold(c *gin.Context) {
	h.stay(c, http.StatusCreated, h.calendar.Hold)
}

func (h *CalendarHandler) Release(c *gin.Context) {
	h.stay(c, http.StatusOK, h.calendar.Release)
}

// stay parses a check_in/check_out night range and applies fn to it.
func (h *CalendarHandler) stay(c *gin.Context, status int, fn func(context.Context, types.ID, time.Time, time.Time, int) error) {
	var req holdReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	checkIn, err := types.ParseDay(req.CheckIn)
	if err != nil {
		writeError(c, http.StatusBadRequest, "check_in must be YYYY-MM-DD")
		return
	}
	checkOut, err := types.ParseDay(req.CheckOut)
	if err != nil {
		writeError(c, http.StatusBadRequest, "check_out must be YYYY-MM-DD")
		return
	}
	room := types.ID(c.Param("id"))
	if err := fn(c.Request.Context(), room, checkIn, checkOut, req.Units); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, status, gin.H{
		"room_id":   room,
		"check_in":  checkIn.Format(types.DayLayout),
		"check_out": checkOut.Format(types.DayLayout),
		"units":     req.Units,
	})
}
