// README: Base handler utilities (JSON helpers, error mapping, query parsing).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tourstay/internal/modules/calendar"
	"tourstay/internal/modules/departure"
	"tourstay/internal/modules/pricing"
	"tourstay/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors to HTTP status codes.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, departure.ErrBadRequest),
		errors.Is(err, calendar.ErrValidation),
		errors.Is(err, pricing.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, departure.ErrNotFound),
		errors.Is(err, departure.ErrReservationNotFound),
		errors.Is(err, calendar.ErrRoomNotFound),
		errors.Is(err, pricing.ErrHomestayNotFound),
		errors.Is(err, pricing.ErrRuleNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, departure.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, departure.ErrSoldOut),
		errors.Is(err, departure.ErrDepartureClosed),
		errors.Is(err, calendar.ErrUnavailable):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// optionalDay parses a YYYY-MM-DD query value; empty means unset.
func optionalDay(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	d, err := types.ParseDay(raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, key+" must be YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}
