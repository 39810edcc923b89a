// README: Price quote and pricing rule admin handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"tourstay/internal/modules/pricing"
	"tourstay/internal/types"
)

type PricingService interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (pricing.Quote, error)
	CreateRule(ctx context.Context, cmd pricing.CreateRuleCommand) (*pricing.Rule, error)
	SetRuleStatus(ctx context.Context, id types.ID, status pricing.RuleStatus) (*pricing.Rule, error)
	ListRules(ctx context.Context, homestayID types.ID) ([]pricing.Rule, error)
}

type PricingHandler struct {
	pricing PricingService
}

func NewPricingHandler(svc PricingService) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

type quoteReq struct {
	HomestayID string `json:"homestay_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Guests     int    `json:"guests"`
}

func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteReq
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
	q, err := h.pricing.Quote(c.Request.Context(), pricing.QuoteRequest{
		HomestayID: types.ID(req.HomestayID),
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Guests:     req.Guests,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}

func (h *PricingHandler) ListRules(c *gin.Context) {
	rules, err := h.pricing.ListRules(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if rules == nil {
		rules = []pricing.Rule{}
	}
	writeJSON(c, http.StatusOK, gin.H{"rules": rules})
}

type createRuleReq struct {
	Type              string  `json:"type"`
	Status            string  `json:"status"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date"`
	DaysOfWeek        []int   `json:"days_of_week"`
	MinimumNights     *int    `json:"minimum_nights"`
	MaximumNights     *int    `json:"maximum_nights"`
	MinimumGuests     *int    `json:"minimum_guests"`
	MaximumGuests     *int    `json:"maximum_guests"`
	AdjustmentType    string  `json:"adjustment_type"`
	AdjustmentValue   float64 `json:"adjustment_value"`
	Priority          int     `json:"priority"`
	IsRecursive       bool    `json:"is_recursive"`
	RecurrencePattern string  `json:"recurrence_pattern"`
}

func (h *PricingHandler) CreateRule(c *gin.Context) {
	var req createRuleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.pricing.CreateRule(c.Request.Context(), pricing.CreateRuleCommand{
		HomestayID:        types.ID(c.Param("id")),
		Type:              req.Type,
		Status:            pricing.RuleStatus(req.Status),
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		DaysOfWeek:        req.DaysOfWeek,
		MinimumNights:     req.MinimumNights,
		MaximumNights:     req.MaximumNights,
		MinimumGuests:     req.MinimumGuests,
		MaximumGuests:     req.MaximumGuests,
		AdjustmentType:    pricing.AdjustmentType(req.AdjustmentType),
		AdjustmentValue:   req.AdjustmentValue,
		Priority:          req.Priority,
		IsRecursive:       req.IsRecursive,
		RecurrencePattern: pricing.Recurrence(req.RecurrencePattern),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *PricingHandler) SetRuleStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "status is required")
		return
	}
	r, err := h.pricing.SetRuleStatus(c.Request.Context(), types.ID(c.Param("id")), pricing.RuleStatus(req.Status))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
