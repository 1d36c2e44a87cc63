package referrals

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
	"github.com/meridian-remit/backend/pkg/response"
)

// RuleRequest is the body for POST/PUT /api/referral-rules.
type RuleRequest struct {
	BaseCurrency   string          `json:"base_currency" binding:"required"`
	RewardAmount   decimal.Decimal `json:"reward_amount" binding:"required"`
	RewardCurrency string          `json:"reward_currency" binding:"required"`
	MinTransaction decimal.Decimal `json:"min_transaction"`
	Status         string          `json:"status"`
}

// Handler handles referral rule HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a referral rule handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /api/referral-rules. At most one rule may exist per
// base currency.
func (h *Handler) Create(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	existing, err := h.repo.GetByBaseCurrency(c.Request.Context(), req.BaseCurrency)
	if err != nil {
		response.Internal(c, "failed to check referral rule")
		return
	}
	if existing != nil {
		response.Conflict(c, "DUPLICATE_CURRENCY")
		return
	}
	status := req.Status
	if status == "" {
		status = models.ReferralStatusActive
	}
	rr := &models.ReferralRule{
		BaseCurrency:   req.BaseCurrency,
		RewardAmount:   req.RewardAmount,
		RewardCurrency: req.RewardCurrency,
		MinTransaction: req.MinTransaction,
		Status:         status,
	}
	if err := h.repo.Create(c.Request.Context(), rr); err != nil {
		response.Internal(c, "failed to create referral rule")
		return
	}
	response.Created(c, rr)
}

// List handles GET /api/referral-rules.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list referral rules")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /api/referral-rules/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid rule id")
		return
	}
	rr, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "referral rule not found")
		return
	}
	response.OK(c, rr)
}

// Update handles PUT /api/referral-rules/:id. The base currency is immutable;
// delete and recreate to move a rule to another currency.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid rule id")
		return
	}
	rr, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "referral rule not found")
		return
	}
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rr.RewardAmount = req.RewardAmount
	rr.RewardCurrency = req.RewardCurrency
	rr.MinTransaction = req.MinTransaction
	if req.Status != "" {
		rr.Status = req.Status
	}
	if err := h.repo.Update(c.Request.Context(), rr); err != nil {
		response.Internal(c, "failed to update referral rule")
		return
	}
	response.OK(c, rr)
}

// Delete handles DELETE /api/referral-rules/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid rule id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.NotFound(c, "referral rule not found")
		return
	}
	response.NoContent(c)
}
