package promocodes

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridian-remit/backend/internal/models"
	"github.com/meridian-remit/backend/internal/realtime"
	"github.com/meridian-remit/backend/pkg/queue"
	"github.com/meridian-remit/backend/pkg/response"
)

// CreateRequest is the body for POST /api/promocodes.
type CreateRequest struct {
	Code           string               `json:"code" binding:"required"`
	Kind           string               `json:"kind" binding:"required"`
	Value          decimal.Decimal      `json:"value" binding:"required"`
	MinTransaction decimal.Decimal      `json:"min_transaction"`
	MaxDiscount    *decimal.Decimal     `json:"max_discount"`
	Currency       string               `json:"currency"`
	UsageLimit     *int                 `json:"usage_limit"`
	PerUserLimit   *int                 `json:"per_user_limit"`
	BudgetLimit    *decimal.Decimal     `json:"budget_limit"`
	StartDate      string               `json:"start_date" binding:"required"`
	EndDate        string               `json:"end_date" binding:"required"`
	Restrictions   *models.Restrictions `json:"restrictions"`
	Segment        *models.Segment      `json:"segment"`
}

// ValidateRequest is the body for POST /api/promocodes/validate.
type ValidateRequest struct {
	Code           string          `json:"code" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Currency       string          `json:"currency"`
	UserID         string          `json:"user_id"`
	SourceCurrency string          `json:"source_currency"`
	DestCurrency   string          `json:"dest_currency"`
	PaymentMethod  string          `json:"payment_method"`
	AffiliateID    string          `json:"affiliate_id"`
}

// ApplyRequest is the body for POST /api/promocodes/apply (the commit step).
type ApplyRequest struct {
	Code           string          `json:"code" binding:"required"`
	DiscountAmount decimal.Decimal `json:"discount_amount" binding:"required"`
	UserID         string          `json:"user_id" binding:"required,uuid"`
	TransactionID  *string         `json:"transaction_id"`
}

// Handler handles promo code HTTP endpoints.
type Handler struct {
	repo      *Repository
	evaluator *Evaluator
	queue     *queue.Queue
	hub       *realtime.Hub
	logger    *zap.Logger
}

// NewHandler creates a promo code handler.
func NewHandler(repo *Repository, evaluator *Evaluator, q *queue.Queue, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, evaluator: evaluator, queue: q, hub: hub, logger: logger}
}

func validKind(kind string) bool {
	switch kind {
	case models.PromoKindFixed, models.PromoKindPercentage, models.PromoKindFeeWaiver, models.PromoKindFxBoost:
		return true
	}
	return false
}

// Create handles POST /api/promocodes.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !validKind(req.Kind) {
		response.BadRequest(c, "invalid kind")
		return
	}
	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid start_date")
		return
	}
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		response.BadRequest(c, "invalid end_date")
		return
	}
	if !endDate.After(startDate) {
		response.BadRequest(c, "end_date must be after start_date")
		return
	}
	if req.MaxDiscount != nil && req.Kind != models.PromoKindPercentage {
		response.BadRequest(c, "max_discount only applies to percentage promos")
		return
	}

	code := models.NormalizeCode(req.Code)
	existing, err := h.repo.GetByCode(c.Request.Context(), code)
	if err != nil {
		response.Internal(c, "failed to check promo code")
		return
	}
	if existing != nil {
		response.Conflict(c, "DUPLICATE_CODE")
		return
	}

	p := &models.PromoCode{
		Code:           code,
		Kind:           req.Kind,
		Value:          req.Value,
		MinTransaction: req.MinTransaction,
		MaxDiscount:    req.MaxDiscount,
		Currency:       req.Currency,
		UsageLimit:     models.Unlimited,
		PerUserLimit:   models.Unlimited,
		BudgetLimit:    decimal.NewFromInt(models.Unlimited),
		StartDate:      startDate,
		EndDate:        endDate,
		Status:         models.PromoStatusActive,
		Segment:        models.Segment{Type: models.SegmentAll},
	}
	if req.UsageLimit != nil {
		p.UsageLimit = *req.UsageLimit
	}
	if req.PerUserLimit != nil {
		p.PerUserLimit = *req.PerUserLimit
	}
	if req.BudgetLimit != nil {
		p.BudgetLimit = *req.BudgetLimit
	}
	if req.Restrictions != nil {
		p.Restrictions = *req.Restrictions
	}
	if req.Segment != nil {
		p.Segment = *req.Segment
	}

	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("create promo code", zap.Error(err), zap.String("code", code))
		response.Internal(c, "failed to create promo code")
		return
	}
	response.Created(c, p)
}

// List handles GET /api/promocodes.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list promo codes")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /api/promocodes/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo code id")
		return
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "promo code not found")
		return
	}
	response.OK(c, p)
}

// Update handles PUT /api/promocodes/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo code id")
		return
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "promo code not found")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !validKind(req.Kind) {
		response.BadRequest(c, "invalid kind")
		return
	}
	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid start_date")
		return
	}
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		response.BadRequest(c, "invalid end_date")
		return
	}

	p.Kind = req.Kind
	p.Value = req.Value
	p.MinTransaction = req.MinTransaction
	p.MaxDiscount = req.MaxDiscount
	p.Currency = req.Currency
	p.StartDate = startDate
	p.EndDate = endDate
	if req.UsageLimit != nil {
		p.UsageLimit = *req.UsageLimit
	}
	if req.PerUserLimit != nil {
		p.PerUserLimit = *req.PerUserLimit
	}
	if req.BudgetLimit != nil {
		p.BudgetLimit = *req.BudgetLimit
	}
	if req.Restrictions != nil {
		p.Restrictions = *req.Restrictions
	}
	if req.Segment != nil {
		p.Segment = *req.Segment
	}
	if err := h.repo.Update(c.Request.Context(), p); err != nil {
		response.Internal(c, "failed to update promo code")
		return
	}
	response.OK(c, p)
}

// SetStatus handles PUT /api/promocodes/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo code id")
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Status != models.PromoStatusActive && req.Status != models.PromoStatusDisabled {
		response.BadRequest(c, "status must be active or disabled")
		return
	}
	if err := h.repo.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		response.NotFound(c, "promo code not found")
		return
	}
	response.OK(c, gin.H{"id": id, "status": req.Status})
}

// Delete handles DELETE /api/promocodes/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo code id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.NotFound(c, "promo code not found")
		return
	}
	response.NoContent(c)
}

// Validate handles POST /api/promocodes/validate (read-only, no side effects).
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	tc := TransactionContext{
		Amount:         req.Amount,
		Currency:       req.Currency,
		SourceCurrency: req.SourceCurrency,
		DestCurrency:   req.DestCurrency,
		PaymentMethod:  req.PaymentMethod,
		AffiliateID:    req.AffiliateID,
	}
	if req.UserID != "" {
		uid, err := uuid.Parse(req.UserID)
		if err != nil {
			response.BadRequest(c, "invalid user_id")
			return
		}
		tc.UserID = uid
	}

	result, err := h.evaluator.Evaluate(c.Request.Context(), req.Code, tc)
	if err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) {
			if rej.Code == RejectNotFound {
				response.NotFound(c, rej.Code)
				return
			}
			response.BadRequest(c, rej.Code)
			return
		}
		h.logger.Error("validate promo code", zap.Error(err), zap.String("code", req.Code))
		response.Internal(c, "failed to validate promo code")
		return
	}
	response.OK(c, gin.H{
		"valid":           true,
		"promo":           result.Promo,
		"discount_amount": result.DiscountAmount,
	})
}

// Apply handles POST /api/promocodes/apply: commits a previously validated
// redemption. Caps are re-checked atomically inside the commit, so a stale
// validation cannot overrun usage_limit or budget_limit.
func (h *Handler) Apply(c *gin.Context) {
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(c, "invalid user_id")
		return
	}
	var txnID *uuid.UUID
	if req.TransactionID != nil {
		id, err := uuid.Parse(*req.TransactionID)
		if err != nil {
			response.BadRequest(c, "invalid transaction_id")
			return
		}
		txnID = &id
	}

	p, err := h.repo.GetByCode(c.Request.Context(), req.Code)
	if err != nil {
		response.Internal(c, "failed to load promo code")
		return
	}
	if p == nil {
		response.NotFound(c, RejectNotFound)
		return
	}

	red, err := h.repo.Commit(c.Request.Context(), p.ID, userID, txnID, req.DiscountAmount)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsageCapReached):
			response.BadRequest(c, RejectUsageCapReached)
		case errors.Is(err, ErrBudgetCapReached):
			response.BadRequest(c, RejectBudgetCapReached)
		default:
			h.logger.Error("apply promo code", zap.Error(err), zap.String("code", req.Code))
			response.Internal(c, "failed to apply promo code")
		}
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(realtime.EventPromoRedeemed, red)
	}
	response.OK(c, red)
}

// SendCampaign handles POST /api/promocodes/:id/campaign: enqueues a campaign
// send job; the worker stamps last_campaign_sent_at when done.
func (h *Handler) SendCampaign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo code id")
		return
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "promo code not found")
		return
	}
	if err := h.queue.EnqueueCampaignSend(c.Request.Context(), queue.CampaignSendPayload{PromoCodeID: p.ID, Code: p.Code}); err != nil {
		response.Internal(c, "failed to enqueue campaign")
		return
	}
	response.OK(c, gin.H{"id": p.ID, "enqueued": true})
}
