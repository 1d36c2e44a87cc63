package transactions

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
	"github.com/meridian-remit/backend/pkg/response"
)

// CreateRequest is the body for POST /api/transactions.
type CreateRequest struct {
	UserID         string          `json:"user_id" binding:"required,uuid"`
	MerchantID     *string         `json:"merchant_id"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	SourceCurrency string          `json:"source_currency" binding:"required"`
	DestCurrency   string          `json:"dest_currency" binding:"required"`
	PaymentMethod  string          `json:"payment_method" binding:"required"`
	AffiliateID    *string         `json:"affiliate_id"`
	Status         string          `json:"status"`
}

// Handler handles transaction HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a transaction handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func validStatus(status string) bool {
	switch status {
	case models.TransactionStatusPending, models.TransactionStatusCompleted,
		models.TransactionStatusFailed, models.TransactionStatusRefunded:
		return true
	}
	return false
}

// Create handles POST /api/transactions.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	status := req.Status
	if status == "" {
		status = models.TransactionStatusPending
	}
	if !validStatus(status) {
		response.BadRequest(c, "invalid status")
		return
	}
	t := &models.Transaction{
		UserID:         userID,
		Amount:         req.Amount,
		SourceCurrency: req.SourceCurrency,
		DestCurrency:   req.DestCurrency,
		PaymentMethod:  req.PaymentMethod,
		AffiliateID:    req.AffiliateID,
		Status:         status,
	}
	if req.MerchantID != nil {
		id, err := uuid.Parse(*req.MerchantID)
		if err != nil {
			response.BadRequest(c, "invalid merchant_id")
			return
		}
		t.MerchantID = &id
	}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		response.Internal(c, "failed to create transaction")
		return
	}
	response.Created(c, t)
}

// List handles GET /api/transactions with optional userId, merchantId, status,
// and since filters.
func (h *Handler) List(c *gin.Context) {
	var f ListFilter
	if v := c.Query("userId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid userId")
			return
		}
		f.UserID = &id
	}
	if v := c.Query("merchantId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid merchantId")
			return
		}
		f.MerchantID = &id
	}
	if v := c.Query("status"); v != "" {
		if !validStatus(v) {
			response.BadRequest(c, "invalid status")
			return
		}
		f.Status = v
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid since")
			return
		}
		f.Since = &t
	}
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Internal(c, "failed to list transactions")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /api/transactions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transaction id")
		return
	}
	t, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load transaction")
		return
	}
	if t == nil {
		response.NotFound(c, "transaction not found")
		return
	}
	response.OK(c, t)
}

// SetStatus handles PATCH /api/transactions/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transaction id")
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !validStatus(req.Status) {
		response.BadRequest(c, "invalid status")
		return
	}
	if err := h.repo.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		response.NotFound(c, "transaction not found")
		return
	}
	response.OK(c, gin.H{"id": id, "status": req.Status})
}
