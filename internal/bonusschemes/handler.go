package bonusschemes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridian-remit/backend/internal/models"
	"github.com/meridian-remit/backend/pkg/response"
)

// SchemeRequest is the body for POST/PUT /api/bonus-schemes.
type SchemeRequest struct {
	Name                 string                   `json:"name" binding:"required"`
	Kind                 string                   `json:"kind" binding:"required"`
	CreditAmount         decimal.Decimal          `json:"credit_amount"`
	Currency             string                   `json:"currency"`
	MinTransaction       decimal.Decimal          `json:"min_transaction"`
	MinTransactions      int                      `json:"min_transactions"`
	PeriodDays           int                      `json:"period_days"`
	CommissionMode       string                   `json:"commission_mode"`
	CommissionPercentage decimal.Decimal          `json:"commission_percentage"`
	IsTiered             bool                     `json:"is_tiered"`
	Tiers                []models.BonusTier       `json:"tiers"`
	Eligibility          *models.BonusEligibility `json:"eligibility"`
	StartDate            string                   `json:"start_date" binding:"required"`
	EndDate              string                   `json:"end_date" binding:"required"`
	Status               string                   `json:"status"`
}

// Handler handles bonus scheme HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a bonus scheme handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func validSchemeKind(kind string) bool {
	switch kind {
	case models.BonusKindLoyalty, models.BonusKindTransactionThreshold, models.BonusKindRequestMoney:
		return true
	}
	return false
}

func validSchemeStatus(status string) bool {
	switch status {
	case models.SchemeStatusActive, models.SchemeStatusInactive, models.SchemeStatusExpired:
		return true
	}
	return false
}

func (h *Handler) schemeFromRequest(c *gin.Context, req *SchemeRequest) (*models.BonusScheme, bool) {
	if !validSchemeKind(req.Kind) {
		response.BadRequest(c, "invalid kind")
		return nil, false
	}
	mode := req.CommissionMode
	if mode == "" {
		mode = models.CommissionFixed
	}
	if mode != models.CommissionFixed && mode != models.CommissionPercentage {
		response.BadRequest(c, "commission_mode must be fixed or percentage")
		return nil, false
	}
	if req.IsTiered {
		if len(req.Tiers) == 0 {
			response.BadRequest(c, "tiered scheme requires tiers")
			return nil, false
		}
		if err := models.ValidateTiers(req.Tiers); err != nil {
			response.BadRequest(c, err.Error())
			return nil, false
		}
	}
	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid start_date")
		return nil, false
	}
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		response.BadRequest(c, "invalid end_date")
		return nil, false
	}
	status := req.Status
	if status == "" {
		status = models.SchemeStatusActive
	}
	if !validSchemeStatus(status) {
		response.BadRequest(c, "invalid status")
		return nil, false
	}

	s := &models.BonusScheme{
		Name:                 req.Name,
		Kind:                 req.Kind,
		CreditAmount:         req.CreditAmount,
		Currency:             req.Currency,
		MinTransaction:       req.MinTransaction,
		MinTransactions:      req.MinTransactions,
		PeriodDays:           req.PeriodDays,
		CommissionMode:       mode,
		CommissionPercentage: req.CommissionPercentage,
		IsTiered:             req.IsTiered,
		Tiers:                req.Tiers,
		StartDate:            startDate,
		EndDate:              endDate,
		Status:               status,
	}
	if req.Eligibility != nil {
		s.Eligibility = *req.Eligibility
	}
	return s, true
}

// Create handles POST /api/bonus-schemes.
func (h *Handler) Create(c *gin.Context) {
	var req SchemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, ok := h.schemeFromRequest(c, &req)
	if !ok {
		return
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create bonus scheme", zap.Error(err), zap.String("name", s.Name))
		response.Internal(c, "failed to create bonus scheme")
		return
	}
	response.Created(c, s)
}

// List handles GET /api/bonus-schemes.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list bonus schemes")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /api/bonus-schemes/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid scheme id")
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load bonus scheme")
		return
	}
	if s == nil {
		response.NotFound(c, RejectSchemeNotFound)
		return
	}
	response.OK(c, s)
}

// Update handles PUT /api/bonus-schemes/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid scheme id")
		return
	}
	existing, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load bonus scheme")
		return
	}
	if existing == nil {
		response.NotFound(c, RejectSchemeNotFound)
		return
	}
	var req SchemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, ok := h.schemeFromRequest(c, &req)
	if !ok {
		return
	}
	s.ID = id
	if err := h.repo.Update(c.Request.Context(), s); err != nil {
		response.Internal(c, "failed to update bonus scheme")
		return
	}
	response.OK(c, s)
}

// Delete handles DELETE /api/bonus-schemes/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid scheme id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.NotFound(c, RejectSchemeNotFound)
		return
	}
	response.NoContent(c)
}
