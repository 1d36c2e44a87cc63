package merchants

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridian-remit/backend/internal/models"
	"github.com/meridian-remit/backend/pkg/response"
)

// MerchantRequest is the body for POST/PUT /api/merchants.
type MerchantRequest struct {
	Name               string `json:"name" binding:"required"`
	Country            string `json:"country" binding:"required"`
	SettlementCurrency string `json:"settlement_currency" binding:"required"`
	ContactEmail       string `json:"contact_email"`
	Status             string `json:"status"`
}

// Handler handles merchant HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a merchant handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /api/merchants.
func (h *Handler) Create(c *gin.Context) {
	var req MerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	status := req.Status
	if status == "" {
		status = models.MerchantStatusActive
	}
	m := &models.Merchant{
		Name:               req.Name,
		Country:            req.Country,
		SettlementCurrency: req.SettlementCurrency,
		ContactEmail:       req.ContactEmail,
		Status:             status,
	}
	if err := h.repo.Create(c.Request.Context(), m); err != nil {
		response.Internal(c, "failed to create merchant")
		return
	}
	response.Created(c, m)
}

// List handles GET /api/merchants.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list merchants")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /api/merchants/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid merchant id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "merchant not found")
		return
	}
	response.OK(c, m)
}

// Update handles PUT /api/merchants/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid merchant id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "merchant not found")
		return
	}
	var req MerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m.Name = req.Name
	m.Country = req.Country
	m.SettlementCurrency = req.SettlementCurrency
	m.ContactEmail = req.ContactEmail
	if req.Status != "" {
		m.Status = req.Status
	}
	if err := h.repo.Update(c.Request.Context(), m); err != nil {
		response.Internal(c, "failed to update merchant")
		return
	}
	response.OK(c, m)
}

// Delete handles DELETE /api/merchants/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid merchant id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.NotFound(c, "merchant not found")
		return
	}
	response.NoContent(c)
}
