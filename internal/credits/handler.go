package credits

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridian-remit/backend/internal/bonusschemes"
	"github.com/meridian-remit/backend/internal/middleware"
	"github.com/meridian-remit/backend/internal/models"
	"github.com/meridian-remit/backend/internal/realtime"
	"github.com/meridian-remit/backend/pkg/queue"
	"github.com/meridian-remit/backend/pkg/response"
	"github.com/meridian-remit/backend/pkg/storage"
)

// AwardBonusRequest is the body for POST /api/credits/award-bonus.
type AwardBonusRequest struct {
	UserID        string  `json:"user_id" binding:"required,uuid"`
	SchemeID      string  `json:"scheme_id" binding:"required,uuid"`
	TransactionID *string `json:"transaction_id"`
	AdminUser     string  `json:"admin_user"`
}

// ManualAdjustRequest is the body for POST /api/credits/manual.
type ManualAdjustRequest struct {
	UserID         string          `json:"user_id" binding:"required,uuid"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Type           string          `json:"type" binding:"required"`
	ReasonCode     string          `json:"reason_code" binding:"required"`
	Notes          string          `json:"notes"`
	SchemeID       *string         `json:"scheme_id"`
	AdminUser      string          `json:"admin_user"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Handler handles credit ledger HTTP endpoints.
type Handler struct {
	service   *Service
	repo      *Repository
	evaluator *bonusschemes.Evaluator
	queue     *queue.Queue
	hub       *realtime.Hub
	s3        *storage.S3
	logger    *zap.Logger
}

// NewHandler creates a credits handler. s3 may be nil when object storage is
// not configured; statement exports are refused in that case.
func NewHandler(service *Service, repo *Repository, evaluator *bonusschemes.Evaluator, q *queue.Queue, hub *realtime.Hub, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{service: service, repo: repo, evaluator: evaluator, queue: q, hub: hub, s3: s3, logger: logger}
}

// AwardBonus handles POST /api/credits/award-bonus.
func (h *Handler) AwardBonus(c *gin.Context) {
	var req AwardBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	schemeID, _ := uuid.Parse(req.SchemeID)
	var txnID *uuid.UUID
	if req.TransactionID != nil {
		id, err := uuid.Parse(*req.TransactionID)
		if err != nil {
			response.BadRequest(c, "invalid transaction_id")
			return
		}
		txnID = &id
	}

	award, err := h.evaluator.AwardBonus(c.Request.Context(), userID, schemeID, txnID, req.AdminUser)
	if err != nil {
		var rej *bonusschemes.RejectionError
		if errors.As(err, &rej) {
			switch rej.Code {
			case bonusschemes.RejectSchemeNotFound, bonusschemes.RejectTransactionNotFound:
				response.NotFound(c, rej.Code)
			case bonusschemes.RejectAlreadyEarned:
				response.Conflict(c, rej.Code)
			default:
				response.BadRequest(c, rej.Code)
			}
			return
		}
		h.logger.Error("award bonus", zap.Error(err), zap.String("scheme_id", req.SchemeID))
		response.Internal(c, "failed to award bonus")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(realtime.EventBonusAwarded, award)
	}
	response.OK(c, gin.H{
		"amount":     award.Amount,
		"currency":   award.Currency,
		"expires_at": award.ExpiresAt,
		"entry_id":   award.Entry.ID,
	})
}

// ManualAdjust handles POST /api/credits/manual.
func (h *Handler) ManualAdjust(c *gin.Context) {
	var req ManualAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	params := AdjustParams{
		UserID:         userID,
		Amount:         req.Amount,
		EventType:      req.Type,
		ReasonCode:     req.ReasonCode,
		Notes:          req.Notes,
		AdminUser:      req.AdminUser,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.SchemeID != nil {
		id, err := uuid.Parse(*req.SchemeID)
		if err != nil {
			response.BadRequest(c, "invalid scheme_id")
			return
		}
		params.SchemeID = &id
	}

	entry, replayed, err := h.service.Adjust(c.Request.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidEventType), errors.Is(err, ErrInvalidReason),
			errors.Is(err, ErrNotesRequired), errors.Is(err, ErrZeroAmount):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("manual adjustment", zap.Error(err), zap.String("user_id", req.UserID))
			response.Internal(c, "failed to record adjustment")
		}
		return
	}

	if !replayed && h.hub != nil {
		h.hub.Broadcast(realtime.EventLedgerAdjusted, entry)
	}
	response.OK(c, gin.H{"entry": entry, "idempotent": replayed})
}

// Query handles GET /api/credits/:userId.
func (h *Handler) Query(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	filter, err := ParseHistoryFilter(c.Query("startDate"), c.Query("endDate"), c.Query("eventType"), c.Query("schemeId"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	statement, err := h.service.Query(c.Request.Context(), userID, filter)
	if err != nil {
		h.logger.Error("credit statement query", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to load credit statement")
		return
	}
	response.OK(c, statement)
}

// RequestExport handles POST /api/credits/:userId/export: records the request
// and enqueues the CSV export job.
func (h *Handler) RequestExport(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "statement exports unavailable: object storage not configured")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	export := &models.StatementExport{UserID: userID, RequestedBy: c.GetString(middleware.ContextUserEmail)}
	if err := h.repo.CreateExport(c.Request.Context(), export); err != nil {
		response.Internal(c, "failed to create export")
		return
	}
	if err := h.queue.EnqueueStatementExport(c.Request.Context(), queue.StatementExportPayload{ExportID: export.ID, UserID: userID}); err != nil {
		response.Internal(c, "failed to enqueue export")
		return
	}
	response.Created(c, export)
}

// GetExport handles GET /api/exports/:id.
func (h *Handler) GetExport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return
	}
	export, err := h.repo.GetExport(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load export")
		return
	}
	if export == nil {
		response.NotFound(c, "export not found")
		return
	}
	response.OK(c, export)
}

// RunExpiry handles POST /api/credits/expire: enqueues an on-demand credit
// expiry sweep (the worker also runs it on a schedule).
func (h *Handler) RunExpiry(c *gin.Context) {
	if err := h.queue.EnqueueCreditExpiry(c.Request.Context()); err != nil {
		response.Internal(c, "failed to enqueue expiry sweep")
		return
	}
	response.OK(c, gin.H{"enqueued": true})
}
