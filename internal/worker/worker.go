package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-remit/backend/internal/credits"
	"github.com/meridian-remit/backend/internal/models"
	"github.com/meridian-remit/backend/internal/promocodes"
	"github.com/meridian-remit/backend/internal/realtime"
	"github.com/meridian-remit/backend/pkg/queue"
	"github.com/meridian-remit/backend/pkg/storage"
)

// Processor executes background jobs: credit expiry sweeps, promo campaign
// sends and ledger statement exports.
type Processor struct {
	credits *credits.Repository
	promos  *promocodes.Repository
	s3      *storage.S3
	queue   *queue.Queue
	hub     *realtime.Hub
	logger  *zap.Logger
}

// NewProcessor creates a job processor. hub may be nil when running without
// the realtime feed (e.g. the standalone worker binary).
func NewProcessor(creditsRepo *credits.Repository, promoRepo *promocodes.Repository, s3 *storage.S3, q *queue.Queue, hub *realtime.Hub, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{credits: creditsRepo, promos: promoRepo, s3: s3, queue: q, hub: hub, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeCreditExpiry:
		return p.processCreditExpiry(ctx)
	case queue.JobTypeCampaignSend:
		return p.processCampaignSend(ctx, job)
	case queue.JobTypeStatementExport:
		return p.processStatementExport(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processCreditExpiry(ctx context.Context) error {
	n, err := p.credits.ExpireDueCredits(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("expire due credits: %w", err)
	}
	p.logger.Info("credit expiry sweep completed", zap.Int64("expired_entries", n))
	if n > 0 && p.hub != nil {
		p.hub.Broadcast(realtime.EventCreditsExpired, map[string]interface{}{
			"expired_entries": n,
			"swept_at":        time.Now().UTC(),
		})
	}
	return nil
}

func (p *Processor) processCampaignSend(ctx context.Context, job *queue.Job) error {
	var payload queue.CampaignSendPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	promo, err := p.promos.GetByID(ctx, payload.PromoCodeID)
	if err != nil {
		return fmt.Errorf("promo not found: %s", payload.PromoCodeID)
	}
	if promo.Status != models.PromoStatusActive {
		p.logger.Info("campaign skipped for inactive promo", zap.String("code", promo.Code))
		return nil
	}
	// Delivery goes through the marketing platform; here we only stamp the
	// send time so the portal shows when the last campaign went out.
	if err := p.promos.MarkCampaignSent(ctx, promo.ID); err != nil {
		return fmt.Errorf("mark campaign sent: %w", err)
	}
	p.logger.Info("campaign send recorded", zap.String("code", promo.Code))
	return nil
}

func (p *Processor) processStatementExport(ctx context.Context, job *queue.Job) error {
	var payload queue.StatementExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.s3 == nil {
		return fmt.Errorf("statement export %s: s3 storage not configured", payload.ExportID)
	}
	export, err := p.credits.GetExport(ctx, payload.ExportID)
	if err != nil {
		return fmt.Errorf("load export: %w", err)
	}
	if export == nil {
		return fmt.Errorf("export not found: %s", payload.ExportID)
	}
	if export.Status == models.ExportStatusCompleted {
		p.logger.Info("export already completed", zap.String("export_id", export.ID.String()))
		return nil
	}

	history, err := p.credits.History(ctx, payload.UserID, credits.HistoryFilter{})
	if err != nil {
		p.failExport(ctx, export.ID, err)
		return fmt.Errorf("load history: %w", err)
	}

	body, err := renderStatementCSV(history)
	if err != nil {
		p.failExport(ctx, export.ID, err)
		return fmt.Errorf("render csv: %w", err)
	}

	key := storage.StatementKey(payload.UserID.String(), export.ID.String())
	url, err := p.s3.Upload(ctx, key, "text/csv", bytes.NewReader(body), int64(len(body)))
	if err != nil {
		p.failExport(ctx, export.ID, err)
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.credits.CompleteExport(ctx, export.ID, key, url); err != nil {
		return fmt.Errorf("complete export: %w", err)
	}
	p.logger.Info("statement export completed", zap.String("export_id", export.ID.String()), zap.String("s3_key", key))
	return nil
}

func (p *Processor) failExport(ctx context.Context, id uuid.UUID, cause error) {
	if err := p.credits.FailExport(ctx, id, cause.Error()); err != nil {
		p.logger.Error("mark export failed", zap.Error(err))
	}
}

func renderStatementCSV(history []models.LedgerEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"entry_id", "event_type", "amount", "scheme_id", "reference_id", "reason_code", "expires_at", "created_at"}); err != nil {
		return nil, err
	}
	for _, e := range history {
		schemeID := ""
		if e.SchemeID != nil {
			schemeID = e.SchemeID.String()
		}
		reason := ""
		if e.ReasonCode != nil {
			reason = *e.ReasonCode
		}
		expires := ""
		if e.ExpiresAt != nil {
			expires = e.ExpiresAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			e.ID.String(),
			e.EventType,
			e.Amount.String(),
			schemeID,
			e.ReferenceID,
			reason,
			expires,
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// RunExpiryTicker enqueues a credit expiry sweep on the given interval until
// ctx is cancelled. One sweep is enqueued immediately on start.
func (p *Processor) RunExpiryTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if err := p.queue.EnqueueCreditExpiry(ctx); err != nil {
		p.logger.Warn("enqueue initial expiry sweep failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.EnqueueCreditExpiry(ctx); err != nil {
				p.logger.Warn("enqueue expiry sweep failed", zap.Error(err))
			}
		}
	}
}
