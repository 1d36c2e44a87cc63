package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
	"github.com/meridian-remit/backend/pkg/queue"
)

func TestProcessStatementExportWithoutStorage(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil, nil, nil)
	payload, err := json.Marshal(queue.StatementExportPayload{ExportID: uuid.New(), UserID: uuid.New()})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	job := &queue.Job{ID: uuid.New().String(), Type: queue.JobTypeStatementExport, Payload: payload}

	err = p.Process(context.Background(), job)
	if err == nil {
		t.Fatal("expected an error when object storage is not configured")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRenderStatementCSV(t *testing.T) {
	schemeID := uuid.New()
	reason := models.ReasonGoodwill
	expires := time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)
	history := []models.LedgerEntry{
		{
			ID:          uuid.New(),
			EventType:   models.LedgerEventEarned,
			Amount:      decimal.NewFromInt(50),
			SchemeID:    &schemeID,
			ReferenceID: "txn-1",
			ExpiresAt:   &expires,
			CreatedAt:   time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:          uuid.New(),
			EventType:   models.LedgerEventVoided,
			Amount:      decimal.NewFromInt(-20),
			ReferenceID: "manual:ticket-1",
			ReasonCode:  &reason,
			CreatedAt:   time.Date(2026, 6, 16, 12, 0, 0, 0, time.UTC),
		},
	}

	out, err := renderStatementCSV(history)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d records", len(records))
	}
	if records[0][0] != "entry_id" {
		t.Fatalf("expected header row, got %v", records[0])
	}
	if records[1][2] != "50" || records[2][2] != "-20" {
		t.Fatalf("unexpected amounts: %v / %v", records[1], records[2])
	}
	if records[1][6] != "2026-09-13T00:00:00Z" {
		t.Fatalf("unexpected expiry: %s", records[1][6])
	}
	if records[2][5] != models.ReasonGoodwill {
		t.Fatalf("expected reason code in row, got %s", records[2][5])
	}
}

func TestRenderStatementCSVEmptyHistory(t *testing.T) {
	out, err := renderStatementCSV(nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d records", len(records))
	}
}
