package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	db, err := NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testReport(id string, status models.ReportStatus) *models.ReportRecord {
	return &models.ReportRecord{
		ID:          id,
		Type:        models.ReportTypeCost,
		Status:      status,
		SourceSetID: "set_1",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestReportStorage_SaveAndGet(t *testing.T) {
	storage := NewReportStorage(newTestDB(t), common.GetLogger())
	ctx := context.Background()

	report := testReport("rpt_1", models.ReportStatusPending)
	if err := storage.SaveReport(ctx, report); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := storage.GetReport(ctx, "rpt_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Type != models.ReportTypeCost || got.Status != models.ReportStatusPending {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestReportStorage_GetMissing(t *testing.T) {
	storage := NewReportStorage(newTestDB(t), common.GetLogger())

	_, err := storage.GetReport(context.Background(), "rpt_nope")
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error for missing report, got %v", err)
	}
}

func TestReportStorage_ListFilters(t *testing.T) {
	storage := NewReportStorage(newTestDB(t), common.GetLogger())
	ctx := context.Background()

	for _, r := range []*models.ReportRecord{
		testReport("rpt_a", models.ReportStatusPending),
		testReport("rpt_b", models.ReportStatusCompleted),
		testReport("rpt_c", models.ReportStatusCompleted),
	} {
		if err := storage.SaveReport(ctx, r); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	completed, err := storage.ListReports(ctx, &interfaces.ReportListOptions{Status: models.ReportStatusCompleted})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(completed) != 2 {
		t.Errorf("got %d completed reports, want 2", len(completed))
	}

	limited, err := storage.ListReports(ctx, &interfaces.ReportListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d reports with limit 1, want 1", len(limited))
	}
}

func TestReportStorage_GetByStatus(t *testing.T) {
	storage := NewReportStorage(newTestDB(t), common.GetLogger())
	ctx := context.Background()

	if err := storage.SaveReport(ctx, testReport("rpt_p", models.ReportStatusProcessing)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	processing, err := storage.GetReportsByStatus(ctx, models.ReportStatusProcessing)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(processing) != 1 || processing[0].ID != "rpt_p" {
		t.Errorf("unexpected result: %+v", processing)
	}
}

func TestReportStorage_DeleteIdempotent(t *testing.T) {
	storage := NewReportStorage(newTestDB(t), common.GetLogger())
	ctx := context.Background()

	if err := storage.SaveReport(ctx, testReport("rpt_d", models.ReportStatusPending)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := storage.DeleteReport(ctx, "rpt_d"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := storage.DeleteReport(ctx, "rpt_d"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestReportStorage_RecommendationSetRoundTrip(t *testing.T) {
	storage := NewReportStorage(newTestDB(t), common.GetLogger())
	ctx := context.Background()

	set := &models.RecommendationSet{
		ID: "set_rt",
		Records: []models.RecommendationRecord{
			{ID: "r1", Category: models.CategoryCost, Impact: models.ImpactHigh, Text: "Rightsize"},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := storage.SaveRecommendationSet(ctx, set); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := storage.GetRecommendationSet(ctx, "set_rt")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].ID != "r1" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}
