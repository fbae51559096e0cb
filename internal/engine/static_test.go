package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/models"
	"github.com/ternarybob/refero/internal/render"
)

func testEngineConfig() common.EngineConfig {
	return common.NewDefaultConfig().Engine
}

func docForType(t models.ReportType) *models.DocumentTree {
	model := &models.ReportModel{
		ReportID: "rpt_engine_test",
		Type:     t,
		Title:    "Engine Test " + string(t),
		Summary: models.SummaryStats{
			TotalFindings: 1,
			ByCategory:    map[models.Category]int{models.CategoryCost: 1},
			ByImpact:      map[models.Impact]int{models.ImpactHigh: 1},
			SavingsByCategory: map[models.Category]float64{
				models.CategoryCost: 250,
			},
		},
		Charts: []models.ChartDescriptor{
			{ID: "c1", Kind: models.ChartKindBar, Title: "Findings",
				Labels: []string{"cost"}, Series: []float64{1}},
		},
	}
	return render.NewRenderer().Render(model)
}

func TestStaticEngine_PrintableAllTypes(t *testing.T) {
	eng := NewStaticEngine(testEngineConfig(), common.GetLogger())

	for _, rt := range models.ReportTypes {
		data, err := eng.RenderToBytes(context.Background(), docForType(rt), models.ArtifactKindPrintable)
		if err != nil {
			t.Fatalf("%s: render failed: %v", rt, err)
		}
		if len(data) == 0 {
			t.Fatalf("%s: empty printable artifact", rt)
		}
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			t.Errorf("%s: artifact is not a PDF, starts with %q", rt, data[:4])
		}
	}
}

func TestStaticEngine_Markup(t *testing.T) {
	eng := NewStaticEngine(testEngineConfig(), common.GetLogger())

	data, err := eng.RenderToBytes(context.Background(), docForType(models.ReportTypeDetailed), models.ArtifactKindMarkup)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.Contains(data, []byte("<!DOCTYPE html>")) {
		t.Error("markup artifact is not a standalone page")
	}
	if !bytes.Contains(data, []byte("__referoChartsReady")) {
		t.Error("markup artifact missing embedded chart runtime")
	}
}

func TestStaticEngine_UnknownKind(t *testing.T) {
	eng := NewStaticEngine(testEngineConfig(), common.GetLogger())

	_, err := eng.RenderToBytes(context.Background(), docForType(models.ReportTypeCost), models.ArtifactKind("bogus"))
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStaticEngine_CancelledContext(t *testing.T) {
	eng := NewStaticEngine(testEngineConfig(), common.GetLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.RenderToBytes(ctx, docForType(models.ReportTypeCost), models.ArtifactKindPrintable)
	if !errors.Is(err, models.ErrEngineTimeout) {
		t.Errorf("expected engine timeout kind, got %v", err)
	}
}

func TestNew_SelectsEngine(t *testing.T) {
	cfg := common.NewDefaultConfig()
	logger := common.GetLogger()

	cfg.Engine.Kind = "static"
	eng, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("static: %v", err)
	}
	if eng.Name() != "static" {
		t.Errorf("engine name = %q", eng.Name())
	}

	cfg.Engine.Kind = "browser"
	eng, err = New(cfg, logger)
	if err != nil {
		t.Fatalf("browser: %v", err)
	}
	if eng.Name() != "browser" {
		t.Errorf("engine name = %q", eng.Name())
	}

	cfg.Engine.Kind = "carrier-pigeon"
	if _, err = New(cfg, logger); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error for unknown kind, got %v", err)
	}
}

func TestBrowserEngine_CapacityBlocksUntilFree(t *testing.T) {
	cfg := testEngineConfig()
	cfg.MaxInstances = 1
	eng := NewBrowserEngine(cfg, common.GetLogger())

	// Occupy the single slot, then free it shortly after. The waiting
	// acquire must block through the busy window and then succeed.
	eng.sem <- struct{}{}
	go func() {
		time.Sleep(30 * time.Millisecond)
		<-eng.sem
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	release, err := eng.acquireInstance(ctx)
	if err != nil {
		t.Fatalf("acquire while capacity frees: %v", err)
	}
	release()

	if len(eng.sem) != 0 {
		t.Errorf("slot not released, %d still held", len(eng.sem))
	}
}

func TestBrowserEngine_CapacityWaitBoundedByContext(t *testing.T) {
	cfg := testEngineConfig()
	cfg.MaxInstances = 1
	eng := NewBrowserEngine(cfg, common.GetLogger())

	eng.sem <- struct{}{}
	defer func() { <-eng.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := eng.RenderToBytes(ctx, docForType(models.ReportTypeCost), models.ArtifactKindPrintable)
	if !errors.Is(err, models.ErrResourceExhausted) {
		t.Errorf("expected resource exhausted kind, got %v", err)
	}
}

func TestBrowserEngine_MarkupNeedsNoBrowser(t *testing.T) {
	eng := NewBrowserEngine(testEngineConfig(), common.GetLogger())

	data, err := eng.RenderToBytes(context.Background(), docForType(models.ReportTypeSecurity), models.ArtifactKindMarkup)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.Contains(data, []byte("<canvas")) {
		t.Error("markup artifact missing chart canvas")
	}
}
