package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
	"github.com/ternarybob/refero/internal/render"
)

// BrowserEngine renders printable artifacts through a headless browser so
// embedded visualizations are captured exactly as a reader would see them.
// Each render launches a fresh browser instance; a semaphore caps how many
// run at once and a rate limiter smooths launch bursts.
type BrowserEngine struct {
	cfg     common.EngineConfig
	logger  arbor.ILogger
	sem     chan struct{}
	limiter *rate.Limiter
}

var _ interfaces.RenderEngine = (*BrowserEngine)(nil)

// NewBrowserEngine creates the browser rendering engine
func NewBrowserEngine(cfg common.EngineConfig, logger arbor.ILogger) *BrowserEngine {
	maxInstances := cfg.MaxInstances
	if maxInstances <= 0 {
		maxInstances = 1
	}

	launchesPerSecond := cfg.LaunchesPerSecond
	if launchesPerSecond <= 0 {
		launchesPerSecond = 1
	}

	return &BrowserEngine{
		cfg:     cfg,
		logger:  logger,
		sem:     make(chan struct{}, maxInstances),
		limiter: rate.NewLimiter(rate.Limit(launchesPerSecond), 1),
	}
}

func (e *BrowserEngine) Name() string {
	return "browser"
}

// RenderToBytes produces the artifact bytes for the requested kind. Markup
// never needs a browser; only printable rendering is gated by the instance
// cap.
func (e *BrowserEngine) RenderToBytes(ctx context.Context, doc *models.DocumentTree, kind models.ArtifactKind) ([]byte, error) {
	switch kind {
	case models.ArtifactKindMarkup:
		html, err := render.ToHTML(doc)
		if err != nil {
			return nil, models.WrapKind(models.ErrGeneration, "markup serialization: %v", err)
		}
		return []byte(html), nil
	case models.ArtifactKindPrintable:
		return e.renderPDF(ctx, doc)
	default:
		return nil, models.WrapKind(models.ErrValidation, "unknown artifact kind %q", kind)
	}
}

// acquireInstance blocks until an instance slot frees or the context lapses.
// Capacity pressure stalls the caller rather than failing it; only a job
// whose deadline expires while waiting gets the resource-exhausted kind.
func (e *BrowserEngine) acquireInstance(ctx context.Context) (func(), error) {
	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-ctx.Done():
		return nil, models.WrapKind(models.ErrResourceExhausted,
			"gave up waiting for one of %d browser instances: %v", cap(e.sem), ctx.Err())
	}
}

func (e *BrowserEngine) renderPDF(ctx context.Context, doc *models.DocumentTree) ([]byte, error) {
	release, err := e.acquireInstance(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, models.WrapKind(models.ErrEngineTimeout, "launch throttle: %v", err)
	}

	html, err := render.ToHTML(doc)
	if err != nil {
		return nil, models.WrapKind(models.ErrGeneration, "markup serialization: %v", err)
	}

	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", e.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	// Startup probe. A browser that cannot reach about:blank is a launch
	// failure, classified separately from render timeouts.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		return nil, models.WrapKind(models.ErrEngineStartup, "browser failed startup probe: %v", err)
	}

	renderCtx, renderCancel := context.WithTimeout(browserCtx, e.cfg.GetRenderTimeout())
	defer renderCancel()

	var pdf []byte
	err = chromedp.Run(renderCtx,
		e.setContent(html),
		e.waitReady(),
		chromedp.Sleep(e.cfg.GetSettleTimeout()),
		e.printToPDF(&pdf),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, models.WrapKind(models.ErrEngineTimeout,
				"render exceeded %s", e.cfg.GetRenderTimeout())
		}
		return nil, models.WrapKind(models.ErrEngineStartup, "browser render: %v", err)
	}

	if err := validatePrintable(pdf); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("title", doc.Title).
		Int("pdf_size", len(pdf)).
		Dur("render_time", time.Since(startTime)).
		Msg("Browser render completed")

	return pdf, nil
}

// setContent loads the serialized page into the blank tab.
func (e *BrowserEngine) setContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		frameTree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("get frame tree: %w", err)
		}
		return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
	})
}

// waitReady polls the in-page readiness signals before capture. The chart
// runtime raises __referoChartsReady once every canvas is painted.
func (e *BrowserEngine) waitReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if e.cfg.WaitForCharts {
			var ready bool
			if err := chromedp.Poll("window.__referoChartsReady === true", &ready,
				chromedp.WithPollingInterval(100*time.Millisecond)).Do(ctx); err != nil {
				return fmt.Errorf("chart readiness: %w", err)
			}
		}
		if e.cfg.WaitForFonts {
			var loaded bool
			if err := chromedp.Poll("document.fonts.status === 'loaded'", &loaded,
				chromedp.WithPollingInterval(100*time.Millisecond)).Do(ctx); err != nil {
				return fmt.Errorf("font readiness: %w", err)
			}
		}
		return nil
	})
}

func (e *BrowserEngine) printToPDF(out *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		width, height := pageDimensions(e.cfg.PageSize)
		margin := e.cfg.MarginInches

		params := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(width).
			WithPaperHeight(height).
			WithMarginTop(margin).
			WithMarginBottom(margin).
			WithMarginLeft(margin).
			WithMarginRight(margin)

		if e.cfg.HeaderFooter {
			params = params.
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div style="font-size:8px;width:100%;text-align:center;"><span class="title"></span></div>`).
				WithFooterTemplate(`<div style="font-size:8px;width:100%;text-align:center;"><span class="pageNumber"></span> / <span class="totalPages"></span></div>`)
		}

		data, _, err := params.Do(ctx)
		if err != nil {
			return fmt.Errorf("print to pdf: %w", err)
		}
		*out = data
		return nil
	})
}

// pageDimensions returns paper width and height in inches.
func pageDimensions(size string) (float64, float64) {
	switch size {
	case "Letter":
		return 8.5, 11.0
	default: // A4
		return 8.27, 11.69
	}
}

// Shutdown is a no-op: browser instances are per-render and torn down by
// their own defers.
func (e *BrowserEngine) Shutdown() error {
	e.logger.Debug().Msg("Browser engine shut down")
	return nil
}
