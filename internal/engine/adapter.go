package engine

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// New selects the rendering engine strategy from configuration. Both
// strategies satisfy interfaces.RenderEngine with identical semantics so the
// pipeline never branches on the active engine.
func New(cfg *common.Config, logger arbor.ILogger) (interfaces.RenderEngine, error) {
	switch cfg.Engine.Kind {
	case "browser":
		return NewBrowserEngine(cfg.Engine, logger), nil
	case "static":
		return NewStaticEngine(cfg.Engine, logger), nil
	default:
		return nil, models.WrapKind(models.ErrValidation, "unknown engine kind %q", cfg.Engine.Kind)
	}
}

// validatePrintable runs a structural validation pass over generated PDF
// bytes. Corrupt output is rejected before it can reach the artifact store.
func validatePrintable(data []byte) error {
	conf := model.NewDefaultConfiguration()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return models.WrapKind(models.ErrGeneration, "printable artifact failed validation: %v", err)
	}
	return nil
}
