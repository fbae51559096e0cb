package engine

import (
	"bytes"
	"context"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
	"github.com/ternarybob/refero/internal/render"
)

// StaticEngine renders printable artifacts without a browser by walking the
// markdown AST straight into PDF primitives. Charts degrade to their data
// tables, which the markdown serialization already performs.
type StaticEngine struct {
	cfg    common.EngineConfig
	logger arbor.ILogger
}

var _ interfaces.RenderEngine = (*StaticEngine)(nil)

// NewStaticEngine creates the static rendering engine
func NewStaticEngine(cfg common.EngineConfig, logger arbor.ILogger) *StaticEngine {
	return &StaticEngine{cfg: cfg, logger: logger}
}

func (e *StaticEngine) Name() string {
	return "static"
}

func (e *StaticEngine) RenderToBytes(ctx context.Context, doc *models.DocumentTree, kind models.ArtifactKind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.WrapKind(models.ErrEngineTimeout, "render cancelled: %v", err)
	}

	switch kind {
	case models.ArtifactKindMarkup:
		html, err := render.ToHTML(doc)
		if err != nil {
			return nil, models.WrapKind(models.ErrGeneration, "markup serialization: %v", err)
		}
		return []byte(html), nil
	case models.ArtifactKindPrintable:
		return e.renderPDF(doc)
	default:
		return nil, models.WrapKind(models.ErrValidation, "unknown artifact kind %q", kind)
	}
}

func (e *StaticEngine) renderPDF(doc *models.DocumentTree) ([]byte, error) {
	markdown := render.ToMarkdown(doc)

	pageSize := e.cfg.PageSize
	if pageSize != "Letter" {
		pageSize = "A4"
	}

	pdf := fpdf.New("P", "mm", pageSize, "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(markdown)
	tree := md.Parser().Parse(text.NewReader(source))

	w := &pdfWriter{pdf: pdf, source: source, size: 9}
	if err := ast.Walk(tree, w.walk); err != nil {
		e.logger.Error().Err(err).Str("title", doc.Title).Msg("Static render failed")
		return nil, models.WrapKind(models.ErrGeneration, "pdf composition: %v", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, models.WrapKind(models.ErrGeneration, "pdf output: %v", err)
	}

	data := buf.Bytes()
	if err := validatePrintable(data); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("title", doc.Title).
		Int("pdf_size", len(data)).
		Msg("Static render completed")

	return data, nil
}

// Shutdown is a no-op, the static engine holds no resources.
func (e *StaticEngine) Shutdown() error {
	return nil
}

// pdfWriter translates the markdown AST into fpdf calls.
type pdfWriter struct {
	pdf    *fpdf.Fpdf
	source []byte
	size   float64
	bold   bool
	italic bool
}

func (w *pdfWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		w.heading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		if !entering {
			w.pdf.Ln(7)
		}
	case ast.KindText:
		if entering {
			w.pdf.Write(5, string(n.(*ast.Text).Text(w.source)))
		}
	case ast.KindEmphasis:
		if n.(*ast.Emphasis).Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.applyFont()
	case ast.KindThematicBreak:
		if entering {
			w.pdf.Ln(2)
			w.pdf.Line(12, w.pdf.GetY(), 198, w.pdf.GetY())
			w.pdf.Ln(2)
		}
	case extast.KindTable:
		if entering {
			w.table(n.(*extast.Table))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (w *pdfWriter) applyFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont("Arial", style, w.size)
}

func (w *pdfWriter) heading(n *ast.Heading, entering bool) {
	if entering {
		w.pdf.Ln(6)
		size := 10.0
		switch n.Level {
		case 1:
			size = 14
		case 2:
			size = 12
		case 3:
			size = 11
		}
		w.pdf.SetFont("Arial", "B", size)
		return
	}
	w.pdf.Ln(6)
	w.applyFont()
}

func (w *pdfWriter) table(n *extast.Table) {
	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *extast.TableRow:
				rows = append(rows, w.tableRow(c))
			case *extast.TableHeader:
				collect(c)
			}
		}
	}
	collect(n)

	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	numCols := len(rows[0])
	widths := w.columnWidths(rows, numCols, 186)
	lineHeight := 5.0

	w.pdf.Ln(2)
	for i, row := range rows {
		if i == 0 {
			w.pdf.SetFont("Arial", "B", 8)
			w.pdf.SetFillColor(230, 230, 230)
		} else {
			w.pdf.SetFont("Arial", "", 8)
			w.pdf.SetFillColor(255, 255, 255)
		}

		fill := i == 0
		for j := 0; j < numCols; j++ {
			cell := ""
			if j < len(row) {
				cell = w.truncate(row[j], widths[j]-2)
			}
			w.pdf.CellFormat(widths[j], lineHeight+2, cell, "1", 0, "L", fill, 0, "")
		}
		w.pdf.Ln(-1)
	}
	w.pdf.Ln(3)
	w.applyFont()
}

func (w *pdfWriter) tableRow(n *extast.TableRow) []string {
	var row []string
	for cell := n.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			row = append(row, string(cell.Text(w.source)))
		}
	}
	return row
}

// columnWidths sizes columns from measured content widths, scaled to the
// printable width.
func (w *pdfWriter) columnWidths(rows [][]string, numCols int, pageWidth float64) []float64 {
	widths := make([]float64, numCols)
	w.pdf.SetFont("Arial", "", 8)

	for _, row := range rows {
		for i, cell := range row {
			if i >= numCols {
				continue
			}
			if cw := w.pdf.GetStringWidth(cell) + 4; cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	minWidth := 14.0
	total := 0.0
	for i := range widths {
		if widths[i] < minWidth {
			widths[i] = minWidth
		}
		total += widths[i]
	}

	scale := pageWidth / total
	for i := range widths {
		widths[i] *= scale
	}
	return widths
}

func (w *pdfWriter) truncate(cell string, width float64) string {
	if w.pdf.GetStringWidth(cell) <= width {
		return cell
	}
	for len(cell) > 3 && w.pdf.GetStringWidth(cell+"...") > width {
		cell = strings.TrimSpace(cell[:len(cell)-1])
	}
	return cell + "..."
}
