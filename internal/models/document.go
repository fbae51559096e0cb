package models

// BlockKind distinguishes the content blocks of a document section.
type BlockKind string

const (
	BlockKindParagraph BlockKind = "paragraph"
	BlockKindTable     BlockKind = "table"
	BlockKindChart     BlockKind = "chart"
)

// TableData is tabular content with a header row.
type TableData struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Block is one content block inside a document section. Exactly one of the
// payload fields is set, matching Kind.
type Block struct {
	Kind      BlockKind        `json:"kind"`
	Paragraph string           `json:"paragraph,omitempty"`
	Table     *TableData       `json:"table,omitempty"`
	Chart     *ChartDescriptor `json:"chart,omitempty"`
}

// Section is one heading-led region of the document.
type Section struct {
	Heading string  `json:"heading"`
	Level   int     `json:"level"`
	Blocks  []Block `json:"blocks"`
}

// DocumentTree is the renderer output: structured sections plus declarative
// visualization descriptors. Any runtime library a visualization needs must
// be embedded in the serialized payload, never fetched from the network --
// engines may execute network-isolated.
type DocumentTree struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
	Sections []Section `json:"sections"`
}

// Charts returns every chart descriptor in document order.
func (d *DocumentTree) Charts() []*ChartDescriptor {
	var charts []*ChartDescriptor
	for i := range d.Sections {
		for j := range d.Sections[i].Blocks {
			if c := d.Sections[i].Blocks[j].Chart; c != nil {
				charts = append(charts, c)
			}
		}
	}
	return charts
}
