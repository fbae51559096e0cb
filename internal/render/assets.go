package render

import _ "embed"

// chartRuntimeJS is the self-contained canvas chart runtime inlined into
// markup artifacts. Embedding it keeps rendering fully network-isolated.
//
//go:embed assets/chartruntime.js
var chartRuntimeJS string

// ChartRuntime exposes the embedded chart runtime source.
func ChartRuntime() string {
	return chartRuntimeJS
}
