package diagfmt

import (
	"encoding/json"
	"io"

	"mend/internal/diag"
)

// LocationJSON представляет местоположение в файле для JSON
type LocationJSON struct {
	File   string `json:"file"`
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// DiagnosticJSON представляет диагностику в JSON формате
type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Category string       `json:"category"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Raw      string       `json:"raw,omitempty"`
}

// DiagnosticsOutput представляет корневую структуру JSON вывода
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Counts      map[string]int   `json:"counts"`
}

// BuildDiagnosticsOutput формирует структуру JSON-вывода без сериализации.
// Counts always covers the whole bag, even when Max trims the list.
func BuildDiagnosticsOutput(bag *diag.Bag, opts JSONOpts) DiagnosticsOutput {
	items := bag.Items()
	maxItems := len(items)
	if opts.Max > 0 && opts.Max < maxItems {
		maxItems = opts.Max
	}

	diagnostics := make([]DiagnosticJSON, 0, maxItems)
	for _, d := range items[:maxItems] {
		dj := DiagnosticJSON{
			Severity: d.Severity.String(),
			Category: d.Category.Slug(),
			Message:  d.Message,
			Location: LocationJSON{
				File:   formatPath(d.Path, opts.PathMode, opts.BaseDir),
				Line:   d.Line,
				Column: d.Column,
			},
		}
		if opts.IncludeRaw {
			dj.Raw = d.Raw
		}
		diagnostics = append(diagnostics, dj)
	}

	counts := make(map[string]int)
	for c, n := range bag.CountByCategory() {
		counts[c.Slug()] += n
	}
	return DiagnosticsOutput{
		Diagnostics: diagnostics,
		Count:       len(diagnostics),
		Counts:      counts,
	}
}

// JSON форматирует диагностики в JSON формат.
func JSON(w io.Writer, bag *diag.Bag, opts JSONOpts) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildDiagnosticsOutput(bag, opts))
}
