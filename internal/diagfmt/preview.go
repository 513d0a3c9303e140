package diagfmt

import (
	"strings"

	"fortio.org/safecast"

	"mend/internal/diag"
	"mend/internal/source"
)

// linePreview is the source excerpt printed under a diagnostic.
type linePreview struct {
	first uint32 // номер первой строки
	lines []string
	caret int // колонка (0-based, в рунах) внутри строки d.Line
}

// buildLinePreview loads d's file into fs on first use. Missing files give no preview.
func buildLinePreview(fs *source.FileSet, d diag.Diagnostic, context int8) (linePreview, bool) {
	if fs == nil || context <= 0 || d.Line == 0 || d.Path == "" {
		return linePreview{}, false
	}
	file, ok := fs.GetByPath(d.Path)
	if !ok {
		id, err := fs.Load(d.Path)
		if err != nil {
			return linePreview{}, false
		}
		file = fs.Get(id)
	}
	total, err := safecast.Conv[uint32](len(file.LineIdx) + 1)
	if err != nil || d.Line > total {
		return linePreview{}, false
	}

	span := uint32(context - 1)
	first := d.Line - min(span, d.Line-1)
	last := min(d.Line+span, total)
	out := linePreview{first: first}
	for n := first; n <= last; n++ {
		out.lines = append(out.lines, strings.TrimRight(file.GetLine(n), "\r"))
	}
	if d.Column > 0 {
		target := out.lines[d.Line-first]
		col := int(d.Column) - 1
		out.caret = min(col, len([]rune(target)))
	}
	return out, true
}
