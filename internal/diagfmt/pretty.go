package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"mend/internal/diag"
	"mend/internal/source"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> [<Category>] <Message>
// затем, если задан Context, строки исходника с ^ под колонкой.
// fs может быть nil; файлы подгружаются в него по мере надобности.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) error {
	sevColor := map[diag.Severity]*color.Color{
		diag.SevError:   color.New(color.FgRed, color.Bold),
		diag.SevWarning: color.New(color.FgYellow, color.Bold),
		diag.SevInfo:    color.New(color.FgCyan),
	}
	catColor := color.New(color.FgMagenta)
	locColor := color.New(color.Bold)
	gutter := color.New(color.FgBlue)
	for _, c := range sevColor {
		setColor(c, opts.Color)
	}
	for _, c := range []*color.Color{catColor, locColor, gutter} {
		setColor(c, opts.Color)
	}

	for i, d := range bag.Items() {
		if opts.Max > 0 && i >= opts.Max {
			_, err := fmt.Fprintf(w, "... %d more\n", bag.Len()-opts.Max)
			return err
		}
		loc := fmt.Sprintf("%s:%d:%d:", formatPath(d.Path, opts.PathMode, opts.BaseDir), d.Line, d.Column)
		if _, err := fmt.Fprintf(w, "%s %s %s %s\n",
			locColor.Sprint(loc),
			sevColor[d.Severity].Sprint(d.Severity.String()),
			catColor.Sprint("["+d.Category.String()+"]"),
			d.Message,
		); err != nil {
			return err
		}

		preview, ok := buildLinePreview(fs, d, opts.Context)
		if !ok {
			continue
		}
		width := len(fmt.Sprint(preview.first + uint32(len(preview.lines)) - 1))
		for k, line := range preview.lines {
			n := preview.first + uint32(k)
			if _, err := fmt.Fprintf(w, "%s %s\n", gutter.Sprintf("%*d |", width, n), line); err != nil {
				return err
			}
			if n == d.Line && d.Column > 0 {
				pad := strings.Repeat(" ", width) + " |"
				marker := caretPrefix(line, preview.caret) + sevColor[d.Severity].Sprint("^")
				if _, err := fmt.Fprintf(w, "%s %s\n", gutter.Sprint(pad), marker); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// caretPrefix keeps tabs so the caret lines up with the source line.
func caretPrefix(line string, col int) string {
	var b strings.Builder
	for i, r := range []rune(line) {
		if i >= col {
			break
		}
		if r == '\t' {
			b.WriteRune('\t')
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func setColor(c *color.Color, on bool) {
	if on {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
}
