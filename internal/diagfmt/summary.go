package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"mend/internal/diag"
)

// Short prints every diagnostic back in the build tool's own line format.
func Short(w io.Writer, bag *diag.Bag, style diag.PathStyle) error {
	for _, d := range bag.Items() {
		if _, err := fmt.Fprintln(w, diag.FormatStyle(d, style)); err != nil {
			return err
		}
	}
	return nil
}

// Summary prints one row per category in priority order, then the total.
// Categories with no diagnostics are listed too so runs can be compared.
func Summary(w io.Writer, counts diag.Counts, useColor bool) error {
	bold := color.New(color.Bold)
	setColor(bold, useColor)
	for _, c := range diag.Categories {
		if _, err := fmt.Fprintf(w, "  %-22s %6d\n", c.String(), counts[c]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "  %s %6d\n", bold.Sprintf("%-22s", "total"), counts.Total())
	return err
}
