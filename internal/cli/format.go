package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
)

var (
	// fatih/color disables these when output is not a TTY
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	dimColor     = color.New(color.FgHiBlack)
)

// printSection prints a section header
func printSection(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w)
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
	_, _ = fmt.Fprintln(w)
}

func printSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", msg)
}

func printWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprintf(w, "⚠ %s\n", msg)
}

// printLabelValue prints a label-value pair with proper formatting
func printLabelValue(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %s: ", label)
	_, _ = valueColor.Fprintln(w, value)
}

// printQueue lists the plates in generation order followed by the queue totals.
func printQueue(w io.Writer, plates []playlist.Plate) {
	printSection(w, "Swap queue")
	if len(plates) == 0 {
		_, _ = dimColor.Fprintln(w, "  (empty)")
		return
	}

	nameWidth := 0
	for _, p := range plates {
		nameWidth = max(nameWidth, len(p.Filename))
	}
	for i, p := range plates {
		_, _ = fmt.Fprintf(w, "  %2d. %-*s  plate %-2d x%-3d %12s  %s\n",
			i+1, nameWidth, p.Filename, p.PlateIndex, p.Count,
			playlist.FormatPlateTime(p.PrintTime), playlist.FormatWeight(p.Weight))
	}

	t := playlist.Aggregate(plates)
	_, _ = fmt.Fprintln(w)
	printLabelValue(w, "Total time", playlist.FormatDuration(t.Duration))
	printLabelValue(w, "Total weight", playlist.FormatWeight(t.Weight))
	printLabelValue(w, "Plates", fmt.Sprintf("%d", t.Count))
}
