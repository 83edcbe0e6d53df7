package cli

import (
	"fmt"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/ui"
)

// -------------- rendering helpers --------------

// itemLine renders one row; n is the 1-based position in the full list so
// the printed index always works with `done` and `rm`.
func itemLine(n int, it model.Todo) string {
	t := ui.Current()
	box := t.Muted.Render(t.BoxUnchecked)
	title := truncate(it.Title, 80)
	if it.Done {
		box = t.Success.Render(t.BoxChecked)
		title = t.Done.Render(title)
	}
	return fmt.Sprintf("%s %s %s", t.Muted.Render(fmt.Sprintf("%2d.", n)), box, title)
}

func flatLines(items []model.Todo) []string {
	if len(items) == 0 {
		return []string{ui.Current().Muted.Render("no items")}
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		out = append(out, itemLine(i+1, it))
	}
	return out
}

func groupLines(items []model.Todo) []string {
	t := ui.Current()
	var pend, done []string
	for i, it := range items {
		if it.Done {
			done = append(done, itemLine(i+1, it))
		} else {
			pend = append(pend, itemLine(i+1, it))
		}
	}
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	if len(pend) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, pend...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, done...)
	}
	return lines
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
