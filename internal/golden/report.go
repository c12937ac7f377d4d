package golden

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Reporter writes diffs for failing cases and a summary table.
type Reporter struct {
	w        io.Writer
	renderer *lipgloss.Renderer
	results  []Result
}

// NewReporter returns a Reporter writing to w. Without color all styling is
// dropped.
func NewReporter(w io.Writer, color bool) *Reporter {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Reporter{w: w, renderer: r}
}

// Add records a result and prints its diffs if it failed.
func (r *Reporter) Add(res Result) {
	r.results = append(r.results, res)
	if res.Status != Failed {
		return
	}
	header := r.renderer.NewStyle().Bold(true)
	for _, m := range res.Mismatches {
		fmt.Fprintln(r.w, header.Render(fmt.Sprintf("--- %s/%s", res.Case.Dir, m.File)))
		fmt.Fprint(r.w, r.Diff(m.Want, m.Got))
	}
}

// Diff renders a line diff of want against got. Removed lines start with
// "-", added lines with "+" and unchanged lines with a space.
func (r *Reporter) Diff(want, got string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(want, got)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	removed := r.renderer.NewStyle().Foreground(lipgloss.Color("1"))
	added := r.renderer.NewStyle().Foreground(lipgloss.Color("2"))

	var sb strings.Builder
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				sb.WriteString(removed.Render("-" + line))
			case diffmatchpatch.DiffInsert:
				sb.WriteString(added.Render("+" + line))
			default:
				sb.WriteString(" " + line)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Failed reports how many recorded cases failed.
func (r *Reporter) Failed() int {
	n := 0
	for _, res := range r.results {
		if res.Status == Failed {
			n++
		}
	}
	return n
}

// Summary prints one row per case and the totals.
func (r *Reporter) Summary() {
	styles := map[Status]lipgloss.Style{
		Passed:  r.renderer.NewStyle().Foreground(lipgloss.Color("2")),
		Failed:  r.renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Ignored: r.renderer.NewStyle().Foreground(lipgloss.Color("3")),
		Blessed: r.renderer.NewStyle().Foreground(lipgloss.Color("4")),
	}
	counts := map[Status]int{}

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Case", "Status", "Mismatched", "Time"})
	for _, res := range r.results {
		counts[res.Status]++
		var files []string
		for _, m := range res.Mismatches {
			files = append(files, m.File)
		}
		t.AppendRow(table.Row{
			res.Case.Path,
			styles[res.Status].Render(res.Status.String()),
			strings.Join(files, ", "),
			res.Duration.Round(time.Microsecond),
		})
	}
	t.Render()

	fmt.Fprintf(r.w, "%d passed, %d failed, %d ignored, %d blessed\n",
		counts[Passed], counts[Failed], counts[Ignored], counts[Blessed])
}
