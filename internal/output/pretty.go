package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/padding"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/term"

	"github.com/DominicTanzillo/Panacea/internal/classify"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	alertStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	clearStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Pretty renders a human-readable report. Colors are dropped when the
// writer is not a terminal.
type Pretty struct {
	w     io.Writer
	color bool

	total, screened, collided, confirmed int
}

// NewPretty writes to w. Color is enabled when w is a terminal.
func NewPretty(w io.Writer) *Pretty {
	color := false
	if f, ok := w.(*os.File); ok {
		color = IsTerminal(f)
	}
	return &Pretty{w: w, color: color}
}

func (p *Pretty) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *Pretty) Write(ctx context.Context, records []classify.Enrichment) error {
	if len(records) == 0 {
		return nil
	}
	var b strings.Builder
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.title
	}
	b.WriteString(p.style(headerStyle, row(header)))
	b.WriteByte('\n')

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.total++

		cdm := p.style(dimStyle, "-")
		if r.HasCDM {
			cdm = "yes"
			p.confirmed++
		}

		dist, closest := p.style(dimStyle, "-"), p.style(dimStyle, "-")
		verdict := p.style(dimStyle, "not screened")
		switch {
		case r.CounterfactualError != "":
			verdict = p.style(warnStyle, r.CounterfactualError)
			p.screened++
		case r.CounterfactualMinDistanceKm != nil:
			p.screened++
			dist = fmt.Sprintf("%.3f", *r.CounterfactualMinDistanceKm)
			if r.CounterfactualClosestNorad != nil {
				closest = fmt.Sprintf("%d", *r.CounterfactualClosestNorad)
			}
			verdict = p.style(clearStyle, "clear")
			if r.WouldHaveCollided {
				verdict = p.style(alertStyle, "WOULD HAVE COLLIDED")
				p.collided++
			}
		}

		b.WriteString(row([]string{
			fmt.Sprintf("%d", r.NoradID), r.Name, fmt.Sprintf("%.3f", r.DeltaVMS),
			string(r.MagnitudeClass), r.Constellation, cdm, dist, closest, verdict,
		}))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

// Close prints the run summary.
func (p *Pretty) Close() error {
	summary := fmt.Sprintf("maneuvers %d  screened %d  would have collided %d  CDM confirmed %d",
		p.total, p.screened, p.collided, p.confirmed)
	if p.color {
		summary = summaryStyle.Render(summary)
	}
	_, err := fmt.Fprintln(p.w, summary)
	return err
}

var columns = []struct {
	title string
	width uint
}{
	{"NORAD", 8}, {"NAME", 24}, {"DV m/s", 8}, {"CLASS", 7}, {"CONST", 10},
	{"CDM", 4}, {"MIN km", 10}, {"CLOSEST", 8}, {"VERDICT", 0},
}

// row lays cells out in the fixed column widths. Widths ignore ANSI
// escapes, so styled cells stay aligned. The last column is unbounded.
func row(cells []string) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		w := columns[i].width
		if w == 0 {
			out[i] = c
			continue
		}
		out[i] = padding.String(truncate.StringWithTail(c, w, "…"), w)
	}
	return strings.Join(out, " ")
}
