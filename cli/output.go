package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// printer renders result lines. Colors are only emitted when w is a
// terminal.
type printer struct {
	w       io.Writer
	label   lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:       w,
		label:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
		success: r.NewStyle().Foreground(lipgloss.Color("42")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("220")),
	}
}

// done prints a success line such as "✓ merged 3 files -> out.pdf".
func (p *printer) done(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.success.Render("✓"), fmt.Sprintf(format, args...))
}

func (p *printer) skipped(path, reason string) {
	fmt.Fprintf(p.w, "%s %s %s\n", p.warn.Render("!"), path, p.dim.Render("("+reason+")"))
}

func (p *printer) item(label, value string) {
	fmt.Fprintf(p.w, "  %s %s\n", p.label.Render(label), value)
}
