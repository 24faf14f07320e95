package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/JakeFAU/runwatch/internal/display"
	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/screening"
)

var (
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
)

// palette styles text view output for one writer.
type palette struct {
	r *lipgloss.Renderer
}

// newPalette picks a color profile for w. "auto" colors only terminals.
func newPalette(w io.Writer, mode string) (palette, error) {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case "auto":
		r.SetColorProfile(termenv.NewOutput(w).ColorProfile())
	case "always":
		r.SetColorProfile(termenv.ANSI256)
	case "never":
		r.SetColorProfile(termenv.Ascii)
	default:
		return palette{}, fmt.Errorf("unknown color mode %q", mode)
	}
	return palette{r: r}, nil
}

func (p palette) fg(c lipgloss.TerminalColor, s string) string {
	return p.r.NewStyle().Foreground(c).Render(s)
}

func (p palette) label(view display.View) string {
	style := p.r.NewStyle().Bold(true)
	switch {
	case view.State == display.StateFailed:
		style = style.Foreground(red)
	case view.Tone != "":
		if c, ok := toneColor(view.Tone); ok {
			style = style.Foreground(c)
		}
	}
	return style.Render(view.Label)
}

func (p palette) verdict(key string) string {
	switch progress.VerdictClass(key) {
	case progress.VerdictPositive:
		return p.fg(green, key)
	case progress.VerdictNegative:
		return p.fg(red, key)
	case progress.VerdictNeutral:
		return p.fg(yellow, key)
	case progress.VerdictUnevaluated:
		return p.fg(dim, key)
	default:
		return key
	}
}

func (p palette) tone(t screening.Tone) string {
	if c, ok := toneColor(t); ok {
		return p.fg(c, string(t))
	}
	return string(t)
}

func toneColor(t screening.Tone) (lipgloss.Color, bool) {
	switch t {
	case screening.ToneComplete:
		return green, true
	case screening.ToneError:
		return red, true
	case screening.ToneMuted:
		return dim, true
	default:
		return "", false
	}
}
