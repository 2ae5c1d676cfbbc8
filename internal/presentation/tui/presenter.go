// Package tui renders the incoming call in a terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const defaultWidth = 72

// Presenter implements ports.Presenter, ports.Shaker and ports.CuePlayer on a terminal.
// Writes are serialized, so it can share its writer with a console.
type Presenter struct {
	mu      sync.Mutex
	out     io.Writer
	profile termenv.Profile
	render  func(string) (string, error)

	unavailable atomic.Bool
}

// NewPresenter writes to out. Colors and markdown styling are enabled only when out is a terminal.
func NewPresenter(out io.Writer) *Presenter {
	styled, width := false, defaultWidth
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		styled = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w - 4
		}
	}

	profile := termenv.Ascii
	if styled {
		profile = termenv.ColorProfile()
	}

	return &Presenter{
		out:     out,
		profile: profile,
		render:  NewRenderer(styled, width),
	}
}

// Profile is the color profile in use.
func (p *Presenter) Profile() termenv.Profile { return p.profile }

// SetAvailable toggles whether a call can be engaged, for hosts that pause the terminal.
func (p *Presenter) SetAvailable(ok bool) {
	p.unavailable.Store(!ok)
}

// Available reports whether the terminal can show a call.
func (p *Presenter) Available() bool {
	return !p.unavailable.Load()
}

// Write implements io.Writer with the presenter's lock.
func (p *Presenter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *Presenter) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(p, format, args...)
	return err
}

func (p *Presenter) styled(s, color string) termenv.Style {
	return termenv.String(s).Foreground(p.profile.Color(color))
}

func (p *Presenter) OpenCall(_ context.Context, stage domain.Stage) error {
	title := p.styled(fmt.Sprintf("☎  INCOMING CALL (stage %d: %s)", stage.Ordinal, stage.Name), "#f472b6").Bold()
	return p.printf("\n%s\n", title)
}

// PlayMedia prints the caption and reports that no clip can be played.
func (p *Presenter) PlayMedia(_ context.Context, node domain.MediaSegment) error {
	line := fmt.Sprintf("  ▶ %s", node.ID)
	if node.Caption != "" {
		line += "  " + p.styled(fmt.Sprintf("%q", node.Caption), "#a78bfa").Italic().String()
	}
	if err := p.printf("%s\n", line); err != nil {
		return err
	}
	return domain.ErrMediaUnsupported
}

// ShowBeat renders the beat as markdown and prompts for continue.
func (p *Presenter) ShowBeat(_ context.Context, node domain.InteractiveBeat) error {
	var md strings.Builder
	if node.Image != "" {
		fmt.Fprintf(&md, "![%s](%s)\n\n", node.ID, node.Image)
	}
	if node.Text != "" {
		fmt.Fprintf(&md, "> %s\n", node.Text)
	}

	out, err := p.render(md.String())
	if err != nil {
		out = md.String()
	}
	prompt := p.styled("  [enter] continue", "#818cf8").Faint()
	return p.printf("%s%s\n", out, prompt)
}

func (p *Presenter) CloseCall(_ context.Context, outcome domain.Outcome) error {
	return p.printf("%s\n\n", p.styled(fmt.Sprintf("☎  call ended (%s)", outcome), "#fb7185"))
}

// Shake draws a jittered rule whose width follows the intensity.
func (p *Presenter) Shake(_ context.Context, intensity float64, duration time.Duration) error {
	n := 4 + int(intensity*24)
	rule := strings.Repeat("≈", n)
	return p.printf("  %s shake %.1f for %s\n", p.styled(rule, "#fbbf24"), intensity, duration)
}

// PlayGlitchCue rings the terminal bell with a glitch marker.
func (p *Presenter) PlayGlitchCue(context.Context) error {
	return p.printf("\a  %s\n", p.styled("▓▒░ glitch ░▒▓", "#22d3ee"))
}
