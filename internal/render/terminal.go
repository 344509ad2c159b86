package render

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

// Config controls terminal rendering.
type Config struct {
	// CharDelay is the pause between revealed characters.
	CharDelay time.Duration
	// MaxReveal caps the total reveal time; long replies type faster.
	// Zero means the default cap.
	MaxReveal time.Duration
	// Spinner names the indicator style: dot, line, minidot, points, pulse, meter.
	Spinner string
	// Animate enables the thinking indicator. Disable it for non-terminals.
	Animate bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		CharDelay: 20 * time.Millisecond,
		MaxReveal: 5 * time.Second,
		Spinner:   "dot",
		Animate:   true,
	}
}

var palette = []lipgloss.Color{"205", "39", "214", "78", "141", "203"}

// Terminal renders to a writer using lipgloss styles.
type Terminal struct {
	out     io.Writer
	cfg     Config
	spinner spinner.Spinner

	label   lipgloss.Style
	system  lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

// NewTerminal creates a renderer writing to out.
func NewTerminal(out io.Writer, cfg Config) *Terminal {
	r := lipgloss.NewRenderer(out)
	return &Terminal{
		out:     out,
		cfg:     cfg,
		spinner: spinnerByName(cfg.Spinner),
		label:   r.NewStyle().Bold(true),
		system:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("245")),
		muted:   r.NewStyle().Faint(true),
		success: r.NewStyle().Foreground(lipgloss.Color("78")),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		failure: r.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ShowThinking animates the indicator for d, or until ctx is done.
func (t *Terminal) ShowThinking(ctx context.Context, label string, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	deadline := time.NewTimer(d)
	defer deadline.Stop()

	interval := t.spinner.FPS
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame := 0
	t.drawThinking(label, frame)
	for {
		select {
		case <-ctx.Done():
			t.clearLine()
			return ctx.Err()
		case <-deadline.C:
			t.clearLine()
			return nil
		case <-ticker.C:
			frame++
			t.drawThinking(label, frame)
		}
	}
}

// Reveal prints text one character at a time.
func (t *Terminal) Reveal(ctx context.Context, label, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fmt.Fprintf(t.out, "%s\n", t.styleFor(label).Render(label+":"))

	runes := []rune(text)
	delay := t.charDelay(len(runes))
	if delay <= 0 {
		fmt.Fprintf(t.out, "%s\n\n", text)
		return nil
	}

	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for i, r := range runes {
		fmt.Fprint(t.out, string(r))
		if i == len(runes)-1 {
			break
		}
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return ctx.Err()
		case <-ticker.C:
		}
	}
	fmt.Fprint(t.out, "\n\n")
	return nil
}

// Summary prints the closing line for a finished conversation.
func (t *Terminal) Summary(result model.Result) {
	replies := pluralize(result.Replies, "reply", "replies")

	var line string
	switch result.Status {
	case model.StatusEndedByUser:
		line = t.warning.Render(fmt.Sprintf("Conversation ended by you after %s.", replies))
	case model.StatusEndedByError:
		line = t.failure.Render(fmt.Sprintf("Conversation ended by a service error after %s.", replies))
		if result.Reason != "" {
			line += "\n" + t.muted.Render(result.Reason)
		}
	default:
		line = t.success.Render(fmt.Sprintf("Conversation ended normally after %s.", replies))
	}
	fmt.Fprintf(t.out, "\n%s\n", line)
}

func (t *Terminal) drawThinking(label string, frame int) {
	if !t.cfg.Animate {
		return
	}
	frames := t.spinner.Frames
	glyph := frames[frame%len(frames)]
	fmt.Fprintf(t.out, "\r\033[K%s %s %s",
		t.styleFor(label).Render(glyph),
		t.styleFor(label).Render(label),
		t.muted.Render("is thinking..."))
}

func (t *Terminal) clearLine() {
	if !t.cfg.Animate {
		return
	}
	fmt.Fprint(t.out, "\r\033[K")
}

func (t *Terminal) charDelay(n int) time.Duration {
	if n == 0 || t.cfg.CharDelay <= 0 {
		return 0
	}
	maxReveal := t.cfg.MaxReveal
	if maxReveal <= 0 {
		maxReveal = DefaultConfig().MaxReveal
	}
	delay := t.cfg.CharDelay
	if capped := maxReveal / time.Duration(n); capped < delay {
		delay = capped
	}
	return delay
}

func (t *Terminal) styleFor(label string) lipgloss.Style {
	if label == model.SystemLabel {
		return t.system
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	return t.label.Foreground(palette[h.Sum32()%uint32(len(palette))])
}

func spinnerByName(name string) spinner.Spinner {
	switch strings.ToLower(name) {
	case "line":
		return spinner.Line
	case "minidot":
		return spinner.MiniDot
	case "points":
		return spinner.Points
	case "pulse":
		return spinner.Pulse
	case "meter":
		return spinner.Meter
	default:
		return spinner.Dot
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
