// Package output provides rendering for CLI command output.
//
// Commands render in one of three modes: styled text for interactive
// terminals, markdown for piped output and agents, and JSON for
// machine consumption. ModeAuto picks text or markdown based on
// whether stdout is a TTY.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// StyleSet holds the lipgloss styles used for text mode.
type StyleSet struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Key     lipgloss.Style
}

func defaultStyles() StyleSet {
	return StyleSet{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Key:     lipgloss.NewStyle().Bold(true),
	}
}

// Renderer writes command output in the configured mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles StyleSet
}

// NewRenderer creates a renderer. Mode "" is treated as ModeAuto.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: defaultStyles(),
	}
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
// Used by tests to exercise both interactive and piped behavior.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	r := NewRenderer(out, errOut, mode)
	r.isTTY = isTTY
	return r
}

// EffectiveMode resolves ModeAuto to text (TTY) or markdown (piped).
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether stdout is an interactive terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrorOutput returns the error writer.
func (r *Renderer) ErrorOutput() io.Writer { return r.errOut }

// Styles returns the style set for text mode.
func (r *Renderer) Styles() StyleSet { return r.styles }

// Println writes a line to the output writer.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section header at the given level.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Header.Render(text))
		return
	}
	r.Println(FormatHeader(level, text))
	r.Println("")
}

// Success writes a success line.
func (r *Renderer) Success(text string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Success.Render("✓ " + text))
		return
	}
	r.Println("✓ " + text)
}

// Error writes an error line to the error writer.
func (r *Renderer) Error(text string) {
	if r.EffectiveMode() == ModeText {
		_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+text))
		return
	}
	_, _ = fmt.Fprintln(r.errOut, "✗ "+text)
}

// Warning writes a warning line.
func (r *Renderer) Warning(text string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Warning.Render("! " + text))
		return
	}
	r.Println("! " + text)
}

// Info writes an informational line.
func (r *Renderer) Info(text string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Info.Render(text))
		return
	}
	r.Println(text)
}

// Muted writes a de-emphasized line.
func (r *Renderer) Muted(text string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Muted.Render(text))
		return
	}
	r.Println(text)
}

// StatusLine writes a "key: value" status pair.
func (r *Renderer) StatusLine(key, value string) {
	if r.EffectiveMode() == ModeText {
		r.Printf("%s %s\n", r.styles.Key.Render(key+":"), value)
		return
	}
	r.Println(FormatKeyValue(key, value))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatHeader formats a markdown header at the given level.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue formats a markdown "- **Key:** value" line.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// FormatCodeBlock wraps text in a fenced code block.
func FormatCodeBlock(lang, text string) string {
	return "```" + lang + "\n" + text + "\n```"
}
