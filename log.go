package geminidev

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	infoColor     = color.New(color.FgCyan)
	progressColor = color.New(color.FgYellow)
	warnColor     = color.New(color.FgYellow, color.Bold)
	successColor  = color.New(color.FgGreen, color.Bold)
	errorColor    = color.New(color.FgRed, color.Bold)
	sectionColor  = color.New(color.FgGreen, color.Bold)
)

// Renderer turns Markdown into terminal output.
type Renderer interface {
	Render(markdown string) (string, error)
}

func NewMarkdownRenderer(wordWrap int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
}

// NewLogger returns a console logger for diagnostics. Only warnings and
// errors are shown unless verbose is set.
func NewLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoder), zapcore.AddSync(w), level)
	return zap.New(core)
}

// Log records a conversation turn in the transcript as "ROLE) message".
func (c *Client) Log(role string, message string) {
	fmt.Fprintf(c.transcript, "%s) %s\n", strings.ToUpper(role), message)
}

// LogOut prints to the output stream and copies the line to the transcript.
func (c *Client) LogOut(message ...any) {
	fmt.Fprintln(c.output, message...)
	fmt.Fprintln(c.transcript, message...)
}

// LogErr reports err in red on the error stream.
func (c *Client) LogErr(err error) {
	errorColor.Fprintln(c.errorStream, "Error:", err)
}

func (c *Client) Info(format string, args ...any) {
	infoColor.Fprintf(c.output, format+"\n", args...)
}

func (c *Client) Progress(format string, args ...any) {
	progressColor.Fprintf(c.output, format+"\n", args...)
}

func (c *Client) Warn(format string, args ...any) {
	warnColor.Fprintf(c.output, "Warning: "+format+"\n", args...)
}

func (c *Client) Success(format string, args ...any) {
	successColor.Fprintf(c.output, format+"\n", args...)
}

// Prompt prints a question for the user without a trailing newline.
func (c *Client) Prompt(question string) {
	progressColor.Fprint(c.output, question+" ")
}

// RenderMarkdown prints a model answer framed by a title, through the
// Markdown renderer unless plain output was requested.
func (c *Client) RenderMarkdown(title, markdown string) {
	sectionColor.Fprintf(c.output, "\n--- %s ---\n", title)
	out := markdown
	if c.renderer != nil {
		rendered, err := c.renderer.Render(markdown)
		if err != nil {
			c.logger.Warn("markdown rendering failed, printing raw text", zap.Error(err))
		} else {
			out = rendered
		}
	}
	fmt.Fprintln(c.output, strings.TrimRight(out, "\n"))
	sectionColor.Fprintf(c.output, "--- End %s ---\n\n", title)
}
