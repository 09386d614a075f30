package readctx

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
)

// phaseLevelColor mirrors pkg/utils' syntax-highlighting idiom (distinct
// fatih/color styles per category) applied to log levels instead of C
// tokens, so a terminal run of the pipeline reads the same way a terminal
// run of the teacher's CLI does.
var phaseLevelColor = map[slog.Level]*color.Color{
	slog.LevelDebug: color.New(color.FgHiBlack),
	slog.LevelInfo:  color.New(color.FgCyan),
	slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
	slog.LevelError: color.New(color.FgRed, color.Bold),
}

// consoleHandler writes one colorized line per record; it is fanned out
// alongside a plain JSON handler via slog-multi, so each record is written
// both as human-readable narration and as a machine-readable JSON line; in
// newLogger both handlers write to stderr.
type consoleHandler struct {
	w     io.Writer
	attrs []slog.Attr
}

func newConsoleHandler(w io.Writer) *consoleHandler { return &consoleHandler{w: w} }

func (h *consoleHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	c, ok := phaseLevelColor[r.Level]
	if !ok {
		c = color.New(color.FgWhite)
	}
	line := c.Sprintf("[%s] %s", r.Level.String(), r.Message)
	for _, a := range h.attrs {
		line += " " + a.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		line += " " + a.String()
		return true
	})
	_, err := io.WriteString(h.w, line+"\n")
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{w: h.w, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *consoleHandler) WithGroup(string) slog.Handler { return h }

// newLogger builds the pipeline's structured logger: a colorized console
// handler fanned out with a plain JSON handler via slog-multi, the way the
// teacher's go.mod already names slog-multi as a direct dependency without
// the CPU-emulator domain ever exercising it (spec.md ambient-stack
// carry-forward; see DESIGN.md). do_log=false yields a discard logger so
// callers never have to guard every call site with an if.
func newLogger(doLog bool) *slog.Logger {
	if !doLog {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slogmulti.Fanout(jsonHandler, newConsoleHandler(os.Stderr)))
}
