package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a console sink writing to out, or stderr when out is nil.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stderr
	}
	return &ConsoleSink{out: out}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert with a color-coded severity prefix.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Level {
	case types.AlertLevelError:
		prefix = color.RedString("[ERROR]")
	case types.AlertLevelWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	var b strings.Builder
	b.WriteString(prefix)
	if alert.JobName != "" {
		fmt.Fprintf(&b, " [%s]", alert.JobName)
	}
	b.WriteString(" " + alert.Message)
	if alert.Category != "" {
		fmt.Fprintf(&b, " (%s)", alert.Category)
	}
	b.WriteString("\n")

	_, err := io.WriteString(s.out, b.String())
	return err
}
