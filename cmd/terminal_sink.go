package cmd

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/lehigh-university-libraries/square-images/internal/pipeline"
)

// terminalSink prints log lines and draws a progress bar for the item count
type terminalSink struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newTerminalSink(w io.Writer) *terminalSink {
	return &terminalSink{w: w}
}

func (s *terminalSink) OnLog(message string, severity pipeline.Severity) {
	if s.bar != nil {
		_ = s.bar.Clear()
	}
	switch severity {
	case pipeline.SeveritySuccess:
		fmt.Fprintf(s.w, "✅ %s\n", message)
	case pipeline.SeverityWarning:
		fmt.Fprintf(s.w, "⚠️  %s\n", message)
	case pipeline.SeverityError:
		fmt.Fprintf(s.w, "❌ %s\n", message)
	default:
		fmt.Fprintln(s.w, message)
	}
	if s.bar != nil {
		_ = s.bar.RenderBlank()
	}
}

func (s *terminalSink) OnProgress(completed, total int) {
	if s.bar == nil {
		s.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(s.w),
			progressbar.OptionSetDescription("Items"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = s.bar.Set(completed)
}

// Close finishes the bar so later output starts on a clean line
func (s *terminalSink) Close() {
	if s.bar != nil {
		_ = s.bar.Finish()
		s.bar = nil
	}
}
