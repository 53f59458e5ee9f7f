package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/typefind/internal/graph"
)

// progressReporter draws a progress bar while the builder applies events.
// With only source files the bar counts files; otherwise the total is not
// known up front and it counts events.
type progressReporter struct {
	quiet bool
	bar   *progressbar.ProgressBar
	files bool
}

func newProgressReporter(quiet bool, out io.Writer, in indexInputs) *progressReporter {
	p := &progressReporter{quiet: quiet}
	if quiet {
		return p
	}

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(65 * time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	}

	total := -1
	if len(in.events) == 0 {
		p.files = true
		total = len(in.sources)
		opts = append(opts,
			progressbar.OptionSetDescription("Indexing files"),
			progressbar.OptionSetItsString("files/s"),
		)
	} else {
		opts = append(opts,
			progressbar.OptionSetDescription("Applying events"),
			progressbar.OptionSetItsString("events/s"),
			progressbar.OptionSpinnerType(14),
		)
	}
	p.bar = progressbar.NewOptions(total, opts...)
	return p
}

// OnEvent is the builder's per-event hook.
func (p *progressReporter) OnEvent(ev *graph.Event) {
	if p.quiet || p.bar == nil {
		return
	}
	if p.files && ev.Kind != graph.EventFile {
		return
	}
	p.bar.Add(1)
}

func (p *progressReporter) Finish() {
	if p.quiet || p.bar == nil {
		return
	}
	p.bar.Finish()
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
