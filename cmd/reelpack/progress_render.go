package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"reelpack/internal/logging"
	"reelpack/internal/operation"
	"reelpack/internal/progress"
)

// progressRenderer draws one bar per pipeline step on a terminal and falls
// back to sampled text lines elsewhere.
type progressRenderer struct {
	out     io.Writer
	tty     bool
	bar     *progressbar.ProgressBar
	label   string
	sampler *logging.ProgressSampler
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	return &progressRenderer{
		out:     out,
		tty:     isTerminal(out),
		sampler: logging.NewProgressSampler(25),
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// watch renders every event of h and returns its result.
func (r *progressRenderer) watch(h *operation.Handle) operation.Result {
	for e := range h.Events() {
		r.render(e)
	}
	r.finish()
	return h.Wait()
}

func (r *progressRenderer) render(e progress.Event) {
	label := e.Label()
	if !r.tty {
		if pct := e.Percent(); r.sampler.ShouldLog(pct, label) {
			if pct < 0 {
				fmt.Fprintf(r.out, "%s: %s\n", label, e.Message)
			} else {
				fmt.Fprintf(r.out, "%s: %.0f%%\n", label, pct)
			}
		}
		return
	}

	if label != r.label || r.bar == nil {
		r.finish()
		r.label = label
		total := e.TotalFrames
		if total <= 0 {
			total = -1
		}
		r.bar = progressbar.NewOptions64(
			total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]█[reset]",
				SaucerHead:    "[green]▓[reset]",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(r.out)
			}),
			progressbar.OptionSetPredictTime(true),
		)
	}
	_ = r.bar.Set64(e.FrameCount)
}

func (r *progressRenderer) finish() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	r.bar = nil
	r.label = ""
}
