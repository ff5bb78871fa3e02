package cmd

import (
	"log"
	"math"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"webtoondl/downloader"
)

// progressView renders tracker updates for one request, as a bar on a
// terminal and as log lines otherwise.
type progressView struct {
	mu      sync.Mutex
	p       *mpb.Progress
	bar     *mpb.Bar
	message string
	last    int
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newProgressView(out *os.File, name string) *progressView {
	v := &progressView{last: -1}
	if !isTerminal(out) {
		return v
	}

	v.p = mpb.New(mpb.WithWidth(52), mpb.WithOutput(out))
	v.bar = v.p.New(100,
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(decor.Name(name+"  ")),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.Any(func(decor.Statistics) string {
				v.mu.Lock()
				defer v.mu.Unlock()
				if v.message == "" {
					return ""
				}
				return " | " + v.message
			}),
		),
	)
	return v
}

// Update is registered as the tracker callback
func (v *progressView) Update(task downloader.Task) {
	pct := int(math.Round(task.Progress))

	v.mu.Lock()
	v.message = task.Message
	changed := pct != v.last
	v.last = pct
	v.mu.Unlock()

	if v.bar == nil {
		if changed || task.Done() {
			log.Printf("[Fetch] %3d%% %s", pct, task.Message)
		}
		return
	}

	switch task.Status {
	case downloader.StatusFailed:
		v.bar.Abort(false)
	case downloader.StatusCompleted:
		v.bar.SetCurrent(int64(pct))
		v.bar.SetTotal(int64(pct), true)
	default:
		v.bar.SetCurrent(int64(pct))
	}
}

// Wait flushes the bar, if any
func (v *progressView) Wait() {
	if v.p != nil {
		v.p.Wait()
	}
}
