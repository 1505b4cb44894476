package broadcast

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// progress counts finished deliveries. With a writer it also prints a
// status line every interval deliveries, rewriting the line in place.
type progress struct {
	out      io.Writer
	total    int
	interval int
	begun    time.Time

	mu      sync.Mutex
	sent    int
	failed  int
	printed int
}

func newProgress(out io.Writer, total, interval int) *progress {
	if interval < 1 {
		interval = 1
	}
	return &progress{out: out, total: total, interval: interval, begun: time.Now()}
}

func (p *progress) record(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ok {
		p.sent++
	} else {
		p.failed++
	}
	if done := p.sent + p.failed; done-p.printed >= p.interval {
		p.printed = done
		p.print(done)
	}
}

// finish prints the closing line and returns the final counts.
func (p *progress) finish() (sent, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out != nil {
		p.print(p.sent + p.failed)
		fmt.Fprintln(p.out)
	}
	return p.sent, p.failed
}

// print must be called with mu held.
func (p *progress) print(done int) {
	if p.out == nil {
		return
	}
	pct := 100.0
	if p.total > 0 {
		pct = float64(done) * 100 / float64(p.total)
	}
	var rate float64
	if secs := time.Since(p.begun).Seconds(); secs > 0 {
		rate = float64(done) / secs
	}
	fmt.Fprintf(p.out, "\rBroadcast: %d/%d (%.1f%%), %d failed, %.1f msg/s",
		done, p.total, pct, p.failed, rate)
}
