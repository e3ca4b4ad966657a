package tessera

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const rateWindow = 15

// Status is a snapshot of a job's progress.
type Status struct {
	ProcessedChunks int64
	TotalChunks     int64
	// Rate is chunks per second averaged over the sample window.
	Rate float64
	// ETA is zero until a rate is known.
	ETA time.Duration
}

// Progress counts processed chunks and regions. Scan tasks only touch the atomic counters, a
// separate observer samples them once per second into a rolling window.
type Progress struct {
	chunks  atomic.Int64
	regions atomic.Int64
	total   atomic.Int64

	mu      sync.Mutex
	window  [rateWindow]float64
	samples int
	next    int
	last    int64
	rate    float64

	onSample func(Status)
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewProgress(total int64) *Progress {
	p := &Progress{}
	p.total.Store(total)
	return p
}

func (p *Progress) AddChunks(n int) {
	p.chunks.Add(int64(n))
}

func (p *Progress) AddRegion() {
	p.regions.Inc()
}

func (p *Progress) AddTotal(n int64) {
	p.total.Add(n)
}

func (p *Progress) Regions() int64 {
	return p.regions.Load()
}

// Start runs the observer until Stop. It has its own context so a cancelled job can still be
// observed until it drained.
func (p *Progress) Start(interval time.Duration, onSample func(Status)) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.onSample = onSample
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status := p.sample(interval)
				if p.onSample != nil {
					p.onSample(status)
				}
			}
		}
	}()
}

func (p *Progress) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// sample records the chunks processed since the previous sample.
func (p *Progress) sample(elapsed time.Duration) Status {
	current := p.chunks.Load()

	p.mu.Lock()
	delta := current - p.last
	p.last = current
	p.window[p.next] = float64(delta) / elapsed.Seconds()
	p.next = (p.next + 1) % rateWindow
	if p.samples < rateWindow {
		p.samples++
	}
	var sum float64
	for i := 0; i < p.samples; i++ {
		sum += p.window[i]
	}
	p.rate = sum / float64(p.samples)
	p.mu.Unlock()

	return p.Status()
}

func (p *Progress) Status() Status {
	p.mu.Lock()
	rate := p.rate
	p.mu.Unlock()

	s := Status{
		ProcessedChunks: p.chunks.Load(),
		TotalChunks:     p.total.Load(),
		Rate:            rate,
	}
	if remaining := s.TotalChunks - s.ProcessedChunks; rate > 0 && remaining > 0 {
		s.ETA = time.Duration(float64(remaining) / rate * float64(time.Second))
	}
	return s
}
