package session

import (
	"sync"
	"time"
)

const (
	ProgressInterval = 200 * time.Millisecond
	progressStep     = 5
	progressCap      = 95 // never reached before the response settles
	ProgressDone     = 100
)

// progressMeter is the cosmetic progress curve shown while a request is in
// flight.
type progressMeter struct {
	pct int
}

func (m *progressMeter) Tick() int {
	m.pct = min(m.pct+progressStep, progressCap)
	return m.pct
}

// progressTicker drives a progressMeter on a timer. It lives exactly as long
// as one request: it is started on entry to Processing and stopped when
// that request settles or is abandoned.
type progressTicker struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newProgressTicker() *progressTicker {
	return &progressTicker{stop: make(chan struct{}), done: make(chan struct{})}
}

// start calls tick every interval until Stop or until tick returns false.
func (t *progressTicker) start(interval time.Duration, tick func() bool) {
	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				if !tick() {
					return
				}
			}
		}
	}()
}

// Stop ends the ticker and waits for its goroutine. Safe on nil and safe to
// call more than once.
func (t *progressTicker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
