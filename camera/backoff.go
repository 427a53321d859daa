package camera

import "time"

const (
	readRetryMin = 10 * time.Millisecond
	readRetryMax = 500 * time.Millisecond
)

// readBackoff spaces out retries after failed frame reads so a stalled or
// unplugged camera does not spin the read loop.
type readBackoff struct {
	delay time.Duration
}

// next returns the wait before the next read, doubling up to readRetryMax.
func (b *readBackoff) next() time.Duration {
	switch {
	case b.delay == 0:
		b.delay = readRetryMin
	case b.delay < readRetryMax:
		b.delay = min(2*b.delay, readRetryMax)
	}
	return b.delay
}

func (b *readBackoff) reset() { b.delay = 0 }

// sleep waits d or until stop is closed; it reports false on stop.
func sleep(d time.Duration, stop <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
