package main

import (
	"time"

	"skinscan/beep"
	"skinscan/result"
	"skinscan/session"
)

// feedback decorates a display sink with sounds and latency tracking so
// every front end gets them.
type feedback struct {
	next    session.Sink
	stats   *latencyStats
	started time.Time
}

func newFeedback(next session.Sink, stats *latencyStats) *feedback {
	if next == nil {
		next = session.NopSink{}
	}
	return &feedback{next: next, stats: stats}
}

func (f *feedback) PhaseChanged(from, to session.Phase) {
	if to == session.Processing {
		f.started = time.Now()
		if from == session.Capturing {
			go beep.PlayShutter()
		}
	}
	f.next.PhaseChanged(from, to)
}

func (f *feedback) Progress(pct int) {
	f.next.Progress(pct)
}

func (f *feedback) Completed(r result.Result) {
	if !f.started.IsZero() {
		f.stats.Add(time.Since(f.started))
	}
	go beep.PlayDone()
	f.next.Completed(r)
}

func (f *feedback) Failed(err error, message string) {
	go beep.PlayError()
	f.next.Failed(err, message)
}
