package session

import "skinscan/result"

// Sink receives session events in order. Calls are serialized. A Sink must
// not call session triggers synchronously.
type Sink interface {
	PhaseChanged(from, to Phase)
	Progress(pct int)
	Completed(r result.Result)
	Failed(err error, message string)
}

type NopSink struct{}

func (NopSink) PhaseChanged(Phase, Phase) {}
func (NopSink) Progress(int) {}
func (NopSink) Completed(result.Result) {}
func (NopSink) Failed(error, string) {}
