// Package beep plays short feedback tones: a shutter click when a photo is
// taken, a chime when analysis completes and a buzz on failure.
package beep

import (
	"math"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// Shutter: filtered noise burst followed by a short high click
	shutterNoiseDur = 0.035
	shutterClickHz  = 2400
	shutterVolume   = 0.45
	shutterDecay    = 90

	// Done: two ascending notes
	doneLowHz  = 880
	doneHighHz = 1320
	doneNote   = 0.09
	doneVolume = 0.4
	doneDecay  = 25

	// Error: low double buzz
	errorFreq   = 330
	errorVolume = 0.55
	errorDecay  = 30
)

// tone renders a decaying sine as mono 16-bit samples.
func tone(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / sampleRate
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * math.Exp(-t*decay))
	}
	return out
}

// noise renders a decaying noise burst. The generator is a fixed LCG so the
// sound is identical on every run.
func noise(duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	out := make([]int16, n)
	var state uint32 = 0x9e3779b9
	var prev float64
	for i := range out {
		state = state*1664525 + 1013904223
		r := float64(int32(state)) / math.MaxInt32
		prev = 0.6*prev + 0.4*r // soften the hiss
		t := float64(i) / sampleRate
		out[i] = int16(prev * 32767 * volume * math.Exp(-t*decay))
	}
	return out
}

func silence(duration float64) []int16 {
	return make([]int16, int(float64(sampleRate)*duration))
}

func concat(parts ...[]int16) []int16 {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]int16, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func shutterSamples() []int16 {
	return concat(
		noise(shutterNoiseDur, shutterVolume, shutterDecay),
		tone(shutterClickHz, 0.02, shutterVolume, shutterDecay*2),
	)
}

func doneSamples() []int16 {
	return concat(
		tone(doneLowHz, doneNote, doneVolume, doneDecay),
		tone(doneHighHz, doneNote*1.5, doneVolume, doneDecay),
	)
}

func errorSamples() []int16 {
	buzz := tone(errorFreq, 0.08, errorVolume, errorDecay)
	return concat(buzz, silence(0.05), buzz)
}

// toBytes converts samples to little-endian S16 bytes.
func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}
