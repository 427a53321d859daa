//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

var (
	shutter   []int16
	done      []int16
	failure   []int16
	soundOnce sync.Once
)

func initSound() {
	shutter = shutterSamples()
	done = doneSamples()
	failure = errorSamples()
}

func play(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("skinscan"))
	if err != nil {
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
}

func Init() {
	soundOnce.Do(initSound)
}

func playAsync(get func() []int16) {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSound)
	go play(get())
}

func PlayShutter() { playAsync(func() []int16 { return shutter }) }
func PlayDone()    { playAsync(func() []int16 { return done }) }
func PlayError()   { playAsync(func() []int16 { return failure }) }
