//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	shutter   []byte
	done      []byte
	failure   []byte
	soundOnce sync.Once

	// read from the device callback
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: onData})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	shutter = toBytes(shutterSamples())
	done = toBytes(doneSamples())
	failure = toBytes(errorSamples())

	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func onData(out, _ []byte, frameCount uint32) {
	want := frameCount * 2
	n := uint32(0)
	if samples := current.Load(); samples != nil {
		p := pos.Load()
		if remaining := uint32(len(*samples)) - p; remaining > 0 {
			n = min(want, remaining)
			copy(out[:n], (*samples)[p:p+n])
			pos.Store(p + n)
		} else {
			current.Store(nil)
		}
	}
	clear(out[n:want])
}

func play(samples []byte) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}
	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}

	device.Stop()
	pos.Store(0)
	current.Store(&samples)

	if err := device.Start(); err != nil {
		// the device goes stale across sleep/wake; rebuild once
		device.Uninit()
		if err := initDevice(); err != nil || device.Start() != nil {
			current.Store(nil)
		}
	}
}

func Init() {
	soundOnce.Do(initSound)
}

func playSync(get func() []byte) {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSound)
	play(get())
}

func PlayShutter() { playSync(func() []byte { return shutter }) }
func PlayDone()    { playSync(func() []byte { return done }) }
func PlayError()   { playSync(func() []byte { return failure }) }
