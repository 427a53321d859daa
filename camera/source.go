package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

// Handle is exclusive ownership of an acquired stream. It is released
// exactly once no matter how many times Release is called.
type Handle struct {
	ID       string
	stream   Stream
	once     sync.Once
	released atomic.Bool
}

func (h *Handle) Released() bool {
	return h == nil || h.released.Load()
}

func (h *Handle) DeviceName() string {
	if h == nil {
		return ""
	}
	return h.stream.DeviceName()
}

// Source adapts a platform Context to the acquire/capture/release contract
// used by the capture session.
type Source struct {
	ctx    Context
	device *DeviceInfo
	config Config

	mu       sync.Mutex
	acquired int
	released int
}

// NewSource wraps ctx. A nil ctx yields a source whose Acquire always fails
// with ErrDeviceUnavailable.
func NewSource(ctx Context, device *DeviceInfo, config Config) *Source {
	return &Source{ctx: ctx, device: device, config: config}
}

func (s *Source) Acquire(ctx context.Context) (*Handle, error) {
	if s.ctx == nil {
		return nil, fmt.Errorf("%w: no camera driver", ErrDeviceUnavailable)
	}
	stream, err := s.ctx.Open(ctx, s.device, s.config)
	if err != nil {
		return nil, classify(err)
	}
	s.mu.Lock()
	s.acquired++
	s.mu.Unlock()
	return &Handle{ID: uuid.NewString(), stream: stream}, nil
}

func classify(err error) error {
	if errors.Is(err, ErrDeviceDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

// CaptureStill copies the current frame at its native resolution. The
// returned image does not alias the stream's buffers, so it stays valid
// after Release.
func (s *Source) CaptureStill(h *Handle) (image.Image, error) {
	if h.Released() {
		return nil, fmt.Errorf("%w: stream released", ErrNotReady)
	}
	frame, err := h.stream.Frame()
	if err != nil {
		return nil, err
	}
	b := frame.Bounds()
	if b.Empty() {
		return nil, ErrNotReady
	}
	still := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(still, image.Point{}, frame, b, xdraw.Src, nil)
	return still, nil
}

func (s *Source) Release(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.released.Store(true)
		h.stream.Stop()
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	})
}

// Outstanding reports acquired handles that have not been released yet.
func (s *Source) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired - s.released
}
