package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// FakeContext serves a fixed frame. It counts opens and stops so callers can
// check that every acquired stream is stopped.
type FakeContext struct {
	mu         sync.Mutex
	frame      image.Image
	openErr    error
	warmup     int
	opens      int
	stops      int
	gate       chan struct{}
	openCalled chan struct{}
}

func NewFakeContext(frame image.Image) *FakeContext {
	return &FakeContext{frame: frame}
}

// LoadFakeContext serves the image stored at path as every frame.
func LoadFakeContext(path string) (*FakeContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewFakeContext(img), nil
}

// SolidFrame is a convenience frame for tests and demos.
func SolidFrame(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// FailOpen makes subsequent opens return err.
func (f *FakeContext) FailOpen(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

// Warmup makes each new stream report ErrNotReady for its first n frames.
func (f *FakeContext) Warmup(n int) {
	f.mu.Lock()
	f.warmup = n
	f.mu.Unlock()
}

// Block makes Open wait until the returned function is called. The returned
// channel is closed once Open has been entered.
func (f *FakeContext) Block() (entered <-chan struct{}, unblock func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.openCalled = make(chan struct{})
	gate := f.gate
	var once sync.Once
	return f.openCalled, func() { once.Do(func() { close(gate) }) }
}

func (f *FakeContext) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *FakeContext) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "Fake Camera"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) Open(ctx context.Context, _ *DeviceInfo, _ Config) (Stream, error) {
	f.mu.Lock()
	gate, called := f.gate, f.openCalled
	f.gate, f.openCalled = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(called)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	return &fakeStream{ctx: f, frame: f.frame, warmup: f.warmup}, nil
}

type fakeStream struct {
	ctx    *FakeContext
	frame  image.Image
	mu     sync.Mutex
	warmup int
}

func (s *fakeStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warmup > 0 {
		s.warmup--
		return nil, ErrNotReady
	}
	if s.frame == nil {
		return nil, ErrNotReady
	}
	return s.frame, nil
}

// Stop counts every call; deduplication is the Handle's job.
func (s *fakeStream) Stop() {
	s.ctx.mu.Lock()
	s.ctx.stops++
	s.ctx.mu.Unlock()
}

func (s *fakeStream) DeviceName() string { return "fake" }
