//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

type gocvContext struct{}

func NewContext() (Context, error) {
	return &gocvContext{}, nil
}

func (c *gocvContext) Close() {}

func (c *gocvContext) Devices() ([]DeviceInfo, error) {
	if runtime.GOOS != "linux" {
		return []DeviceInfo{{ID: "0", Name: "Default camera"}}, nil
	}
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	var devices []DeviceInfo
	for _, p := range paths {
		name := filepath.Base(p)
		if b, err := os.ReadFile(filepath.Join("/sys/class/video4linux", name, "name")); err == nil {
			name = strings.TrimSpace(string(b))
		}
		devices = append(devices, DeviceInfo{ID: p, Name: name})
	}
	return devices, nil
}

func (c *gocvContext) Open(ctx context.Context, device *DeviceInfo, config Config) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var target any = 0
	name := "Default camera"
	if device != nil {
		name = device.Name
		if idx, err := strconv.Atoi(device.ID); err == nil {
			target = idx
		} else {
			if err := checkNode(device.ID); err != nil {
				return nil, err
			}
			target = device.ID
		}
	}

	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s did not open", ErrDeviceUnavailable, name)
	}
	if config.Width > 0 && config.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(config.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(config.Height))
	}

	s := &gocvStream{
		vc:   vc,
		name: name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.grab()
	return s, nil
}

// checkNode maps permission problems on a device node to ErrDeviceDenied.
// OpenCV reports both cases as a plain open failure.
func checkNode(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	switch {
	case err == nil:
		f.Close()
		return nil
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrDeviceDenied, path)
	default:
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
}

type gocvStream struct {
	vc   *gocv.VideoCapture
	name string

	mu     sync.Mutex
	latest image.Image

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (s *gocvStream) grab() {
	defer close(s.done)
	mat := gocv.NewMat()
	defer mat.Close()
	var backoff readBackoff
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if ok := s.vc.Read(&mat); !ok || mat.Empty() {
			if !sleep(backoff.next(), s.stop) {
				return
			}
			continue
		}
		img, err := mat.ToImage()
		if err != nil {
			if !sleep(backoff.next(), s.stop) {
				return
			}
			continue
		}
		backoff.reset()
		s.mu.Lock()
		s.latest = img
		s.mu.Unlock()
	}
}

func (s *gocvStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, ErrNotReady
	}
	return s.latest, nil
}

func (s *gocvStream) Stop() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		s.vc.Close()
	})
}

func (s *gocvStream) DeviceName() string { return s.name }
