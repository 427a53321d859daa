package camera

import (
	"context"
	"errors"
	"image"
	"strings"
)

var (
	ErrDeviceDenied      = errors.New("camera access denied")
	ErrDeviceUnavailable = errors.New("camera unavailable")
	ErrNotReady          = errors.New("camera has not delivered a frame yet")
)

var virtualKeywords = []string{
	"obs virtual", "virtual camera", "v4l2loopback", "dummy video",
	"snap camera", "manycam", "xsplit", "droidcam",
}

// IsVirtual reports whether a device name looks like a software camera.
func IsVirtual(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range virtualKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type Config struct {
	Width  int
	Height int
}

var DefaultConfig = Config{Width: 1280, Height: 720}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	Open(ctx context.Context, device *DeviceInfo, config Config) (Stream, error)
	Close()
}

// Stream is a live video stream. Frame returns the most recent frame or
// ErrNotReady before the first one arrives. Stop ends the stream and frees
// the device.
type Stream interface {
	Frame() (image.Image, error)
	Stop()
	DeviceName() string
}
