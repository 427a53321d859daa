package session

import (
	"errors"
	"fmt"

	"skinscan/analysis"
	"skinscan/camera"
	"skinscan/encoder"
	"skinscan/result"
)

var (
	ErrInvalidTransition = errors.New("not allowed in current phase")
	ErrClosed            = errors.New("session closed")
	ErrCanceled          = errors.New("camera start cancelled")
)

// Kind classifies errors that reach the user.
type Kind int

const (
	KindNone Kind = iota
	KindDeviceDenied
	KindDeviceUnavailable
	KindNotReady
	KindInvalidFileType
	KindNetwork
	KindServer
	KindMalformedResponse
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindDeviceDenied:
		return "DeviceDenied"
	case KindDeviceUnavailable:
		return "DeviceUnavailable"
	case KindNotReady:
		return "NotReady"
	case KindInvalidFileType:
		return "InvalidFileType"
	case KindNetwork:
		return "NetworkError"
	case KindServer:
		return "ServerError"
	case KindMalformedResponse:
		return "MalformedResponse"
	}
	return "Unexpected"
}

func KindOf(err error) Kind {
	var ne *analysis.NetworkError
	var se *analysis.ServerError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, camera.ErrDeviceDenied):
		return KindDeviceDenied
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, camera.ErrNotReady):
		return KindNotReady
	case errors.Is(err, encoder.ErrInvalidFileType):
		return KindInvalidFileType
	case errors.As(err, &se):
		return KindServer
	case errors.As(err, &ne):
		return KindNetwork
	case errors.Is(err, result.ErrMalformedResponse):
		return KindMalformedResponse
	}
	return KindUnexpected
}

// Message is the notification text shown for err.
func Message(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindDeviceDenied:
		return "Camera access was denied. Allow camera access or upload a photo instead."
	case KindDeviceUnavailable:
		return "No camera is available. Upload a photo instead."
	case KindNotReady:
		return "The camera is still starting. Try again in a moment."
	case KindInvalidFileType:
		return "Please choose an image file."
	case KindNetwork:
		return "Could not reach the analysis service. Check your connection and try again."
	case KindServer:
		var se *analysis.ServerError
		errors.As(err, &se)
		return fmt.Sprintf("Analysis failed (server error %d). Please try again.", se.StatusCode)
	case KindMalformedResponse:
		return "The analysis service sent an unexpected response. Please try again."
	}
	return "Something went wrong. Please try again."
}
