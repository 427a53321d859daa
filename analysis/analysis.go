// Package analysis submits images to the skin analysis backend.
package analysis

import (
	"context"
	"fmt"
	"time"

	"skinscan/encoder"
)

// Client submits one image per call. Implementations never retry.
type Client interface {
	Name() string
	Submit(ctx context.Context, img *encoder.CapturedImage) (*Response, error)
}

// Response is the raw backend payload plus transport metrics.
type Response struct {
	Payload    []byte
	StatusCode int
	Metrics    *NetworkMetrics
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

// NetworkError means no HTTP response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError means the backend answered with a non-2xx status.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analysis server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis server returned %d: %s", e.StatusCode, e.Body)
}
