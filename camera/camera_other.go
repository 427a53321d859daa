//go:build !gocv

package camera

import "fmt"

func NewContext() (Context, error) {
	return nil, fmt.Errorf("%w: built without camera support (rebuild with -tags gocv)", ErrDeviceUnavailable)
}
