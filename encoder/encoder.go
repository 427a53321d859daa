package encoder

import (
	"errors"
	"fmt"
	"image"
)

const (
	DefaultQuality = 90
	TypeJPEG       = "image/jpeg"
	StillName      = "capture.jpg"
)

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrEmptyImage      = errors.New("image has no pixels")
)

// CapturedImage is an encoded image ready for submission together with the
// display handle that previews it. Data is never modified after creation.
type CapturedImage struct {
	Name    string
	Type    string
	Data    []byte
	Size    int
	Preview Handle
}

// File is a user-selected file with its declared media type.
type File struct {
	Name string
	Type string
	Data []byte
}

type Encoder struct {
	previews *Previews
	quality  int
}

func New(previews *Previews) *Encoder {
	if previews == nil {
		previews = NewPreviews()
	}
	return &Encoder{previews: previews, quality: DefaultQuality}
}

func (e *Encoder) SetQuality(q int) {
	if q < 1 || q > 100 {
		return
	}
	e.quality = q
}

func (e *Encoder) Previews() *Previews {
	return e.previews
}

// Revoke releases a display handle. Unknown and already revoked handles are
// ignored.
func (e *Encoder) Revoke(h Handle) {
	e.previews.Revoke(h)
}

// FromStill JPEG-encodes a still frame and registers a preview for it.
func (e *Encoder) FromStill(img image.Image) (*CapturedImage, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	data, err := encodeJPEG(img, e.quality)
	if err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	return &CapturedImage{
		Name:    StillName,
		Type:    TypeJPEG,
		Data:    data,
		Size:    len(data),
		Preview: e.previews.CreateImage(img, data, TypeJPEG),
	}, nil
}

// FromFile accepts a file whose declared type is image/*. The bytes are
// passed through without re-encoding.
func (e *Encoder) FromFile(f File) (*CapturedImage, error) {
	if !IsImageType(f.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileType, f.Type)
	}
	return &CapturedImage{
		Name:    f.Name,
		Type:    f.Type,
		Data:    f.Data,
		Size:    len(f.Data),
		Preview: e.previews.Create(f.Data, f.Type),
	}, nil
}
