package encoder

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Handle identifies a preview registered with Previews.
type Handle string

const NoHandle Handle = ""

var ErrRevoked = errors.New("preview handle revoked")

type preview struct {
	data []byte
	mime string
	img  image.Image // decoded lazily
}

// Previews is a registry of revocable display handles. A handle stays
// readable until Revoke is called; afterwards every lookup fails.
type Previews struct {
	mu      sync.Mutex
	entries map[Handle]*preview
	created int
}

func NewPreviews() *Previews {
	return &Previews{entries: make(map[Handle]*preview)}
}

func (p *Previews) Create(data []byte, mime string) Handle {
	return p.add(&preview{data: data, mime: mime})
}

// CreateImage registers a preview whose decoded form is already known.
func (p *Previews) CreateImage(img image.Image, data []byte, mime string) Handle {
	return p.add(&preview{data: data, mime: mime, img: img})
}

func (p *Previews) add(pv *preview) Handle {
	h := Handle("preview:" + uuid.NewString())
	p.mu.Lock()
	p.entries[h] = pv
	p.created++
	p.mu.Unlock()
	return h
}

func (p *Previews) Revoke(h Handle) {
	if h == NoHandle {
		return
	}
	p.mu.Lock()
	delete(p.entries, h)
	p.mu.Unlock()
}

// Bytes returns the previewed bytes and their media type.
func (p *Previews) Bytes(h Handle) ([]byte, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pv, ok := p.entries[h]
	if !ok {
		return nil, "", ErrRevoked
	}
	return pv.data, pv.mime, nil
}

// Live reports how many handles have not been revoked.
func (p *Previews) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Created reports how many handles were ever issued.
func (p *Previews) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// Thumbnail returns the preview scaled to fit inside maxW x maxH, keeping
// its aspect ratio.
func (p *Previews) Thumbnail(h Handle, maxW, maxH int) (image.Image, error) {
	p.mu.Lock()
	pv, ok := p.entries[h]
	var src image.Image
	if ok {
		src = pv.img
	}
	p.mu.Unlock()
	if !ok {
		return nil, ErrRevoked
	}

	if src == nil {
		img, _, err := image.Decode(bytes.NewReader(pv.data))
		if err != nil {
			return nil, err
		}
		src = img
		p.mu.Lock()
		pv.img = img
		p.mu.Unlock()
	}
	return Fit(src, maxW, maxH), nil
}

// Fit scales src to the largest size inside maxW x maxH with the same aspect
// ratio.
func Fit(src image.Image, maxW, maxH int) image.Image {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	if w == 0 || h == 0 || maxW <= 0 || maxH <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	if w*maxH > h*maxW {
		h = h * maxW / w
		w = maxW
	} else {
		w = w * maxH / h
		h = maxH
	}
	w, h = max(w, 1), max(h, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	return dst
}
