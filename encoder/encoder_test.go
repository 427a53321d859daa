package encoder

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFromStill(t *testing.T) {
	enc := New(nil)
	got, err := enc.FromStill(testImage(64, 48))
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeJPEG || got.Name != StillName {
		t.Errorf("type/name = %q/%q", got.Type, got.Name)
	}
	if got.Size != len(got.Data) || got.Size == 0 {
		t.Errorf("size = %d, len(data) = %d", got.Size, len(got.Data))
	}
	if !bytes.HasPrefix(got.Data, []byte{0xFF, 0xD8}) {
		t.Error("data does not start with JPEG SOI marker")
	}
	if got.Preview == NoHandle || enc.Previews().Live() != 1 {
		t.Errorf("preview not registered: %q live=%d", got.Preview, enc.Previews().Live())
	}
	decoded, _, err := image.Decode(bytes.NewReader(got.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 64 || decoded.Bounds().Dy() != 48 {
		t.Errorf("decoded size = %v, want native 64x48", decoded.Bounds())
	}
}

func TestFromStillEmpty(t *testing.T) {
	enc := New(nil)
	if _, err := enc.FromStill(image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("err = %v, want ErrEmptyImage", err)
	}
	if enc.Previews().Created() != 0 {
		t.Error("preview created for failed encode")
	}
}

func TestFromFile(t *testing.T) {
	data := pngBytes(t, testImage(8, 8))
	tests := []struct {
		name    string
		typ     string
		wantErr bool
	}{
		{"png", "image/png", false},
		{"heic", "image/heic", false},
		{"upper case", "IMAGE/JPEG", false},
		{"text", "text/plain", true},
		{"pdf", "application/pdf", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := New(nil)
			got, err := enc.FromFile(File{Name: "face", Type: tt.typ, Data: data})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFileType) {
					t.Errorf("err = %v, want ErrInvalidFileType", err)
				}
				if enc.Previews().Created() != 0 {
					t.Error("rejected file produced a preview")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got.Data, data) || got.Size != len(data) {
				t.Error("file bytes were not passed through unchanged")
			}
			if got.Type != tt.typ {
				t.Errorf("type = %q, want %q", got.Type, tt.typ)
			}
		})
	}
}

func TestOpenFileDetectsType(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "face.png")
	if err := os.WriteFile(imgPath, pngBytes(t, testImage(4, 4)), 0644); err != nil {
		t.Fatal(err)
	}
	txtPath := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(txtPath, []byte("definitely not a picture\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenFile(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type != "image/png" || f.Name != "face.png" {
		t.Errorf("got %q %q", f.Name, f.Type)
	}

	f, err = OpenFile(txtPath)
	if err != nil {
		t.Fatal(err)
	}
	if IsImageType(f.Type) {
		t.Errorf("text file detected as %q", f.Type)
	}
	if _, err := New(nil).FromFile(f); !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("err = %v, want ErrInvalidFileType", err)
	}

	if _, err := OpenFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRevoke(t *testing.T) {
	enc := New(nil)
	img, err := enc.FromFile(File{Name: "a.png", Type: "image/png", Data: pngBytes(t, testImage(4, 4))})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := enc.Previews().Bytes(img.Preview); err != nil {
		t.Fatal(err)
	}
	enc.Revoke(img.Preview)
	enc.Revoke(img.Preview)
	enc.Revoke(NoHandle)
	if _, _, err := enc.Previews().Bytes(img.Preview); !errors.Is(err, ErrRevoked) {
		t.Errorf("err = %v, want ErrRevoked", err)
	}
	if enc.Previews().Live() != 0 {
		t.Errorf("live = %d, want 0", enc.Previews().Live())
	}
}

func TestThumbnail(t *testing.T) {
	p := NewPreviews()
	h := p.Create(pngBytes(t, testImage(200, 100)), "image/png")

	thumb, err := p.Thumbnail(h, 40, 40)
	if err != nil {
		t.Fatal(err)
	}
	if b := thumb.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("thumbnail = %v, want 40x20", b)
	}

	p.Revoke(h)
	if _, err := p.Thumbnail(h, 40, 40); !errors.Is(err, ErrRevoked) {
		t.Errorf("err = %v, want ErrRevoked", err)
	}
}

func TestThumbnailUndecodable(t *testing.T) {
	p := NewPreviews()
	h := p.Create([]byte("not an image"), "image/heic")
	if _, err := p.Thumbnail(h, 10, 10); err == nil {
		t.Error("expected decode error")
	}
}
