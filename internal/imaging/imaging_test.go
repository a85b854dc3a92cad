package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestProbe(t *testing.T) {
	info, err := Probe(encodePNG(t, solid(30, 20, color.NRGBA{A: 255})))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Format != "png" || info.Width != 30 || info.Height != 20 {
		t.Errorf("Probe = %+v", info)
	}
	if _, err := Probe([]byte("not an image")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Probe(garbage) error = %v, want ErrUnsupported", err)
	}
}

func TestGenerateVariantsOpaqueBecomesJPEG(t *testing.T) {
	src := encodePNG(t, solid(800, 400, color.NRGBA{R: 200, A: 255}))
	out, err := GenerateVariants(src, []Variant{
		{Name: "original", Width: 1000, Quality: 90},
		{Name: "thumb", Width: 200, Quality: 75},
	})
	if err != nil {
		t.Fatalf("GenerateVariants: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("variants = %d, want 2", len(out))
	}

	orig, thumb := out[0], out[1]
	if orig.Width != 800 || orig.Height != 400 {
		t.Errorf("original upscaled or resized: %dx%d", orig.Width, orig.Height)
	}
	if thumb.Width != 200 || thumb.Height != 100 {
		t.Errorf("thumb = %dx%d, want 200x100", thumb.Width, thumb.Height)
	}
	for _, v := range out {
		if v.ContentType != "image/jpeg" || v.Extension != ".jpg" {
			t.Errorf("%s: content type %q %q", v.Name, v.ContentType, v.Extension)
		}
		if _, err := jpeg.Decode(bytes.NewReader(v.Data)); err != nil {
			t.Errorf("%s: output is not a JPEG: %v", v.Name, err)
		}
	}
}

func TestGenerateVariantsKeepsTransparency(t *testing.T) {
	src := encodePNG(t, solid(100, 300, color.NRGBA{G: 255, A: 128}))
	out, err := GenerateVariants(src, []Variant{{Name: "thumb", Width: 150}})
	if err != nil {
		t.Fatalf("GenerateVariants: %v", err)
	}
	v := out[0]
	if v.ContentType != "image/png" {
		t.Errorf("content type = %q, want image/png", v.ContentType)
	}
	if v.Width != 50 || v.Height != 150 {
		t.Errorf("size = %dx%d, want 50x150", v.Width, v.Height)
	}
	img, err := png.Decode(bytes.NewReader(v.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, _, _, a := img.At(25, 75).RGBA(); a == 0xffff {
		t.Error("alpha lost in resize")
	}
}

func TestGenerateVariantsRejectsGarbage(t *testing.T) {
	if _, err := GenerateVariants([]byte("GIF89a nope"), nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH  int
	}{
		{100, 50, 200, 100, 50},
		{400, 200, 100, 100, 50},
		{200, 400, 100, 50, 100},
		{1000, 1, 10, 10, 1},
		{100, 100, 0, 100, 100},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.limit)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fit(%d, %d, %d) = %d, %d, want %d, %d", tt.w, tt.h, tt.limit, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestContentType(t *testing.T) {
	for format, want := range map[string]string{
		"jpeg": "image/jpeg", "png": "image/png", "gif": "image/gif", "webp": "image/webp", "bmp": "application/octet-stream",
	} {
		if got := ContentType(format); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", format, got, want)
		}
	}
}
