package composite

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"mockupstudio/internal/hydrate"
	"mockupstudio/internal/scene"
)

// solidLoader serves a 50x50 image of one color for every src, or fails
// when err is set.
type solidLoader struct {
	c   color.NRGBA
	err error
}

func (l solidLoader) Load(_ context.Context, _ string) (image.Image, error) {
	if l.err != nil {
		return nil, l.err
	}
	img := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.SetNRGBA(x, y, l.c)
		}
	}
	return img, nil
}

func newDoc(t *testing.T, w, h float64) *scene.Document {
	t.Helper()
	d, err := scene.New("test", w, h)
	if err != nil {
		t.Fatalf("scene.New() error: %v", err)
	}
	return d
}

func rect(id string, left, top, w, h float64, fill string) *scene.Object {
	o, _ := scene.NewShape(id, scene.KindRect, w, h)
	o.Left, o.Top = left, top
	o.Fill = fill
	return o
}

func rgba(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func render(t *testing.T, r *Renderer, d *scene.Document, m float64) *image.RGBA {
	t.Helper()
	img, err := r.Render(context.Background(), d, RenderOptions{Multiplier: m})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	return img
}

// TestRenderSize verifies output dimensions follow the multiplier.
func TestRenderSize(t *testing.T) {
	r := NewRenderer(nil, nil)
	d := newDoc(t, 100, 50)
	tests := []struct {
		m    float64
		w, h int
	}{
		{1, 100, 50},
		{2.5, 250, 125},
		{0, 100, 50},
	}
	for _, tt := range tests {
		img := render(t, r, d, tt.m)
		if got := img.Bounds().Size(); got.X != tt.w || got.Y != tt.h {
			t.Errorf("multiplier %v: size = %v, want %dx%d", tt.m, got, tt.w, tt.h)
		}
	}
	if d.Width != 100 || d.Height != 50 {
		t.Error("render changed the document size")
	}
}

// TestRectFillAndStroke verifies fill, centered stroke and background.
func TestRectFillAndStroke(t *testing.T) {
	d := newDoc(t, 100, 100)
	o := rect("r", 20, 20, 60, 60, "#0000ff")
	o.Stroke, o.StrokeWidth = "#ff0000", 10
	d.Add(o)

	img := render(t, NewRenderer(nil, nil), d, 1)
	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"fill", 50, 50, color.RGBA{0, 0, 255, 255}},
		{"stroke on edge", 20, 50, color.RGBA{255, 0, 0, 255}},
		{"stroke outer half", 16, 50, color.RGBA{255, 0, 0, 255}},
		{"stroke inner half", 23, 50, color.RGBA{255, 0, 0, 255}},
		{"outside", 10, 50, color.RGBA{255, 255, 255, 255}},
		{"corner background", 2, 2, color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rgba(img, tt.x, tt.y); got != tt.want {
				t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

// TestRotatedRect verifies the object transform is applied.
func TestRotatedRect(t *testing.T) {
	d := newDoc(t, 100, 100)
	o := rect("r", 50, 50, 80, 10, "#000000")
	o.OriginX, o.OriginY = scene.OriginCenter, scene.OriginMiddle
	o.Angle = 90
	d.Add(o)

	img := render(t, NewRenderer(nil, nil), d, 1)
	if got := rgba(img, 50, 20); got.R != 0 {
		t.Errorf("pixel on rotated bar = %v, want black", got)
	}
	if got := rgba(img, 20, 50); got.R != 255 {
		t.Errorf("pixel off rotated bar = %v, want white", got)
	}
}

// TestOpacity verifies partially transparent objects blend.
func TestOpacity(t *testing.T) {
	d := newDoc(t, 40, 40)
	o := rect("r", 0, 0, 40, 40, "#000000")
	o.Opacity = 0.5
	d.Add(o)

	got := rgba(render(t, NewRenderer(nil, nil), d, 1), 20, 20)
	if got.R < 120 || got.R > 135 || got.A != 255 {
		t.Errorf("pixel = %v, want mid grey", got)
	}
}

// TestDashedStroke verifies dash gaps are left unpainted.
func TestDashedStroke(t *testing.T) {
	d := newDoc(t, 100, 100)
	o := rect("r", 10, 10, 80, 80, "")
	o.Stroke, o.StrokeWidth = "#000000", 4
	o.StrokeDashArray = []float64{10, 10}
	d.Add(o)

	img := render(t, NewRenderer(nil, nil), d, 1)
	if got := rgba(img, 15, 10); got.R != 0 {
		t.Errorf("dash pixel = %v, want black", got)
	}
	if got := rgba(img, 25, 10); got.R != 255 {
		t.Errorf("gap pixel = %v, want white", got)
	}
	if got := rgba(img, 50, 50); got.R != 255 {
		t.Errorf("unfilled interior = %v, want white", got)
	}
}

// TestCircleFrameMasking renders a hydrated circular frame: the photo must
// appear inside the circle and nowhere in the square's corners.
func TestCircleFrameMasking(t *testing.T) {
	tmpl := newDoc(t, 200, 200)
	tmpl.Background = scene.TransparentBackground()
	frame, _ := scene.NewShape("frame", scene.KindCircle, 200, 200)
	frame.Name = "Foto 1"
	frame.IsFrame = true
	tmpl.Add(frame)

	loader := solidLoader{c: color.NRGBA{R: 255, A: 255}}
	h := hydrate.New(tmpl, loader, hydrate.Options{})
	if err := h.SetImage(context.Background(), "Foto 1", "https://cdn.example/photo.png"); err != nil {
		t.Fatalf("SetImage() error: %v", err)
	}

	img := render(t, NewRenderer(nil, loader), h.Document(), 1)
	tests := []struct {
		name  string
		x, y  int
		alpha uint8
	}{
		{"center", 100, 100, 255},
		{"near top edge inside", 100, 5, 255},
		{"top-left corner", 3, 3, 0},
		{"outside arc", 15, 15, 0},
		{"bottom-right corner", 196, 196, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rgba(img, tt.x, tt.y)
			if got.A != tt.alpha {
				t.Errorf("pixel (%d,%d) = %v, want alpha %d", tt.x, tt.y, got, tt.alpha)
			}
			if tt.alpha == 255 && got.R != 255 {
				t.Errorf("pixel (%d,%d) = %v, want photo red", tt.x, tt.y, got)
			}
		})
	}
}

// TestImageFailureSkipsObject verifies a missing asset does not fail the
// render.
func TestImageFailureSkipsObject(t *testing.T) {
	d := newDoc(t, 50, 50)
	d.Add(scene.NewImage("img", "https://cdn.example/missing.png", 50, 50))
	r := NewRenderer(nil, solidLoader{err: errors.New("404")})

	img := render(t, r, d, 1)
	if got := rgba(img, 25, 25); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("pixel = %v, want background", got)
	}
}

// TestTextRenders verifies glyphs are drawn and alignment moves them.
func TestTextRenders(t *testing.T) {
	leftmostInk := func(align string) int {
		d := newDoc(t, 300, 80)
		o := scene.NewText("t", "Hi")
		o.Width, o.Height = 300, 60
		o.Text.TextAlign = align
		d.Add(o)
		img := render(t, NewRenderer(nil, nil), d, 1)
		for x := 0; x < 300; x++ {
			for y := 0; y < 80; y++ {
				if rgba(img, x, y).R < 128 {
					return x
				}
			}
		}
		return -1
	}

	left := leftmostInk("left")
	center := leftmostInk("center")
	if left < 0 {
		t.Fatal("left-aligned text drew no ink")
	}
	if center <= left+50 {
		t.Errorf("center-aligned ink starts at %d, left-aligned at %d", center, left)
	}
}

// TestHighExportRestoresBackground verifies the forced print background
// never leaks into the document.
func TestHighExportRestoresBackground(t *testing.T) {
	d := newDoc(t, 20, 10)
	d.Background = scene.TransparentBackground()
	r := NewRenderer(nil, nil)
	r.HighMultiplier = 3

	var buf bytes.Buffer
	if err := r.Export(context.Background(), d, ExportOptions{Quality: QualityHigh, Format: FormatPNG}, &buf); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if !d.Background.Transparent {
		t.Error("background left forced after export")
	}
	out, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error: %v", err)
	}
	if got := out.Bounds().Size(); got.X != 60 || got.Y != 30 {
		t.Errorf("high export size = %v, want 60x30", got)
	}
	if _, _, _, a := out.At(0, 0).RGBA(); a != 0xffff {
		t.Errorf("high export alpha = %#x, want opaque", a)
	}

	buf.Reset()
	if err := r.Export(context.Background(), d, ExportOptions{Quality: QualityStandard}, &buf); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	out, _ = png.Decode(&buf)
	if _, _, _, a := out.At(0, 0).RGBA(); a != 0 {
		t.Errorf("standard export alpha = %#x, want transparent", a)
	}
}

// TestExportRestoresBackgroundOnError verifies the restore also runs when
// rendering fails.
func TestExportRestoresBackgroundOnError(t *testing.T) {
	d := newDoc(t, 20, 10)
	d.Background = scene.TransparentBackground()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := NewRenderer(nil, nil).Export(ctx, d, ExportOptions{Quality: QualityHigh}, &buf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Export() error = %v, want context.Canceled", err)
	}
	if !d.Background.Transparent {
		t.Error("background left forced after failed export")
	}
}

// TestEncodeJPEG verifies JPEG output flattens transparency onto white.
func TestEncodeJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := Encode(&buf, img, FormatJPEG, 0); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	out, _, err := image.Decode(&buf)
	if err != nil {
		t.Fatalf("image.Decode() error: %v", err)
	}
	if r, _, _, _ := out.At(4, 4).RGBA(); r>>8 < 250 {
		t.Errorf("flattened pixel red = %d, want white", r>>8)
	}
}

// TestParseFormatAndQuality verifies request value mapping.
func TestParseFormatAndQuality(t *testing.T) {
	if ParseFormat("jpg") != FormatJPEG || ParseFormat("webp") != FormatPNG {
		t.Error("ParseFormat mapping wrong")
	}
	if ParseQuality("high") != QualityHigh || ParseQuality("ultra") != QualityStandard {
		t.Error("ParseQuality mapping wrong")
	}
	if FormatJPEG.ContentType() != "image/jpeg" || FormatPNG.Extension() != "png" {
		t.Error("format metadata wrong")
	}
}
