// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging prepares uploaded customer photos for use as frame
// images. Uploads are decoded, capped to a maximum edge length, re-encoded
// without metadata, and accompanied by a small thumbnail variant. Variants
// larger than the source image are skipped to avoid upscaling.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	"image/png"
	"log/slog"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrUnsupported is returned for data that is not a decodable image.
var ErrUnsupported = errors.New("unsupported image format")

// MaxPixels bounds the decoded size of an upload to keep memory in check.
const MaxPixels = 50_000_000

// Variant describes a single output size.
type Variant struct {
	Name    string // e.g., "original", "thumb"
	Width   int    // Target longest edge in pixels
	Quality int    // JPEG quality 1-100, unused for PNG output
}

// DefaultVariants are produced for every upload: the photo capped at
// print-friendly dimensions and a thumbnail for pickers.
var DefaultVariants = []Variant{
	{Name: "original", Width: 4096, Quality: 90},
	{Name: "thumb", Width: 320, Quality: 75},
}

// ProcessedImage holds one generated variant ready for upload.
type ProcessedImage struct {
	Name        string // Variant name (e.g., "thumb")
	Width       int    // Actual output width
	Height      int    // Actual output height
	Data        []byte // Encoded image bytes
	ContentType string // "image/jpeg" or "image/png"
	Extension   string // ".jpg" or ".png"
}

// Info describes an image without decoding its pixels.
type Info struct {
	Format string
	Width  int
	Height int
}

// Probe reads the header of data.
func Probe(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ContentType returns the MIME type of a decoder format name.
func ContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

// GenerateVariants decodes original and produces each variant, scaled so
// its longest edge fits the variant width. Images with transparency are
// written as PNG, everything else as JPEG.
func GenerateVariants(original []byte, variants []Variant) ([]ProcessedImage, error) {
	if len(variants) == 0 {
		variants = DefaultVariants
	}

	info, err := Probe(original)
	if err != nil {
		return nil, err
	}
	if info.Width <= 0 || info.Height <= 0 || info.Width*info.Height > MaxPixels {
		return nil, fmt.Errorf("imaging: %dx%d exceeds the %d pixel limit", info.Width, info.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	alpha := !isOpaque(src)

	results := make([]ProcessedImage, 0, len(variants))
	for _, v := range variants {
		w, h := fit(info.Width, info.Height, v.Width)
		img := src
		if w != info.Width || h != info.Height {
			img = Resize(src, w, h)
		}

		out := ProcessedImage{Name: v.Name, Width: w, Height: h}
		var buf bytes.Buffer
		if alpha {
			err = png.Encode(&buf, img)
			out.ContentType, out.Extension = "image/png", ".png"
		} else {
			err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality(v.Quality)})
			out.ContentType, out.Extension = "image/jpeg", ".jpg"
		}
		if err != nil {
			return nil, fmt.Errorf("imaging: encode %s: %w", v.Name, err)
		}
		out.Data = buf.Bytes()
		results = append(results, out)
	}

	slog.Debug("image variants generated", "format", info.Format, "width", info.Width, "height", info.Height, "variants", len(results))
	return results, nil
}

// Resize scales src to exactly w×h with Catmull-Rom interpolation.
func Resize(src image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// fit returns the size of a w×h image scaled down so neither edge exceeds
// limit. Images already within limit are returned unchanged.
func fit(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

func quality(q int) int {
	if q <= 0 || q > 100 {
		return 85
	}
	return q
}

// isOpaque reports whether every pixel of img is fully opaque.
func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}
