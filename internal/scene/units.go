// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package scene

import "math"

// PxPerCm converts physical centimetres to device-independent pixels at
// 96 DPI (≈37.8 px/cm).
const PxPerCm = 96 / 2.54

// CmToPx returns the pixel length of cm centimetres, rounded to the
// nearest whole pixel.
func CmToPx(cm float64) float64 {
	return math.Round(cm * PxPerCm)
}

// PxToCm is the inverse of CmToPx, without rounding.
func PxToCm(px float64) float64 {
	return px / PxPerCm
}

// NewFromCm creates a document sized from physical dimensions.
func NewFromCm(name string, widthCm, heightCm float64) (*Document, error) {
	return New(name, CmToPx(widthCm), CmToPx(heightCm))
}

// DisplaySize returns the on-screen backing size of d for an internal
// resolution multiplier. The document's logical size is not touched.
func DisplaySize(d *Document, multiplier float64) (w, h int) {
	if multiplier <= 0 {
		multiplier = 1
	}
	return int(math.Ceil(d.Width * multiplier)), int(math.Ceil(d.Height * multiplier))
}
