// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package scene defines the scene object model and the template document
// that holds it. A document is a sized canvas with a background mode and an
// ordered list of objects (index 0 is the bottom of the z-order). Documents
// serialize to the portable JSON form stored as a template's fabricJsonState.
package scene

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the drawable variants of a scene object.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindRect     Kind = "shape-rect"
	KindCircle   Kind = "shape-circle"
	KindTriangle Kind = "shape-triangle"
)

// Valid reports whether k is one of the known object kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindRect, KindCircle, KindTriangle:
		return true
	}
	return false
}

// IsShape reports whether k is a geometric shape (rect, circle, triangle).
// Only shapes can be marked as photo frames.
func (k Kind) IsShape() bool {
	return k == KindRect || k == KindCircle || k == KindTriangle
}

// Defaults applied to newly created or partially specified objects.
const (
	DefaultMaxChars   = 50
	DefaultFontSize   = 40
	DefaultFontFamily = "Go"
	DefaultLineHeight = 1.16
	DefaultFill       = "#000000"
)

// OriginX is the horizontal anchor of an object's position.
type OriginX string

// OriginY is the vertical anchor of an object's position.
type OriginY string

const (
	OriginLeft   OriginX = "left"
	OriginCenter OriginX = "center"
	OriginRight  OriginX = "right"

	OriginTop    OriginY = "top"
	OriginMiddle OriginY = "center"
	OriginBottom OriginY = "bottom"
)

// Geometry holds an object's position and transform. Width and Height
// describe the untransformed local box; Left/Top locate the origin point.
type Geometry struct {
	Left    float64
	Top     float64
	Width   float64
	Height  float64
	ScaleX  float64
	ScaleY  float64
	Angle   float64 // degrees, clockwise
	OriginX OriginX
	OriginY OriginY
	FlipX   bool
	FlipY   bool
}

// Style holds fill, stroke and visibility attributes shared by all kinds.
// An empty Fill or Stroke means "none".
type Style struct {
	Fill            string
	Stroke          string
	StrokeWidth     float64
	StrokeDashArray []float64
	Opacity         float64
	Visible         bool
}

// TextProps are the fields specific to text objects.
type TextProps struct {
	Text        string
	FontFamily  string
	FontSize    float64
	FontWeight  string
	FontStyle   string
	Underline   bool
	TextAlign   string
	LineHeight  float64
	CharSpacing float64 // thousandths of an em
	MaxChars    int     // hard limit for customer input
}

// ShapeProps are the fields specific to rect, circle and triangle objects.
type ShapeProps struct {
	Rx     float64 // rect corner radius (x)
	Ry     float64 // rect corner radius (y)
	Radius float64 // circle radius
}

// ImageProps are the fields specific to image objects.
type ImageProps struct {
	Src string // resolved URL, never inline data
}

// Object is one drawable unit of a template. Exactly one of Text, Shape or
// Image is set, matching Kind.
type Object struct {
	ID   string
	Name string
	Kind Kind

	Geometry
	Style

	Selectable     bool
	Evented        bool
	IsCustomizable bool
	IsFrame        bool
	CustomData     json.RawMessage

	Text  *TextProps
	Shape *ShapeProps
	Image *ImageProps

	// ClipPath is an absolutely positioned shape masking this object.
	ClipPath *Object
}

// SlotKey is the identifier shown to customers for a slot: the object's
// name when set, its id otherwise.
func (o *Object) SlotKey() string {
	if o.Name != "" {
		return o.Name
	}
	return o.ID
}

// NewText creates a text object with editor defaults.
func NewText(id, text string) *Object {
	return &Object{
		ID:         id,
		Kind:       KindText,
		Geometry:   defaultGeometry(),
		Style:      Style{Fill: DefaultFill, Opacity: 1, Visible: true},
		Selectable: true,
		Evented:    true,
		Text: &TextProps{
			Text:       text,
			FontFamily: DefaultFontFamily,
			FontSize:   DefaultFontSize,
			FontWeight: "normal",
			FontStyle:  "normal",
			TextAlign:  "left",
			LineHeight: DefaultLineHeight,
			MaxChars:   DefaultMaxChars,
		},
	}
}

// NewShape creates a shape object of the given kind sized w×h. Circles use
// the smaller of w and h as their diameter.
func NewShape(id string, kind Kind, w, h float64) (*Object, error) {
	if !kind.IsShape() {
		return nil, fmt.Errorf("new shape: %q is not a shape kind", kind)
	}
	o := &Object{
		ID:         id,
		Kind:       kind,
		Geometry:   defaultGeometry(),
		Style:      Style{Fill: "#cccccc", Opacity: 1, Visible: true},
		Selectable: true,
		Evented:    true,
		Shape:      &ShapeProps{},
	}
	o.Width, o.Height = w, h
	if kind == KindCircle {
		d := min(w, h)
		o.Shape.Radius = d / 2
		o.Width, o.Height = d, d
	}
	return o, nil
}

// NewImage creates an image object referencing src with its natural size.
func NewImage(id, src string, w, h float64) *Object {
	o := &Object{
		ID:         id,
		Kind:       KindImage,
		Geometry:   defaultGeometry(),
		Style:      Style{Opacity: 1, Visible: true},
		Selectable: true,
		Evented:    true,
		Image:      &ImageProps{Src: src},
	}
	o.Width, o.Height = w, h
	return o
}

func defaultGeometry() Geometry {
	return Geometry{
		ScaleX:  1,
		ScaleY:  1,
		OriginX: OriginLeft,
		OriginY: OriginTop,
	}
}

// normalize fills in variant props and defaults that a parsed object may
// lack. It never overwrites values that are present.
func (o *Object) normalize() {
	if o.ScaleX == 0 {
		o.ScaleX = 1
	}
	if o.ScaleY == 0 {
		o.ScaleY = 1
	}
	if o.OriginX == "" {
		o.OriginX = OriginLeft
	}
	if o.OriginY == "" {
		o.OriginY = OriginTop
	}
	switch {
	case o.Kind == KindText:
		if o.Text == nil {
			o.Text = &TextProps{}
		}
		t := o.Text
		if t.FontFamily == "" {
			t.FontFamily = DefaultFontFamily
		}
		if t.FontSize <= 0 {
			t.FontSize = DefaultFontSize
		}
		if t.LineHeight <= 0 {
			t.LineHeight = DefaultLineHeight
		}
		if t.MaxChars <= 0 {
			t.MaxChars = DefaultMaxChars
		}
		o.Shape, o.Image = nil, nil
	case o.Kind.IsShape():
		if o.Shape == nil {
			o.Shape = &ShapeProps{}
		}
		if o.Kind == KindCircle {
			if o.Shape.Radius <= 0 {
				o.Shape.Radius = max(o.Width, o.Height) / 2
			}
			o.Width, o.Height = o.Shape.Radius*2, o.Shape.Radius*2
		}
		o.Text, o.Image = nil, nil
	case o.Kind == KindImage:
		if o.Image == nil {
			o.Image = &ImageProps{}
		}
		o.Text, o.Shape = nil, nil
	}
	if o.ClipPath != nil {
		o.ClipPath.normalize()
	}
}

// validate checks the per-object invariants.
func (o *Object) validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("object %q: unknown kind %q", o.ID, o.Kind)
	}
	if o.Opacity < 0 || o.Opacity > 1 {
		return fmt.Errorf("object %q: opacity %v out of range [0,1]", o.ID, o.Opacity)
	}
	if o.IsFrame && !o.Kind.IsShape() {
		return fmt.Errorf("object %q: only shapes can be frames", o.ID)
	}
	if o.Kind == KindImage && IsDataURL(o.Image.Src) {
		return fmt.Errorf("object %q: image src must be a URL, not embedded data", o.ID)
	}
	if o.ClipPath != nil && !o.ClipPath.Kind.IsShape() {
		return fmt.Errorf("object %q: clip path must be a shape", o.ID)
	}
	return nil
}
