// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// wire.go converts documents to and from the portable JSON form. Only the
// baseline geometry/style keys and the custom-property allowlist are
// written; any other key in the input is dropped on parse.
package scene

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CustomProperties is the fixed allowlist of non-baseline object keys that
// must survive every serialization round trip.
var CustomProperties = []string{
	"name", "id", "selectable", "evented", "isCustomizable", "maxChars",
	"isFrame", "customData", "rx", "ry", "stroke", "strokeWidth",
	"strokeDashArray", "radius",
}

// BaselineProperties are the rendering engine's own geometry and style keys.
var BaselineProperties = []string{
	"type", "version", "originX", "originY", "left", "top", "width", "height",
	"fill", "scaleX", "scaleY", "angle", "flipX", "flipY", "opacity", "visible",
	"text", "fontFamily", "fontSize", "fontWeight", "fontStyle", "underline",
	"textAlign", "lineHeight", "charSpacing", "src", "clipPath",
	"absolutePositioned",
}

// wire type names used by the rendering engine, keyed by kind.
var wireTypes = map[Kind]string{
	KindText:     "i-text",
	KindImage:    "image",
	KindRect:     "rect",
	KindCircle:   "circle",
	KindTriangle: "triangle",
}

// kindFromWire accepts both engine type names and the canonical kind names.
func kindFromWire(t string) Kind {
	switch strings.ToLower(t) {
	case "i-text", "itext", "textbox", "text":
		return KindText
	case "image":
		return KindImage
	case "rect", "shape-rect":
		return KindRect
	case "circle", "shape-circle":
		return KindCircle
	case "triangle", "shape-triangle":
		return KindTriangle
	}
	return Kind(t)
}

type wireDocument struct {
	Version    string        `json:"version"`
	ID         string        `json:"id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Background string        `json:"background,omitempty"`
	Objects    []*wireObject `json:"objects"`
}

type wireObject struct {
	Type    string  `json:"type"`
	Version string  `json:"version,omitempty"`
	OriginX string  `json:"originX"`
	OriginY string  `json:"originY"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`

	Fill            string    `json:"fill"`
	Stroke          string    `json:"stroke"`
	StrokeWidth     float64   `json:"strokeWidth"`
	StrokeDashArray []float64 `json:"strokeDashArray"`

	ScaleX  *float64 `json:"scaleX"`
	ScaleY  *float64 `json:"scaleY"`
	Angle   float64  `json:"angle"`
	FlipX   bool     `json:"flipX"`
	FlipY   bool     `json:"flipY"`
	Opacity *float64 `json:"opacity"`
	Visible *bool    `json:"visible"`

	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name,omitempty"`
	Selectable     *bool           `json:"selectable"`
	Evented        *bool           `json:"evented"`
	IsCustomizable bool            `json:"isCustomizable"`
	IsFrame        bool            `json:"isFrame"`
	MaxChars       *int            `json:"maxChars,omitempty"`
	CustomData     json.RawMessage `json:"customData,omitempty"`

	Rx     *float64 `json:"rx,omitempty"`
	Ry     *float64 `json:"ry,omitempty"`
	Radius *float64 `json:"radius,omitempty"`

	Text        *string  `json:"text,omitempty"`
	FontFamily  string   `json:"fontFamily,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontWeight  any      `json:"fontWeight,omitempty"`
	FontStyle   string   `json:"fontStyle,omitempty"`
	Underline   bool     `json:"underline,omitempty"`
	TextAlign   string   `json:"textAlign,omitempty"`
	LineHeight  *float64 `json:"lineHeight,omitempty"`
	CharSpacing float64  `json:"charSpacing,omitempty"`

	Src string `json:"src,omitempty"`

	ClipPath           *wireObject `json:"clipPath,omitempty"`
	AbsolutePositioned bool        `json:"absolutePositioned,omitempty"`
}

// Marshal serializes the document to its portable JSON form.
func Marshal(d *Document) ([]byte, error) {
	w := wireDocument{
		Version: FormatVersion,
		ID:      d.ID,
		Name:    d.Name,
		Width:   d.Width,
		Height:  d.Height,
		Objects: make([]*wireObject, 0, len(d.Objects)),
	}
	if !d.Background.Transparent {
		w.Background = d.Background.Color
	}
	for _, o := range d.Objects {
		w.Objects = append(w.Objects, toWire(o))
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

// Serialize returns the document's JSON form as a string, the unit stored
// in history snapshots and in a template's fabricJsonState.
func Serialize(d *Document) (string, error) {
	data, err := Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Parse decodes a serialized document, normalizes it and checks its
// invariants. All failures wrap ErrInvalidDocument.
func Parse(data []byte) (*Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: empty state", ErrInvalidDocument)
	}
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	d := &Document{
		ID:      w.ID,
		Name:    w.Name,
		Width:   w.Width,
		Height:  w.Height,
		Objects: make([]*Object, 0, len(w.Objects)),
	}
	bg := strings.TrimSpace(w.Background)
	if bg == "" || strings.EqualFold(bg, "transparent") {
		d.Background = TransparentBackground()
	} else {
		d.Background = ColorBackground(bg)
	}
	for i, wo := range w.Objects {
		if wo == nil {
			return nil, fmt.Errorf("%w: object %d is null", ErrInvalidDocument, i)
		}
		d.Objects = append(d.Objects, fromWire(wo))
	}
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseString is Parse for string snapshots.
func ParseString(s string) (*Document, error) {
	return Parse([]byte(s))
}

func toWire(o *Object) *wireObject {
	sx, sy, op := o.ScaleX, o.ScaleY, o.Opacity
	sel, ev, vis := o.Selectable, o.Evented, o.Visible
	w := &wireObject{
		Type:            wireTypes[o.Kind],
		OriginX:         string(o.OriginX),
		OriginY:         string(o.OriginY),
		Left:            o.Left,
		Top:             o.Top,
		Width:           o.Width,
		Height:          o.Height,
		Fill:            o.Fill,
		Stroke:          o.Stroke,
		StrokeWidth:     o.StrokeWidth,
		StrokeDashArray: o.StrokeDashArray,
		ScaleX:          &sx,
		ScaleY:          &sy,
		Angle:           o.Angle,
		FlipX:           o.FlipX,
		FlipY:           o.FlipY,
		Opacity:         &op,
		Visible:         &vis,
		ID:              o.ID,
		Name:            o.Name,
		Selectable:      &sel,
		Evented:         &ev,
		IsCustomizable:  o.IsCustomizable,
		IsFrame:         o.IsFrame,
		CustomData:      o.CustomData,
	}
	if w.Type == "" {
		w.Type = string(o.Kind)
	}
	switch {
	case o.Kind == KindText && o.Text != nil:
		t := o.Text
		text, size, lh, mc := t.Text, t.FontSize, t.LineHeight, t.MaxChars
		w.Text = &text
		w.FontFamily = t.FontFamily
		w.FontSize = &size
		w.FontWeight = t.FontWeight
		w.FontStyle = t.FontStyle
		w.Underline = t.Underline
		w.TextAlign = t.TextAlign
		w.LineHeight = &lh
		w.CharSpacing = t.CharSpacing
		w.MaxChars = &mc
	case o.Kind.IsShape() && o.Shape != nil:
		switch o.Kind {
		case KindRect:
			rx, ry := o.Shape.Rx, o.Shape.Ry
			w.Rx, w.Ry = &rx, &ry
		case KindCircle:
			r := o.Shape.Radius
			w.Radius = &r
		}
	case o.Kind == KindImage && o.Image != nil:
		w.Src = o.Image.Src
	}
	if o.ClipPath != nil {
		w.ClipPath = toWire(o.ClipPath)
		w.ClipPath.AbsolutePositioned = true
	}
	return w
}

func fromWire(w *wireObject) *Object {
	o := &Object{
		ID:   w.ID,
		Name: w.Name,
		Kind: kindFromWire(w.Type),
		Geometry: Geometry{
			Left:    w.Left,
			Top:     w.Top,
			Width:   w.Width,
			Height:  w.Height,
			ScaleX:  deref(w.ScaleX, 1),
			ScaleY:  deref(w.ScaleY, 1),
			Angle:   w.Angle,
			OriginX: OriginX(w.OriginX),
			OriginY: OriginY(w.OriginY),
			FlipX:   w.FlipX,
			FlipY:   w.FlipY,
		},
		Style: Style{
			Fill:            w.Fill,
			Stroke:          w.Stroke,
			StrokeWidth:     w.StrokeWidth,
			StrokeDashArray: w.StrokeDashArray,
			Opacity:         deref(w.Opacity, 1),
			Visible:         deref(w.Visible, true),
		},
		Selectable:     deref(w.Selectable, true),
		Evented:        deref(w.Evented, true),
		IsCustomizable: w.IsCustomizable,
		IsFrame:        w.IsFrame,
		CustomData:     w.CustomData,
	}
	switch {
	case o.Kind == KindText:
		o.Text = &TextProps{
			Text:        deref(w.Text, ""),
			FontFamily:  w.FontFamily,
			FontSize:    deref(w.FontSize, DefaultFontSize),
			FontWeight:  fontWeightString(w.FontWeight),
			FontStyle:   w.FontStyle,
			Underline:   w.Underline,
			TextAlign:   w.TextAlign,
			LineHeight:  deref(w.LineHeight, DefaultLineHeight),
			CharSpacing: w.CharSpacing,
			MaxChars:    deref(w.MaxChars, DefaultMaxChars),
		}
	case o.Kind.IsShape():
		o.Shape = &ShapeProps{
			Rx:     deref(w.Rx, 0),
			Ry:     deref(w.Ry, 0),
			Radius: deref(w.Radius, 0),
		}
	case o.Kind == KindImage:
		o.Image = &ImageProps{Src: w.Src}
	}
	if w.ClipPath != nil {
		o.ClipPath = fromWire(w.ClipPath)
	}
	return o
}

// fontWeightString accepts both "bold" and numeric weights like 700.
func fontWeightString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%d", int(x))
	}
	return ""
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
