// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"mockupstudio/internal/scene"
)

// ErrObjectNotFound is returned by canvas operations on an unknown id.
var ErrObjectNotFound = errors.New("object not found")

// EventType names a canvas change notification.
type EventType string

const (
	EventObjectAdded    EventType = "object:added"
	EventObjectModified EventType = "object:modified"
	EventObjectRemoved  EventType = "object:removed"
	EventCanvasLoaded   EventType = "canvas:loaded"
)

// Event is emitted after every structural mutation of a canvas.
type Event struct {
	Type     EventType
	ObjectID string
}

// Canvas is the live, mutable scene an editing session wraps. Load must be
// atomic: a state that fails to parse leaves the canvas untouched.
type Canvas interface {
	Snapshot() (string, error)
	Load(state string) error
	Document() *scene.Document
	OnChange(fn func(Event))
}

// DocumentCanvas is the in-process Canvas over a scene.Document. It carries
// the toolbar operations an operator performs while designing a template.
type DocumentCanvas struct {
	doc      *scene.Document
	handlers []func(Event)
	newID    func() string
}

// NewDocumentCanvas wraps doc. The canvas takes ownership of doc.
func NewDocumentCanvas(doc *scene.Document) *DocumentCanvas {
	return &DocumentCanvas{
		doc:   doc,
		newID: func() string { return uuid.New().String() },
	}
}

// OnChange registers fn to receive every change event.
func (c *DocumentCanvas) OnChange(fn func(Event)) {
	c.handlers = append(c.handlers, fn)
}

func (c *DocumentCanvas) emit(t EventType, id string) {
	for _, fn := range c.handlers {
		fn(Event{Type: t, ObjectID: id})
	}
}

// Document returns the live document. Callers that need a stable view must
// Clone it.
func (c *DocumentCanvas) Document() *scene.Document {
	return c.doc
}

// Snapshot serializes the live document.
func (c *DocumentCanvas) Snapshot() (string, error) {
	return scene.Serialize(c.doc)
}

// Load replaces the document with a parsed state. Like a rendering engine
// re-populating its object list, it emits one added event per object and a
// final loaded event.
func (c *DocumentCanvas) Load(state string) error {
	doc, err := scene.ParseString(state)
	if err != nil {
		return err
	}
	c.doc = doc
	for _, o := range doc.Objects {
		c.emit(EventObjectAdded, o.ID)
	}
	c.emit(EventCanvasLoaded, "")
	return nil
}

func (c *DocumentCanvas) add(o *scene.Object) *scene.Object {
	if o.ID == "" {
		o.ID = c.newID()
	}
	o.SetCenter(scene.Point{X: c.doc.Width / 2, Y: c.doc.Height / 2})
	c.doc.Add(o)
	c.emit(EventObjectAdded, o.ID)
	return o
}

// AddText adds a text object centered on the canvas.
func (c *DocumentCanvas) AddText(text string) *scene.Object {
	return c.add(scene.NewText("", text))
}

// AddShape adds a shape of the given kind centered on the canvas.
func (c *DocumentCanvas) AddShape(kind scene.Kind, w, h float64) (*scene.Object, error) {
	o, err := scene.NewShape("", kind, w, h)
	if err != nil {
		return nil, err
	}
	return c.add(o), nil
}

// AddImage adds an image referencing src. Embedded data URLs are refused;
// images must be uploaded first.
func (c *DocumentCanvas) AddImage(src string, w, h float64) (*scene.Object, error) {
	if scene.IsDataURL(src) {
		return nil, fmt.Errorf("add image: %w", errEmbeddedImage)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("add image: natural size %vx%v must be positive", w, h)
	}
	return c.add(scene.NewImage("", src, w, h)), nil
}

var errEmbeddedImage = errors.New("embedded image data is not allowed, upload the file first")

// Patch is a partial update of an object's editable fields. Nil fields are
// left unchanged.
type Patch struct {
	Name        *string          `json:"name,omitempty"`
	Left        *float64         `json:"left,omitempty"`
	Top         *float64         `json:"top,omitempty"`
	Width       *float64         `json:"width,omitempty"`
	Height      *float64         `json:"height,omitempty"`
	ScaleX      *float64         `json:"scaleX,omitempty"`
	ScaleY      *float64         `json:"scaleY,omitempty"`
	Angle       *float64         `json:"angle,omitempty"`
	FlipX       *bool            `json:"flipX,omitempty"`
	FlipY       *bool            `json:"flipY,omitempty"`
	Fill        *string          `json:"fill,omitempty"`
	Stroke      *string          `json:"stroke,omitempty"`
	StrokeWidth *float64         `json:"strokeWidth,omitempty"`
	Opacity     *float64         `json:"opacity,omitempty"`
	Visible     *bool            `json:"visible,omitempty"`
	CustomData  *json.RawMessage `json:"customData,omitempty"`

	Text        *string  `json:"text,omitempty"`
	FontFamily  *string  `json:"fontFamily,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontWeight  *string  `json:"fontWeight,omitempty"`
	FontStyle   *string  `json:"fontStyle,omitempty"`
	Underline   *bool    `json:"underline,omitempty"`
	TextAlign   *string  `json:"textAlign,omitempty"`
	LineHeight  *float64 `json:"lineHeight,omitempty"`
	CharSpacing *float64 `json:"charSpacing,omitempty"`
	MaxChars    *int     `json:"maxChars,omitempty"`

	Rx     *float64 `json:"rx,omitempty"`
	Ry     *float64 `json:"ry,omitempty"`
	Radius *float64 `json:"radius,omitempty"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (p Patch) apply(o *scene.Object) error {
	set(&o.Name, p.Name)
	set(&o.Left, p.Left)
	set(&o.Top, p.Top)
	set(&o.Width, p.Width)
	set(&o.Height, p.Height)
	set(&o.ScaleX, p.ScaleX)
	set(&o.ScaleY, p.ScaleY)
	set(&o.Angle, p.Angle)
	set(&o.FlipX, p.FlipX)
	set(&o.FlipY, p.FlipY)
	set(&o.Fill, p.Fill)
	set(&o.Stroke, p.Stroke)
	set(&o.StrokeWidth, p.StrokeWidth)
	set(&o.Opacity, p.Opacity)
	set(&o.Visible, p.Visible)
	set(&o.CustomData, p.CustomData)

	if t := o.Text; t != nil {
		set(&t.Text, p.Text)
		set(&t.FontFamily, p.FontFamily)
		set(&t.FontSize, p.FontSize)
		set(&t.FontWeight, p.FontWeight)
		set(&t.FontStyle, p.FontStyle)
		set(&t.Underline, p.Underline)
		set(&t.TextAlign, p.TextAlign)
		set(&t.LineHeight, p.LineHeight)
		set(&t.CharSpacing, p.CharSpacing)
		set(&t.MaxChars, p.MaxChars)
	}
	if s := o.Shape; s != nil {
		set(&s.Rx, p.Rx)
		set(&s.Ry, p.Ry)
		if o.Kind == scene.KindCircle {
			switch {
			case p.Radius != nil:
				s.Radius = *p.Radius
			case p.Width != nil:
				s.Radius = *p.Width / 2
			case p.Height != nil:
				s.Radius = *p.Height / 2
			}
			d := 2 * s.Radius
			o.Width, o.Height = d, d
		}
	}

	if o.Opacity < 0 || o.Opacity > 1 {
		return fmt.Errorf("opacity %v out of range [0,1]", o.Opacity)
	}
	if o.ScaleX == 0 || o.ScaleY == 0 {
		return errors.New("scale must not be zero")
	}
	if o.Width < 0 || o.Height < 0 {
		return fmt.Errorf("size %vx%v must not be negative", o.Width, o.Height)
	}
	if o.Text != nil && o.Text.MaxChars <= 0 {
		return fmt.Errorf("maxChars %d must be positive", o.Text.MaxChars)
	}
	if p.Fill != nil {
		if _, err := scene.ParseColor(*p.Fill); err != nil {
			return err
		}
	}
	if len(o.CustomData) > 0 && !json.Valid(o.CustomData) {
		return errors.New("customData is not valid JSON")
	}
	return nil
}

// Update applies p to the object with the given id. On error the object is
// left as it was.
func (c *DocumentCanvas) Update(id string, p Patch) error {
	o, i := c.doc.Find(id)
	if i < 0 {
		return fmt.Errorf("update %q: %w", id, ErrObjectNotFound)
	}
	next := o.Clone()
	if err := p.apply(next); err != nil {
		return fmt.Errorf("update %q: %w", id, err)
	}
	c.doc.Objects[i] = next
	c.emit(EventObjectModified, id)
	return nil
}

// Remove deletes an object. Removal is the only way objects leave a canvas.
func (c *DocumentCanvas) Remove(id string) error {
	if !c.doc.Remove(id) {
		return fmt.Errorf("remove %q: %w", id, ErrObjectNotFound)
	}
	c.emit(EventObjectRemoved, id)
	return nil
}

// Duplicate deep-copies an object and places the copy directly above it.
func (c *DocumentCanvas) Duplicate(id string) (*scene.Object, error) {
	o, i := c.doc.Find(id)
	if i < 0 {
		return nil, fmt.Errorf("duplicate %q: %w", id, ErrObjectNotFound)
	}
	dup := o.Duplicate(c.newID())
	c.doc.Insert(i+1, dup)
	c.emit(EventObjectAdded, dup.ID)
	return dup, nil
}

func (c *DocumentCanvas) restack(id string, to func(from, n int) int) error {
	_, from := c.doc.Find(id)
	if from < 0 {
		return fmt.Errorf("restack %q: %w", id, ErrObjectNotFound)
	}
	target := to(from, len(c.doc.Objects))
	if target < 0 || target >= len(c.doc.Objects) || target == from {
		return nil
	}
	c.doc.Move(id, target)
	c.emit(EventObjectModified, id)
	return nil
}

// BringForward moves an object one step up the z-order.
func (c *DocumentCanvas) BringForward(id string) error {
	return c.restack(id, func(from, _ int) int { return from + 1 })
}

// SendBackward moves an object one step down the z-order.
func (c *DocumentCanvas) SendBackward(id string) error {
	return c.restack(id, func(from, _ int) int { return from - 1 })
}

// BringToFront moves an object to the top of the z-order.
func (c *DocumentCanvas) BringToFront(id string) error {
	return c.restack(id, func(_, n int) int { return n - 1 })
}

// SendToBack moves an object to the bottom of the z-order.
func (c *DocumentCanvas) SendToBack(id string) error {
	return c.restack(id, func(int, int) int { return 0 })
}

// SetCustomizable toggles whether customers may edit the object.
func (c *DocumentCanvas) SetCustomizable(id string, on bool) error {
	o, i := c.doc.Find(id)
	if i < 0 {
		return fmt.Errorf("set customizable %q: %w", id, ErrObjectNotFound)
	}
	o.IsCustomizable = on
	c.emit(EventObjectModified, id)
	return nil
}

// SetFrame marks a shape as a photo frame. Only shapes can be frames.
func (c *DocumentCanvas) SetFrame(id string, on bool) error {
	o, i := c.doc.Find(id)
	if i < 0 {
		return fmt.Errorf("set frame %q: %w", id, ErrObjectNotFound)
	}
	if on && !o.Kind.IsShape() {
		return fmt.Errorf("set frame %q: %s objects cannot be frames", id, o.Kind)
	}
	o.IsFrame = on
	c.emit(EventObjectModified, id)
	return nil
}

// SetBackground changes the background mode.
func (c *DocumentCanvas) SetBackground(bg scene.Background) error {
	if !bg.Transparent {
		if _, err := scene.ParseColor(bg.Color); err != nil {
			return fmt.Errorf("set background: %w", err)
		}
	}
	c.doc.Background = bg
	c.emit(EventObjectModified, "")
	return nil
}
