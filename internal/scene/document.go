// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package scene

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDocument reports a document that cannot be loaded: corrupted
// JSON or a violated invariant.
var ErrInvalidDocument = errors.New("invalid template document")

// FormatVersion is written into serialized documents.
const FormatVersion = "5.3.0"

// Background is either transparent or a solid color.
type Background struct {
	Transparent bool
	Color       string
}

// TransparentBackground returns the transparent background mode.
func TransparentBackground() Background {
	return Background{Transparent: true}
}

// ColorBackground returns a solid background of the given color.
func ColorBackground(c string) Background {
	return Background{Color: c}
}

// Document is a named, sized canvas with an ordered object list.
type Document struct {
	ID         string
	Name       string
	Width      float64
	Height     float64
	Background Background
	Objects    []*Object
}

// New creates an empty document with a white background.
func New(name string, width, height float64) (*Document, error) {
	d := &Document{
		Name:       name,
		Width:      width,
		Height:     height,
		Background: ColorBackground("#ffffff"),
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Find returns the object with the given id and its z-index, or (nil, -1).
func (d *Document) Find(id string) (*Object, int) {
	for i, o := range d.Objects {
		if o.ID == id {
			return o, i
		}
	}
	return nil, -1
}

// Add appends o on top of the z-order.
func (d *Document) Add(o *Object) {
	d.Objects = append(d.Objects, o)
}

// Insert places o at z-index i, clamped to the list bounds.
func (d *Document) Insert(i int, o *Object) {
	i = max(0, min(i, len(d.Objects)))
	d.Objects = append(d.Objects, nil)
	copy(d.Objects[i+1:], d.Objects[i:])
	d.Objects[i] = o
}

// Remove deletes the object with the given id. It reports whether an
// object was removed.
func (d *Document) Remove(id string) bool {
	_, i := d.Find(id)
	if i < 0 {
		return false
	}
	d.Objects = append(d.Objects[:i], d.Objects[i+1:]...)
	return true
}

// Move changes the z-index of the object with the given id to "to",
// clamped to the list bounds. It reports whether the object exists.
func (d *Document) Move(id string, to int) bool {
	o, from := d.Find(id)
	if from < 0 {
		return false
	}
	to = max(0, min(to, len(d.Objects)-1))
	if to == from {
		return true
	}
	d.Objects = append(d.Objects[:from], d.Objects[from+1:]...)
	d.Insert(to, o)
	return true
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	c.Objects = make([]*Object, len(d.Objects))
	for i, o := range d.Objects {
		c.Objects[i] = o.Clone()
	}
	return &c
}

// Normalize assigns deterministic ids to objects that lack one and fills
// in kind-specific defaults.
func (d *Document) Normalize() {
	taken := make(map[string]bool, len(d.Objects))
	for _, o := range d.Objects {
		if o != nil && o.ID != "" {
			taken[o.ID] = true
		}
	}
	for i, o := range d.Objects {
		if o == nil {
			continue
		}
		if o.ID == "" {
			id := fmt.Sprintf("obj-%d", i)
			for n := 1; taken[id]; n++ {
				id = fmt.Sprintf("obj-%d-%d", i, n)
			}
			o.ID = id
			taken[id] = true
		}
		o.normalize()
	}
}

// Validate checks the document invariants: positive size, unique object
// ids and well-formed objects.
func (d *Document) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: size %vx%v must be positive", ErrInvalidDocument, d.Width, d.Height)
	}
	if !d.Background.Transparent {
		if _, err := ParseColor(d.Background.Color); err != nil {
			return fmt.Errorf("%w: background: %v", ErrInvalidDocument, err)
		}
	}
	seen := make(map[string]bool, len(d.Objects))
	for i, o := range d.Objects {
		if o == nil {
			return fmt.Errorf("%w: object %d is null", ErrInvalidDocument, i)
		}
		if o.ID == "" {
			return fmt.Errorf("%w: object %d has no id", ErrInvalidDocument, i)
		}
		if seen[o.ID] {
			return fmt.Errorf("%w: duplicate object id %q", ErrInvalidDocument, o.ID)
		}
		seen[o.ID] = true
		if err := o.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	}
	return nil
}

// IsDataURL reports whether s is an inline data: URI rather than a URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(s)), "data:")
}
