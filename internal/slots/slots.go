// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slots derives the customer-editable regions of a template from
// the per-object customization flags. Classification is a pure function of
// the object list; callers recompute it whenever the list changes.
package slots

import "mockupstudio/internal/scene"

// Kind is the slot category an object falls into.
type Kind string

const (
	KindNone  Kind = ""
	KindFrame Kind = "frame"
	KindText  Kind = "text"
	KindColor Kind = "color"
)

// Slot describes one customer-editable object.
type Slot struct {
	Key      string     `json:"key"` // name, or id when unnamed
	ObjectID string     `json:"objectId"`
	Kind     Kind       `json:"kind"`
	Shape    scene.Kind `json:"shape"`

	// Text slots.
	MaxChars    int    `json:"maxChars,omitempty"`
	DefaultText string `json:"defaultText,omitempty"`

	// Color slots.
	DefaultColor string `json:"defaultColor,omitempty"`
}

// Set is the partition of a document's objects into the three slot kinds.
// Each collection keeps document z-order.
type Set struct {
	Text  []Slot `json:"textSlots"`
	Frame []Slot `json:"frameSlots"`
	Color []Slot `json:"colorSlots"`
}

// KindOf classifies a single object. The frame check wins over every other
// flag, so a frame is never also a color slot.
func KindOf(o *scene.Object) Kind {
	switch {
	case o.IsFrame:
		return KindFrame
	case o.Kind == scene.KindText && o.IsCustomizable:
		return KindText
	case o.IsCustomizable:
		return KindColor
	}
	return KindNone
}

// Classify partitions the document's objects into slots. It never mutates
// the document.
func Classify(d *scene.Document) Set {
	var s Set
	for _, o := range d.Objects {
		k := KindOf(o)
		if k == KindNone {
			continue
		}
		slot := Slot{Key: o.SlotKey(), ObjectID: o.ID, Kind: k, Shape: o.Kind}
		switch k {
		case KindFrame:
			s.Frame = append(s.Frame, slot)
		case KindText:
			if o.Text != nil {
				slot.MaxChars = o.Text.MaxChars
				slot.DefaultText = o.Text.Text
			}
			s.Text = append(s.Text, slot)
		case KindColor:
			slot.DefaultColor = o.Fill
			s.Color = append(s.Color, slot)
		}
	}
	return s
}

// Len returns the total number of slots.
func (s Set) Len() int {
	return len(s.Text) + len(s.Frame) + len(s.Color)
}

// Find returns the slot for an object id.
func (s Set) Find(objectID string) (Slot, bool) {
	for _, group := range [][]Slot{s.Frame, s.Text, s.Color} {
		for _, slot := range group {
			if slot.ObjectID == objectID {
				return slot, true
			}
		}
	}
	return Slot{}, false
}

// ByKey returns every slot of kind k addressed by key, in z-order. Objects
// sharing a name share one customer value.
func (s Set) ByKey(k Kind, key string) []Slot {
	var group []Slot
	switch k {
	case KindFrame:
		group = s.Frame
	case KindText:
		group = s.Text
	case KindColor:
		group = s.Color
	}
	var out []Slot
	for _, slot := range group {
		if slot.Key == key {
			out = append(out, slot)
		}
	}
	return out
}
