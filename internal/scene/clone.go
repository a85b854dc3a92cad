// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package scene

import (
	"encoding/json"
	"fmt"
)

// DuplicateOffset is the positional offset applied to duplicated objects so
// the copy is visibly distinct from its source.
const DuplicateOffset = 10

// Clone returns a deep copy of o. Slices, variant props, custom data and
// the clip path are copied, so the result shares no memory with o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	if o.StrokeDashArray != nil {
		c.StrokeDashArray = append([]float64(nil), o.StrokeDashArray...)
	}
	if o.CustomData != nil {
		c.CustomData = append(json.RawMessage(nil), o.CustomData...)
	}
	if o.Text != nil {
		t := *o.Text
		c.Text = &t
	}
	if o.Shape != nil {
		s := *o.Shape
		c.Shape = &s
	}
	if o.Image != nil {
		i := *o.Image
		c.Image = &i
	}
	c.ClipPath = o.ClipPath.Clone()
	return &c
}

// Duplicate clones o under a new id, shifted by DuplicateOffset. A named
// object gets a " copy" suffix so the duplicate does not share its slot key.
func (o *Object) Duplicate(id string) *Object {
	c := o.Clone()
	c.ID = id
	c.Left += DuplicateOffset
	c.Top += DuplicateOffset
	if c.Name != "" {
		c.Name += " copy"
	}
	return c
}

// CustomValue returns the string value stored under key in the object's
// custom data, or "" when absent or not a string.
func (o *Object) CustomValue(key string) string {
	if len(o.CustomData) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(o.CustomData, &m); err != nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// SetCustomValue stores value under key in the object's custom data,
// keeping any other keys already present.
func (o *Object) SetCustomValue(key string, value any) error {
	m := map[string]any{}
	if len(o.CustomData) > 0 {
		if err := json.Unmarshal(o.CustomData, &m); err != nil {
			return fmt.Errorf("custom data of %q: %w", o.ID, err)
		}
	}
	m[key] = value
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("custom data of %q: %w", o.ID, err)
	}
	o.CustomData = data
	return nil
}
