// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package scene

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"
)

// hexColor matches #rgb, #rrggbb and #rrggbbaa.
var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

var namedColors = map[string]color.NRGBA{
	"black": {0, 0, 0, 255},
	"white": {255, 255, 255, 255},
	"red":   {255, 0, 0, 255},
	"green": {0, 128, 0, 255},
	"blue":  {0, 0, 255, 255},
	"gray":  {128, 128, 128, 255},
	"grey":  {128, 128, 128, 255},
}

// IsHexColor reports whether s is a #rgb, #rrggbb or #rrggbbaa string.
func IsHexColor(s string) bool {
	return hexColor.MatchString(s)
}

// ParseColor converts a CSS-like color string into an NRGBA value. The
// empty string and "transparent" yield a fully transparent color.
// Accepted forms: hex, rgb(r,g,b), rgba(r,g,b,a) and a few names.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "" || s == "transparent" || s == "none":
		return color.NRGBA{}, nil
	case strings.HasPrefix(s, "#"):
		if !hexColor.MatchString(s) {
			return color.NRGBA{}, fmt.Errorf("parse color %q: bad hex", s)
		}
		return parseHex(s[1:]), nil
	case strings.HasPrefix(s, "rgb"):
		return parseRGBFunc(s)
	}
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	return color.NRGBA{}, fmt.Errorf("parse color %q: unsupported format", s)
}

func parseHex(h string) color.NRGBA {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	v, _ := strconv.ParseUint(h, 16, 32)
	if len(h) == 6 {
		return color.NRGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
	}
	return color.NRGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}
}

func parseRGBFunc(s string) (color.NRGBA, error) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return color.NRGBA{}, fmt.Errorf("parse color %q: malformed", s)
	}
	parts := strings.Split(s[open+1:end], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("parse color %q: want 3 or 4 components", s)
	}
	var c [4]uint8
	c[3] = 255
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		if i == 3 {
			f *= 255
		}
		c[i] = uint8(max(0, min(255, f+0.5)))
	}
	return color.NRGBA{c[0], c[1], c[2], c[3]}, nil
}

// HexString formats c as #rrggbb, or #rrggbbaa when not fully opaque.
func HexString(c color.NRGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
