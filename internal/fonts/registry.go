// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package fonts loads font families on demand and caches them by family
// name. A family that cannot be loaded falls back to the bundled Go fonts
// instead of blocking rendering.
package fonts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/sync/singleflight"
)

// FallbackFamily is the bundled family used when a requested one is
// unavailable.
const FallbackFamily = "Go"

// ErrNotFound is returned by a Source that has no file for a family.
var ErrNotFound = errors.New("font not found")

const (
	// FailureTTL is how long a family that failed to load is served from
	// the fallback before the source is asked again.
	FailureTTL = time.Minute

	fetchTimeout = 30 * time.Second
)

// Variant selects the weight/style file within a family.
type Variant string

const (
	Regular    Variant = "Regular"
	Bold       Variant = "Bold"
	Italic     Variant = "Italic"
	BoldItalic Variant = "BoldItalic"
)

// VariantFor maps CSS-style weight and style strings to a Variant.
// Weights of 600 and above, "bold" and "bolder" select the bold file.
func VariantFor(weight, style string) Variant {
	bold := false
	switch w := strings.ToLower(strings.TrimSpace(weight)); w {
	case "bold", "bolder":
		bold = true
	default:
		if n, err := strconv.Atoi(w); err == nil && n >= 600 {
			bold = true
		}
	}
	italic := false
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "italic", "oblique":
		italic = true
	}
	switch {
	case bold && italic:
		return BoldItalic
	case bold:
		return Bold
	case italic:
		return Italic
	}
	return Regular
}

// Source fetches raw font file bytes for a family variant.
type Source interface {
	Fetch(ctx context.Context, family string, v Variant) ([]byte, error)
}

// DirSource reads "<Family>-<Variant>.ttf" (or .otf) files from a directory.
// Spaces in the family name are removed: "Open Sans" → "OpenSans-Bold.ttf".
type DirSource struct {
	Dir string
}

// Fetch reads the font file for family and v.
func (s DirSource) Fetch(_ context.Context, family string, v Variant) ([]byte, error) {
	if s.Dir == "" {
		return nil, ErrNotFound
	}
	base := strings.ReplaceAll(family, " ", "") + "-" + string(v)
	for _, ext := range []string{".ttf", ".otf"} {
		data, err := os.ReadFile(filepath.Join(s.Dir, base+ext))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read font %s: %w", base+ext, err)
		}
	}
	return nil, ErrNotFound
}

var bundled = map[Variant][]byte{
	Regular:    goregular.TTF,
	Bold:       gobold.TTF,
	Italic:     goitalic.TTF,
	BoldItalic: gobolditalic.TTF,
}

// Registry caches parsed fonts keyed by family and variant. Concurrent
// requests for the same uncached family share a single fetch.
type Registry struct {
	source Source
	now    func() time.Time

	mu     sync.RWMutex
	loaded map[string]*opentype.Font
	failed map[string]time.Time // key → retry after
	group  singleflight.Group
}

// NewRegistry creates a registry backed by source. A nil source serves
// only the bundled family.
func NewRegistry(source Source) *Registry {
	return &Registry{
		source: source,
		now:    time.Now,
		loaded: make(map[string]*opentype.Font),
		failed: make(map[string]time.Time),
	}
}

func cacheKey(family string, v Variant) string {
	return strings.ToLower(strings.TrimSpace(family)) + "/" + string(v)
}

// Loaded reports whether the family variant is already in the cache.
func (r *Registry) Loaded(family string, v Variant) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaded[cacheKey(family, v)]
	return ok
}

// Font returns the parsed font for family and v, loading it on first use.
// A family that fails to load renders with the fallback font; the source
// is not asked again for FailureTTL.
func (r *Registry) Font(ctx context.Context, family string, v Variant) *opentype.Font {
	if family == "" || strings.EqualFold(family, FallbackFamily) || r.source == nil {
		return mustBundled(v)
	}

	key := cacheKey(family, v)
	r.mu.RLock()
	f, ok := r.loaded[key]
	retryAt, failed := r.failed[key]
	r.mu.RUnlock()
	if ok {
		return f
	}
	if failed && r.now().Before(retryAt) {
		return mustBundled(v)
	}

	// The fetch is shared by every waiting caller, so it must not die with
	// whichever request happened to start it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
	defer cancel()
	res, _, _ := r.group.Do(key, func() (any, error) {
		f, err := r.load(fetchCtx, family, v)
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			slog.Warn("font unavailable, using fallback", "family", family, "variant", v, "error", err)
			r.failed[key] = r.now().Add(FailureTTL)
			return mustBundled(v), nil
		}
		delete(r.failed, key)
		r.loaded[key] = f
		return f, nil
	})
	return res.(*opentype.Font)
}

func (r *Registry) load(ctx context.Context, family string, v Variant) (*opentype.Font, error) {
	data, err := r.source.Fetch(ctx, family, v)
	if err != nil && v != Regular {
		// A family without the requested variant still renders in its
		// regular cut.
		data, err = r.source.Fetch(ctx, family, Regular)
	}
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	slog.Debug("font loaded", "family", family, "variant", v, "bytes", len(data))
	return f, nil
}

var (
	bundledOnce  sync.Once
	bundledFonts map[Variant]*opentype.Font
)

func mustBundled(v Variant) *opentype.Font {
	bundledOnce.Do(func() {
		bundledFonts = make(map[Variant]*opentype.Font, len(bundled))
		for variant, data := range bundled {
			f, err := opentype.Parse(data)
			if err != nil {
				panic(fmt.Sprintf("parse bundled font %s: %v", variant, err))
			}
			bundledFonts[variant] = f
		}
	})
	if f, ok := bundledFonts[v]; ok {
		return f
	}
	return bundledFonts[Regular]
}

// Face returns a new face for family at size pixels. Faces are not safe
// for concurrent use; callers Close them when done.
func (r *Registry) Face(ctx context.Context, family string, v Variant, size float64) (font.Face, error) {
	f := r.Font(ctx, family, v)
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("new face %s %s %.1fpx: %w", family, v, size, err)
	}
	return face, nil
}
