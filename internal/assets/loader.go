// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package assets fetches and decodes the images referenced by template
// documents. Images stored in the application's own bucket are read through
// the S3 client; anything else is fetched over HTTP. Decoded images are kept
// in a small in-memory cache keyed by URL, and concurrent requests for the
// same URL share one download.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	_ "golang.org/x/image/webp" // register WebP decoder
	"golang.org/x/sync/singleflight"
)

// ErrFetch wraps every failure to download or decode an image.
var ErrFetch = errors.New("image fetch failed")

// Defaults for Options fields left zero.
const (
	DefaultMaxBytes     = 20 << 20
	DefaultCacheEntries = 64
	DefaultTimeout      = 15 * time.Second
)

// ObjectStore is the subset of the S3 client the loader needs to read
// images from the application's own bucket.
type ObjectStore interface {
	ExtractS3Key(rawURL string) (string, bool)
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	PublicBucket() string
}

// Options configure a Loader.
type Options struct {
	HTTPClient   *http.Client
	Storage      ObjectStore
	MaxBytes     int64
	CacheEntries int
}

// Loader resolves image URLs to decoded images.
type Loader struct {
	client   *http.Client
	storage  ObjectStore
	maxBytes int64

	mu      sync.RWMutex
	entries map[string]image.Image
	order   []string
	limit   int

	group singleflight.Group
}

// New creates a loader. A nil Storage fetches everything over HTTP.
func New(opts Options) *Loader {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.CacheEntries <= 0 {
		opts.CacheEntries = DefaultCacheEntries
	}
	return &Loader{
		client:   opts.HTTPClient,
		storage:  opts.Storage,
		maxBytes: opts.MaxBytes,
		entries:  make(map[string]image.Image),
		limit:    opts.CacheEntries,
	}
}

// Load returns the decoded image at src.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, error) {
	if img := l.get(src); img != nil {
		return img, nil
	}
	v, err, _ := l.group.Do(src, func() (any, error) {
		data, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		img, format, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetch, src, err)
		}
		l.put(src, img)
		slog.Debug("image decoded", "src", src, "format", format, "bytes", len(data), "size", img.Bounds().Size())
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// Decode decodes PNG, JPEG, GIF or WebP data.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", ErrFetch, src)
	}

	if l.storage != nil {
		if key, ok := l.storage.ExtractS3Key(src); ok {
			data, err := l.storage.Download(ctx, l.storage.PublicBucket(), key)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFetch, err)
			}
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, src, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, src, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetch, src, l.maxBytes)
	}
	return data, nil
}

func (l *Loader) get(src string) image.Image {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[src]
}

// put stores img, evicting the oldest entry once the cache is full.
func (l *Loader) put(src string, img image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[src]; ok {
		return
	}
	if len(l.order) >= l.limit {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.entries, oldest)
	}
	l.entries[src] = img
	l.order = append(l.order, src)
}

// Invalidate drops src from the cache.
func (l *Loader) Invalidate(src string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[src]; !ok {
		return
	}
	delete(l.entries, src)
	for i, k := range l.order {
		if k == src {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached images.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
