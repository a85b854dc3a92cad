package storage

import "testing"

func TestNewUnconfigured(t *testing.T) {
	c, err := New("", "fsn1", "", "", "bucket", "")
	if err != nil || c != nil {
		t.Errorf("New(unconfigured) = %v, %v, want nil, nil", c, err)
	}
	if _, err := New("https://s3.example", "fsn1", "ak", "sk", "", ""); err == nil {
		t.Error("New without bucket succeeded")
	}
}

func TestFileURLAndExtractKey(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		wantURL   string
	}{
		{"path style", "", "https://s3.example/pub/uploads/a.png"},
		{"cdn", "https://cdn.example/", "https://cdn.example/uploads/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("https://s3.example/", "fsn1", "ak", "sk", "pub", tt.publicURL)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			url := c.FileURL("uploads/a.png")
			if url != tt.wantURL {
				t.Errorf("FileURL = %q, want %q", url, tt.wantURL)
			}
			key, ok := c.ExtractS3Key(url)
			if !ok || key != "uploads/a.png" {
				t.Errorf("ExtractS3Key(%q) = %q, %v", url, key, ok)
			}
			if _, ok := c.ExtractS3Key("https://elsewhere.example/uploads/a.png"); ok {
				t.Error("foreign URL matched")
			}
		})
	}

	// Path-style URLs resolve even when a CDN URL is configured.
	c, _ := New("https://s3.example", "fsn1", "ak", "sk", "pub", "https://cdn.example")
	if key, ok := c.ExtractS3Key("https://s3.example/pub/previews/p.png"); !ok || key != "previews/p.png" {
		t.Errorf("path-style fallback = %q, %v", key, ok)
	}
}
