// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaPurpose distinguishes customer photo uploads from rendered previews.
type MediaPurpose string

const (
	MediaPurposeUpload  MediaPurpose = "upload"
	MediaPurposePreview MediaPurpose = "preview"
)

// Media represents a file stored in S3-compatible object storage.
// Metadata is stored in PostgreSQL; the file itself lives in the bucket.
type Media struct {
	ID           uuid.UUID    `json:"id"`
	Filename     string       `json:"filename"`
	OriginalName string       `json:"originalName"`
	ContentType  string       `json:"contentType"`
	SizeBytes    int64        `json:"sizeBytes"`
	Width        *int         `json:"width,omitempty"`
	Height       *int         `json:"height,omitempty"`
	Bucket       string       `json:"bucket"`
	S3Key        string       `json:"s3Key"`
	ThumbS3Key   *string      `json:"thumbS3Key,omitempty"`
	Purpose      MediaPurpose `json:"purpose"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// IsImage returns true if the media item is an image type.
func (m *Media) IsImage() bool {
	return strings.HasPrefix(m.ContentType, "image/")
}

// HumanSize returns a human-readable file size string.
func (m *Media) HumanSize() string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case m.SizeBytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(m.SizeBytes)/float64(mb))
	case m.SizeBytes >= kb:
		return fmt.Sprintf("%.0f KB", float64(m.SizeBytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", m.SizeBytes)
	}
}
