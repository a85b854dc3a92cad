// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TemplateType is the product a template is printed on.
type TemplateType string

const (
	TemplateTypeGeneric TemplateType = "generic"
	TemplateTypeMug     TemplateType = "mug"
	TemplateTypeTShirt  TemplateType = "tshirt"
	TemplateTypeCard    TemplateType = "card"
	TemplateTypePoster  TemplateType = "poster"
)

// Valid reports whether t is one of the known product types.
func (t TemplateType) Valid() bool {
	switch t {
	case TemplateTypeGeneric, TemplateTypeMug, TemplateTypeTShirt, TemplateTypeCard, TemplateTypePoster:
		return true
	}
	return false
}

// Template is a stored mockup template. FabricJSONState holds the
// serialized scene document exactly as the editor produced it.
type Template struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Type            TemplateType    `json:"type"`
	BaseImageURL    string          `json:"baseImageUrl"`
	FabricJSONState json.RawMessage `json:"fabricJsonState"`
	Width           float64         `json:"width"`
	Height          float64         `json:"height"`
	Tags            []string        `json:"tags"`
	IsPublished     bool            `json:"isPublished"`
	PreviewImageURL *string         `json:"previewImageUrl"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// State returns the serialized document as a string.
func (t *Template) State() string {
	return string(t.FabricJSONState)
}

// TemplateRevision is a snapshot of a template taken on a publishing save.
type TemplateRevision struct {
	ID              uuid.UUID       `json:"id"`
	TemplateID      uuid.UUID       `json:"templateId"`
	Version         int             `json:"version"`
	Name            string          `json:"name"`
	FabricJSONState json.RawMessage `json:"fabricJsonState"`
	Width           float64         `json:"width"`
	Height          float64         `json:"height"`
	CreatedAt       time.Time       `json:"createdAt"`
}
