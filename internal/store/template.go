// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mockupstudio/internal/models"
)

// TemplateStore handles all template-related database operations.
type TemplateStore struct {
	db *sql.DB
}

// NewTemplateStore creates a new TemplateStore with the given database connection.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// templateColumns lists the columns selected in template queries.
const templateColumns = `id, name, type, base_image_url, fabric_json_state, width, height,
	tags, is_published, preview_image_url, version, created_at, updated_at`

// scanTemplate scans a template row. Tags and state are stored as JSONB.
func scanTemplate(scanner interface{ Scan(...any) error }) (*models.Template, error) {
	var (
		t     models.Template
		state []byte
		tags  []byte
	)
	err := scanner.Scan(
		&t.ID, &t.Name, &t.Type, &t.BaseImageURL, &state, &t.Width, &t.Height,
		&tags, &t.IsPublished, &t.PreviewImageURL, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.FabricJSONState = state
	if err := json.Unmarshal(tags, &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func encodeTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(tags)
}

// TemplateFilter narrows List results. Zero values match everything.
type TemplateFilter struct {
	PublishedOnly bool
	Type          models.TemplateType
	Tag           string
	Limit         int
	Offset        int
}

// List returns templates matching f, most recently updated first.
func (s *TemplateStore) List(f TemplateFilter) ([]models.Template, error) {
	var (
		where []string
		args  []any
	)
	if f.PublishedOnly {
		where = append(where, "is_published = TRUE")
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Tag != "" {
		tag, _ := json.Marshal([]string{f.Tag})
		args = append(args, string(tag))
		where = append(where, fmt.Sprintf("tags @> $%d::jsonb", len(args)))
	}

	query := `SELECT ` + templateColumns + ` FROM templates`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// FindByID retrieves a template by its UUID. Returns nil if not found.
func (s *TemplateStore) FindByID(id uuid.UUID) (*models.Template, error) {
	row := s.db.QueryRow(`SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find template by id: %w", err)
	}
	return t, nil
}

// FindPublished retrieves a template only if it is published. Returns nil
// for unknown and unpublished templates alike.
func (s *TemplateStore) FindPublished(id uuid.UUID) (*models.Template, error) {
	row := s.db.QueryRow(`SELECT `+templateColumns+` FROM templates WHERE id = $1 AND is_published = TRUE`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find published template: %w", err)
	}
	return t, nil
}

// Create inserts a new, unpublished template at version 1.
func (s *TemplateStore) Create(t *models.Template) (*models.Template, error) {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	if t.Type == "" {
		t.Type = models.TemplateTypeGeneric
	}
	row := s.db.QueryRow(`
		INSERT INTO templates (name, type, base_image_url, fabric_json_state, width, height, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+templateColumns,
		t.Name, t.Type, t.BaseImageURL, string(t.FabricJSONState), t.Width, t.Height, string(tags),
	)
	created, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return created, nil
}

// Update writes every mutable field of t and increments its version. The
// returned template carries the new version and timestamp. Returns nil if
// the template does not exist.
func (s *TemplateStore) Update(t *models.Template) (*models.Template, error) {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	row := s.db.QueryRow(`
		UPDATE templates SET
			name = $1, fabric_json_state = $2, width = $3, height = $4, tags = $5,
			is_published = $6, preview_image_url = $7,
			version = version + 1, updated_at = NOW()
		WHERE id = $8
		RETURNING `+templateColumns,
		t.Name, string(t.FabricJSONState), t.Width, t.Height, string(tags),
		t.IsPublished, t.PreviewImageURL, t.ID,
	)
	updated, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return updated, nil
}

// SaveState stores a new serialized document for the template and bumps
// its version. When publish is set the template is also published and a
// revision is recorded, both in one transaction. Returns nil if the
// template does not exist.
func (s *TemplateStore) SaveState(id uuid.UUID, state []byte, width, height float64, publish bool) (*models.Template, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		UPDATE templates SET
			fabric_json_state = $1, width = $2, height = $3,
			is_published = is_published OR $4,
			version = version + 1, updated_at = NOW()
		WHERE id = $5
		RETURNING `+templateColumns,
		string(state), width, height, publish, id,
	)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("save template state: %w", err)
	}

	if publish {
		_, err = tx.Exec(`
			INSERT INTO template_revisions (template_id, version, name, fabric_json_state, width, height)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, t.ID, t.Version, t.Name, string(state), width, height)
		if err != nil {
			return nil, fmt.Errorf("record template revision: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit template state: %w", err)
	}
	return t, nil
}

// SetPreview records the URL of the template's rendered preview. The
// version is left alone since the document did not change.
func (s *TemplateStore) SetPreview(id uuid.UUID, url string) error {
	_, err := s.db.Exec(`UPDATE templates SET preview_image_url = $1 WHERE id = $2`, url, id)
	if err != nil {
		return fmt.Errorf("set template preview: %w", err)
	}
	return nil
}

// Delete removes a template by ID together with its revisions. Returns
// false if no template matched.
func (s *TemplateStore) Delete(id uuid.UUID) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
