// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"mockupstudio/internal/models"
)

// templateRevisionColumns lists all columns for template_revisions SELECTs.
const templateRevisionColumns = `id, template_id, version, name, fabric_json_state,
	width, height, created_at`

// TemplateRevisionStore reads the revisions TemplateStore.SaveState records.
type TemplateRevisionStore struct {
	db *sql.DB
}

// NewTemplateRevisionStore creates a new TemplateRevisionStore backed by the given database.
func NewTemplateRevisionStore(db *sql.DB) *TemplateRevisionStore {
	return &TemplateRevisionStore{db: db}
}

// scanTemplateRevision scans a single template_revisions row into a TemplateRevision.
func scanTemplateRevision(scanner interface{ Scan(...any) error }) (*models.TemplateRevision, error) {
	var (
		r     models.TemplateRevision
		state []byte
	)
	err := scanner.Scan(
		&r.ID, &r.TemplateID, &r.Version, &r.Name, &state,
		&r.Width, &r.Height, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.FabricJSONState = state
	return &r, nil
}

// ListByTemplateID returns all revisions for a template, newest first.
func (s *TemplateRevisionStore) ListByTemplateID(templateID uuid.UUID) ([]*models.TemplateRevision, error) {
	rows, err := s.db.Query(`
		SELECT `+templateRevisionColumns+`
		FROM template_revisions
		WHERE template_id = $1
		ORDER BY version DESC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list template revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*models.TemplateRevision
	for rows.Next() {
		r, err := scanTemplateRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template revision: %w", err)
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// FindByVersion returns the revision recorded when the template reached
// version, or nil.
func (s *TemplateRevisionStore) FindByVersion(templateID uuid.UUID, version int) (*models.TemplateRevision, error) {
	row := s.db.QueryRow(`
		SELECT `+templateRevisionColumns+`
		FROM template_revisions
		WHERE template_id = $1 AND version = $2
	`, templateID, version)
	r, err := scanTemplateRevision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find template revision by version: %w", err)
	}
	return r, nil
}
