package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"mockupstudio/internal/scene"
)

// SampleTemplateName is the name of the template Seed creates.
const SampleTemplateName = "Sample Mug"

// Seed populates the database with initial development data: one published
// 800×600 template carrying a text slot, a photo frame and a color slot.
// It does nothing when any template exists.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM templates").Scan(&count); err != nil {
		return fmt.Errorf("seed check templates: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	doc, err := SampleDocument()
	if err != nil {
		return fmt.Errorf("seed build document: %w", err)
	}
	state, err := scene.Marshal(doc)
	if err != nil {
		return fmt.Errorf("seed marshal document: %w", err)
	}
	tags, _ := json.Marshal([]string{"sample", "mug"})

	var id string
	err = db.QueryRow(`
		INSERT INTO templates (name, type, fabric_json_state, width, height, tags, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id
	`, SampleTemplateName, "mug", string(state), doc.Width, doc.Height, string(tags)).Scan(&id)
	if err != nil {
		return fmt.Errorf("seed insert template: %w", err)
	}

	slog.Info("database seeded with sample template", "template_id", id, "name", SampleTemplateName)
	return nil
}

// SampleDocument builds the seeded template document.
func SampleDocument() (*scene.Document, error) {
	doc, err := scene.New(SampleTemplateName, 800, 600)
	if err != nil {
		return nil, err
	}

	band, err := scene.NewShape("band", scene.KindRect, 800, 120)
	if err != nil {
		return nil, err
	}
	band.Name = "Accent"
	band.Top = 480
	band.Fill = "#1e3a8a"
	band.IsCustomizable = true

	frame, err := scene.NewShape("photo", scene.KindCircle, 280, 280)
	if err != nil {
		return nil, err
	}
	frame.Name = "Foto 1"
	frame.Left, frame.Top = 260, 80
	frame.Stroke = "#ffffff"
	frame.StrokeWidth = 6
	frame.IsCustomizable = true
	frame.IsFrame = true

	name := scene.NewText("name", "Your name")
	name.Name = "Name"
	name.Left, name.Top = 0, 500
	name.Width, name.Height = 800, 60
	name.Fill = "#ffffff"
	name.Text.FontSize = 48
	name.Text.FontWeight = "bold"
	name.Text.TextAlign = "center"
	name.Text.MaxChars = 20
	name.IsCustomizable = true

	doc.Add(band)
	doc.Add(frame)
	doc.Add(name)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}
