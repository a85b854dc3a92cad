package store

import (
	"testing"

	"github.com/google/uuid"

	"mockupstudio/internal/models"
)

func TestMediaStoreCreateAndFind(t *testing.T) {
	db := testDB(t)
	s := NewMediaStore(db)

	s3Key := "uploads/test/" + uuid.NewString()[:8] + ".jpg"
	t.Cleanup(func() { cleanMediaByKey(t, db, s3Key) })

	w, h := 640, 480
	created, err := s.Create(&models.Media{
		Filename:     "photo.jpg",
		OriginalName: "IMG_0001.JPG",
		ContentType:  "image/jpeg",
		SizeBytes:    1024,
		Width:        &w,
		Height:       &h,
		Bucket:       "public",
		S3Key:        s3Key,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if created.Purpose != models.MediaPurposeUpload {
		t.Errorf("purpose: got %q, want upload", created.Purpose)
	}
	if created.Width == nil || *created.Width != 640 {
		t.Errorf("width: got %v", created.Width)
	}

	found, err := s.FindByID(created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found == nil || found.S3Key != s3Key {
		t.Fatalf("FindByID = %+v", found)
	}

	byKey, err := s.FindByKey(s3Key)
	if err != nil || byKey == nil || byKey.ID != created.ID {
		t.Errorf("FindByKey = %v, %v", byKey, err)
	}
}

func TestMediaStoreFindNotFound(t *testing.T) {
	s := NewMediaStore(testDB(t))

	found, err := s.FindByID(uuid.New())
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found != nil {
		t.Error("expected nil for non-existent media")
	}
	if m, _ := s.FindByKey("uploads/none.png"); m != nil {
		t.Error("expected nil for unknown key")
	}
}

func TestMediaStoreDeleteReturnsRecord(t *testing.T) {
	db := testDB(t)
	s := NewMediaStore(db)

	s3Key := "previews/test/" + uuid.NewString()[:8] + ".png"
	t.Cleanup(func() { cleanMediaByKey(t, db, s3Key) })

	created, err := s.Create(&models.Media{
		Filename:     "preview.png",
		OriginalName: "preview.png",
		ContentType:  "image/png",
		SizeBytes:    10,
		Bucket:       "public",
		S3Key:        s3Key,
		Purpose:      models.MediaPurposePreview,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deleted, err := s.Delete(created.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted == nil || deleted.S3Key != s3Key {
		t.Errorf("Delete returned %+v", deleted)
	}
	if again, _ := s.Delete(created.ID); again != nil {
		t.Error("second Delete should return nil")
	}
}

func TestMediaStoreListAndCount(t *testing.T) {
	db := testDB(t)
	s := NewMediaStore(db)

	before, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	s3Key := "uploads/test/" + uuid.NewString()[:8] + ".png"
	t.Cleanup(func() { cleanMediaByKey(t, db, s3Key) })
	if _, err := s.Create(&models.Media{
		Filename: "a.png", OriginalName: "a.png", ContentType: "image/png",
		SizeBytes: 1, Bucket: "public", S3Key: s3Key,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	after, _ := s.Count()
	if after != before+1 {
		t.Errorf("Count: got %d, want %d", after, before+1)
	}
	items, err := s.List(1, 0)
	if err != nil || len(items) != 1 {
		t.Errorf("List(1, 0) = %d items, %v", len(items), err)
	}
}
