package service

import (
	"context"
	"testing"

	"github.com/sahil/voxpert/internal/repository"
)

func TestDocumentUploadFallsBackToDatabase(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestExpert(t, db, "e1", "agent-1")

	// No object storage configured: content must land in the blob column.
	svc := NewDocumentService(repository.NewDocumentRepository(db), repository.NewExpertRepository(db), nil, nil)

	doc, err := svc.Upload(ctx, "e1", "notes.txt", "text/plain", []byte("hello world"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.S3Key != "" {
		t.Errorf("s3 key set without storage: %q", doc.S3Key)
	}
	if len(doc.Content) == 0 {
		t.Error("content not stored in database")
	}

	docs, err := svc.ListByExpert(ctx, "e1")
	if err != nil {
		t.Fatalf("ListByExpert: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID {
		t.Errorf("unexpected listing: %+v", docs)
	}
}

func TestDocumentUploadRejectsEmpty(t *testing.T) {
	db := newTestDB(t)
	createTestExpert(t, db, "e1", "agent-1")
	svc := NewDocumentService(repository.NewDocumentRepository(db), repository.NewExpertRepository(db), nil, nil)

	if _, err := svc.Upload(context.Background(), "e1", "x.txt", "text/plain", nil); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestDocumentUploadUnknownExpert(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(repository.NewDocumentRepository(db), repository.NewExpertRepository(db), nil, nil)

	if _, err := svc.Upload(context.Background(), "ghost", "x.txt", "text/plain", []byte("x")); err == nil {
		t.Error("expected error for unknown expert")
	}
}

func TestDocumentGetAbsent(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(repository.NewDocumentRepository(db), repository.NewExpertRepository(db), nil, nil)

	doc, err := svc.Get(context.Background(), "nope")
	if err != nil || doc != nil {
		t.Errorf("Get(absent) = %v, %v; want nil, nil", doc, err)
	}
}
