package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/repository"
	"github.com/sahil/voxpert/internal/storage"
)

// DocumentService manages knowledge-base file uploads. Content goes to
// object storage; when the upload fails the bytes land in the database blob
// column instead, so ingestion keeps working without S3.
type DocumentService struct {
	documents *repository.DocumentRepository
	experts   *repository.ExpertRepository
	objects   storage.ObjectStorage
	log       *logger.Logger
}

// NewDocumentService creates a new document service.
func NewDocumentService(documents *repository.DocumentRepository, experts *repository.ExpertRepository, objects storage.ObjectStorage, log *logger.Logger) *DocumentService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &DocumentService{
		documents: documents,
		experts:   experts,
		objects:   objects,
		log:       log,
	}
}

// Upload stores a file for the expert and records its metadata.
func (s *DocumentService) Upload(ctx context.Context, expertID, filename, contentType string, content []byte) (*domain.Document, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if _, err := s.experts.GetByID(ctx, expertID); err != nil {
		return nil, fmt.Errorf("load expert: %w", err)
	}

	doc := &domain.Document{
		ID:               uuid.New().String(),
		ExpertID:         expertID,
		Name:             filename,
		ContentType:      contentType,
		Size:             int64(len(content)),
		ProcessingStatus: domain.DocumentStatusPending,
		CreatedAt:        time.Now().UTC(),
	}

	key := fmt.Sprintf("experts/%s/documents/%s/%s", expertID, doc.ID, filename)
	stored := false
	if s.objects != nil {
		err := s.objects.Upload(ctx, key, bytes.NewReader(content), int64(len(content)), contentType)
		if err != nil {
			s.log.WithError(err).WithField("s3_key", key).Warn("Object storage upload failed, storing content in database")
		} else {
			doc.S3Key = key
			stored = true
		}
	}
	if !stored {
		doc.Content = content
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		if stored {
			s.objects.Delete(ctx, key)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.log.WithFields(logger.Fields{
		logger.FieldExpertID: expertID,
		logger.FieldFileID:   doc.ID,
		"filename":           filename,
		"size":               doc.Size,
		"in_object_storage":  stored,
	}).Info("Document uploaded")
	return doc, nil
}

// Get returns a document by ID, or nil when it does not exist.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

// ListByExpert returns all of the expert's documents.
func (s *DocumentService) ListByExpert(ctx context.Context, expertID string) ([]domain.Document, error) {
	return s.documents.ListByExpert(ctx, expertID)
}
