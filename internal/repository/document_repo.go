package repository

import (
	"context"
	"time"

	"github.com/sahil/voxpert/internal/domain"
	"gorm.io/gorm"
)

// DocumentRepository handles expert_documents table access.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// GetByID retrieves a document by its ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByExpert returns all documents belonging to an expert.
func (r *DocumentRepository) ListByExpert(ctx context.Context, expertID string) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.WithContext(ctx).
		Where("expert_id = ?", expertID).
		Order("created_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateProcessingResult writes back the pipeline outcome for a document.
// Parameters:
//   - status: terminal per-document status.
//   - wordCount: processed word count; ignored when zero.
//   - processingError: failure reason; empty clears any previous error.
func (r *DocumentRepository) UpdateProcessingResult(ctx context.Context, id string, status domain.DocumentStatus, wordCount int, processingError string) error {
	fields := map[string]interface{}{
		"processing_status": status,
		"processing_error":  processingError,
		"updated_at":        time.Now().UTC(),
	}
	if wordCount > 0 {
		fields["word_count"] = wordCount
	}
	return r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete removes a document record.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Document{}, "id = ?", id).Error
}
