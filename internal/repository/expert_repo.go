package repository

import (
	"context"

	"github.com/sahil/voxpert/internal/domain"
	"gorm.io/gorm"
)

// ExpertRepository handles experts table access.
type ExpertRepository struct {
	db *gorm.DB
}

// NewExpertRepository creates a new ExpertRepository.
func NewExpertRepository(db *gorm.DB) *ExpertRepository {
	return &ExpertRepository{db: db}
}

// Create inserts a new expert record.
func (r *ExpertRepository) Create(ctx context.Context, expert *domain.Expert) error {
	return r.db.WithContext(ctx).Create(expert).Error
}

// GetByID retrieves an expert by its ID.
func (r *ExpertRepository) GetByID(ctx context.Context, id string) (*domain.Expert, error) {
	var expert domain.Expert
	if err := r.db.WithContext(ctx).First(&expert, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &expert, nil
}

// GetByAgentID retrieves an expert by its voice agent ID.
func (r *ExpertRepository) GetByAgentID(ctx context.Context, agentID string) (*domain.Expert, error) {
	var expert domain.Expert
	if err := r.db.WithContext(ctx).First(&expert, "agent_id = ?", agentID).Error; err != nil {
		return nil, err
	}
	return &expert, nil
}

// List returns all experts, newest first.
func (r *ExpertRepository) List(ctx context.Context) ([]domain.Expert, error) {
	var experts []domain.Expert
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&experts).Error; err != nil {
		return nil, err
	}
	return experts, nil
}

// Update persists all fields of an existing expert record.
func (r *ExpertRepository) Update(ctx context.Context, expert *domain.Expert) error {
	return r.db.WithContext(ctx).Save(expert).Error
}

// Delete removes an expert record.
func (r *ExpertRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Expert{}, "id = ?", id).Error
}
