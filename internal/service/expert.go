package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/repository"
)

// ExpertService manages experts and their provider agents. Creating an
// expert provisions a conversational agent whose ID becomes the expert's
// vector namespace.
type ExpertService struct {
	experts   *repository.ExpertRepository
	documents *repository.DocumentRepository
	voice     *VoiceService
	vectors   *VectorStoreService
	log       *logger.Logger
}

// NewExpertService creates a new expert service.
func NewExpertService(experts *repository.ExpertRepository, documents *repository.DocumentRepository, voice *VoiceService, vectors *VectorStoreService, log *logger.Logger) *ExpertService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &ExpertService{
		experts:   experts,
		documents: documents,
		voice:     voice,
		vectors:   vectors,
		log:       log,
	}
}

// CreateExpertInput carries the fields needed to create an expert.
type CreateExpertInput struct {
	Name         string
	Description  string
	SystemPrompt string
	VoiceID      string
}

// Create provisions the provider agent and stores the expert. Without voice
// credentials the expert still gets a locally generated namespace, so
// ingestion and search work in development setups.
func (s *ExpertService) Create(ctx context.Context, input CreateExpertInput) (*domain.Expert, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	agentID := ""
	agent, err := s.voice.CreateAgent(ctx, input.Name, input.SystemPrompt, input.VoiceID)
	switch {
	case err == nil:
		agentID = agent.AgentID
	case errors.Is(err, ErrVoiceKeyMissing):
		agentID = "local-" + uuid.New().String()
		s.log.Warn("Voice credentials missing, using local agent id")
	default:
		return nil, fmt.Errorf("provision agent: %w", err)
	}

	expert := &domain.Expert{
		ID:           uuid.New().String(),
		AgentID:      agentID,
		Name:         input.Name,
		Description:  input.Description,
		SystemPrompt: input.SystemPrompt,
		VoiceID:      input.VoiceID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.experts.Create(ctx, expert); err != nil {
		return nil, fmt.Errorf("create expert: %w", err)
	}

	s.log.WithFields(logger.Fields{
		logger.FieldExpertID: expert.ID,
		logger.FieldAgentID:  expert.AgentID,
	}).Info("Expert created")
	return expert, nil
}

// Get returns an expert by ID, or nil when it does not exist.
func (s *ExpertService) Get(ctx context.Context, expertID string) (*domain.Expert, error) {
	expert, err := s.experts.GetByID(ctx, expertID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load expert: %w", err)
	}
	return expert, nil
}

// List returns all experts.
func (s *ExpertService) List(ctx context.Context) ([]domain.Expert, error) {
	return s.experts.List(ctx)
}

// UpdatePrompt changes the expert's system prompt, pushing the change to
// the provider agent when one exists.
func (s *ExpertService) UpdatePrompt(ctx context.Context, expertID, systemPrompt string) (*domain.Expert, error) {
	expert, err := s.experts.GetByID(ctx, expertID)
	if err != nil {
		return nil, fmt.Errorf("load expert: %w", err)
	}

	err = s.voice.UpdateAgentPrompt(ctx, expert.AgentID, systemPrompt)
	if err != nil && !errors.Is(err, ErrVoiceKeyMissing) {
		return nil, fmt.Errorf("update agent: %w", err)
	}

	expert.SystemPrompt = systemPrompt
	if err := s.experts.Update(ctx, expert); err != nil {
		return nil, fmt.Errorf("update expert: %w", err)
	}
	return expert, nil
}

// Delete removes the expert, its provider agent, its documents, and its
// entire vector namespace.
func (s *ExpertService) Delete(ctx context.Context, expertID string) error {
	expert, err := s.experts.GetByID(ctx, expertID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expert: %w", err)
	}

	if err := s.voice.DeleteAgent(ctx, expert.AgentID); err != nil && !errors.Is(err, ErrVoiceKeyMissing) {
		s.log.WithError(err).WithField(logger.FieldAgentID, expert.AgentID).Warn("Provider agent delete failed")
	}
	if err := s.vectors.DeleteExpertKnowledge(ctx, expert.AgentID); err != nil {
		s.log.WithError(err).WithField(logger.FieldAgentID, expert.AgentID).Warn("Namespace delete failed")
	}

	docs, err := s.documents.ListByExpert(ctx, expertID)
	if err == nil {
		for _, doc := range docs {
			s.documents.Delete(ctx, doc.ID)
		}
	}

	if err := s.experts.Delete(ctx, expertID); err != nil {
		return fmt.Errorf("delete expert: %w", err)
	}
	s.log.WithField(logger.FieldExpertID, expertID).Info("Expert deleted")
	return nil
}

// SignedConversationURL returns a short-lived URL for a live conversation
// with the expert's agent.
func (s *ExpertService) SignedConversationURL(ctx context.Context, expertID string) (string, error) {
	expert, err := s.experts.GetByID(ctx, expertID)
	if err != nil {
		return "", fmt.Errorf("load expert: %w", err)
	}
	return s.voice.GetSignedURL(ctx, expert.AgentID)
}

// Voices lists the provider's available voices.
func (s *ExpertService) Voices(ctx context.Context) ([]Voice, error) {
	return s.voice.ListVoices(ctx)
}
