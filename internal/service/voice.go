package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrVoiceKeyMissing reports that the voice provider credential is not
// configured.
var ErrVoiceKeyMissing = errors.New("voice API key not configured")

// VoiceAgent is a provider-side conversational agent.
type VoiceAgent struct {
	AgentID string `json:"agent_id"`
}

// Voice is one synthesis voice offered by the provider.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// VoiceServiceConfig holds voice provider configuration.
type VoiceServiceConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// VoiceService is a thin client for the ElevenLabs conversational AI API.
// Each expert maps to one provider agent; the agent ID doubles as the
// expert's vector namespace.
type VoiceService struct {
	client *resty.Client
	hasKey bool
}

// NewVoiceService creates a new voice client. A missing API key is allowed
// at construction; calls then fail with ErrVoiceKeyMissing. Requests carry
// a deadline so a stalled provider call cannot hang the caller.
func NewVoiceService(cfg *VoiceServiceConfig) *VoiceService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("xi-api-key", cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &VoiceService{
		client: client,
		hasKey: cfg.APIKey != "",
	}
}

type createAgentRequest struct {
	Name               string             `json:"name"`
	ConversationConfig conversationConfig `json:"conversation_config"`
}

type conversationConfig struct {
	Agent agentConfig `json:"agent"`
	TTS   ttsConfig   `json:"tts"`
}

type agentConfig struct {
	Prompt promptConfig `json:"prompt"`
}

type promptConfig struct {
	Prompt string `json:"prompt"`
}

type ttsConfig struct {
	VoiceID string `json:"voice_id"`
}

type createAgentResponse struct {
	AgentID string `json:"agent_id"`
}

// CreateAgent provisions a conversational agent with the given system
// prompt and voice.
func (s *VoiceService) CreateAgent(ctx context.Context, name, systemPrompt, voiceID string) (*VoiceAgent, error) {
	if !s.hasKey {
		return nil, ErrVoiceKeyMissing
	}

	req := createAgentRequest{
		Name: name,
		ConversationConfig: conversationConfig{
			Agent: agentConfig{Prompt: promptConfig{Prompt: systemPrompt}},
			TTS:   ttsConfig{VoiceID: voiceID},
		},
	}

	var resp createAgentResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/convai/agents/create")
	if err != nil {
		return nil, fmt.Errorf("create agent request: %w", err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("create agent: status %d: %s", httpResp.StatusCode(), httpResp.String())
	}
	if resp.AgentID == "" {
		return nil, fmt.Errorf("create agent: empty agent_id in response")
	}
	return &VoiceAgent{AgentID: resp.AgentID}, nil
}

// UpdateAgentPrompt replaces the agent's system prompt.
func (s *VoiceService) UpdateAgentPrompt(ctx context.Context, agentID, systemPrompt string) error {
	if !s.hasKey {
		return ErrVoiceKeyMissing
	}

	body := map[string]interface{}{
		"conversation_config": map[string]interface{}{
			"agent": map[string]interface{}{
				"prompt": map[string]interface{}{"prompt": systemPrompt},
			},
		},
	}
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Patch("/convai/agents/" + agentID)
	if err != nil {
		return fmt.Errorf("update agent request: %w", err)
	}
	if httpResp.IsError() {
		return fmt.Errorf("update agent: status %d: %s", httpResp.StatusCode(), httpResp.String())
	}
	return nil
}

// DeleteAgent removes the provider agent. A 404 is treated as already
// deleted.
func (s *VoiceService) DeleteAgent(ctx context.Context, agentID string) error {
	if !s.hasKey {
		return ErrVoiceKeyMissing
	}

	httpResp, err := s.client.R().
		SetContext(ctx).
		Delete("/convai/agents/" + agentID)
	if err != nil {
		return fmt.Errorf("delete agent request: %w", err)
	}
	if httpResp.IsError() && httpResp.StatusCode() != 404 {
		return fmt.Errorf("delete agent: status %d: %s", httpResp.StatusCode(), httpResp.String())
	}
	return nil
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// ListVoices returns the provider's available voices.
func (s *VoiceService) ListVoices(ctx context.Context) ([]Voice, error) {
	if !s.hasKey {
		return nil, ErrVoiceKeyMissing
	}

	var resp voicesResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetResult(&resp).
		Get("/voices")
	if err != nil {
		return nil, fmt.Errorf("list voices request: %w", err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("list voices: status %d: %s", httpResp.StatusCode(), httpResp.String())
	}
	return resp.Voices, nil
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// GetSignedURL returns a short-lived websocket URL for talking to the
// agent.
func (s *VoiceService) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	if !s.hasKey {
		return "", ErrVoiceKeyMissing
	}

	var resp signedURLResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("agent_id", agentID).
		SetResult(&resp).
		Get("/convai/conversation/get-signed-url")
	if err != nil {
		return "", fmt.Errorf("signed url request: %w", err)
	}
	if httpResp.IsError() {
		return "", fmt.Errorf("signed url: status %d: %s", httpResp.StatusCode(), httpResp.String())
	}
	return resp.SignedURL, nil
}
