package domain

import "time"

// Expert is the tenant entity owning a knowledge base. AgentID is the voice
// provider's agent identifier and doubles as the vector index namespace; all
// ingestion and search for this expert is scoped to it.
type Expert struct {
	ID     string `gorm:"type:text;primaryKey" json:"id"`
	UserID string `gorm:"type:text;index" json:"user_id,omitempty"`

	Name        string `gorm:"type:text;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	AgentID string `gorm:"type:text;uniqueIndex" json:"agent_id"`
	VoiceID string `gorm:"type:text" json:"voice_id,omitempty"`

	SystemPrompt string `gorm:"type:text" json:"system_prompt,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Expert.
func (Expert) TableName() string {
	return "experts"
}
