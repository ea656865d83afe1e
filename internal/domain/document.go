package domain

import "time"

// DocumentStatus represents the per-document processing outcome. Tracked
// independently from task status: a task can complete while one of its
// documents remains failed.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded knowledge-base file belonging to an expert.
// Content normally lives in object storage under S3Key; Content is the
// database fallback for files uploaded while storage was unavailable.
type Document struct {
	ID       string `gorm:"type:text;primaryKey" json:"id"`
	ExpertID string `gorm:"type:text;not null;index" json:"expert_id"`

	Name        string `gorm:"type:text;not null" json:"name"`
	ContentType string `gorm:"type:text" json:"content_type"`
	Size        int64  `json:"size"`

	S3Key   string `gorm:"type:text" json:"s3_key,omitempty"`
	Content []byte `gorm:"type:blob" json:"-"`

	// Pre-extracted text, when the upload path already ran extraction.
	ExtractedText string `gorm:"type:text" json:"-"`

	ProcessingStatus DocumentStatus `gorm:"type:text;default:pending;index" json:"processing_status"`
	WordCount        int            `gorm:"default:0" json:"word_count"`
	ProcessingError  string         `gorm:"type:text" json:"processing_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string {
	return "expert_documents"
}
