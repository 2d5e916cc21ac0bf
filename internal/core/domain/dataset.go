package domain

import (
	"encoding/json"
	"time"
)

type DatasetStatus string

const (
	StatusPending    DatasetStatus = "pending"
	StatusProcessing DatasetStatus = "processing"
	StatusCompleted  DatasetStatus = "completed"
	StatusFailed     DatasetStatus = "failed"
)

// Upload mime types recognized by the loader.
const (
	MimeCSV  = "text/csv"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// MaxErrorMessageRunes is the capacity of the persisted error message.
const MaxErrorMessageRunes = 1024

type Project struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Dataset struct {
	ID                    int64           `json:"id"`
	ProjectID             int64           `json:"project_id"`
	Name                  string          `json:"name"`
	Status                DatasetStatus   `json:"status"`
	Error                 string          `json:"error_message,omitempty"`
	FileSizeBytes         int64           `json:"file_size_bytes"`
	MimeType              string          `json:"file_mime_type"`
	StoragePath           string          `json:"-"`
	Profile               json.RawMessage `json:"data_profile,omitempty"`
	ProcessingStartedAt   *time.Time      `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time      `json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (d *Dataset) Ready() bool {
	return d != nil && d.Status == StatusCompleted
}

// TruncateErrorMessage cuts msg to the persisted error message capacity
// without splitting a rune.
func TruncateErrorMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxErrorMessageRunes {
		return msg
	}
	return string(runes[:MaxErrorMessageRunes])
}
