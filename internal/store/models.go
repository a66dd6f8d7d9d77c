package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Status is the review state of an interview.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusReviewed  Status = "reviewed"
)

// Interview is the metadata of one recorded mock interview.
type Interview struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Company     string    `json:"company" db:"company"`
	Position    string    `json:"position" db:"position"`
	Tags        Tags      `json:"tags" db:"tags"`
	Description string    `json:"description" db:"description"`
	Date        time.Time `json:"date" db:"date"`
	Duration    string    `json:"duration" db:"duration"`
	Status      Status    `json:"status" db:"status"`
}

// Validate checks the fields the store relies on.
func (i *Interview) Validate() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.Status, validation.Required,
			validation.In(StatusPending, StatusCompleted, StatusReviewed)),
	)
}

// VideoRecord is one recorded capture session. InterviewID is not enforced
// as a foreign key; DeleteInterview removes dependents explicitly.
type VideoRecord struct {
	ID           string    `json:"id" db:"id"`
	InterviewID  string    `json:"interviewId" db:"interview_id"`
	Blob         []byte    `json:"-" db:"payload"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty" db:"thumbnail_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Transcript is the text captured for an interview.
type Transcript struct {
	ID          string    `json:"id" db:"id"`
	InterviewID string    `json:"interviewId" db:"interview_id"`
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// NewVideo is the input of SaveVideo.
type NewVideo struct {
	InterviewID  string
	Blob         []byte
	ThumbnailURL string
}

// NewTranscript is the input of SaveTranscript.
type NewTranscript struct {
	InterviewID string
	Content     string
}

// Tags is an ordered tag list stored as a JSON array.
type Tags []string

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("tags: unsupported type %T", src)
	}
	out := []string{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*t = out
	return nil
}
