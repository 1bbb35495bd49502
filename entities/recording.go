package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Recording struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name            string    `json:"name" gorm:"type:varchar(255);not null"`
	StorageKey      string    `json:"storage_key" gorm:"type:varchar(500)"`
	DurationSeconds int       `json:"duration_seconds" gorm:"type:integer;not null"`
	SizeBytes       int64     `json:"size_bytes" gorm:"type:bigint;not null"`
	MediaType       string    `json:"media_type" gorm:"type:varchar(100);not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Recording) TableName() string {
	return "recordings"
}

// BeforeCreate assigns the id and timestamp app-side so stores without
// column defaults still produce complete rows.
func (r *Recording) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}
