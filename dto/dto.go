package dto

import (
	"time"

	"audio-vault/constant"
	"github.com/google/uuid"
)

type CreateRecordingRequest struct {
	Name            string `json:"name" binding:"required"`
	StorageKey      string `json:"storage_key"`
	DurationSeconds int    `json:"duration_seconds" binding:"required,gt=0"`
	SizeBytes       int64  `json:"size_bytes"`
	MediaType       string `json:"media_type"`
}

type PresignedURLResponse struct {
	URL           string `json:"url"`
	ExpirySeconds int    `json:"expiry_seconds"`
	Message       string `json:"message"`
}

// StorageEvent records a dual-store incident (orphaned blob, failed blob
// delete) for operational tooling listening on the event exchange.
type StorageEvent struct {
	Kind        constant.EventKind `json:"kind"`
	RecordingID uuid.UUID          `json:"recording_id,omitempty"`
	StorageKey  string             `json:"storage_key"`
	Detail      string             `json:"detail"`
	OccurredAt  time.Time          `json:"occurred_at"`
}
