package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"audio-vault/constant"
	"audio-vault/dto"
	"audio-vault/entities"
	"audio-vault/pkg/storage"
	"audio-vault/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("recording not found")
)

// EventPublisher receives dual-store incidents. A nil publisher is allowed;
// incidents are then only logged.
type EventPublisher interface {
	Publish(ctx context.Context, event dto.StorageEvent) error
}

type UploadInput struct {
	Name            string
	DurationSeconds int
	SizeBytes       int64
	MediaType       string
}

type RecordingService interface {
	// Upload persists content and metadata for a new recording: blob first,
	// metadata row second.
	Upload(ctx context.Context, input UploadInput, content io.Reader) (*entities.Recording, error)
	// Create inserts a metadata-only row with a caller-supplied storage key
	// (or none). The blob store is not touched.
	Create(ctx context.Context, recording *entities.Recording) (*entities.Recording, error)
	GetById(ctx context.Context, id uuid.UUID) (*entities.Recording, error)
	List(ctx context.Context) ([]*entities.Recording, error)
	Search(ctx context.Context, name string) ([]*entities.Recording, error)
	// Delete removes the blob (best effort) then the metadata row. Returns
	// false when the id is unknown.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// Download resolves the recording and opens its blob for streaming.
	Download(ctx context.Context, id uuid.UUID) (*entities.Recording, io.ReadCloser, error)
}

type recordingService struct {
	repo   repository.RecordingRepository
	blobs  storage.BlobStore
	events EventPublisher
}

func NewRecordingService(repo repository.RecordingRepository, blobs storage.BlobStore, events EventPublisher) RecordingService {
	return &recordingService{
		repo:   repo,
		blobs:  blobs,
		events: events,
	}
}

func (s *recordingService) Upload(ctx context.Context, input UploadInput, content io.Reader) (*entities.Recording, error) {
	if err := validateUpload(input); err != nil {
		return nil, err
	}

	key := NewStorageKey(input.Name)
	zerolog.Ctx(ctx).Info().Str("name", input.Name).Str("storage_key", key).Msg("storing uploaded recording")

	if err := s.blobs.Put(ctx, key, content, input.SizeBytes, input.MediaType); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("storage_key", key).Msg("blob write failed")
		return nil, err
	}

	recording := &entities.Recording{
		Name:            input.Name,
		StorageKey:      key,
		DurationSeconds: input.DurationSeconds,
		SizeBytes:       input.SizeBytes,
		MediaType:       input.MediaType,
	}
	if err := s.repo.Create(ctx, recording); err != nil {
		// The blob is now an orphan. No compensating delete; surface the
		// condition for tooling and fail the request.
		s.reportIncident(ctx, dto.StorageEvent{
			Kind:       constant.EventOrphanBlob,
			StorageKey: key,
			Detail:     err.Error(),
			OccurredAt: time.Now().UTC(),
		})
		return nil, fmt.Errorf("insert metadata after blob write: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("id", recording.ID.String()).Str("storage_key", key).Msg("recording created")
	return recording, nil
}

func (s *recordingService) Create(ctx context.Context, recording *entities.Recording) (*entities.Recording, error) {
	if strings.TrimSpace(recording.Name) == "" {
		return nil, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if recording.DurationSeconds <= 0 {
		return nil, fmt.Errorf("duration must be positive: %w", ErrInvalidInput)
	}
	if err := s.repo.Create(ctx, recording); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("id", recording.ID.String()).Msg("metadata-only recording created")
	return recording, nil
}

func (s *recordingService) GetById(ctx context.Context, id uuid.UUID) (*entities.Recording, error) {
	recording, err := s.repo.FindById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return recording, nil
}

func (s *recordingService) List(ctx context.Context) ([]*entities.Recording, error) {
	return s.repo.FindAll(ctx)
}

func (s *recordingService) Search(ctx context.Context, name string) ([]*entities.Recording, error) {
	return s.repo.SearchByName(ctx, name)
}

func (s *recordingService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	recording, err := s.repo.FindById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	// Blob first: a crash between the two deletes leaves at worst a row with
	// a dangling key, caught as NotFound on the next download, never a
	// metadata-less blob posing as a live recording.
	if recording.StorageKey != "" {
		if err := s.blobs.Delete(ctx, recording.StorageKey); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("id", id.String()).
				Str("storage_key", recording.StorageKey).
				Msg("blob delete failed, removing metadata anyway")
			s.reportIncident(ctx, dto.StorageEvent{
				Kind:        constant.EventBlobDeleteFailed,
				RecordingID: id,
				StorageKey:  recording.StorageKey,
				Detail:      err.Error(),
				OccurredAt:  time.Now().UTC(),
			})
		}
	}

	if err := s.repo.DeleteById(ctx, id); err != nil {
		return false, err
	}
	zerolog.Ctx(ctx).Info().Str("id", id.String()).Msg("recording deleted")
	return true, nil
}

func (s *recordingService) Download(ctx context.Context, id uuid.UUID) (*entities.Recording, io.ReadCloser, error) {
	recording, err := s.GetById(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if recording.StorageKey == "" {
		return nil, nil, ErrNotFound
	}
	rc, err := s.blobs.Get(ctx, recording.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Stale key: the row survived a blob that is gone.
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return recording, rc, nil
}

func (s *recordingService) reportIncident(ctx context.Context, event dto.StorageEvent) {
	zerolog.Ctx(ctx).Error().
		Str("event", string(event.Kind)).
		Str("storage_key", event.StorageKey).
		Str("detail", event.Detail).
		Msg("dual-store incident")
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("event", string(event.Kind)).Msg("failed to publish storage event")
	}
}

func validateUpload(input UploadInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if input.DurationSeconds <= 0 {
		return fmt.Errorf("duration must be positive: %w", ErrInvalidInput)
	}
	if input.SizeBytes == 0 {
		return fmt.Errorf("file is empty: %w", ErrInvalidInput)
	}
	if !strings.HasPrefix(input.MediaType, constant.AudioMediaTypePrefix) {
		return fmt.Errorf("content type %q is not audio: %w", input.MediaType, ErrInvalidInput)
	}
	return nil
}
