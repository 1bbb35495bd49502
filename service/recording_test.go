package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"audio-vault/constant"
	"audio-vault/dto"
	"audio-vault/entities"
	"audio-vault/pkg/storage"
	"audio-vault/service"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory RecordingRepository preserving insertion order.
type fakeRepo struct {
	mu         sync.Mutex
	recordings []*entities.Recording
	failCreate bool
}

func (r *fakeRepo) Create(ctx context.Context, recording *entities.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.New("insert rejected")
	}
	if recording.ID == uuid.Nil {
		recording.ID = uuid.New()
	}
	if recording.CreatedAt.IsZero() {
		recording.CreatedAt = time.Now().UTC()
	}
	clone := *recording
	r.recordings = append(r.recordings, &clone)
	return nil
}

func (r *fakeRepo) FindById(ctx context.Context, id uuid.UUID) (*entities.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recordings {
		if rec.ID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) FindAll(ctx context.Context) ([]*entities.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.Recording, 0, len(r.recordings))
	for _, rec := range r.recordings {
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeRepo) SearchByName(ctx context.Context, name string) ([]*entities.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Recording
	for _, rec := range r.recordings {
		if strings.Contains(strings.ToLower(rec.Name), strings.ToLower(name)) {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteById(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.recordings {
		if rec.ID == id {
			r.recordings = append(r.recordings[:i], r.recordings[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeBlobStore is an in-memory BlobStore with switchable failure modes.
type fakeBlobStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPut    bool
	failDelete bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (s *fakeBlobStore) EnsureBucket(ctx context.Context) error { return nil }

func (s *fakeBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s.failPut {
		return fmt.Errorf("disk full: %w", storage.ErrWriteFailed)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, key string) error {
	if s.failDelete {
		return fmt.Errorf("connection refused: %w", storage.ErrUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeBlobStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", storage.ErrNotFound
	}
	return fmt.Sprintf("https://blobs.example/%s?expires=%d", key, int(expiry.Seconds())), nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []dto.StorageEvent
}

func (c *capturedEvents) Publish(ctx context.Context, event dto.StorageEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func uploadInput() service.UploadInput {
	return service.UploadInput{
		Name:            "clip.wav",
		DurationSeconds: 5,
		SizeBytes:       10,
		MediaType:       "audio/wav",
	}
}

func TestUploadThenGetById(t *testing.T) {
	repo := &fakeRepo{}
	blobs := newFakeBlobStore()
	svc := service.NewRecordingService(repo, blobs, nil)

	content := []byte("ten bytes!")
	rec, err := svc.Upload(context.Background(), uploadInput(), bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("Upload did not assign an id")
	}
	if rec.StorageKey == "" {
		t.Error("Upload did not assign a storage key")
	}

	got, err := svc.GetById(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetById: %v", err)
	}
	if got.StorageKey != rec.StorageKey {
		t.Errorf("storage key mismatch: %q vs %q", got.StorageKey, rec.StorageKey)
	}

	stored, ok := blobs.objects[rec.StorageKey]
	if !ok {
		t.Fatalf("no blob stored under %q", rec.StorageKey)
	}
	if !bytes.Equal(stored, content) {
		t.Errorf("blob content mismatch: got %q, want %q", stored, content)
	}
}

func TestUploadValidation(t *testing.T) {
	svc := service.NewRecordingService(&fakeRepo{}, newFakeBlobStore(), nil)

	cases := []struct {
		name   string
		mutate func(*service.UploadInput)
	}{
		{"blank name", func(in *service.UploadInput) { in.Name = "  " }},
		{"zero duration", func(in *service.UploadInput) { in.DurationSeconds = 0 }},
		{"negative duration", func(in *service.UploadInput) { in.DurationSeconds = -3 }},
		{"empty file", func(in *service.UploadInput) { in.SizeBytes = 0 }},
		{"non-audio type", func(in *service.UploadInput) { in.MediaType = "video/mp4" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := uploadInput()
			tc.mutate(&in)
			_, err := svc.Upload(context.Background(), in, strings.NewReader("x"))
			if !errors.Is(err, service.ErrInvalidInput) {
				t.Errorf("Upload = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestUploadBlobWriteFailureLeavesNoMetadata(t *testing.T) {
	repo := &fakeRepo{}
	blobs := newFakeBlobStore()
	blobs.failPut = true
	svc := service.NewRecordingService(repo, blobs, nil)

	_, err := svc.Upload(context.Background(), uploadInput(), strings.NewReader("ten bytes!"))
	if !errors.Is(err, storage.ErrWriteFailed) {
		t.Fatalf("Upload = %v, want ErrWriteFailed", err)
	}

	all, _ := repo.FindAll(context.Background())
	if len(all) != 0 {
		t.Errorf("metadata row created despite blob write failure: %d rows", len(all))
	}
}

func TestUploadMetadataFailureReportsOrphan(t *testing.T) {
	repo := &fakeRepo{failCreate: true}
	blobs := newFakeBlobStore()
	events := &capturedEvents{}
	svc := service.NewRecordingService(repo, blobs, events)

	_, err := svc.Upload(context.Background(), uploadInput(), strings.NewReader("ten bytes!"))
	if err == nil {
		t.Fatal("Upload succeeded despite metadata insert failure")
	}

	// The blob stays behind as an orphan; no compensating delete.
	if len(blobs.objects) != 1 {
		t.Errorf("expected 1 orphaned blob, found %d", len(blobs.objects))
	}
	if len(events.events) != 1 || events.events[0].Kind != constant.EventOrphanBlob {
		t.Fatalf("expected one orphan_blob event, got %+v", events.events)
	}
	if events.events[0].StorageKey == "" {
		t.Error("orphan event is missing the storage key")
	}
}

func TestDeleteTwice(t *testing.T) {
	repo := &fakeRepo{}
	blobs := newFakeBlobStore()
	svc := service.NewRecordingService(repo, blobs, nil)

	rec, err := svc.Upload(context.Background(), uploadInput(), strings.NewReader("ten bytes!"))
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := svc.Delete(context.Background(), rec.ID)
	if err != nil || !deleted {
		t.Fatalf("first Delete = %v, %v; want true, nil", deleted, err)
	}
	if _, ok := blobs.objects[rec.StorageKey]; ok {
		t.Error("blob survived deletion")
	}

	deleted, err = svc.Delete(context.Background(), rec.ID)
	if err != nil || deleted {
		t.Fatalf("second Delete = %v, %v; want false, nil", deleted, err)
	}
}

func TestDeleteBlobFailureStillRemovesMetadata(t *testing.T) {
	repo := &fakeRepo{}
	blobs := newFakeBlobStore()
	events := &capturedEvents{}
	svc := service.NewRecordingService(repo, blobs, events)

	rec, err := svc.Upload(context.Background(), uploadInput(), strings.NewReader("ten bytes!"))
	if err != nil {
		t.Fatal(err)
	}

	blobs.failDelete = true
	deleted, err := svc.Delete(context.Background(), rec.ID)
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v; want true, nil", deleted, err)
	}

	if _, err := svc.GetById(context.Background(), rec.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("metadata row survived best-effort blob delete failure: %v", err)
	}
	if len(events.events) != 1 || events.events[0].Kind != constant.EventBlobDeleteFailed {
		t.Fatalf("expected one blob_delete_failed event, got %+v", events.events)
	}
}

func TestSearch(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewRecordingService(repo, newFakeBlobStore(), nil)

	names := []string{"Standup Monday.wav", "standup tuesday.mp3", "interview.ogg"}
	for _, name := range names {
		in := uploadInput()
		in.Name = name
		if _, err := svc.Upload(context.Background(), in, strings.NewReader("ten bytes!")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.Search(context.Background(), "STANDUP")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("Search(STANDUP) returned %d recordings, want 2", len(got))
	}

	all, err := svc.Search(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(names) {
		t.Errorf("Search(\"\") returned %d recordings, want %d", len(all), len(names))
	}
}

func TestGetByIdUnknown(t *testing.T) {
	svc := service.NewRecordingService(&fakeRepo{}, newFakeBlobStore(), nil)
	if _, err := svc.GetById(context.Background(), uuid.New()); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("GetById = %v, want ErrNotFound", err)
	}
}

func TestDownloadStaleKey(t *testing.T) {
	repo := &fakeRepo{}
	blobs := newFakeBlobStore()
	svc := service.NewRecordingService(repo, blobs, nil)

	rec, err := svc.Upload(context.Background(), uploadInput(), strings.NewReader("ten bytes!"))
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a crash between the two delete steps: blob gone, row alive.
	delete(blobs.objects, rec.StorageKey)

	if _, _, err := svc.Download(context.Background(), rec.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Download with dangling key = %v, want ErrNotFound", err)
	}
}

func TestCreateMetadataOnly(t *testing.T) {
	repo := &fakeRepo{}
	blobs := newFakeBlobStore()
	svc := service.NewRecordingService(repo, blobs, nil)

	rec, err := svc.Create(context.Background(), &entities.Recording{
		Name:            "ledger-entry.wav",
		DurationSeconds: 30,
		MediaType:       "audio/wav",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("Create did not assign an id")
	}
	if len(blobs.objects) != 0 {
		t.Error("metadata-only create touched the blob store")
	}

	if _, err := svc.Create(context.Background(), &entities.Recording{Name: "x", DurationSeconds: 0}); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("Create with zero duration = %v, want ErrInvalidInput", err)
	}
}

func TestConcurrentUploadsGetDistinctKeys(t *testing.T) {
	repo := &fakeRepo{}
	blobs := newFakeBlobStore()
	svc := service.NewRecordingService(repo, blobs, nil)

	const n = 50
	keys := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := uploadInput()
			in.Name = fmt.Sprintf("clip-%d.wav", i)
			rec, err := svc.Upload(context.Background(), in, strings.NewReader("ten bytes!"))
			if err != nil {
				t.Errorf("Upload %d: %v", i, err)
				return
			}
			keys <- rec.StorageKey
		}(i)
	}
	wg.Wait()
	close(keys)

	seen := map[string]struct{}{}
	for key := range keys {
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate storage key %q across concurrent uploads", key)
		}
		seen[key] = struct{}{}
	}
	all, _ := repo.FindAll(context.Background())
	if len(all) != n {
		t.Errorf("expected %d metadata rows, found %d", n, len(all))
	}
}
