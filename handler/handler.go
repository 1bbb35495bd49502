package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"audio-vault/constant"
	"audio-vault/dto"
	"audio-vault/entities"
	"audio-vault/pkg/storage"
	"audio-vault/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Handler struct {
	Recordings service.RecordingService
	URLs       service.URLIssuer
	// Local is set only when the local-filesystem backend is active; it
	// backs the signed /files download route.
	Local *storage.LocalStore
}

func New(recordings service.RecordingService, urls service.URLIssuer, local *storage.LocalStore) *Handler {
	return &Handler{
		Recordings: recordings,
		URLs:       urls,
		Local:      local,
	}
}

// Upload handles POST /api/recordings/upload (multipart: file, duration).
func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil || file.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	duration, err := strconv.Atoi(c.PostForm("duration"))
	if err != nil || duration <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a positive integer"})
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, constant.AudioMediaTypePrefix) {
		zerolog.Ctx(c.Request.Context()).Warn().Str("content_type", contentType).Msg("rejected non-audio upload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "only audio uploads are accepted"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	recording, err := h.Recordings.Upload(c.Request.Context(), service.UploadInput{
		Name:            file.Filename,
		DurationSeconds: duration,
		SizeBytes:       file.Size,
		MediaType:       contentType,
	}, f)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store recording"})
		return
	}

	c.JSON(http.StatusCreated, recording)
}

// Create handles POST /api/recordings (metadata only).
func (h *Handler) Create(c *gin.Context) {
	var req dto.CreateRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recording, err := h.Recordings.Create(c.Request.Context(), &entities.Recording{
		Name:            req.Name,
		StorageKey:      req.StorageKey,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       req.SizeBytes,
		MediaType:       req.MediaType,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create recording"})
		return
	}

	c.JSON(http.StatusCreated, recording)
}

// GetById handles GET /api/recordings/:id.
func (h *Handler) GetById(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	recording, err := h.Recordings.GetById(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, recording)
}

// List handles GET /api/recordings.
func (h *Handler) List(c *gin.Context) {
	recordings, err := h.Recordings.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recordings"})
		return
	}
	c.JSON(http.StatusOK, recordings)
}

// Search handles GET /api/recordings/search?name=. An empty pattern matches
// every recording.
func (h *Handler) Search(c *gin.Context) {
	recordings, err := h.Recordings.Search(c.Request.Context(), c.Query("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search recordings"})
		return
	}
	c.JSON(http.StatusOK, recordings)
}

// Download handles GET /api/recordings/:id/download, streaming the blob
// through without buffering it.
func (h *Handler) Download(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	recording, rc, err := h.Recordings.Download(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, recording.SizeBytes, recording.MediaType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", recording.Name),
	})
}

// PresignedURL handles GET /api/recordings/:id/presigned-url.
func (h *Handler) PresignedURL(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	recording, err := h.Recordings.GetById(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	resp, err := h.URLs.IssueDownloadURL(c.Request.Context(), recording.StorageKey)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /api/recordings/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	deleted, err := h.Recordings.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete recording"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ServeSignedFile handles GET /files/:key for the local backend, verifying
// the HMAC signature and expiry minted by PresignedGetURL.
func (h *Handler) ServeSignedFile(c *gin.Context) {
	key := c.Param("key")
	if err := h.Local.VerifySignedKey(key, c.Query("expires"), c.Query("signature")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	path, err := h.Local.FilePath(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(path)
}

// recordingID parses the :id path segment. A malformed id is treated the
// same as an unknown one.
func (h *Handler) recordingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("recording lookup failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
