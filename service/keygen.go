package service

import (
	"strings"

	"github.com/google/uuid"
)

// NewStorageKey generates the key a blob is stored under: a random UUID plus
// the original file's extension, so content type survives in the key. The
// 128-bit token makes collisions negligible without checking the store.
func NewStorageKey(originalName string) string {
	ext := ""
	if idx := strings.LastIndex(originalName, "."); idx >= 0 {
		ext = originalName[idx:]
	}
	return uuid.NewString() + ext
}
