package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LocalStore keeps blobs as flat files under one directory. It exists for
// deployments without an object store; the interface contract is identical
// to the MinIO backend.
type LocalStore struct {
	dir     string
	secret  []byte
	baseURL string
}

// NewLocalStore creates a local backend rooted at dir. baseURL is the
// externally reachable address of this service (scheme://host), used to
// build signed download URLs served by the /files route.
func NewLocalStore(dir, signSecret, baseURL string) *LocalStore {
	return &LocalStore{
		dir:     dir,
		secret:  []byte(signSecret),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *LocalStore) EnsureBucket(ctx context.Context) error {
	if _, err := os.Stat(s.dir); err == nil {
		zerolog.Ctx(ctx).Info().Str("directory", s.dir).Msg("storage directory already exists")
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create storage directory %q: %w", s.dir, errors.Join(ErrUnavailable, err))
	}
	zerolog.Ctx(ctx).Info().Str("directory", s.dir).Msg("created storage directory")
	return nil
}

// abs maps a key to a path inside the root. Keys are opaque single path
// elements; anything that resolves outside the root is rejected.
func (s *LocalStore) abs(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty storage key: %w", ErrNotFound)
	}
	joined := filepath.Join(s.dir, filepath.Clean(filepath.FromSlash(key)))
	rel, err := filepath.Rel(s.dir, joined)
	if err != nil || rel != key || rel == "." || strings.HasPrefix(rel, "..") || strings.Contains(rel, string(filepath.Separator)) {
		return "", fmt.Errorf("storage key %q escapes storage directory: %w", key, ErrNotFound)
	}
	return joined, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	dest, err := s.abs(key)
	if err != nil {
		return errors.Join(ErrWriteFailed, err)
	}

	// Temp file plus rename so a failed write never leaves a partial blob.
	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("open %q: %w", tmp, errors.Join(ErrWriteFailed, err))
	}
	_, werr := io.Copy(f, r)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %q: %w", key, errors.Join(ErrWriteFailed, werr, cerr))
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %q: %w", key, errors.Join(ErrWriteFailed, err))
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	abs, err := s.abs(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", key, errors.Join(ErrUnavailable, err))
	}
	return f, nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	abs, err := s.abs(key)
	if err != nil {
		return false, nil
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %q: %w", key, errors.Join(ErrUnavailable, err))
	}
	return true, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	abs, err := s.abs(key)
	if err != nil {
		return nil
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", key, errors.Join(ErrUnavailable, err))
	}
	return nil
}

// PresignedGetURL mints an HMAC-signed URL on this service's /files route.
// There is no external store to delegate signing to, so the expiry rides in
// the query string and is checked again at download time.
func (s *LocalStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("presign %q: %w", key, ErrNotFound)
	}
	expires := time.Now().Add(expiry).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, expires))
	return fmt.Sprintf("%s/files/%s?%s", s.baseURL, url.PathEscape(key), q.Encode()), nil
}

// VerifySignedKey validates the expiry and signature of a /files request.
// Returns ErrNotFound on any mismatch so the route does not reveal whether
// the key exists.
func (s *LocalStore) VerifySignedKey(key, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrNotFound
	}
	if time.Now().Unix() > exp {
		return ErrNotFound
	}
	if !hmac.Equal([]byte(s.sign(key, exp)), []byte(signature)) {
		return ErrNotFound
	}
	return nil
}

// FilePath resolves key to the concrete path for gin's file response.
func (s *LocalStore) FilePath(key string) (string, error) {
	abs, err := s.abs(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", ErrNotFound
	}
	return abs, nil
}

func (s *LocalStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
