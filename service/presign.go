package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audio-vault/dto"
	"audio-vault/pkg/storage"
)

// URLIssuer hands out time-boxed download URLs for stored blobs. The expiry
// is fixed by configuration; the URL may still 404 at use time if the blob
// vanished after issuance.
type URLIssuer interface {
	IssueDownloadURL(ctx context.Context, storageKey string) (*dto.PresignedURLResponse, error)
}

type urlIssuer struct {
	blobs  storage.BlobStore
	expiry time.Duration
}

func NewURLIssuer(blobs storage.BlobStore, expiryHours int) URLIssuer {
	if expiryHours < 1 {
		expiryHours = 1
	}
	return &urlIssuer{
		blobs:  blobs,
		expiry: time.Duration(expiryHours) * time.Hour,
	}
}

func (i *urlIssuer) IssueDownloadURL(ctx context.Context, storageKey string) (*dto.PresignedURLResponse, error) {
	if storageKey == "" {
		return nil, ErrNotFound
	}
	url, err := i.blobs.PresignedGetURL(ctx, storageKey, i.expiry)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	expirySeconds := int(i.expiry.Seconds())
	return &dto.PresignedURLResponse{
		URL:           url,
		ExpirySeconds: expirySeconds,
		Message:       fmt.Sprintf("URL expires in %d seconds", expirySeconds),
	}, nil
}
