package gcs

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"

	"github.com/oksasatya/kios-auth/pkg/helpers"
)

// PictureStorage uploads profile pictures into a single bucket.
type PictureStorage struct {
	client *storage.Client
	bucket string
}

func NewPictureStorage(client *storage.Client, bucket string) (*PictureStorage, error) {
	if client == nil || bucket == "" {
		return nil, errors.New("gcs not configured")
	}
	return &PictureStorage{client: client, bucket: bucket}, nil
}

func (s *PictureStorage) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	return helpers.UploadObject(ctx, s.client, s.bucket, objectPath, contentType, r)
}
