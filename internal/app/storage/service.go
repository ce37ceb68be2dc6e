/*
Package storage provides S3-compatible object storage for user avatars.

Clients upload directly to the bucket with a presigned PUT URL; the server only
signs, inspects and deletes objects.
*/
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by NewStorageService when S3 settings are incomplete.
var ErrNotConfigured = errors.New("storage: S3 is not configured")

// ErrObjectNotFound is returned by Stat for missing keys.
var ErrObjectNotFound = errors.New("storage: object not found")

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// PublicBaseURL is the prefix under which objects are publicly readable.
	PublicBaseURL string
}

// Complete reports whether every setting needed to talk to S3 is present.
func (c ServiceConfig) Complete() bool {
	return c.S3BucketName != "" && c.S3Endpoint != "" &&
		c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	ContentType string
	Size        int64
}

// StorageService defines the public interface for the file storage service.
type StorageService interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// Stat returns ErrObjectNotFound when key does not exist.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error

	// PublicURL returns the URL clients use to display key.
	PublicURL(key string) string

	// KeyFromURL reverses PublicURL. It reports false for URLs this service did not produce.
	KeyFromURL(url string) (string, bool)
}

// NewStorageService is the factory function for StorageService.
// It returns ErrNotConfigured when cfg is incomplete, in which case avatar uploads are disabled.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	if !cfg.Complete() {
		return nil, ErrNotConfigured
	}
	return newS3Client(ctx, cfg)
}
