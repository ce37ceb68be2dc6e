package storage

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"duochat/internal/pkg/errs"
)

const (
	// MaxAvatarSizeMB is the maximum allowed avatar size in megabytes.
	MaxAvatarSizeMB = 5

	// MaxAvatarSize is the maximum allowed avatar size in bytes.
	MaxAvatarSize = MaxAvatarSizeMB * 1024 * 1024

	// PresignedURLDuration is the fixed duration for which the upload URL is valid (5 minutes).
	PresignedURLDuration = 5 * time.Minute

	// AvatarKeyPrefix is the top-level folder for avatar objects.
	AvatarKeyPrefix = "avatars/"
)

// AllowedMIMETypes defines the set of permitted MIME types for avatars.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateFileSize checks if the provided file size is within acceptable limits.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams).WithDetail("fileSize must be positive")
	}

	if fileSize > MaxAvatarSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// ValidateFileType checks that the MIME type is allowed and agrees with the file extension.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	expectedMIME, ok := ExtToMIME[ext]
	if !ok || expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	return nil
}

// AvatarKey builds a fresh object key under the user's own folder.
func AvatarKey(userID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return AvatarKeyPrefix + userID + "/" + uuid.NewString() + ext
}

// IsOwnAvatarKey reports whether key lives in userID's avatar folder and has an image extension.
func IsOwnAvatarKey(userID, key string) bool {
	rest, ok := strings.CutPrefix(key, AvatarKeyPrefix+userID+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return false
	}
	_, known := ExtToMIME[strings.ToLower(filepath.Ext(rest))]
	return known
}
