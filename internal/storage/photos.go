package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// MaxPhotoSize is the largest photo accepted for upload.
const MaxPhotoSize = 10 * 1024 * 1024

var (
	ErrUnsupportedPhotoType = errors.New("storage: unsupported photo type")
	ErrPhotoTooLarge        = errors.New("storage: photo too large")
)

var photoTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ValidatePhoto checks size and sniffed content type, returning the type.
func ValidatePhoto(data []byte) (string, error) {
	if len(data) > MaxPhotoSize {
		return "", fmt.Errorf("%w: %s exceeds %s", ErrPhotoTooLarge,
			humanize.IBytes(uint64(len(data))), humanize.IBytes(MaxPhotoSize))
	}
	mt := mimetype.Detect(data)
	for _, t := range photoTypes {
		if mt.Is(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedPhotoType, mt.String())
}

// PhotoKey builds a fresh storage key for an uploaded photo:
//
//	{userID}/{unix millis}-{random}.{ext}
//
// The extension comes from fileName, falling back to the sniffed type's.
func PhotoKey(userID, fileName, contentType string, now time.Time) string {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	if ext == "" {
		if mt := mimetype.Lookup(contentType); mt != nil {
			ext = strings.TrimPrefix(mt.Extension(), ".")
		}
	}
	suffix := strconv.FormatUint(rand.Uint64(), 36)
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return fmt.Sprintf("%s/%d-%s.%s", userID, now.UnixMilli(), suffix, ext)
}

// UploadPhoto validates data and stores it under a new key without
// overwriting existing objects.
func UploadPhoto(ctx context.Context, u Uploader, userID, fileName string, data []byte) (*UploadResult, error) {
	if userID == "" {
		return nil, errors.New("storage: user id is required")
	}
	contentType, err := ValidatePhoto(data)
	if err != nil {
		return nil, err
	}

	return u.Upload(ctx, &UploadRequest{
		ObjectName:  PhotoKey(userID, fileName, contentType, time.Now()),
		Content:     bytes.NewReader(data),
		ContentType: contentType,
		IfNotExists: true,
	})
}
