package storage

import (
	"mime"
	"strings"

	"github.com/dmitrijs2005/ecomarket/internal/common"
)

// MaxUploadSize is the default upload ceiling, 5 MiB.
const MaxUploadSize int64 = 5 * 1024 * 1024

const octetStream = "application/octet-stream"

// UploadPolicy decides whether an upload may be stored.
type UploadPolicy struct {
	MaxSize int64
}

// DefaultPolicy enforces MaxUploadSize.
var DefaultPolicy = UploadPolicy{MaxSize: MaxUploadSize}

// CheckUpload applies DefaultPolicy.
func CheckUpload(size int64, mediaType string) error {
	return DefaultPolicy.Check(size, mediaType)
}

// Check rejects empty payloads with common.ErrBadRequest, payloads above
// MaxSize with common.ErrPayloadTooLarge and anything that is neither
// image/* nor application/octet-stream with common.ErrUnsupportedMediaType.
// Media type parameters such as charset are ignored.
func (p UploadPolicy) Check(size int64, mediaType string) error {
	if size <= 0 {
		return common.ErrBadRequest
	}

	limit := p.MaxSize
	if limit <= 0 {
		limit = MaxUploadSize
	}
	if size > limit {
		return common.ErrPayloadTooLarge
	}

	if !AcceptedMediaType(mediaType) {
		return common.ErrUnsupportedMediaType
	}
	return nil
}

// AcceptedMediaType reports whether mediaType is an image type or the
// generic binary type.
func AcceptedMediaType(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/") || mt == octetStream
}
