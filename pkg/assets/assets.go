// Package assets stores binary image assets outside the primary datastore
// and maps them to stable public URLs.
package assets

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Ref is an opaque, stable locator for a stored object: the object key
// inside the configured bucket.
type Ref string

// Store is the asset store adapter consumed by the portfolio service.
type Store interface {
	// Put stores data under namespace and returns its reference.
	Put(ctx context.Context, namespace string, data []byte, contentType string) (Ref, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, ref Ref) error
	// Exists reports whether the object is currently stored.
	Exists(ctx context.Context, ref Ref) (bool, error)
	// URL returns the public URL for ref.
	URL(ref Ref) string
	// RefFromURL reverses URL. It returns false for URLs this store does not own.
	RefFromURL(url string) (Ref, bool)
}

var (
	ErrEmpty           = errors.New("asset is empty")
	ErrTooLarge        = errors.New("asset exceeds maximum size")
	ErrUnsupportedType = errors.New("unsupported asset content type")
	ErrInvalidRef      = errors.New("invalid asset reference")
)

// ValidateImage checks size and content type and returns the content type
// to store the object with. Only the sniffed type counts. The declared type
// is ignored, so markup formats such as SVG, which can carry scripts and are
// served from the public asset origin, are rejected.
func ValidateImage(data []byte, declared string, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", ErrTooLarge
	}

	detected := http.DetectContentType(data)
	if !strings.HasPrefix(detected, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentTypeLabel(declared, detected))
	}
	return detected, nil
}

func contentTypeLabel(declared, detected string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		return mt
	}
	return detected
}

// objectKey builds "<namespace>/<uuid><ext>".
func objectKey(namespace, contentType string) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	ns := strings.Trim(path.Clean("/"+namespace), "/")
	if ns == "" {
		return uuid.NewString() + ext
	}
	return ns + "/" + uuid.NewString() + ext
}

func validRef(ref Ref) bool {
	s := string(ref)
	return s != "" && !strings.HasPrefix(s, "/") && !strings.Contains(s, "..")
}

// refFromURL strips base from u.
func refFromURL(base, u string) (Ref, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(u, prefix) {
		return "", false
	}
	ref := Ref(strings.TrimPrefix(u, prefix))
	if !validRef(ref) {
		return "", false
	}
	return ref, true
}
