// Package upload defines the image storage boundary. Handlers hand it
// a data URL and get back a servable URL; a hosted provider can replace
// the local implementation without touching call sites.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ErrInvalidImage is returned when the payload is not a decodable image
// data URL.
var ErrInvalidImage = errors.New("upload: invalid image payload")

// Store persists an uploaded image and returns its public URL.
type Store interface {
	Save(ctx context.Context, dataURL string) (string, error)
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// LocalStore writes images to a directory served under /uploads.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the directory images are written to, for static serving.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save decodes a base64 data URL and writes it under a generated name.
func (s *LocalStore) Save(_ context.Context, dataURL string) (string, error) {
	mediaType, data, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	ext, ok := extensions[mediaType]
	if !ok {
		return "", ErrInvalidImage
	}

	name := ulid.Make().String() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}

	return "/uploads/" + name, nil
}

// decodeDataURL splits a "data:<mediatype>;base64,<payload>" string.
func decodeDataURL(dataURL string) (string, []byte, error) {
	rest, found := strings.CutPrefix(dataURL, "data:")
	if !found {
		return "", nil, ErrInvalidImage
	}

	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, ErrInvalidImage
	}

	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, ErrInvalidImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, ErrInvalidImage
	}
	return mediaType, data, nil
}
