package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/vovakirdan/roomchat/internal/blob"
	"github.com/vovakirdan/roomchat/internal/store"
)

// Common errors for file operations.
var (
	ErrEmptyFile   = errors.New("file is empty")
	ErrTooLarge    = errors.New("file is too large")
	ErrMissingName = errors.New("file name is required")
	ErrUnknownFile = errors.New("file was not uploaded here")
)

// Service turns uploaded bytes into attachment descriptors.
type Service struct {
	blobs    blob.Store
	baseURL  string
	maxBytes int64
}

// New creates a file service. Descriptor URLs are baseURL + "/files/" + key.
func New(blobs blob.Store, baseURL string, maxBytes int64) *Service {
	return &Service{
		blobs:    blobs,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}
}

// Upload stores the content of r and returns its descriptor.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader) (*store.File, error) {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, ErrMissingName
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}

	contentType := mimetype.Detect(data).String()
	key := uuid.NewString() + "-" + sanitize(name)

	obj, err := s.blobs.Put(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &store.File{
		URL:  s.baseURL + "/files/" + key,
		Name: name,
		Type: contentType,
		Size: obj.Size,
	}, nil
}

// Open streams the blob stored under key.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, *blob.Object, error) {
	return s.blobs.Get(ctx, key)
}

// Resolve checks that rawURL points at a blob this service stored and returns
// the descriptor built from the stored object. name is kept for display; the
// type and size always come from the blob.
func (s *Service) Resolve(ctx context.Context, rawURL, name string) (*store.File, error) {
	key, ok := strings.CutPrefix(rawURL, s.baseURL+"/files/")
	if !ok || !blob.ValidKey(key) {
		return nil, ErrUnknownFile
	}

	rc, obj, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
			return nil, ErrUnknownFile
		}
		return nil, fmt.Errorf("resolve blob %q: %w", key, err)
	}
	_ = rc.Close()

	if strings.TrimSpace(name) == "" {
		name = DisplayName(key)
	}
	return &store.File{
		URL:  rawURL,
		Name: name,
		Type: obj.ContentType,
		Size: obj.Size,
	}, nil
}

// Remove deletes the blob behind a descriptor URL. Missing blobs are ignored.
func (s *Service) Remove(ctx context.Context, rawURL string) error {
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		key = u.Path
	}
	key = path.Base(key)

	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("remove blob %q: %w", key, err)
	}
	return nil
}

// DisplayName recovers the sanitized original name from a blob key.
func DisplayName(key string) string {
	if len(key) > 37 && key[36] == '-' {
		if _, err := uuid.Parse(key[:36]); err == nil {
			return key[37:]
		}
	}
	return key
}

// sanitize keeps names safe to use as a single path element.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
