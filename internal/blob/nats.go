package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const defaultContentType = "application/octet-stream"

// NATSStore keeps blobs in a JetStream object store bucket.
type NATSStore struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	store  jetstream.ObjectStore
	bucket string
}

// NewNATSStore connects to NATS and opens, or creates, the bucket.
func NewNATSStore(ctx context.Context, url, bucket string) (*NATSStore, error) {
	conn, err := nats.Connect(url, nats.Name("roomchat"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	s := &NATSStore{conn: conn, js: js, bucket: bucket}
	if err := s.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *NATSStore) init(ctx context.Context) error {
	store, err := s.js.ObjectStore(ctx, s.bucket)
	if err == nil {
		s.store = store
		return nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return fmt.Errorf("open object store: %w", err)
	}

	store, err = s.js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      s.bucket,
		Description: "roomchat attachments",
	})
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}
	s.store = store
	return nil
}

// Put stores r under key with its content type in the object headers.
func (s *NATSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	info, err := s.store.Put(ctx, jetstream.ObjectMeta{
		Name:    key,
		Headers: nats.Header{"Content-Type": []string{contentType}},
	}, r)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	return &Object{Key: info.Name, Size: int64(info.Size), ContentType: contentType}, nil
}

// Get streams the object.
func (s *NATSStore) Get(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	if !ValidKey(key) {
		return nil, nil, ErrInvalidKey
	}

	result, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get object: %w", err)
	}
	info, err := result.Info()
	if err != nil {
		result.Close()
		return nil, nil, fmt.Errorf("object info: %w", err)
	}

	contentType := defaultContentType
	if info.Headers != nil {
		if ct := info.Headers.Get("Content-Type"); ct != "" {
			contentType = ct
		}
	}
	return result, &Object{Key: info.Name, Size: int64(info.Size), ContentType: contentType}, nil
}

// Delete removes the object.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Close drains the NATS connection.
func (s *NATSStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

var _ Store = (*NATSStore)(nil)
