package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// SnapshotKey is the record name the cart snapshot lives under.
const SnapshotKey = "cart.json"

// ErrNoSnapshot is returned by Load when nothing has been persisted yet.
var ErrNoSnapshot = errors.New("cart snapshot not found")

// SnapshotStore is the durable local record the cart mirrors itself into.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// BlobSnapshotStore keeps the snapshot as a single object in a gocloud bucket.
type BlobSnapshotStore struct {
	bucket *blob.Bucket
	key    string
}

// NewBlobSnapshotStore wraps an already opened bucket. An empty key falls back to SnapshotKey.
func NewBlobSnapshotStore(bucket *blob.Bucket, key string) (*BlobSnapshotStore, error) {
	if bucket == nil {
		return nil, fmt.Errorf("bucket is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = SnapshotKey
	}
	return &BlobSnapshotStore{bucket: bucket, key: key}, nil
}

func (s *BlobSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, s.key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read cart snapshot: %w", err)
	}
	return data, nil
}

func (s *BlobSnapshotStore) Save(ctx context.Context, data []byte) error {
	if err := s.bucket.WriteAll(ctx, s.key, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("write cart snapshot: %w", err)
	}
	return nil
}

func (s *BlobSnapshotStore) Delete(ctx context.Context) error {
	if err := s.bucket.Delete(ctx, s.key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}
