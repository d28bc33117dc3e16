package object

import (
	"context"
	"errors"
	"io"
)

// Store persists binary blobs under caller-chosen keys. Keys are
// slash-separated paths, e.g. "tts/<hash>.mp3".
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object not found")
