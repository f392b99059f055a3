package simplesubmission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
)

// hashChunkSize bounds memory while digesting uploads.
const hashChunkSize = 32 * 1024

// Store provides content-addressed persistence on top of a BlobStore. The
// object key is the hex SHA-256 digest of the content, so Put is idempotent
// and identical uploads converge on a single stored copy.
//
// Store does not track references; callers gate Delete on their own
// reference counts.
type Store struct {
	backend BlobStore
}

// NewStore creates a content-addressed store over the given backend.
func NewStore(backend BlobStore) *Store {
	return &Store{backend: backend}
}

// HashReader computes the hex SHA-256 digest of r in fixed-size chunks.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Put stores the content read from r and returns its key and whether the
// bytes were newly written. The content is staged to a temporary file so it
// can be digested before upload; callers that already have the bytes on disk
// should use PutFile.
func (s *Store) Put(ctx context.Context, r io.Reader) (string, bool, error) {
	tmp, err := os.CreateTemp("", "simplesubmission-put-*")
	if err != nil {
		return "", false, &StorageError{Op: "put", Err: err}
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(tmp, r, buf); err != nil {
		return "", false, &StorageError{Op: "put", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return "", false, &StorageError{Op: "put", Err: err}
	}

	return s.PutFile(ctx, tmp.Name())
}

// PutFile stores the content of the file at path. If an object with the same
// digest already exists the bytes are not rewritten and isNew is false.
func (s *Store) PutFile(ctx context.Context, path string) (key string, isNew bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, &StorageError{Op: "put", Err: err}
	}
	defer f.Close()

	key, _, err = HashReader(f)
	if err != nil {
		return "", false, &StorageError{Op: "put", Err: err}
	}

	exists, err := s.backend.Exists(ctx, key)
	if err != nil {
		return "", false, &StorageError{Op: "put", Key: key, Err: err}
	}
	if exists {
		return key, false, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", false, &StorageError{Op: "put", Key: key, Err: err}
	}
	if err := s.backend.Upload(ctx, key, f); err != nil {
		return "", false, &StorageError{Op: "put", Key: key, Err: err}
	}
	return key, true, nil
}

// Open returns a reader for the content stored under key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.backend.Download(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	return rc, nil
}

// Exists reports whether content is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.backend.Exists(ctx, key)
	if err != nil {
		return false, &StorageError{Op: "exists", Key: key, Err: err}
	}
	return exists, nil
}

// Delete removes the stored content unconditionally. Deleting a missing key
// is a no-op so cleanup stays idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil
		}
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Meta returns storage metadata for the object at key.
func (s *Store) Meta(ctx context.Context, key string) (*ObjectMeta, error) {
	meta, err := s.backend.GetObjectMeta(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, &StorageError{Op: "meta", Key: key, Err: err}
	}
	return meta, nil
}
