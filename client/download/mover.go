package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"syscall"

	"gocloud.dev/blob"
)

// Mover relocates a finished download from src to dst.
type Mover interface {
	Move(ctx context.Context, src, dst string) error
}

// FileMover moves files on the local filesystem. When src and dst are
// on different devices the file is copied and src removed.
type FileMover struct {
	// CreateDirs creates missing parent directories of dst.
	CreateDirs bool
	// RemoveExisting replaces a file already at dst. Without it an
	// existing dst fails with ErrDestinationExists.
	RemoveExisting bool
}

func (m FileMover) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating destination directory: %w", err)
		}
	}

	if _, err := os.Lstat(dst); err == nil {
		if !m.RemoveExisting {
			return &Error{Err: ErrDestinationExists, Detail: dst}
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("removing existing destination: %w", err)
		}
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("renaming file: %w", err)
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}

	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing destination: %w", cerr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying file: %w", err)
	}

	return out.Sync()
}

// BlobMover uploads finished downloads into a bucket; dst is the object key.
type BlobMover struct {
	Bucket *blob.Bucket
	// ContentType is set on written objects. When empty it is derived
	// from the key's extension.
	ContentType string
}

// OpenBucketMover opens the bucket at urlstr, for example
// "s3://bucket?region=us-east-1", "gs://bucket", "file:///srv/data" or
// "mem://". The driver for the scheme must be linked in by the caller.
func OpenBucketMover(ctx context.Context, urlstr string) (*BlobMover, error) {
	b, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("opening bucket: %w", err)
	}

	return &BlobMover{Bucket: b}, nil
}

func (m *BlobMover) Move(ctx context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	contentType := m.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(dst))
	}

	// Cancelling the writer's context discards a partial object.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := m.Bucket.NewWriter(ctx, filepath.ToSlash(dst), &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("opening bucket writer: %w", err)
	}

	if _, err := io.Copy(w, f); err != nil {
		cancel()
		w.Close()
		return fmt.Errorf("uploading %s: %w", dst, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("committing %s: %w", dst, err)
	}

	return nil
}

// Close releases the bucket.
func (m *BlobMover) Close() error {
	return m.Bucket.Close()
}
