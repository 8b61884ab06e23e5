package download

import (
	"context"
	"fmt"
	"log/slog"
)

// Finalizer verifies and moves completed downloads.
type Finalizer struct {
	mover    Mover
	checksum *checksumVerifier
	progress bool
}

// NewFinalizer applies optFns. Without options files are renamed into
// place and an existing destination is an error.
func NewFinalizer(optFns ...Option) (*Finalizer, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	f := &Finalizer{
		mover:    opts.mover,
		checksum: opts.checksum,
		progress: opts.progress,
	}
	if f.mover == nil {
		f.mover = FileMover{CreateDirs: opts.createDirs, RemoveExisting: opts.removeExisting}
	}

	return f, nil
}

// Finalize verifies the checksum of src, if configured, and moves it to dst.
func (f *Finalizer) Finalize(ctx context.Context, src, dst string) error {
	if err := f.checksum.Verify(src); err != nil {
		return err
	}

	if err := f.mover.Move(ctx, src, dst); err != nil {
		return fmt.Errorf("moving download: %w", err)
	}

	return nil
}

// Progress returns a progress logger when WithProgress was given, else nil.
func (f *Finalizer) Progress(logger *slog.Logger) *ProgressLogger {
	if !f.progress {
		return nil
	}
	return NewProgressLogger(logger)
}

// Local reports whether finalized files land on the local filesystem.
func (f *Finalizer) Local() bool {
	_, ok := f.mover.(FileMover)
	return ok
}
