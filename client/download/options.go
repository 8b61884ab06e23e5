package download

import (
	"errors"
	"hash"
)

// Option defines optional settings for finalizing downloads.
// WithChecksum enables checksum validation of the finished file before
// it is moved. newHash constructs the hash (e.g. sha256.New), and
// expected is the hex-encoded expected checksum string.
//
// WithProgress enables periodic download progress logging.
//
// WithMover replaces the default FileMover. WithCreateDirs and
// WithRemoveExisting configure the default FileMover and are ignored
// when a custom Mover is set.
type Option func(*options) error

type options struct {
	checksum       *checksumVerifier
	progress       bool
	mover          Mover
	createDirs     bool
	removeExisting bool
}

func WithChecksum(newHash func() hash.Hash, expected string) Option {
	return func(opts *options) error {
		if newHash == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &checksumVerifier{newHash: newHash, expected: expected}
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

func WithMover(m Mover) Option {
	return func(opts *options) error {
		if m == nil {
			return errors.New("mover must not be nil")
		}
		opts.mover = m
		return nil
	}
}

func WithCreateDirs() Option {
	return func(opts *options) error {
		opts.createDirs = true
		return nil
	}
}

func WithRemoveExisting() Option {
	return func(opts *options) error {
		opts.removeExisting = true
		return nil
	}
}
