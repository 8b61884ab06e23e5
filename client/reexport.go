package client

import (
	"io"

	"github.com/adamwoolhether/httpflow/client/download"
	"github.com/adamwoolhether/httpflow/client/transport"
)

// ————————————————————————————————————————————————————————————————————
// Type aliases – re-export user-facing types from [transport] and [download].
// ————————————————————————————————————————————————————————————————————

type (
	// Credential answers an authentication challenge.
	Credential = transport.Credential

	// UploadSource is the body of an upload.
	UploadSource = transport.UploadSource

	// Destination computes where a finished download is moved.
	Destination = download.Destination

	// DownloadOption configures how a finished download is verified and moved.
	DownloadOption = download.Option
)

// ————————————————————————————————————————————————————————————————————
// Sentinel errors
// ————————————————————————————————————————————————————————————————————

var (
	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = download.ErrChecksumMismatch

	// ErrDestinationExists indicates a download destination is already taken.
	ErrDestinationExists = download.ErrDestinationExists

	// ErrInvalidResumeData indicates resume data could not be decoded.
	ErrInvalidResumeData = transport.ErrInvalidResumeData
)

// ————————————————————————————————————————————————————————————————————
// Forwarding functions
// ————————————————————————————————————————————————————————————————————

// FromBytes uploads data.
func FromBytes(data []byte) UploadSource { return transport.FromBytes(data) }

// FromFile uploads the file at path.
func FromFile(path string) UploadSource { return transport.FromFile(path) }

// FromStream uploads r. See [Manager.Upload] for replay behavior.
func FromStream(r io.Reader) UploadSource { return transport.FromStream(r) }

// ToFile moves a finished download to path.
func ToFile(path string) Destination { return download.To(path) }

// ToDir moves a finished download into dir under its suggested name.
func ToDir(dir string) Destination { return download.InDir(dir) }
