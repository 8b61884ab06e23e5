package transport

import (
	"crypto/x509"
	"errors"
	"io"
	"net/http"
)

var (
	// ErrCancelled is the completion error of a task cancelled by its owner.
	ErrCancelled = errors.New("task cancelled")
	// ErrSessionInvalidated is returned for tasks created or started after Invalidate.
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrNoBodyStream is returned when a request body must be sent again
	// and no fresh stream is available.
	ErrNoBodyStream = errors.New("no body stream available")
	// ErrInvalidResumeData is returned when resume data cannot be decoded.
	ErrInvalidResumeData = errors.New("invalid resume data")
	// ErrChallengeCancelled completes a task whose authentication challenge was cancelled.
	ErrChallengeCancelled = errors.New("authentication challenge cancelled")
)

// Kind identifies the task variant.
type Kind int

const (
	KindData Kind = iota
	KindUpload
	KindDownload
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindUpload:
		return "upload"
	case KindDownload:
		return "download"
	default:
		return "unknown"
	}
}

// State is the caller-visible lifecycle state of a task.
type State int

const (
	StateSuspended State = iota
	StateRunning
	StateCanceling
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateCanceling:
		return "canceling"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Task is one transport-level HTTP exchange.
type Task interface {
	ID() uint64
	Kind() Kind
	OriginalRequest() *http.Request
	CurrentRequest() *http.Request
	// Response returns the response metadata once received. The body
	// is owned by the transport and must not be read.
	Response() *http.Response
	State() State
	Resume()
	Suspend()
	Cancel()
	// CancelByProducingResumeData cancels a download and passes resume
	// data to fn before the completion event, or nil when the transfer
	// cannot be resumed. For other kinds it behaves like Cancel and
	// calls fn with nil.
	CancelByProducingResumeData(fn func(data []byte))
}

// Session creates tasks and delivers their events to a Handler.
type Session interface {
	NewDataTask(req *http.Request) (Task, error)
	NewUploadTask(req *http.Request, src UploadSource) (Task, error)
	NewDownloadTask(req *http.Request) (Task, error)
	// ResumeRequest decodes the request recorded in resume data.
	ResumeRequest(data []byte) (*http.Request, error)
	// NewDownloadTaskWithResumeData continues the download recorded in
	// data. A non-nil req is sent in place of the recorded request.
	NewDownloadTaskWithResumeData(req *http.Request, data []byte) (Task, error)
	// SetHandler must be called before any task is resumed.
	SetHandler(h Handler)
	// Invalidate stops the session from starting new tasks. When cancel
	// is true running tasks are cancelled too.
	Invalidate(cancel bool)
}

// Handler receives task and session events.
type Handler interface {
	// WillRedirect returns the request to follow, or nil to stop and
	// deliver the redirect response itself.
	WillRedirect(task Task, resp *http.Response, req *http.Request) *http.Request
	Challenge(task Task, ch *Challenge) (Disposition, *Credential)
	NeedNewBodyStream(task Task) io.ReadCloser
	DidReceiveResponse(task Task, resp *http.Response) ResponseDisposition
	DidBecomeDownload(task Task, download Task)
	DidReceiveData(task Task, data []byte)
	DidSendBodyData(task Task, bytesSent, totalSent, totalExpected int64)
	DidWriteData(task Task, bytesWritten, totalWritten, totalExpected int64)
	DidResumeAtOffset(task Task, offset, totalExpected int64)
	// DidFinishDownloading hands over the temporary file. It is removed
	// once the call returns, so it must be moved during the call.
	DidFinishDownloading(task Task, location string)
	DidComplete(task Task, err error)
	DidBecomeInvalid(err error)
	DidFinishEvents()
}

// Credential answers an authentication challenge.
type Credential struct {
	Username string
	Password string
	// Trust is presented when accepting a server-trust challenge.
	Trust []*x509.Certificate
}

// AuthMethod names the scheme of a challenge.
type AuthMethod string

const (
	AuthMethodBasic       AuthMethod = "Basic"
	AuthMethodDigest      AuthMethod = "Digest"
	AuthMethodBearer      AuthMethod = "Bearer"
	AuthMethodServerTrust AuthMethod = "ServerTrust"
)

// ProtectionSpace identifies the realm a challenge belongs to.
type ProtectionSpace struct {
	Host   string
	Port   string
	Scheme string
	Realm  string
	Method AuthMethod
	Proxy  bool
}

// Challenge is an authentication request from the server or a proxy.
type Challenge struct {
	Space                ProtectionSpace
	PreviousFailureCount int
	ProposedCredential   *Credential
	FailureResponse      *http.Response
	PeerCertificates     []*x509.Certificate
}

// Disposition is the answer to a Challenge.
type Disposition int

const (
	PerformDefaultHandling Disposition = iota
	UseCredential
	CancelChallenge
	RejectProtectionSpace
)

// ResponseDisposition tells a data or upload task how to continue after
// its response headers arrive.
type ResponseDisposition int

const (
	Allow ResponseDisposition = iota
	Cancel
	BecomeDownload
)

type sourceKind int

const (
	sourceBytes sourceKind = iota
	sourceFile
	sourceStream
)

// UploadSource is the body of an upload task.
type UploadSource struct {
	kind   sourceKind
	data   []byte
	path   string
	stream io.Reader
}

// FromBytes uploads data. The body can be replayed.
func FromBytes(data []byte) UploadSource {
	return UploadSource{kind: sourceBytes, data: data}
}

// FromFile uploads the file at path. The file is reopened on replay.
func FromFile(path string) UploadSource {
	return UploadSource{kind: sourceFile, path: path}
}

// FromStream uploads r. The transport obtains the body through
// [Handler.NeedNewBodyStream], both initially and on replay.
func FromStream(r io.Reader) UploadSource {
	return UploadSource{kind: sourceStream, stream: r}
}

// IsStream reports whether the source is a one-shot stream.
func (s UploadSource) IsStream() bool { return s.kind == sourceStream }

// Stream returns the reader passed to FromStream.
func (s UploadSource) Stream() io.Reader { return s.stream }
