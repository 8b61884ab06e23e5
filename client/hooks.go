package client

import (
	"io"
	"net/http"

	"github.com/adamwoolhether/httpflow/client/transport"
)

type (
	// RedirectFunc returns the request to follow, a substitute, or nil to
	// stop and deliver the redirect response.
	RedirectFunc func(resp *http.Response, next *http.Request) *http.Request

	// ChallengeFunc answers an authentication challenge.
	ChallengeFunc func(ch *transport.Challenge) (transport.Disposition, *transport.Credential)

	// ProgressFunc receives the size of the latest chunk and the updated progress.
	ProgressFunc func(chunk int64, p Progress)

	// StreamFunc receives body chunks of a data request as they arrive.
	StreamFunc func(chunk []byte)

	// ResponseHeadersFunc decides how a data or upload request continues
	// once its response headers arrive.
	ResponseHeadersFunc func(resp *http.Response) transport.ResponseDisposition
)

// taskHooks are the per-request overrides. A nil field means the
// session hook or the default behavior applies.
type taskHooks struct {
	redirect  RedirectFunc
	challenge ChallengeFunc
	progress  ProgressFunc
	stream    StreamFunc
	headers   ResponseHeadersFunc
}

// SessionHooks handle events for every request of a Manager that has no
// per-request hook, and events for tasks the Manager does not know.
type SessionHooks struct {
	Redirect          func(task transport.Task, resp *http.Response, next *http.Request) *http.Request
	Challenge         func(task transport.Task, ch *transport.Challenge) (transport.Disposition, *transport.Credential)
	NeedNewBodyStream func(task transport.Task) io.ReadCloser
	ResponseHeaders   func(task transport.Task, resp *http.Response) transport.ResponseDisposition
	// Invalidated is called once the session has shut down.
	Invalidated func(err error)
	// FinishedEvents is called whenever the session has no running tasks.
	FinishedEvents func()
}
