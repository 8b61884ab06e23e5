package client

import (
	"context"
	"net/http"

	"github.com/adamwoolhether/httpflow/client/transport"
)

// Request is the handle to one issued request. Its configuration
// methods return the handle for chaining and are safe to call from any
// goroutine, before or after the request completes.
type Request struct {
	d *taskDelegate
}

// ID returns the request's unique id.
func (r *Request) ID() string { return r.d.id }

// TaskID returns the transport task id, or 0 if no task was created.
func (r *Request) TaskID() uint64 { return taskID(r.d.currentTask()) }

// HTTPRequest returns the request as last sent, after redirects.
func (r *Request) HTTPRequest() *http.Request {
	if t := r.d.currentTask(); t != nil {
		if req := t.CurrentRequest(); req != nil {
			return req
		}
	}
	return r.d.httpRequest()
}

// HTTPResponse returns the response headers once they have arrived.
// The body is consumed by the transport and must not be read.
func (r *Request) HTTPResponse() *http.Response { return r.d.httpResponse() }

// Progress returns the received, sent or written byte counts,
// depending on the kind of request.
func (r *Request) Progress() Progress { return r.d.currentProgress() }

// Err returns the terminal error, or nil.
func (r *Request) Err() error { return r.d.error() }

// ResumeData returns the token produced by cancelling a download, or nil.
func (r *Request) ResumeData() []byte {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.d.resumeData
}

// Destination returns where a finished download was moved, or "".
func (r *Request) Destination() string {
	if dd, ok := r.d.currentVariant().(*downloadDelegate); ok {
		return dd.destination()
	}
	return ""
}

// Done is closed once the request has completed and every handler
// attached before completion has run.
func (r *Request) Done() <-chan struct{} { return r.d.done }

// Wait blocks until Done is closed or ctx ends, and returns the
// request's terminal error.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.d.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Authenticate answers the first authentication challenge with basic credentials.
func (r *Request) Authenticate(username, password string) *Request {
	return r.AuthenticateWith(&transport.Credential{Username: username, Password: password})
}

// AuthenticateWith answers the first authentication challenge with cred.
func (r *Request) AuthenticateWith(cred *transport.Credential) *Request {
	r.d.setCredential(cred)
	return r
}

// OnProgress calls fn on the transport's goroutine whenever progress advances.
func (r *Request) OnProgress(fn ProgressFunc) *Request {
	r.d.setHooks(func(h *taskHooks) { h.progress = fn })
	return r
}

// OnRedirect overrides how redirects are followed.
func (r *Request) OnRedirect(fn RedirectFunc) *Request {
	r.d.setHooks(func(h *taskHooks) { h.redirect = fn })
	return r
}

// OnChallenge overrides the answer to authentication challenges.
func (r *Request) OnChallenge(fn ChallengeFunc) *Request {
	r.d.setHooks(func(h *taskHooks) { h.challenge = fn })
	return r
}

// OnStream calls fn with each body chunk as it arrives. The body is
// still accumulated for response handlers.
func (r *Request) OnStream(fn StreamFunc) *Request {
	r.d.setHooks(func(h *taskHooks) { h.stream = fn })
	return r
}

// OnResponseHeaders decides, once headers arrive, whether a data or
// upload request continues, is cancelled, or becomes a download.
func (r *Request) OnResponseHeaders(fn ResponseHeadersFunc) *Request {
	r.d.setHooks(func(h *taskHooks) { h.headers = fn })
	return r
}

// Resume starts or continues the request.
func (r *Request) Resume() *Request {
	if t := r.d.currentTask(); t != nil {
		t.Resume()
	}
	return r
}

// Suspend pauses the transfer.
func (r *Request) Suspend() *Request {
	if t := r.d.currentTask(); t != nil {
		t.Suspend()
	}
	return r
}

// Cancel stops the request. A download first asks the transport for
// resume data, available from ResumeData once the request is done; the
// terminal error is ErrCancelled in both cases.
func (r *Request) Cancel() *Request {
	t := r.d.currentTask()
	if t == nil {
		return r
	}

	if _, ok := r.d.currentVariant().(*downloadDelegate); ok {
		t.CancelByProducingResumeData(r.d.setResumeData)
		return r
	}

	t.Cancel()
	return r
}
