package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpflow/client/transport"
)

// delegate reacts to the transport events of one task. The variants
// are dataDelegate, uploadDelegate and downloadDelegate; each embeds
// the shared *taskDelegate and overrides the events it cares about.
type delegate interface {
	core() *taskDelegate
	didReceiveResponse(resp *http.Response)
	didReceiveData(chunk []byte)
	didSendBodyData(n, total, expected int64)
	didWriteData(n, total, expected int64)
	didResumeAtOffset(offset, expected int64)
	didFinishDownloading(location string)
	needNewBodyStream() io.ReadCloser
	// body returns the response bytes handed to serializers.
	body() ([]byte, error)
}

// taskDelegate is the state shared by every variant: the completion
// queue, the terminal error, hooks and progress.
type taskDelegate struct {
	id     string
	ctx    context.Context
	logger *slog.Logger
	span   trace.Span
	store  CredentialStore

	queue     opQueue
	done      chan struct{}
	completed atomic.Bool

	mu         sync.Mutex
	task       transport.Task
	variant    delegate
	request    *http.Request
	response   *http.Response
	err        error
	progress   Progress
	hooks      taskHooks
	credential *transport.Credential
	resumeData []byte
}

func newTaskDelegate(ctx context.Context, id string, req *http.Request, logger *slog.Logger, span trace.Span, store CredentialStore) *taskDelegate {
	return &taskDelegate{
		id:       id,
		ctx:      ctx,
		logger:   logger,
		span:     span,
		store:    store,
		done:     make(chan struct{}),
		request:  req,
		progress: Progress{Total: -1},
	}
}

func (d *taskDelegate) core() *taskDelegate { return d }

func (d *taskDelegate) didReceiveResponse(resp *http.Response) { d.setResponse(resp) }
func (d *taskDelegate) didReceiveData([]byte)                  {}
func (d *taskDelegate) didSendBodyData(int64, int64, int64)    {}
func (d *taskDelegate) didWriteData(int64, int64, int64)       {}
func (d *taskDelegate) didResumeAtOffset(int64, int64)         {}
func (d *taskDelegate) didFinishDownloading(string)            {}
func (d *taskDelegate) needNewBodyStream() io.ReadCloser       { return nil }
func (d *taskDelegate) body() ([]byte, error)                  { return nil, nil }

// didComplete records the transport outcome and unblocks the queue.
// Only the first call has any effect.
func (d *taskDelegate) didComplete(task transport.Task, err error) {
	if !d.completed.CompareAndSwap(false, true) {
		d.logger.Error("duplicate completion ignored", "task", taskID(task))
		return
	}

	if task != nil {
		if resp := task.Response(); resp != nil {
			d.setResponse(resp)
		}
		if req := task.CurrentRequest(); req != nil {
			d.mu.Lock()
			d.request = req
			d.mu.Unlock()
		}
	}

	if err != nil {
		if errors.Is(err, transport.ErrCancelled) {
			err = ErrCancelled
		} else {
			err = &TransportError{Err: err}
		}
		d.setErr(err)
	}

	d.endSpan()

	d.queue.add(func() { close(d.done) })
	d.queue.start()
}

// fail completes a delegate whose task could not be created.
func (d *taskDelegate) fail(err error) {
	d.setErr(err)
	d.completed.Store(true)
	d.endSpan()

	d.queue.add(func() { close(d.done) })
	d.queue.start()
}

func (d *taskDelegate) endSpan() {
	d.mu.Lock()
	resp, err := d.response, d.err
	d.mu.Unlock()

	if resp != nil {
		d.span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	}
	if err != nil {
		d.span.RecordError(err)
		d.span.SetStatus(codes.Error, err.Error())
	}
	d.span.End()

	if err != nil {
		d.logger.Info("request failed", "error", err)
		return
	}
	d.logger.Debug("request complete")
}

// setErr records err unless an error is already recorded.
func (d *taskDelegate) setErr(err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return false
	}
	d.err = err

	return true
}

func (d *taskDelegate) error() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *taskDelegate) setResponse(resp *http.Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.response = resp
}

func (d *taskDelegate) httpResponse() *http.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.response
}

func (d *taskDelegate) httpRequest() *http.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.request
}

func (d *taskDelegate) currentTask() transport.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.task
}

// bind makes v the variant receiving this task's events.
func (d *taskDelegate) bind(v delegate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.variant = v
}

func (d *taskDelegate) currentVariant() delegate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.variant
}

func (d *taskDelegate) taskHooks() taskHooks {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hooks
}

func (d *taskDelegate) setHooks(fn func(h *taskHooks)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.hooks)
}

func (d *taskDelegate) setCredential(cred *transport.Credential) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.credential = cred
}

func (d *taskDelegate) setResumeData(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumeData = data
}

func (d *taskDelegate) currentProgress() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// advance moves progress forward and calls the progress hook.
func (d *taskDelegate) advance(chunk, completed, total int64) {
	d.mu.Lock()
	d.progress = d.progress.advance(completed, total)
	p := d.progress
	hook := d.hooks.progress
	d.mu.Unlock()

	if hook != nil {
		hook(chunk, p)
	}
}

// defaultChallenge answers a challenge no hook handled: deny repeated
// failures, accept presented server trust, then try the request's
// credential and the credential store.
func (d *taskDelegate) defaultChallenge(ch *transport.Challenge) (transport.Disposition, *transport.Credential) {
	var cred *transport.Credential
	if d != nil {
		d.mu.Lock()
		cred = d.credential
		d.mu.Unlock()
	}

	var store CredentialStore
	if d != nil {
		store = d.store
	}

	return defaultChallenge(ch, cred, store)
}

func defaultChallenge(ch *transport.Challenge, cred *transport.Credential, store CredentialStore) (transport.Disposition, *transport.Credential) {
	if ch.PreviousFailureCount > 0 {
		return transport.RejectProtectionSpace, nil
	}

	if ch.Space.Method == transport.AuthMethodServerTrust {
		return transport.UseCredential, &transport.Credential{Trust: ch.PeerCertificates}
	}

	if cred != nil {
		return transport.UseCredential, cred
	}

	if store != nil {
		if stored, ok := store.Credential(ch.Space); ok {
			return transport.UseCredential, stored
		}
	}

	return transport.PerformDefaultHandling, nil
}

func taskID(t transport.Task) uint64 {
	if t == nil {
		return 0
	}
	return t.ID()
}
