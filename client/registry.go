package client

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/adamwoolhether/httpflow/client/download"
	"github.com/adamwoolhether/httpflow/client/transport"
)

const shardCount = 32

// registry maps transport task ids to their delegates and routes every
// session event to the owning delegate, or to the session hooks when
// the task is unknown.
type registry struct {
	shards [shardCount]shard
	hooks  SessionHooks
	store  CredentialStore
	logger *slog.Logger
}

type shard struct {
	mu sync.RWMutex
	m  map[uint64]delegate
}

func newRegistry(hooks SessionHooks, store CredentialStore, logger *slog.Logger) *registry {
	r := &registry{
		hooks:  hooks,
		store:  store,
		logger: logger,
	}
	for i := range r.shards {
		r.shards[i].m = make(map[uint64]delegate)
	}
	return r
}

func (r *registry) shard(id uint64) *shard {
	return &r.shards[id%shardCount]
}

// Register adds d for id. A second registration for a live id is a
// programming error and panics.
func (r *registry) Register(id uint64, d delegate) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[id]; ok {
		panic(&ProgrammingError{Msg: fmt.Sprintf("delegate already registered for task %d", id)})
	}
	s.m[id] = d
}

func (r *registry) Lookup(id uint64) (delegate, bool) {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.m[id]
	return d, ok
}

func (r *registry) Unregister(id uint64) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}

// Len reports the number of registered delegates.
func (r *registry) Len() int {
	var n int
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// swap moves a registration from oldID to newID with both shards locked,
// so a lookup sees exactly one of the two entries.
func (r *registry) swap(oldID, newID uint64, d delegate) {
	a, b := r.shard(oldID), r.shard(newID)
	switch {
	case a == b:
		a.mu.Lock()
		defer a.mu.Unlock()
	case oldID%shardCount < newID%shardCount:
		a.mu.Lock()
		defer a.mu.Unlock()
		b.mu.Lock()
		defer b.mu.Unlock()
	default:
		b.mu.Lock()
		defer b.mu.Unlock()
		a.mu.Lock()
		defer a.mu.Unlock()
	}

	if _, ok := b.m[newID]; ok {
		panic(&ProgrammingError{Msg: fmt.Sprintf("delegate already registered for task %d", newID)})
	}
	b.m[newID] = d
	delete(a.m, oldID)
}

func (r *registry) lookup(task transport.Task) (delegate, bool) {
	return r.Lookup(task.ID())
}

func (r *registry) WillRedirect(task transport.Task, resp *http.Response, req *http.Request) *http.Request {
	if d, ok := r.lookup(task); ok {
		if hook := d.core().taskHooks().redirect; hook != nil {
			return hook(resp, req)
		}
	}
	if r.hooks.Redirect != nil {
		return r.hooks.Redirect(task, resp, req)
	}
	return req
}

func (r *registry) Challenge(task transport.Task, ch *transport.Challenge) (transport.Disposition, *transport.Credential) {
	d, ok := r.lookup(task)
	if ok {
		if hook := d.core().taskHooks().challenge; hook != nil {
			return hook(ch)
		}
	}
	if r.hooks.Challenge != nil {
		return r.hooks.Challenge(task, ch)
	}
	if ok {
		return d.core().defaultChallenge(ch)
	}
	return defaultChallenge(ch, nil, r.store)
}

func (r *registry) NeedNewBodyStream(task transport.Task) io.ReadCloser {
	if d, ok := r.lookup(task); ok {
		if rc := d.needNewBodyStream(); rc != nil {
			return rc
		}
	}
	if r.hooks.NeedNewBodyStream != nil {
		return r.hooks.NeedNewBodyStream(task)
	}
	return nil
}

func (r *registry) DidReceiveResponse(task transport.Task, resp *http.Response) transport.ResponseDisposition {
	d, ok := r.lookup(task)
	if ok {
		d.didReceiveResponse(resp)
		if hook := d.core().taskHooks().headers; hook != nil {
			return hook(resp)
		}
	}
	if r.hooks.ResponseHeaders != nil {
		return r.hooks.ResponseHeaders(task, resp)
	}
	return transport.Allow
}

// DidBecomeDownload rebinds the request to a download delegate that
// shares its state, registered under the new task's id.
func (r *registry) DidBecomeDownload(task, dl transport.Task) {
	d, ok := r.lookup(task)
	if !ok {
		r.logger.Warn("conversion for unknown task", "task", task.ID())
		return
	}

	td := d.core()
	f, _ := download.NewFinalizer() // no options, never fails
	nd := newDownloadDelegate(td, nil, f)

	td.mu.Lock()
	td.task = dl
	td.mu.Unlock()

	r.swap(task.ID(), dl.ID(), nd)
	td.logger.Debug("request became download", "task", dl.ID())
}

func (r *registry) DidReceiveData(task transport.Task, data []byte) {
	if d, ok := r.lookup(task); ok {
		d.didReceiveData(data)
	}
}

func (r *registry) DidSendBodyData(task transport.Task, bytesSent, totalSent, totalExpected int64) {
	if d, ok := r.lookup(task); ok {
		d.didSendBodyData(bytesSent, totalSent, totalExpected)
	}
}

func (r *registry) DidWriteData(task transport.Task, bytesWritten, totalWritten, totalExpected int64) {
	if d, ok := r.lookup(task); ok {
		d.didWriteData(bytesWritten, totalWritten, totalExpected)
	}
}

func (r *registry) DidResumeAtOffset(task transport.Task, offset, totalExpected int64) {
	if d, ok := r.lookup(task); ok {
		d.didResumeAtOffset(offset, totalExpected)
	}
}

func (r *registry) DidFinishDownloading(task transport.Task, location string) {
	if d, ok := r.lookup(task); ok {
		d.didFinishDownloading(location)
	}
}

// DidComplete forwards the completion, then unregisters the task.
func (r *registry) DidComplete(task transport.Task, err error) {
	d, ok := r.lookup(task)
	if !ok {
		r.logger.Debug("completion for unknown task", "task", task.ID(), "error", err)
		return
	}

	d.core().didComplete(task, err)
	r.Unregister(task.ID())
}

func (r *registry) DidBecomeInvalid(err error) {
	r.logger.Info("session invalidated", "error", err)
	if r.hooks.Invalidated != nil {
		r.hooks.Invalidated(err)
	}
}

func (r *registry) DidFinishEvents() {
	if r.hooks.FinishedEvents != nil {
		r.hooks.FinishedEvents()
	}
}
