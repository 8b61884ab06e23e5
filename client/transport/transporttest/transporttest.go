// Package transporttest provides a scripted [transport.Session] for
// tests. Tasks never touch the network; tests drive each lifecycle event
// explicitly and the events are delivered synchronously to the handler.
package transporttest

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/adamwoolhether/httpflow/client/transport"
)

// ErrCreate is returned by task constructors after FailNext.
var ErrCreate = errors.New("transporttest: task creation failed")

// Session records created tasks and forwards scripted events to its handler.
type Session struct {
	nextID atomic.Uint64

	mu          sync.Mutex
	handler     transport.Handler
	tasks       []*Task
	failNext    bool
	invalidated bool
	cancelled   bool
}

// NewSession returns an empty Session.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) SetHandler(h transport.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Session) NewDataTask(req *http.Request) (transport.Task, error) {
	return s.newTask(transport.KindData, req, nil)
}

func (s *Session) NewUploadTask(req *http.Request, src transport.UploadSource) (transport.Task, error) {
	t, err := s.newTask(transport.KindUpload, req, nil)
	if err != nil {
		return nil, err
	}
	t.Source = src
	return t, nil
}

func (s *Session) NewDownloadTask(req *http.Request) (transport.Task, error) {
	return s.newTask(transport.KindDownload, req, nil)
}

// ResumeRequest treats data as the URL to resume.
func (s *Session) ResumeRequest(data []byte) (*http.Request, error) {
	if len(data) == 0 {
		return nil, transport.ErrInvalidResumeData
	}
	req, err := http.NewRequest(http.MethodGet, string(data), nil)
	if err != nil {
		return nil, transport.ErrInvalidResumeData
	}
	return req, nil
}

// NewDownloadTaskWithResumeData treats data as the URL to resume. A
// non-nil req is used as the task's request.
func (s *Session) NewDownloadTaskWithResumeData(req *http.Request, data []byte) (transport.Task, error) {
	if req == nil {
		var err error
		if req, err = s.ResumeRequest(data); err != nil {
			return nil, err
		}
	}
	return s.newTask(transport.KindDownload, req, data)
}

func (s *Session) Invalidate(cancel bool) {
	s.mu.Lock()
	s.invalidated = true
	s.cancelled = cancel
	h := s.handler
	s.mu.Unlock()

	if h != nil {
		h.DidBecomeInvalid(nil)
	}
}

// FailNext makes the next task constructor return ErrCreate.
func (s *Session) FailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

// Tasks returns every task created so far.
func (s *Session) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks...)
}

// Last returns the most recently created task, or nil.
func (s *Session) Last() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// Invalidated reports whether Invalidate was called and with which cancel flag.
func (s *Session) Invalidated() (invalidated, cancel bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated, s.cancelled
}

// FinishEvents delivers DidFinishEvents.
func (s *Session) FinishEvents() {
	s.h().DidFinishEvents()
}

func (s *Session) h() transport.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

func (s *Session) newTask(kind transport.Kind, req *http.Request, resume []byte) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext {
		s.failNext = false
		return nil, ErrCreate
	}
	if s.invalidated {
		return nil, transport.ErrSessionInvalidated
	}

	t := &Task{
		s:          s,
		id:         s.nextID.Add(1),
		kind:       kind,
		original:   req,
		ResumeFrom: resume,
	}
	s.tasks = append(s.tasks, t)

	return t, nil
}

// Task is a scripted transport.Task.
type Task struct {
	s        *Session
	id       uint64
	kind     transport.Kind
	original *http.Request

	// Source is the upload source for upload tasks.
	Source transport.UploadSource
	// ResumeFrom is the resume data a download was created from.
	ResumeFrom []byte

	mu           sync.Mutex
	state        transport.State
	resp         *http.Response
	cancelled    bool
	resumes      int
	onResumeData func([]byte)
}

func (t *Task) ID() uint64                     { return t.id }
func (t *Task) Kind() transport.Kind           { return t.kind }
func (t *Task) OriginalRequest() *http.Request { return t.original }
func (t *Task) CurrentRequest() *http.Request  { return t.original }

func (t *Task) Response() *http.Response {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resp
}

func (t *Task) State() transport.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == transport.StateSuspended {
		t.state = transport.StateRunning
		t.resumes++
	}
}

func (t *Task) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == transport.StateRunning {
		t.state = transport.StateSuspended
	}
}

// Cancel only records the request; call Complete to deliver the outcome.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != transport.StateCompleted {
		t.state = transport.StateCanceling
		t.cancelled = true
	}
}

// CancelByProducingResumeData records fn; call ProduceResumeData to invoke it.
func (t *Task) CancelByProducingResumeData(fn func(data []byte)) {
	t.mu.Lock()
	t.onResumeData = fn
	t.mu.Unlock()
	t.Cancel()
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// ResumeCount reports how many times the task went from suspended to running.
func (t *Task) ResumeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resumes
}

// WantsResumeData reports whether CancelByProducingResumeData was called.
func (t *Task) WantsResumeData() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onResumeData != nil
}

// ProduceResumeData passes data to the callback given to CancelByProducingResumeData.
func (t *Task) ProduceResumeData(data []byte) {
	t.mu.Lock()
	fn := t.onResumeData
	t.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// Redirect delivers WillRedirect and returns the handler's answer.
func (t *Task) Redirect(resp *http.Response, req *http.Request) *http.Request {
	return t.s.h().WillRedirect(t, resp, req)
}

// Challenge delivers an authentication challenge.
func (t *Task) Challenge(ch *transport.Challenge) (transport.Disposition, *transport.Credential) {
	return t.s.h().Challenge(t, ch)
}

// NeedNewBodyStream asks the handler for a fresh upload body.
func (t *Task) NeedNewBodyStream() io.ReadCloser {
	return t.s.h().NeedNewBodyStream(t)
}

// Respond records resp and, for data and upload tasks, delivers DidReceiveResponse.
func (t *Task) Respond(resp *http.Response) transport.ResponseDisposition {
	t.mu.Lock()
	t.resp = resp
	t.mu.Unlock()

	if t.kind == transport.KindDownload {
		return transport.Allow
	}
	return t.s.h().DidReceiveResponse(t, resp)
}

// Send delivers a body chunk.
func (t *Task) Send(chunk []byte) {
	t.s.h().DidReceiveData(t, chunk)
}

// SendBody delivers upload progress.
func (t *Task) SendBody(n, total, expected int64) {
	t.s.h().DidSendBodyData(t, n, total, expected)
}

// Write delivers download progress.
func (t *Task) Write(n, total, expected int64) {
	t.s.h().DidWriteData(t, n, total, expected)
}

// ResumeAt delivers DidResumeAtOffset.
func (t *Task) ResumeAt(offset, expected int64) {
	t.s.h().DidResumeAtOffset(t, offset, expected)
}

// FinishDownload delivers DidFinishDownloading for the file at path.
func (t *Task) FinishDownload(path string) {
	t.s.h().DidFinishDownloading(t, path)
}

// BecomeDownload converts the task into a new download task.
func (t *Task) BecomeDownload() *Task {
	dt, _ := t.s.newTask(transport.KindDownload, t.original, nil)

	t.mu.Lock()
	dt.resp = t.resp
	dt.state = transport.StateRunning
	t.state = transport.StateCompleted
	t.mu.Unlock()

	t.s.h().DidBecomeDownload(t, dt)

	return dt
}

// Complete delivers the completion event.
func (t *Task) Complete(err error) {
	t.mu.Lock()
	t.state = transport.StateCompleted
	t.mu.Unlock()

	t.s.h().DidComplete(t, err)
}
