package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
)

// maxRedirects matches the net/http default.
const maxRedirects = 10

type taskKey struct{}

// HTTPSession is a [Session] that performs tasks with an [http.Client].
type HTTPSession struct {
	client  *http.Client
	logger  *slog.Logger
	tempDir string
	group   *group
	nextID  atomic.Uint64
	invalid atomic.Bool

	mu      sync.RWMutex
	handler Handler
	tasks   map[uint64]*httpTask
}

// NewHTTPSession builds a session. Without options it uses
// [http.DefaultTransport] and the default temp directory.
func NewHTTPSession(optFns ...Option) (*HTTPSession, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying session option: %w", err)
		}
	}

	s := &HTTPSession{
		logger:  slog.Default(),
		tempDir: os.TempDir(),
		tasks:   make(map[uint64]*httpTask),
		handler: nopHandler{},
	}

	if opts.logger != nil {
		s.logger = opts.logger
	}
	if opts.tempDir != "" {
		s.tempDir = opts.tempDir
	}

	client := &http.Client{}
	if opts.client != nil {
		*client = *opts.client
	}
	if opts.timeout != nil {
		client.Timeout = *opts.timeout
	}

	rt, err := opts.roundTripper(func() *slog.Logger { return s.logger })
	if err != nil {
		return nil, err
	}
	client.Transport = rt

	if opts.noFollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		client.CheckRedirect = s.checkRedirect
	}
	s.client = client

	s.group = newGroup(opts.maxConcurrent, func() {
		s.currentHandler().DidFinishEvents()
	})

	return s, nil
}

// SetHandler installs the event handler.
func (s *HTTPSession) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == nil {
		h = nopHandler{}
	}
	s.handler = h
}

// NewDataTask creates a suspended task that accumulates the response in memory.
func (s *HTTPSession) NewDataTask(req *http.Request) (Task, error) {
	return s.newTask(KindData, req, UploadSource{}, nil)
}

// NewUploadTask creates a suspended task that sends src as the request body.
func (s *HTTPSession) NewUploadTask(req *http.Request, src UploadSource) (Task, error) {
	if src.kind == sourceFile {
		if _, err := os.Stat(src.path); err != nil {
			return nil, fmt.Errorf("upload source: %w", err)
		}
	}
	return s.newTask(KindUpload, req, src, nil)
}

// NewDownloadTask creates a suspended task that streams the response body to a temporary file.
func (s *HTTPSession) NewDownloadTask(req *http.Request) (Task, error) {
	return s.newTask(KindDownload, req, UploadSource{}, nil)
}

// ResumeRequest returns the request recorded in resume data, with the
// headers it was first sent with.
func (s *HTTPSession) ResumeRequest(data []byte) (*http.Request, error) {
	rd, err := decodeResumeData(data)
	if err != nil {
		return nil, err
	}
	return rd.request()
}

// NewDownloadTaskWithResumeData continues a download cancelled with
// CancelByProducingResumeData. If the partial file is gone the download
// starts over.
func (s *HTTPSession) NewDownloadTaskWithResumeData(req *http.Request, data []byte) (Task, error) {
	rd, err := decodeResumeData(data)
	if err != nil {
		return nil, err
	}

	if req == nil {
		if req, err = rd.request(); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(rd.TempPath); err != nil {
		s.logger.Info("resume data partial file missing, restarting download", "path", rd.TempPath)
		return s.newTask(KindDownload, req, UploadSource{}, nil)
	}

	return s.newTask(KindDownload, req, UploadSource{}, &rd)
}

// Invalidate stops new tasks from starting. With cancel set, running
// tasks are cancelled as well. DidBecomeInvalid is delivered once every
// task has completed.
func (s *HTTPSession) Invalidate(cancel bool) {
	if !s.invalid.CompareAndSwap(false, true) {
		return
	}
	s.group.close()

	if cancel {
		s.mu.RLock()
		tasks := make([]*httpTask, 0, len(s.tasks))
		for _, t := range s.tasks {
			tasks = append(tasks, t)
		}
		s.mu.RUnlock()

		for _, t := range tasks {
			t.Cancel()
		}
	}

	go func() {
		s.group.wait()
		s.currentHandler().DidBecomeInvalid(nil)
	}()
}

func (s *HTTPSession) newTask(kind Kind, req *http.Request, src UploadSource, rd *resumeData) (*httpTask, error) {
	if s.invalid.Load() {
		return nil, ErrSessionInvalidated
	}
	if req == nil {
		return nil, errors.New("request must not be nil")
	}

	ctx, cancel := context.WithCancel(req.Context())
	t := &httpTask{
		id:       s.nextID.Add(1),
		kind:     kind,
		s:        s,
		ctx:      ctx,
		cancel:   cancel,
		original: req,
		current:  req,
		src:      src,
		resume:   rd,
	}

	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()

	return t, nil
}

func (s *HTTPSession) forget(t *httpTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, t.id)
}

func (s *HTTPSession) currentHandler() Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// checkRedirect routes redirects through the task's handler. A returned
// request that differs from the proposed one has its URL and headers
// copied onto the outgoing request.
func (s *HTTPSession) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}

	t, ok := req.Context().Value(taskKey{}).(*httpTask)
	if !ok {
		return nil
	}

	var next *http.Request
	t.dispatch(func(h Handler) {
		next = h.WillRedirect(t, req.Response, req)
	})

	if next == nil {
		return http.ErrUseLastResponse
	}

	if next != req {
		req.Header = next.Header.Clone()
		if next.URL != nil && next.URL.String() != req.URL.String() {
			req.URL = next.URL
			req.Host = ""
		}
	}
	t.setCurrent(req)

	return nil
}

// nopHandler accepts every event and takes the default action.
type nopHandler struct{}

func (nopHandler) WillRedirect(_ Task, _ *http.Response, req *http.Request) *http.Request {
	return req
}
func (nopHandler) Challenge(Task, *Challenge) (Disposition, *Credential) {
	return PerformDefaultHandling, nil
}
func (nopHandler) NeedNewBodyStream(Task) io.ReadCloser                        { return nil }
func (nopHandler) DidReceiveResponse(Task, *http.Response) ResponseDisposition { return Allow }
func (nopHandler) DidBecomeDownload(Task, Task)                                {}
func (nopHandler) DidReceiveData(Task, []byte)                                 {}
func (nopHandler) DidSendBodyData(Task, int64, int64, int64)                   {}
func (nopHandler) DidWriteData(Task, int64, int64, int64)                      {}
func (nopHandler) DidResumeAtOffset(Task, int64, int64)                        {}
func (nopHandler) DidFinishDownloading(Task, string)                           {}
func (nopHandler) DidComplete(Task, error)                                     {}
func (nopHandler) DidBecomeInvalid(error)                                      {}
func (nopHandler) DidFinishEvents()                                            {}
