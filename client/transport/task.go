package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
)

const (
	chunkSize       = 32 << 10 // 32KB
	maxAuthAttempts = 8
	maxDiscard      = 4 << 10 // 4KB
)

// httpTask is a Task executed by an HTTPSession.
type httpTask struct {
	id       uint64
	kind     Kind
	s        *HTTPSession
	ctx      context.Context
	cancel   context.CancelFunc
	original *http.Request
	src      UploadSource
	resume   *resumeData

	startOnce sync.Once
	gate      gate
	eventMu   sync.Mutex // serializes handler calls for this task
	attempts  int

	mu              sync.Mutex
	state           State
	current         *http.Request
	resp            *http.Response
	onResumeData    func([]byte)
	resumeDelivered bool
	successor       *httpTask
}

func (t *httpTask) ID() uint64                     { return t.id }
func (t *httpTask) Kind() Kind                     { return t.kind }
func (t *httpTask) OriginalRequest() *http.Request { return t.original }

func (t *httpTask) CurrentRequest() *http.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *httpTask) Response() *http.Response {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resp
}

func (t *httpTask) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Resume starts the task, or continues a suspended transfer.
func (t *httpTask) Resume() {
	t.mu.Lock()
	if t.state != StateSuspended {
		t.mu.Unlock()
		return
	}
	t.state = StateRunning
	t.mu.Unlock()

	t.gate.open()
	t.start()
}

// Suspend pauses the body transfer at the next chunk boundary.
func (t *httpTask) Suspend() {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}
	t.state = StateSuspended
	t.mu.Unlock()

	t.gate.close()
}

// Cancel aborts the task. The completion event still fires, with ErrCancelled.
func (t *httpTask) Cancel() {
	t.mu.Lock()
	if t.state == StateCompleted || t.state == StateCanceling {
		t.mu.Unlock()
		return
	}
	t.state = StateCanceling
	t.mu.Unlock()

	t.cancel()
	t.start()
}

func (t *httpTask) CancelByProducingResumeData(fn func(data []byte)) {
	t.mu.Lock()
	if t.kind != KindDownload || t.state == StateCompleted || t.onResumeData != nil {
		t.mu.Unlock()
		fn(nil)
		t.Cancel()
		return
	}
	t.onResumeData = fn
	t.mu.Unlock()

	t.Cancel()
}

func (t *httpTask) start() {
	t.startOnce.Do(func() {
		t.s.group.start(t.ctx, t.perform, t.finish)
	})
}

func (t *httpTask) finish(err error) {
	t.mu.Lock()
	succ := t.successor
	canceling := t.state == StateCanceling
	t.state = StateCompleted
	t.mu.Unlock()
	t.s.forget(t)

	if succ != nil {
		succ.finish(err)
		return
	}

	// A data task cancelled after its last chunk still ends cancelled.
	if err == nil && canceling && t.kind != KindDownload {
		err = context.Canceled
	}

	if err != nil && errors.Is(t.ctx.Err(), context.Canceled) {
		err = ErrCancelled
		if t.resume != nil {
			if data, encErr := t.resume.encode(); encErr == nil {
				t.deliverResumeData(data)
			}
		}
	}
	t.deliverResumeData(nil)

	t.dispatch(func(h Handler) { h.DidComplete(t, err) })
	t.cancel()
}

// dispatch calls fn with the session handler, one event at a time per task.
func (t *httpTask) dispatch(fn func(Handler)) {
	h := t.s.currentHandler()

	t.eventMu.Lock()
	defer t.eventMu.Unlock()

	fn(h)
}

func (t *httpTask) setCurrent(req *http.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = req
}

func (t *httpTask) setResponse(resp *http.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resp = resp
}

// perform sends the request, answering authentication challenges
// until a final response arrives, then receives the body.
func (t *httpTask) perform(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var cred *Credential
	var proxy bool
	for failures := 0; ; failures++ {
		req, err := t.prepare(ctx, cred, proxy)
		if err != nil {
			return err
		}

		resp, err := t.s.client.Do(req)
		if err != nil {
			return fmt.Errorf("http do: %w", err)
		}

		ch, ok := challengeFrom(resp, failures)
		if !ok || failures >= maxAuthAttempts {
			return t.receive(ctx, resp)
		}
		ch.ProposedCredential = cred

		disp := PerformDefaultHandling
		var next *Credential
		t.dispatch(func(h Handler) { disp, next = h.Challenge(t, ch) })

		switch {
		case disp == UseCredential && next != nil:
			t.discard(resp)
			cred, proxy = next, ch.Space.Proxy
		case disp == CancelChallenge:
			t.discard(resp)
			return ErrChallengeCancelled
		default:
			return t.receive(ctx, resp)
		}
	}
}

func (t *httpTask) prepare(ctx context.Context, cred *Credential, proxy bool) (*http.Request, error) {
	req := t.original.Clone(context.WithValue(ctx, taskKey{}, t))

	body, length, err := t.body()
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Body = body
		req.ContentLength = length
	}

	if cred != nil {
		authorize(req, cred, proxy)
	}
	if t.resume != nil {
		t.resume.applyRange(req.Header)
	}

	t.attempts++
	t.setCurrent(req)

	return req, nil
}

// body returns a fresh request body for the next attempt, or nil to
// keep the body of the original request.
func (t *httpTask) body() (io.ReadCloser, int64, error) {
	var rc io.ReadCloser
	var length int64

	switch {
	case t.kind != KindUpload:
		orig := t.original
		if t.attempts == 0 || orig.Body == nil || orig.Body == http.NoBody {
			return nil, 0, nil
		}
		if orig.GetBody == nil {
			return nil, 0, ErrNoBodyStream
		}
		b, err := orig.GetBody()
		if err != nil {
			return nil, 0, fmt.Errorf("replaying body: %w", err)
		}
		return b, orig.ContentLength, nil

	case t.src.kind == sourceBytes:
		rc = io.NopCloser(bytes.NewReader(t.src.data))
		length = int64(len(t.src.data))

	case t.src.kind == sourceFile:
		f, err := os.Open(t.src.path)
		if err != nil {
			return nil, 0, fmt.Errorf("opening upload file: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("stat upload file: %w", err)
		}
		rc = f
		length = info.Size()

	default:
		var stream io.ReadCloser
		t.dispatch(func(h Handler) { stream = h.NeedNewBodyStream(t) })
		if stream == nil {
			return nil, 0, ErrNoBodyStream
		}
		rc = stream
		length = -1
		if t.original.ContentLength > 0 {
			length = t.original.ContentLength
		}
	}

	return &progressBody{
		rc: rc,
		report: func(n, total int64) {
			t.dispatch(func(h Handler) { h.DidSendBodyData(t, n, total, length) })
		},
	}, length, nil
}

func (t *httpTask) discard(resp *http.Response) {
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscard)); err != nil {
		t.s.logger.Error("failed to discard unused body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.s.logger.Error("failed to close response body", "error", err)
	}
}

func (t *httpTask) receive(ctx context.Context, resp *http.Response) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.s.logger.Error("failed to close response body", "error", err)
		}
	}()
	t.setResponse(resp)

	if t.kind == KindDownload {
		return t.download(ctx, resp)
	}

	disp := Allow
	t.dispatch(func(h Handler) { disp = h.DidReceiveResponse(t, resp) })

	switch disp {
	case Cancel:
		return ErrCancelled
	case BecomeDownload:
		dt := t.s.becomeDownload(t, resp)
		t.dispatch(func(h Handler) { h.DidBecomeDownload(t, dt) })
		return dt.download(ctx, resp)
	}

	return t.readBody(ctx, resp.Body)
}

func (t *httpTask) readBody(ctx context.Context, body io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		if err := t.gate.wait(ctx); err != nil {
			return err
		}

		n, err := body.Read(buf)
		if n > 0 {
			chunk := bytes.Clone(buf[:n])
			t.dispatch(func(h Handler) { h.DidReceiveData(t, chunk) })
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
	}
}

// download streams the body into a temp file, or appends to the partial
// file when the server honoured the resume range.
func (t *httpTask) download(ctx context.Context, resp *http.Response) error {
	file, offset, err := t.openTemp(resp)
	if err != nil {
		return err
	}

	path := file.Name()
	keep := false
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			t.s.logger.Error("defer closing temp file", "error", err)
		}
		if !keep {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				t.s.logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	expected := int64(-1)
	if resp.ContentLength >= 0 {
		expected = offset + resp.ContentLength
	}
	if offset > 0 {
		if total := contentRangeTotal(resp.Header.Get("Content-Range")); total >= 0 {
			expected = total
		}
		t.dispatch(func(h Handler) { h.DidResumeAtOffset(t, offset, expected) })
	}

	written, err := t.copyBody(ctx, file, resp.Body, offset, expected)
	if err != nil {
		if ctx.Err() != nil && t.wantsResumeData() {
			keep = t.produceResumeData(resp, path, written)
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		if t.wantsResumeData() {
			keep = t.produceResumeData(resp, path, written)
		}
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	t.dispatch(func(h Handler) { h.DidFinishDownloading(t, path) })

	return nil
}

func (t *httpTask) openTemp(resp *http.Response) (*os.File, int64, error) {
	if t.resume != nil && resp.StatusCode == http.StatusPartialContent {
		cr := resp.Header.Get("Content-Range")
		if start, ok := contentRangeStart(cr); !ok || start != t.resume.Offset {
			return nil, 0, fmt.Errorf("resume range mismatch: %q", cr)
		}

		f, err := os.OpenFile(t.resume.TempPath, os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, 0, fmt.Errorf("opening partial download: %w", err)
		}
		return f, t.resume.Offset, nil
	}

	if t.resume != nil {
		// The server sent the whole entity; the partial file is stale.
		if err := os.Remove(t.resume.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.s.logger.Error("failed to remove stale partial download", "error", err)
		}
	}

	f, err := os.CreateTemp(t.s.tempDir, ".httpflow-dl-*")
	if err != nil {
		return nil, 0, fmt.Errorf("creating temp file: %w", err)
	}

	return f, 0, nil
}

func (t *httpTask) copyBody(ctx context.Context, w io.Writer, body io.Reader, written, expected int64) (int64, error) {
	buf := make([]byte, chunkSize)
	for {
		if err := t.gate.wait(ctx); err != nil {
			return written, err
		}

		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("writing temp file: %w", werr)
			}
			written += int64(n)
			total := written
			t.dispatch(func(h Handler) { h.DidWriteData(t, int64(n), total, expected) })
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("reading body: %w", err)
		}
	}
}

func (t *httpTask) wantsResumeData() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onResumeData != nil && !t.resumeDelivered
}

func (t *httpTask) produceResumeData(resp *http.Response, path string, written int64) bool {
	header := t.original.Header.Clone()
	header.Del("Range")
	header.Del("If-Range")

	rd := resumeData{
		URL:          t.original.URL.String(),
		Method:       t.original.Method,
		Header:       header,
		TempPath:     path,
		Offset:       written,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	data, err := rd.encode()
	if err != nil {
		t.s.logger.Error("producing resume data", "error", err)
		return false
	}

	t.deliverResumeData(data)

	return true
}

// deliverResumeData calls the resume callback at most once.
func (t *httpTask) deliverResumeData(data []byte) {
	t.mu.Lock()
	fn := t.onResumeData
	if fn == nil || t.resumeDelivered {
		t.mu.Unlock()
		return
	}
	t.resumeDelivered = true
	t.mu.Unlock()

	fn(data)
}

// becomeDownload hands the response of t to a new download task that
// continues on t's goroutine.
func (s *HTTPSession) becomeDownload(t *httpTask, resp *http.Response) *httpTask {
	dt := &httpTask{
		id:       s.nextID.Add(1),
		kind:     KindDownload,
		s:        s,
		ctx:      t.ctx,
		cancel:   t.cancel,
		original: t.original,
		current:  t.CurrentRequest(),
		resp:     resp,
		state:    StateRunning,
	}
	dt.startOnce.Do(func() {})

	s.mu.Lock()
	s.tasks[dt.id] = dt
	s.mu.Unlock()

	t.mu.Lock()
	t.successor = dt
	t.mu.Unlock()

	return dt
}

// progressBody reports bytes as the transport reads the request body.
type progressBody struct {
	rc     io.ReadCloser
	sent   int64
	report func(n, total int64)
}

func (b *progressBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.sent += int64(n)
		b.report(int64(n), b.sent)
	}
	return n, err
}

func (b *progressBody) Close() error {
	return b.rc.Close()
}
