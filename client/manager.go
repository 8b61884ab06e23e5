package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/httpflow/client/download"
	"github.com/adamwoolhether/httpflow/client/transport"
)

const (
	tracerName       = "github.com/adamwoolhether/httpflow/client"
	defaultUserAgent = "httpflow/1"
)

// Manager issues requests on a transport session and routes the
// session's events to each request's handle.
type Manager struct {
	session         transport.Session
	registry        *registry
	logger          *slog.Logger
	tracer          trace.Tracer
	headers         http.Header
	userAgent       string
	requestIDHeader string
	autoStart       bool
	store           CredentialStore
}

// Build creates a Manager. Without options it uses a net/http session,
// follows redirects, and starts requests as soon as they are issued.
func Build(optFns ...Option) (*Manager, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying manager option: %w", err)
		}
	}

	m := &Manager{
		logger:          slog.Default(),
		headers:         opts.headers,
		userAgent:       defaultUserAgent,
		requestIDHeader: opts.requestIDHeader,
		autoStart:       !opts.noAutoStart,
		store:           opts.store,
	}

	if opts.logger != nil {
		m.logger = opts.logger
	}
	if opts.userAgent != nil {
		m.userAgent = *opts.userAgent
	}

	tp := opts.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	m.tracer = tp.Tracer(tracerName)

	m.session = opts.session
	if m.session == nil {
		sessionOpts := append([]transport.Option{transport.WithLogger(m.logger)}, opts.sessionOpts...)
		s, err := transport.NewHTTPSession(sessionOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		m.session = s
	}

	m.registry = newRegistry(opts.hooks, opts.store, m.logger)
	m.session.SetHandler(m.registry)

	return m, nil
}

// Request issues req as a data request; the response body is held in memory.
func (m *Manager) Request(req *http.Request) *Request {
	return m.issue(req, m.session.NewDataTask, func(td *taskDelegate) delegate {
		return newDataDelegate(td)
	})
}

// Upload issues req with src as its body. A stream source is single
// use: if the transport must send the body again, for example after an
// authentication challenge, it receives the partly consumed stream.
func (m *Manager) Upload(req *http.Request, src transport.UploadSource) *Request {
	create := func(req *http.Request) (transport.Task, error) {
		return m.session.NewUploadTask(req, src)
	}

	return m.issue(req, create, func(td *taskDelegate) delegate {
		return newUploadDelegate(td, src.Stream())
	})
}

// Download issues req and streams the body to a temporary file that is
// moved to dest(temp, resp) once complete. A nil dest keeps the file in
// the OS temp directory.
func (m *Manager) Download(req *http.Request, dest download.Destination, optFns ...download.Option) *Request {
	f, ferr := download.NewFinalizer(optFns...)

	return m.issueDownload(req, ferr, func(req *http.Request) (transport.Task, error) {
		return m.session.NewDownloadTask(req)
	}, dest, f)
}

// DownloadResume continues a download from the resume data of a
// cancelled one. The resumed request carries its own request id and
// trace context.
func (m *Manager) DownloadResume(resumeData []byte, dest download.Destination, optFns ...download.Option) *Request {
	f, ferr := download.NewFinalizer(optFns...)

	req, rerr := m.session.ResumeRequest(resumeData)
	if rerr != nil {
		req, _ = http.NewRequestWithContext(context.Background(), http.MethodGet, "", nil)
	} else {
		m.stripDecorations(req.Header)
	}

	return m.issueDownload(req, ferr, func(out *http.Request) (transport.Task, error) {
		if rerr != nil {
			return nil, rerr
		}
		return m.session.NewDownloadTaskWithResumeData(out, resumeData)
	}, dest, f)
}

// stripDecorations removes the per-request headers a previous issue added.
func (m *Manager) stripDecorations(h http.Header) {
	if m.requestIDHeader != "" {
		h.Del(m.requestIDHeader)
	}
	for _, field := range otel.GetTextMapPropagator().Fields() {
		h.Del(field)
	}
}

func (m *Manager) issueDownload(req *http.Request, ferr error, create func(*http.Request) (transport.Task, error), dest download.Destination, f *download.Finalizer) *Request {
	if ferr != nil {
		create = func(*http.Request) (transport.Task, error) {
			return nil, fmt.Errorf("configuring download: %w", ferr)
		}
	}

	return m.issue(req, create, func(td *taskDelegate) delegate {
		if f == nil {
			f, _ = download.NewFinalizer()
		}
		return newDownloadDelegate(td, dest, f)
	})
}

// issue registers the delegate before the task can deliver any event,
// then resumes the task unless auto start is off.
func (m *Manager) issue(req *http.Request, create func(*http.Request) (transport.Task, error), variant func(*taskDelegate) delegate) *Request {
	td := m.newTaskDelegate(req)
	d := variant(td)
	r := &Request{d: td}

	task, err := create(td.request)
	if err != nil {
		td.logger.Error("creating task", "error", err)
		td.fail(&TransportError{Err: err})
		return r
	}

	td.mu.Lock()
	td.task = task
	td.mu.Unlock()

	td.logger = td.logger.With("task", task.ID())
	m.registry.Register(task.ID(), d)

	if m.autoStart {
		task.Resume()
	}

	return r
}

// newTaskDelegate starts the request's span and decorates a copy of
// req with default headers, the request id and the trace context.
func (m *Manager) newTaskDelegate(req *http.Request) *taskDelegate {
	id := uuid.New().String()

	ctx, span := m.tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("httpflow.request_id", id),
		),
	)
	if req.URL != nil && req.URL.String() != "" {
		span.SetAttributes(attribute.String("url.full", req.URL.String()))
	}

	out := req.Clone(ctx)
	for k, v := range m.headers {
		if _, ok := out.Header[k]; !ok {
			out.Header[k] = append([]string(nil), v...)
		}
	}
	if m.userAgent != "" && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", m.userAgent)
	}
	if m.requestIDHeader != "" {
		out.Header.Set(m.requestIDHeader, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	logger := m.logger.With("request_id", id)

	return newTaskDelegate(ctx, id, out, logger, span, m.store)
}

// Invalidate shuts the session down. With cancel set, in-flight
// requests are cancelled; otherwise they run to completion.
func (m *Manager) Invalidate(cancel bool) {
	m.logger.Info("invalidating session", "cancel", cancel, "in_flight", m.registry.Len())
	m.session.Invalidate(cancel)
}

// Len reports the number of requests still registered with the session.
func (m *Manager) Len() int {
	return m.registry.Len()
}
