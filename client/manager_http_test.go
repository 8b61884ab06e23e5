package client_test

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/httpflow/client"
	"github.com/adamwoolhether/httpflow/client/download"
	"github.com/adamwoolhether/httpflow/client/serialize"
)

const fileSize = 1 << 20 // 1MB

type server struct {
	*httptest.Server
	file []byte

	mu  sync.Mutex
	ids []string // X-Request-Id of each /file.bin request
}

func (s *server) requestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func newServer(t *testing.T) *server {
	t.Helper()

	file := make([]byte, fileSize)
	if _, err := rand.Read(file); err != nil {
		t.Fatal(err)
	}

	s := &server{file: file}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"agent":%q,"request_id":%q}`, r.UserAgent(), r.Header.Get("X-Request-Id"))
	})
	mux.HandleFunc("GET /html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>hi</p>")
	})
	mux.HandleFunc("PUT /echo", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
		_, _ = w.Write(body)
	})
	mux.HandleFunc("GET /private", func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "alice" || pass != "secret" {
			w.Header().Set("WWW-Authenticate", `Basic realm="private"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "welcome")
	})
	mux.HandleFunc("GET /old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/json", http.StatusFound)
	})
	mux.HandleFunc("GET /file.bin", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.ids = append(s.ids, r.Header.Get("X-Request-Id"))
		s.mu.Unlock()

		w.Header().Set("ETag", `"v1"`)
		http.ServeContent(w, r, "file.bin", time.Unix(0, 0), bytes.NewReader(file))
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

func (s *server) get(t *testing.T, path string) *http.Request {
	t.Helper()
	return get(t, s.URL+path)
}

// newHTTPManager returns a Manager whose requests wait for Resume, so
// tests can attach handlers before any event arrives.
func newHTTPManager(t *testing.T, opts ...client.Option) *client.Manager {
	t.Helper()

	opts = append([]client.Option{
		client.WithoutAutoStart(),
		client.WithLogger(slog.New(slog.DiscardHandler)),
		client.WithTempDir(t.TempDir()),
		client.WithTimeout(10 * time.Second),
	}, opts...)

	m, err := client.Build(opts...)
	if err != nil {
		t.Fatalf("build manager: %v", err)
	}
	t.Cleanup(func() { m.Invalidate(true) })

	return m
}

func TestManager_HTTP_Request(t *testing.T) {
	srv := newServer(t)
	m := newHTTPManager(t, client.WithUserAgent("flow-test"), client.WithRequestIDHeader("X-Request-Id"))

	type reply struct {
		Agent     string `json:"agent"`
		RequestID string `json:"request_id"`
	}

	req := srv.get(t, "/old")
	req.Header.Set("Accept", "application/json")

	var got client.Response[reply]
	r := m.Request(req).Validate()
	client.OnResponse(r, serialize.Decodable[reply](), func(res client.Response[reply]) { got = res }).Resume()

	if err := r.Wait(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Err != nil {
		t.Fatalf("handler error: %v", got.Err)
	}
	if got.Value.Agent != "flow-test" || got.Value.RequestID != r.ID() {
		t.Errorf("reply = %+v, request id %s", got.Value, r.ID())
	}
	if got.Request.URL.Path != "/json" {
		t.Errorf("redirect not followed, final path %s", got.Request.URL.Path)
	}
	if p := r.Progress(); !p.Finished() {
		t.Errorf("progress = %+v", p)
	}
	if m.Len() != 0 {
		t.Errorf("registered after completion = %d", m.Len())
	}
}

func TestManager_HTTP_ValidateContentType(t *testing.T) {
	srv := newServer(t)
	m := newHTTPManager(t)

	req := srv.get(t, "/html")
	req.Header.Set("Accept", "application/json")

	err := m.Request(req).Validate().Resume().Wait(t.Context())

	var verr *client.ValidationError
	if !errors.As(err, &verr) || verr.Reason != client.ReasonContentType {
		t.Fatalf("expected content type ValidationError, got %v", err)
	}
	if verr.ContentType != "text/html" {
		t.Errorf("content type = %q", verr.ContentType)
	}
}

func TestManager_HTTP_Authenticate(t *testing.T) {
	srv := newServer(t)
	m := newHTTPManager(t)

	var body string
	r := m.Request(srv.get(t, "/private")).
		Authenticate("alice", "secret").
		ValidateStatus(http.StatusOK).
		ResponseString(func(res client.Response[string]) { body = res.Value }).
		Resume()

	if err := r.Wait(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "welcome" {
		t.Errorf("body = %q", body)
	}

	err := m.Request(srv.get(t, "/private")).
		Authenticate("alice", "wrong").
		Validate().
		Resume().
		Wait(t.Context())

	var verr *client.ValidationError
	if !errors.As(err, &verr) || verr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 ValidationError, got %v", err)
	}
}

func TestManager_HTTP_Upload(t *testing.T) {
	srv := newServer(t)
	m := newHTTPManager(t)

	payload := bytes.Repeat([]byte("x"), 100<<10)
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPut, srv.URL+"/echo", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var mu sync.Mutex
	var last client.Progress
	var echoed []byte

	r := m.Upload(req, client.FromBytes(payload)).
		OnProgress(func(_ int64, p client.Progress) {
			mu.Lock()
			defer mu.Unlock()
			if p.Completed < last.Completed {
				t.Errorf("progress went backwards: %+v after %+v", p, last)
			}
			last = p
		}).
		Validate().
		ResponseData(func(res client.Response[[]byte]) { echoed = res.Data }).
		Resume()

	if err := r.Wait(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(echoed, payload) {
		t.Errorf("echoed %d bytes, want %d", len(echoed), len(payload))
	}

	mu.Lock()
	defer mu.Unlock()
	if last.Completed != int64(len(payload)) {
		t.Errorf("final progress = %+v", last)
	}
}

func TestManager_HTTP_Download(t *testing.T) {
	srv := newServer(t)
	m := newHTTPManager(t)
	dir := t.TempDir()

	sum := sha256.Sum256(srv.file)

	r := m.Download(srv.get(t, "/file.bin"), client.ToDir(dir),
		download.WithChecksum(sha256.New, hex.EncodeToString(sum[:])),
	).Validate().Resume()

	if err := r.Wait(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "file.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, srv.file) {
		t.Error("downloaded file differs")
	}
	if p := r.Progress(); p.Completed != fileSize || p.Total != fileSize {
		t.Errorf("progress = %+v", p)
	}

	bad := m.Download(srv.get(t, "/file.bin"), client.ToFile(filepath.Join(dir, "bad.bin")),
		download.WithChecksum(sha256.New, "00"),
	).Resume()
	if err := bad.Wait(t.Context()); !errors.Is(err, client.ErrChecksumMismatch) {
		t.Errorf("error = %v, want ErrChecksumMismatch", err)
	}
}

func TestManager_HTTP_CancelData(t *testing.T) {
	srv := newServer(t)
	m := newHTTPManager(t)

	var once sync.Once
	var called bool
	r := m.Request(srv.get(t, "/file.bin"))
	r.OnProgress(func(int64, client.Progress) {
		once.Do(func() { r.Cancel() })
	}).ResponseData(func(res client.Response[[]byte]) {
		called = true
		if !errors.Is(res.Err, client.ErrCancelled) {
			t.Errorf("handler error = %v, want ErrCancelled", res.Err)
		}
	}).Resume()

	if err := r.Wait(t.Context()); !errors.Is(err, client.ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if !called {
		t.Error("response handler did not run")
	}
	if data := r.ResumeData(); data != nil {
		t.Errorf("data request produced %d bytes of resume data", len(data))
	}
	if p := r.Progress(); p.Completed >= fileSize {
		t.Errorf("received the whole body after cancel: %+v", p)
	}
}

func TestManager_HTTP_CancelAndResumeDownload(t *testing.T) {
	srv := newServer(t)
	m := newHTTPManager(t, client.WithRequestIDHeader("X-Request-Id"))
	dir := t.TempDir()

	var once sync.Once
	r := m.Download(srv.get(t, "/file.bin"), client.ToDir(dir))
	r.OnProgress(func(int64, client.Progress) {
		once.Do(func() { r.Cancel() })
	}).Resume()

	if err := r.Wait(t.Context()); !errors.Is(err, client.ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	data := r.ResumeData()
	if data == nil {
		t.Fatal("no resume data after cancel")
	}
	partial := r.Progress().Completed
	if partial == 0 || partial >= fileSize {
		t.Fatalf("cancelled at %d bytes", partial)
	}

	var first client.Progress
	var firstOnce sync.Once
	r2 := m.DownloadResume(data, client.ToDir(dir)).
		OnProgress(func(_ int64, p client.Progress) {
			firstOnce.Do(func() { first = p })
		}).
		Validate().
		Resume()

	if err := r2.Wait(t.Context()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if first.Completed < partial {
		t.Errorf("resumed progress started at %d, want at least %d", first.Completed, partial)
	}
	if r2.HTTPResponse().StatusCode != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", r2.HTTPResponse().StatusCode)
	}

	got, err := os.ReadFile(r2.Destination())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, srv.file) {
		t.Error("resumed file differs")
	}

	want := []string{r.ID(), r2.ID()}
	if diff := cmp.Diff(want, srv.requestIDs()); diff != "" {
		t.Errorf("request ids seen by server mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_HTTP_InvalidResumeData(t *testing.T) {
	m := newHTTPManager(t)

	err := m.DownloadResume([]byte("garbage"), nil).Wait(t.Context())
	if !errors.Is(err, client.ErrInvalidResumeData) {
		t.Fatalf("error = %v, want ErrInvalidResumeData", err)
	}
}

func TestManager_HTTP_MaxConcurrent(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)

	m := newHTTPManager(t, client.WithMaxConcurrent(2))

	var reqs []*client.Request
	for range 6 {
		reqs = append(reqs, m.Request(get(t, srv.URL)).Validate().Resume())
	}
	for _, r := range reqs {
		if err := r.Wait(t.Context()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency %d, want at most 2", peak)
	}
}
