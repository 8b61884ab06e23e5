package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /data.txt", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "data.txt", time.Unix(0, 0), bytes.NewReader([]byte("hello, flow")))
	})
	mux.HandleFunc("GET /missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

// isolate keeps a config file on the developer's machine out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HTTPFLOW_CONFIG", "")
}

func TestRun_Args(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: ExitInvalidArgs},
		{name: "unknown command", args: []string{"fetch"}, want: ExitInvalidArgs},
		{name: "help", args: []string{"help"}, want: ExitSuccess},
		{name: "get without url", args: []string{"get"}, want: ExitInvalidArgs},
		{name: "download without output", args: []string{"download", "http://example.com"}, want: ExitInvalidArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestRun_Get(t *testing.T) {
	isolate(t)
	srv := testServer(t)

	if got := run([]string{"get", "-validate", srv.URL + "/data.txt"}); got != ExitSuccess {
		t.Errorf("get = %d, want %d", got, ExitSuccess)
	}
	if got := run([]string{"get", "-validate", srv.URL + "/missing"}); got != ExitValidationFailed {
		t.Errorf("get missing = %d, want %d", got, ExitValidationFailed)
	}
	if got := run([]string{"get", "-validate", "-accept", "application/json", srv.URL + "/data.txt"}); got != ExitValidationFailed {
		t.Errorf("get with accept = %d, want %d", got, ExitValidationFailed)
	}
}

func TestRun_Download(t *testing.T) {
	isolate(t)
	srv := testServer(t)
	dir := t.TempDir()

	t.Run("directory", func(t *testing.T) {
		if got := run([]string{"download", "-o", dir, srv.URL + "/data.txt"}); got != ExitSuccess {
			t.Fatalf("download = %d", got)
		}

		data, err := os.ReadFile(filepath.Join(dir, "data.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "hello, flow" {
			t.Errorf("file = %q", data)
		}
	})

	t.Run("existing file", func(t *testing.T) {
		if got := run([]string{"download", "-o", filepath.Join(dir, "data.txt"), srv.URL + "/data.txt"}); got != ExitStorageError {
			t.Errorf("download = %d, want %d", got, ExitStorageError)
		}
		if got := run([]string{"download", "-overwrite", "-o", filepath.Join(dir, "data.txt"), srv.URL + "/data.txt"}); got != ExitSuccess {
			t.Errorf("download -overwrite = %d, want %d", got, ExitSuccess)
		}
	})

	t.Run("checksum", func(t *testing.T) {
		out := filepath.Join(dir, "nested", "copy.txt")
		const sum = "0000000000000000000000000000000000000000000000000000000000000000"
		if got := run([]string{"download", "-sha256", sum, "-o", out, srv.URL + "/data.txt"}); got != ExitStorageError {
			t.Errorf("download = %d, want %d", got, ExitStorageError)
		}
	})

	t.Run("bucket", func(t *testing.T) {
		bucket := "file://" + filepath.ToSlash(t.TempDir())
		if got := run([]string{"download", "-key", "objects/data.txt", "-o", bucket, srv.URL + "/data.txt"}); got != ExitSuccess {
			t.Fatalf("download = %d", got)
		}
	})

	t.Run("stale resume token", func(t *testing.T) {
		token := filepath.Join(t.TempDir(), "token")
		if err := os.WriteFile(token, []byte("stale"), 0o600); err != nil {
			t.Fatal(err)
		}
		got := run([]string{"download", "-resume", token, "-o", filepath.Join(dir, "fresh.txt"), srv.URL + "/data.txt"})
		if got != ExitTransportError {
			t.Errorf("download = %d, want %d", got, ExitTransportError)
		}
	})

	t.Run("resume token removed after success", func(t *testing.T) {
		token := filepath.Join(t.TempDir(), "token")
		out := filepath.Join(dir, "resumed.txt")
		if got := run([]string{"download", "-resume", token, "-o", out, srv.URL + "/data.txt"}); got != ExitSuccess {
			t.Fatalf("download = %d", got)
		}
		if _, err := os.Stat(token); !os.IsNotExist(err) {
			t.Errorf("token still present: %v", err)
		}
	})
}

func TestExitCode(t *testing.T) {
	if got := exitCode(fmt.Errorf("other")); got != ExitGeneralError {
		t.Errorf("exitCode = %d", got)
	}
	if got := exitCode(nil); got != ExitSuccess {
		t.Errorf("exitCode(nil) = %d", got)
	}
}
