package client_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/httpflow/client"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "httpflow.yaml")

	const data = `
timeout: 5s
max_concurrent: 2
follow_redirects: false
user_agent: cli/2
request_id_header: X-Request-ID
headers:
  x-team: core
throttle:
  rps: 10
  burst: 5
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTPFLOW_MAX_CONCURRENT", "4")

	cfg, err := client.LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	want := client.Config{
		Timeout:         5 * time.Second,
		MaxConcurrent:   4,
		FollowRedirects: false,
		AutoStart:       true,
		UserAgent:       "cli/2",
		RequestIDHeader: "X-Request-ID",
		Headers:         map[string]string{"x-team": "core"},
		Throttle:        &client.ThrottleConfig{RPS: 10, Burst: 5},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if _, err := client.Build(client.WithConfig(cfg)); err != nil {
		t.Errorf("build with loaded config: %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("HTTPFLOW_CONFIG", "")

	cfg, err := client.LoadConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if diff := cmp.Diff(client.DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_concurrent: -3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := client.LoadConfig(path)

	var fields client.FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if len(fields) != 1 || fields[0].Field != "Config.max_concurrent" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    client.Config
		fields []string
	}{
		{
			name: "defaults",
			cfg:  client.DefaultConfig(),
		},
		{
			name:   "negative timeout",
			cfg:    client.Config{Timeout: -time.Second},
			fields: []string{"Config.timeout"},
		},
		{
			name:   "empty throttle",
			cfg:    client.Config{Throttle: &client.ThrottleConfig{}},
			fields: []string{"Config.throttle.rps", "Config.throttle.burst"},
		},
		{
			name:   "non ascii user agent",
			cfg:    client.Config{UserAgent: "agenté"},
			fields: []string{"Config.user_agent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var fields client.FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("expected FieldErrors, got %v", err)
			}

			var got []string
			for _, f := range fields {
				got = append(got, f.Field)
				if f.Err == "" {
					t.Errorf("field %s has no message", f.Field)
				}
			}
			if diff := cmp.Diff(tt.fields, got); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
