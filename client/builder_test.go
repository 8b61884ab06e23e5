package client_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/httpflow/client"
)

func TestNewRequest(t *testing.T) {
	type payload struct {
		Body string `json:"body"`
	}

	testCases := map[string]struct {
		method      string
		opts        []client.RequestOption
		expBody     string
		contentType string
		accept      string
		headers     map[string][]string
		cookies     int
	}{
		"basic": {
			method: http.MethodGet,
		},
		"withPayload": {
			method:      http.MethodPost,
			opts:        []client.RequestOption{client.WithPayload(payload{Body: "hey there"})},
			expBody:     `{"body":"hey there"}`,
			contentType: "application/json",
		},
		"withBodyAndContentType": {
			method: http.MethodPut,
			opts: []client.RequestOption{
				client.WithBody(strings.NewReader("<p>hi</p>")),
				client.WithContentType("text/html"),
			},
			expBody:     "<p>hi</p>",
			contentType: "text/html",
		},
		"withAccept": {
			method: http.MethodGet,
			opts:   []client.RequestOption{client.WithAccept("application/json", "text/*")},
			accept: "application/json, text/*",
		},
		"withHeaders": {
			method: http.MethodPost,
			opts: []client.RequestOption{client.WithHeaders(map[string][]string{
				"Single-Val": {"value"},
				"Multi-Val":  {"value", "value2"},
			})},
			headers: map[string][]string{
				"Single-Val": {"value"},
				"Multi-Val":  {"value", "value2"},
			},
		},
		"withCookies": {
			method: http.MethodGet,
			opts: []client.RequestOption{client.WithCookies(
				&http.Cookie{Name: "session", Value: "abc123"},
				&http.Cookie{Name: "theme", Value: "dark"},
			)},
			cookies: 2,
		},
	}

	u := client.URL("https", "localhost", "/", client.WithPort(8888))

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			req, err := client.NewRequest(t.Context(), tc.method, u, tc.opts...)
			if err != nil {
				t.Fatalf("create request exp nil err; got: %v", err)
			}

			if tc.expBody != "" {
				data, err := io.ReadAll(req.Body)
				if err != nil {
					t.Fatalf("reading req body: %v", err)
				}

				got := strings.TrimSpace(string(data))
				if tc.contentType == "application/json" {
					var a, b any
					_ = json.Unmarshal(data, &a)
					_ = json.Unmarshal([]byte(tc.expBody), &b)
					if diff := cmp.Diff(b, a); diff != "" {
						t.Errorf("body mismatch (-want +got):\n%s", diff)
					}
				} else if got != tc.expBody {
					t.Errorf("exp body %q, got %q", tc.expBody, got)
				}
			}

			if got := req.Header.Get("Content-Type"); got != tc.contentType {
				t.Errorf("exp content type %q, got %q", tc.contentType, got)
			}
			if got := req.Header.Get("Accept"); got != tc.accept {
				t.Errorf("exp accept %q, got %q", tc.accept, got)
			}
			for k, v := range tc.headers {
				if diff := cmp.Diff(v, req.Header[k]); diff != "" {
					t.Errorf("header[%s] mismatch (-want +got):\n%s", k, diff)
				}
			}
			if got := len(req.Cookies()); got != tc.cookies {
				t.Errorf("exp %d cookies, got %d", tc.cookies, got)
			}
		})
	}
}

func TestNewRequest_InvalidOptions(t *testing.T) {
	u := client.URL("https", "localhost", "/")

	for name, opt := range map[string]client.RequestOption{
		"nilBody":          client.WithBody(nil),
		"emptyContentType": client.WithContentType(""),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := client.NewRequest(t.Context(), http.MethodGet, u, opt); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestURL(t *testing.T) {
	testCases := map[string]struct {
		scheme string
		host   string
		port   int
		path   string
		qs     map[string]string
		exp    string
	}{
		"basic": {
			scheme: "https",
			host:   "localhost",
			port:   8888,
			path:   "/",
			exp:    "https://localhost:8888/",
		},
		"withoutPort": {
			scheme: "http",
			host:   "example.com",
			path:   "/files",
			exp:    "http://example.com/files",
		},
		"withMultipleQS": {
			scheme: "https",
			host:   "localhost",
			port:   8888,
			path:   "/somepath",
			qs:     map[string]string{"key": "value", "key2": "value2"},
			exp:    "https://localhost:8888/somepath?key=value&key2=value2",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var opts []client.URLOption
			if tc.qs != nil {
				opts = append(opts, client.WithQueryStrings(tc.qs))
			}
			if tc.port != 0 {
				opts = append(opts, client.WithPort(tc.port))
			}

			u := client.URL(tc.scheme, tc.host, tc.path, opts...)
			if u.String() != tc.exp {
				t.Errorf("exp generated url %q, got %q", tc.exp, u.String())
			}
		})
	}
}
