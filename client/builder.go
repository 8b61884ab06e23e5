package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RequestOption is a functional option for [NewRequest].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	body        io.Reader
	jsonBody    any
	contentType *string
	accept      []string
	cookies     []*http.Cookie
	headers     map[string][]string
}

// WithPayload sets the JSON-encoded request body. Content-Type defaults
// to "application/json".
func WithPayload(body any) RequestOption {
	return func(opts *requestOpts) error {
		opts.jsonBody = body
		return nil
	}
}

// WithBody sends r as the request body.
func WithBody(r io.Reader) RequestOption {
	return func(opts *requestOpts) error {
		if r == nil {
			return errors.New("body must not be nil")
		}
		opts.body = r
		return nil
	}
}

// WithContentType overrides the Content-Type header.
func WithContentType(contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}
		opts.contentType = &contentType
		return nil
	}
}

// WithAccept sets the Accept header, which Request.Validate checks the
// response Content-Type against.
func WithAccept(types ...string) RequestOption {
	return func(opts *requestOpts) error {
		opts.accept = append(opts.accept, types...)
		return nil
	}
}

// WithHeaders adds custom headers to the outgoing request.
func WithHeaders(headers map[string][]string) RequestOption {
	return func(opts *requestOpts) error {
		opts.headers = headers
		return nil
	}
}

// WithCookies attaches the given cookies to the outgoing request.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(opts *requestOpts) error {
		opts.cookies = cookies
		return nil
	}
}

// NewRequest instantiates an *http.Request for use with a [Manager].
func NewRequest(ctx context.Context, method string, reqURL *url.URL, opts ...RequestOption) (*http.Request, error) {
	var settings requestOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return nil, err
		}
	}

	body := settings.body
	contentType := ""
	if settings.jsonBody != nil {
		var payload bytes.Buffer
		if err := json.NewEncoder(&payload).Encode(settings.jsonBody); err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		body = &payload
		contentType = "application/json"
	}
	if settings.contentType != nil {
		contentType = *settings.contentType
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	for _, cookie := range settings.cookies {
		req.AddCookie(cookie)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if len(settings.accept) > 0 {
		req.Header.Set("Accept", strings.Join(settings.accept, ", "))
	}
	for k, v := range settings.headers {
		for _, element := range v {
			req.Header.Add(k, element)
		}
	}

	return req, nil
}

// URLOption is a functional option for [URL].
type URLOption func(options *urlOpts)

type urlOpts struct {
	queryStrings map[string]string
	port         *int
}

// WithQueryStrings appends query parameters to the URL.
func WithQueryStrings(queryKV map[string]string) URLOption {
	return func(opts *urlOpts) {
		opts.queryStrings = queryKV
	}
}

// WithPort sets the port number on the URL's host.
func WithPort(port int) URLOption {
	return func(opts *urlOpts) {
		opts.port = &port
	}
}

// URL creates a url.URL for use in NewRequest.
func URL(scheme, host, path string, opts ...URLOption) *url.URL {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.port != nil {
		host = fmt.Sprintf("%s:%d", host, *settings.port)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
	}

	if settings.queryStrings != nil {
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}
		endpoint.RawQuery = queryParams.Encode()
	}

	return &endpoint
}
