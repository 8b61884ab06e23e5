package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/httpflow/client/throttle"
	"github.com/quic-go/quic-go/http3"
)

// Option is a functional option for configuring an [HTTPSession].
type Option func(*options) error

type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	throttle          *throttle.Config
	noFollowRedirects bool
	maxConcurrent     int
	tempDir           string
	http3             bool
	logger            *slog.Logger
}

// WithHTTPClient replaces the [http.Client] the session sends requests
// with. The client is copied; its CheckRedirect is replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithRoundTripper sets a custom [http.RoundTripper] as the base transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("round tripper must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithTimeout sets the overall per-attempt timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithNoFollowRedirects delivers redirect responses instead of following them.
func WithNoFollowRedirects() Option {
	return func(o *options) error {
		o.noFollowRedirects = true
		return nil
	}
}

// WithMaxConcurrent limits how many tasks transfer at once. Resumed
// tasks beyond the limit wait for a slot. n <= 0 means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(o *options) error {
		o.maxConcurrent = n
		return nil
	}
}

// WithTempDir sets the directory downloads are streamed into.
func WithTempDir(dir string) Option {
	return func(o *options) error {
		o.tempDir = dir
		return nil
	}
}

// WithHTTP3 sends requests over HTTP/3 using quic-go.
func WithHTTP3() Option {
	return func(o *options) error {
		o.http3 = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// roundTripper resolves the base transport and wraps it with the throttle.
func (o *options) roundTripper(logFn func() *slog.Logger) (http.RoundTripper, error) {
	var rt http.RoundTripper
	switch {
	case o.rt != nil:
		rt = o.rt
	case o.http3:
		rt = &http3.Transport{}
	case o.client != nil && o.client.Transport != nil:
		rt = o.client.Transport
	default:
		rt = http.DefaultTransport
	}

	if o.throttle != nil {
		throttled, err := throttle.NewRoundTripper(*o.throttle, logFn, rt)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		rt = throttled
	}

	return rt, nil
}
