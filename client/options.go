package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpflow/client/throttle"
	"github.com/adamwoolhether/httpflow/client/transport"
)

// Option is a functional option for configuring a [Manager] via [Build].
type Option func(*options) error

type options struct {
	session         transport.Session
	sessionOpts     []transport.Option
	headers         http.Header
	userAgent       *string
	requestIDHeader string
	noAutoStart     bool
	logger          *slog.Logger
	tracerProvider  trace.TracerProvider
	store           CredentialStore
	hooks           SessionHooks
}

// WithSession replaces the default net/http session. Session options
// such as WithTimeout have no effect on a custom session.
func WithSession(s transport.Session) Option {
	return func(o *options) error {
		if s == nil {
			return errors.New("session must not be nil")
		}
		o.session = s
		return nil
	}
}

// WithHTTPClient replaces the [http.Client] the default session sends requests with.
func WithHTTPClient(hc *http.Client) Option {
	return sessionOption(transport.WithHTTPClient(hc))
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return sessionOption(transport.WithRoundTripper(rt))
}

// WithTimeout sets the per-attempt timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return sessionOption(transport.WithTimeout(d))
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if err := (throttle.Config{RPS: rps, Burst: burst}).Validate(); err != nil {
			return err
		}
		o.sessionOpts = append(o.sessionOpts, transport.WithThrottle(rps, burst))
		return nil
	}
}

// WithNoFollowRedirects delivers redirect responses instead of following them.
func WithNoFollowRedirects() Option {
	return sessionOption(transport.WithNoFollowRedirects())
}

// WithMaxConcurrent limits how many requests transfer at once.
func WithMaxConcurrent(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max concurrent must not be negative")
		}
		o.sessionOpts = append(o.sessionOpts, transport.WithMaxConcurrent(n))
		return nil
	}
}

// WithTempDir sets the directory downloads stream into before they are moved.
func WithTempDir(dir string) Option {
	return sessionOption(transport.WithTempDir(dir))
}

// WithHTTP3 sends requests over HTTP/3.
func WithHTTP3() Option {
	return sessionOption(transport.WithHTTP3())
}

func sessionOption(opt transport.Option) Option {
	return func(o *options) error {
		o.sessionOpts = append(o.sessionOpts, opt)
		return nil
	}
}

// WithUserAgent sets the User-Agent header of requests that do not carry one.
// An empty value disables the default User-Agent.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.userAgent = &header
		return nil
	}
}

// WithDefaultHeaders adds headers to requests that do not already set them.
func WithDefaultHeaders(h http.Header) Option {
	return func(o *options) error {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		for k, v := range h {
			for _, element := range v {
				o.headers.Add(k, element)
			}
		}
		return nil
	}
}

// WithRequestIDHeader sends each request's id in the named header.
func WithRequestIDHeader(name string) Option {
	return func(o *options) error {
		if name == "" {
			return errors.New("request id header must not be empty")
		}
		o.requestIDHeader = http.CanonicalHeaderKey(name)
		return nil
	}
}

// WithoutAutoStart leaves new requests suspended until Request.Resume.
func WithoutAutoStart() Option {
	return func(o *options) error {
		o.noAutoStart = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Manager].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracerProvider traces every request with a client span.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		o.tracerProvider = tp
		return nil
	}
}

// WithCredentialStore sets the fallback credentials for authentication challenges.
func WithCredentialStore(store CredentialStore) Option {
	return func(o *options) error {
		o.store = store
		return nil
	}
}

// WithSessionHooks sets the session-wide event handlers.
func WithSessionHooks(hooks SessionHooks) Option {
	return func(o *options) error {
		o.hooks = hooks
		return nil
	}
}

// WithConfig applies cfg after validating it. Options given after
// WithConfig override its values.
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if cfg.Timeout > 0 {
			o.sessionOpts = append(o.sessionOpts, transport.WithTimeout(cfg.Timeout))
		}
		if cfg.MaxConcurrent > 0 {
			o.sessionOpts = append(o.sessionOpts, transport.WithMaxConcurrent(cfg.MaxConcurrent))
		}
		if !cfg.FollowRedirects {
			o.sessionOpts = append(o.sessionOpts, transport.WithNoFollowRedirects())
		}
		if cfg.HTTP3 {
			o.sessionOpts = append(o.sessionOpts, transport.WithHTTP3())
		}
		if cfg.TempDir != "" {
			o.sessionOpts = append(o.sessionOpts, transport.WithTempDir(cfg.TempDir))
		}
		if cfg.Throttle != nil {
			o.sessionOpts = append(o.sessionOpts, transport.WithThrottle(cfg.Throttle.RPS, cfg.Throttle.Burst))
		}

		ua := cfg.UserAgent
		o.userAgent = &ua
		o.noAutoStart = !cfg.AutoStart
		if cfg.RequestIDHeader != "" {
			o.requestIDHeader = http.CanonicalHeaderKey(cfg.RequestIDHeader)
		}
		for k, v := range cfg.Headers {
			if o.headers == nil {
				o.headers = http.Header{}
			}
			o.headers.Set(k, v)
		}

		return nil
	}
}
