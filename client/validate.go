package client

import (
	"errors"
	"net/http"
	"slices"

	"github.com/adamwoolhether/httpflow/client/mime"
)

// Validation inspects a completed response. A non-nil error fails the
// request with a ValidationError.
type Validation func(req *http.Request, resp *http.Response) error

// Validate fails the request unless the status is 2xx and the
// Content-Type matches the request's Accept header.
func (r *Request) Validate() *Request {
	r.validate(ReasonStatusCode, statusRange(200, 300))
	r.validate(ReasonContentType, func(req *http.Request, resp *http.Response) error {
		accept := "*/*"
		if req != nil {
			if v := req.Header.Get("Accept"); v != "" {
				accept = v
			}
		}
		return contentType(mime.ParseList(accept), resp)
	})
	return r
}

// ValidateStatus fails the request unless the status is one of codes.
func (r *Request) ValidateStatus(codes ...int) *Request {
	return r.validate(ReasonStatusCode, func(_ *http.Request, resp *http.Response) error {
		if slices.Contains(codes, resp.StatusCode) {
			return nil
		}
		return errUnacceptable
	})
}

// ValidateStatusRange fails the request unless lo <= status < hi.
func (r *Request) ValidateStatusRange(lo, hi int) *Request {
	return r.validate(ReasonStatusCode, statusRange(lo, hi))
}

// ValidateContentType fails the request unless the Content-Type
// matches one of types. Entries that cannot be parsed never match.
func (r *Request) ValidateContentType(types ...string) *Request {
	var acceptable []mime.Type
	for _, t := range types {
		if mt, err := mime.Parse(t); err == nil {
			acceptable = append(acceptable, mt)
		}
	}

	return r.validate(ReasonContentType, func(_ *http.Request, resp *http.Response) error {
		return contentType(acceptable, resp)
	})
}

// ValidateFunc fails the request when fn returns an error.
func (r *Request) ValidateFunc(fn Validation) *Request {
	return r.validate(ReasonCustom, fn)
}

var errUnacceptable = errors.New("unacceptable")

// validate queues fn behind the handlers already attached. It is
// skipped when there is no response or a non-validation error is
// recorded, and never replaces an error already recorded.
func (r *Request) validate(reason Reason, fn Validation) *Request {
	d := r.d
	d.queue.add(func() {
		resp := d.httpResponse()
		if resp == nil {
			return
		}

		var verr *ValidationError
		if err := d.error(); err != nil && !errors.As(err, &verr) {
			return
		}

		err := fn(d.httpRequest(), resp)
		if err == nil {
			return
		}

		if !errors.As(err, &verr) {
			verr = &ValidationError{
				Reason:      reason,
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
			}
			if !errors.Is(err, errUnacceptable) {
				verr.Err = err
			}
		}

		if d.setErr(verr) {
			d.logger.Info("validation failed", "reason", verr.Reason.String(), "status", resp.StatusCode)
		}
	})

	return r
}

func statusRange(lo, hi int) Validation {
	return func(_ *http.Request, resp *http.Response) error {
		if resp.StatusCode >= lo && resp.StatusCode < hi {
			return nil
		}
		return errUnacceptable
	}
}

// contentType matches the response's Content-Type against acceptable.
// A response without a body passes; one without a Content-Type passes
// only if */* is acceptable.
func contentType(acceptable []mime.Type, resp *http.Response) error {
	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		return nil
	}

	names := make([]string, len(acceptable))
	for i, a := range acceptable {
		names[i] = a.String()
	}
	fail := &ValidationError{
		Reason:      ReasonContentType,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Acceptable:  names,
	}

	header := resp.Header.Get("Content-Type")
	if header == "" {
		if slices.Contains(acceptable, mime.Any) {
			return nil
		}
		return fail
	}

	got, err := mime.Parse(header)
	if err != nil {
		fail.Err = err
		return fail
	}

	for _, a := range acceptable {
		if a.Matches(got) {
			return nil
		}
	}

	return fail
}
