package client

import (
	"net/http"

	"github.com/adamwoolhether/httpflow/client/serialize"
)

// Response is what a response handler receives.
type Response[T any] struct {
	Request  *http.Request
	Response *http.Response
	// Data is the accumulated body, or the moved file's contents for
	// local downloads.
	Data []byte
	// Value is the serialized body. It is the zero value when Err is set.
	Value T
	// Err is the request's terminal error, or the serializer's error
	// when the request itself succeeded.
	Err error
}

// OnResponse queues fn to receive the body decoded by s once the
// request completes. Handlers run in the order they are attached, one
// at a time, off the transport's goroutine. A handler attached after
// completion runs after those attached before it.
func OnResponse[T any](r *Request, s serialize.Func[T], fn func(Response[T])) *Request {
	return respond(r, s, fn, true)
}

func respond[T any](r *Request, s serialize.Func[T], fn func(Response[T]), withBody bool) *Request {
	d := r.d
	d.queue.add(func() {
		res := Response[T]{
			Request:  d.httpRequest(),
			Response: d.httpResponse(),
			Err:      d.error(),
		}

		var data []byte
		if withBody {
			var err error
			data, err = d.currentVariant().body()
			res.Data = data
			if res.Err == nil {
				res.Err = err
			}
		}

		if res.Err == nil {
			v, err := s(res.Request, res.Response, data)
			if err != nil {
				d.logger.Debug("serialization failed", "error", err)
				res.Err = err
			} else {
				res.Value = v
			}
		}

		fn(res)
	})

	return r
}

// ResponseData delivers the raw body.
func (r *Request) ResponseData(fn func(Response[[]byte])) *Request {
	return OnResponse(r, serialize.Data(), fn)
}

// ResponseString delivers the body decoded as text using the response's charset.
func (r *Request) ResponseString(fn func(Response[string])) *Request {
	return OnResponse(r, serialize.String(nil), fn)
}

// ResponseJSON delivers the body parsed as a JSON value tree.
func (r *Request) ResponseJSON(fn func(Response[any]), opts ...serialize.JSONOption) *Request {
	return OnResponse(r, serialize.JSON(opts...), fn)
}

// ResponsePropertyList delivers the body parsed as a property list.
func (r *Request) ResponsePropertyList(fn func(Response[any]), opts ...serialize.PlistOption) *Request {
	return OnResponse(r, serialize.PropertyList(opts...), fn)
}

// ResponseDownload delivers the location a download was moved to.
func (r *Request) ResponseDownload(fn func(Response[string])) *Request {
	return respond(r, func(*http.Request, *http.Response, []byte) (string, error) {
		return r.Destination(), nil
	}, fn, false)
}
