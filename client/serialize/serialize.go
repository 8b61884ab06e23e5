// Package serialize turns accumulated response bytes into typed values.
//
// Every serializer is a [Func]: a pure function of the request, the
// response metadata and the body. Serializers never fail on an empty body;
// they return the zero value and a nil error instead.
package serialize

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDecode is wrapped by [Error] when bytes cannot be decoded as text.
	ErrDecode = errors.New("decode failed")
	// ErrParse is wrapped by [Error] when bytes are not valid for a structured format.
	ErrParse = errors.New("parse failed")
)

// Func maps a completed exchange to a typed value.
// resp may be nil when no response arrived.
type Func[T any] func(req *http.Request, resp *http.Response, data []byte) (T, error)

// Error describes a body that could not be serialized. Offset is the
// byte offset of the failure, or -1 when the format does not report one.
type Error struct {
	Format string
	Offset int64
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %v at offset %d: %s", e.Format, e.Err, e.Offset, e.Detail)
	}
	return fmt.Sprintf("%s: %v: %s", e.Format, e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Data returns the accumulated bytes unchanged.
func Data() Func[[]byte] {
	return func(_ *http.Request, _ *http.Response, data []byte) ([]byte, error) {
		if len(data) == 0 {
			return nil, nil
		}
		return data, nil
	}
}

func parseErr(format string, offset int64, err error) *Error {
	return &Error{
		Format: format,
		Offset: offset,
		Detail: err.Error(),
		Err:    ErrParse,
	}
}
