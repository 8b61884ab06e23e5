package serialize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// JSONOption configures [JSON] and [Decodable].
type JSONOption func(*jsonOpts)

type jsonOpts struct {
	fragments      bool
	useNumber      bool
	disallowFields bool
}

// WithFragments accepts a top-level scalar. By default only an object
// or an array is accepted.
func WithFragments() JSONOption {
	return func(o *jsonOpts) {
		o.fragments = true
	}
}

// WithNumbers preserves number precision as [json.Number] instead of float64.
func WithNumbers() JSONOption {
	return func(o *jsonOpts) {
		o.useNumber = true
	}
}

// WithDisallowUnknownFields rejects objects carrying fields the
// destination type does not declare. Only meaningful for [Decodable].
func WithDisallowUnknownFields() JSONOption {
	return func(o *jsonOpts) {
		o.disallowFields = true
	}
}

// JSON parses the body into a generic value tree of maps, slices and scalars.
func JSON(opts ...JSONOption) Func[any] {
	var o jsonOpts
	for _, opt := range opts {
		opt(&o)
	}

	return func(_ *http.Request, _ *http.Response, data []byte) (any, error) {
		var v any
		ok, err := decodeJSON(data, &v, o)
		if err != nil || !ok {
			return nil, err
		}
		return v, nil
	}
}

// Decodable decodes the body into a value of type T.
func Decodable[T any](opts ...JSONOption) Func[T] {
	var o jsonOpts
	for _, opt := range opts {
		opt(&o)
	}
	o.fragments = true

	return func(_ *http.Request, _ *http.Response, data []byte) (T, error) {
		var v T
		ok, err := decodeJSON(data, &v, o)
		if err != nil || !ok {
			var zero T
			return zero, err
		}
		return v, nil
	}
}

// decodeJSON reports false with a nil error for an empty body.
func decodeJSON(data []byte, dest any, o jsonOpts) (bool, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return false, nil
	}

	if !o.fragments && trimmed[0] != '{' && trimmed[0] != '[' {
		offset := int64(len(data) - len(trimmed))
		return false, parseErr("json", offset, errors.New("top-level value is not an object or array"))
	}

	d := json.NewDecoder(bytes.NewReader(data))
	if o.useNumber {
		d.UseNumber()
	}
	if o.disallowFields {
		d.DisallowUnknownFields()
	}

	if err := d.Decode(dest); err != nil {
		return false, jsonErr(err, d.InputOffset(), int64(len(data)))
	}

	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return false, parseErr("json", d.InputOffset(), fmt.Errorf("unexpected data after top-level value"))
	}

	return true, nil
}

func jsonErr(err error, inputOffset, size int64) *Error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &syntaxErr):
		return parseErr("json", syntaxErr.Offset, err)
	case errors.As(err, &typeErr):
		return parseErr("json", typeErr.Offset, err)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return parseErr("json", size, io.ErrUnexpectedEOF)
	default:
		return parseErr("json", inputOffset, err)
	}
}
