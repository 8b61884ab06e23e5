package serialize

import (
	"net/http"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

// CBOR decodes an RFC 8949 body into T.
func CBOR[T any]() Func[T] {
	return func(_ *http.Request, _ *http.Response, data []byte) (T, error) {
		var v T
		if len(data) == 0 {
			return v, nil
		}
		if err := cbor.Unmarshal(data, &v); err != nil {
			var zero T
			return zero, parseErr("cbor", -1, err)
		}
		return v, nil
	}
}

// YAML decodes the body into T.
func YAML[T any]() Func[T] {
	return func(_ *http.Request, _ *http.Response, data []byte) (T, error) {
		var v T
		if len(data) == 0 {
			return v, nil
		}
		if err := yaml.Unmarshal(data, &v); err != nil {
			var zero T
			return zero, parseErr("yaml", -1, err)
		}
		return v, nil
	}
}

// Proto decodes a protobuf wire-format body into the message returned by newMsg.
func Proto[M proto.Message](newMsg func() M) Func[M] {
	return func(_ *http.Request, _ *http.Response, data []byte) (M, error) {
		var zero M
		if len(data) == 0 {
			return zero, nil
		}
		m := newMsg()
		if err := proto.Unmarshal(data, m); err != nil {
			return zero, parseErr("proto", -1, err)
		}
		return m, nil
	}
}
