package serialize

import (
	"mime"
	"net/http"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// String decodes the body as text. An explicit enc wins; otherwise the
// charset parameter of the response Content-Type is used when it names a
// known encoding, falling back to ISO-8859-1.
func String(enc encoding.Encoding) Func[string] {
	return func(_ *http.Request, resp *http.Response, data []byte) (string, error) {
		if len(data) == 0 {
			return "", nil
		}

		e := enc
		if e == nil {
			e = ResponseEncoding(resp)
		}

		return decodeText(e, data)
	}
}

// ResponseEncoding resolves the charset declared by resp, or ISO-8859-1.
func ResponseEncoding(resp *http.Response) encoding.Encoding {
	if resp == nil {
		return charmap.ISO8859_1
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return charmap.ISO8859_1
	}

	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return charmap.ISO8859_1
	}

	name, ok := params["charset"]
	if !ok {
		return charmap.ISO8859_1
	}

	e, err := htmlindex.Get(name)
	if err != nil {
		return charmap.ISO8859_1
	}

	return e
}

func decodeText(e encoding.Encoding, data []byte) (string, error) {
	// x/text's UTF-8 decoder substitutes U+FFFD silently.
	if name, err := htmlindex.Name(e); err == nil && name == "utf-8" {
		if !utf8.Valid(data) {
			return "", &Error{Format: "text", Offset: invalidUTF8Offset(data), Detail: "invalid utf-8 sequence", Err: ErrDecode}
		}
		return string(data), nil
	}

	out, err := e.NewDecoder().Bytes(data)
	if err != nil {
		return "", &Error{Format: "text", Offset: -1, Detail: err.Error(), Err: ErrDecode}
	}

	return string(out), nil
}

func invalidUTF8Offset(data []byte) int64 {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return int64(i)
		}
		i += size
	}
	return -1
}
