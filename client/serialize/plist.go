package serialize

import (
	"fmt"
	"net/http"

	"howett.net/plist"
)

// PlistOption configures [PropertyList].
type PlistOption func(*plistOpts)

type plistOpts struct {
	format int
}

// WithFormat requires the body to be in the given plist format,
// e.g. [plist.XMLFormat] or [plist.BinaryFormat].
func WithFormat(format int) PlistOption {
	return func(o *plistOpts) {
		o.format = format
	}
}

// PropertyList parses the body as a property list in any format
// howett.net/plist understands.
func PropertyList(opts ...PlistOption) Func[any] {
	var o plistOpts
	for _, opt := range opts {
		opt(&o)
	}

	return func(_ *http.Request, _ *http.Response, data []byte) (any, error) {
		if len(data) == 0 {
			return nil, nil
		}

		var v any
		format, err := plist.Unmarshal(data, &v)
		if err != nil {
			return nil, parseErr("plist", -1, err)
		}

		if o.format != plist.InvalidFormat && format != o.format {
			return nil, parseErr("plist", -1, fmt.Errorf("got format %d, want %d", format, o.format))
		}

		return v, nil
	}
}
