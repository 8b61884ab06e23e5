package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// resumeData is the decoded form of the opaque token handed out by
// CancelByProducingResumeData.
type resumeData struct {
	URL          string              `cbor:"1,keyasint"`
	Method       string              `cbor:"2,keyasint"`
	Header       map[string][]string `cbor:"3,keyasint,omitempty"`
	TempPath     string              `cbor:"4,keyasint"`
	Offset       int64               `cbor:"5,keyasint"`
	ETag         string              `cbor:"6,keyasint,omitempty"`
	LastModified string              `cbor:"7,keyasint,omitempty"`
}

func (d resumeData) encode() ([]byte, error) {
	b, err := cbor.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding resume data: %w", err)
	}
	return b, nil
}

func decodeResumeData(b []byte) (resumeData, error) {
	var d resumeData
	if len(b) == 0 {
		return d, fmt.Errorf("%w: empty", ErrInvalidResumeData)
	}
	if err := cbor.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("%w: %w", ErrInvalidResumeData, err)
	}
	if d.URL == "" || d.TempPath == "" || d.Offset < 0 {
		return d, fmt.Errorf("%w: missing fields", ErrInvalidResumeData)
	}
	return d, nil
}

func (d resumeData) request() (*http.Request, error) {
	req, err := http.NewRequestWithContext(context.Background(), d.Method, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResumeData, err)
	}
	for k, v := range d.Header {
		req.Header[k] = v
	}
	return req, nil
}

// applyRange asks the server for the remainder of the entity.
func (d resumeData) applyRange(h http.Header) {
	h.Set("Range", "bytes="+strconv.FormatInt(d.Offset, 10)+"-")
	switch {
	case d.ETag != "":
		h.Set("If-Range", d.ETag)
	case d.LastModified != "":
		h.Set("If-Range", d.LastModified)
	}
}

// contentRangeTotal parses the complete length from a Content-Range
// value such as "bytes 100-199/200". It returns -1 when unknown.
func contentRangeTotal(v string) int64 {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// contentRangeStart parses the first byte position from a Content-Range value.
func contentRangeStart(v string) (int64, bool) {
	v = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "bytes"))
	start, _, ok := strings.Cut(v, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(start), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
