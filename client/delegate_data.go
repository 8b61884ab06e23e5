package client

import (
	"bytes"
	"io"
	"net/http"
)

// dataDelegate accumulates the response body in memory.
type dataDelegate struct {
	*taskDelegate
	buf bytes.Buffer
}

func newDataDelegate(td *taskDelegate) *dataDelegate {
	d := &dataDelegate{taskDelegate: td}
	td.bind(d)
	return d
}

func (d *dataDelegate) didReceiveResponse(resp *http.Response) {
	d.setResponse(resp)

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = resp.ContentLength
	}
	d.advance(0, 0, total)
}

func (d *dataDelegate) didReceiveData(chunk []byte) {
	d.buf.Write(chunk)

	if stream := d.taskHooks().stream; stream != nil {
		stream(chunk)
	}
	d.advance(int64(len(chunk)), int64(d.buf.Len()), -1)
}

func (d *dataDelegate) body() ([]byte, error) {
	if d.buf.Len() == 0 {
		return nil, nil
	}
	return d.buf.Bytes(), nil
}

// uploadDelegate is a dataDelegate whose progress counts sent bytes.
type uploadDelegate struct {
	*dataDelegate
	stream io.Reader
}

func newUploadDelegate(td *taskDelegate, stream io.Reader) *uploadDelegate {
	d := &uploadDelegate{
		dataDelegate: &dataDelegate{taskDelegate: td},
		stream:       stream,
	}
	td.bind(d)
	return d
}

func (d *uploadDelegate) didReceiveResponse(resp *http.Response) {
	d.setResponse(resp)
}

func (d *uploadDelegate) didReceiveData(chunk []byte) {
	d.buf.Write(chunk)

	if stream := d.taskHooks().stream; stream != nil {
		stream(chunk)
	}
}

func (d *uploadDelegate) didSendBodyData(n, total, expected int64) {
	d.advance(n, total, expected)
}

// needNewBodyStream hands back the stream the upload was issued with.
// The stream is single use: a replay after it has been read sends
// whatever remains.
func (d *uploadDelegate) needNewBodyStream() io.ReadCloser {
	if d.stream == nil {
		return nil
	}
	return io.NopCloser(d.stream)
}
