package client

import (
	"net/http"
	"os"

	"github.com/adamwoolhether/httpflow/client/download"
)

// downloadDelegate tracks written bytes and moves the finished file
// to its destination.
type downloadDelegate struct {
	*taskDelegate
	dest      download.Destination
	finalizer *download.Finalizer
	progLog   *download.ProgressLogger
	location  string
}

func newDownloadDelegate(td *taskDelegate, dest download.Destination, f *download.Finalizer) *downloadDelegate {
	if dest == nil {
		dest = download.InTemp()
	}

	d := &downloadDelegate{
		taskDelegate: td,
		dest:         dest,
		finalizer:    f,
		progLog:      f.Progress(td.logger),
	}

	td.bind(d)

	return d
}

func (d *downloadDelegate) didReceiveResponse(resp *http.Response) {
	d.setResponse(resp)
}

func (d *downloadDelegate) didWriteData(n, total, expected int64) {
	d.advance(n, total, expected)
	d.progLog.Observe(total, expected)
}

// didResumeAtOffset starts progress at the bytes already on disk.
func (d *downloadDelegate) didResumeAtOffset(offset, expected int64) {
	d.advance(0, offset, expected)
	d.logger.Info("resuming download", "offset", offset, "total", expected)
}

// didFinishDownloading moves the temp file during the call; the
// transport removes it afterwards.
func (d *downloadDelegate) didFinishDownloading(temp string) {
	if t := d.currentTask(); t != nil {
		if resp := t.Response(); resp != nil {
			d.setResponse(resp)
		}
	}
	dst := d.dest(temp, d.httpResponse())

	if err := d.finalizer.Finalize(d.ctx, temp, dst); err != nil {
		d.setErr(&FileSystemError{Op: "move", Path: dst, Err: err})
		return
	}

	d.mu.Lock()
	d.location = dst
	d.mu.Unlock()
}

func (d *downloadDelegate) destination() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location
}

// body reads the moved file when it is on the local filesystem.
func (d *downloadDelegate) body() ([]byte, error) {
	loc := d.destination()
	if loc == "" || !d.finalizer.Local() {
		return nil, nil
	}

	b, err := os.ReadFile(loc)
	if err != nil {
		return nil, &FileSystemError{Op: "read", Path: loc, Err: err}
	}

	return b, nil
}
