package download

import (
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Destination computes the final location of a download from the
// temporary file and the response that produced it.
type Destination func(temp string, resp *http.Response) string

// To always returns p.
func To(p string) Destination {
	return func(string, *http.Response) string { return p }
}

// InDir places the file in dir, named after the response's
// Content-Disposition filename, else the last segment of the request
// URL, else the temporary file's name.
func InDir(dir string) Destination {
	return func(temp string, resp *http.Response) string {
		return filepath.Join(dir, SuggestedName(temp, resp))
	}
}

// InTemp places the file in the OS temp directory. It is the default
// when no destination is given.
func InTemp() Destination {
	return func(temp string, resp *http.Response) string {
		return filepath.Join(os.TempDir(), SuggestedName(temp, resp))
	}
}

// SuggestedName returns the file name the server suggests for resp.
func SuggestedName(temp string, resp *http.Response) string {
	if resp != nil {
		if cd := resp.Header.Get("Content-Disposition"); cd != "" {
			if _, params, err := mime.ParseMediaType(cd); err == nil {
				if name := clean(params["filename"]); name != "" {
					return name
				}
			}
		}
		if resp.Request != nil && resp.Request.URL != nil {
			if name := clean(path.Base(resp.Request.URL.Path)); name != "" {
				return name
			}
		}
	}

	return strings.TrimPrefix(filepath.Base(temp), ".")
}

// clean reduces a server supplied name to a safe base name.
func clean(name string) string {
	name = filepath.Base(filepath.FromSlash(name))
	switch name {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	return name
}
