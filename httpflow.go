// Package httpflow exposes the Manager builder and a process-wide
// default Manager.
package httpflow

import (
	"fmt"
	"sync"

	"github.com/adamwoolhether/httpflow/client"
)

// NewManager instantiates a new *client.Manager with the provided options.
// If not specified, a net/http session with the default http.Transport is used.
func NewManager(opts ...client.Option) (*client.Manager, error) {
	return client.Build(opts...)
}

var defaultManager = sync.OnceValues(func() (*client.Manager, error) {
	cfg, err := client.LoadConfig("")
	if err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}

	return client.Build(client.WithConfig(cfg))
})

// Default returns the shared Manager, built on first use from the
// configuration LoadConfig finds. Later calls return the same Manager,
// or the same error.
func Default() (*client.Manager, error) {
	return defaultManager()
}
