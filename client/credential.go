package client

import (
	"net"
	"sync"

	"github.com/adamwoolhether/httpflow/client/transport"
)

// CredentialStore resolves credentials for challenges that have no
// per-request credential.
type CredentialStore interface {
	Credential(space transport.ProtectionSpace) (*transport.Credential, bool)
}

// CredentialsByHost is a CredentialStore keyed by "host:port".
type CredentialsByHost struct {
	mu    sync.RWMutex
	creds map[string]*transport.Credential
}

// Set stores cred for host and port.
func (c *CredentialsByHost) Set(host, port string, cred *transport.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creds == nil {
		c.creds = make(map[string]*transport.Credential)
	}
	c.creds[net.JoinHostPort(host, port)] = cred
}

func (c *CredentialsByHost) Credential(space transport.ProtectionSpace) (*transport.Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cred, ok := c.creds[net.JoinHostPort(space.Host, space.Port)]
	return cred, ok
}
