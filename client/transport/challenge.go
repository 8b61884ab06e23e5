package transport

import (
	"net/http"
	"strings"
)

// challengeFrom builds a Challenge from a 401 or 407 response carrying
// an authenticate header.
func challengeFrom(resp *http.Response, failures int) (*Challenge, bool) {
	var header string
	var proxy bool

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		header = resp.Header.Get("WWW-Authenticate")
	case http.StatusProxyAuthRequired:
		header = resp.Header.Get("Proxy-Authenticate")
		proxy = true
	default:
		return nil, false
	}

	if header == "" {
		return nil, false
	}

	method, realm := parseAuthenticate(header)

	space := ProtectionSpace{
		Realm:  realm,
		Method: method,
		Proxy:  proxy,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		u := resp.Request.URL
		space.Scheme = u.Scheme
		space.Host = u.Hostname()
		space.Port = u.Port()
		if space.Port == "" {
			space.Port = defaultPort(u.Scheme)
		}
	}

	return &Challenge{
		Space:                space,
		PreviousFailureCount: failures,
		FailureResponse:      resp,
	}, true
}

// parseAuthenticate extracts the scheme and realm from the first
// challenge in an authenticate header.
func parseAuthenticate(v string) (AuthMethod, string) {
	v = strings.TrimSpace(v)
	scheme, rest, _ := strings.Cut(v, " ")

	var realm string
	for param := range strings.SplitSeq(rest, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "realm") {
			continue
		}
		realm = strings.Trim(val, `"`)
		break
	}

	switch {
	case strings.EqualFold(scheme, string(AuthMethodBasic)):
		return AuthMethodBasic, realm
	case strings.EqualFold(scheme, string(AuthMethodDigest)):
		return AuthMethodDigest, realm
	case strings.EqualFold(scheme, string(AuthMethodBearer)):
		return AuthMethodBearer, realm
	default:
		return AuthMethod(scheme), realm
	}
}

func defaultPort(scheme string) string {
	switch scheme {
	case "https":
		return "443"
	case "http":
		return "80"
	default:
		return ""
	}
}

// authorize sets credentials for the retried request.
func authorize(req *http.Request, cred *Credential, proxy bool) {
	if !proxy {
		req.SetBasicAuth(cred.Username, cred.Password)
		return
	}

	// SetBasicAuth only writes Authorization; reuse its encoding.
	tmp := &http.Request{Header: http.Header{}}
	tmp.SetBasicAuth(cred.Username, cred.Password)
	req.Header.Set("Proxy-Authorization", tmp.Header.Get("Authorization"))
}
