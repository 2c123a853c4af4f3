// Package session holds the Humble web session credentials.
//
// The launcher persists credentials as an opaque JSON blob: the plugin
// hands them over with the store_credentials notification and receives them
// back on the next init_authentication. The blob is
//
//	{"cookies": {"_simpleauth_sess": "...", ...}}
//
// Older blobs stored the cookie map at the top level; [Parse] accepts both.
// The CLI keeps the same blob in a file, see [FileStore].
package session

import (
	"encoding/json"
	"maps"
	"strings"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/humble"
)

// Credentials are the cookies of an authenticated Humble session.
type Credentials struct {
	Cookies map[string]string `json:"cookies"`
}

// Cookie is a browser cookie as reported by the launcher's login window.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// New returns credentials holding a copy of cookies.
func New(cookies map[string]string) *Credentials {
	return &Credentials{Cookies: maps.Clone(cookies)}
}

// FromBrowser keeps the humblebundle.com cookies of a finished login.
// Cookies without a domain are kept.
func FromBrowser(cookies []Cookie) *Credentials {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		if c.Domain != "" && !humbleDomain(c.Domain) {
			continue
		}
		out[c.Name] = c.Value
	}
	return &Credentials{Cookies: out}
}

const cookieDomain = "humblebundle.com"

func humbleDomain(domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	return domain == cookieDomain || strings.HasSuffix(domain, "."+cookieDomain)
}

// Parse decodes a stored credentials blob.
func Parse(raw json.RawMessage) (*Credentials, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.AuthRequired("no stored credentials")
	}
	var wrapped struct {
		Cookies map[string]string `json:"cookies"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Cookies) > 0 {
		return &Credentials{Cookies: wrapped.Cookies}, nil
	}
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthRequired, err, "stored credentials are malformed")
	}
	return &Credentials{Cookies: flat}, nil
}

// SessionCookie returns the session cookie value, or AUTH_REQUIRED when it
// is missing.
func (c *Credentials) SessionCookie() (string, error) {
	if c == nil || c.Cookies[humble.SessionCookie] == "" {
		return "", errors.AuthRequired("credentials have no %s cookie", humble.SessionCookie)
	}
	return c.Cookies[humble.SessionCookie], nil
}

// Marshal encodes the credentials blob.
func (c *Credentials) Marshal() (json.RawMessage, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode credentials")
	}
	return data, nil
}
