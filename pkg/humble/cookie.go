package humble

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// SessionCookie is the cookie that carries the authenticated session.
const SessionCookie = "_simpleauth_sess"

var (
	octalEscapeRE   = regexp.MustCompile(`\\([0-7]{3})`)
	unicodeEscapeRE = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
)

// DecodeUserID extracts user_id from a _simpleauth_sess cookie value.
//
// The value is "<base64 json>|<timestamp>|<signature>". Browsers hand it over
// raw, URL-escaped, wrapped in quotes, or with "=" written as \075 or =;
// all forms decode to the same id.
func DecodeUserID(value string) (string, error) {
	v := strings.TrimSpace(value)
	v = strings.Trim(v, `"`)
	if unescaped, err := url.PathUnescape(v); err == nil {
		v = unescaped
	}
	v = strings.ReplaceAll(v, `\"`, `"`)
	v = octalEscapeRE.ReplaceAllStringFunc(v, func(m string) string {
		n, _ := strconv.ParseUint(m[1:], 8, 8)
		return string(rune(n))
	})
	v = unicodeEscapeRE.ReplaceAllStringFunc(v, func(m string) string {
		n, _ := strconv.ParseUint(m[2:], 16, 32)
		return string(rune(n))
	})
	v = strings.Trim(v, `"`)

	head, _, _ := strings.Cut(v, "|")
	head = strings.TrimRight(head, "=")
	if head == "" {
		return "", errors.AuthRequired("session cookie is empty")
	}

	enc := base64.RawStdEncoding
	if strings.ContainsAny(head, "-_") {
		enc = base64.RawURLEncoding
	}
	payload, err := enc.DecodeString(head)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeAuthRequired, err, "session cookie is not base64")
	}

	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return "", errors.Wrap(errors.ErrCodeAuthRequired, err, "session cookie payload is not JSON")
	}
	switch id := data["user_id"].(type) {
	case json.Number:
		return id.String(), nil
	case string:
		if id != "" {
			return id, nil
		}
	}
	return "", errors.AuthRequired("session cookie has no user_id")
}
