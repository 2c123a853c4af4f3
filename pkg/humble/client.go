package humble

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/httputil"
	"github.com/matzehuels/humbleplugin/pkg/observability"
)

// DefaultBaseURL is the Humble web authority.
const DefaultBaseURL = "https://www.humblebundle.com"

const httpTimeout = 30 * time.Second

var defaultHeaders = map[string]string{
	"Accept":         "application/json",
	"Accept-Charset": "utf-8",
	"X-Requested-By": "hb_android_app",
	"User-Agent":     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
}

// StatusError carries the HTTP status of a rejected request as the cause of
// a classified *errors.Error.
type StatusError struct{ Code int }

func (e *StatusError) Error() string { return fmt.Sprintf("status %d", e.Code) }

// Client is a session-scoped HTTP client for the Humble web service.
//
// It keeps a cookie jar across requests and applies a fixed header set.
// Failures are classified into the plugin's error codes: 401 is
// AUTH_REQUIRED, 5xx and network errors are BACKEND_UNAVAILABLE (wrapped as
// retryable), and undecodable bodies are UNKNOWN_BACKEND. The client never
// retries; callers decide.
type Client struct {
	http       *http.Client
	noRedirect *http.Client
	jar        http.CookieJar
	base       *url.URL
	headers    map[string]string
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different authority, such as a test server.
func WithBaseURL(u *url.URL) Option {
	return func(c *Client) { c.base = u }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTransport replaces the underlying transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
		c.noRedirect.Transport = rt
	}
}

// NewClient creates a Client with an empty cookie jar.
func NewClient(opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http: &http.Client{Timeout: httpTimeout, Jar: jar},
		noRedirect: &http.Client{
			Timeout: httpTimeout,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		jar:     jar,
		base:    base,
		headers: defaultHeaders,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCookies stores name/value cookies for the Humble authority.
func (c *Client) SetCookies(cookies map[string]string) {
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.jar.SetCookies(c.base, list)
}

// Cookies returns the current cookies for the Humble authority.
func (c *Client) Cookies() map[string]string {
	out := make(map[string]string)
	for _, ck := range c.jar.Cookies(c.base) {
		out[ck.Name] = ck.Value
	}
	return out
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
	c.noRedirect.CloseIdleConnections()
}

// Request describes one call relative to the Humble authority.
// A nil Query defaults to ajax=true. A non-nil Form is sent url-encoded.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Form       url.Values
	NoRedirect bool
}

// Do executes req and returns the response with an unread body on success.
// With NoRedirect set, 3xx responses are returned rather than followed.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + req.Path
	q := req.Query
	if q == nil {
		q = url.Values{"ajax": {"true"}}
	}
	u.RawQuery = q.Encode()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}
	hreq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request %s", req.Path)
	}
	for k, v := range c.headers {
		hreq.Header.Set(k, v)
	}
	if req.Form != nil {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	hc := c.http
	if req.NoRedirect {
		hc = c.noRedirect
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, u.Host, u.Path)
	start := time.Now()
	resp, err := hc.Do(hreq)
	if err != nil {
		hooks.OnError(ctx, method, u.Host, u.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeBackendUnavailable, err, "%s %s", method, req.Path))
	}
	hooks.OnResponse(ctx, method, u.Host, u.Path, resp.StatusCode, time.Since(start))
	c.logger.Debug("http", "method", method, "path", req.Path, "status", resp.StatusCode)

	if err := classify(method, req.Path, resp.StatusCode, req.NoRedirect); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func classify(method, path string, code int, allowRedirect bool) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case allowRedirect && code >= 300 && code < 400:
		return nil
	case code == http.StatusUnauthorized:
		return errors.Wrap(errors.ErrCodeAuthRequired, &StatusError{code}, "%s %s", method, path)
	case code >= 500:
		return httputil.Retryable(errors.Wrap(errors.ErrCodeBackendUnavailable, &StatusError{code}, "%s %s", method, path))
	case code == http.StatusNotFound:
		return errors.Wrap(errors.ErrCodeNotFound, &StatusError{code}, "%s %s", method, path)
	default:
		return errors.Wrap(errors.ErrCodeUnknownBackend, &StatusError{code}, "%s %s", method, path)
	}
}

// GetJSON performs a GET and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := c.Do(ctx, Request{Path: path, Query: query})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(errors.ErrCodeUnknownBackend, err, "decode %s", path)
	}
	return nil
}

// GetPage performs a GET of an HTML page and returns its body.
func (c *Client) GetPage(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Path: path, Query: url.Values{}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeBackendUnavailable, err, "read %s", path))
	}
	return data, nil
}

// PostForm performs a url-encoded POST and returns the raw body.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Form: form})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeBackendUnavailable, err, "read %s", path))
	}
	return data, nil
}
