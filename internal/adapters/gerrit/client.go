// Package gerrit provides a small Gerrit REST client: server discovery,
// account lookup and key listing
package gerrit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"tagvalidate/internal/core/version"
	perr "tagvalidate/internal/platform/errors"
	"tagvalidate/internal/platform/logger"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
	maxErrBody     = 2048
	maxRedirects   = 10
)

// Options configures the Client
type Options struct {
	// Timeout bounds each request end to end, default 10s
	Timeout   time.Duration
	UserAgent string
	// Transport overrides the default round tripper, mainly for tests
	Transport http.RoundTripper
}

// Client is a Gerrit REST client. It never retries on its own; callers decide
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// Response is a 2xx reply with the magic prefix already stripped
type Response struct {
	Status int
	Body   []byte
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = version.UserAgent()
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout, Transport: o.Transport, CheckRedirect: httpsOnlyRedirect},
		opts: o,
		log:  *logger.Named("gerrit"),
		now:  time.Now,
	}
}

// httpsOnlyRedirect refuses any hop that would leave https, credentials included
func httpsOnlyRedirect(req *http.Request, via []*http.Request) error {
	if req.URL.Scheme != "https" {
		return perr.Newf(perr.ErrorCodeInvalidArgument, "gerrit refused redirect to %s url %s", req.URL.Scheme, req.URL.Redacted())
	}
	if len(via) >= maxRedirects {
		return perr.Newf(perr.ErrorCodeInvalidArgument, "gerrit stopped after %d redirects", len(via))
	}
	return nil
}

// Get issues GET {ep.BaseURL}{path}
func (c *Client) Get(ctx context.Context, ep Endpoint, path string, creds Credentials) (Response, error) {
	return c.get(ctx, ep.BaseURL+path, creds)
}

func (c *Client) get(ctx context.Context, rawURL string, creds Credentials) (Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Response{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "gerrit bad url")
	}
	if u.Scheme != "https" || u.Host == "" {
		return Response{}, perr.Newf(perr.ErrorCodeInvalidArgument, "gerrit requires an https url, got scheme %q", u.Scheme)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, perr.Wrap(err, perr.ErrorCodeCanceled, "gerrit request canceled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Response{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "gerrit new request failed")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if creds.Present() {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	lat := c.now().Sub(start)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, perr.Wrap(err, perr.ErrorCodeCanceled, "gerrit request canceled")
		}
		if perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			return Response{}, err
		}
		return Response{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "gerrit request to %s failed", u.Host)
	}

	logger.C(ctx).Debug().
		Str("component", "gerrit").
		Str("host", u.Host).
		Str("path", u.Path).
		Int("status", resp.StatusCode).
		Bool("auth", creds.Present()).
		Dur("latency", lat).
		Msg("gerrit http response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		_ = drainAndClose(resp.Body)
		return Response{}, &StatusError{
			Status: resp.StatusCode,
			Body:   string(stripMagicPrefix(body)),
			Err:    perr.Newf(perr.CodeFromHTTPStatus(resp.StatusCode), "gerrit %s returned %d", u.Path, resp.StatusCode),
		}
	}

	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", u.Path).Msg("gerrit close body failed")
		}
	}()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, perr.Wrap(err, perr.ErrorCodeCanceled, "gerrit read canceled")
		}
		return Response{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "gerrit read body from %s failed", u.Host)
	}
	return Response{Status: resp.StatusCode, Body: stripMagicPrefix(b)}, nil
}

// GetJSON fetches path and decodes the body into T
func GetJSON[T any](ctx context.Context, c *Client, ep Endpoint, path string, creds Credentials) (T, error) {
	var out T
	resp, err := c.Get(ctx, ep, path, creds)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, perr.Wrapf(err, perr.ErrorCodeJSON, "gerrit decode %s", path)
	}
	return out, nil
}

// Probe checks that baseURL hosts a Gerrit REST API
// Success is a 2xx whose body decodes to the server version string
func (c *Client) Probe(ctx context.Context, baseURL string, creds Credentials) (string, error) {
	resp, err := c.get(ctx, baseURL+"config/server/version", creds)
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeJSON, "gerrit version probe returned non-version body")
	}
	return v, nil
}
