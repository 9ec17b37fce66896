package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
	"github.com/custodia-labs/invoicesync/internal/logger"
)

const (
	// MaxRetries is the maximum number of retries after a 429 response.
	MaxRetries = 3

	// personalTokenPrefix marks ClickUp personal API tokens.
	personalTokenPrefix = "pk_"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Ensure Client implements the interface.
var _ driven.TaskManager = (*Client)(nil)

// Client talks to the ClickUp REST API.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	rateLimiter *RateLimiter
	maxRetries  int
}

// New creates a ClickUp client from settings. The token is required.
func New(settings domain.ClickUpSettings) (*Client, error) {
	token := strings.TrimSpace(settings.Token)
	if token == "" {
		return nil, domain.ErrAuthRequired
	}

	rawURL := settings.BaseURL
	if rawURL == "" {
		rawURL = domain.DefaultClickUpBaseURL
	}
	base, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid ClickUp base URL %q", domain.ErrInvalidInput, rawURL)
	}

	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultClickUpTimeout
	}
	rpm := settings.RequestsPerMinute
	if rpm <= 0 {
		rpm = domain.DefaultRequestsPerMinute
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Transport: authTransport(token, http.DefaultTransport),
			Timeout:   timeout,
		},
		rateLimiter: NewRateLimiter(rpm),
		maxRetries:  MaxRetries,
	}, nil
}

// authTransport picks the header scheme for the token. Personal tokens go
// verbatim; OAuth access tokens go through an oauth2 static token source.
func authTransport(token string, base http.RoundTripper) http.RoundTripper {
	if strings.HasPrefix(token, personalTokenPrefix) {
		return &personalTokenTransport{token: token, base: base}
	}
	return &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   base,
	}
}

type personalTokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *personalTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", t.token)
	return t.base.RoundTrip(clone)
}

// request describes one API call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	out    any
	// refine may map a non-2xx response onto a more specific sentinel.
	refine func(status int, apiErr *APIError) error
}

// do executes a request: waits on the rate limiter, sends it, retries 429s
// and decodes the JSON response into r.out.
func (c *Client) do(ctx context.Context, r request) error {
	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", r.op, err)
		}
	}

	endpoint := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		endpoint.RawQuery = r.query.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return unavailable(r.op, err)
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), body)
		if err != nil {
			return fmt.Errorf("%s: build request: %w", r.op, err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return unavailable(r.op, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := c.rateLimiter.RecordRateLimited(resp)
			drain(resp)
			if attempt >= c.maxRetries {
				return fmt.Errorf("%s: %w", r.op, c.rateLimiter.Error())
			}
			logger.Debug("clickup: %s rate limited, retrying in %s", r.op, wait)
			continue
		}

		c.rateLimiter.UpdateFromResponse(resp)
		return c.handle(r, resp)
	}
}

func (c *Client) handle(r request, resp *http.Response) error {
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp)
		if r.refine != nil {
			if kind := r.refine(resp.StatusCode, apiErr); kind != nil {
				apiErr.kind = kind
			}
		}
		return fmt.Errorf("%s: %w", r.op, apiErr)
	}

	if r.out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		if isTimeout(err) {
			return unavailable(r.op, err)
		}
		return fmt.Errorf("%s: decode response: %w", r.op, err)
	}
	return nil
}

// errorBody is ClickUp's error envelope.
type errorBody struct {
	Err   string `json:"err"`
	ECode string `json:"ECODE"`
}

func parseAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.Redacted(),
		kind:       statusKind(resp.StatusCode),
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Err != "" {
		apiErr.Message = body.Err
		apiErr.Code = body.ECode
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}
