// Package transport implements the HTTP boundary to the ESIOS REST API:
// authenticated GETs with retry/backoff, and presigned-redirect archive
// downloads. Retries use github.com/cenkalti/backoff/v4, and every blocking
// call takes a context.Context.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/datons/esios-go/internal/errs"
	"github.com/datons/esios-go/internal/metrics"
)

// Transport is the seam every manager depends on instead of a concrete
// HTTP client, so tests can substitute an in-memory double (mock.go).
type Transport interface {
	// Get issues an authenticated GET against endpoint with the given query
	// params and decodes the JSON body into out.
	Get(ctx context.Context, endpoint string, params map[string]string, out interface{}) error
	// Download issues an authenticated GET expected to redirect to a
	// presigned URL, and streams the final response body to w.
	Download(ctx context.Context, endpoint string, params map[string]string, w io.Writer) error
}

// Client is the production Transport backed by net/http.
type Client struct {
	APIKey string
	BaseURL string
	HTTPClient *http.Client
	// redirectClient never attaches the API key header: the presigned
	// download URL already carries its own auth, and ESIOS's storage
	// backend rejects requests that also present our key.
	redirectClient *http.Client
	MaxRetries int
	Verbose bool
}

// NewClient builds a Client with sane retry defaults.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		APIKey: apiKey,
		BaseURL: baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		redirectClient: &http.Client{Timeout: 60 * time.Second},
		MaxRetries: 5,
	}
}

func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string, out interface{}) error {
	body, err := c.requestWithRetry(ctx, endpoint, params, false)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(endpoint, outcomeLabel(err)).Inc()
		return err
	}
	if out == nil {
		metrics.RequestsTotal.WithLabelValues(endpoint, "ok").Inc()
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.RequestsTotal.WithLabelValues(endpoint, "decode_error").Inc()
		return &errs.PermanentTransportError{Msg: fmt.Sprintf("decode response from %s: %v", endpoint, err)}
	}
	metrics.RequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

// outcomeLabel classifies err for the requests_total metric's outcome
// label.
func outcomeLabel(err error) string {
	switch err.(type) {
	case *errs.AuthError:
		return "auth_error"
	case *errs.TransientTransportError:
		return "transient_error"
	case *errs.PermanentTransportError:
		return "permanent_error"
	default:
		return "error"
	}
}

func (c *Client) Download(ctx context.Context, endpoint string, params map[string]string, w io.Writer) error {
	req, err := c.newRequest(ctx, endpoint, params)
	if err != nil {
		return err
	}

	client := *c.HTTPClient
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	var finalBody io.ReadCloser
	operation := func() error {
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		if loc := resp.Header.Get("Location"); resp.StatusCode >= 300 && resp.StatusCode < 400 && loc != "" {
			resp.Body.Close()
			redirected, err := c.redirectClient.Get(loc)
			if err != nil {
				return err
			}
			if redirected.StatusCode >= 500 {
				redirected.Body.Close()
				return &errs.TransientTransportError{StatusCode: redirected.StatusCode, Msg: "redirect target"}
			}
			finalBody = redirected.Body
			return nil
		}
		classified := classifyStatus(resp.StatusCode)
		if classified == nil {
			finalBody = resp.Body
			return nil
		}
		resp.Body.Close()
		return classified
	}

	if err := c.retry(ctx, operation); err != nil {
		metrics.RequestsTotal.WithLabelValues(endpoint, outcomeLabel(err)).Inc()
		return err
	}
	defer finalBody.Close()
	_, err = io.Copy(w, finalBody)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return err
	}
	metrics.RequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func (c *Client) requestWithRetry(ctx context.Context, endpoint string, params map[string]string, _ bool) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := c.newRequest(ctx, endpoint, params)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return backoff.Permanent(&errs.AuthError{StatusCode: resp.StatusCode, Msg: string(data)})
		}
		if cls := classifyStatus(resp.StatusCode); cls != nil {
			if _, ok := cls.(*errs.PermanentTransportError); ok {
				return backoff.Permanent(cls)
			}
			if wait := retryAfter(resp.Header); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return cls
		}
		body = data
		return nil
	}

	if err := c.retry(ctx, operation); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) retry(ctx context.Context, operation backoff.Operation) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.MaxRetries)), ctx)
	return backoff.Retry(operation, bo)
}

func (c *Client) newRequest(ctx context.Context, endpoint string, params map[string]string) (*http.Request, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, &errs.ConfigError{Msg: "invalid base URL: " + err.Error()}
	}
	u.Path = joinPath(u.Path, endpoint)
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json; application/vnd.esios-api-v1+json")
	req.Header.Set("x-api-key", c.APIKey)
	return req, nil
}

func joinPath(base, endpoint string) string {
	if base == "" {
		return "/" + endpoint
	}
	if base[len(base)-1] == '/' {
		return base + endpoint
	}
	return base + "/" + endpoint
}

func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests, status >= 500:
		return &errs.TransientTransportError{StatusCode: status}
	case status >= 400:
		return &errs.PermanentTransportError{StatusCode: status}
	default:
		return nil
	}
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		return time.Until(when)
	}
	return 0
}
