// Package upstream talks to the bank API the IVR reads accounts, cards and
// movements from. Every call is a JSON POST with a bearer token to a URL
// chosen by the caller.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"ivr/internal/core"
)

const (
	// DefaultTimeout bounds one call to the bank API.
	DefaultTimeout = 15 * time.Second

	contentType = "application/json"
	maxBodySize = 8 << 20
)

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	// RetryMax is the number of transport-level retries. Zero keeps every
	// logical call to a single attempt.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client posts JSON to the bank API.
type Client struct {
	retry   *retryablehttp.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Response is a 2xx answer of the bank API.
type Response struct {
	Status int
	// Body is the decoded JSON body (numbers kept as json.Number), or the
	// raw text when the body is not JSON.
	Body    any
	Message string
}

// Record returns the body when it is a JSON object.
func (r *Response) Record() core.Record {
	return core.AsRecord(r.Body)
}

// NewClient creates a client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = opts.HTTPClient
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = &retryLogger{logger: opts.Logger}

	return &Client{
		retry:   rc,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// Post sends payload to endpoint with a bearer token. Any failure, a non-2xx
// status included, is returned as a *TransportError.
func (c *Client) Post(ctx context.Context, endpoint, bearer string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.fail(ctx, endpoint, &TransportError{
			Message: err.Error(),
			Err:     errors.Wrap(err, "failed to marshal request"),
		})
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(ctx, endpoint, &TransportError{
			Message: err.Error(),
			Err:     errors.Wrap(err, "failed to create request"),
		})
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)

	start := time.Now()
	resp, err := c.retry.Do(req)
	duration := time.Since(start)
	if resp == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return nil, c.fail(ctx, endpoint, c.transportFailure(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.fail(ctx, endpoint, &TransportError{
			Status:  resp.StatusCode,
			Message: err.Error(),
			Err:     errors.Wrap(err, "failed to read response"),
		})
	}
	decoded := decodeBody(raw)

	c.logger.DebugContext(ctx, "Upstream response",
		"host", hostOf(endpoint),
		"status", resp.StatusCode,
		"duration", duration,
		"size", len(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{
			Status: resp.StatusCode,
			Body:   decoded,
			Err:    errors.Wrapf(ErrStatus, "status %d", resp.StatusCode),
		}
		te.Message = core.AsRecord(decoded).FirstText("message", "error")
		if te.Message == "" {
			te.Message = fmt.Sprintf("Request failed with status code %d", resp.StatusCode)
		}
		return nil, c.fail(ctx, endpoint, te)
	}

	out := &Response{Status: resp.StatusCode, Body: decoded}
	out.Message = out.Record().FirstText("message", "msg")
	if out.Message == "" {
		out.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return out, nil
}

func (c *Client) transportFailure(err error) *TransportError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransportError{
			Message: fmt.Sprintf("timeout of %dms exceeded", c.timeout.Milliseconds()),
			Err:     errors.Wrap(ErrTimeout, err.Error()),
		}
	}
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	return &TransportError{
		Message: msg,
		Err:     errors.Wrap(err, "upstream request failed"),
	}
}

func (c *Client) fail(ctx context.Context, endpoint string, te *TransportError) error {
	c.logger.WarnContext(ctx, "Upstream call failed",
		"host", hostOf(endpoint),
		"status", te.Status,
		"error", te.Message)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "upstream")
		scope.SetTag("upstream_host", hostOf(endpoint))
		scope.SetContext("upstream", map[string]interface{}{
			"status":  te.Status,
			"message": te.Message,
		})
		hub.CaptureException(te)
	})
	return te
}

type singleAttemptKey struct{}

// SingleAttempt marks ctx so calls made with it are never retried,
// whatever the client's RetryMax.
func SingleAttempt(ctx context.Context) context.Context {
	return context.WithValue(ctx, singleAttemptKey{}, true)
}

func isSingleAttempt(ctx context.Context) bool {
	single, _ := ctx.Value(singleAttemptKey{}).(bool)
	return single
}

// checkRetry is the default policy, except that a transport error is
// reported as itself once retries run out. A response that exhausted its
// retries is passed through untouched.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if isSingleAttempt(ctx) {
		return false, err
	}
	retry, checkErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	if checkErr == nil && err != nil {
		checkErr = err
	}
	return retry, checkErr
}

// decodeBody decodes a JSON body keeping numbers as json.Number; bodies that
// are not JSON are returned as text and empty bodies as nil.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return v
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}

// retryLogger adapts slog to retryablehttp
type retryLogger struct {
	logger *slog.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
