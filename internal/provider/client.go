// Package provider implements the client for the external messaging API the
// relay delivers through. The wire shape follows the common bot-API envelope:
// every call is an HTTP POST of a JSON body to <base>/bot<token>/<method>,
// answered by {"ok":true,"result":...} or
// {"ok":false,"error_code":N,"description":"...","parameters":{"retry_after":N}}.
//
// The outbox worker depends only on the three-way Result shape defined here:
// success with a body, or a failure carrying an error code, a description,
// and an optional provider-stated retry-after.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is the outcome of one provider call.
//
// OK true means the call succeeded and Body holds the provider's result
// object. OK false means the provider rejected the call: ErrorCode and
// Description say why, and RetryAfter is non-zero when the provider asked
// for a specific delay before retrying (throttling).
type Result struct {
	OK          bool
	Body        json.RawMessage
	ErrorCode   int
	Description string
	RetryAfter  time.Duration
}

// Retryable reports whether a failed Result is worth retrying. Throttling
// and server-side errors are retryable; other client errors are permanent.
func (r *Result) Retryable() bool {
	if r.OK {
		return false
	}
	if r.RetryAfter > 0 {
		return true
	}
	return r.ErrorCode >= 500 || r.ErrorCode == http.StatusTooManyRequests
}

// Client is the provider interface the workers depend on. Call returns a
// Result for provider-level outcomes; the error return is reserved for
// transport failures (connection refused, timeout), which callers treat as
// retryable infrastructure errors.
type Client interface {
	Call(ctx context.Context, method string, payload string) (*Result, error)
}

// Update is one decoded entry from the provider's long-poll feed. Raw keeps
// the full event exactly as received; only the identifier is interpreted
// here, everything else is the router's business.
type Update struct {
	UpdateID int64           `json:"update_id"`
	Raw      json.RawMessage `json:"-"`
}

// HTTPClient is the production Client implementation.
type HTTPClient struct {
	BaseURL string        // e.g. "https://api.example.org"
	Token   string        // bot secret, becomes a URL path segment
	Timeout time.Duration // per-call budget, applied when ctx has no deadline

	// HTTP allows tests to substitute a transport. Defaults to a client
	// with Timeout when nil.
	HTTP *http.Client

	// pollHTTP carries no client-level timeout: a long poll legitimately
	// outlives the per-call budget, so only the request context bounds it.
	pollHTTP *http.Client
}

// apiEnvelope is the provider's response wrapper.
type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// NewHTTPClient constructs an HTTPClient with sane defaults.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Token:    token,
		Timeout:  timeout,
		HTTP:     &http.Client{Timeout: timeout},
		pollHTTP: &http.Client{},
	}
}

// methodURL builds the full endpoint URL for a logical method name.
func (c *HTTPClient) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.BaseURL, "/"), c.Token, method)
}

// Call posts payload (a serialized JSON body) to the given method and decodes
// the provider envelope into a Result. Transport-level problems surface as a
// non-nil error; provider-level rejections surface as Result.OK == false.
func (c *HTTPClient) Call(ctx context.Context, method string, payload string) (*Result, error) {
	httpc := c.HTTP
	if httpc == nil {
		httpc = &http.Client{Timeout: c.Timeout}
	}
	return c.do(ctx, httpc, method, payload)
}

// do posts payload to method through the given client and decodes the
// provider envelope. Call and GetUpdates share it; they differ only in which
// http.Client bounds the request.
func (c *HTTPClient) do(ctx context.Context, httpc *http.Client, method string, payload string) (*Result, error) {
	if payload == "" {
		payload = "{}"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewBufferString(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Non-JSON answer (reverse proxy error page, truncated body).
		// Report it as a failure carrying the HTTP status so the caller
		// can classify by code.
		return &Result{
			OK:          false,
			ErrorCode:   resp.StatusCode,
			Description: fmt.Sprintf("undecodable response: %.200s", string(body)),
		}, nil
	}

	res := &Result{
		OK:          env.OK,
		Body:        env.Result,
		ErrorCode:   env.ErrorCode,
		Description: env.Description,
	}
	if res.ErrorCode == 0 && !env.OK {
		res.ErrorCode = resp.StatusCode
	}
	if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
		res.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
	}
	return res, nil
}

// GetUpdates long-polls the provider's update feed starting at offset. It
// waits server-side for up to pollTimeout for new events, so the request goes
// through a client without a per-call timeout; the deadline on ctx (or, when
// ctx carries none, pollTimeout plus the normal call budget) is the only
// bound.
func (c *HTTPClient) GetUpdates(ctx context.Context, offset int64, limit int, pollTimeout time.Duration) ([]Update, error) {
	if limit <= 0 {
		limit = 100
	}
	body, err := json.Marshal(map[string]interface{}{
		"offset":  offset,
		"limit":   limit,
		"timeout": int(pollTimeout / time.Second),
	})
	if err != nil {
		return nil, err
	}

	// Leave headroom on top of the server-side wait.
	callCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, pollTimeout+c.Timeout)
		defer cancel()
	}

	httpc := c.pollHTTP
	if httpc == nil {
		httpc = &http.Client{}
	}
	res, err := c.do(callCtx, httpc, "getUpdates", string(body))
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, fmt.Errorf("getUpdates failed: %d %s", res.ErrorCode, res.Description)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(res.Body, &raws); err != nil {
		return nil, fmt.Errorf("getUpdates: decode result: %w", err)
	}
	out := make([]Update, 0, len(raws))
	for _, raw := range raws {
		var u Update
		if err := json.Unmarshal(raw, &u); err != nil || u.UpdateID == 0 {
			continue // entries without an update_id cannot be queued
		}
		u.Raw = raw
		out = append(out, u)
	}
	return out, nil
}
