package engineapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
)

// APIError is a non-2xx answer from the engine service. The core treats
// it as an upstream failure and never retries beyond this client.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine api error: status=%d body=%s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type evaluationResponse struct {
	Value   int    `json:"value"`
	EndType string `json:"end_type"`
	IsEnd   bool   `json:"is_end"`
	WhoWin  string `json:"who_win"`
	WDL     []int  `json:"wdl"`
}

type limitResponse struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Evaluate asks the engine service for a judgment of the position.
func (c *Client) Evaluate(ctx context.Context, fen string) (*domain.Evaluation, error) {
	if strings.TrimSpace(fen) == "" {
		return nil, errors.New("fen is required")
	}
	var resp evaluationResponse
	path := "/api/chess/evaluation?fen=" + url.QueryEscape(fen)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return decodeEvaluation(resp)
}

func decodeEvaluation(resp evaluationResponse) (*domain.Evaluation, error) {
	eval := &domain.Evaluation{
		Value:   resp.Value,
		EndType: strings.ToLower(strings.TrimSpace(resp.EndType)),
		IsEnd:   resp.IsEnd,
	}
	if eval.EndType == "" {
		return nil, fmt.Errorf("malformed evaluation: missing end_type")
	}
	switch w := domain.Color(strings.TrimSpace(resp.WhoWin)); w {
	case "":
		// draw or undecided
	case domain.White, domain.Black:
		eval.WhoWin = &w
	default:
		return nil, fmt.Errorf("malformed evaluation: who_win=%q", resp.WhoWin)
	}
	if len(resp.WDL) == 3 {
		copy(eval.WDL[:], resp.WDL)
	}
	return eval, nil
}

// Limits returns the per-parameter [min,max] clamps for user settings.
func (c *Client) Limits(ctx context.Context) (map[string]domain.ParamLimit, error) {
	raw := map[string]limitResponse{}
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/chess/limits", nil, &raw, true); err != nil {
		return nil, err
	}
	limits := make(map[string]domain.ParamLimit, len(raw))
	for name, l := range raw {
		limits[name] = domain.ParamLimit{Min: l.Min, Max: l.Max}
	}
	return limits, nil
}

// Defaults returns the service-supplied default value per parameter.
func (c *Client) Defaults(ctx context.Context) (map[string]int, error) {
	defaults := map[string]int{}
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/chess/defaults", nil, &defaults, true); err != nil {
		return nil, err
	}
	return defaults, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("engine request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := &APIError{Status: status, Body: truncate(string(resp.Body()), 512)}
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode engine response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown engine api error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
