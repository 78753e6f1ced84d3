package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"frost/internal/ledger"
	"frost/internal/ledger/metrics"
	"frost/pkg/platform/circuit"
)

const maxResponseBytes = 16 << 20

// Client is a ledger.Gateway backed by a remote node. Calls are guarded by a
// circuit breaker; while it is open every call fails fast with
// ledger.ErrUnavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	metrics    *metrics.Metrics
	logger     *slog.Logger
	depth      int
	mwm        int
	apiToken   string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithAPIToken sends token in the X-Admin-Token header of every command.
func WithAPIToken(token string) Option {
	return func(c *Client) {
		c.apiToken = token
	}
}

// WithProofOfWork overrides depth and minimum weight magnitude.
func WithProofOfWork(depth, mwm int) Option {
	return func(cl *Client) {
		if depth > 0 {
			cl.depth = depth
		}
		if mwm > 0 {
			cl.mwm = mwm
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    circuit.New("ledger-node"),
		logger:     slog.Default(),
		depth:      DefaultDepth,
		mwm:        DefaultMinWeightMagnitude,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) DeriveAddress(ctx context.Context, seed string) (string, error) {
	var resp addressResponse
	err := c.call(ctx, commandRequest{Command: CommandGetNewAddress, Seed: seed}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Address == "" {
		return "", fmt.Errorf("%w: node returned an empty address", ledger.ErrUnavailable)
	}
	return resp.Address, nil
}

func (c *Client) Submit(ctx context.Context, seed string, chunks []string, address string) (string, error) {
	var resp sendBundleResponse
	err := c.call(ctx, commandRequest{
		Command:            CommandSendBundle,
		Seed:               seed,
		Address:            address,
		Chunks:             chunks,
		Depth:              c.depth,
		MinWeightMagnitude: c.mwm,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Bundle == "" {
		return "", fmt.Errorf("%w: node returned an empty bundle hash", ledger.ErrUnavailable)
	}
	return resp.Bundle, nil
}

func (c *Client) FetchBundle(ctx context.Context, hash string) ([]string, error) {
	var resp getBundleResponse
	if err := c.call(ctx, commandRequest{Command: CommandGetBundle, Bundle: hash}, &resp); err != nil {
		return nil, err
	}
	return resp.Fragments, nil
}

func (c *Client) call(ctx context.Context, req commandRequest, out any) error {
	if !c.breaker.Allow() {
		c.metrics.ObserveCommand(req.Command, "breaker_open", 0)
		return fmt.Errorf("%w: circuit %s is open", ledger.ErrUnavailable, c.breaker.Name())
	}

	start := time.Now()
	err := c.do(ctx, req, out)
	outcome := "ok"
	switch {
	case err == nil:
		c.recordSuccess()
	case errors.Is(err, ledger.ErrUnavailable) && ctx.Err() == nil:
		outcome = "unavailable"
		c.recordFailure(ctx, req.Command, err)
	default:
		// The node answered; rejections and missing bundles say nothing
		// about its health.
		outcome = "error"
		c.recordSuccess()
	}
	c.metrics.ObserveCommand(req.Command, outcome, time.Since(start))
	return err
}

func (c *Client) do(ctx context.Context, req commandRequest, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", req.Command, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", req.Command, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(APIVersionHeader, APIVersion)
	if c.apiToken != "" {
		httpReq.Header.Set(APITokenHeader, c.apiToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ledger.ErrUnavailable, req.Command, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ledger.ErrUnavailable, req.Command, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%w: decode %s response: %v", ledger.ErrUnavailable, req.Command, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ledger.ErrBundleNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %s", ledger.ErrRejected, errorMessage(payload, resp.Status))
	default:
		return fmt.Errorf("%w: %s: %s", ledger.ErrUnavailable, req.Command, errorMessage(payload, resp.Status))
	}
}

func (c *Client) recordFailure(ctx context.Context, command string, err error) {
	opened, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "ledger node circuit opened",
			"breaker", c.breaker.Name(),
			"command", command,
			"error", err,
		)
	}
	c.metrics.SetBreakerOpen(opened)
}

func (c *Client) recordSuccess() {
	closed, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.Info("ledger node circuit closed", "breaker", c.breaker.Name())
	}
	c.metrics.SetBreakerOpen(!closed)
}

func errorMessage(payload []byte, status string) string {
	var e errorResponse
	if json.Unmarshal(payload, &e) == nil && e.Error != "" {
		return e.Error
	}
	return status
}
