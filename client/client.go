// Package client speaks JSON-RPC 2.0 to the Catalyst chain over HTTP POST.
// It owns endpoint failover: a request that fails for transport-level reasons
// moves on to the next configured URL, while protocol-level rejections are
// surfaced immediately.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	gresty "github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/catalyst-network/catalyst-wallet/metrics"
)

const (
	// DefaultTimeout bounds ordinary RPC calls.
	DefaultTimeout = 10 * time.Second
	// BroadcastTimeout bounds sendRawTransaction, which may block on
	// mempool admission.
	BroadcastTimeout = 20 * time.Second
)

var (
	ErrTimeout     = errors.New("rpc request timed out")
	ErrUnreachable = errors.New("all rpc endpoints failed")
	ErrNoEndpoints = errors.New("no rpc endpoints configured")
)

// UnreachableError reports rotation exhaustion while preserving the last
// per-endpoint failure for classification.
type UnreachableError struct {
	Last error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("all rpc endpoints failed: %v", e.Last)
}

func (e *UnreachableError) Unwrap() error { return e.Last }

func (e *UnreachableError) Is(target error) bool { return target == ErrUnreachable }

// HTTPError is a non-2xx HTTP response with no JSON-RPC body to speak of.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rpc http status %d", e.Status)
}

// ProtocolError is a JSON-RPC error object returned by the node. It is never
// retried on another endpoint: the node understood us and said no.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// Client is a multi-endpoint JSON-RPC client. The zero value is not usable;
// construct with New.
type Client struct {
	log  *zap.Logger
	http *gresty.Client

	mu       sync.Mutex
	urls     []string
	lastGood int

	nextID  atomic.Uint64
	timeout time.Duration
}

// New builds a client over the ordered endpoint list. The first URL is the
// initial preferred endpoint.
func New(urls []string, log *zap.Logger) (*Client, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	http := gresty.New()
	http.SetHeader("Content-Type", "application/json")
	return &Client{
		log:     log,
		http:    http,
		urls:    append([]string(nil), urls...),
		timeout: DefaultTimeout,
	}, nil
}

// LastGoodURL reports the endpoint that served the most recent success.
func (c *Client) LastGoodURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.urls[c.lastGood]
}

// Prefer moves url to the front of the rotation if it is configured.
func (c *Client) Prefer(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, u := range c.urls {
		if u == url {
			c.lastGood = i
			return
		}
	}
}

type callOpts struct {
	timeout  time.Duration
	failover bool
}

// candidates returns the URL rotation starting at last_good.
func (c *Client) candidates(failover bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !failover {
		return []string{c.urls[c.lastGood]}
	}
	out := make([]string, 0, len(c.urls))
	for i := 0; i < len(c.urls); i++ {
		out = append(out, c.urls[(c.lastGood+i)%len(c.urls)])
	}
	return out
}

func (c *Client) markGood(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, u := range c.urls {
		if u == url {
			c.lastGood = i
			return
		}
	}
}

// retryable reports whether an error may be healed by another endpoint.
func retryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		s := httpErr.Status
		return s >= 500 || s == 408 || s == 429
	}
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return false
	}
	// Anything else is a transport failure with no HTTP response.
	return true
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return errors.Wrap(err, "rpc transport")
}

// call performs one JSON-RPC call with failover per opts, returning the raw
// result bytes.
func (c *Client) call(ctx context.Context, method string, params interface{}, opts callOpts) (json.RawMessage, error) {
	if opts.timeout <= 0 {
		opts.timeout = c.timeout
	}
	candidates := c.candidates(opts.failover)

	var lastErr error
	for _, url := range candidates {
		result, err := c.post(ctx, url, method, params, opts.timeout)
		if err == nil {
			c.markGood(url)
			metrics.RPCRequests.WithLabelValues(method, "ok").Inc()
			return result, nil
		}
		lastErr = err
		metrics.RPCRequests.WithLabelValues(method, "error").Inc()
		if !retryable(err) {
			return nil, err
		}
		c.log.Warn("rpc endpoint failed, trying next",
			zap.String("url", url),
			zap.String("method", method),
			zap.Error(err))
		metrics.RPCFailovers.Inc()
	}
	return nil, &UnreachableError{Last: lastErr}
}

func (c *Client) post(ctx context.Context, url, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(callCtx).
		SetBody(req).
		Post(url)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode()}
	}

	var parsed rpcResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, errors.Wrap(err, "rpc response body")
	}
	if parsed.Error != nil {
		return nil, &ProtocolError{Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	return parsed.Result, nil
}
