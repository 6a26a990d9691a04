// Package transport sends chat-completions requests and hands back the raw
// response body for incremental parsing.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/pkg/llm"
)

// ErrReadIdle is the cause recorded when no response bytes arrive within
// Config.ReadTimeout.
var ErrReadIdle = errors.New("read timeout: no data received from server")

// Compile-time interface guard.
var _ llm.Transport = (*Client)(nil)

// Diagnoser inspects a target after a connection failure and returns
// troubleshooting text for the user, or "".
type Diagnoser interface {
	Diagnose(ctx context.Context, target llm.Target) string
}

// Option configures a Client.
type Option func(*Client)

// WithDiagnoser overrides the diagnoser used for Ollama connection failures.
func WithDiagnoser(d Diagnoser) Option {
	return func(c *Client) { c.diagnoser = d }
}

// WithHTTPClient replaces the underlying HTTP client. Timeouts from Config
// other than the idle-read timeout are then the caller's responsibility.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client is an llm.Transport over net/http. The response body is never
// buffered; it is returned as soon as headers arrive.
type Client struct {
	cfg        Config
	httpClient *http.Client
	diagnoser  Diagnoser
	logger     *zap.Logger
}

// New creates a Client.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		logger: logger,
	}
	c.httpClient = &http.Client{Transport: newHTTPTransport(cfg)}
	if cfg.DiagnoseOllama {
		c.diagnoser = NewOllamaDiagnoser(logger)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil || cfg.WriteTimeout <= 0 {
				return conn, err
			}
			return &writeDeadlineConn{Conn: conn, timeout: cfg.WriteTimeout}, nil
		},
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}
}

// Send POSTs body to target and returns the response body once a 2xx
// status arrives. The caller must close the returned body. Closing it, or
// cancelling ctx, tears down the connection.
//
// Errors are *llm.ConfigurationError for an unusable URL, *llm.APIError for
// non-2xx responses, ctx.Err() when ctx was cancelled, and
// *llm.NetworkError for everything else.
func (c *Client) Send(ctx context.Context, target llm.Target, body []byte) (io.ReadCloser, error) {
	endpoint := target.URL()
	if err := checkURL(endpoint); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel(nil)
		return nil, llm.NewConfigurationError("base_url", fmt.Sprintf("invalid request URL %q: %v", endpoint, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/json")
	if target.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+target.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel(nil)
		return nil, c.mapError(ctx, target, err)
	}

	c.logger.Debug("response headers received",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel(nil)
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}

	return newIdleReader(reqCtx, resp.Body, c.cfg.ReadTimeout, cancel, target.Kind), nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return llm.NewConfigurationError("base_url", fmt.Sprintf("invalid base URL: %v", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return llm.NewConfigurationError("base_url",
			fmt.Sprintf("base URL %q must start with http:// or https://", raw))
	}
	if u.Host == "" {
		return llm.NewConfigurationError("base_url", fmt.Sprintf("base URL %q has no host", raw))
	}
	return nil
}

// writeDeadlineConn arms a write deadline before every write.
type writeDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *writeDeadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// idleReader cancels the request when no bytes arrive for timeout. It owns
// the request's cancel func and releases it on Close.
type idleReader struct {
	ctx     context.Context
	body    io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelCauseFunc
	kind    llm.Kind
	once    sync.Once
}

func newIdleReader(ctx context.Context, body io.ReadCloser, timeout time.Duration, cancel context.CancelCauseFunc, kind llm.Kind) *idleReader {
	r := &idleReader{
		ctx:     ctx,
		body:    body,
		timeout: timeout,
		cancel:  cancel,
		kind:    kind,
	}
	if timeout > 0 {
		r.timer = time.AfterFunc(timeout, func() { cancel(ErrReadIdle) })
	}
	return r
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if n > 0 && r.timer != nil {
		r.timer.Reset(r.timeout)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		if cause := context.Cause(r.ctx); errors.Is(cause, ErrReadIdle) {
			err = &llm.NetworkError{Kind: r.kind, Err: ErrReadIdle}
		}
	}
	return n, err
}

func (r *idleReader) Close() error {
	var err error
	r.once.Do(func() {
		if r.timer != nil {
			r.timer.Stop()
		}
		err = r.body.Close()
		r.cancel(nil)
	})
	return err
}
