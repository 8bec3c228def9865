package sidecar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultMaxMessageSize = 64 * 1024 * 1024
	defaultTimeout        = 30 * time.Second
)

var ErrNotConfigured = errors.New("sidecar address not configured")

type BackoffConfig struct {
	Initial     time.Duration
	MaxAttempts int
	MaxDelay    time.Duration
}

type Config struct {
	Address        string
	Token          string
	TLSCreds       credentials.TransportCredentials
	Backoff        BackoffConfig
	MaxMessageSize int
	Timeout        time.Duration
	DialOptions    []grpc.DialOption
}

// Client issues unary calls whose request and response bodies are
// google.protobuf.Struct messages.
type Client struct {
	addr    string
	conn    *grpc.ClientConn
	token   string
	backoff BackoffConfig
	timeout time.Duration
	calls   atomic.Uint64
	fails   atomic.Uint64
	logger  *slog.Logger
}

func Dial(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Address == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	var creds grpc.DialOption
	if cfg.TLSCreds != nil {
		creds = grpc.WithTransportCredentials(cfg.TLSCreds)
	} else {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}

	maxMsgSize := cfg.MaxMessageSize
	if maxMsgSize <= 0 {
		maxMsgSize = defaultMaxMessageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := append([]grpc.DialOption{
		creds,
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial sidecar: %w", err)
	}

	return &Client{
		addr:    cfg.Address,
		conn:    conn,
		token:   cfg.Token,
		backoff: normalizeBackoff(cfg.Backoff),
		timeout: timeout,
		logger:  logger.With("component", "sidecar", "address", cfg.Address),
	}, nil
}

// Invoke calls method with fields encoded as a Struct. Unavailable errors are
// retried with exponential backoff up to the configured attempt count.
func (c *Client) Invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	c.calls.Add(1)
	backoff := c.backoff.Initial
	for attempt := 1; ; attempt++ {
		resp, err := c.invokeOnce(ctx, method, req)
		if err == nil {
			return resp, nil
		}
		if status.Code(err) != codes.Unavailable || attempt >= c.backoff.MaxAttempts {
			c.fails.Add(1)
			return nil, fmt.Errorf("%s: %w", method, err)
		}

		c.logger.Warn("sidecar unavailable, retrying",
			"method", method,
			"attempt", attempt,
			"max_attempts", c.backoff.MaxAttempts,
			"error", err)

		select {
		case <-ctx.Done():
			c.fails.Add(1)
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = minDuration(backoff*2, c.backoff.MaxDelay)
	}
}

func (c *Client) invokeOnce(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(c.outgoingContext(ctx), c.timeout)
	defer cancel()

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) outgoingContext(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", fmt.Sprintf("Bearer %s", c.token))
}

func (c *Client) IsConnected() bool {
	s := c.conn.GetState()
	return s == connectivity.Ready || s == connectivity.Idle
}

func (c *Client) State() string {
	return c.conn.GetState().String()
}

func (c *Client) Address() string {
	return c.addr
}

type Stats struct {
	Calls    uint64 `json:"calls"`
	Failures uint64 `json:"failures"`
}

func (c *Client) Stats() Stats {
	return Stats{Calls: c.calls.Load(), Failures: c.fails.Load()}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func normalizeBackoff(cfg BackoffConfig) BackoffConfig {
	if cfg.Initial <= 0 {
		cfg.Initial = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	return cfg
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
