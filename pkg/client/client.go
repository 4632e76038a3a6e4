// Package client provides the Go SDK for the projection service.
//
// A Client opens a session on creation and transparently reopens it when
// the server reports an expired or revoked token, so long-lived callers
// never deal with session lifecycles themselves.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opaque/principal/api/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Config holds client configuration.
type Config struct {
	// Address of the gRPC endpoint, host:port.
	Address string

	// APIKey used to open and reopen sessions.
	APIKey string

	// Credentials for transport security. Nil uses a plaintext connection.
	Credentials credentials.TransportCredentials

	// DialOptions are appended to the defaults, mainly for tests.
	DialOptions []grpc.DialOption
}

// Client is a handle to a remote projection service.
type Client struct {
	cfg  Config
	conn *grpc.ClientConn
	rpc  wire.ProjectionClient

	mu     sync.RWMutex
	token  string
	expiry time.Time
}

// New connects to the service and opens a session.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("client: address is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("client: api key is required")
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.Name)),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("client: connect failed: %w", err)
	}

	c := &Client{
		cfg:  cfg,
		conn: conn,
		rpc:  wire.NewProjectionClient(conn),
	}
	if err := c.login(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Close tears down the connection. The session is left to expire.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// IsSessionExpired reports whether the session token has passed its expiry.
func (c *Client) IsSessionExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().After(c.expiry)
}

// Refresh rotates the session token. The server accepts a refresh only
// inside the refresh window near expiry.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.rpc.Refresh(ctx, &wire.RefreshRequest{Token: c.token})
	if err != nil {
		return err
	}
	c.token = resp.Token
	c.expiry = resp.ExpiresAt
	return nil
}

// login opens a fresh session with the configured API key.
func (c *Client) login(ctx context.Context) error {
	resp, err := c.rpc.Login(ctx, &wire.LoginRequest{APIKey: c.cfg.APIKey})
	if err != nil {
		return fmt.Errorf("client: login failed: %w", err)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.expiry = resp.ExpiresAt
	c.mu.Unlock()
	return nil
}

// call runs fn with the current token, reopening the session once if the
// server rejects it.
func (c *Client) call(ctx context.Context, fn func(token string) error) error {
	err := fn(c.Token())
	if status.Code(err) != codes.Unauthenticated {
		return err
	}
	if err := c.login(ctx); err != nil {
		return err
	}
	return fn(c.Token())
}

// Fit trains a model on rows and stores it under name. Components 0 keeps
// the full basis. Refit replaces an existing model of the same name.
func (c *Client) Fit(ctx context.Context, name string, rows [][]float64, components int, refit bool) (*wire.ModelInfoReply, error) {
	var out *wire.FitReply
	err := c.call(ctx, func(token string) error {
		var err error
		out, err = c.rpc.Fit(ctx, &wire.FitRequest{
			Token:      token,
			Name:       name,
			Rows:       rows,
			Components: components,
			Refit:      refit,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out.Model, nil
}

// Transform projects rows with the named model.
func (c *Client) Transform(ctx context.Context, name string, rows [][]float64) ([][]float64, error) {
	var out *wire.MatrixReply
	err := c.call(ctx, func(token string) error {
		var err error
		out, err = c.rpc.Transform(ctx, &wire.TransformRequest{Token: token, Name: name, Rows: rows})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// TransformStream projects rows with the named model, receiving the result
// row by row. The assembled matrix preserves input order.
func (c *Client) TransformStream(ctx context.Context, name string, rows [][]float64) ([][]float64, error) {
	result := make([][]float64, len(rows))
	err := c.call(ctx, func(token string) error {
		stream, err := c.rpc.TransformStream(ctx, &wire.TransformRequest{Token: token, Name: name, Rows: rows})
		if err != nil {
			return err
		}
		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if chunk.Index < 0 || chunk.Index >= len(result) {
				return fmt.Errorf("client: stream returned row %d for a %d-row request", chunk.Index, len(rows))
			}
			result[chunk.Index] = chunk.Row
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// InverseTransform maps projected rows back to the original feature space.
func (c *Client) InverseTransform(ctx context.Context, name string, rows [][]float64) ([][]float64, error) {
	var out *wire.MatrixReply
	err := c.call(ctx, func(token string) error {
		var err error
		out, err = c.rpc.InverseTransform(ctx, &wire.TransformRequest{Token: token, Name: name, Rows: rows})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// ReconstructionError reports the mean squared reconstruction error of rows
// under the named model.
func (c *Client) ReconstructionError(ctx context.Context, name string, rows [][]float64) (float64, error) {
	var out *wire.ScalarReply
	err := c.call(ctx, func(token string) error {
		var err error
		out, err = c.rpc.ReconstructionError(ctx, &wire.TransformRequest{Token: token, Name: name, Rows: rows})
		return err
	})
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

// Cumsum returns the cumulative explained-variance ratios of the named model.
func (c *Client) Cumsum(ctx context.Context, name string) ([]float64, error) {
	var out *wire.VectorReply
	err := c.call(ctx, func(token string) error {
		var err error
		out, err = c.rpc.Cumsum(ctx, &wire.CumsumRequest{Token: token, Name: name})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Values, nil
}

// Describe returns the stored info of the named model.
func (c *Client) Describe(ctx context.Context, name string) (*wire.ModelInfoReply, error) {
	var out *wire.ModelInfoReply
	err := c.call(ctx, func(token string) error {
		var err error
		out, err = c.rpc.Describe(ctx, &wire.DescribeRequest{Token: token, Name: name})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns info for every stored model, in name order.
func (c *Client) List(ctx context.Context) ([]wire.ModelInfoReply, error) {
	var out *wire.ListReply
	err := c.call(ctx, func(token string) error {
		var err error
		out, err = c.rpc.List(ctx, &wire.ListRequest{Token: token})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Models, nil
}

// Delete removes the named model.
func (c *Client) Delete(ctx context.Context, name string) error {
	return c.call(ctx, func(token string) error {
		_, err := c.rpc.Delete(ctx, &wire.DeleteRequest{Token: token, Name: name})
		return err
	})
}
