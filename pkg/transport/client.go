// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package transport

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/optimistic"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client talks to the progression service. It serves as the optimistic session's remote and change feed.
type Client struct {
	conn *grpc.ClientConn
}

var (
	_ optimistic.Remote     = (*Client)(nil)
	_ optimistic.ChangeFeed = (*Client)(nil)
)

// Dial connects to the progression service at target.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithStatsHandler(otelgrpc.NewClientHandler())}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ApplyDelta sends one field-delta write.
func (c *Client) ApplyDelta(ctx context.Context, userID string, delta progression.Delta) error {
	req := &ApplyDeltaRequest{UserID: userID, Delta: delta}
	err := c.conn.Invoke(ctx, applyDeltaMethod, req, new(ApplyDeltaResponse), grpc.CallContentSubtype(codecName))
	return fromStatus(err)
}

// Get returns the persisted progression together with the flag marker.
func (c *Client) Get(ctx context.Context, userID string) (*ProgressionResponse, error) {
	out := new(ProgressionResponse)
	err := c.conn.Invoke(ctx, getProgressionMethod, &GetProgressionRequest{UserID: userID}, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

// Load returns the persisted progression.
func (c *Client) Load(ctx context.Context, userID string) (progression.State, error) {
	resp, err := c.Get(ctx, userID)
	if err != nil {
		return progression.State{}, err
	}
	return resp.Progression, nil
}

// Watch subscribes to change notifications. It returns once the server confirmed the subscription.
func (c *Client) Watch(ctx context.Context, userID string) (<-chan struct{}, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], watchProgressionMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, fromStatus(err)
	}
	if err := stream.SendMsg(&WatchProgressionRequest{UserID: userID}); err != nil {
		return nil, fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fromStatus(err)
	}

	var first ProgressionChanged
	if err := stream.RecvMsg(&first); err != nil {
		return nil, fromStatus(err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			var msg ProgressionChanged
			if err := stream.RecvMsg(&msg); err != nil {
				return
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out, nil
}

// fromStatus turns rejected input back into the domain error.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.InvalidArgument {
		return fmt.Errorf("%w: %s", progression.ErrInvalidDelta, st.Message())
	}
	return err
}
