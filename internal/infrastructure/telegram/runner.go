package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/telegram"
)

// runner keeps a client connected in the background.
// client.Run only returns when its callback does, so the callback blocks for the
// whole lifetime of the connection.
type runner struct {
	client *telegram.Client
	cancel context.CancelFunc
	done   chan struct{}
	err    error // written before done is closed
}

// startClient runs client in a goroutine and returns once the connection is ready.
// body runs inside client.Run after the connection is up; its return ends the connection.
func startClient(ctx context.Context, client *telegram.Client, body func(ctx context.Context) error) (*runner, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	r := &runner{
		client: client,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ready := make(chan struct{})
	go func() {
		defer close(r.done)
		r.err = client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			return body(ctx)
		})
	}()

	select {
	case <-ready:
		return r, nil
	case <-r.done:
		cancel()
		if r.err == nil {
			return nil, fmt.Errorf("client stopped before becoming ready")
		}
		return nil, r.err
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// stop cancels the connection and waits for Run to return or ctx to expire
func (r *runner) stop(ctx context.Context) error {
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("client did not stop in time: %w", ctx.Err())
	}
}

// Err returns why the client stopped, nil while it is running
func (r *runner) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}
