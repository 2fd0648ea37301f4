// File: internal/portal/bridge.go
package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBridgeTimeout is returned by Await when no navigation response arrives
// within the configured window.
var ErrBridgeTimeout = errors.New("timed out waiting for navigation response")

// DefaultBridgeTimeout bounds how long the run waits for the first
// authenticated navigation exchange after login.
const DefaultBridgeTimeout = 30 * time.Second

// Bridge is a one-shot future carrying the first navigation response body
// from the browser observers to the pipeline. It resolves at most once; all
// later Resolve and Fail calls are no-ops, so the first response wins.
type Bridge struct {
	once    sync.Once
	done    chan struct{}
	timeout time.Duration

	body []byte
	err  error
}

// NewBridge creates an unresolved bridge. A non-positive timeout falls back
// to DefaultBridgeTimeout.
func NewBridge(timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultBridgeTimeout
	}
	return &Bridge{
		done:    make(chan struct{}),
		timeout: timeout,
	}
}

// Resolve completes the bridge with the navigation response body. Returns
// true if this call was the resolving one.
func (b *Bridge) Resolve(body []byte) bool {
	resolved := false
	b.once.Do(func() {
		b.body = body
		close(b.done)
		resolved = true
	})
	return resolved
}

// Fail completes the bridge with an error, typically a response-body read
// failure. A failed bridge is terminal for the whole run.
func (b *Bridge) Fail(err error) bool {
	resolved := false
	b.once.Do(func() {
		b.err = err
		close(b.done)
		resolved = true
	})
	return resolved
}

// Resolved reports whether the bridge has completed, successfully or not.
func (b *Bridge) Resolved() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Await blocks until the bridge resolves, the timeout elapses, or the context
// is cancelled. Timeout returns ErrBridgeTimeout.
func (b *Bridge) Await(ctx context.Context) ([]byte, error) {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-b.done:
		if b.err != nil {
			return nil, fmt.Errorf("navigation response capture failed: %w", b.err)
		}
		return b.body, nil
	case <-timer.C:
		return nil, ErrBridgeTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
