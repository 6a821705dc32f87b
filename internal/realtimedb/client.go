package realtimedb

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"firebase.google.com/go/db"
	"github.com/avast/retry-go"
	"github.com/pawbridge/console-backend/internal/logging"
)

// Client to interact with Firebase Realtime DB. Every call is bounded by the configured timeout.
type Client struct {
	db           *db.Client
	timeout      time.Duration
	pollInterval time.Duration
}

// NewClient creates Realtime DB client.
func NewClient(dbClient *db.Client, timeout, pollInterval time.Duration) *Client {
	return &Client{db: dbClient, timeout: timeout, pollInterval: pollInterval}
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Get reads the value at path. Timeouts and network errors are retried.
func (c *Client) Get(ctx context.Context, path string) (Snapshot, error) {
	var raw json.RawMessage

	err := retry.Do(
		func() error {
			ctx, cancel := c.bounded(ctx)
			defer cancel()
			return c.db.NewRef(path).Get(ctx, &raw)
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && isTransient(err)
		}),
	)
	if err != nil {
		return Snapshot{}, err
	}

	return NewSnapshot(path, raw), nil
}

// Set overwrites the value at path.
func (c *Client) Set(ctx context.Context, path string, v interface{}) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.db.NewRef(path).Set(ctx, v)
}

// Update merges fields into path.
func (c *Client) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.db.NewRef(path).Update(ctx, fields)
}

// Push appends v under a generated key.
func (c *Client) Push(ctx context.Context, path string, v interface{}) (string, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	ref, err := c.db.NewRef(path).Push(ctx, v)
	if err != nil {
		return "", err
	}
	return ref.Key, nil
}

// Remove deletes path.
func (c *Client) Remove(ctx context.Context, path string) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.db.NewRef(path).Delete(ctx)
}

// RunTransaction runs f in a transaction at given path in Realtime DB
func (c *Client) RunTransaction(ctx context.Context, path string, f UpdateFn) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.db.NewRef(path).Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		return f(tn)
	})
}

// Subscribe polls path with conditional (ETag) reads and calls fn whenever the value changes.
func (c *Client) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error) {
	ref := c.db.NewRef(path)

	var raw json.RawMessage
	first, cancelFirst := c.bounded(ctx)
	etag, err := ref.GetWithETag(first, &raw)
	cancelFirst()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &poller{cancel: cancel}

	fn(NewSnapshot(path, raw))

	go func() {
		logger := logging.FromContext(ctx).Named("realtimedb.poller")
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			var value json.RawMessage
			pollCtx, cancelPoll := c.bounded(ctx)
			changed, newTag, err := ref.GetIfChanged(pollCtx, etag, &value)
			cancelPoll()

			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("Polling %v failed: %v", path, err)
				}
				continue
			}
			if !changed || p.detached() {
				continue
			}

			etag = newTag
			fn(NewSnapshot(path, value))
		}
	}()

	return p, nil
}

type poller struct {
	cancel context.CancelFunc
	done   int32
}

func (p *poller) Detach() {
	if atomic.CompareAndSwapInt32(&p.done, 0, 1) {
		p.cancel()
	}
}

func (p *poller) detached() bool {
	return atomic.LoadInt32(&p.done) == 1
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
