package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/metrics"
	"github.com/pawbridge/console-backend/internal/realtimedb"
)

// Decoder converts one child of the collection into a record value. Failing children are skipped.
type Decoder[T any] func(child realtimedb.Child) (T, error)

// JSONDecoder unmarshals the child value; absent fields stay zero.
func JSONDecoder[T any](child realtimedb.Child) (T, error) {
	var value T
	err := child.Snapshot.Unmarshal(&value)
	return value, err
}

// Live keeps the latest snapshot of a collection and re-evaluates watching queries on every emission.
// It holds exactly one database subscription between Start and Close.
type Live[T any] struct {
	path   string
	db     realtimedb.RealtimeDB
	decode Decoder[T]

	mu       sync.RWMutex
	started  bool
	sub      realtimedb.Subscription
	records  []Record[T]
	byID     map[string]T
	loaded   bool
	version  uint64
	watchers map[int]*watcher
	nextID   int
	ready    chan struct{}
}

type watcher struct {
	mu          sync.Mutex
	lastVersion uint64
	detached    bool
	notify      func(version uint64)
}

// Handle owns a registration; Detach is idempotent.
type Handle struct {
	once   sync.Once
	detach func()
}

// NewHandle wraps detach into a handle.
func NewHandle(detach func()) *Handle {
	return &Handle{detach: detach}
}

// Detach removes the registration.
func (h *Handle) Detach() {
	if h == nil {
		return
	}
	h.once.Do(h.detach)
}

// NewLive creates view over the collection at path. Nil decode means JSONDecoder.
func NewLive[T any](db realtimedb.RealtimeDB, path string, decode Decoder[T]) *Live[T] {
	if decode == nil {
		decode = JSONDecoder[T]
	}
	return &Live[T]{
		path:     path,
		db:       db,
		decode:   decode,
		byID:     map[string]T{},
		watchers: map[int]*watcher{},
		ready:    make(chan struct{}),
	}
}

// Path of the watched collection.
func (l *Live[T]) Path() string {
	return l.path
}

// Start attaches the subscription. Calling it again is a no-op.
func (l *Live[T]) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.mu.Unlock()

	logger := logging.FromContext(ctx).Named("view.Live")

	sub, err := l.db.Subscribe(ctx, l.path, func(s realtimedb.Snapshot) {
		l.apply(ctx, s)
	})
	if err != nil {
		l.mu.Lock()
		l.started = false
		l.mu.Unlock()
		return fmt.Errorf("subscribing to %v: %w", l.path, err)
	}

	l.mu.Lock()
	l.sub = sub
	l.mu.Unlock()

	logger.Debugf("Watching %v", l.path)
	return nil
}

// Close detaches the subscription and all watchers.
func (l *Live[T]) Close() {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.started = false
	watchers := l.watchers
	l.watchers = map[int]*watcher{}
	l.mu.Unlock()

	if sub != nil {
		sub.Detach()
	}
	for _, w := range watchers {
		w.mu.Lock()
		w.detached = true
		w.mu.Unlock()
	}
}

// WaitLoaded blocks until the first snapshot arrives or ctx ends.
func (l *Live[T]) WaitLoaded(ctx context.Context) error {
	select {
	case <-l.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded reports whether a snapshot has been received.
func (l *Live[T]) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Records returns the latest snapshot in emission order. The slice must not be modified.
func (l *Live[T]) Records() []Record[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.records
}

// Lookup returns record by id from the latest snapshot.
func (l *Live[T]) Lookup(id string) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.byID[id]
	return v, ok
}

// Evaluate runs q over the latest snapshot.
func (l *Live[T]) Evaluate(q Query[T]) Result[T] {
	metrics.ViewRendered(l.path)
	return Evaluate(l.Records(), q)
}

// Watch calls render with a full re-evaluation of q now (when loaded) and after every emission.
func (l *Live[T]) Watch(q Query[T], render func(Result[T])) *Handle {
	return l.OnChange(func() {
		render(l.Evaluate(q))
	})
}

// OnChange calls fn now (when loaded) and after every emission.
func (l *Live[T]) OnChange(fn func()) *Handle {
	w := &watcher{}
	w.notify = func(version uint64) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.detached || version <= w.lastVersion {
			return
		}
		w.lastVersion = version
		fn()
	}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.watchers[id] = w
	loaded, version := l.loaded, l.version
	l.mu.Unlock()

	if loaded {
		w.notify(version)
	}

	return &Handle{detach: func() {
		l.mu.Lock()
		delete(l.watchers, id)
		l.mu.Unlock()

		w.mu.Lock()
		w.detached = true
		w.mu.Unlock()
	}}
}

// Source is a live view whose changes can be observed.
type Source interface {
	Loaded() bool
	OnChange(fn func()) *Handle
}

// OnAnyChange calls fn once when all sources are loaded and after every later emission of any of them.
// Calls of fn never overlap.
func OnAnyChange(fn func(), sources ...Source) *Handle {
	var mu sync.Mutex
	registering := true

	ready := func() bool {
		for _, src := range sources {
			if !src.Loaded() {
				return false
			}
		}
		return true
	}
	changed := func() {
		mu.Lock()
		defer mu.Unlock()
		if !registering && ready() {
			fn()
		}
	}

	handles := make([]*Handle, 0, len(sources))
	for _, src := range sources {
		handles = append(handles, src.OnChange(changed))
	}

	mu.Lock()
	registering = false
	if ready() {
		fn()
	}
	mu.Unlock()

	return NewHandle(func() {
		for _, h := range handles {
			h.Detach()
		}
	})
}

// WatcherCount returns number of attached watchers.
func (l *Live[T]) WatcherCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.watchers)
}

func (l *Live[T]) apply(ctx context.Context, s realtimedb.Snapshot) {
	logger := logging.FromContext(ctx).Named("view.Live.apply")

	metrics.SnapshotReceived(l.path)

	children, err := s.Children()
	if err != nil {
		logger.Warnf("Could not read snapshot of %v: %v", l.path, err)
		return
	}

	records := make([]Record[T], 0, len(children))
	byID := make(map[string]T, len(children))
	for _, c := range children {
		value, err := l.decode(c)
		if err != nil {
			logger.Warnf("Skipping %v/%v: %v", l.path, c.Key, err)
			continue
		}
		records = append(records, Record[T]{ID: c.Key, Value: value})
		byID[c.Key] = value
	}

	l.mu.Lock()
	l.records = records
	l.byID = byID
	l.version++
	version := l.version
	if !l.loaded {
		l.loaded = true
		close(l.ready)
	}
	watchers := make([]*watcher, 0, len(l.watchers))
	for _, w := range l.watchers {
		watchers = append(watchers, w)
	}
	l.mu.Unlock()

	for _, w := range watchers {
		w.notify(version)
	}
}
