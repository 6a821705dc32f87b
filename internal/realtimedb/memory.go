package realtimedb

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryClient is an in-memory Realtime DB used in tests and in NOOP mode.
// Listeners are called on the writer's goroutine and must not write back synchronously.
type MemoryClient struct {
	mu        sync.Mutex
	root      interface{}
	listeners map[int]*memoryListener
	nextID    int
	seq       uint64
	entropy   *ulid.MonotonicEntropy

	// Now is the server clock used for ServerTimestamp placeholders.
	Now func() time.Time
	// FailPaths makes writes to the listed paths fail with the given error.
	FailPaths map[string]error
	// FailReads makes reads of the listed paths fail with the given error.
	FailReads map[string]error
}

type memoryListener struct {
	mu       sync.Mutex
	path     []string
	fn       func(Snapshot)
	lastSeq  uint64
	detached bool
	owner    *MemoryClient
	id       int
}

type memoryNode struct {
	raw json.RawMessage
}

func (n memoryNode) Unmarshal(v interface{}) error {
	return Snapshot{raw: n.raw}.Unmarshal(v)
}

// NewMemoryClient creates empty in-memory database.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		listeners: map[int]*memoryListener{},
		entropy:   ulid.Monotonic(rand.Reader, 0),
		Now:       time.Now,
	}
}

// Seed loads JSON-compatible value v at path, notifying listeners.
func (m *MemoryClient) Seed(path string, v interface{}) {
	if err := m.Set(context.Background(), path, v); err != nil {
		panic(err)
	}
}

// Get reads the value at path.
func (m *MemoryClient) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailReads[strings.Trim(path, "/")]; ok {
		return Snapshot{}, err
	}

	return NewSnapshot(path, encode(lookup(m.root, split(path)))), nil
}

// Subscribe registers fn for changes under path and calls it with the current value.
func (m *MemoryClient) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.nextID++
	l := &memoryListener{path: split(path), fn: fn, owner: m, id: m.nextID}
	m.listeners[l.id] = l
	m.seq++
	seq := m.seq
	snap := NewSnapshot(path, encode(lookup(m.root, l.path)))
	m.mu.Unlock()

	l.deliver(seq, snap)

	return l, nil
}

// Set overwrites path.
func (m *MemoryClient) Set(ctx context.Context, path string, v interface{}) error {
	return m.write(ctx, path, func(now time.Time) error {
		value, err := normalize(v, now)
		if err != nil {
			return err
		}
		m.root = assign(m.root, split(path), value)
		return nil
	})
}

// Update merges fields into path.
func (m *MemoryClient) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return m.write(ctx, path, func(now time.Time) error {
		for k, v := range fields {
			value, err := normalize(v, now)
			if err != nil {
				return err
			}
			m.root = assign(m.root, split(Join(path, k)), value)
		}
		return nil
	})
}

// Push appends v under a new ULID key.
func (m *MemoryClient) Push(ctx context.Context, path string, v interface{}) (string, error) {
	var key string
	err := m.write(ctx, path, func(now time.Time) error {
		key = ulid.MustNew(ulid.Timestamp(now), m.entropy).String()
		value, err := normalize(v, now)
		if err != nil {
			return err
		}
		m.root = assign(m.root, split(Join(path, key)), value)
		return nil
	})
	return key, err
}

// Remove deletes path.
func (m *MemoryClient) Remove(ctx context.Context, path string) error {
	return m.write(ctx, path, func(time.Time) error {
		m.root = assign(m.root, split(path), nil)
		return nil
	})
}

// RunTransaction runs f atomically against the current value at path.
func (m *MemoryClient) RunTransaction(ctx context.Context, path string, f UpdateFn) error {
	return m.write(ctx, path, func(now time.Time) error {
		segs := split(path)
		result, err := f(memoryNode{raw: encode(lookup(m.root, segs))})
		if err != nil {
			return err
		}
		value, err := normalize(result, now)
		if err != nil {
			return err
		}
		m.root = assign(m.root, segs, value)
		return nil
	})
}

func (m *MemoryClient) write(ctx context.Context, path string, apply func(now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if err, ok := m.FailPaths[strings.Trim(path, "/")]; ok {
		m.mu.Unlock()
		return err
	}

	if err := apply(m.Now()); err != nil {
		m.mu.Unlock()
		return err
	}

	m.seq++
	seq := m.seq
	written := split(path)

	type pending struct {
		l    *memoryListener
		snap Snapshot
	}
	var deliveries []pending
	for _, l := range m.listeners {
		if overlaps(l.path, written) {
			deliveries = append(deliveries, pending{l: l, snap: NewSnapshot(strings.Join(l.path, "/"), encode(lookup(m.root, l.path)))})
		}
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		d.l.deliver(seq, d.snap)
	}

	return nil
}

func (l *memoryListener) deliver(seq uint64, snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detached || seq <= l.lastSeq {
		return
	}
	l.lastSeq = seq
	l.fn(snap)
}

// Detach stops deliveries. Safe to call more than once.
func (l *memoryListener) Detach() {
	l.owner.mu.Lock()
	delete(l.owner.listeners, l.id)
	l.owner.mu.Unlock()

	l.mu.Lock()
	l.detached = true
	l.mu.Unlock()
}

// ListenerCount returns number of attached listeners.
func (m *MemoryClient) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lookup(node interface{}, segs []string) interface{} {
	for _, s := range segs {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = m[s]
	}
	return node
}

// assign sets value at segs, pruning empty parents when value is nil.
func assign(node interface{}, segs []string, value interface{}) interface{} {
	if len(segs) == 0 {
		return value
	}

	m, ok := node.(map[string]interface{})
	if !ok {
		if value == nil {
			return node
		}
		m = map[string]interface{}{}
	}

	child := assign(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}

	if len(m) == 0 {
		return nil
	}
	return m
}

func encode(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

// normalize converts v into plain JSON values and resolves ServerTimestamp placeholders.
func normalize(v interface{}, now time.Time) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var plain interface{}
	if err := json.Unmarshal(b, &plain); err != nil {
		return nil, err
	}

	ms := float64(now.UnixNano() / int64(time.Millisecond))
	return resolve(plain, ms), nil
}

func resolve(v interface{}, ms float64) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if len(t) == 1 && t[".sv"] == "timestamp" {
			return ms
		}
		for k, child := range t {
			resolved := resolve(child, ms)
			if resolved == nil {
				delete(t, k)
			} else {
				t[k] = resolved
			}
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []interface{}:
		m := map[string]interface{}{}
		for i, child := range t {
			if child != nil {
				m[strconv.Itoa(i)] = resolve(child, ms)
			}
		}
		if len(m) == 0 {
			return nil
		}
		return m
	default:
		return v
	}
}
