package realtimedb

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// RealtimeDB is a Realtime DB abstraction layer interface
type RealtimeDB interface {
	// Get reads the current value at path once.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Subscribe calls fn with the full value at path now and after every change under it, until detached.
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error)
	// Set overwrites the value at path.
	Set(ctx context.Context, path string, v interface{}) error
	// Update merges the named children of path. Keys may be nested paths.
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Push appends v under a new chronologically ordered key and returns the key.
	Push(ctx context.Context, path string, v interface{}) (string, error)
	// Remove deletes the value at path.
	Remove(ctx context.Context, path string) error
	// RunTransaction runs f in a transaction at given path.
	RunTransaction(ctx context.Context, path string, f UpdateFn) error
}

// Subscription is a handle of a continuous listener.
type Subscription interface {
	Detach()
}

// TransactionNode is the value of a path as seen by a transaction.
type TransactionNode interface {
	Unmarshal(v interface{}) error
}

// UpdateFn computes a new value from the current one. Returning an error aborts the transaction.
type UpdateFn func(TransactionNode) (interface{}, error)

// ServerTimestamp is replaced by the server time (epoch ms) when written.
var ServerTimestamp = map[string]interface{}{".sv": "timestamp"}

// Increment atomically adds delta to the number stored at path.
func Increment(ctx context.Context, db RealtimeDB, path string, delta float64) error {
	return db.RunTransaction(ctx, path, func(tn TransactionNode) (interface{}, error) {
		var current float64
		if err := tn.Unmarshal(&current); err != nil {
			return nil, err
		}
		return current + delta, nil
	})
}

// Join joins path segments with '/'.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Snapshot is the value of a path at one point in time.
type Snapshot struct {
	Key string
	raw json.RawMessage
}

// Child is one keyed child of a snapshot.
type Child struct {
	Key      string
	Snapshot Snapshot
}

// NewSnapshot wraps raw JSON value of path.
func NewSnapshot(path string, raw []byte) Snapshot {
	key := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		key = path[i+1:]
	}
	return Snapshot{Key: key, raw: raw}
}

// Exists reports whether there is any value.
func (s Snapshot) Exists() bool {
	trimmed := bytes.TrimSpace(s.raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Raw returns the JSON value.
func (s Snapshot) Raw() json.RawMessage {
	return s.raw
}

// Unmarshal decodes the value into v. Missing value leaves v untouched.
func (s Snapshot) Unmarshal(v interface{}) error {
	if !s.Exists() {
		return nil
	}
	return json.Unmarshal(s.raw, v)
}

// Children returns the children ordered by key the way the database orders them.
func (s Snapshot) Children() ([]Child, error) {
	if !s.Exists() {
		return nil, nil
	}

	trimmed := bytes.TrimSpace(s.raw)
	var children []Child

	switch trimmed[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, err
		}
		for k, v := range m {
			children = append(children, Child{Key: k, Snapshot: Snapshot{Key: k, raw: v}})
		}
	case '[':
		// sequential numeric keys come back as an array
		var a []json.RawMessage
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return nil, err
		}
		for i, v := range a {
			k := strconv.Itoa(i)
			children = append(children, Child{Key: k, Snapshot: Snapshot{Key: k, raw: v}})
		}
	default:
		return nil, nil
	}

	filtered := children[:0]
	for _, c := range children {
		if c.Snapshot.Exists() {
			filtered = append(filtered, c)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return KeyLess(filtered[i].Key, filtered[j].Key)
	})

	return filtered, nil
}

// KeyLess orders keys: integer keys first (numerically), then strings lexicographically.
func KeyLess(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}
