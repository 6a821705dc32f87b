package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	redisclient "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/pawbridge/console-backend/internal/logging"
)

//ErrNil Returned by Get when the key does not exist.
var ErrNil = redisclient.Nil

//Client Redis client abstraction
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

//Unlocker Held lock.
type Unlocker interface {
	Unlock() (bool, error)
}

//MutexManager Mutex manager over Redis
type MutexManager interface {
	Lock(ctx context.Context, name string, expiry time.Duration) (Unlocker, error)
}

type lazyConnection func(ctx context.Context) (*redisclient.Client, error)

//Connection Lazy Redis connection, established on first use.
type Connection struct {
	inner lazyConnection
}

//NewConnection Creates lazy connection to Redis at addr.
func NewConnection(addr string) *Connection {
	var conn *redisclient.Client
	var connErr error
	var once sync.Once

	return &Connection{
		inner: func(ctx context.Context) (*redisclient.Client, error) {
			once.Do(func() {
				logger := logging.FromContext(ctx).Named("redis.connect")

				logger.Debugf("Connecting to Redis at %v", addr)

				client := redisclient.NewClient(&redisclient.Options{
					Addr: addr,
					DB:   0,
				})

				if _, err := client.Ping(ctx).Result(); err != nil {
					connErr = fmt.Errorf("connection to Redis failed: %w", err)
					logger.Error(connErr)
					return
				}

				logger.Debugf("Connected to Redis at %v", addr)
				conn = client
			})
			return conn, connErr
		},
	}
}

//Get Get value from Redis
func (c *Connection) Get(ctx context.Context, key string) (string, error) {
	client, err := c.inner(ctx)
	if err != nil {
		return "", err
	}
	return client.Get(ctx, key).Result()
}

//Set Set value to Redis. TTL value 0 means forever.
func (c *Connection) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	client, err := c.inner(ctx)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, value, ttl).Err()
}

//SetNX Set value only when the key does not exist yet. Returns whether it was set.
func (c *Connection) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	client, err := c.inner(ctx)
	if err != nil {
		return false, err
	}
	return client.SetNX(ctx, key, value, ttl).Result()
}

//Del Delete key. Missing key is not an error.
func (c *Connection) Del(ctx context.Context, key string) error {
	client, err := c.inner(ctx)
	if err != nil {
		return err
	}
	return client.Del(ctx, key).Err()
}

//Lock Creates locked mutex
func (c *Connection) Lock(ctx context.Context, name string, expiry time.Duration) (Unlocker, error) {
	logger := logging.FromContext(ctx).Named("redis.Lock")

	client, err := c.inner(ctx)
	if err != nil {
		return nil, err
	}

	mutex := redsync.New(goredis.NewPool(client)).NewMutex(name, redsync.WithExpiry(expiry))

	logger.Debugf("Trying to acquire '%v' exclusive lock", name)

	if err := mutex.Lock(); err != nil {
		return nil, err
	}

	return mutex, nil
}

//MemoryClient Process-local stand-in used when Redis is not configured.
type MemoryClient struct {
	mu     sync.Mutex
	values map[string]memoryValue
	locks  map[string]*sync.Mutex
	Now    func() time.Time
}

type memoryValue struct {
	value   string
	expires time.Time
}

//NewMemoryClient -_-
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{values: map[string]memoryValue{}, locks: map[string]*sync.Mutex{}, Now: time.Now}
}

func (m *MemoryClient) live(key string) (memoryValue, bool) {
	v, ok := m.values[key]
	if ok && !v.expires.IsZero() && !m.Now().Before(v.expires) {
		delete(m.values, key)
		return memoryValue{}, false
	}
	return v, ok
}

//Get -_-
func (m *MemoryClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.live(key)
	if !ok {
		return "", ErrNil
	}
	return v.value, nil
}

//Set -_-
func (m *MemoryClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = m.newValue(value, ttl)
	return nil
}

//SetNX -_-
func (m *MemoryClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.values[key] = m.newValue(value, ttl)
	return true, nil
}

//Del -_-
func (m *MemoryClient) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryClient) newValue(value interface{}, ttl time.Duration) memoryValue {
	v := memoryValue{value: fmt.Sprint(value)}
	if ttl > 0 {
		v.expires = m.Now().Add(ttl)
	}
	return v
}

//Lock Blocks until the named process-local lock is acquired.
func (m *MemoryClient) Lock(ctx context.Context, name string, expiry time.Duration) (Unlocker, error) {
	m.mu.Lock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	m.mu.Unlock()

	l.Lock()
	return memoryUnlocker{l}, nil
}

type memoryUnlocker struct {
	l *sync.Mutex
}

func (u memoryUnlocker) Unlock() (bool, error) {
	u.l.Unlock()
	return true, nil
}
