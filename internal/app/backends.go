package app

import (
	"context"
	"fmt"

	"github.com/pawbridge/console-backend/internal/auth"
	"github.com/pawbridge/console-backend/internal/firebase"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/messaging"
	"github.com/pawbridge/console-backend/internal/pubsub"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/redis"
	"github.com/pawbridge/console-backend/internal/secrets"
	"github.com/pawbridge/console-backend/internal/storage"
	"github.com/pawbridge/console-backend/internal/store"
	"github.com/pawbridge/console-backend/internal/utils"
)

// Backends are the remote services the console talks to.
type Backends struct {
	DB        realtimedb.RealtimeDB
	Auth      auth.Auther
	Push      messaging.PushSender
	Uploader  storage.Uploader
	Store     store.Storer
	Publisher pubsub.EventPublisher
	Secrets   secrets.Manager
	Cache     redis.Client
	Mutex     redis.MutexManager

	// Loopback is set in local runs; status-changed events are delivered through it.
	Loopback *pubsub.Loopback

	closers []func() error
}

// Close releases connections held by the backends.
func (b *Backends) Close() {
	for _, c := range b.closers {
		_ = c()
	}
}

// NewBackends connects to Firebase and Google Cloud, or creates in-memory backends when config is mocked.
func NewBackends(ctx context.Context, config *utils.Config) (*Backends, error) {
	logger := logging.FromContext(ctx).Named("app.NewBackends")

	var b *Backends
	if config.Mocked() {
		logger.Warnf("%v backend configured, using in-memory clients", utils.NoopBackend)
		b = memoryBackends()
	} else {
		var err error
		if b, err = remoteBackends(ctx, config); err != nil {
			return nil, err
		}
	}

	if config.RedisAddr == "" {
		logger.Warnf("REDIS_ADDR not set, using in-memory cache")
		memory := redis.NewMemoryClient()
		b.Cache, b.Mutex = memory, memory
	} else {
		conn := redis.NewConnection(config.RedisAddr)
		b.Cache, b.Mutex = conn, conn
	}

	return b, nil
}

func memoryBackends() *Backends {
	loopback := &pubsub.Loopback{Handlers: map[string]pubsub.Handler{}}

	return &Backends{
		DB:        realtimedb.NewMemoryClient(),
		Auth:      &auth.MockClient{Tokens: map[string]auth.Identity{}},
		Push:      &messaging.MockClient{},
		Uploader:  &storage.MockClient{},
		Store:     &store.MockClient{},
		Publisher: loopback,
		Secrets:   secrets.MockClient{},
		Loopback:  loopback,
	}
}

func remoteBackends(ctx context.Context, config *utils.Config) (*Backends, error) {
	clients, err := firebase.New(ctx, firebase.Config{
		DatabaseURL:   config.FirebaseURL,
		ProjectID:     config.ProjectID,
		StorageBucket: config.StorageBucket,
	})
	if err != nil {
		return nil, err
	}

	uploader, err := storage.NewClient(clients.Storage, config.StorageBucket, config.RemoteTimeout)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}

	publisher, err := pubsub.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}

	secretsManager, err := secrets.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("secrets.NewClient: %w", err)
	}

	return &Backends{
		DB:        realtimedb.NewClient(clients.Database, config.RemoteTimeout, config.PollInterval),
		Auth:      auth.NewClient(clients.Auth),
		Push:      messaging.NewClient(clients.Messaging),
		Uploader:  uploader,
		Store:     store.NewClient(clients.Firestore),
		Publisher: publisher,
		Secrets:   secretsManager,

		closers: []func() error{clients.Close, publisher.Close},
	}, nil
}
