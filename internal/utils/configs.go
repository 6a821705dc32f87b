package utils

import (
	"context"
	"time"

	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/sethvargo/go-envconfig"
)

//NoopBackend Value of FIREBASE_URL / PROJECT_ID which switches to in-memory backends.
const NoopBackend = "NOOP"

//Config Configuration of the console backend.
type Config struct {
	Port          string `env:"PORT, default=8080"`
	FirebaseURL   string `env:"FIREBASE_URL, default=NOOP"`
	ProjectID     string `env:"PROJECT_ID, default=NOOP"`
	StorageBucket string `env:"STORAGE_BUCKET"`
	RedisAddr     string `env:"REDIS_ADDR"`
	LogLevel      string `env:"LOG_LEVEL, default=debug"`

	PollInterval   time.Duration `env:"LISTENER_POLL_INTERVAL, default=2s"`
	RemoteTimeout  time.Duration `env:"REMOTE_TIMEOUT, default=10s"`
	RoleCacheTTL   time.Duration `env:"ROLE_CACHE_TTL, default=5m"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES, default=8388608"`

	EnforceReportOwnership bool `env:"ENFORCE_REPORT_OWNERSHIP, default=true"`
}

//Mocked Whether in-memory backends should be used.
func (c *Config) Mocked() bool {
	return c.FirebaseURL == NoopBackend
}

//LoadConfig Load console config from environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	logger := logging.FromContext(ctx)

	var config Config
	if err := envconfig.Process(ctx, &config); err != nil {
		logger.Debugf("Could not load Config: %v", err)
		return nil, err
	}

	return &config, nil
}
