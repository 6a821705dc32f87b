package functions

import (
	"context"
	"net/http"
	"sync"

	"github.com/pawbridge/console-backend/internal/app"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/pubsub"
	"github.com/pawbridge/console-backend/internal/utils"
)

var (
	consoleOnce sync.Once
	console     *app.App
	consoleErr  error

	handlerOnce sync.Once
	handler     http.Handler
)

// Functions share one console per instance. Views are attached only by Console.
func load(ctx context.Context) (*app.App, error) {
	consoleOnce.Do(func() {
		var config *utils.Config
		if config, consoleErr = utils.LoadConfig(ctx); consoleErr != nil {
			return
		}
		console, consoleErr = app.New(ctx, config)
	})
	return console, consoleErr
}

// Console serves the whole console API.
func Console(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := load(ctx)
	if err != nil {
		logging.FromContext(ctx).Errorf("Could not create console: %v", err)
		http.Error(w, "Could not start console", http.StatusInternalServerError)
		return
	}
	if err := c.Start(context.Background()); err != nil {
		logging.FromContext(ctx).Errorf("Could not attach views: %v", err)
		http.Error(w, "Could not start console", http.StatusInternalServerError)
		return
	}

	handlerOnce.Do(func() {
		handler = c.Handler()
	})
	handler.ServeHTTP(w, r)
}

// RemindExpiring RemindExpiring handler, invoked by Cloud Scheduler.
func RemindExpiring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := load(ctx)
	if err != nil {
		logging.FromContext(ctx).Errorf("Could not create console: %v", err)
		http.Error(w, "Could not start console", http.StatusInternalServerError)
		return
	}

	c.Subscriptions.HandleRemindExpiring(w, r)
}

// StatusChangedAftermath StatusChangedAftermath handler.
func StatusChangedAftermath(ctx context.Context, m pubsub.Message) error {
	c, err := load(ctx)
	if err != nil {
		return err
	}
	return c.Aftermath.Handle(ctx, m)
}
