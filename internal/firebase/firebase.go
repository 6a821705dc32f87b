package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"firebase.google.com/go/db"
	"firebase.google.com/go/messaging"
	"firebase.google.com/go/storage"
	"github.com/pawbridge/console-backend/internal/logging"
)

//Clients Firebase service clients created from one app.
type Clients struct {
	Database  *db.Client
	Firestore *firestore.Client
	Auth      *auth.Client
	Messaging *messaging.Client
	Storage   *storage.Client
}

//Config Firebase app configuration.
type Config struct {
	DatabaseURL   string
	ProjectID     string
	StorageBucket string
}

//New Initializes Firebase app and all its clients.
func New(ctx context.Context, config Config) (*Clients, error) {
	logger := logging.FromContext(ctx).Named("firebase.New")

	conf := &firebase.Config{
		DatabaseURL:   config.DatabaseURL,
		ProjectID:     config.ProjectID,
		StorageBucket: config.StorageBucket,
	}

	app, err := firebase.NewApp(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	var clients Clients

	if clients.Database, err = app.Database(ctx); err != nil {
		return nil, fmt.Errorf("app.Database: %w", err)
	}
	if clients.Firestore, err = app.Firestore(ctx); err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}
	if clients.Auth, err = app.Auth(ctx); err != nil {
		return nil, fmt.Errorf("app.Auth: %w", err)
	}
	if clients.Messaging, err = app.Messaging(ctx); err != nil {
		return nil, fmt.Errorf("app.Messaging: %w", err)
	}
	if clients.Storage, err = app.Storage(ctx); err != nil {
		return nil, fmt.Errorf("app.Storage: %w", err)
	}

	logger.Infof("Firebase initialized for %v", config.DatabaseURL)

	return &clients, nil
}

//Close Closes clients holding connections.
func (c *Clients) Close() error {
	if c.Firestore != nil {
		return c.Firestore.Close()
	}
	return nil
}
