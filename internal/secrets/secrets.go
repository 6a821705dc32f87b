package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"github.com/pawbridge/console-backend/internal/logging"
	secretmanagerpb "google.golang.org/genproto/googleapis/cloud/secretmanager/v1"
)

//Manager is an abstraction over Secret Manager
type Manager interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

//Client Real Secrets Manager client.
type Client struct {
	client    *secretmanager.Client
	projectID string
}

//NewClient Creates Secret Manager client for the project.
func NewClient(ctx context.Context, projectID string) (*Client, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, projectID: projectID}, nil
}

//Get Gets value of specified secret.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	var logger = logging.FromContext(ctx).Named("secrets.Get")

	logger.Debugf("Accessing secret '%v'", name)

	var req = secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%v/secrets/%v/versions/latest", c.projectID, name),
	}

	secret, err := c.client.AccessSecretVersion(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to get secret value: %w", err)
	}

	return secret.GetPayload().GetData(), nil
}

//MockClient Static Secrets Manager client.
type MockClient struct {
	Values map[string]string
}

//Get Gets value of specified secret.
func (c MockClient) Get(ctx context.Context, name string) ([]byte, error) {
	if v, ok := c.Values[name]; ok {
		return []byte(v), nil
	}
	return []byte("mock42"), nil
}
