package auth

import (
	"context"
	"fmt"
	"sync"

	fbauth "firebase.google.com/go/auth"
)

// Identity is a verified signed-in user.
type Identity struct {
	UID   string
	Email string
}

// Auther is an auth abstraction layer interface
type Auther interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
	RevokeSessions(ctx context.Context, uid string) error
}

// Client to interact with Firebase Auth
type Client struct {
	auth *fbauth.Client
}

// NewClient creates auth client.
func NewClient(client *fbauth.Client) *Client {
	return &Client{auth: client}
}

// VerifyIDToken verifies provided ID token and extracts the identity from it.
func (c *Client) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	token, err := c.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	identity := Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}

	return &identity, nil
}

// RevokeSessions revokes all refresh tokens of the user, i.e. signs them out everywhere.
func (c *Client) RevokeSessions(ctx context.Context, uid string) error {
	return c.auth.RevokeRefreshTokens(ctx, uid)
}

// MockClient mocks auth client functionality for unit tests. Tokens map ID token to identity.
type MockClient struct {
	mu      sync.Mutex
	Tokens  map[string]Identity
	Revoked []string
}

// VerifyIDToken returns identity registered for the token.
func (c *MockClient) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	identity, ok := c.Tokens[idToken]
	if !ok {
		return nil, fmt.Errorf("invalid ID token")
	}
	return &identity, nil
}

// RevokeSessions records revoked uid.
func (c *MockClient) RevokeSessions(ctx context.Context, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Revoked = append(c.Revoked, uid)
	return nil
}
