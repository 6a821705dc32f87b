package messaging

import (
	"context"
	"sync"

	"firebase.google.com/go/messaging"
)

//PushSender Interface for FB messaging client
type PushSender interface {
	Send(ctx context.Context, msg *messaging.Message) error
}

//Client Real implementation of FB messaging client
type Client struct {
	messaging *messaging.Client
}

//NewClient Creates messaging client.
func NewClient(client *messaging.Client) *Client {
	return &Client{messaging: client}
}

//Send Sends the message
func (c *Client) Send(ctx context.Context, msg *messaging.Message) error {
	_, err := c.messaging.Send(ctx, msg)
	return err
}

//MockClient Keeps sent messages in memory.
type MockClient struct {
	mu   sync.Mutex
	Sent []*messaging.Message
	Err  error
}

//Send Records the message
func (c *MockClient) Send(ctx context.Context, msg *messaging.Message) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, msg)
	return nil
}
