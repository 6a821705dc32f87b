package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"cloud.google.com/go/pubsub"
)

// Message is the payload of a Pub/Sub event.
type Message struct {
	Data []byte `json:"data"`
}

//DecodeJSONEvent Decodes JSON payload of the event into dst.
func DecodeJSONEvent(m Message, dst interface{}) error {
	return json.Unmarshal(m.Data, dst)
}

//EventPublisher is an abstraction over PubSub
type EventPublisher interface {
	Publish(ctx context.Context, topic string, msg interface{}) error
}

//Client Real PubSub client.
type Client struct {
	client *pubsub.Client
}

//NewClient Creates PubSub client for the project.
func NewClient(ctx context.Context, projectID string) (*Client, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

//Publish Publish message to some topic.
func (c *Client) Publish(ctx context.Context, topic string, msg interface{}) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	result := c.client.Topic(topic).Publish(ctx, &pubsub.Message{Data: payload})

	// The Get method blocks until a server-generated ID or
	// an error is returned for the published message.
	_, err = result.Get(ctx)
	return err
}

//Close Closes the client.
func (c *Client) Close() error {
	return c.client.Close()
}

//MockClient PubSub client keeping published messages in memory.
type MockClient struct {
	mu        sync.Mutex
	Published map[string][]Message
	Err       error
}

//Publish Publish message to some topic.
func (c *MockClient) Publish(ctx context.Context, topic string, msg interface{}) error {
	if c.Err != nil {
		return c.Err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Published == nil {
		c.Published = map[string][]Message{}
	}
	c.Published[topic] = append(c.Published[topic], Message{Data: payload})
	return nil
}

//Messages Returns messages published to the topic.
func (c *MockClient) Messages(topic string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.Published[topic]...)
}

//Handler Consumer of a topic.
type Handler func(ctx context.Context, m Message) error

//Loopback Delivers published messages synchronously to in-process handlers. Used instead of PubSub in local runs.
type Loopback struct {
	Handlers map[string]Handler
}

//Publish Publish message to some topic.
func (l *Loopback) Publish(ctx context.Context, topic string, msg interface{}) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	handler, ok := l.Handlers[topic]
	if !ok {
		return nil
	}
	return handler(ctx, Message{Data: payload})
}
