package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrDuplicate is returned by Append when the entry was already stored.
var ErrDuplicate = fmt.Errorf("audit entry already stored")

// Storer is an audit log abstraction layer interface
type Storer interface {
	Append(ctx context.Context, entry structs.StatusChanged) error
	Recent(ctx context.Context, limit int) ([]structs.StatusChanged, error)
}

type auditDoc struct {
	Collection string `firestore:"collection"`
	RecordID   string `firestore:"recordId"`
	From       string `firestore:"from"`
	To         string `firestore:"to"`
	ActorUID   string `firestore:"actorUid"`
	ActorRole  string `firestore:"actorRole"`
	At         int64  `firestore:"at"`
}

// Client to interact with the Firestore audit log
type Client struct {
	client *firestore.Client
}

// NewClient creates audit log client.
func NewClient(client *firestore.Client) *Client {
	return &Client{client: client}
}

// Append stores entry under its event id. Redelivered events yield ErrDuplicate.
func (c *Client) Append(ctx context.Context, entry structs.StatusChanged) error {
	doc := auditDoc{
		Collection: entry.Collection,
		RecordID:   entry.RecordID,
		From:       entry.From,
		To:         entry.To,
		ActorUID:   entry.ActorUID,
		ActorRole:  entry.ActorRole,
		At:         entry.At,
	}

	_, err := c.client.Collection(constants.CollectionAuditLog).Doc(entry.EventID).Create(ctx, doc)
	if status.Code(err) == codes.AlreadyExists {
		return ErrDuplicate
	}
	return err
}

// Recent returns up to limit newest entries.
func (c *Client) Recent(ctx context.Context, limit int) ([]structs.StatusChanged, error) {
	iter := c.client.Collection(constants.CollectionAuditLog).OrderBy("at", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	entries := []structs.StatusChanged{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var doc auditDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding audit entry %v: %w", snap.Ref.ID, err)
		}
		entries = append(entries, structs.StatusChanged{
			EventID:    snap.Ref.ID,
			Collection: doc.Collection,
			RecordID:   doc.RecordID,
			From:       doc.From,
			To:         doc.To,
			ActorUID:   doc.ActorUID,
			ActorRole:  doc.ActorRole,
			At:         doc.At,
		})
	}

	return entries, nil
}

// MockClient keeps the audit log in memory, for unit tests and local runs
type MockClient struct {
	mu      sync.Mutex
	entries map[string]structs.StatusChanged
	Err     error
}

// Append stores entry.
func (c *MockClient) Append(ctx context.Context, entry structs.StatusChanged) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return c.Err
	}
	if c.entries == nil {
		c.entries = map[string]structs.StatusChanged{}
	}
	if _, ok := c.entries[entry.EventID]; ok {
		return ErrDuplicate
	}
	c.entries[entry.EventID] = entry
	return nil
}

// Recent returns up to limit newest entries.
func (c *MockClient) Recent(ctx context.Context, limit int) ([]structs.StatusChanged, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}

	entries := make([]structs.StatusChanged, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].At != entries[j].At {
			return entries[i].At > entries[j].At
		}
		return entries[i].EventID > entries[j].EventID
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
