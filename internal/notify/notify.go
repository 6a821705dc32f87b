// Package notify fans notifications out to per-recipient inboxes.
package notify

import (
	"context"
	"fmt"
	"sort"

	fbmessaging "firebase.google.com/go/messaging"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/messaging"
	"github.com/pawbridge/console-backend/internal/metrics"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/utils/errors"
)

// Recipient identifies an inbox: {collection}/{uid}.
type Recipient struct {
	Collection string `json:"collection"`
	UID        string `json:"uid"`
}

// Citizen inbox of a user.
func Citizen(uid string) Recipient {
	return Recipient{Collection: constants.CollectionNotifications, UID: uid}
}

// Organization inbox of an organization.
func Organization(uid string) Recipient {
	return Recipient{Collection: constants.CollectionOrgNotifications, UID: uid}
}

func (r Recipient) path(children ...string) string {
	return realtimedb.Join(append([]string{r.Collection, r.UID}, children...)...)
}

// Topic is the FCM topic the recipient's devices subscribe to.
func (r Recipient) Topic() string {
	return "notifications-" + r.UID
}

// Entry is a stored notification.
type Entry struct {
	ID string `json:"id"`
	structs.Notification
}

// Inbox of a recipient, newest first.
type Inbox struct {
	Entries     []Entry `json:"entries"`
	UnreadCount int     `json:"unreadCount"`
	Unread      int     `json:"unread"`
	Drift       bool    `json:"drift"`
}

// Notifier writes notification entries and maintains unread counters.
type Notifier struct {
	db   realtimedb.RealtimeDB
	push messaging.PushSender
}

// NewNotifier creates notifier. push may be nil.
func NewNotifier(db realtimedb.RealtimeDB, push messaging.PushSender) *Notifier {
	return &Notifier{db: db, push: push}
}

// Send appends an unread entry to the recipient's inbox and increments the unread counter.
// The entry is kept even when the increment fails.
func (n *Notifier) Send(ctx context.Context, r Recipient, title, message string) (string, error) {
	logger := logging.FromContext(ctx).Named("notify.Send")

	key, err := n.db.Push(ctx, r.path(constants.SubCollectionEntries), map[string]interface{}{
		"title":     title,
		"message":   message,
		"timestamp": realtimedb.ServerTimestamp,
		"read":      false,
	})
	if err != nil {
		return "", errors.Remote("writing notification", err)
	}

	counterOK := true
	if err := realtimedb.Increment(ctx, n.db, r.path(constants.FieldUnreadCount), 1); err != nil {
		counterOK = false
		logger.Warnf("Notification %v/%v written but unread counter not incremented: %v", r.path(), key, err)
	}
	metrics.NotificationSent(r.Collection, counterOK)

	if n.push != nil {
		msg := &fbmessaging.Message{
			Topic:        r.Topic(),
			Notification: &fbmessaging.Notification{Title: title, Body: message},
			Data:         map[string]string{"notificationId": key, "collection": r.Collection},
		}
		if err := n.push.Send(ctx, msg); err != nil {
			logger.Warnf("Could not send push for %v: %v", r.path(), err)
		}
	}

	logger.Debugf("Sent notification %v to %v", key, r.path())

	return key, nil
}

// List reads the recipient's inbox.
func (n *Notifier) List(ctx context.Context, r Recipient) (*Inbox, error) {
	snap, err := n.db.Get(ctx, r.path())
	if err != nil {
		return nil, errors.Remote("reading notifications", err)
	}

	var node struct {
		Entries     map[string]structs.Notification `json:"entries"`
		UnreadCount int                             `json:"unreadCount"`
	}
	if err := snap.Unmarshal(&node); err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}

	inbox := Inbox{Entries: []Entry{}, UnreadCount: node.UnreadCount}
	for id, e := range node.Entries {
		inbox.Entries = append(inbox.Entries, Entry{ID: id, Notification: e})
		if !e.Read {
			inbox.Unread++
		}
	}
	sort.SliceStable(inbox.Entries, func(i, j int) bool {
		a, b := inbox.Entries[i], inbox.Entries[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return realtimedb.KeyLess(b.ID, a.ID)
	})
	inbox.Drift = inbox.Unread != inbox.UnreadCount

	return &inbox, nil
}

// MarkRead marks entry read and decrements the counter when the flag actually flipped.
func (n *Notifier) MarkRead(ctx context.Context, r Recipient, id string) error {
	logger := logging.FromContext(ctx).Named("notify.MarkRead")

	entryPath := r.path(constants.SubCollectionEntries, id)

	snap, err := n.db.Get(ctx, entryPath)
	if err != nil {
		return errors.Remote("reading notification", err)
	}
	if !snap.Exists() {
		return &errors.NotFoundError{Msg: "notification not found"}
	}

	flipped := false
	err = n.db.RunTransaction(ctx, realtimedb.Join(entryPath, "read"), func(tn realtimedb.TransactionNode) (interface{}, error) {
		var read bool
		if err := tn.Unmarshal(&read); err != nil {
			return nil, err
		}
		flipped = !read
		return true, nil
	})
	if err != nil {
		return errors.Remote("marking notification read", err)
	}

	if !flipped {
		return nil
	}

	err = n.db.RunTransaction(ctx, r.path(constants.FieldUnreadCount), func(tn realtimedb.TransactionNode) (interface{}, error) {
		var count float64
		if err := tn.Unmarshal(&count); err != nil {
			return nil, err
		}
		if count <= 1 {
			return 0, nil
		}
		return count - 1, nil
	})
	if err != nil {
		logger.Warnf("Notification %v read but unread counter not decremented: %v", entryPath, err)
	}

	return nil
}

// Reconcile recomputes the unread counter from unread entries, atomically over the whole inbox node.
func (n *Notifier) Reconcile(ctx context.Context, r Recipient) (int, error) {
	var unread int

	err := n.db.RunTransaction(ctx, r.path(), func(tn realtimedb.TransactionNode) (interface{}, error) {
		var node map[string]interface{}
		if err := tn.Unmarshal(&node); err != nil {
			return nil, err
		}
		if node == nil {
			unread = 0
			return nil, nil
		}

		unread = 0
		if entries, ok := node[constants.SubCollectionEntries].(map[string]interface{}); ok {
			for _, e := range entries {
				if entry, ok := e.(map[string]interface{}); ok && entry["read"] != true {
					unread++
				}
			}
		}
		node[constants.FieldUnreadCount] = unread
		return node, nil
	})
	if err != nil {
		return 0, errors.Remote("reconciling notifications", err)
	}

	return unread, nil
}
