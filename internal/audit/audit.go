// Package audit publishes status changes and records them into the audit log.
package audit

import (
	"context"
	"encoding/json"
	ers "errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/pubsub"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/store"
	"github.com/pawbridge/console-backend/internal/utils"
)

// Publisher announces successful status transitions on the status-changed topic.
type Publisher struct {
	pub pubsub.EventPublisher
	now utils.Clock
}

// NewPublisher creates publisher. Nil pub disables publishing.
func NewPublisher(pub pubsub.EventPublisher, now utils.Clock) *Publisher {
	if now == nil {
		now = utils.Now
	}
	return &Publisher{pub: pub, now: now}
}

// StatusChanged publishes the event. The transition already happened, so failures are only logged.
func (p *Publisher) StatusChanged(ctx context.Context, collection, recordID, from, to string, actor *session.Identity) {
	logger := logging.FromContext(ctx).Named("audit.StatusChanged")

	if p == nil || p.pub == nil {
		return
	}

	event := structs.StatusChanged{
		EventID:    ulid.Make().String(),
		Collection: collection,
		RecordID:   recordID,
		From:       from,
		To:         to,
		At:         utils.ToMillis(p.now()),
	}
	if actor != nil {
		event.ActorUID = actor.UID
		event.ActorRole = string(actor.Role)
	}

	if err := p.pub.Publish(ctx, constants.TopicStatusChanged, event); err != nil {
		logger.Warnf("Could not publish status change of %v/%v: %v", collection, recordID, err)
		return
	}

	logger.Debugf("Published status change %v/%v %v -> %v", collection, recordID, from, to)
}

// Aftermath consumes status-changed events.
type Aftermath struct {
	store store.Storer
	db    realtimedb.RealtimeDB
}

// NewAftermath creates consumer.
func NewAftermath(s store.Storer, db realtimedb.RealtimeDB) *Aftermath {
	return &Aftermath{store: s, db: db}
}

// Handle appends the event to the audit log and bumps daily and total counters of the target status.
// Redelivered events are not logged or counted twice, but counting left unfinished by an earlier delivery is completed.
func (a *Aftermath) Handle(ctx context.Context, m pubsub.Message) error {
	logger := logging.FromContext(ctx).Named("audit.Aftermath")

	var event structs.StatusChanged
	if err := pubsub.DecodeJSONEvent(m, &event); err != nil {
		return fmt.Errorf("Error while parsing event payload: %v", err)
	}
	if event.EventID == "" || event.Collection == "" || event.To == "" {
		logger.Warnf("Dropping incomplete status change event: %+v", event)
		return nil
	}

	logger.Debugf("Doing status change aftermath for %v/%v", event.Collection, event.RecordID)

	if err := a.store.Append(ctx, event); err != nil {
		if !ers.Is(err, store.ErrDuplicate) {
			logger.Warnf("Cannot record status change due to unknown error: %+v", err.Error())
			return err
		}
		logger.Infof("Status change %v already recorded", event.EventID)
	}

	counted, err := updateCounters(ctx, a.db, event)
	if err != nil {
		logger.Warnf("Cannot update status counters of %v: %+v", event.EventID, err.Error())
		return err
	}
	if !counted {
		logger.Infof("Status change %v already counted", event.EventID)
	}

	logger.Debugf("Status change aftermath done")

	return nil
}

// appliedKey child of a counters node lists the events already counted there.
const appliedKey = "applied"

// CounterPath is the node holding daily and total counters of status in collection.
func CounterPath(collection, status string) string {
	return constants.DbStatusCountersPrefix + realtimedb.Join(collection, strings.ToLower(status))
}

// updateCounters bumps the daily and total counters of the event's target status and marks the event applied,
// all in one write. Returns false when the event was applied before.
func updateCounters(ctx context.Context, db realtimedb.RealtimeDB, event structs.StatusChanged) (bool, error) {
	day := utils.FromMillis(event.At).Format("20060102")

	var counted bool
	err := db.RunTransaction(ctx, CounterPath(event.Collection, event.To), func(tn realtimedb.TransactionNode) (interface{}, error) {
		counted = false

		var node map[string]json.RawMessage
		if err := tn.Unmarshal(&node); err != nil {
			return nil, err
		}
		if node == nil {
			node = map[string]json.RawMessage{}
		}

		applied := map[string]int64{}
		if raw, ok := node[appliedKey]; ok {
			if err := json.Unmarshal(raw, &applied); err != nil {
				return nil, err
			}
		}
		if _, ok := applied[event.EventID]; ok {
			return node, nil
		}

		for _, key := range []string{day, "total"} {
			var state structs.StatusCounter
			if raw, ok := node[key]; ok {
				if err := json.Unmarshal(raw, &state); err != nil {
					return nil, err
				}
			}
			state.Count++

			raw, err := json.Marshal(state)
			if err != nil {
				return nil, err
			}
			node[key] = raw
		}

		applied[event.EventID] = event.At
		raw, err := json.Marshal(applied)
		if err != nil {
			return nil, err
		}
		node[appliedKey] = raw

		counted = true
		return node, nil
	})
	return counted, err
}
