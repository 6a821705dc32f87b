package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/pubsub"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

func clock() time.Time {
	return fixedNow
}

func TestPublishAndAftermath(t *testing.T) {
	ctx := context.Background()
	pub := &pubsub.MockClient{}
	db := realtimedb.NewMemoryClient()
	auditLog := &store.MockClient{}

	NewPublisher(pub, clock).StatusChanged(ctx, constants.CollectionReports, "r1", "PENDING", "IN PROGRESS",
		&session.Identity{UID: "a1", Email: "admin@pawbridge.ph", Role: session.RoleAdmin})

	messages := pub.Messages(constants.TopicStatusChanged)
	require.Len(t, messages, 1)

	var event structs.StatusChanged
	require.NoError(t, pubsub.DecodeJSONEvent(messages[0], &event))
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "a1", event.ActorUID)
	assert.Equal(t, "admin", event.ActorRole)
	assert.Equal(t, fixedNow.UnixNano()/int64(time.Millisecond), event.At)

	aftermath := NewAftermath(auditLog, db)

	require.NoError(t, aftermath.Handle(ctx, messages[0]))
	// redelivery
	require.NoError(t, aftermath.Handle(ctx, messages[0]))

	var daily, total structs.StatusCounter
	snap, err := db.Get(ctx, "statusCounters/reports/in progress/20240309")
	require.NoError(t, err)
	require.NoError(t, snap.Unmarshal(&daily))
	snap, err = db.Get(ctx, "statusCounters/reports/in progress/total")
	require.NoError(t, err)
	require.NoError(t, snap.Unmarshal(&total))

	assert.Equal(t, 1, daily.Count)
	assert.Equal(t, 1, total.Count)

	recent, err := auditLog.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "r1", recent[0].RecordID)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &pubsub.MockClient{Err: fmt.Errorf("topic missing")}

	assert.NotPanics(t, func() {
		NewPublisher(pub, clock).StatusChanged(context.Background(), "reports", "r1", "PENDING", "REJECTED", nil)
	})

	var nilPublisher *Publisher
	assert.NotPanics(t, func() {
		nilPublisher.StatusChanged(context.Background(), "reports", "r1", "PENDING", "REJECTED", nil)
	})
}

func TestAftermathStoreFailure(t *testing.T) {
	aftermath := NewAftermath(&store.MockClient{Err: fmt.Errorf("firestore down")}, realtimedb.NewMemoryClient())

	err := aftermath.Handle(context.Background(), pubsub.Message{Data: []byte(`{"eventId":"e1","collection":"reports","to":"COMPLETED","at":1}`)})

	assert.Error(t, err)
}

func TestAftermathMalformed(t *testing.T) {
	aftermath := NewAftermath(&store.MockClient{}, realtimedb.NewMemoryClient())

	assert.Error(t, aftermath.Handle(context.Background(), pubsub.Message{Data: []byte(`{`)}))
	assert.NoError(t, aftermath.Handle(context.Background(), pubsub.Message{Data: []byte(`{"collection":"reports"}`)}))
}

func TestLoopbackDelivers(t *testing.T) {
	ctx := context.Background()
	db := realtimedb.NewMemoryClient()
	aftermath := NewAftermath(&store.MockClient{}, db)
	bus := &pubsub.Loopback{Handlers: map[string]pubsub.Handler{constants.TopicStatusChanged: aftermath.Handle}}

	NewPublisher(bus, clock).StatusChanged(ctx, "adoptionApplications", "app1", "pending", "approved", nil)

	snap, err := db.Get(ctx, "statusCounters/adoptionApplications/approved/total")
	require.NoError(t, err)
	var total structs.StatusCounter
	require.NoError(t, snap.Unmarshal(&total))
	assert.Equal(t, 1, total.Count)
}

func TestAftermathCompletesCountingOnRedelivery(t *testing.T) {
	ctx := context.Background()
	db := realtimedb.NewMemoryClient()
	auditLog := &store.MockClient{}
	aftermath := NewAftermath(auditLog, db)
	message := pubsub.Message{Data: []byte(`{"eventId":"e1","collection":"reports","recordId":"r1","to":"COMPLETED","at":1710000000000}`)}

	db.FailPaths = map[string]error{"statusCounters/reports/completed": fmt.Errorf("unavailable")}
	require.Error(t, aftermath.Handle(ctx, message))

	db.FailPaths = nil
	require.NoError(t, aftermath.Handle(ctx, message))
	require.NoError(t, aftermath.Handle(ctx, message))

	var daily, total structs.StatusCounter
	snap, err := db.Get(ctx, "statusCounters/reports/completed/20240309")
	require.NoError(t, err)
	require.NoError(t, snap.Unmarshal(&daily))
	snap, err = db.Get(ctx, "statusCounters/reports/completed/total")
	require.NoError(t, err)
	require.NoError(t, snap.Unmarshal(&total))

	assert.Equal(t, 1, daily.Count)
	assert.Equal(t, 1, total.Count)

	recent, err := auditLog.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
