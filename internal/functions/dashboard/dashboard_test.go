package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 20, 1, 30, 0, 0, time.UTC)

func at(t time.Time) int64 {
	return utils.ToMillis(t)
}

func start[T any](t *testing.T, db realtimedb.RealtimeDB, path string) *view.Live[T] {
	live := view.NewLive[T](db, path, nil)
	require.NoError(t, live.Start(context.Background()))
	t.Cleanup(live.Close)
	return live
}

func newService(t *testing.T) (*Service, *realtimedb.MemoryClient) {
	db := realtimedb.NewMemoryClient()
	db.Seed("users", map[string]interface{}{
		"u1": map[string]interface{}{"createdAt": at(now)},
		"u2": map[string]interface{}{"registeredAt": at(now.AddDate(0, 0, -6))},
		"u3": map[string]interface{}{"createdAt": at(now.AddDate(0, 0, -7))},
		"u4": map[string]interface{}{"email": "old@example.com"},
	})
	db.Seed("organizations", map[string]interface{}{
		"o1": map[string]interface{}{"createdAt": at(now.Add(-2 * time.Hour)), "subscription": map[string]interface{}{"status": "active"}},
		"o2": map[string]interface{}{"registeredAt": "2024-05-18T10:00:00Z"},
	})
	db.Seed("subscriptions", map[string]interface{}{
		"u1": map[string]interface{}{"status": "active"},
		"u2": map[string]interface{}{"status": "cancelled"},
		"u3": map[string]interface{}{"status": "active"},
	})
	db.Seed("reports", map[string]interface{}{
		"r1": map[string]interface{}{"status": "SUBMITTED"},
		"r2": map[string]interface{}{"reportType": "Stray dog"},
		"r3": map[string]interface{}{"status": "accepted", "organizationId": "o1"},
		"r4": map[string]interface{}{"status": "IN PROGRESS", "organizationId": "o1"},
		"r5": map[string]interface{}{"status": "COMPLETED", "organizationId": "o2"},
		"r6": map[string]interface{}{"status": "COMPLETED", "organizationId": "o1"},
	})

	s := NewService(
		start[structs.Account](t, db, constants.CollectionUsers),
		start[structs.Account](t, db, constants.CollectionOrganizations),
		start[structs.Subscription](t, db, constants.CollectionSubscriptions),
		start[structs.Report](t, db, constants.CollectionReports),
		func() time.Time { return now },
	)
	return s, db
}

func TestAdmin(t *testing.T) {
	s, _ := newService(t)

	d, err := s.Admin(context.Background())
	require.NoError(t, err)

	want := &Admin{
		TotalCitizens:         4,
		TotalOrganizations:    2,
		ActiveSubscriptions:   3,
		InactiveSubscriptions: 1,
		Registrations: []Bucket{
			{Date: "2024-05-14", Citizens: 1},
			{Date: "2024-05-15"},
			{Date: "2024-05-16"},
			{Date: "2024-05-17"},
			{Date: "2024-05-18", Organizations: 1},
			{Date: "2024-05-19", Organizations: 1},
			{Date: "2024-05-20", Citizens: 1},
		},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("dashboard mismatch (-want +got):\n%s", diff)
	}
}

func TestOrganization(t *testing.T) {
	s, _ := newService(t)

	d, err := s.Organization(context.Background(), &session.Identity{UID: "o1", Role: session.RoleOrganization})
	require.NoError(t, err)

	assert.Equal(t, &Organization{
		TotalReports:      6,
		PendingReports:    2,
		AcceptedReports:   1,
		InProgressReports: 1,
		CompletedReports:  1,
		ClaimedReports:    3,
	}, d)
}

func TestWatchOrganization(t *testing.T) {
	s, db := newService(t)

	var got []*Organization
	handle := s.WatchOrganization(&session.Identity{UID: "o2"}, func(d *Organization) { got = append(got, d) })
	db.Seed("reports/r7", map[string]interface{}{"status": "ON HOLD", "organizationId": "o2"})
	handle.Detach()
	db.Seed("reports/r8", map[string]interface{}{"reportType": "Lost cat"})

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].CompletedReports)
	assert.Equal(t, 1, got[1].OnHoldReports)
	assert.Equal(t, 7, got[1].TotalReports)
}

func TestWatchAdminFirstFrameOnce(t *testing.T) {
	s, db := newService(t)

	var got []*Admin
	handle := s.WatchAdmin(func(d *Admin) { got = append(got, d) })
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].TotalCitizens)

	db.Seed("users/u5", map[string]interface{}{"createdAt": at(now)})
	db.Seed("subscriptions/u5", map[string]interface{}{"status": "active"})
	handle.Detach()
	db.Seed("organizations/o3", map[string]interface{}{"createdAt": at(now)})

	require.Len(t, got, 3)
	assert.Equal(t, 5, got[1].TotalCitizens)
	assert.Equal(t, 3, got[1].ActiveSubscriptions)
	assert.Equal(t, 4, got[2].ActiveSubscriptions)
	assert.Equal(t, 2, got[2].TotalOrganizations)
}
