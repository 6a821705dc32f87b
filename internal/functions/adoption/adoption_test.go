package adoption

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pawbridge/console-backend/internal/audit"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/notify"
	"github.com/pawbridge/console-backend/internal/pubsub"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/storage"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/pawbridge/console-backend/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	happyPaws = &session.Identity{UID: "o1", Email: "happy@paws.ph", Role: session.RoleOrganization}
	otherOrg  = &session.Identity{UID: "o2", Email: "other@paws.ph", Role: session.RoleOrganization}
	admin     = &session.Identity{UID: "a1", Email: "admin@pawbridge.ph", Role: session.RoleAdmin}
)

type fixture struct {
	service  *Service
	db       *realtimedb.MemoryClient
	uploader *storage.MockClient
	notifier *notify.Notifier
	pub      *pubsub.MockClient
}

func newFixture(t *testing.T) fixture {
	db := realtimedb.NewMemoryClient()
	db.Seed("organizations/o1", map[string]interface{}{"orgName": "Happy Paws"})
	db.Seed("adoptions", map[string]interface{}{
		"p1": map[string]interface{}{"name": "Bantay", "species": "Dog", "breed": "Aspin", "description": "Calm dog, very friendly", "organization": "o1", "createdAt": 100},
		"p2": map[string]interface{}{"name": "Mingming", "species": "Cat", "breed": "Puspin", "description": "Calm lap cat", "organization": "o1", "createdAt": 300},
		"p3": map[string]interface{}{"name": "Brownie", "species": "Dog", "breed": "Labrador", "description": "Playful dog", "organization": "o1", "createdAt": 200, "status": "urgent"},
		"p4": map[string]interface{}{"name": "Choco", "species": "Dog", "breed": "Shih Tzu", "description": "Calm dog", "organization": "o2", "createdAt": 400},
	})
	db.Seed("adoptionApplications", map[string]interface{}{
		"a1": map[string]interface{}{"petId": "p1", "userId": "u1", "fullName": "Juan Dela Cruz", "email": "juan@mail.ph", "appliedTimestamp": 10},
		"a2": map[string]interface{}{"petId": "p1", "userId": "u2", "fullName": "Ana Santos", "email": "ana@mail.ph", "appliedTimestamp": 30, "status": "approved"},
		"a3": map[string]interface{}{"petId": "p1", "userId": "u3", "fullName": "Ben Reyes", "email": "ben@mail.ph", "appliedTimestamp": 20, "status": "reviewed"},
		"a4": map[string]interface{}{"petId": "p3", "userId": "u4", "fullName": "Carla Lim", "email": "carla@mail.ph", "appliedTimestamp": 40},
	})

	ctx := context.Background()
	listings := view.NewLive[structs.AdoptionListing](db, constants.CollectionAdoptions, nil)
	applications := view.NewLive[structs.AdoptionApplication](db, constants.CollectionAdoptionApplications, nil)
	require.NoError(t, listings.Start(ctx))
	require.NoError(t, applications.Start(ctx))
	t.Cleanup(listings.Close)
	t.Cleanup(applications.Close)

	uploader := &storage.MockClient{}
	notifier := notify.NewNotifier(db, nil)
	pub := &pubsub.MockClient{}
	clock := func() time.Time { return time.Unix(1700000000, 0) }

	return fixture{
		service:  NewService(db, listings, applications, notifier, uploader, audit.NewPublisher(pub, clock), clock, 1024),
		db:       db,
		uploader: uploader,
		notifier: notifier,
		pub:      pub,
	}
}

func listingIDs(page view.Page[ListingCard]) []string {
	out := []string{}
	for _, c := range page.Items {
		out = append(out, c.ID)
	}
	return out
}

func TestListingsScopedSearchedAndSorted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tables := []struct {
		name   string
		who    *session.Identity
		filter ListingFilter
		want   []string
	}{
		{"own listings newest first", happyPaws, ListingFilter{}, []string{"p2", "p3", "p1"}},
		{"calm dog", happyPaws, ListingFilter{Search: "calm dog"}, []string{"p1"}},
		{"species", happyPaws, ListingFilter{Species: "dog", Sort: "oldest"}, []string{"p1", "p3"}},
		{"name", happyPaws, ListingFilter{Sort: "name"}, []string{"p1", "p3", "p2"}},
		{"org cannot widen scope", happyPaws, ListingFilter{Organization: "o2"}, []string{"p2", "p3", "p1"}},
		{"admin sees all", admin, ListingFilter{Search: "calm dog"}, []string{"p4", "p1"}},
	}

	for _, table := range tables {
		page, err := f.service.Listings(ctx, table.filter, table.who)
		require.NoError(t, err)
		assert.Equal(t, table.want, listingIDs(page), table.name)
	}
}

func TestRequestBadges(t *testing.T) {
	f := newFixture(t)

	page, err := f.service.Listings(context.Background(), ListingFilter{Sort: "oldest"}, happyPaws)
	require.NoError(t, err)

	assert.Equal(t, Requests{Total: 3, Pending: 2}, page.Items[0].Requests)
	assert.Equal(t, Requests{Total: 1, Pending: 1}, page.Items[1].Requests)
	assert.True(t, page.Items[1].Urgent)
	assert.Equal(t, Requests{}, page.Items[2].Requests)
}

func TestWatchListingsFirstFrameOnce(t *testing.T) {
	f := newFixture(t)

	var pages []view.Page[ListingCard]
	handle := f.service.WatchListings(ListingFilter{Sort: "oldest"}, happyPaws, func(p view.Page[ListingCard]) { pages = append(pages, p) })
	require.Len(t, pages, 1)
	assert.Equal(t, Requests{Total: 3, Pending: 2}, pages[0].Items[0].Requests)

	f.db.Seed("adoptionApplications/a5", map[string]interface{}{"petId": "p1", "userId": "u5", "appliedTimestamp": 50})
	require.Len(t, pages, 2)
	assert.Equal(t, Requests{Total: 4, Pending: 3}, pages[1].Items[0].Requests)

	handle.Detach()
	f.db.Seed("adoptions/p5", map[string]interface{}{"name": "Puti", "organization": "o1", "createdAt": 500})
	assert.Len(t, pages, 2)
}

func TestQueueShowsOnlyPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.service.Queue(ctx, happyPaws, QueueFilter{PetID: "p1"})
	require.NoError(t, err)

	want := []ApplicationRow{
		{ID: "a3", FullName: "Ben Reyes", Email: "ben@mail.ph", Status: "pending", AppliedTimestamp: 20},
		{ID: "a1", FullName: "Juan Dela Cruz", Email: "juan@mail.ph", Status: "pending", AppliedTimestamp: 10},
	}
	if diff := cmp.Diff(want, page.Items); diff != "" {
		t.Errorf("queue mismatch (-want +got):\n%s", diff)
	}

	page, err = f.service.Queue(ctx, happyPaws, QueueFilter{PetID: "p1", Search: "JUAN"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = f.service.Queue(ctx, otherOrg, QueueFilter{PetID: "p1"})
	assert.IsType(t, &errors.PermissionDeniedError{}, err)
}

func TestReviewApprovesAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var pages []view.Page[ApplicationRow]
	handle := f.service.WatchQueue(QueueFilter{PetID: "p1"}, func(p view.Page[ApplicationRow]) { pages = append(pages, p) })
	defer handle.Detach()

	result, err := f.service.Review(ctx, happyPaws, "a1", "approved")
	require.NoError(t, err)
	assert.Equal(t, &ReviewResult{ID: "a1", Status: "approved", Notified: true, Message: "Application approved."}, result)

	var app structs.AdoptionApplication
	snap, err := f.db.Get(ctx, "adoptionApplications/a1")
	require.NoError(t, err)
	require.NoError(t, snap.Unmarshal(&app))
	assert.Equal(t, "approved", app.Status)
	assert.Equal(t, "happy@paws.ph", app.ReviewedBy)
	assert.False(t, app.ReviewedAt.IsZero())

	inbox, err := f.notifier.List(ctx, notify.Citizen("u1"))
	require.NoError(t, err)
	require.Len(t, inbox.Entries, 1)
	assert.Equal(t, "Adoption Approved", inbox.Entries[0].Title)
	assert.Equal(t, `Congratulations Juan Dela Cruz! Your request to adopt "Bantay" has been approved.`, inbox.Entries[0].Message)
	assert.Equal(t, 1, inbox.UnreadCount)

	last := pages[len(pages)-1]
	for _, row := range last.Items {
		assert.NotEqual(t, "a1", row.ID)
	}

	_, err = f.service.Review(ctx, happyPaws, "a1", "rejected")
	assert.Equal(t, &errors.FailedPreconditionError{Msg: "application is already approved"}, err)

	assert.Len(t, f.pub.Messages(constants.TopicStatusChanged), 1)
}

func TestReviewRejectTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Review(ctx, admin, "a4", "REJECTED")
	require.NoError(t, err)

	inbox, err := f.notifier.List(ctx, notify.Citizen("u4"))
	require.NoError(t, err)
	require.Len(t, inbox.Entries, 1)
	assert.Equal(t, "Adoption Rejected", inbox.Entries[0].Title)
	assert.Equal(t, "Hello Carla Lim, we’re sorry to let you know your adoption request for \"Brownie\" was not approved.", inbox.Entries[0].Message)
}

func TestReviewGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Review(ctx, otherOrg, "a1", "approved")
	assert.IsType(t, &errors.PermissionDeniedError{}, err)

	_, err = f.service.Review(ctx, happyPaws, "a1", "maybe")
	assert.IsType(t, &errors.ValidationError{}, err)

	_, err = f.service.Review(ctx, happyPaws, "missing", "approved")
	assert.Equal(t, &errors.NotFoundError{Msg: "application not found"}, err)
}

func TestConcurrentReviewsHaveSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, decision := range []string{"approved", "rejected"} {
		wg.Add(1)
		go func(i int, decision string) {
			defer wg.Done()
			_, results[i] = f.service.Review(ctx, happyPaws, "a1", decision)
		}(i, decision)
	}
	wg.Wait()

	failures := 0
	for _, err := range results {
		if err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	inbox, err := f.notifier.List(ctx, notify.Citizen("u1"))
	require.NoError(t, err)
	assert.Len(t, inbox.Entries, 1)
}

func TestNotificationFailureKeepsDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.FailPaths = map[string]error{"notifications/u1/entries": fmt.Errorf("denied")}

	result, err := f.service.Review(ctx, happyPaws, "a1", "approved")
	require.NoError(t, err)
	assert.False(t, result.Notified)
}

func TestCreateListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.service.CreateListing(ctx, happyPaws, CreateListingRequest{
		Name:         " Lucky ",
		Species:      "Dog",
		ContactPhone: "+639171234567",
		Image:        &storage.Image{Name: "lucky dog.png", ContentType: "image/png", Data: []byte{1, 2, 3}},
	})
	require.NoError(t, err)

	var listing structs.AdoptionListing
	snap, err := f.db.Get(ctx, "adoptions/"+id)
	require.NoError(t, err)
	require.NoError(t, snap.Unmarshal(&listing))

	assert.Equal(t, "Lucky", listing.Name)
	assert.Equal(t, "o1", listing.Organization)
	assert.Equal(t, "Happy Paws", listing.OrganizationName)
	assert.Equal(t, structs.Text("9171234567"), listing.ContactPhone)
	assert.Equal(t, "memory://pet_images/1700000000000_lucky_dog.png", listing.ImageURL)
	assert.Contains(t, f.uploader.Objects, "pet_images/1700000000000_lucky_dog.png")

	_, err = f.service.CreateListing(ctx, happyPaws, CreateListingRequest{Name: "X", Species: "Dog", ContactPhone: "12345"})
	assert.Equal(t, "contactPhone", err.(*errors.ValidationError).Field)

	_, err = f.service.CreateListing(ctx, happyPaws, CreateListingRequest{Name: "X", Species: "Dog",
		Image: &storage.Image{Name: "x.pdf", ContentType: "application/pdf", Data: []byte{1}}})
	assert.Equal(t, "image", err.(*errors.ValidationError).Field)
}

func TestUpdateListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.UpdateListing(ctx, happyPaws, "p1", map[string]interface{}{"name": "Bantay Jr."}, nil))

	var listing structs.AdoptionListing
	snap, err := f.db.Get(ctx, "adoptions/p1")
	require.NoError(t, err)
	require.NoError(t, snap.Unmarshal(&listing))
	assert.Equal(t, "Bantay Jr.", listing.Name)
	assert.Equal(t, "Aspin", listing.Breed)
	assert.False(t, listing.UpdatedAt.IsZero())

	err = f.service.UpdateListing(ctx, happyPaws, "p1", map[string]interface{}{"organizationName": "Evil"}, nil)
	assert.IsType(t, &errors.ValidationError{}, err)

	err = f.service.UpdateListing(ctx, otherOrg, "p1", map[string]interface{}{"name": "Mine"}, nil)
	assert.IsType(t, &errors.PermissionDeniedError{}, err)

	detail, err := f.service.Listing(ctx, happyPaws, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Bantay Jr.", detail.Fields[0].Value)
	assert.Equal(t, "", detail.Fields[10].Value)
}
