package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/storage"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/pawbridge/console-backend/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now     = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	admin   = &session.Identity{UID: "a1", Email: "admin@pawbridge.ph", Role: session.RoleAdmin}
	shelter = &session.Identity{UID: "o1", Email: "shelter@pawbridge.ph", Role: session.RoleOrganization}
	citizen = &session.Identity{UID: "u1", Email: "ana@example.com", Role: session.RoleCitizen}
)

func newService(t *testing.T) (*Service, *realtimedb.MemoryClient, *storage.MockClient) {
	db := realtimedb.NewMemoryClient()
	recent := utils.ToMillis(now.Add(-48 * time.Hour))
	stale := utils.ToMillis(now.Add(-8 * 24 * time.Hour))

	db.Seed("users", map[string]interface{}{
		"u1": map[string]interface{}{"email": "ana@example.com", "firstName": "Ana", "lastName": "Cruz", "phone": "9171234567", "lastLogin": recent},
		"u2": map[string]interface{}{"email": "ben@example.com", "username": "ben", "last_login": stale},
	})
	db.Seed("organizations", map[string]interface{}{
		"o1": map[string]interface{}{"adminEmail": "head@shelter.ph", "orgName": "Happy Paws", "contactNum": 9998887777, "foundingYear": 2015},
	})
	db.Seed("admins/a1", map[string]interface{}{"firstName": "Ada"})

	citizens := view.NewLive[structs.Account](db, constants.CollectionUsers, nil)
	orgs := view.NewLive[structs.Account](db, constants.CollectionOrganizations, nil)
	require.NoError(t, citizens.Start(context.Background()))
	require.NoError(t, orgs.Start(context.Background()))
	t.Cleanup(citizens.Close)
	t.Cleanup(orgs.Close)

	uploader := &storage.MockClient{}
	return NewService(db, citizens, orgs, uploader, func() time.Time { return now }, 1<<20), db, uploader
}

func TestList(t *testing.T) {
	s, _, _ := newService(t)

	page, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)

	want := []Row{
		{UID: "u1", Type: session.RoleCitizen, Email: "ana@example.com", Name: "Ana Cruz", Contact: "9171234567", LastLogin: utils.ToMillis(now.Add(-48 * time.Hour)), Active: true},
		{UID: "u2", Type: session.RoleCitizen, Email: "ben@example.com", Name: "", LastLogin: utils.ToMillis(now.Add(-8 * 24 * time.Hour)), Active: false},
	}
	if diff := cmp.Diff(want, page.Citizens.Items); diff != "" {
		t.Errorf("citizens mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, page.Organizations.Items, 1)
	org := page.Organizations.Items[0]
	assert.Equal(t, "head@shelter.ph", org.Email)
	assert.Equal(t, "Happy Paws", org.Name)
	assert.Equal(t, "9998887777", org.Contact)
	assert.False(t, org.Active)

	page, err = s.List(context.Background(), Filter{Search: "paws"})
	require.NoError(t, err)
	assert.Empty(t, page.Citizens.Items)
	assert.Equal(t, "No accounts match your search.", page.Citizens.Placeholder)
	assert.Len(t, page.Organizations.Items, 1)
}

func TestWatchRendersBothTables(t *testing.T) {
	s, db, _ := newService(t)

	var pages []*Page
	handle := s.Watch(Filter{}, func(p *Page) { pages = append(pages, p) })
	db.Seed("organizations/o2", map[string]interface{}{"orgName": "Rescue PH"})
	handle.Detach()
	db.Seed("users/u3", map[string]interface{}{"firstName": "Cy"})

	require.Len(t, pages, 3)
	assert.Len(t, pages[2].Organizations.Items, 2)
	assert.Len(t, pages[2].Citizens.Items, 2)
}

func TestGet(t *testing.T) {
	s, _, _ := newService(t)

	d, err := s.Get(context.Background(), session.RoleOrganization, "o1")
	require.NoError(t, err)
	assert.Equal(t, "Happy Paws", d.Name)
	require.Len(t, d.Fields, len(OrganizationForm))
	assert.Equal(t, "email", d.Fields[0].Name)
	assert.True(t, d.Fields[0].ReadOnly)
	assert.Equal(t, "", d.Fields[0].Value)
	assert.Equal(t, 2015.0, d.Fields[5].Value)

	_, err = s.Get(context.Background(), session.RoleCitizen, "nope")
	assert.Equal(t, &errors.NotFoundError{Msg: "account not found"}, err)

	_, err = s.Get(context.Background(), session.RoleAdmin, "a1")
	assert.Equal(t, "type", err.(*errors.ValidationError).Field)
}

func TestEdit(t *testing.T) {
	s, db, _ := newService(t)
	ctx := context.Background()

	err := s.Edit(ctx, admin, session.RoleCitizen, "u1", map[string]interface{}{"email": "x@y.z"})
	assert.Equal(t, "email", err.(*errors.ValidationError).Field)

	err = s.Edit(ctx, admin, session.RoleCitizen, "u1", map[string]interface{}{"userType": "Alien"})
	assert.Equal(t, "userType", err.(*errors.ValidationError).Field)

	err = s.Edit(ctx, admin, session.RoleCitizen, "nope", map[string]interface{}{"bio": "x"})
	assert.Equal(t, &errors.NotFoundError{Msg: "account not found"}, err)

	require.NoError(t, s.Edit(ctx, admin, session.RoleCitizen, "u1", map[string]interface{}{"bio": " Cat person ", "phone": "+639181234567"}))

	var a structs.Account
	snap, _ := db.Get(ctx, "users/u1")
	require.NoError(t, snap.Unmarshal(&a))
	assert.Equal(t, "Cat person", a.Bio)
	assert.Equal(t, structs.Text("9181234567"), a.Phone)
	assert.Equal(t, "ana@example.com", a.Email)
}

func TestProfile(t *testing.T) {
	s, db, uploader := newService(t)
	ctx := context.Background()

	p, err := s.Profile(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)

	p, err = s.UpdateProfile(ctx, admin, ProfileRequest{FirstName: "Ada", LastName: "Reyes",
		Image: &storage.Image{Name: "me.png", ContentType: "image/png", Data: []byte{1, 2}}})
	require.NoError(t, err)
	assert.Equal(t, "Ada Reyes", p.Name)
	assert.Equal(t, "memory://admin_profiles/a1/1710072000000_me.png", p.ProfileImage)
	assert.Contains(t, uploader.Objects, "admin_profiles/a1/1710072000000_me.png")

	_, err = s.UpdateProfile(ctx, shelter, ProfileRequest{OrgName: " "})
	assert.Equal(t, "orgName", err.(*errors.ValidationError).Field)

	p, err = s.UpdateProfile(ctx, shelter, ProfileRequest{OrgName: "Happier Paws",
		Image: &storage.Image{Name: "logo.jpg", ContentType: "image/jpeg", Data: []byte{3}}})
	require.NoError(t, err)
	assert.Equal(t, "Happier Paws", p.Name)
	assert.Equal(t, "memory://profile_images/organizations/o1/1710072000000_logo.jpg", p.ProfileImage)

	var a structs.Account
	snap, _ := db.Get(ctx, "organizations/o1")
	require.NoError(t, snap.Unmarshal(&a))
	assert.Equal(t, "head@shelter.ph", a.AdminEmail)

	_, err = s.Profile(ctx, citizen)
	_, ok := err.(*errors.PermissionDeniedError)
	assert.True(t, ok)
}
