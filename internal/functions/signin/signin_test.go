package signin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pawbridge/console-backend/internal/auth"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/redis"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*Service, *realtimedb.MemoryClient, *auth.MockClient, *redis.MemoryClient) {
	db := realtimedb.NewMemoryClient()
	db.Seed("admins/a1", true)
	db.Seed("organizations/o1", map[string]interface{}{"orgName": "Happy Paws"})

	auther := &auth.MockClient{Tokens: map[string]auth.Identity{
		"t-admin": {UID: "a1", Email: "admin@pawbridge.ph"},
		"t-org":   {UID: "o1", Email: "shelter@pawbridge.ph"},
		"t-user":  {UID: "u1", Email: "ana@example.com"},
	}}
	cache := redis.NewMemoryClient()

	return NewService(session.NewGuard(auther, db, cache, time.Minute), db), db, auther, cache
}

func TestSignIn(t *testing.T) {
	s, db, _, _ := newService()
	ctx := context.Background()

	tables := []struct {
		token string
		want  Result
	}{
		{"t-admin", Result{UID: "a1", Email: "admin@pawbridge.ph", Role: session.RoleAdmin, Landing: "home.html"}},
		{"t-org", Result{UID: "o1", Email: "shelter@pawbridge.ph", Role: session.RoleOrganization, Landing: "organizationDashboard.html"}},
		{"t-user", Result{UID: "u1", Email: "ana@example.com", Role: session.RoleCitizen, Landing: "home.html"}},
	}

	for _, table := range tables {
		result, err := s.SignIn(ctx, table.token)
		require.NoError(t, err)
		assert.Equal(t, table.want, *result)
	}

	var org structs.Account
	snap, _ := db.Get(ctx, "organizations/o1")
	require.NoError(t, snap.Unmarshal(&org))
	assert.False(t, org.LastLogin.IsZero())
	assert.Equal(t, "Happy Paws", org.OrgName)

	snap, _ = db.Get(ctx, "users/u1")
	assert.False(t, snap.Exists())

	_, err := s.SignIn(ctx, "forged")
	assert.Equal(t, &errors.UnauthenticatedError{Msg: "Session is not valid, sign in again", Redirect: "index.html"}, err)
}

func TestSignInRefreshesCachedRole(t *testing.T) {
	s, db, _, cache := newService()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "console:role:u1", "citizen", time.Minute))
	db.Seed("organizations/u1", map[string]interface{}{"orgName": "New Shelter"})

	result, err := s.SignIn(ctx, "t-user")
	require.NoError(t, err)
	assert.Equal(t, session.RoleOrganization, result.Role)

	cached, err := cache.Get(ctx, "console:role:u1")
	require.NoError(t, err)
	assert.Equal(t, "organization", cached)
}

func TestHandleSignOut(t *testing.T) {
	s, _, auther, _ := newService()

	req := httptest.NewRequest("POST", "/session/signout", bytes.NewBufferString(`{"data":{}}`))
	req = req.WithContext(session.WithIdentity(req.Context(), &session.Identity{UID: "o1", Role: session.RoleOrganization}))
	rr := httptest.NewRecorder()

	s.HandleSignOut(rr, req)

	var body struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "index.html", body.Data.Landing)
	assert.Equal(t, []string{"o1"}, auther.Revoked)
}
