// Package session authenticates requests and resolves the role of the signed-in identity.
package session

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pawbridge/console-backend/internal/auth"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/redis"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
)

// Role of an identity.
type Role string

const (
	// RoleAdmin has an admins/{uid} record.
	RoleAdmin Role = "admin"
	// RoleOrganization has an organizations/{uid} record.
	RoleOrganization Role = "organization"
	// RoleCitizen is everybody else.
	RoleCitizen Role = "citizen"
)

// Landing page of the role after sign-in.
func (r Role) Landing() string {
	if r == RoleOrganization {
		return constants.PageOrganizationDashboard
	}
	return constants.PageHome
}

// AccountCollection where the role's profile lives. Empty for admins.
func (r Role) AccountCollection() string {
	switch r {
	case RoleOrganization:
		return constants.CollectionOrganizations
	case RoleCitizen:
		return constants.CollectionUsers
	default:
		return ""
	}
}

// Identity is an authenticated identity with resolved role.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Actor is the value stamped into audit fields: email, falling back to uid.
func (i *Identity) Actor() string {
	if i.Email != "" {
		return i.Email
	}
	return i.UID
}

type identityKey struct{}

// WithIdentity returns context carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// FromContext returns identity of the request, nil when unauthenticated.
func FromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity
}

// Guard gates handlers behind an authenticated identity.
type Guard struct {
	auth  auth.Auther
	db    realtimedb.RealtimeDB
	cache redis.Client
	ttl   time.Duration
}

// NewGuard creates guard. Resolved roles are cached for ttl.
func NewGuard(auther auth.Auther, db realtimedb.RealtimeDB, cache redis.Client, ttl time.Duration) *Guard {
	return &Guard{auth: auther, db: db, cache: cache, ttl: ttl}
}

// ResolveRole checks admins/{uid}, then organizations/{uid}. Lookup errors resolve to citizen.
func (g *Guard) ResolveRole(ctx context.Context, uid string) Role {
	role, _ := g.resolve(ctx, uid)
	return role
}

// resolve reports false when a lookup failed and the role is only the citizen fallback.
func (g *Guard) resolve(ctx context.Context, uid string) (Role, bool) {
	logger := logging.FromContext(ctx).Named("session.ResolveRole")

	admin, err := g.db.Get(ctx, realtimedb.Join(constants.CollectionAdmins, uid))
	if err != nil {
		logger.Warnf("Admin lookup of %v failed, defaulting to citizen: %v", uid, err)
		return RoleCitizen, false
	}
	if admin.Exists() && !bytes.Equal(bytes.TrimSpace(admin.Raw()), []byte("false")) {
		return RoleAdmin, true
	}

	org, err := g.db.Get(ctx, realtimedb.Join(constants.CollectionOrganizations, uid))
	if err != nil {
		logger.Warnf("Organization lookup of %v failed, defaulting to citizen: %v", uid, err)
		return RoleCitizen, false
	}
	if org.Exists() {
		return RoleOrganization, true
	}

	return RoleCitizen, true
}

// Role returns cached role or resolves and caches it. The citizen fallback of a failed lookup is not cached.
func (g *Guard) Role(ctx context.Context, uid string) Role {
	logger := logging.FromContext(ctx).Named("session.Role")

	if cached, err := g.cache.Get(ctx, roleKey(uid)); err == nil {
		return Role(cached)
	} else if err != redis.ErrNil {
		logger.Debugf("Role cache unavailable: %v", err)
	}

	return g.Refresh(ctx, uid)
}

// Refresh resolves the role bypassing the cache.
func (g *Guard) Refresh(ctx context.Context, uid string) Role {
	role, ok := g.resolve(ctx, uid)
	if ok {
		g.remember(ctx, uid, role)
	}
	return role
}

func (g *Guard) remember(ctx context.Context, uid string, role Role) {
	if err := g.cache.Set(ctx, roleKey(uid), string(role), g.ttl); err != nil {
		logging.FromContext(ctx).Debugf("Could not cache role of %v: %v", uid, err)
	}
}

func roleKey(uid string) string {
	return "console:role:" + uid
}

// Verify verifies ID token and returns identity without role.
func (g *Guard) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, unauthenticated("Sign-in required")
	}
	verified, err := g.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		logging.FromContext(ctx).Debugf("ID token rejected: %v", err)
		return nil, unauthenticated("Session is not valid, sign in again")
	}
	return &Identity{UID: verified.UID, Email: verified.Email}, nil
}

// Authenticate extracts and verifies the request's ID token and resolves the role.
// The token is read as BearerToken does.
func (g *Guard) Authenticate(r *http.Request) (*Identity, error) {
	ctx := r.Context()

	identity, err := g.Verify(ctx, BearerToken(r))
	if err != nil {
		return nil, err
	}
	identity.Role = g.Role(ctx, identity.UID)
	return identity, nil
}

// RevokeSessions signs identity out everywhere.
func (g *Guard) RevokeSessions(ctx context.Context, uid string) error {
	if err := g.auth.RevokeSessions(ctx, uid); err != nil {
		return errors.Remote("signing out", err)
	}
	return nil
}

// BearerToken returns the ID token of the request.
// EventSource cannot set headers, so /stream routes also take the token from the "token" query parameter.
// Query strings end up in access logs and trace spans; no other route reads it.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if strings.HasSuffix(r.URL.Path, streamSuffix) {
		return r.URL.Query().Get("token")
	}
	return ""
}

const streamSuffix = "/stream"

func unauthenticated(msg string) error {
	return &errors.UnauthenticatedError{Msg: msg, Redirect: constants.PageEntry}
}

// Protect runs next only for authenticated identities having one of roles (any role when empty).
// Nothing else happens for unauthenticated requests.
func (g *Guard) Protect(next http.HandlerFunc, roles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.Authenticate(r)
		if err != nil {
			httputils.SendErrorResponse(w, r, err)
			return
		}

		if !allowed(identity.Role, roles) {
			httputils.SendErrorResponse(w, r, &errors.PermissionDeniedError{
				Msg: fmt.Sprintf("%v accounts cannot access this page", identity.Role),
			})
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		logger := logging.FromContext(ctx).With("uid", identity.UID, "role", identity.Role)
		ctx = logging.WithLogger(ctx, logger)

		next(w, r.WithContext(ctx))
	}
}

func allowed(role Role, roles []Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
