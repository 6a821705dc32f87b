// Package signin exchanges Firebase ID tokens for console sessions.
package signin

import (
	"context"
	"net/http"

	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
)

// Result of a sign-in.
type Result struct {
	UID     string       `json:"uid"`
	Email   string       `json:"email"`
	Role    session.Role `json:"role"`
	Landing string       `json:"landing"`
}

type signInRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// Service signs identities in and out.
type Service struct {
	guard *session.Guard
	db    realtimedb.RealtimeDB
}

// NewService creates service.
func NewService(guard *session.Guard, db realtimedb.RealtimeDB) *Service {
	return &Service{guard: guard, db: db}
}

// SignIn verifies the token, refreshes the cached role and stamps lastLogin on the account.
func (s *Service) SignIn(ctx context.Context, idToken string) (*Result, error) {
	logger := logging.FromContext(ctx).Named("signin.SignIn")

	identity, err := s.guard.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	identity.Role = s.guard.Refresh(ctx, identity.UID)

	if collection := identity.Role.AccountCollection(); collection != "" {
		s.stampLastLogin(ctx, realtimedb.Join(collection, identity.UID))
	}

	logger.Infof("%v %v signed in", identity.Role, identity.UID)

	return &Result{UID: identity.UID, Email: identity.Email, Role: identity.Role, Landing: identity.Role.Landing()}, nil
}

func (s *Service) stampLastLogin(ctx context.Context, path string) {
	logger := logging.FromContext(ctx).Named("signin.stampLastLogin")

	snap, err := s.db.Get(ctx, path)
	if err != nil {
		logger.Warnf("Could not read %v: %v", path, err)
		return
	}
	if !snap.Exists() {
		return
	}
	if err := s.db.Update(ctx, path, map[string]interface{}{"lastLogin": realtimedb.ServerTimestamp}); err != nil {
		logger.Warnf("Could not stamp last login of %v: %v", path, err)
	}
}

// HandleSignIn handler.
func (s *Service) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	result, err := s.SignIn(r.Context(), req.IDToken)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, result)
}

// HandleSignOut revokes all sessions of the signed-in identity.
func (s *Service) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := session.FromContext(ctx)

	if err := s.guard.RevokeSessions(ctx, identity.UID); err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, Result{Landing: constants.PageEntry})
}

// HandleWhoAmI handler.
func (s *Service) HandleWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity := session.FromContext(r.Context())

	httputils.SendResponse(w, r, Result{UID: identity.UID, Email: identity.Email, Role: identity.Role, Landing: identity.Role.Landing()})
}
