// Package inbox serves the notification inbox of the signed-in citizen or organization.
package inbox

import (
	"fmt"
	"net/http"

	"github.com/pawbridge/console-backend/internal/notify"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
)

type markReadRequest struct {
	ID string `json:"id" validate:"required"`
}

type reconcileResponse struct {
	UnreadCount int `json:"unreadCount"`
}

// Service serves inbox endpoints.
type Service struct {
	notifier *notify.Notifier
}

// NewService creates service.
func NewService(notifier *notify.Notifier) *Service {
	return &Service{notifier: notifier}
}

// RecipientOf returns the inbox of the identity.
func RecipientOf(identity *session.Identity) (notify.Recipient, error) {
	switch identity.Role {
	case session.RoleCitizen:
		return notify.Citizen(identity.UID), nil
	case session.RoleOrganization:
		return notify.Organization(identity.UID), nil
	}
	return notify.Recipient{}, &errors.PermissionDeniedError{Msg: fmt.Sprintf("%v accounts have no inbox", identity.Role)}
}

// HandleList handler.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recipient, err := RecipientOf(session.FromContext(ctx))
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	inbox, err := s.notifier.List(ctx, recipient)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, inbox)
}

// HandleMarkRead handler.
func (s *Service) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req markReadRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	recipient, err := RecipientOf(session.FromContext(ctx))
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	if err := s.notifier.MarkRead(ctx, recipient, req.ID); err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendEmptyResponse(w, r)
}

// HandleReconcile handler.
func (s *Service) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recipient, err := RecipientOf(session.FromContext(ctx))
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	unread, err := s.notifier.Reconcile(ctx, recipient)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, reconcileResponse{UnreadCount: unread})
}
