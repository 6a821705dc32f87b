package subscriptions

import (
	"net/http"

	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/session"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
)

type listRequest struct {
	ViewSession string `json:"viewSession"`
}

type toggleRequest struct {
	UID  string       `json:"uid" validate:"required"`
	Type session.Role `json:"type" validate:"required,oneof=citizen organization"`
}

type notifyRequest struct {
	ViewSession string       `json:"viewSession" validate:"required"`
	UID         string       `json:"uid" validate:"required"`
	Type        session.Role `json:"type" validate:"required,oneof=citizen organization"`
}

// HandleList handler.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	page, err := s.List(r.Context(), req.ViewSession)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, page)
}

// HandleToggle handler.
func (s *Service) HandleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	result, err := s.Toggle(r.Context(), session.FromContext(r.Context()), req.Type, req.UID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, result)
}

// HandleNotify handler.
func (s *Service) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	result, err := s.Notify(r.Context(), req.ViewSession, req.Type, req.UID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, result)
}

// HandleRemindExpiring is called by Cloud Scheduler with ?apikey=.
func (s *Service) HandleRemindExpiring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx).Named("subscriptions.HandleRemindExpiring")

	apikey, err := s.secrets.Get(ctx, constants.SecretSchedulerAPIKey)
	if err != nil {
		logger.Warnf("Could not obtain api key: %v", err)
		http.Error(w, "Could not obtain api key", http.StatusInternalServerError)
		return
	}

	providedAPIKeys := r.URL.Query()["apikey"]
	if len(providedAPIKeys) != 1 || providedAPIKeys[0] != string(apikey) {
		http.Error(w, "Bad api key", http.StatusUnauthorized)
		return
	}

	result, err := s.RemindExpiring(ctx)
	if err != nil {
		logger.Errorf("Could not send expiry reminders: %v", err)
		http.Error(w, "Could not send expiry reminders", http.StatusInternalServerError)
		return
	}

	httputils.SendResponse(w, r, result)
}
