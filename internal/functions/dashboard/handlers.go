package dashboard

import (
	"net/http"

	"github.com/pawbridge/console-backend/internal/session"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
)

// HandleAdmin handler.
func (s *Service) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	d, err := s.Admin(r.Context())
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, d)
}

// HandleAdminStream handler.
func (s *Service) HandleAdminStream(w http.ResponseWriter, r *http.Request) {
	httputils.SendStream(w, r, func(emit func(interface{})) func() {
		return s.WatchAdmin(func(d *Admin) { emit(d) }).Detach
	})
}

// HandleOrganization handler.
func (s *Service) HandleOrganization(w http.ResponseWriter, r *http.Request) {
	d, err := s.Organization(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, d)
}

// HandleOrganizationStream handler.
func (s *Service) HandleOrganizationStream(w http.ResponseWriter, r *http.Request) {
	identity := session.FromContext(r.Context())

	httputils.SendStream(w, r, func(emit func(interface{})) func() {
		return s.WatchOrganization(identity, func(d *Organization) { emit(d) }).Detach
	})
}
