package accounts

import (
	"net/http"

	"github.com/pawbridge/console-backend/internal/session"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
)

type accountRequest struct {
	UID  string       `json:"uid" validate:"required"`
	Type session.Role `json:"type" validate:"required,oneof=citizen organization"`
}

type editRequest struct {
	UID    string                 `json:"uid" validate:"required"`
	Type   session.Role           `json:"type" validate:"required,oneof=citizen organization"`
	Fields map[string]interface{} `json:"fields" validate:"required"`
}

func (s *Service) uploadLimit() int64 {
	// base64 grows the payload by a third
	return s.maxUploadBytes/3*4 + httputils.DefaultMaxBodyBytes
}

// HandleList handler.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	if !httputils.DecodeJSONOrReportError(w, r, &filter) {
		return
	}

	page, err := s.List(r.Context(), filter)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, page)
}

// HandleStream handler.
func (s *Service) HandleStream(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Search: r.URL.Query().Get("search")}

	httputils.SendStream(w, r, func(emit func(interface{})) func() {
		return s.Watch(filter, func(page *Page) { emit(page) }).Detach
	})
}

// HandleGet handler.
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	d, err := s.Get(r.Context(), req.Type, req.UID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, d)
}

// HandleEdit handler.
func (s *Service) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	if err := s.Edit(r.Context(), session.FromContext(r.Context()), req.Type, req.UID, req.Fields); err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendEmptyResponse(w, r)
}

// HandleProfile handler.
func (s *Service) HandleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.Profile(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, p)
}

// HandleUpdateProfile handler.
func (s *Service) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !httputils.DecodeJSONLimitOrReportError(w, r, &req, s.uploadLimit()) {
		return
	}

	p, err := s.UpdateProfile(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, p)
}
