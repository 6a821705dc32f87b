package adoption

import (
	"net/http"

	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/storage"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
	"github.com/pawbridge/console-backend/internal/view"
)

type idRequest struct {
	ID string `json:"id" validate:"required"`
}

type createdResponse struct {
	ID string `json:"id"`
}

type updateListingRequest struct {
	ID     string                 `json:"id" validate:"required"`
	Fields map[string]interface{} `json:"fields"`
	Image  *storage.Image         `json:"image"`
}

type reviewRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

func (s *Service) uploadLimit() int64 {
	// base64 grows the payload by a third
	return s.maxUploadBytes/3*4 + httputils.DefaultMaxBodyBytes
}

// HandleListListings handler.
func (s *Service) HandleListListings(w http.ResponseWriter, r *http.Request) {
	var filter ListingFilter
	if !httputils.DecodeJSONOrReportError(w, r, &filter) {
		return
	}

	page, err := s.Listings(r.Context(), filter, session.FromContext(r.Context()))
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, page)
}

// HandleStreamListings handler.
func (s *Service) HandleStreamListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListingFilter{
		Search:       q.Get("search"),
		Species:      q.Get("species"),
		Sort:         q.Get("sort"),
		Organization: q.Get("organization"),
	}
	identity := session.FromContext(r.Context())

	httputils.SendStream(w, r, func(emit func(interface{})) func() {
		return s.WatchListings(filter, identity, func(page view.Page[ListingCard]) { emit(page) }).Detach
	})
}

// HandleGetListing handler.
func (s *Service) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	listing, err := s.Listing(r.Context(), session.FromContext(r.Context()), req.ID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, listing)
}

// HandleCreateListing handler.
func (s *Service) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if !httputils.DecodeJSONLimitOrReportError(w, r, &req, s.uploadLimit()) {
		return
	}

	id, err := s.CreateListing(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, createdResponse{ID: id})
}

// HandleUpdateListing handler.
func (s *Service) HandleUpdateListing(w http.ResponseWriter, r *http.Request) {
	var req updateListingRequest
	if !httputils.DecodeJSONLimitOrReportError(w, r, &req, s.uploadLimit()) {
		return
	}

	if err := s.UpdateListing(r.Context(), session.FromContext(r.Context()), req.ID, req.Fields, req.Image); err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendEmptyResponse(w, r)
}

// HandleListApplications handler.
func (s *Service) HandleListApplications(w http.ResponseWriter, r *http.Request) {
	var filter QueueFilter
	if !httputils.DecodeJSONOrReportError(w, r, &filter) {
		return
	}

	page, err := s.Queue(r.Context(), session.FromContext(r.Context()), filter)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, page)
}

// HandleStreamApplications handler.
func (s *Service) HandleStreamApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := QueueFilter{PetID: q.Get("petId"), Search: q.Get("search"), Sort: q.Get("sort")}

	if err := s.checkPetOwner(r.Context(), session.FromContext(r.Context()), filter.PetID); err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendStream(w, r, func(emit func(interface{})) func() {
		return s.WatchQueue(filter, func(page view.Page[ApplicationRow]) { emit(page) }).Detach
	})
}

// HandleGetApplication handler.
func (s *Service) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	app, err := s.Application(r.Context(), session.FromContext(r.Context()), req.ID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, app)
}

// HandleReviewApplication handler.
func (s *Service) HandleReviewApplication(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	result, err := s.Review(r.Context(), session.FromContext(r.Context()), req.ID, req.Status)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, result)
}
