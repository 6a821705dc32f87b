package donations

import (
	"net/http"
	"strconv"

	"github.com/pawbridge/console-backend/internal/detail"
	"github.com/pawbridge/console-backend/internal/session"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
	"github.com/pawbridge/console-backend/internal/view"
)

type idRequest struct {
	ID string `json:"id" validate:"required"`
}

type itemsRequest struct {
	ID   string `json:"id" validate:"required"`
	Kind string `json:"kind" validate:"required"`
}

type deleteItemRequest struct {
	ID     string `json:"id" validate:"required"`
	Kind   string `json:"kind" validate:"required"`
	ItemID string `json:"itemId" validate:"required"`
}

type updateRequest struct {
	ID string `json:"id" validate:"required"`
	Form
}

func (r *updateRequest) Validate() error {
	return detail.Validate(r)
}

type createdResponse struct {
	ID string `json:"id"`
}

type reconcileResponse struct {
	CurrentAmount float64 `json:"currentAmount"`
}

type itemsResponse struct {
	Items []Item `json:"items"`
}

// HandleList handler.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	if !httputils.DecodeJSONOrReportError(w, r, &filter) {
		return
	}

	page, err := s.List(r.Context(), filter, session.FromContext(r.Context()))
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, page)
}

// HandleStream handler.
func (s *Service) HandleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mine, _ := strconv.ParseBool(q.Get("mine"))

	filter := Filter{Search: q.Get("search"), Mine: mine}
	identity := session.FromContext(r.Context())

	httputils.SendStream(w, r, func(emit func(interface{})) func() {
		return s.Watch(filter, identity, func(page view.Page[Card]) { emit(page) }).Detach
	})
}

// HandleGet handler.
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	d, err := s.Get(r.Context(), req.ID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, d)
}

// HandleItems handler.
func (s *Service) HandleItems(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	items, err := s.Items(r.Context(), req.ID, req.Kind)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, itemsResponse{Items: items})
}

// HandleCreate handler.
func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var form Form
	if !httputils.DecodeJSONOrReportError(w, r, &form) {
		return
	}

	id, err := s.Create(r.Context(), session.FromContext(r.Context()), form)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, createdResponse{ID: id})
}

// HandleUpdate handler.
func (s *Service) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	if err := s.Update(r.Context(), session.FromContext(r.Context()), req.ID, req.Form); err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, createdResponse{ID: req.ID})
}

// HandleAddImpactReport handler.
func (s *Service) HandleAddImpactReport(w http.ResponseWriter, r *http.Request) {
	var req ImpactReportRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	key, err := s.AddImpactReport(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, createdResponse{ID: key})
}

// HandleAddUpdate handler.
func (s *Service) HandleAddUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	key, err := s.AddUpdate(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, createdResponse{ID: key})
}

// HandleRecordTransaction handler.
func (s *Service) HandleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	result, err := s.RecordTransaction(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, result)
}

// HandleDeleteItem handler.
func (s *Service) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	var req deleteItemRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	if err := s.DeleteItem(r.Context(), session.FromContext(r.Context()), req.ID, req.Kind, req.ItemID); err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, createdResponse{ID: req.ItemID})
}

// HandleReconcile handler.
func (s *Service) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	amount, err := s.Reconcile(r.Context(), session.FromContext(r.Context()), req.ID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, reconcileResponse{CurrentAmount: amount})
}
