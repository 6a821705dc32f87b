package reports

import (
	"net/http"
	"strconv"

	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/session"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
	"github.com/pawbridge/console-backend/internal/view"
)

type idRequest struct {
	ID string `json:"id" validate:"required"`
}

type transitionRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

type messageRequest struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text" validate:"required,max=2000"`
}

type markReadResponse struct {
	Marked int `json:"marked"`
}

type messageResponse struct {
	MessageID string `json:"messageId"`
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

// HandleStream streams the board filtered by query parameters.
func (s *Service) HandleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mine, _ := strconv.ParseBool(q.Get("mine"))

	filter := Filter{
		Status:   q.Get("status"),
		Severity: q.Get("severity"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Mine:     mine,
	}
	identity := session.FromContext(r.Context())

	httputils.SendStream(w, r, func(emit func(interface{})) func() {
		return s.Watch(filter, identity, func(page view.Page[Card]) { emit(page) }).Detach
	})
}

// HandleCard handler.
func (s *Service) HandleCard(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	c, err := s.CardByID(r.Context(), req.ID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, c)
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

// HandleTransition handler.
func (s *Service) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx).Named("reports.HandleTransition")

	var req transitionRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	result, err := s.Transition(ctx, session.FromContext(ctx), req.ID, req.Status)
	if err != nil {
		logger.Debugf("Transition of report %v to %v refused: %v", req.ID, req.Status, err)
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, result)
}

// HandleSendMessage handler.
func (s *Service) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	key, err := s.SendMessage(r.Context(), session.FromContext(r.Context()), req.ID, req.Text)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, messageResponse{MessageID: key})
}

// HandleMarkMessagesRead handler.
func (s *Service) HandleMarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	marked, err := s.MarkMessagesRead(r.Context(), session.FromContext(r.Context()), req.ID)
	if err != nil {
		httputils.SendErrorResponse(w, r, err)
		return
	}

	httputils.SendResponse(w, r, markReadResponse{Marked: marked})
}
