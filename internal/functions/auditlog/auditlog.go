// Package auditlog lists recent status changes.
package auditlog

import (
	"net/http"

	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/store"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	httputils "github.com/pawbridge/console-backend/internal/utils/http"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type recentRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=500"`
}

type recentResponse struct {
	Entries []structs.StatusChanged `json:"entries"`
}

// Service serves the audit log.
type Service struct {
	store store.Storer
}

// NewService creates service.
func NewService(s store.Storer) *Service {
	return &Service{store: s}
}

// HandleRecent lists the latest entries, newest first.
func (s *Service) HandleRecent(w http.ResponseWriter, r *http.Request) {
	var req recentRequest
	if !httputils.DecodeJSONOrReportError(w, r, &req) {
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	entries, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		httputils.SendErrorResponse(w, r, errors.Remote("reading audit log", err))
		return
	}
	if entries == nil {
		entries = []structs.StatusChanged{}
	}

	httputils.SendResponse(w, r, recentResponse{Entries: entries})
}
