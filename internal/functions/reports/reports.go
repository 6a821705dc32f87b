package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pawbridge/console-backend/internal/audit"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/detail"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/transition"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/pawbridge/console-backend/internal/view"
)

// Report statuses as stored.
const (
	StatusPending    = "PENDING"
	StatusAccepted   = "ACCEPTED"
	StatusInProgress = "IN PROGRESS"
	StatusOnHold     = "ON HOLD"
	StatusCompleted  = "COMPLETED"
	StatusRejected   = "REJECTED"
)

// Machine of report statuses. Absent and SUBMITTED mean pending.
var Machine = transition.Machine{
	Name: "report",
	Edges: map[string][]string{
		StatusPending:    {StatusAccepted, StatusRejected},
		StatusAccepted:   {StatusInProgress, StatusOnHold, StatusCompleted, StatusRejected},
		StatusInProgress: {StatusOnHold, StatusCompleted, StatusRejected},
		StatusOnHold:     {StatusInProgress, StatusCompleted, StatusRejected},
	},
	Normalize: NormalizeStatus,
}

var confirmations = map[string]string{
	StatusAccepted:   "Report accepted.",
	StatusRejected:   "Report rejected.",
	StatusInProgress: "Report marked as in progress.",
	StatusOnHold:     "Report put on hold.",
	StatusCompleted:  "Report completed.",
}

// NormalizeStatus maps stored status to its canonical upper-case form.
func NormalizeStatus(stored string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(stored), " "))
	if s == "" || s == "SUBMITTED" {
		return StatusPending
	}
	return s
}

// Filter is the filter state of the reports board.
type Filter struct {
	Status   string `json:"status"`
	Severity string `json:"severity"`
	Search   string `json:"search"`
	// Sort is "severity" (default), "newest" or "oldest".
	Sort string `json:"sort" validate:"omitempty,oneof=severity newest oldest"`
	// Mine limits the board to reports claimed by the signed-in organization.
	Mine bool `json:"mine"`
}

// Card is a report on the board.
type Card struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Severity         string   `json:"severity"`
	SeverityPriority int      `json:"severityPriority"`
	Status           string   `json:"status"`
	ReporterEmail    string   `json:"reporterEmail"`
	Location         string   `json:"location"`
	ImageURLs        []string `json:"imageUrls"`
	Timestamp        int64    `json:"timestamp"`
	OrganizationID   string   `json:"organizationId,omitempty"`
	UnreadMessages   int      `json:"unreadMessages"`
}

// MessageView is one message of a report thread.
type MessageView struct {
	ID string `json:"id"`
	structs.Message
}

// Detail of a report.
type Detail struct {
	Card
	Latitude           float64       `json:"latitude"`
	Longitude          float64       `json:"longitude"`
	VideoURL           string        `json:"videoUrl,omitempty"`
	StatusUpdatedAt    int64         `json:"statusUpdatedAt,omitempty"`
	StatusUpdatedBy    string        `json:"statusUpdatedBy,omitempty"`
	Messages           []MessageView `json:"messages"`
	AllowedTransitions []string      `json:"allowedTransitions"`
}

// TransitionResult is returned after a successful status change.
type TransitionResult struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// Service serves the reports board.
type Service struct {
	db               realtimedb.RealtimeDB
	live             *view.Live[structs.Report]
	audit            *audit.Publisher
	enforceOwnership bool
}

// NewService creates service over the live reports collection.
func NewService(db realtimedb.RealtimeDB, live *view.Live[structs.Report], publisher *audit.Publisher, enforceOwnership bool) *Service {
	return &Service{db: db, live: live, audit: publisher, enforceOwnership: enforceOwnership}
}

// Query builds the board query of identity.
func (s *Service) Query(f Filter, identity *session.Identity) view.Query[structs.Report] {
	q := view.Query[structs.Report]{
		Placeholders: view.Placeholders{Empty: "No reports yet.", NoMatch: "No reports match the filters."},
	}

	if f.Status != "" && !strings.EqualFold(f.Status, "all") {
		want := NormalizeStatus(f.Status)
		q = q.Where(view.Func(func(r structs.Report) bool {
			return NormalizeStatus(r.Status) == want
		}))
	}
	q = q.Where(view.Equal(f.Severity, func(r structs.Report) string { return r.Severity }))
	q = q.Where(view.Search(f.Search, func(r structs.Report) []string {
		return []string{r.ReportType, r.ReportDescription, location(r)}
	}))
	if f.Mine && identity != nil {
		q = q.Where(view.Exact(identity.UID, func(r structs.Report) string { return r.OrganizationID }))
	}

	switch f.Sort {
	case "newest":
		q = q.SortBy(view.Newest(timestamp))
	case "oldest":
		q = q.SortBy(view.Oldest(timestamp))
	default:
		q = q.SortBy(view.BySeverity(func(r structs.Report) string { return r.Severity }))
	}

	return q
}

// List evaluates the board over the latest snapshot.
func (s *Service) List(ctx context.Context, f Filter, identity *session.Identity) (view.Page[Card], error) {
	if err := s.live.WaitLoaded(ctx); err != nil {
		return view.Page[Card]{}, errors.Remote("loading reports", err)
	}
	return view.Render(s.live.Evaluate(s.Query(f, identity)), toCard), nil
}

// Watch re-renders the board on every change until detached.
func (s *Service) Watch(f Filter, identity *session.Identity, emit func(view.Page[Card])) *view.Handle {
	return s.live.Watch(s.Query(f, identity), func(res view.Result[structs.Report]) {
		emit(view.Render(res, toCard))
	})
}

// CardByID returns the board card of id from the records the board was rendered from.
func (s *Service) CardByID(ctx context.Context, id string) (*Card, error) {
	if err := s.live.WaitLoaded(ctx); err != nil {
		return nil, err
	}
	report, ok := s.live.Lookup(id)
	if !ok {
		return nil, &errors.NotFoundError{Msg: "report not found"}
	}
	c := toCard(view.Record[structs.Report]{ID: id, Value: report})
	return &c, nil
}

// Get point-reads the report with its message thread.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	var report structs.Report
	if err := detail.Load(ctx, s.db, path(id), "report", &report); err != nil {
		return nil, err
	}

	d := Detail{
		Card:               toCard(view.Record[structs.Report]{ID: id, Value: report}),
		Latitude:           report.Latitude,
		Longitude:          report.Longitude,
		VideoURL:           report.VideoURL,
		StatusUpdatedAt:    int64(report.StatusUpdatedAt),
		StatusUpdatedBy:    report.StatusUpdatedBy,
		Messages:           []MessageView{},
		AllowedTransitions: Machine.Allowed(report.Status),
	}
	for key, m := range report.Messages {
		d.Messages = append(d.Messages, MessageView{ID: key, Message: m})
	}
	sort.SliceStable(d.Messages, func(i, j int) bool {
		a, b := d.Messages[i], d.Messages[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return realtimedb.KeyLess(a.ID, b.ID)
	})

	return &d, nil
}

// Transition moves the report to status. Organizations may only act on unclaimed reports or reports they claimed.
func (s *Service) Transition(ctx context.Context, identity *session.Identity, id, status string) (*TransitionResult, error) {
	logger := logging.FromContext(ctx).Named("reports.Transition")

	to := NormalizeStatus(status)
	if _, known := confirmations[to]; !known || strings.TrimSpace(status) == "" {
		return nil, &errors.ValidationError{Field: "status", Msg: fmt.Sprintf("unknown report status %q", status)}
	}

	stamps := map[string]interface{}{
		"statusUpdatedAt": realtimedb.ServerTimestamp,
		"statusUpdatedBy": identity.Actor(),
	}
	switch to {
	case StatusAccepted:
		stamps["acceptedAt"] = realtimedb.ServerTimestamp
		stamps["acceptedBy"] = identity.Actor()
		if identity.Role == session.RoleOrganization {
			stamps["organizationId"] = identity.UID
		}
	case StatusRejected:
		stamps["rejectedAt"] = realtimedb.ServerTimestamp
		stamps["rejectedBy"] = identity.Actor()
	case StatusCompleted:
		stamps["completedAt"] = realtimedb.ServerTimestamp
		stamps["completedBy"] = identity.Actor()
	}

	// Ownership, status and claim are decided against the same stored record.
	from, err := transition.ApplyRecord(ctx, s.db, path(id), Machine, to, func(tn realtimedb.TransactionNode) error {
		var report structs.Report
		if err := tn.Unmarshal(&report); err != nil {
			return err
		}
		return s.checkOwnership(identity, report)
	}, stamps)
	if err != nil {
		return nil, err
	}

	s.audit.StatusChanged(ctx, constants.CollectionReports, id, from, to, identity)

	logger.Infof("Report %v moved from %v to %v by %v", id, from, to, identity.UID)

	return &TransitionResult{ID: id, From: from, To: to, Message: confirmations[to]}, nil
}

// SendMessage appends a message to the report thread.
func (s *Service) SendMessage(ctx context.Context, identity *session.Identity, id, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &errors.ValidationError{Field: "text", Msg: "text is required"}
	}

	var report structs.Report
	if err := detail.Load(ctx, s.db, path(id), "report", &report); err != nil {
		return "", err
	}
	if err := s.checkOwnership(identity, report); err != nil {
		return "", err
	}

	key, err := s.db.Push(ctx, realtimedb.Join(path(id), constants.SubCollectionMessages), map[string]interface{}{
		"senderId":   identity.UID,
		"senderRole": string(identity.Role),
		"text":       text,
		"timestamp":  realtimedb.ServerTimestamp,
		"read":       false,
	})
	if err != nil {
		return "", errors.Remote("sending message", err)
	}

	return key, nil
}

// MarkMessagesRead marks read all unread messages of the thread not sent by identity. Returns how many were marked.
func (s *Service) MarkMessagesRead(ctx context.Context, identity *session.Identity, id string) (int, error) {
	var report structs.Report
	if err := detail.Load(ctx, s.db, path(id), "report", &report); err != nil {
		return 0, err
	}

	fields := map[string]interface{}{}
	for key, m := range report.Messages {
		if !m.Read && m.SenderID != identity.UID {
			fields[realtimedb.Join(constants.SubCollectionMessages, key, "read")] = true
		}
	}
	if len(fields) == 0 {
		return 0, nil
	}

	if err := s.db.Update(ctx, path(id), fields); err != nil {
		return 0, errors.Remote("marking messages read", err)
	}

	return len(fields), nil
}

func (s *Service) checkOwnership(identity *session.Identity, report structs.Report) error {
	if !s.enforceOwnership || identity.Role != session.RoleOrganization {
		return nil
	}
	if report.OrganizationID != "" && report.OrganizationID != identity.UID {
		return &errors.PermissionDeniedError{Msg: "report is handled by another organization"}
	}
	return nil
}

func path(id string) string {
	return realtimedb.Join(constants.CollectionReports, id)
}

func timestamp(r structs.Report) int64 {
	return int64(r.Timestamp)
}

func location(r structs.Report) string {
	if r.Latitude == 0 && r.Longitude == 0 {
		return "Not specified"
	}
	return fmt.Sprintf("Lat: %.4f, Long: %.4f", r.Latitude, r.Longitude)
}

func toCard(rec view.Record[structs.Report]) Card {
	r := rec.Value

	c := Card{
		ID:               rec.ID,
		Title:            r.ReportType,
		Description:      r.ReportDescription,
		Severity:         r.Severity,
		SeverityPriority: view.SeverityPriority(r.Severity),
		Status:           NormalizeStatus(r.Status),
		ReporterEmail:    r.ReportUserEmail,
		Location:         location(r),
		ImageURLs:        r.ImageURLs,
		Timestamp:        int64(r.Timestamp),
		OrganizationID:   r.OrganizationID,
	}
	if c.Title == "" {
		c.Title = "Unknown Report Type"
	}
	if c.ImageURLs == nil {
		c.ImageURLs = []string{}
	}
	for _, m := range r.Messages {
		if !m.Read && m.SenderRole == string(session.RoleCitizen) {
			c.UnreadMessages++
		}
	}

	return c
}
