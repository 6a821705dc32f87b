package donations

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/detail"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/pawbridge/console-backend/internal/view"
)

// Sub-collection kinds of a campaign.
const (
	KindTransactions  = constants.SubCollectionTransactions
	KindImpactReports = constants.SubCollectionImpactReports
	KindUpdates       = constants.SubCollectionUpdates
)

const previewSize = 3

// Filter is the filter state of the donations page.
type Filter struct {
	Search string `json:"search"`
	// Mine limits the page to campaigns created by the signed-in identity.
	Mine bool `json:"mine"`
}

// Card is a campaign on the donations page.
type Card struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Purpose  string   `json:"purpose"`
	Details  string   `json:"details"`
	Verified bool     `json:"verified"`
	Status   string   `json:"status"`
	Progress Progress `json:"progress"`
}

// Item is an entry of a campaign sub-collection.
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Message     string  `json:"message,omitempty"`
	DonorName   string  `json:"donorName,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Reference   string  `json:"reference,omitempty"`
	Timestamp   int64   `json:"timestamp"`
}

// Stats of a campaign.
type Stats struct {
	TotalRaised      float64  `json:"totalRaised"`
	UniqueDonors     int      `json:"uniqueDonors"`
	TransactionCount int      `json:"transactionCount"`
	Progress         Progress `json:"progress"`
}

// Previews are the newest items of every sub-collection.
type Previews struct {
	Transactions  []Item `json:"transactions"`
	ImpactReports []Item `json:"impactReports"`
	Updates       []Item `json:"updates"`
}

// Detail of a campaign.
type Detail struct {
	Card
	GcashName   string              `json:"gcashName"`
	GcashNumber string              `json:"gcashNumber"`
	CreatedBy   string              `json:"createdBy"`
	Stats       Stats               `json:"stats"`
	Previews    Previews            `json:"previews"`
	Fields      []detail.FieldValue `json:"fields"`
}

// Form is a campaign as entered by its organizer.
type Form struct {
	Name        string  `json:"name" validate:"required,max=120"`
	GcashName   string  `json:"gcashName" validate:"required"`
	GcashNumber string  `json:"gcashNumber" validate:"required,mobile"`
	Details     string  `json:"details" validate:"required,max=300"`
	Purpose     string  `json:"purpose" validate:"required"`
	GoalAmount  float64 `json:"goalAmount" validate:"gt=0,finite"`
}

// Validate trims text fields and reports the first invalid field.
func (f *Form) Validate() error {
	for _, text := range []*string{&f.Name, &f.GcashName, &f.Details, &f.Purpose} {
		*text = strings.TrimSpace(*text)
	}
	return detail.Validate(f)
}

func (f *Form) fields() map[string]interface{} {
	return map[string]interface{}{
		"name":        strings.TrimSpace(f.Name),
		"gcashName":   strings.TrimSpace(f.GcashName),
		"gcashNumber": utils.NormalizeMobile(f.GcashNumber),
		"details":     strings.TrimSpace(f.Details),
		"purpose":     strings.TrimSpace(f.Purpose),
		"goalAmount":  f.GoalAmount,
		"updatedAt":   realtimedb.ServerTimestamp,
	}
}

var editable = detail.Form{
	{Name: "name", Label: "Campaign name"},
	{Name: "gcashName", Label: "GCash account name"},
	{Name: "gcashNumber", Label: "GCash number"},
	{Name: "details", Label: "Details"},
	{Name: "purpose", Label: "Purpose"},
	{Name: "goalAmount", Label: "Goal amount"},
	{Name: "currentAmount", Label: "Recorded amount", ReadOnly: true},
}

// ImpactReportRequest adds an impact report.
type ImpactReportRequest struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

// Validate reports the first invalid field.
func (r *ImpactReportRequest) Validate() error {
	return detail.Validate(r)
}

// UpdateRequest adds a campaign update.
type UpdateRequest struct {
	ID      string `json:"id" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// Validate reports the first invalid field.
func (r *UpdateRequest) Validate() error {
	return detail.Validate(r)
}

// TransactionRequest records a received donation.
type TransactionRequest struct {
	ID        string  `json:"id" validate:"required"`
	DonorName string  `json:"donorName" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0,finite"`
	Reference string  `json:"reference"`
}

// Validate reports the first invalid field.
func (r *TransactionRequest) Validate() error {
	return detail.Validate(r)
}

// TransactionResult is the recorded transaction with campaign progress.
type TransactionResult struct {
	TransactionID string   `json:"transactionId"`
	Progress      Progress `json:"progress"`
}

// Service serves donation campaigns.
type Service struct {
	db   realtimedb.RealtimeDB
	live *view.Live[structs.DonationRequest]
}

// NewService creates service over the live campaigns collection.
func NewService(db realtimedb.RealtimeDB, live *view.Live[structs.DonationRequest]) *Service {
	return &Service{db: db, live: live}
}

// Query builds the donations page query, least funded first.
func Query(f Filter, identity *session.Identity) view.Query[structs.DonationRequest] {
	q := view.Query[structs.DonationRequest]{
		Placeholders: view.Placeholders{Empty: "No donation requests yet.", NoMatch: "No donation requests match your search."},
	}
	q = q.Where(view.Search(f.Search, func(d structs.DonationRequest) []string {
		return []string{d.Name, d.Purpose, d.Details}
	}))
	if f.Mine && identity != nil {
		q = q.Where(view.Exact(identity.UID, func(d structs.DonationRequest) string { return d.CreatedBy }))
	}
	return q.SortBy(view.Ascending(Ratio))
}

// List evaluates the donations page.
func (s *Service) List(ctx context.Context, f Filter, identity *session.Identity) (view.Page[Card], error) {
	if err := s.live.WaitLoaded(ctx); err != nil {
		return view.Page[Card]{}, errors.Remote("loading donation requests", err)
	}
	return view.Render(s.live.Evaluate(Query(f, identity)), toCard), nil
}

// Watch re-renders the donations page on every change.
func (s *Service) Watch(f Filter, identity *session.Identity, emit func(view.Page[Card])) *view.Handle {
	return s.live.Watch(Query(f, identity), func(res view.Result[structs.DonationRequest]) {
		emit(view.Render(res, toCard))
	})
}

// Get point-reads a campaign with stats and previews.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	snap, err := detail.Read(ctx, s.db, path(id), "donation request")
	if err != nil {
		return nil, err
	}
	var d structs.DonationRequest
	if err := detail.Decode(snap, "donation request", &d); err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := detail.Decode(snap, "donation request", &raw); err != nil {
		return nil, err
	}

	progress := ProgressOf(d)
	donors := map[string]bool{}
	for _, t := range d.Transactions {
		donors[strings.ToLower(strings.TrimSpace(t.DonorName))] = true
	}

	return &Detail{
		Card:        toCard(view.Record[structs.DonationRequest]{ID: id, Value: d}),
		GcashName:   d.GcashName,
		GcashNumber: string(d.GcashNumber),
		CreatedBy:   d.CreatedBy,
		Stats: Stats{
			TotalRaised:      progress.Raised,
			UniqueDonors:     len(donors),
			TransactionCount: len(d.Transactions),
			Progress:         progress,
		},
		Previews: Previews{
			Transactions:  head(items(d, KindTransactions), previewSize),
			ImpactReports: head(items(d, KindImpactReports), previewSize),
			Updates:       head(items(d, KindUpdates), previewSize),
		},
		Fields: editable.Populate(raw),
	}, nil
}

// Items lists a whole sub-collection, newest first.
func (s *Service) Items(ctx context.Context, id, kind string) ([]Item, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	var d structs.DonationRequest
	if err := detail.Load(ctx, s.db, path(id), "donation request", &d); err != nil {
		return nil, err
	}
	return items(d, kind), nil
}

// Create pushes a new campaign and indexes it under its creator's account.
func (s *Service) Create(ctx context.Context, identity *session.Identity, form Form) (string, error) {
	logger := logging.FromContext(ctx).Named("donations.Create")

	if err := form.Validate(); err != nil {
		return "", err
	}

	record := form.fields()
	record["currentAmount"] = 0
	record["verified"] = false
	record["status"] = "pending"
	record["createdBy"] = identity.UID
	record["createdAt"] = realtimedb.ServerTimestamp

	id, err := s.db.Push(ctx, constants.CollectionDonationRequests, record)
	if err != nil {
		return "", errors.Remote("saving donation request", err)
	}

	if collection := identity.Role.AccountCollection(); collection != "" {
		index := map[string]interface{}{"id": id, "createdAt": realtimedb.ServerTimestamp, "status": "pending"}
		if err := s.db.Set(ctx, realtimedb.Join(collection, identity.UID, "donations", id), index); err != nil {
			logger.Warnf("Donation request %v saved but not indexed for %v: %v", id, identity.UID, err)
		}
	}

	logger.Infof("Donation request %v created by %v", id, identity.UID)

	return id, nil
}

// Update merges the edited campaign fields. Sub-collections stay untouched.
func (s *Service) Update(ctx context.Context, identity *session.Identity, id string, form Form) error {
	if err := s.checkOwner(ctx, identity, id); err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		return err
	}
	return detail.Save(ctx, s.db, path(id), "donation request", &form, form.fields())
}

// AddImpactReport appends an impact report.
func (s *Service) AddImpactReport(ctx context.Context, identity *session.Identity, req ImpactReportRequest) (string, error) {
	return s.addItem(ctx, identity, req.ID, KindImpactReports, &req, map[string]interface{}{
		"title":       strings.TrimSpace(req.Title),
		"description": strings.TrimSpace(req.Description),
		"date":        realtimedb.ServerTimestamp,
	})
}

// AddUpdate appends a campaign update.
func (s *Service) AddUpdate(ctx context.Context, identity *session.Identity, req UpdateRequest) (string, error) {
	return s.addItem(ctx, identity, req.ID, KindUpdates, &req, map[string]interface{}{
		"message": strings.TrimSpace(req.Message),
		"date":    realtimedb.ServerTimestamp,
	})
}

func (s *Service) addItem(ctx context.Context, identity *session.Identity, id, kind string, form interface{}, item map[string]interface{}) (string, error) {
	if err := detail.Validate(form); err != nil {
		return "", err
	}
	if err := s.checkOwner(ctx, identity, id); err != nil {
		return "", err
	}

	key, err := s.db.Push(ctx, realtimedb.Join(path(id), kind), item)
	if err != nil {
		return "", errors.Remote("saving "+kind, err)
	}
	if err := s.db.Update(ctx, path(id), map[string]interface{}{"updatedAt": realtimedb.ServerTimestamp}); err != nil {
		logging.FromContext(ctx).Warnf("Could not touch donation request %v: %v", id, err)
	}
	return key, nil
}

// RecordTransaction appends a transaction and atomically adds its amount to currentAmount.
// A failed increment leaves the transaction in place and surfaces as drift.
func (s *Service) RecordTransaction(ctx context.Context, identity *session.Identity, req TransactionRequest) (*TransactionResult, error) {
	logger := logging.FromContext(ctx).Named("donations.RecordTransaction")

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, identity, req.ID); err != nil {
		return nil, err
	}

	key, err := s.db.Push(ctx, realtimedb.Join(path(req.ID), KindTransactions), map[string]interface{}{
		"donorName": strings.TrimSpace(req.DonorName),
		"amount":    req.Amount,
		"reference": strings.TrimSpace(req.Reference),
		"timestamp": realtimedb.ServerTimestamp,
	})
	if err != nil {
		return nil, errors.Remote("saving transaction", err)
	}

	if err := realtimedb.Increment(ctx, s.db, realtimedb.Join(path(req.ID), "currentAmount"), req.Amount); err != nil {
		logger.Warnf("Transaction %v saved but currentAmount of %v not incremented: %v", key, req.ID, err)
	}

	var d structs.DonationRequest
	if err := detail.Load(ctx, s.db, path(req.ID), "donation request", &d); err != nil {
		return nil, err
	}

	return &TransactionResult{TransactionID: key, Progress: ProgressOf(d)}, nil
}

// DeleteItem removes one sub-collection entry. Removing a transaction subtracts its amount from currentAmount.
func (s *Service) DeleteItem(ctx context.Context, identity *session.Identity, id, kind, itemID string) error {
	logger := logging.FromContext(ctx).Named("donations.DeleteItem")

	if err := checkKind(kind); err != nil {
		return err
	}
	if err := s.checkOwner(ctx, identity, id); err != nil {
		return err
	}

	itemPath := realtimedb.Join(path(id), kind, itemID)

	var t structs.Transaction
	if err := detail.Load(ctx, s.db, itemPath, "item", &t); err != nil {
		return err
	}

	if err := s.db.Remove(ctx, itemPath); err != nil {
		return errors.Remote("removing item", err)
	}

	if kind == KindTransactions && t.Amount != 0 {
		if err := realtimedb.Increment(ctx, s.db, realtimedb.Join(path(id), "currentAmount"), -float64(t.Amount)); err != nil {
			logger.Warnf("Transaction %v removed but currentAmount of %v not decremented: %v", itemID, id, err)
		}
	}
	return nil
}

// Reconcile recomputes currentAmount from transactions atomically. Returns the new amount.
func (s *Service) Reconcile(ctx context.Context, identity *session.Identity, id string) (float64, error) {
	if err := s.checkOwner(ctx, identity, id); err != nil {
		return 0, err
	}

	var amount float64
	err := s.db.RunTransaction(ctx, path(id), func(tn realtimedb.TransactionNode) (interface{}, error) {
		var node map[string]interface{}
		if err := tn.Unmarshal(&node); err != nil {
			return nil, err
		}
		if node == nil {
			return nil, &errors.NotFoundError{Msg: "donation request not found"}
		}

		var d structs.DonationRequest
		if err := tn.Unmarshal(&d); err != nil {
			return nil, err
		}
		amount = Raised(d)
		node["currentAmount"] = amount
		return node, nil
	})
	if err != nil {
		return 0, errors.Remote("reconciling donation request", err)
	}

	return amount, nil
}

func (s *Service) checkOwner(ctx context.Context, identity *session.Identity, id string) error {
	var d structs.DonationRequest
	if err := detail.Load(ctx, s.db, path(id), "donation request", &d); err != nil {
		return err
	}
	if identity.Role == session.RoleAdmin || d.CreatedBy == identity.UID {
		return nil
	}
	return &errors.PermissionDeniedError{Msg: "donation request belongs to another organization"}
}

func checkKind(kind string) error {
	switch kind {
	case KindTransactions, KindImpactReports, KindUpdates:
		return nil
	}
	return &errors.ValidationError{Field: "kind", Msg: fmt.Sprintf("kind must be one of: %v, %v, %v", KindTransactions, KindImpactReports, KindUpdates)}
}

func path(id string) string {
	return realtimedb.Join(constants.CollectionDonationRequests, id)
}

func items(d structs.DonationRequest, kind string) []Item {
	out := []Item{}
	switch kind {
	case KindTransactions:
		for k, t := range d.Transactions {
			out = append(out, Item{ID: k, DonorName: t.DonorName, Amount: float64(t.Amount), Reference: t.Reference, Timestamp: int64(t.Timestamp)})
		}
	case KindImpactReports:
		for k, r := range d.ImpactReports {
			out = append(out, Item{ID: k, Title: r.Title, Description: r.Description, Timestamp: int64(r.Date)})
		}
	case KindUpdates:
		for k, u := range d.Updates {
			out = append(out, Item{ID: k, Message: u.Message, Timestamp: int64(u.Date)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return realtimedb.KeyLess(out[j].ID, out[i].ID)
	})
	return out
}

func head(items []Item, n int) []Item {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func toCard(rec view.Record[structs.DonationRequest]) Card {
	d := rec.Value

	c := Card{
		ID:       rec.ID,
		Name:     d.Name,
		Purpose:  d.Purpose,
		Details:  Truncate(d.Details, 100),
		Verified: d.Verified,
		Status:   d.Status,
		Progress: ProgressOf(d),
	}
	if c.Name == "" {
		c.Name = "Unnamed Donation"
	}
	if c.Purpose == "" {
		c.Purpose = "General"
	}
	return c
}
