package adoption

import (
	"context"
	"fmt"
	"strings"

	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/detail"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/notify"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/transition"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/pawbridge/console-backend/internal/view"
)

// Application statuses as stored.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// ApplicationMachine of application statuses. Anything but approved or rejected is pending.
var ApplicationMachine = transition.Machine{
	Name: "application",
	Edges: map[string][]string{
		ApplicationPending: {ApplicationApproved, ApplicationRejected},
	},
	Normalize: func(stored string) string {
		s := strings.ToLower(strings.TrimSpace(stored))
		if s == ApplicationApproved || s == ApplicationRejected {
			return s
		}
		return ApplicationPending
	},
}

// QueueFilter is the filter state of a pet's request queue.
type QueueFilter struct {
	PetID  string `json:"petId" validate:"required"`
	Search string `json:"search"`
	// Sort is "newest" (default), "oldest" or "name".
	Sort string `json:"sort" validate:"omitempty,oneof=newest oldest name"`
}

// ApplicationRow is an application in the queue.
type ApplicationRow struct {
	ID               string `json:"id"`
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Status           string `json:"status"`
	AppliedTimestamp int64  `json:"appliedTimestamp"`
}

// ApplicationDetail is an application with the pet it is for.
type ApplicationDetail struct {
	ID                 string                      `json:"id"`
	Application        structs.AdoptionApplication `json:"application"`
	Status             string                      `json:"status"`
	PetName            string                      `json:"petName"`
	AllowedTransitions []string                    `json:"allowedTransitions"`
}

// ReviewResult is returned after a decision.
type ReviewResult struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Notified bool   `json:"notified"`
	Message  string `json:"message"`
}

// QueueQuery builds the pending queue of a pet.
func QueueQuery(f QueueFilter) view.Query[structs.AdoptionApplication] {
	q := view.Query[structs.AdoptionApplication]{
		Placeholders: view.Placeholders{Empty: "No adoption requests yet.", NoMatch: "No pending requests match your search."},
	}

	q = q.Where(view.Exact(f.PetID, func(a structs.AdoptionApplication) string { return a.PetID }))
	q = q.Where(view.Func(func(a structs.AdoptionApplication) bool {
		return ApplicationMachine.Status(a.Status) == ApplicationPending
	}))
	q = q.Where(view.Search(f.Search, func(a structs.AdoptionApplication) []string {
		return []string{a.FullName, a.Email}
	}))

	return q.SortBy(view.Sort(f.Sort,
		func(a structs.AdoptionApplication) int64 { return int64(a.AppliedTimestamp) },
		func(a structs.AdoptionApplication) string { return a.FullName },
	))
}

// Queue evaluates the pending queue of a pet.
func (s *Service) Queue(ctx context.Context, identity *session.Identity, f QueueFilter) (view.Page[ApplicationRow], error) {
	if err := s.checkPetOwner(ctx, identity, f.PetID); err != nil {
		return view.Page[ApplicationRow]{}, err
	}
	if err := s.applications.WaitLoaded(ctx); err != nil {
		return view.Page[ApplicationRow]{}, errors.Remote("loading applications", err)
	}
	return view.Render(s.applications.Evaluate(QueueQuery(f)), toApplicationRow), nil
}

// WatchQueue re-renders the pending queue of a pet on every change.
func (s *Service) WatchQueue(f QueueFilter, emit func(view.Page[ApplicationRow])) *view.Handle {
	return s.applications.Watch(QueueQuery(f), func(res view.Result[structs.AdoptionApplication]) {
		emit(view.Render(res, toApplicationRow))
	})
}

// Application point-reads an application.
func (s *Service) Application(ctx context.Context, identity *session.Identity, id string) (*ApplicationDetail, error) {
	var app structs.AdoptionApplication
	if err := detail.Load(ctx, s.db, applicationPath(id), "application", &app); err != nil {
		return nil, err
	}

	pet, err := s.pet(ctx, app.PetID)
	if err != nil {
		return nil, err
	}
	if err := checkListingOwner(identity, pet); err != nil {
		return nil, err
	}

	return &ApplicationDetail{
		ID:                 id,
		Application:        app,
		Status:             ApplicationMachine.Status(app.Status),
		PetName:            petName(pet),
		AllowedTransitions: ApplicationMachine.Allowed(app.Status),
	}, nil
}

// Review approves or rejects a pending application and notifies the applicant.
func (s *Service) Review(ctx context.Context, identity *session.Identity, id, decision string) (*ReviewResult, error) {
	logger := logging.FromContext(ctx).Named("adoption.Review")

	to := strings.ToLower(strings.TrimSpace(decision))
	if to != ApplicationApproved && to != ApplicationRejected {
		return nil, &errors.ValidationError{Field: "status", Msg: "status must be one of: approved, rejected"}
	}

	var app structs.AdoptionApplication
	if err := detail.Load(ctx, s.db, applicationPath(id), "application", &app); err != nil {
		return nil, err
	}

	pet, err := s.pet(ctx, app.PetID)
	if err != nil {
		return nil, err
	}
	if err := checkListingOwner(identity, pet); err != nil {
		return nil, err
	}

	from, err := transition.Apply(ctx, s.db, realtimedb.Join(applicationPath(id), "status"), ApplicationMachine, to)
	if err != nil {
		return nil, err
	}

	stamps := map[string]interface{}{
		"reviewedAt": realtimedb.ServerTimestamp,
		"reviewedBy": identity.Actor(),
	}
	if err := s.db.Update(ctx, applicationPath(id), stamps); err != nil {
		logger.Warnf("Application %v %v but review stamps were not recorded: %v", id, to, err)
	}

	s.audit.StatusChanged(ctx, constants.CollectionAdoptionApplications, id, from, to, identity)

	result := &ReviewResult{ID: id, Status: to, Message: fmt.Sprintf("Application %v.", to)}

	if app.UserID == "" {
		logger.Warnf("Application %v has no applicant uid, nobody to notify", id)
		return result, nil
	}

	title, message := decisionNotification(to, app.FullName, petName(pet))
	if _, err := s.notifier.Send(ctx, notify.Citizen(app.UserID), title, message); err != nil {
		logger.Warnf("Application %v %v but applicant %v was not notified: %v", id, to, app.UserID, err)
		return result, nil
	}
	result.Notified = true

	logger.Infof("Application %v %v by %v", id, to, identity.UID)

	return result, nil
}

func decisionNotification(status, fullName, pet string) (string, string) {
	if status == ApplicationApproved {
		return "Adoption Approved",
			fmt.Sprintf("Congratulations %v! Your request to adopt \"%v\" has been approved.", fullName, pet)
	}
	return "Adoption Rejected",
		fmt.Sprintf("Hello %v, we’re sorry to let you know your adoption request for \"%v\" was not approved.", fullName, pet)
}

func (s *Service) pet(ctx context.Context, petID string) (structs.AdoptionListing, error) {
	var pet structs.AdoptionListing
	if petID == "" {
		return pet, &errors.NotFoundError{Msg: "listing not found"}
	}
	err := detail.Load(ctx, s.db, listingPath(petID), "listing", &pet)
	return pet, err
}

func (s *Service) checkPetOwner(ctx context.Context, identity *session.Identity, petID string) error {
	if identity.Role == session.RoleAdmin {
		return nil
	}
	pet, err := s.pet(ctx, petID)
	if err != nil {
		return err
	}
	return checkListingOwner(identity, pet)
}

func petName(pet structs.AdoptionListing) string {
	if pet.Name == "" {
		return "your pet"
	}
	return pet.Name
}

func applicationPath(id string) string {
	return realtimedb.Join(constants.CollectionAdoptionApplications, id)
}

func toApplicationRow(rec view.Record[structs.AdoptionApplication]) ApplicationRow {
	a := rec.Value
	return ApplicationRow{
		ID:               rec.ID,
		FullName:         a.FullName,
		Email:            a.Email,
		Phone:            string(a.Phone),
		Status:           ApplicationMachine.Status(a.Status),
		AppliedTimestamp: int64(a.AppliedTimestamp),
	}
}
