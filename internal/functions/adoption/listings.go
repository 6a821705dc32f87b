package adoption

import (
	"context"
	"strings"

	"github.com/pawbridge/console-backend/internal/audit"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/detail"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/notify"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/storage"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/pawbridge/console-backend/internal/view"
)

// ListingForm is the editable field set of a listing.
var ListingForm = detail.Form{
	{Name: "name", Label: "Name", Rule: "required,max=100"},
	{Name: "species", Label: "Species", Rule: "required"},
	{Name: "breed", Label: "Breed"},
	{Name: "age", Label: "Age"},
	{Name: "size", Label: "Size"},
	{Name: "gender", Label: "Gender"},
	{Name: "description", Label: "Short description", Rule: "max=500"},
	{Name: "fullDescription", Label: "Full description"},
	{Name: "address", Label: "Address"},
	{Name: "contactLocation", Label: "Contact location"},
	{Name: "contactPhone", Label: "Contact phone", Rule: "omitempty,mobile"},
	{Name: "contactEmail", Label: "Contact email", Rule: "omitempty,email"},
	{Name: "status", Label: "Urgency", Rule: "omitempty,oneof=urgent normal"},
	{Name: "organizationName", Label: "Organization", ReadOnly: true},
	{Name: "imageUrl", Label: "Image", ReadOnly: true},
}

// ListingFilter is the filter state of the listings page.
type ListingFilter struct {
	Search  string `json:"search"`
	Species string `json:"species"`
	// Sort is "newest" (default), "oldest" or "name".
	Sort string `json:"sort" validate:"omitempty,oneof=newest oldest name"`
	// Organization scopes admins to one organization. Organizations always see their own listings.
	Organization string `json:"organization"`
}

// Requests counts applications of a pet.
type Requests struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
}

// ListingCard is a listing on the listings page.
type ListingCard struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Species          string   `json:"species"`
	Breed            string   `json:"breed"`
	Age              string   `json:"age"`
	Gender           string   `json:"gender"`
	Size             string   `json:"size"`
	Description      string   `json:"description"`
	ImageURL         string   `json:"imageUrl"`
	OrganizationName string   `json:"organizationName"`
	Urgent           bool     `json:"urgent"`
	CreatedAt        int64    `json:"createdAt"`
	Requests         Requests `json:"requests"`
}

// ListingDetail is a listing with its edit form.
type ListingDetail struct {
	ListingCard
	Fields []detail.FieldValue `json:"fields"`
}

// CreateListingRequest is a new listing.
type CreateListingRequest struct {
	Name            string         `json:"name" validate:"required,max=100"`
	Species         string         `json:"species" validate:"required"`
	Breed           string         `json:"breed"`
	Age             string         `json:"age"`
	Size            string         `json:"size"`
	Gender          string         `json:"gender"`
	Description     string         `json:"description" validate:"max=500"`
	FullDescription string         `json:"fullDescription"`
	Address         string         `json:"address"`
	ContactLocation string         `json:"contactLocation"`
	ContactPhone    string         `json:"contactPhone" validate:"omitempty,mobile"`
	ContactEmail    string         `json:"contactEmail" validate:"omitempty,email"`
	Status          string         `json:"status" validate:"omitempty,oneof=urgent normal"`
	Image           *storage.Image `json:"image"`
}

// Validate reports the first invalid field.
func (r *CreateListingRequest) Validate() error {
	return detail.Validate(r)
}

// Service serves adoption listings and their applications.
type Service struct {
	db           realtimedb.RealtimeDB
	listings     *view.Live[structs.AdoptionListing]
	applications *view.Live[structs.AdoptionApplication]
	notifier     *notify.Notifier
	uploader     storage.Uploader
	audit        *audit.Publisher
	now          utils.Clock

	maxUploadBytes int64
}

// NewService creates service over the live listings and applications collections.
func NewService(
	db realtimedb.RealtimeDB,
	listings *view.Live[structs.AdoptionListing],
	applications *view.Live[structs.AdoptionApplication],
	notifier *notify.Notifier,
	uploader storage.Uploader,
	publisher *audit.Publisher,
	now utils.Clock,
	maxUploadBytes int64,
) *Service {
	if now == nil {
		now = utils.Now
	}
	return &Service{
		db:           db,
		listings:     listings,
		applications: applications,
		notifier:     notifier,
		uploader:     uploader,
		audit:        publisher,
		now:          now,

		maxUploadBytes: maxUploadBytes,
	}
}

// ListingQuery builds the listings query of identity.
func (s *Service) ListingQuery(f ListingFilter, identity *session.Identity) view.Query[structs.AdoptionListing] {
	q := view.Query[structs.AdoptionListing]{
		Placeholders: view.Placeholders{Empty: "No pets listed yet.", NoMatch: "No pets match your search."},
	}

	scope := f.Organization
	if identity != nil && identity.Role == session.RoleOrganization {
		scope = identity.UID
	}
	q = q.Where(view.Exact(scope, func(l structs.AdoptionListing) string { return l.Organization }))
	q = q.Where(view.Equal(f.Species, func(l structs.AdoptionListing) string { return l.Species }))
	q = q.Where(view.Search(f.Search, func(l structs.AdoptionListing) []string {
		return []string{l.Name, l.Breed, l.Description}
	}))

	return q.SortBy(view.Sort(f.Sort,
		func(l structs.AdoptionListing) int64 { return int64(l.CreatedAt) },
		func(l structs.AdoptionListing) string { return l.Name },
	))
}

// Listings evaluates the listings page over the latest snapshots.
func (s *Service) Listings(ctx context.Context, f ListingFilter, identity *session.Identity) (view.Page[ListingCard], error) {
	if err := s.listings.WaitLoaded(ctx); err != nil {
		return view.Page[ListingCard]{}, errors.Remote("loading listings", err)
	}
	if err := s.applications.WaitLoaded(ctx); err != nil {
		return view.Page[ListingCard]{}, errors.Remote("loading applications", err)
	}
	return s.renderListings(s.ListingQuery(f, identity)), nil
}

// WatchListings re-renders the listings page when listings or applications change.
func (s *Service) WatchListings(f ListingFilter, identity *session.Identity, emit func(view.Page[ListingCard])) *view.Handle {
	q := s.ListingQuery(f, identity)
	return view.OnAnyChange(func() {
		emit(s.renderListings(q))
	}, s.listings, s.applications)
}

func (s *Service) renderListings(q view.Query[structs.AdoptionListing]) view.Page[ListingCard] {
	counts := s.requestCounts()
	return view.Render(s.listings.Evaluate(q), func(rec view.Record[structs.AdoptionListing]) ListingCard {
		return toListingCard(rec, counts[rec.ID])
	})
}

// requestCounts returns total and pending applications per pet.
func (s *Service) requestCounts() map[string]Requests {
	counts := map[string]Requests{}
	for _, rec := range s.applications.Records() {
		c := counts[rec.Value.PetID]
		c.Total++
		if ApplicationMachine.Status(rec.Value.Status) == ApplicationPending {
			c.Pending++
		}
		counts[rec.Value.PetID] = c
	}
	return counts
}

// Listing point-reads the listing with its edit form.
func (s *Service) Listing(ctx context.Context, identity *session.Identity, id string) (*ListingDetail, error) {
	snap, err := detail.Read(ctx, s.db, listingPath(id), "listing")
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := detail.Decode(snap, "listing", &raw); err != nil {
		return nil, err
	}
	var listing structs.AdoptionListing
	if err := detail.Decode(snap, "listing", &listing); err != nil {
		return nil, err
	}
	if err := checkListingOwner(identity, listing); err != nil {
		return nil, err
	}

	return &ListingDetail{
		ListingCard: toListingCard(view.Record[structs.AdoptionListing]{ID: id, Value: listing}, s.requestCounts()[id]),
		Fields:      ListingForm.Populate(raw),
	}, nil
}

// CreateListing uploads the image and pushes a new listing of the organization.
func (s *Service) CreateListing(ctx context.Context, identity *session.Identity, req CreateListingRequest) (string, error) {
	logger := logging.FromContext(ctx).Named("adoption.CreateListing")

	if err := req.Validate(); err != nil {
		return "", err
	}

	var org structs.Account
	if err := detail.Load(ctx, s.db, realtimedb.Join(constants.CollectionOrganizations, identity.UID), "organization", &org); err != nil {
		return "", err
	}

	imageURL := ""
	if req.Image != nil {
		link, err := storage.UploadImage(ctx, s.uploader, constants.StoragePetImagesPrefix, utils.ToMillis(s.now()), req.Image)
		if err != nil {
			return "", err
		}
		imageURL = link
	}

	listing := map[string]interface{}{
		"name":             strings.TrimSpace(req.Name),
		"species":          strings.TrimSpace(req.Species),
		"breed":            strings.TrimSpace(req.Breed),
		"age":              strings.TrimSpace(req.Age),
		"size":             req.Size,
		"gender":           req.Gender,
		"description":      strings.TrimSpace(req.Description),
		"fullDescription":  strings.TrimSpace(req.FullDescription),
		"address":          strings.TrimSpace(req.Address),
		"contactLocation":  strings.TrimSpace(req.ContactLocation),
		"contactPhone":     utils.NormalizeMobile(req.ContactPhone),
		"contactEmail":     strings.TrimSpace(req.ContactEmail),
		"imageUrl":         imageURL,
		"createdAt":        realtimedb.ServerTimestamp,
		"organization":     identity.UID,
		"organizationName": org.OrgName,
	}
	if req.Status != "" {
		listing["status"] = req.Status
	}

	id, err := s.db.Push(ctx, constants.CollectionAdoptions, listing)
	if err != nil {
		return "", errors.Remote("saving listing", err)
	}

	logger.Infof("Organization %v listed pet %v", identity.UID, id)

	return id, nil
}

// UpdateListing merges edited fields into the listing and optionally replaces its image.
func (s *Service) UpdateListing(ctx context.Context, identity *session.Identity, id string, input map[string]interface{}, image *storage.Image) error {
	var listing structs.AdoptionListing
	if err := detail.Load(ctx, s.db, listingPath(id), "listing", &listing); err != nil {
		return err
	}
	if err := checkListingOwner(identity, listing); err != nil {
		return err
	}

	fields := map[string]interface{}{}
	if len(input) > 0 {
		merged, err := ListingForm.Merge(input)
		if err != nil {
			return err
		}
		fields = merged
	} else if image == nil {
		return &errors.MalformedRequestError{Msg: "No fields to update"}
	}

	if image != nil {
		link, err := storage.UploadImage(ctx, s.uploader, constants.StoragePetImagesPrefix, utils.ToMillis(s.now()), image)
		if err != nil {
			return err
		}
		fields["imageUrl"] = link
	}
	fields["updatedAt"] = realtimedb.ServerTimestamp

	if err := s.db.Update(ctx, listingPath(id), fields); err != nil {
		return errors.Remote("saving listing", err)
	}
	return nil
}

func checkListingOwner(identity *session.Identity, listing structs.AdoptionListing) error {
	if identity.Role == session.RoleAdmin || listing.Organization == identity.UID {
		return nil
	}
	return &errors.PermissionDeniedError{Msg: "listing belongs to another organization"}
}

func listingPath(id string) string {
	return realtimedb.Join(constants.CollectionAdoptions, id)
}

func toListingCard(rec view.Record[structs.AdoptionListing], requests Requests) ListingCard {
	l := rec.Value
	return ListingCard{
		ID:               rec.ID,
		Name:             l.Name,
		Species:          l.Species,
		Breed:            l.Breed,
		Age:              string(l.Age),
		Gender:           l.Gender,
		Size:             l.Size,
		Description:      l.Description,
		ImageURL:         l.ImageURL,
		OrganizationName: l.OrganizationName,
		Urgent:           strings.EqualFold(l.Status, "urgent"),
		CreatedAt:        int64(l.CreatedAt),
		Requests:         requests,
	}
}
