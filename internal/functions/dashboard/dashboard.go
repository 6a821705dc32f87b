// Package dashboard computes the admin and organization dashboards.
package dashboard

import (
	"context"
	"time"

	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/functions/reports"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/pawbridge/console-backend/internal/view"
)

// RegistrationDays is the number of daily registration buckets.
const RegistrationDays = 7

// Bucket is the number of registrations on a UTC date.
type Bucket struct {
	Date          string `json:"date"`
	Citizens      int    `json:"citizens"`
	Organizations int    `json:"organizations"`
}

// Admin dashboard.
type Admin struct {
	TotalCitizens         int      `json:"totalCitizens"`
	TotalOrganizations    int      `json:"totalOrganizations"`
	ActiveSubscriptions   int      `json:"activeSubscriptions"`
	InactiveSubscriptions int      `json:"inactiveSubscriptions"`
	Registrations         []Bucket `json:"registrations"`
}

// Organization dashboard. Pending reports are unclaimed and counted board-wide, the rest only for the organization.
type Organization struct {
	TotalReports      int `json:"totalReports"`
	PendingReports    int `json:"pendingReports"`
	AcceptedReports   int `json:"acceptedReports"`
	InProgressReports int `json:"inProgressReports"`
	OnHoldReports     int `json:"onHoldReports"`
	CompletedReports  int `json:"completedReports"`
	ClaimedReports    int `json:"claimedReports"`
}

// Service computes dashboards from live collections.
type Service struct {
	citizens      *view.Live[structs.Account]
	organizations *view.Live[structs.Account]
	subscriptions *view.Live[structs.Subscription]
	reports       *view.Live[structs.Report]
	now           utils.Clock
}

// NewService creates service. now may be nil.
func NewService(citizens, organizations *view.Live[structs.Account], subscriptions *view.Live[structs.Subscription], reportsLive *view.Live[structs.Report], now utils.Clock) *Service {
	if now == nil {
		now = utils.Now
	}
	return &Service{citizens: citizens, organizations: organizations, subscriptions: subscriptions, reports: reportsLive, now: now}
}

// Admin computes the admin dashboard.
func (s *Service) Admin(ctx context.Context) (*Admin, error) {
	for _, wait := range []func(context.Context) error{s.citizens.WaitLoaded, s.organizations.WaitLoaded, s.subscriptions.WaitLoaded} {
		if err := wait(ctx); err != nil {
			return nil, errors.Remote("loading dashboard", err)
		}
	}
	return s.admin(), nil
}

// WatchAdmin re-computes the admin dashboard whenever users, organizations or subscriptions change.
func (s *Service) WatchAdmin(emit func(*Admin)) *view.Handle {
	return view.OnAnyChange(func() {
		emit(s.admin())
	}, s.citizens, s.organizations, s.subscriptions)
}

// Organization computes the dashboard of the organization.
func (s *Service) Organization(ctx context.Context, identity *session.Identity) (*Organization, error) {
	if err := s.reports.WaitLoaded(ctx); err != nil {
		return nil, errors.Remote("loading reports", err)
	}
	return s.organization(identity.UID), nil
}

// WatchOrganization re-computes the organization dashboard on every reports change.
func (s *Service) WatchOrganization(identity *session.Identity, emit func(*Organization)) *view.Handle {
	return s.reports.OnChange(func() {
		emit(s.organization(identity.UID))
	})
}

func (s *Service) admin() *Admin {
	citizens := s.citizens.Records()
	orgs := s.organizations.Records()

	d := &Admin{
		TotalCitizens:      len(citizens),
		TotalOrganizations: len(orgs),
		Registrations:      Buckets(s.now().UTC(), citizens, orgs),
	}

	for _, r := range s.subscriptions.Records() {
		d.countSubscription(r.Value.Status)
	}
	for _, r := range orgs {
		if r.Value.Subscription != nil {
			d.countSubscription(r.Value.Subscription.Status)
		}
	}
	return d
}

func (d *Admin) countSubscription(status string) {
	if status == "active" {
		d.ActiveSubscriptions++
	} else {
		d.InactiveSubscriptions++
	}
}

func (s *Service) organization(uid string) *Organization {
	d := &Organization{}
	for _, r := range s.reports.Records() {
		d.TotalReports++

		status := reports.NormalizeStatus(r.Value.Status)
		if status == reports.StatusPending {
			d.PendingReports++
			continue
		}
		if r.Value.OrganizationID != uid {
			continue
		}

		d.ClaimedReports++
		switch status {
		case reports.StatusAccepted:
			d.AcceptedReports++
		case reports.StatusInProgress:
			d.InProgressReports++
		case reports.StatusOnHold:
			d.OnHoldReports++
		case reports.StatusCompleted:
			d.CompletedReports++
		}
	}
	return d
}

// Buckets counts registrations (createdAt, else registeredAt) per UTC date over the last RegistrationDays days ending today.
func Buckets(today time.Time, citizens, orgs []view.Record[structs.Account]) []Bucket {
	buckets := make([]Bucket, RegistrationDays)
	index := make(map[string]int, RegistrationDays)
	for i := range buckets {
		date := today.AddDate(0, 0, i-RegistrationDays+1).Format(dateLayout)
		buckets[i].Date = date
		index[date] = i
	}

	for _, r := range citizens {
		if i, ok := index[registrationDate(r.Value)]; ok {
			buckets[i].Citizens++
		}
	}
	for _, r := range orgs {
		if i, ok := index[registrationDate(r.Value)]; ok {
			buckets[i].Organizations++
		}
	}
	return buckets
}

const dateLayout = "2006-01-02"

func registrationDate(a structs.Account) string {
	ts := a.CreatedAt
	if ts.IsZero() {
		ts = a.RegisteredAt
	}
	if ts.IsZero() {
		return ""
	}
	return ts.Time().Format(dateLayout)
}
