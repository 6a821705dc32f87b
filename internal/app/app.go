// Package app assembles the console backend from its configuration.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pawbridge/console-backend/internal/audit"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/functions/accounts"
	"github.com/pawbridge/console-backend/internal/functions/adoption"
	"github.com/pawbridge/console-backend/internal/functions/auditlog"
	"github.com/pawbridge/console-backend/internal/functions/dashboard"
	"github.com/pawbridge/console-backend/internal/functions/donations"
	"github.com/pawbridge/console-backend/internal/functions/inbox"
	"github.com/pawbridge/console-backend/internal/functions/reports"
	"github.com/pawbridge/console-backend/internal/functions/signin"
	"github.com/pawbridge/console-backend/internal/functions/subscriptions"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/metrics"
	"github.com/pawbridge/console-backend/internal/notify"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/view"
)

// Lives are the collection views shared by all pages.
type Lives struct {
	Reports       *view.Live[structs.Report]
	Listings      *view.Live[structs.AdoptionListing]
	Applications  *view.Live[structs.AdoptionApplication]
	Donations     *view.Live[structs.DonationRequest]
	Citizens      *view.Live[structs.Account]
	Organizations *view.Live[structs.Account]
	Subscriptions *view.Live[structs.Subscription]
}

type starter interface {
	Start(ctx context.Context) error
	Close()
}

func (l *Lives) all() []starter {
	return []starter{l.Reports, l.Listings, l.Applications, l.Donations, l.Citizens, l.Organizations, l.Subscriptions}
}

// App is the assembled console.
type App struct {
	Config    *utils.Config
	Backends  *Backends
	Lives     *Lives
	Guard     *session.Guard
	Aftermath *audit.Aftermath

	Reports       *reports.Service
	Adoption      *adoption.Service
	Donations     *donations.Service
	Subscriptions *subscriptions.Service
	Accounts      *accounts.Service
	Dashboard     *dashboard.Service
	SignIn        *signin.Service
	Inbox         *inbox.Service
	AuditLog      *auditlog.Service
}

// New creates backends and services. Views are not started; see Start.
func New(ctx context.Context, config *utils.Config) (*App, error) {
	backends, err := NewBackends(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating backends: %w", err)
	}
	return NewWithBackends(config, backends), nil
}

// NewWithBackends wires services over already created backends.
func NewWithBackends(config *utils.Config, b *Backends) *App {
	db := b.DB

	lives := &Lives{
		Reports:       view.NewLive[structs.Report](db, constants.CollectionReports, nil),
		Listings:      view.NewLive[structs.AdoptionListing](db, constants.CollectionAdoptions, nil),
		Applications:  view.NewLive[structs.AdoptionApplication](db, constants.CollectionAdoptionApplications, nil),
		Donations:     view.NewLive[structs.DonationRequest](db, constants.CollectionDonationRequests, nil),
		Citizens:      view.NewLive[structs.Account](db, constants.CollectionUsers, nil),
		Organizations: view.NewLive[structs.Account](db, constants.CollectionOrganizations, nil),
		Subscriptions: view.NewLive[structs.Subscription](db, constants.CollectionSubscriptions, nil),
	}

	publisher := audit.NewPublisher(b.Publisher, utils.Now)
	aftermath := audit.NewAftermath(b.Store, db)
	if b.Loopback != nil {
		b.Loopback.Handlers[constants.TopicStatusChanged] = aftermath.Handle
	}

	notifier := notify.NewNotifier(db, b.Push)
	guard := session.NewGuard(b.Auth, db, b.Cache, config.RoleCacheTTL)

	return &App{
		Config:    config,
		Backends:  b,
		Lives:     lives,
		Guard:     guard,
		Aftermath: aftermath,

		Reports:       reports.NewService(db, lives.Reports, publisher, config.EnforceReportOwnership),
		Adoption:      adoption.NewService(db, lives.Listings, lives.Applications, notifier, b.Uploader, publisher, utils.Now, config.MaxUploadBytes),
		Donations:     donations.NewService(db, lives.Donations),
		Subscriptions: subscriptions.NewService(db, notifier, publisher, b.Cache, b.Mutex, b.Secrets, utils.Now),
		Accounts:      accounts.NewService(db, lives.Citizens, lives.Organizations, b.Uploader, utils.Now, config.MaxUploadBytes),
		Dashboard:     dashboard.NewService(lives.Citizens, lives.Organizations, lives.Subscriptions, lives.Reports, utils.Now),
		SignIn:        signin.NewService(guard, db),
		Inbox:         inbox.NewService(notifier),
		AuditLog:      auditlog.NewService(b.Store),
	}
}

// Start attaches all collection views.
func (a *App) Start(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("app.Start")

	for _, l := range a.Lives.all() {
		if err := l.Start(ctx); err != nil {
			for _, started := range a.Lives.all() {
				started.Close()
			}
			return err
		}
	}

	logger.Info("Collection views attached")
	return nil
}

// Close detaches views and releases backends.
func (a *App) Close() {
	for _, l := range a.Lives.all() {
		l.Close()
	}
	a.Backends.Close()
}

// Handler serves the console API and metrics.
func (a *App) Handler() http.Handler {
	metrics.Init()

	mux := http.NewServeMux()
	for _, rt := range a.routes() {
		handler := rt.handler
		if !rt.public {
			handler = a.Guard.Protect(handler, rt.roles...)
		}
		mux.Handle(rt.path, metrics.Instrument(rt.path, handler))
	}
	mux.Handle("/metrics", metrics.Handler())

	return mux
}
