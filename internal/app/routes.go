package app

import (
	"net/http"

	"github.com/pawbridge/console-backend/internal/session"
)

type route struct {
	path    string
	handler http.HandlerFunc
	roles   []session.Role
	// public routes skip the session guard.
	public bool
}

var (
	admin        = []session.Role{session.RoleAdmin}
	organization = []session.Role{session.RoleOrganization}
	staff        = []session.Role{session.RoleAdmin, session.RoleOrganization}
	recipients   = []session.Role{session.RoleCitizen, session.RoleOrganization}
)

func (a *App) routes() []route {
	return []route{
		{path: "/api/signin", handler: a.SignIn.HandleSignIn, public: true},
		{path: "/api/signout", handler: a.SignIn.HandleSignOut},
		{path: "/api/whoami", handler: a.SignIn.HandleWhoAmI},

		{path: "/api/dashboard/admin", handler: a.Dashboard.HandleAdmin, roles: admin},
		{path: "/api/dashboard/admin/stream", handler: a.Dashboard.HandleAdminStream, roles: admin},
		{path: "/api/dashboard/organization", handler: a.Dashboard.HandleOrganization, roles: organization},
		{path: "/api/dashboard/organization/stream", handler: a.Dashboard.HandleOrganizationStream, roles: organization},

		{path: "/api/reports/list", handler: a.Reports.HandleList, roles: staff},
		{path: "/api/reports/stream", handler: a.Reports.HandleStream, roles: staff},
		{path: "/api/reports/card", handler: a.Reports.HandleCard, roles: staff},
		{path: "/api/reports/get", handler: a.Reports.HandleGet, roles: staff},
		{path: "/api/reports/transition", handler: a.Reports.HandleTransition, roles: staff},
		{path: "/api/reports/messages/send", handler: a.Reports.HandleSendMessage, roles: staff},
		{path: "/api/reports/messages/read", handler: a.Reports.HandleMarkMessagesRead, roles: staff},

		{path: "/api/adoption/listings/list", handler: a.Adoption.HandleListListings, roles: organization},
		{path: "/api/adoption/listings/stream", handler: a.Adoption.HandleStreamListings, roles: organization},
		{path: "/api/adoption/listings/get", handler: a.Adoption.HandleGetListing, roles: organization},
		{path: "/api/adoption/listings/create", handler: a.Adoption.HandleCreateListing, roles: organization},
		{path: "/api/adoption/listings/update", handler: a.Adoption.HandleUpdateListing, roles: organization},
		{path: "/api/adoption/applications/list", handler: a.Adoption.HandleListApplications, roles: organization},
		{path: "/api/adoption/applications/stream", handler: a.Adoption.HandleStreamApplications, roles: organization},
		{path: "/api/adoption/applications/get", handler: a.Adoption.HandleGetApplication, roles: organization},
		{path: "/api/adoption/applications/review", handler: a.Adoption.HandleReviewApplication, roles: organization},

		{path: "/api/donations/list", handler: a.Donations.HandleList, roles: staff},
		{path: "/api/donations/stream", handler: a.Donations.HandleStream, roles: staff},
		{path: "/api/donations/get", handler: a.Donations.HandleGet, roles: staff},
		{path: "/api/donations/items", handler: a.Donations.HandleItems, roles: staff},
		{path: "/api/donations/create", handler: a.Donations.HandleCreate, roles: staff},
		{path: "/api/donations/update", handler: a.Donations.HandleUpdate, roles: staff},
		{path: "/api/donations/impact-reports/add", handler: a.Donations.HandleAddImpactReport, roles: staff},
		{path: "/api/donations/updates/add", handler: a.Donations.HandleAddUpdate, roles: staff},
		{path: "/api/donations/transactions/record", handler: a.Donations.HandleRecordTransaction, roles: staff},
		{path: "/api/donations/items/delete", handler: a.Donations.HandleDeleteItem, roles: staff},
		{path: "/api/donations/reconcile", handler: a.Donations.HandleReconcile, roles: staff},

		{path: "/api/subscriptions/list", handler: a.Subscriptions.HandleList, roles: admin},
		{path: "/api/subscriptions/toggle", handler: a.Subscriptions.HandleToggle, roles: admin},
		{path: "/api/subscriptions/notify", handler: a.Subscriptions.HandleNotify, roles: admin},
		{path: "/api/subscriptions/remind-expiring", handler: a.Subscriptions.HandleRemindExpiring, public: true},

		{path: "/api/accounts/list", handler: a.Accounts.HandleList, roles: admin},
		{path: "/api/accounts/stream", handler: a.Accounts.HandleStream, roles: admin},
		{path: "/api/accounts/get", handler: a.Accounts.HandleGet, roles: admin},
		{path: "/api/accounts/edit", handler: a.Accounts.HandleEdit, roles: admin},
		{path: "/api/profile/get", handler: a.Accounts.HandleProfile, roles: staff},
		{path: "/api/profile/update", handler: a.Accounts.HandleUpdateProfile, roles: staff},

		{path: "/api/inbox/list", handler: a.Inbox.HandleList, roles: recipients},
		{path: "/api/inbox/read", handler: a.Inbox.HandleMarkRead, roles: recipients},
		{path: "/api/inbox/reconcile", handler: a.Inbox.HandleReconcile, roles: recipients},

		{path: "/api/audit/recent", handler: a.AuditLog.HandleRecent, roles: admin},
	}
}
