// Package accounts lists and edits citizen and organization accounts and the signed-in profile.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/detail"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/storage"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/pawbridge/console-backend/internal/view"
)

// ActiveWindow is how recent the last login of an active account is.
const ActiveWindow = 7 * 24 * time.Hour

var userTypes = []string{"Local Citizen", "Animal Organization"}

// CitizenForm is the editable profile of a citizen.
var CitizenForm = detail.Form{
	{Name: "email", Label: "Email", ReadOnly: true},
	{Name: "username", Label: "Username", Rule: "max=60"},
	{Name: "bio", Label: "Bio"},
	{Name: "birthdate", Label: "Birthdate"},
	{Name: "firstName", Label: "First Name", Rule: "max=60"},
	{Name: "lastName", Label: "Last Name", Rule: "max=60"},
	{Name: "phone", Label: "Contact Number", Rule: "omitempty,mobile"},
	{Name: "profileImage", Label: "Profile Image URL", Rule: "omitempty,url"},
	{Name: "userType", Label: "User Type"},
}

// OrganizationForm is the editable profile of an organization.
var OrganizationForm = detail.Form{
	{Name: "email", Label: "Email", ReadOnly: true},
	{Name: "adminName", Label: "Admin Name"},
	{Name: "adminEmail", Label: "Admin Email", Rule: "omitempty,email"},
	{Name: "orgName", Label: "Organization Name", Rule: "required"},
	{Name: "bio", Label: "Bio"},
	{Name: "foundingYear", Label: "Founding Year", Rule: "omitempty,numeric"},
	{Name: "address", Label: "Address"},
	{Name: "phone", Label: "Contact Number", Rule: "omitempty,mobile"},
	{Name: "profileImage", Label: "Profile Image URL", Rule: "omitempty,url"},
	{Name: "userType", Label: "User Type"},
}

// FormOf returns the form of the account type.
func FormOf(kind session.Role) (detail.Form, error) {
	switch kind {
	case session.RoleCitizen:
		return CitizenForm, nil
	case session.RoleOrganization:
		return OrganizationForm, nil
	}
	return nil, &errors.ValidationError{Field: "type", Msg: fmt.Sprintf("type must be %v or %v", session.RoleCitizen, session.RoleOrganization)}
}

// Filter of the accounts page.
type Filter struct {
	Search string `json:"search"`
}

// Row is an account of the accounts page.
type Row struct {
	UID       string       `json:"uid"`
	Type      session.Role `json:"type"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	Contact   string       `json:"contact"`
	LastLogin int64        `json:"lastLogin,omitempty"`
	Active    bool         `json:"active"`
}

// Page of both account tables.
type Page struct {
	Citizens      view.Page[Row] `json:"citizens"`
	Organizations view.Page[Row] `json:"organizations"`
}

// Detail of an account with its edit form.
type Detail struct {
	Row
	Fields []detail.FieldValue `json:"fields"`
}

// Profile of the signed-in admin or organization.
type Profile struct {
	UID          string       `json:"uid"`
	Role         session.Role `json:"role"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	FirstName    string       `json:"firstName,omitempty"`
	LastName     string       `json:"lastName,omitempty"`
	OrgName      string       `json:"orgName,omitempty"`
	ProfileImage string       `json:"profileImage,omitempty"`
}

// ProfileRequest edits the signed-in profile. Admins edit their name, organizations their organization name.
type ProfileRequest struct {
	FirstName string         `json:"firstName" validate:"max=60"`
	LastName  string         `json:"lastName" validate:"max=60"`
	OrgName   string         `json:"orgName" validate:"max=120"`
	Image     *storage.Image `json:"image"`
}

// Validate reports the first invalid field.
func (r *ProfileRequest) Validate() error {
	return detail.Validate(r)
}

// Service serves account management.
type Service struct {
	db            realtimedb.RealtimeDB
	citizens      *view.Live[structs.Account]
	organizations *view.Live[structs.Account]
	uploader      storage.Uploader
	now           utils.Clock

	maxUploadBytes int64
}

// NewService creates service over live users and organizations. now may be nil.
func NewService(db realtimedb.RealtimeDB, citizens, organizations *view.Live[structs.Account], uploader storage.Uploader, now utils.Clock, maxUploadBytes int64) *Service {
	if now == nil {
		now = utils.Now
	}
	return &Service{db: db, citizens: citizens, organizations: organizations, uploader: uploader, now: now, maxUploadBytes: maxUploadBytes}
}

// Query builds the accounts query.
func Query(f Filter) view.Query[structs.Account] {
	q := view.Query[structs.Account]{
		Placeholders: view.Placeholders{Empty: "No accounts yet.", NoMatch: "No accounts match your search."},
	}
	return q.Where(view.Search(f.Search, func(a structs.Account) []string {
		return []string{Email(a), Name(a), Contact(a)}
	}))
}

// List evaluates both account tables.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if err := s.citizens.WaitLoaded(ctx); err != nil {
		return nil, errors.Remote("loading citizens", err)
	}
	if err := s.organizations.WaitLoaded(ctx); err != nil {
		return nil, errors.Remote("loading organizations", err)
	}
	return s.render(f), nil
}

// Watch re-renders both tables whenever either collection changes.
func (s *Service) Watch(f Filter, emit func(*Page)) *view.Handle {
	render := func() {
		if s.citizens.Loaded() && s.organizations.Loaded() {
			emit(s.render(f))
		}
	}
	c := s.citizens.OnChange(render)
	o := s.organizations.OnChange(render)
	return view.NewHandle(func() {
		c.Detach()
		o.Detach()
	})
}

func (s *Service) render(f Filter) *Page {
	q := Query(f)
	now := s.now()
	return &Page{
		Citizens: view.Render(s.citizens.Evaluate(q), func(r view.Record[structs.Account]) Row {
			return toRow(session.RoleCitizen, r.ID, r.Value, now)
		}),
		Organizations: view.Render(s.organizations.Evaluate(q), func(r view.Record[structs.Account]) Row {
			return toRow(session.RoleOrganization, r.ID, r.Value, now)
		}),
	}
}

// Get point-reads an account with its edit form.
func (s *Service) Get(ctx context.Context, kind session.Role, uid string) (*Detail, error) {
	form, err := FormOf(kind)
	if err != nil {
		return nil, err
	}

	snap, err := detail.Read(ctx, s.db, realtimedb.Join(kind.AccountCollection(), uid), "account")
	if err != nil {
		return nil, err
	}
	var account structs.Account
	if err := detail.Decode(snap, "account", &account); err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := detail.Decode(snap, "account", &raw); err != nil {
		return nil, err
	}

	return &Detail{Row: toRow(kind, uid, account, s.now()), Fields: form.Populate(raw)}, nil
}

// Edit merges edited fields of the account. The email cannot be edited.
func (s *Service) Edit(ctx context.Context, identity *session.Identity, kind session.Role, uid string, input map[string]interface{}) error {
	logger := logging.FromContext(ctx).Named("accounts.Edit")

	form, err := FormOf(kind)
	if err != nil {
		return err
	}
	fields, err := form.Merge(input)
	if err != nil {
		return err
	}
	if t, ok := fields["userType"]; ok && !knownUserType(t) {
		return &errors.ValidationError{Field: "userType", Msg: fmt.Sprintf("userType must be one of: %v", strings.Join(userTypes, ", "))}
	}

	path := realtimedb.Join(kind.AccountCollection(), uid)
	if err := detail.Exists(ctx, s.db, path, "account"); err != nil {
		return err
	}
	if err := s.db.Update(ctx, path, fields); err != nil {
		return errors.Remote("saving account", err)
	}

	logger.Infof("Account %v edited by %v (%d fields)", path, identity.Actor(), len(fields))
	return nil
}

// Profile reads the profile of the signed-in admin or organization.
func (s *Service) Profile(ctx context.Context, identity *session.Identity) (*Profile, error) {
	path, err := profilePath(identity)
	if err != nil {
		return nil, err
	}

	snap, err := s.db.Get(ctx, path)
	if err != nil {
		return nil, errors.Remote("reading profile", err)
	}
	var account structs.Account
	if snap.Exists() {
		if err := snap.Unmarshal(&account); err != nil {
			return nil, fmt.Errorf("decoding profile: %w", err)
		}
	}

	p := &Profile{
		UID:          identity.UID,
		Role:         identity.Role,
		Email:        identity.Email,
		FirstName:    account.FirstName,
		LastName:     account.LastName,
		OrgName:      account.OrgName,
		ProfileImage: account.ProfileImage,
	}
	if identity.Role == session.RoleOrganization {
		p.Name = account.OrgName
	} else {
		p.Name = strings.TrimSpace(account.FirstName + " " + account.LastName)
	}
	if p.Name == "" {
		p.Name = "(not set)"
	}
	return p, nil
}

// UpdateProfile saves the signed-in profile, uploading a new profile image when given.
func (s *Service) UpdateProfile(ctx context.Context, identity *session.Identity, req ProfileRequest) (*Profile, error) {
	logger := logging.FromContext(ctx).Named("accounts.UpdateProfile")

	if err := req.Validate(); err != nil {
		return nil, err
	}
	path, err := profilePath(identity)
	if err != nil {
		return nil, err
	}

	var updates map[string]interface{}
	var prefix string
	if identity.Role == session.RoleOrganization {
		if strings.TrimSpace(req.OrgName) == "" {
			return nil, &errors.ValidationError{Field: "orgName", Msg: "orgName is required"}
		}
		updates = map[string]interface{}{"orgName": strings.TrimSpace(req.OrgName)}
		prefix = constants.StorageOrgProfilesPrefix + identity.UID + "/"
	} else {
		updates = map[string]interface{}{
			"firstName": strings.TrimSpace(req.FirstName),
			"lastName":  strings.TrimSpace(req.LastName),
		}
		prefix = constants.StorageAdminProfilesPrefix + identity.UID + "/"
	}

	if req.Image != nil {
		link, err := storage.UploadImage(ctx, s.uploader, prefix, utils.ToMillis(s.now()), req.Image)
		if err != nil {
			return nil, err
		}
		updates["profileImage"] = link
	}

	if err := s.db.Update(ctx, path, updates); err != nil {
		return nil, errors.Remote("saving profile", err)
	}

	logger.Infof("Profile %v updated", path)

	return s.Profile(ctx, identity)
}

func knownUserType(v interface{}) bool {
	s, _ := v.(string)
	for _, t := range userTypes {
		if s == t {
			return true
		}
	}
	return false
}

func profilePath(identity *session.Identity) (string, error) {
	switch identity.Role {
	case session.RoleAdmin:
		return realtimedb.Join(constants.CollectionAdmins, identity.UID), nil
	case session.RoleOrganization:
		return realtimedb.Join(constants.CollectionOrganizations, identity.UID), nil
	}
	return "", &errors.PermissionDeniedError{Msg: fmt.Sprintf("%v accounts have no console profile", identity.Role)}
}

// Email of the account: email, else adminEmail.
func Email(a structs.Account) string {
	if a.Email != "" {
		return a.Email
	}
	return a.AdminEmail
}

// Name of the account: first and last name, else orgName, else adminName.
func Name(a structs.Account) string {
	if a.FirstName != "" {
		return strings.TrimSpace(a.FirstName + " " + a.LastName)
	}
	if a.OrgName != "" {
		return a.OrgName
	}
	return a.AdminName
}

// Contact of the account: phone, else contactNum.
func Contact(a structs.Account) string {
	if a.Phone != "" {
		return string(a.Phone)
	}
	return string(a.ContactNum)
}

// LastLogin of the account: lastLogin, else last_login. Zero means never.
func LastLogin(a structs.Account) structs.Millis {
	if !a.LastLogin.IsZero() {
		return a.LastLogin
	}
	return a.LastLoginOld
}

// IsActive reports a login within ActiveWindow before now.
func IsActive(a structs.Account, now time.Time) bool {
	last := LastLogin(a)
	if last.IsZero() {
		return false
	}
	return now.Sub(last.Time()) <= ActiveWindow
}

func toRow(kind session.Role, uid string, a structs.Account, now time.Time) Row {
	return Row{
		UID:       uid,
		Type:      kind,
		Email:     Email(a),
		Name:      Name(a),
		Contact:   Contact(a),
		LastLogin: int64(LastLogin(a)),
		Active:    IsActive(a, now),
	}
}
