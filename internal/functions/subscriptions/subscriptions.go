// Package subscriptions manages citizen and organization subscriptions and their expiry reminders.
package subscriptions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawbridge/console-backend/internal/audit"
	"github.com/pawbridge/console-backend/internal/constants"
	"github.com/pawbridge/console-backend/internal/detail"
	"github.com/pawbridge/console-backend/internal/firebase/structs"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/notify"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/redis"
	"github.com/pawbridge/console-backend/internal/secrets"
	"github.com/pawbridge/console-backend/internal/session"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
)

// Subscription statuses.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

const (
	reminderTitle   = "Subscription Reminder"
	reminderLock    = "console-remind-expiring"
	reminderLockTTL = 5 * time.Minute
	reminderTTL     = 8 * 24 * time.Hour
	viewSessionTTL  = 12 * time.Hour
)

// Row is one subscription of the subscriptions page.
type Row struct {
	UID       string       `json:"uid"`
	Type      session.Role `json:"type"`
	Email     string       `json:"email"`
	Plan      string       `json:"plan"`
	StartDate string       `json:"startDate"`
	Status    string       `json:"status"`
	Active    bool         `json:"active"`
	Expiry
	Notified bool `json:"notified"`
}

// Page of subscription rows bound to a view session.
type Page struct {
	ViewSession string `json:"viewSession"`
	Rows        []Row  `json:"rows"`
}

// ToggleResult is the new status.
type ToggleResult struct {
	UID    string `json:"uid"`
	Status string `json:"status"`
	Active bool   `json:"active"`
}

// NotifyResult of a manual reminder.
type NotifyResult struct {
	UID            string `json:"uid"`
	NotificationID string `json:"notificationId"`
	Message        string `json:"message"`
}

// RemindResult of a scheduled run.
type RemindResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Service serves the subscriptions page.
type Service struct {
	db        realtimedb.RealtimeDB
	notifier  *notify.Notifier
	publisher *audit.Publisher
	cache     redis.Client
	mutex     redis.MutexManager
	secrets   secrets.Manager
	now       utils.Clock

	mu       sync.Mutex
	sessions map[string]*viewSession
}

type viewSession struct {
	notified map[string]bool
	touched  time.Time
}

// NewService creates service. now may be nil.
func NewService(db realtimedb.RealtimeDB, notifier *notify.Notifier, publisher *audit.Publisher, cache redis.Client, mutex redis.MutexManager, secretsManager secrets.Manager, now utils.Clock) *Service {
	if now == nil {
		now = utils.Now
	}
	return &Service{
		db:        db,
		notifier:  notifier,
		publisher: publisher,
		cache:     cache,
		mutex:     mutex,
		secrets:   secretsManager,
		now:       now,
		sessions:  map[string]*viewSession{},
	}
}

// List merges citizen and organization subscriptions with a start date. An empty viewSession opens a new one.
func (s *Service) List(ctx context.Context, viewSessionID string) (*Page, error) {
	if viewSessionID == "" {
		viewSessionID = uuid.New().String()
	}

	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i].Notified = s.notified(viewSessionID, rowKey(rows[i].Type, rows[i].UID))
	}

	return &Page{ViewSession: viewSessionID, Rows: rows}, nil
}

// Toggle flips the status between active and cancelled.
func (s *Service) Toggle(ctx context.Context, identity *session.Identity, kind session.Role, uid string) (*ToggleResult, error) {
	logger := logging.FromContext(ctx).Named("subscriptions.Toggle")

	node, err := subscriptionPath(kind, uid)
	if err != nil {
		return nil, err
	}

	if err := detail.Exists(ctx, s.db, node, "subscription"); err != nil {
		return nil, err
	}

	var from, to string
	err = s.db.RunTransaction(ctx, realtimedb.Join(node, "status"), func(tn realtimedb.TransactionNode) (interface{}, error) {
		var stored string
		if err := tn.Unmarshal(&stored); err != nil {
			return nil, err
		}
		from = stored
		to = StatusActive
		if stored == StatusActive {
			to = StatusCancelled
		}
		return to, nil
	})
	if err != nil {
		return nil, errors.Remote("changing subscription status", err)
	}

	logger.Infof("Subscription of %v %v changed %v -> %v", kind, uid, from, to)
	s.publisher.StatusChanged(ctx, constants.CollectionSubscriptions, uid, from, to, identity)

	return &ToggleResult{UID: uid, Status: to, Active: to == StatusActive}, nil
}

// Notify sends an expiry reminder once per view session. Days left are recomputed now.
func (s *Service) Notify(ctx context.Context, viewSessionID string, kind session.Role, uid string) (*NotifyResult, error) {
	logger := logging.FromContext(ctx).Named("subscriptions.Notify")

	row, err := s.row(ctx, kind, uid)
	if err != nil {
		return nil, err
	}
	if !row.CanNotify {
		return nil, &errors.FailedPreconditionError{Msg: fmt.Sprintf("reminders can only be sent within %d days of expiry, %d days left", reminderWindow, row.DaysLeft)}
	}

	key := rowKey(kind, uid)

	if !s.reserve(viewSessionID, key) {
		return nil, &errors.FailedPreconditionError{Msg: "reminder already sent"}
	}

	message := ReminderMessage(row.Plan, row.DaysLeft)
	id, err := s.notifier.Send(ctx, recipient(kind, uid), reminderTitle, message)
	if err != nil {
		s.release(viewSessionID, key)
		return nil, err
	}

	logger.Infof("Reminder sent to %v %v (%d days left)", kind, uid, row.DaysLeft)

	return &NotifyResult{UID: uid, NotificationID: id, Message: message}, nil
}

// RemindExpiring sends reminders for all active subscriptions inside the notification window.
// Runs are serialized and each (uid, expiry) is reminded at most once.
func (s *Service) RemindExpiring(ctx context.Context) (*RemindResult, error) {
	logger := logging.FromContext(ctx).Named("subscriptions.RemindExpiring")

	lock, err := s.mutex.Lock(ctx, reminderLock, reminderLockTTL)
	if err != nil {
		return nil, errors.Remote("acquiring reminder lock", err)
	}
	defer func() {
		if _, err := lock.Unlock(); err != nil {
			logger.Warnf("Could not release reminder lock: %v", err)
		}
	}()

	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}

	result := &RemindResult{}
	for _, row := range rows {
		if !row.Active || !row.CanNotify {
			continue
		}

		key := fmt.Sprintf("console:reminded:%v:%v:%d", row.Type, row.UID, row.ExpiresAt)

		claimed, err := s.cache.SetNX(ctx, key, s.now().Unix(), reminderTTL)
		if err != nil {
			logger.Warnf("Could not claim reminder of %v: %v", row.UID, err)
			result.Failed++
			continue
		}
		if !claimed {
			result.Skipped++
			continue
		}

		if _, err := s.notifier.Send(ctx, recipient(row.Type, row.UID), reminderTitle, ReminderMessage(row.Plan, row.DaysLeft)); err != nil {
			logger.Warnf("Could not remind %v: %v", row.UID, err)
			if err := s.cache.Del(ctx, key); err != nil {
				logger.Warnf("Reminder claim of %v not released: %v", row.UID, err)
			}
			result.Failed++
			continue
		}
		result.Sent++
	}

	logger.Infof("Expiry reminders: %d sent, %d skipped, %d failed", result.Sent, result.Skipped, result.Failed)

	return result, nil
}

// ReminderMessage is the reminder text. Missing plan reads "your".
func ReminderMessage(plan string, daysLeft int) string {
	if plan == "" {
		plan = "your"
	}
	plural := "s"
	if daysLeft == 1 {
		plural = ""
	}
	return fmt.Sprintf("Your %v subscription ends in %d day%v.", plan, daysLeft, plural)
}

func (s *Service) notified(viewSessionID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(viewSessionID).notified[key]
}

// reserve marks key notified in the view session unless it already is.
func (s *Service) reserve(viewSessionID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.session(viewSessionID)
	if vs.notified[key] {
		return false
	}
	vs.notified[key] = true
	return true
}

func (s *Service) release(viewSessionID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.session(viewSessionID).notified, key)
}

// session must be called with s.mu held. Idle sessions are dropped.
func (s *Service) session(id string) *viewSession {
	now := s.now()
	for k, vs := range s.sessions {
		if now.Sub(vs.touched) > viewSessionTTL {
			delete(s.sessions, k)
		}
	}

	vs, ok := s.sessions[id]
	if !ok {
		vs = &viewSession{notified: map[string]bool{}}
		s.sessions[id] = vs
	}
	vs.touched = now
	return vs
}

func (s *Service) rows(ctx context.Context) ([]Row, error) {
	var citizens map[string]structs.Subscription
	if err := s.read(ctx, constants.CollectionSubscriptions, &citizens); err != nil {
		return nil, err
	}
	var orgs map[string]structs.Account
	if err := s.read(ctx, constants.CollectionOrganizations, &orgs); err != nil {
		return nil, err
	}

	rows := []Row{}
	for _, uid := range sortedKeys(citizens) {
		sub := citizens[uid]
		if sub.StartDate.IsZero() {
			continue
		}
		rows = append(rows, s.toRow(ctx, session.RoleCitizen, uid, sub))
	}
	for _, uid := range sortedKeys(orgs) {
		sub := orgs[uid].Subscription
		if sub == nil || sub.StartDate.IsZero() {
			continue
		}
		rows = append(rows, s.toRow(ctx, session.RoleOrganization, uid, *sub))
	}
	return rows, nil
}

func (s *Service) row(ctx context.Context, kind session.Role, uid string) (*Row, error) {
	node, err := subscriptionPath(kind, uid)
	if err != nil {
		return nil, err
	}

	snap, err := s.db.Get(ctx, node)
	if err != nil {
		return nil, errors.Remote("reading subscription", err)
	}
	if !snap.Exists() {
		return nil, &errors.NotFoundError{Msg: "subscription not found"}
	}
	var sub structs.Subscription
	if err := snap.Unmarshal(&sub); err != nil {
		return nil, fmt.Errorf("decoding subscription: %w", err)
	}
	if sub.StartDate.IsZero() {
		return nil, &errors.NotFoundError{Msg: "subscription not found"}
	}

	row := s.toRow(ctx, kind, uid, sub)
	return &row, nil
}

func (s *Service) toRow(ctx context.Context, kind session.Role, uid string, sub structs.Subscription) Row {
	return Row{
		UID:       uid,
		Type:      kind,
		Email:     s.email(ctx, kind, uid),
		Plan:      sub.Plan,
		StartDate: sub.StartDate.Time().Format("2006-01-02"),
		Status:    sub.Status,
		Active:    sub.Status == StatusActive,
		Expiry:    ComputeExpiry(sub.Plan, int64(sub.StartDate), utils.ToMillis(s.now())),
	}
}

func (s *Service) email(ctx context.Context, kind session.Role, uid string) string {
	snap, err := s.db.Get(ctx, realtimedb.Join(kind.AccountCollection(), uid, "email"))
	if err != nil {
		logging.FromContext(ctx).Named("subscriptions.email").Warnf("Could not read email of %v: %v", uid, err)
		return "—"
	}
	var email string
	if err := snap.Unmarshal(&email); err != nil || email == "" {
		return "—"
	}
	return email
}

func (s *Service) read(ctx context.Context, path string, dst interface{}) error {
	snap, err := s.db.Get(ctx, path)
	if err != nil {
		return errors.Remote("reading "+path, err)
	}
	if err := snap.Unmarshal(dst); err != nil {
		return fmt.Errorf("decoding %v: %w", path, err)
	}
	return nil
}

func subscriptionPath(kind session.Role, uid string) (string, error) {
	if uid == "" {
		return "", &errors.ValidationError{Field: "uid", Msg: "uid is required"}
	}
	switch kind {
	case session.RoleCitizen:
		return realtimedb.Join(constants.CollectionSubscriptions, uid), nil
	case session.RoleOrganization:
		return realtimedb.Join(constants.CollectionOrganizations, uid, constants.FieldSubscription), nil
	}
	return "", &errors.ValidationError{Field: "type", Msg: fmt.Sprintf("type must be %v or %v", session.RoleCitizen, session.RoleOrganization)}
}

func recipient(kind session.Role, uid string) notify.Recipient {
	if kind == session.RoleOrganization {
		return notify.Organization(uid)
	}
	return notify.Citizen(uid)
}

func rowKey(kind session.Role, uid string) string {
	return string(kind) + "/" + uid
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return realtimedb.KeyLess(keys[i], keys[j]) })
	return keys
}
