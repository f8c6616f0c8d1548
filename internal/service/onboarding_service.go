package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/config"
	"github.com/jmylchreest/vocalis-api/internal/email"
	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/models"
	"github.com/jmylchreest/vocalis-api/internal/repository"
	"github.com/jmylchreest/vocalis-api/internal/worker"
)

// ========================================
// Event Deduplication
// ========================================

// EventDeduper remembers processed webhook event IDs. It is process-local.
type EventDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewEventDeduper creates an empty deduper.
func NewEventDeduper() *EventDeduper {
	return &EventDeduper{seen: make(map[string]struct{})}
}

// FirstSeen records id and reports whether it was new.
func (d *EventDeduper) FirstSeen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

// Forget removes id so a redelivery is treated as new.
func (d *EventDeduper) Forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

// Len returns the number of remembered IDs.
func (d *EventDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// ========================================
// Onboarding
// ========================================

// TaskSubmitter queues detached background work.
type TaskSubmitter interface {
	Submit(name string, fn worker.TaskFunc) bool
}

// CustomerLookup fetches provider customer records.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, customerID string) (*metronome.Customer, error)
}

// OnboardingService sends lifecycle emails in response to contract and
// balance events. Sends run on the task runner and are never awaited.
type OnboardingService struct {
	users     repository.UserRepository
	customers CustomerLookup
	sender    email.Sender
	tasks     TaskSubmitter
	dedup     *EventDeduper
	billing   config.BillingConfig
	dashboard string
	docs      string
	now       func() time.Time
	logger    *slog.Logger
}

// NewOnboardingService creates a new onboarding service.
func NewOnboardingService(
	cfg *config.Config,
	users repository.UserRepository,
	customers CustomerLookup,
	sender email.Sender,
	tasks TaskSubmitter,
	dedup *EventDeduper,
	logger *slog.Logger,
) *OnboardingService {
	if dedup == nil {
		dedup = NewEventDeduper()
	}
	return &OnboardingService{
		users:     users,
		customers: customers,
		sender:    sender,
		tasks:     tasks,
		dedup:     dedup,
		billing:   cfg.Billing,
		dashboard: cfg.DashboardURL,
		docs:      cfg.DocsURL,
		now:       time.Now,
		logger:    logger.With("component", "onboarding"),
	}
}

// HandleEvent dispatches onboarding-relevant webhook events. It returns
// true when an email task was queued.
func (s *OnboardingService) HandleEvent(ev *metronome.WebhookEvent) bool {
	switch ev.Type {
	case metronome.EventContractStart:
		return s.handleContractStart(ev)
	case metronome.EventLowBalance:
		return s.handleLowBalance(ev)
	default:
		return false
	}
}

func (s *OnboardingService) handleContractStart(ev *metronome.WebhookEvent) bool {
	customerID := ev.Properties.CustomerID
	if customerID == "" {
		s.logger.Warn("contract.start without customer id", "event_id", ev.ID)
		return false
	}
	key := dedupKey(ev)
	if !s.dedup.FirstSeen(key) {
		s.logger.Debug("duplicate contract.start ignored", "event_id", ev.ID, "customer_id", customerID)
		return false
	}

	return s.submitOnce(key, "welcome_email", customerID, func(ctx context.Context) error {
		user, err := s.recipient(ctx, customerID)
		if err != nil {
			return err
		}
		plan := s.planFor(user)
		return s.sendWelcome(ctx, user, plan, user.PlanSelectedAt)
	})
}

// handleLowBalance nudges trial users towards a paid plan.
func (s *OnboardingService) handleLowBalance(ev *metronome.WebhookEvent) bool {
	customerID := ev.Properties.CustomerID
	key := dedupKey(ev)
	if customerID == "" || !s.dedup.FirstSeen(key) {
		return false
	}

	return s.submitOnce(key, "conversion_email", customerID, func(ctx context.Context) error {
		user, err := s.recipient(ctx, customerID)
		if err != nil {
			return err
		}
		if user.PlanID != config.PlanTrial {
			return nil
		}
		ends := s.trialEnd(user.PlanSelectedAt)
		daysLeft := int(ends.Sub(s.now()).Hours() / 24)
		msg, err := email.ConversionMessage(user.Email, email.ConversionData{
			FirstName:   user.FirstName,
			DaysLeft:    max(daysLeft, 0),
			TrialEndsAt: &ends,
			BillingURL:  billingURL(s.dashboard),
		})
		if err != nil {
			return err
		}
		return s.sender.Send(ctx, msg)
	})
}

// QueueWelcome sends the welcome email for a freshly selected plan.
func (s *OnboardingService) QueueWelcome(user *models.User, plan models.Plan, selectedAt time.Time) bool {
	u := *user
	return s.submit("welcome_email", user.CustomerID, func(ctx context.Context) error {
		return s.sendWelcome(ctx, &u, plan, &selectedAt)
	})
}

func (s *OnboardingService) submit(name, customerID string, fn worker.TaskFunc) bool {
	if !s.tasks.Submit(name, fn) {
		s.logger.Warn("onboarding task not queued", "task", name, "customer_id", customerID)
		return false
	}
	return true
}

// submitOnce queues fn for a deduplicated event. A task that could not be
// queued releases the key so the provider's redelivery can try again.
func (s *OnboardingService) submitOnce(key, name, customerID string, fn worker.TaskFunc) bool {
	if s.submit(name, customerID, fn) {
		return true
	}
	s.dedup.Forget(key)
	return false
}

func (s *OnboardingService) sendWelcome(ctx context.Context, user *models.User, plan models.Plan, selectedAt *time.Time) error {
	data := email.WelcomeData{
		FirstName:    user.FirstName,
		Credits:      plan.MonthlyCredits,
		DashboardURL: s.dashboard,
		DocsURL:      s.docs,
	}
	if plan.Trial {
		ends := s.trialEnd(selectedAt)
		data.TrialDays = plan.TrialDays
		data.TrialEndsAt = &ends
	}

	msg, err := email.WelcomeMessage(user.Email, data)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}
	s.logger.Info("welcome email sent", "customer_id", user.CustomerID, "plan", plan.ID)
	return nil
}

// recipient finds the user locally, falling back to the email carried in
// the provider customer's ingest alias.
func (s *OnboardingService) recipient(ctx context.Context, customerID string) (*models.User, error) {
	user, err := s.users.GetByCustomerID(ctx, customerID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	customer, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("lookup customer %s: %w", customerID, err)
	}
	addr := customer.Email()
	if addr == "" {
		return nil, fmt.Errorf("customer %s has no email alias", customerID)
	}
	first, _, _ := strings.Cut(customer.Name, " ")
	return &models.User{CustomerID: customerID, Email: addr, FirstName: first, FullName: customer.Name}, nil
}

// planFor returns the user's plan, defaulting to the trial.
func (s *OnboardingService) planFor(user *models.User) models.Plan {
	if p, ok := s.billing.Plan(user.PlanID); ok {
		return p
	}
	p, _ := s.billing.Plan(config.PlanTrial)
	return p
}

func (s *OnboardingService) trialEnd(selectedAt *time.Time) time.Time {
	start := s.now()
	if selectedAt != nil {
		start = *selectedAt
	}
	return startOfDayUTC(start).AddDate(0, 0, s.billing.TrialDays)
}

func dedupKey(ev *metronome.WebhookEvent) string {
	if ev.ID != "" {
		return ev.ID
	}
	return ev.Type + ":" + ev.Properties.CustomerID + ":" + ev.Properties.ContractID
}

func billingURL(dashboard string) string {
	base := strings.TrimSuffix(strings.TrimRight(dashboard, "/"), "/dashboard")
	return base + "/billing?promo=TRIAL20"
}

func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
