package service

import (
	"context"
	"fmt"
	"io"
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

const (
	testNativeType   = "ct-native"
	testFallbackType = "ct-cents"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		NativeCreditTypeID:    testNativeType,
		FallbackCreditTypeID:  testFallbackType,
		MetronomeRateCardName: "Vocalis Standard",
		Billing:               config.DefaultBillingConfig(),
		DashboardURL:          "http://localhost:3000/dashboard",
		DocsURL:               "http://localhost:3000/docs",
	}
}

// callLog records calls across mocks so tests can assert ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// ========================================
// Balance Mocks
// ========================================

type mockBalanceSource struct {
	entries []models.RawBalanceEntry
	err     error
	calls   int
}

func (m *mockBalanceSource) QueryRawBalances(_ context.Context, _ string) ([]models.RawBalanceEntry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

type mockRefresher struct {
	log     *callLog
	balance *models.CreditBalance
	err     error
}

func (m *mockRefresher) Resolve(_ context.Context, customerID string) (*models.CreditBalance, error) {
	m.log.add("resolve:%s", customerID)
	if m.err != nil {
		return nil, m.err
	}
	b := *m.balance
	b.CustomerID = customerID
	return &b, nil
}

// ========================================
// Recharge Mocks
// ========================================

type mockReleaser struct {
	log    *callLog
	result metronome.ReleaseResult
	err    error
}

func (m *mockReleaser) ReleaseThresholdWorkflow(_ context.Context, workflowID string, outcome models.ReleaseOutcome) (metronome.ReleaseResult, error) {
	m.log.add("release:%s:%s", workflowID, outcome)
	res := m.result
	res.WorkflowID = workflowID
	res.Outcome = outcome
	return res, m.err
}

type broadcastRecord struct {
	CustomerID string
	Event      models.Event
}

type mockBroadcaster struct {
	log    *callLog
	mu     sync.Mutex
	events []broadcastRecord
}

func (m *mockBroadcaster) Broadcast(customerID string, event models.Event) int {
	m.log.add("broadcast:%s:%s", customerID, event.Type)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, broadcastRecord{CustomerID: customerID, Event: event})
	return 1
}

func (m *mockBroadcaster) sent() []broadcastRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]broadcastRecord(nil), m.events...)
}

type mockAuthorizer struct {
	log  *callLog
	auth PaymentAuthorization
	err  error
}

func (m *mockAuthorizer) Authorize(_ context.Context, wf models.RechargeWorkflow) (PaymentAuthorization, error) {
	m.log.add("authorize:%s", wf.WorkflowID)
	return m.auth, m.err
}

// ========================================
// User Store Mock
// ========================================

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		m.users[u.CustomerID] = u
	}
	return m
}

func (m *mockUserRepo) Upsert(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for id, u := range m.users {
		if id != user.CustomerID && strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *user
	m.users[user.CustomerID] = &cp
	return nil
}

func (m *mockUserRepo) GetByCustomerID(_ context.Context, customerID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[customerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) SetPlan(_ context.Context, customerID, planID, contractID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[customerID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PlanID, u.ContractID = planID, contractID
	t := at
	u.PlanSelectedAt = &t
	return nil
}

func (m *mockUserRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// ========================================
// Gateway Mocks
// ========================================

type mockCustomers struct {
	created  []string
	id       string
	err      error
	customer *metronome.Customer
	getErr   error
}

func (m *mockCustomers) CreateCustomer(_ context.Context, name, email string) (string, error) {
	m.created = append(m.created, name+"|"+email)
	return m.id, m.err
}

func (m *mockCustomers) GetCustomer(_ context.Context, _ string) (*metronome.Customer, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.customer, nil
}

type mockProvisioner struct {
	configured  bool
	rateCardID  string
	rateCardErr error
	productID   string
	productErr  error
	contractErr error
	requests    []metronome.ContractRequest
	ensureCalls int
}

func (m *mockProvisioner) Configured() bool { return m.configured }

func (m *mockProvisioner) ResolveRateCard(_ context.Context, _ string) (string, error) {
	return m.rateCardID, m.rateCardErr
}

func (m *mockProvisioner) FindPrepaidProduct(_ context.Context) (string, error) {
	return m.productID, m.productErr
}

func (m *mockProvisioner) EnsurePrepaidProduct(_ context.Context) (string, error) {
	m.ensureCalls++
	return m.productID, m.productErr
}

func (m *mockProvisioner) CreateContract(_ context.Context, req metronome.ContractRequest) (*models.BillingContract, error) {
	m.requests = append(m.requests, req)
	if m.contractErr != nil {
		return nil, m.contractErr
	}
	c := &models.BillingContract{
		ContractID:     fmt.Sprintf("con_%d", len(m.requests)),
		CustomerID:     req.CustomerID,
		RateCardID:     req.RateCardID,
		ProductID:      req.ProductID,
		InitialCredits: req.Credits,
		ValidFrom:      req.Start,
		ValidUntil:     req.End,
	}
	if req.AutoRecharge != nil {
		rule := *req.AutoRecharge
		c.AutoRecharge = &rule
	}
	return c, nil
}

type mockIngester struct {
	log    *callLog
	events []models.UsageEvent
	err    error
}

func (m *mockIngester) IngestUsageEvent(_ context.Context, event models.UsageEvent) error {
	m.log.add("ingest:%s", event.EventType)
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

// ========================================
// Task and Email Mocks
// ========================================

// syncTasks runs submitted tasks inline so tests can assert their effects.
type syncTasks struct {
	mu     sync.Mutex
	names  []string
	errs   []error
	reject bool
}

func (s *syncTasks) Submit(name string, fn worker.TaskFunc) bool {
	if s.reject {
		return false
	}
	err := fn(context.Background())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.errs = append(s.errs, err)
	return true
}

type mockSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *mockSender) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSender) messages() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

type mockWelcome struct {
	queued []string
}

func (m *mockWelcome) QueueWelcome(user *models.User, plan models.Plan, _ time.Time) bool {
	m.queued = append(m.queued, user.CustomerID+":"+plan.ID)
	return true
}
