// Package service contains the business logic layer. Billing state lives
// with the provider; services read it through the metronome gateway on
// every request.
package service

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/vocalis-api/internal/config"
	"github.com/jmylchreest/vocalis-api/internal/email"
	"github.com/jmylchreest/vocalis-api/internal/metrics"
	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/notify"
	"github.com/jmylchreest/vocalis-api/internal/repository"
	"github.com/jmylchreest/vocalis-api/internal/worker"
)

// Services holds all service instances and the process-local components
// they share.
type Services struct {
	Gateway      *metronome.Client
	Hub          *notify.Hub
	Tasks        *worker.Runner
	Balances     *BalanceResolver
	Recharge     *RechargeCoordinator
	Accounts     *AccountService
	Plans        *PlanService
	Usage        *UsageService
	Onboarding   *OnboardingService
	Storage      *StorageService
	Retention    *ArchiveCleanup
	Integrations *IntegrationsHealth
	Webhooks     *metronome.WebhookVerifier
}

// NewServices creates all service instances. The task runner is created
// but not started.
func NewServices(cfg *config.Config, repos *repository.Repositories, m *metrics.Metrics, logger *slog.Logger) (*Services, error) {
	gateway := metronome.NewClient(metronome.ClientConfig{
		BaseURL:  cfg.MetronomeAPIURL,
		APIKey:   cfg.MetronomeAPIKey,
		Timeout:  cfg.ProviderTimeout,
		Observer: m,
		Logger:   logger,
	})
	if !gateway.Configured() {
		logger.Warn("METRONOME_API_KEY not set, billing calls will be rejected")
	}

	hub := notify.NewHub(notify.Options{
		KeepAlive: cfg.SSEKeepAlive,
		Logger:    logger,
		Metrics:   m,
	})

	tasks := worker.New(worker.Config{
		QueueSize:   cfg.TaskQueueSize,
		Concurrency: cfg.TaskConcurrency,
		Observer:    m,
	}, logger)

	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	authorizer, err := newPaymentAuthorizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	balances := NewBalanceResolver(gateway, cfg, logger)
	onboarding := NewOnboardingService(cfg, repos.User, gateway, email.NewSender(cfg, logger), tasks, NewEventDeduper(), logger)

	var verifier *metronome.WebhookVerifier
	if cfg.WebhookSignatureRequired() {
		verifier = metronome.NewWebhookVerifier(cfg.MetronomeWebhookSecret, 0)
	} else {
		logger.Warn("METRONOME_WEBHOOK_SECRET not set, webhook signatures will not be verified")
	}

	return &Services{
		Gateway:      gateway,
		Hub:          hub,
		Tasks:        tasks,
		Balances:     balances,
		Recharge:     NewRechargeCoordinator(gateway, balances, hub, authorizer, logger),
		Accounts:     NewAccountService(repos.User, gateway, logger),
		Plans:        NewPlanService(cfg, gateway, balances, hub, repos.User, onboarding, logger),
		Usage:        NewUsageService(gateway, balances, hub, logger),
		Onboarding:   onboarding,
		Storage:      storageSvc,
		Retention:    NewArchiveCleanup(storageSvc, cfg.ArchiveRetention, cfg.ArchiveSweep, logger),
		Integrations: NewIntegrationsHealth(cfg, gateway, logger),
		Webhooks:     verifier,
	}, nil
}

func newPaymentAuthorizer(cfg *config.Config, logger *slog.Logger) (PaymentAuthorizer, error) {
	switch cfg.PaymentMode {
	case config.PaymentModeStripe:
		logger.Info("recharge payments via stripe")
		return NewStripeAuthorizer(cfg.StripeSecretKey, cfg.StripePaymentMethod, logger), nil
	case config.PaymentModeSimulated, "":
		logger.Info("recharge payments simulated")
		return NewSimulatedAuthorizer(logger), nil
	default:
		return nil, fmt.Errorf("unknown payment mode %q", cfg.PaymentMode)
	}
}
