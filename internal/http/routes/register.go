package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/vocalis-api/internal/http/mw"
)

// Register registers every huma operation on api.
func Register(api huma.API, h *Handlers) {
	// --- Health ---
	mw.PublicGet(api, "/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)
	mw.PublicGet(api, "/api/health/integrations", h.Integrations.Check,
		mw.WithTags("Health"),
		mw.WithSummary("Billing provider self-check"),
		mw.WithDescription("Read-only check of provider credentials, reachability, rate card and prepaid product."),
		mw.WithOperationID("integrationsHealth"))

	// --- Auth ---
	mw.PublicPost(api, "/api/auth/signup", h.Auth.Signup,
		mw.WithTags("Auth"),
		mw.WithSummary("Create account"),
		mw.WithDescription("Creates the billing customer and the local user."),
		mw.WithOperationID("signup"),
		mw.WithStatus(http.StatusCreated),
		mw.WithErrors(http.StatusConflict, http.StatusBadGateway, http.StatusServiceUnavailable))
	mw.PublicPost(api, "/api/auth/login", h.Auth.Login,
		mw.WithTags("Auth"),
		mw.WithSummary("Log in"),
		mw.WithOperationID("login"),
		mw.WithErrors(http.StatusUnauthorized))
	mw.PublicGet(api, "/api/auth/users/{customer_id}", h.Auth.GetUser,
		mw.WithTags("Auth"),
		mw.WithSummary("Get user"),
		mw.WithOperationID("getUser"),
		mw.WithErrors(http.StatusNotFound))

	// --- Billing ---
	mw.PublicGet(api, "/api/billing/plans", h.Billing.ListPlans,
		mw.WithTags("Billing"),
		mw.WithSummary("List plans"),
		mw.WithOperationID("listPlans"))
	mw.PublicPost(api, "/api/billing/plans/select", h.Billing.SelectPlan,
		mw.WithTags("Billing"),
		mw.WithSummary("Select plan"),
		mw.WithDescription("Creates a prepaid contract for the plan. Paid plans carry an automatic recharge rule."),
		mw.WithOperationID("selectPlan"),
		mw.WithErrors(http.StatusBadGateway, http.StatusServiceUnavailable))
	mw.PublicPost(api, "/api/billing/credits/purchase", h.Billing.PurchaseCredits,
		mw.WithTags("Billing"),
		mw.WithSummary("Purchase credits"),
		mw.WithOperationID("purchaseCredits"),
		mw.WithErrors(http.StatusBadGateway, http.StatusServiceUnavailable))
	mw.PublicGet(api, "/api/billing/credits/balance/{customer_id}", h.Billing.GetBalance,
		mw.WithTags("Billing"),
		mw.WithSummary("Get credit balance"),
		mw.WithDescription("Resolves the balance from the provider on every call. Returns 502 when no balance can be determined."),
		mw.WithOperationID("getBalance"),
		mw.WithErrors(http.StatusBadGateway, http.StatusServiceUnavailable))

	// --- Usage ---
	mw.PublicPost(api, "/api/usage/generate-voice", h.Usage.GenerateVoice,
		mw.WithTags("Usage"),
		mw.WithSummary("Generate voice"),
		mw.WithOperationID("generateVoice"),
		mw.WithErrors(http.StatusPaymentRequired, http.StatusBadGateway))
	mw.PublicPost(api, "/api/usage/clone-voice", h.Usage.CloneVoice,
		mw.WithTags("Usage"),
		mw.WithSummary("Clone voice"),
		mw.WithOperationID("cloneVoice"),
		mw.WithErrors(http.StatusPaymentRequired, http.StatusBadGateway))

	// --- Notifications (raw SSE, documented only) ---
	h.Notifications.RegisterRawEndpoints(api)
}
