package handlers

import (
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/service"
)

// mapError converts service and gateway errors into huma status errors.
// Unknown errors are logged and hidden behind a 500.
func mapError(logger *slog.Logger, op string, err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, service.ErrInvalidSignup),
		errors.Is(err, service.ErrInvalidUsage),
		errors.Is(err, service.ErrInvalidPurchase):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrUnknownPlan):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrInsufficientCredits):
		return huma.NewError(402, err.Error())
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, metronome.ErrNotFound):
		return huma.Error404NotFound(err.Error())

	case errors.Is(err, service.ErrBalanceIndeterminate):
		logger.Warn("balance indeterminate", "op", op, "error", err)
		return huma.Error502BadGateway("balance could not be determined")
	case errors.Is(err, service.ErrRateCardMissing):
		logger.Error("billing catalog misconfigured", "op", op, "error", err)
		return huma.Error502BadGateway(err.Error())
	case errors.Is(err, metronome.ErrProviderUnavailable):
		logger.Warn("billing provider unavailable", "op", op, "error", err)
		return huma.Error503ServiceUnavailable("billing provider unavailable")
	case errors.Is(err, metronome.ErrProviderRejected):
		logger.Warn("billing provider rejected request", "op", op, "error", err)
		return huma.Error502BadGateway("billing provider rejected request")
	case errors.Is(err, metronome.ErrContractCreationFailed),
		errors.Is(err, metronome.ErrIngestFailed):
		logger.Error("billing provider call failed", "op", op, "error", err)
		return huma.Error502BadGateway(err.Error())

	default:
		logger.Error("request failed", "op", op, "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
