package gin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/domain/credential"
	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/domain/ledger"
	"github.com/elevare/server/internal/port/outbound"
	apperrors "github.com/elevare/server/internal/utils/errors"
)

// toAppError maps domain errors to HTTP errors.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var credits *billing.InsufficientCreditsError
	if errors.As(err, &credits) {
		msg := credits.Message
		if msg == "" {
			_, msg = generation.Classify(err)
		}
		return apperrors.PaymentRequired(generation.CodeInsufficientCredits, msg).WithDetails(map[string]any{
			"required":    credits.Required,
			"remaining":   credits.Remaining,
			"dismissible": credits.Dismissible,
		})
	}

	code, msg := generation.Classify(err)
	switch {
	case outbound.IsMissingCredential(err):
		return apperrors.PreconditionFailed(code, msg)
	case outbound.IsProviderResponse(err):
		return apperrors.BadGateway(code, msg)
	case outbound.IsNetwork(err), errors.Is(err, context.DeadlineExceeded):
		return apperrors.ServiceUnavailable(code, msg)
	case errors.Is(err, context.Canceled):
		return apperrors.Conflict(code, msg)
	case errors.Is(err, generation.ErrGenerationInProgress):
		return apperrors.Conflict("GENERATION_IN_PROGRESS", "Já existe uma geração em andamento para este recurso.")
	case errors.Is(err, generation.ErrInvalidRequest),
		errors.Is(err, generation.ErrUnknownFeature):
		return apperrors.BadRequest(err.Error())

	case errors.Is(err, ledger.ErrForbidden):
		return apperrors.Forbidden("administrator role required")
	case errors.Is(err, ledger.ErrInvalidKey),
		errors.Is(err, ledger.ErrInvalidPattern):
		return apperrors.BadRequest(err.Error())

	case errors.Is(err, credential.ErrInvalidAPIKey):
		return apperrors.BadRequest(err.Error())

	case errors.Is(err, billing.ErrInvalidUserID):
		return apperrors.Unauthorized("")
	case errors.Is(err, billing.ErrInvalidPlan),
		errors.Is(err, billing.ErrPlanNotPurchase):
		return apperrors.BadRequest(err.Error())
	case errors.Is(err, billing.ErrPlanNotFound):
		return apperrors.NotFound("plan")
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return apperrors.NotFound("subscription")
	case errors.Is(err, billing.ErrSamePlan):
		return apperrors.Conflict("SAME_PLAN", "already subscribed to this plan")
	case errors.Is(err, billing.ErrPaymentNotConfigured):
		return apperrors.ServiceUnavailable("PAYMENTS_DISABLED", "payments are not configured")
	case errors.Is(err, billing.ErrInvalidWebhook):
		return apperrors.BadRequest("invalid webhook")
	}

	return apperrors.Internal("internal server error", err)
}

// respondError writes the JSON error envelope for err.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= 500 && logger != nil {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", appErr.Code),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}

// respondInvalid writes a 400 INVALID_REQUEST envelope.
func respondInvalid(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, apperrors.BadRequest(message).ToResponse())
}
