package generation

import (
	"context"
	"errors"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/port/outbound"
)

// Domain errors for generation.
var (
	ErrGenerationInProgress = errors.New("a generation is already in progress for this feature")
	ErrNotGenerating        = errors.New("no generation in progress")
	ErrInvalidRequest       = errors.New("invalid generation request")
	ErrUnknownFeature       = errors.New("unknown feature")
)

// Error codes surfaced with failed generations.
const (
	CodeMissingCredential   = "MISSING_CREDENTIAL"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeProviderResponse    = "PROVIDER_RESPONSE"
	CodeNetwork             = "NETWORK_ERROR"
	CodeTimeout             = "GENERATION_TIMEOUT"
	CodeCancelled           = "GENERATION_CANCELLED"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInternal            = "GENERATION_FAILED"
)

// Classify maps an error to a code and a user-readable message.
func Classify(err error) (code, message string) {
	switch {
	case err == nil:
		return "", ""
	case outbound.IsMissingCredential(err):
		return CodeMissingCredential, "Nenhuma chave de API configurada. Selecione uma chave para continuar."
	case errors.Is(err, billing.ErrInsufficientCredits):
		return CodeInsufficientCredits, "Créditos insuficientes. Faça upgrade do seu plano para continuar."
	case errors.Is(err, outbound.ErrPollTimeout):
		return CodeTimeout, "A geração demorou mais do que o esperado. Tente novamente."
	case outbound.IsProviderResponse(err):
		return CodeProviderResponse, "A IA retornou uma resposta inválida. Tente novamente."
	case errors.Is(err, context.Canceled):
		return CodeCancelled, "Geração cancelada."
	case outbound.IsNetwork(err), errors.Is(err, context.DeadlineExceeded):
		return CodeNetwork, "Falha de conexão com o serviço de IA. Tente novamente."
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest, "Dados inválidos para a geração."
	default:
		return CodeInternal, "Não foi possível gerar o conteúdo. Tente novamente."
	}
}
