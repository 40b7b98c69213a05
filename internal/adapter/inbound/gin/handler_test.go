package gin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/domain/credential"
	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/domain/ledger"
	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"github.com/elevare/server/internal/utils/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Mock implementations ---

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*middleware.Claims, error) {
	switch token {
	case "user-token":
		return &middleware.Claims{UserID: "u1", Email: "ana@example.com", Name: "Ana"}, nil
	case "admin-token":
		return &middleware.Claims{UserID: "admin1", Email: "ops@example.com", Role: middleware.RoleAdmin}, nil
	}
	return nil, errors.New("invalid token")
}

type MockSubscriptionDomain struct {
	mock.Mock
}

func (m *MockSubscriptionDomain) GetSubscription(ctx context.Context, userID string) (*billing.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *MockSubscriptionDomain) RefetchSubscription(ctx context.Context, userID string) (*billing.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *MockSubscriptionDomain) CheckCredits(ctx context.Context, userID string, opts billing.GuardOptions) billing.Decision {
	args := m.Called(ctx, userID, opts)
	return args.Get(0).(billing.Decision)
}

func (m *MockSubscriptionDomain) RegisterContact(ctx context.Context, userID, email, name string) error {
	args := m.Called(ctx, userID, email, name)
	return args.Error(0)
}

func (m *MockSubscriptionDomain) ListPlans(ctx context.Context) ([]billing.PlanSpec, error) {
	args := m.Called(ctx)
	return args.Get(0).([]billing.PlanSpec), args.Error(1)
}

func (m *MockSubscriptionDomain) CreateCheckout(ctx context.Context, userID, email, plan string) (*outbound.CheckoutSession, error) {
	args := m.Called(ctx, userID, email, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.CheckoutSession), args.Error(1)
}

func (m *MockSubscriptionDomain) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(ctx, payload, signature)
	return args.Error(0)
}

type MockGenerationDomain struct {
	mock.Mock
}

func (m *MockGenerationDomain) Generate(ctx context.Context, userID string, req *generation.Request) (*generation.Result, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.Result), args.Error(1)
}

func (m *MockGenerationDomain) State(userID string, feature model.FeatureType) generation.Snapshot {
	args := m.Called(userID, feature)
	return args.Get(0).(generation.Snapshot)
}

func (m *MockGenerationDomain) Cancel(userID string, feature model.FeatureType) bool {
	args := m.Called(userID, feature)
	return args.Bool(0)
}

func (m *MockGenerationDomain) CostOf(feature model.FeatureType) int64 {
	args := m.Called(feature)
	return args.Get(0).(int64)
}

type MockUsageDomain struct {
	mock.Mock
}

func (m *MockUsageDomain) Summary(ctx context.Context, userID string) (*ledger.Summary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Summary), args.Error(1)
}

func (m *MockUsageDomain) History(ctx context.Context, userID string, limit int) ([]*model.UsageLedgerEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UsageLedgerEntry), args.Error(1)
}

func (m *MockUsageDomain) GetStats(ctx context.Context, caller ledger.Caller) (*outbound.CacheStats, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.CacheStats), args.Error(1)
}

func (m *MockUsageDomain) ResetStats(ctx context.Context, caller ledger.Caller) error {
	args := m.Called(ctx, caller)
	return args.Error(0)
}

func (m *MockUsageDomain) Clear(ctx context.Context, caller ledger.Caller) (int64, error) {
	args := m.Called(ctx, caller)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageDomain) DeleteKey(ctx context.Context, caller ledger.Caller, key string) (bool, error) {
	args := m.Called(ctx, caller, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsageDomain) DeletePattern(ctx context.Context, caller ledger.Caller, pattern string) (int64, error) {
	args := m.Called(ctx, caller, pattern)
	return args.Get(0).(int64), args.Error(1)
}

type MockCredentialDomain struct {
	mock.Mock
}

func (m *MockCredentialDomain) SetAPIKey(ctx context.Context, userID, apiKey string) (*credential.Status, error) {
	args := m.Called(ctx, userID, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Status), args.Error(1)
}

func (m *MockCredentialDomain) DeleteAPIKey(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCredentialDomain) Status(ctx context.Context, userID string) (*credential.Status, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Status), args.Error(1)
}

// --- Helpers ---

type testEnv struct {
	router *gin.Engine
	subs   *MockSubscriptionDomain
	gen    *MockGenerationDomain
	usage  *MockUsageDomain
	creds  *MockCredentialDomain
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	env := &testEnv{
		subs:  new(MockSubscriptionDomain),
		gen:   new(MockGenerationDomain),
		usage: new(MockUsageDomain),
		creds: new(MockCredentialDomain),
	}
	env.router = NewRouter(RouterConfig{}, RouterDeps{
		Validator: fakeValidator{},
		Logger:    logger,
	}, Handlers{
		Subscription: NewSubscriptionHandler(env.subs, logger),
		Webhook:      NewWebhookHandler(env.subs, logger),
		Generation:   NewGenerationHandler(env.gen, logger),
		Credential:   NewCredentialHandler(env.creds, logger),
		Usage:        NewUsageHandler(env.usage, logger),
		CacheAdmin:   NewCacheAdminHandler(env.usage, logger),
		Health: NewHealthHandler("test", map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		}),
	})
	return env
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

// --- Tests ---

func TestToAppError_Taxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing credential", &outbound.MissingCredentialError{Provider: "gemini"}, http.StatusPreconditionFailed, "MISSING_CREDENTIAL"},
		{"insufficient credits", &billing.InsufficientCreditsError{Required: 1}, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS"},
		{"provider response", &outbound.ProviderResponseError{Op: "generate", Reason: "empty"}, http.StatusBadGateway, "PROVIDER_RESPONSE"},
		{"network", &outbound.NetworkError{Op: "generate", Err: errors.New("reset")}, http.StatusServiceUnavailable, "NETWORK_ERROR"},
		{"authorization", &ledger.AuthorizationError{Op: "clear", UserID: "u1"}, http.StatusForbidden, "FORBIDDEN"},
		{"in progress", fmt.Errorf("start: %w", generation.ErrGenerationInProgress), http.StatusConflict, "GENERATION_IN_PROGRESS"},
		{"validation", fmt.Errorf("%w: theme is required", generation.ErrInvalidRequest), http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := toAppError(tt.err)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestToAppError_InsufficientCreditsCarriesDismissible(t *testing.T) {
	appErr := toAppError(&billing.InsufficientCreditsError{Required: 5, Remaining: 2, Dismissible: true, Message: "upgrade"})

	assert.Equal(t, "upgrade", appErr.Message)
	assert.Equal(t, true, appErr.Details["dismissible"])
	assert.Equal(t, int64(2), appErr.Details["remaining"])
}

func TestRouter_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/subscription", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/v1/subscription", "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, w))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/nope", "user-token", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])

	degraded := NewHealthHandler("test", map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
		"nil":   nil,
	})
	r := gin.New()
	r.GET("/health", degraded.Health)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Len(t, body["checks"], 1)
}

func TestGetSubscription(t *testing.T) {
	env := newTestEnv(t)
	renewal := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	sub := billing.NewSubscription("u1", model.PlanTypeEssencial, model.SubscriptionStatusActive, 42, 100, renewal)

	env.subs.On("RegisterContact", mock.Anything, "u1", "ana@example.com", "Ana").Return(nil)
	env.subs.On("GetSubscription", mock.Anything, "u1").Return(sub, nil)

	w := env.do(http.MethodGet, "/api/v1/subscription", "user-token", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"plan": "essencial",
		"status": "active",
		"creditsRemaining": 42,
		"monthlyCreditsLimit": 100,
		"renewalDate": "2026-11-01T00:00:00Z",
		"unlimited": false
	}`, w.Body.String())
	env.subs.AssertExpectations(t)
}

func TestGetSubscription_ContactFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	sub := billing.NewSubscription("u1", model.PlanTypeProfissional, model.SubscriptionStatusActive, model.UnlimitedCredits, model.UnlimitedCredits, time.Time{})

	env.subs.On("RegisterContact", mock.Anything, "u1", mock.Anything, mock.Anything).Return(errors.New("db down"))
	env.subs.On("GetSubscription", mock.Anything, "u1").Return(sub, nil)

	w := env.do(http.MethodGet, "/api/v1/subscription", "user-token", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["unlimited"])
	assert.Nil(t, body["renewalDate"])
}

func TestRefetch_ServesStaleSnapshot(t *testing.T) {
	env := newTestEnv(t)
	stale := billing.NewSubscription("u1", model.PlanTypeFree, model.SubscriptionStatusActive, 3, 5, time.Time{})
	env.subs.On("RefetchSubscription", mock.Anything, "u1").Return(stale, errors.New("timeout"))

	w := env.do(http.MethodPost, "/api/v1/subscription/refetch", "user-token", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["stale"])
}

func TestRefetch_NoSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.subs.On("RefetchSubscription", mock.Anything, "u1").Return(nil, errors.New("timeout"))

	w := env.do(http.MethodPost, "/api/v1/subscription/refetch", "user-token", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGuard(t *testing.T) {
	env := newTestEnv(t)
	env.subs.On("CheckCredits", mock.Anything, "u1", billing.GuardOptions{Required: 3}).
		Return(billing.Decision{Allowed: false, Required: 3, Remaining: 1, Prompt: true, Dismissible: true, Message: "upgrade"})

	w := env.do(http.MethodGet, "/api/v1/subscription/guard?required=3", "user-token", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, true, body["dismissible"])

	w = env.do(http.MethodGet, "/api/v1/subscription/guard?required=abc", "user-token", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
}

func TestCreateCheckout(t *testing.T) {
	env := newTestEnv(t)
	env.subs.On("CreateCheckout", mock.Anything, "u1", "ana@example.com", "essencial").
		Return(&outbound.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil)
	env.subs.On("CreateCheckout", mock.Anything, "u1", "ana@example.com", "gold").
		Return(nil, billing.ErrInvalidPlan)

	w := env.do(http.MethodPost, "/api/v1/billing/checkout", "user-token", `{"plan":"essencial"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", decodeBody(t, w)["url"])

	w = env.do(http.MethodPost, "/api/v1/billing/checkout", "user-token", `{"plan":"gold"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/billing/checkout", "user-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhook(t *testing.T) {
	env := newTestEnv(t)
	env.subs.On("HandleWebhook", mock.Anything, []byte(`{"id":"evt_1"}`), "t=1,v1=good").Return(nil)
	env.subs.On("HandleWebhook", mock.Anything, []byte(`{"id":"evt_2"}`), "t=1,v1=bad").
		Return(fmt.Errorf("%w: signature mismatch", billing.ErrInvalidWebhook))

	send := func(body, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(body))
		req.Header.Set("Stripe-Signature", sig)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	w := send(`{"id":"evt_1"}`, "t=1,v1=good")
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(`{"id":"evt_2"}`, "t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate(t *testing.T) {
	body := `{"business":{"clinic_name":"Clínica Bella"},"input":{"theme":"Skincare no verão"}}`

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		result := &generation.Result{
			Feature:          model.FeatureEbook,
			Ebook:            &generation.Ebook{Title: "Skincare"},
			CreditsCharged:   1,
			CreditsRemaining: 4,
		}
		env.gen.On("Generate", mock.Anything, "u1", mock.MatchedBy(func(req *generation.Request) bool {
			in, ok := req.Input.(*generation.EbookInput)
			return ok && in.Theme == "Skincare no verão" &&
				req.Business.ClinicName == "Clínica Bella" &&
				req.RequestID != ""
		})).Return(result, nil)

		w := env.do(http.MethodPost, "/api/v1/generations/ebook", "user-token", body)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeBody(t, w)
		assert.Equal(t, "ebook", resp["feature"])
		assert.Equal(t, float64(4), resp["credits_remaining"])
	})

	t.Run("unknown feature", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/v1/generations/podcast", "user-token", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/v1/generations/ebook", "user-token", `{"input":{"unknown":1}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
	})

	t.Run("blocked by guard", func(t *testing.T) {
		env := newTestEnv(t)
		env.gen.On("Generate", mock.Anything, "u1", mock.Anything).
			Return(nil, &billing.InsufficientCreditsError{Required: 1, Remaining: 0, Dismissible: false})

		w := env.do(http.MethodPost, "/api/v1/generations/ebook", "user-token", body)

		require.Equal(t, http.StatusPaymentRequired, w.Code)
		resp := decodeBody(t, w)
		errBody := resp["error"].(map[string]any)
		assert.Equal(t, "INSUFFICIENT_CREDITS", errBody["code"])
		assert.Equal(t, false, errBody["details"].(map[string]any)["dismissible"])
	})

	t.Run("already generating", func(t *testing.T) {
		env := newTestEnv(t)
		env.gen.On("Generate", mock.Anything, "u1", mock.Anything).Return(nil, generation.ErrGenerationInProgress)

		w := env.do(http.MethodPost, "/api/v1/generations/ebook", "user-token", body)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "GENERATION_IN_PROGRESS", errorCode(t, w))
	})

	t.Run("provider failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.gen.On("Generate", mock.Anything, "u1", mock.Anything).
			Return(nil, &outbound.ProviderResponseError{Op: "generate", StatusCode: 500, Reason: "upstream"})

		w := env.do(http.MethodPost, "/api/v1/generations/ebook", "user-token", body)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "PROVIDER_RESPONSE", errorCode(t, w))
	})
}

func TestGenerationStateAndCancel(t *testing.T) {
	env := newTestEnv(t)
	env.gen.On("State", "u1", model.FeatureVideo).
		Return(generation.Snapshot{Feature: model.FeatureVideo, State: generation.StateGenerating})
	env.gen.On("CostOf", model.FeatureVideo).Return(int64(5))
	env.gen.On("Cancel", "u1", model.FeatureVideo).Return(true)

	w := env.do(http.MethodGet, "/api/v1/generations/video/state", "user-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(5), body["cost"])
	assert.Equal(t, "generating", body["snapshot"].(map[string]any)["state"])

	w = env.do(http.MethodPost, "/api/v1/generations/video/cancel", "user-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["cancelled"])
}

func TestCredentials(t *testing.T) {
	env := newTestEnv(t)
	status := &credential.Status{Provider: "gemini", Configured: true, Source: credential.SourceUser, Hint: "…abcd"}
	env.creds.On("SetAPIKey", mock.Anything, "u1", "AIza-secret-abcd").Return(status, nil)
	env.creds.On("Status", mock.Anything, "u1").Return(status, nil)
	env.creds.On("DeleteAPIKey", mock.Anything, "u1").Return(nil)

	w := env.do(http.MethodPut, "/api/v1/credentials/provider-key", "user-token", `{"api_key":"AIza-secret-abcd"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "AIza-secret")

	w = env.do(http.MethodPut, "/api/v1/credentials/provider-key", "user-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/credentials/provider-key", "user-token", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/credentials/provider-key", "user-token", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUsage(t *testing.T) {
	env := newTestEnv(t)
	env.usage.On("Summary", mock.Anything, "u1").Return(&ledger.Summary{
		Features:         []*model.FeatureUsage{{Feature: model.FeatureEbook, Generations: 2, Credits: 2}},
		TotalGenerations: 2,
		TotalCredits:     2,
	}, nil)
	env.usage.On("History", mock.Anything, "u1", 10).Return([]*model.UsageLedgerEntry{
		{ID: "01J", UserID: "u1", Feature: model.FeatureEbook, CreditsUsed: 1},
	}, nil)

	w := env.do(http.MethodGet, "/api/v1/usage", "user-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["total_credits"])

	w = env.do(http.MethodGet, "/api/v1/usage/history?limit=10", "user-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["entries"], 1)

	w = env.do(http.MethodGet, "/api/v1/usage/history?limit=-1", "user-token", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCacheAdmin_NonAdminIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	caller := ledger.Caller{UserID: "u1"}
	env.usage.On("Clear", mock.Anything, caller).Return(int64(0), &ledger.AuthorizationError{Op: "clear", UserID: "u1"})
	env.usage.On("DeletePattern", mock.Anything, caller, "").Return(int64(0), &ledger.AuthorizationError{Op: "delete pattern", UserID: "u1"})

	w := env.do(http.MethodPost, "/api/v1/admin/cache/clear", "user-token", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "FORBIDDEN", body["error"].(map[string]any)["code"])

	w = env.do(http.MethodPost, "/api/v1/admin/cache/delete-pattern", "user-token", `not json`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCacheAdmin_Admin(t *testing.T) {
	env := newTestEnv(t)
	caller := ledger.Caller{UserID: "admin1", Role: ledger.RoleAdmin}
	env.usage.On("GetStats", mock.Anything, caller).Return(&outbound.CacheStats{Hits: 3, Misses: 1, Keys: 2}, nil)
	env.usage.On("ResetStats", mock.Anything, caller).Return(nil)
	env.usage.On("DeleteKey", mock.Anything, caller, "usage:summary:u1").Return(true, nil)
	env.usage.On("DeletePattern", mock.Anything, caller, "usage:*").Return(int64(4), nil)

	w := env.do(http.MethodGet, "/api/v1/admin/cache/stats", "admin-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 0.75, body["hit_rate"])

	w = env.do(http.MethodPost, "/api/v1/admin/cache/stats/reset", "admin-token", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/admin/cache/keys/usage:summary:u1", "admin-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["deleted"])

	w = env.do(http.MethodPost, "/api/v1/admin/cache/delete-pattern", "admin-token", `{"pattern":"usage:*"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), decodeBody(t, w)["deleted"])
}
