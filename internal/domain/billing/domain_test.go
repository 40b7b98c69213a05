package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elevare/server/internal/infra/events"
	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock implementations ---

type MockPlanDB struct {
	mock.Mock
}

func (m *MockPlanDB) List(ctx context.Context) ([]*model.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Plan), args.Error(1)
}

func (m *MockPlanDB) Upsert(ctx context.Context, plan *model.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

type MockSubscriptionDB struct {
	mock.Mock
}

func (m *MockSubscriptionDB) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionDB) GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*model.Subscription, error) {
	args := m.Called(ctx, stripeSubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionDB) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionDB) Create(ctx context.Context, sub *model.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionDB) UpdateContact(ctx context.Context, userID, email, name string) error {
	args := m.Called(ctx, userID, email, name)
	return args.Error(0)
}

// Update applies fn to the row given to On("Update", ...), standing in for
// the locked current row.
func (m *MockSubscriptionDB) Update(ctx context.Context, userID string, fn func(sub *model.Subscription) bool) (*model.Subscription, error) {
	args := m.Called(ctx, userID)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	if args.Get(0) == nil {
		return nil, nil
	}
	row := args.Get(0).(*model.Subscription)
	fn(row)
	return row, nil
}

type MockWebhookDB struct {
	mock.Mock
}

func (m *MockWebhookDB) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookDB) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	args := m.Called(ctx, eventID, eventType)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, in *outbound.CheckoutInput) (*outbound.CheckoutSession, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.CheckoutSession), args.Error(1)
}

func (m *MockGateway) ParseWebhook(payload []byte, signature string) (*outbound.PaymentEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.PaymentEvent), args.Error(1)
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.events = append(p.events, e)
}

// --- Helpers ---

func testCatalogue() *Catalogue {
	return NewCatalogue(
		PlanSpec{Type: model.PlanTypeFree, Name: "Gratuito", MonthlyCredits: 3},
		PlanSpec{Type: model.PlanTypeEssencial, Name: "Essencial", MonthlyCredits: 50, StripePriceID: "price_essencial", DisplayOrder: 1},
		PlanSpec{Type: model.PlanTypeProfissional, Name: "Profissional", StripePriceID: "price_prof", DisplayOrder: 2},
	)
}

type testDeps struct {
	planDB    *MockPlanDB
	subDB     *MockSubscriptionDB
	webhookDB *MockWebhookDB
	gateway   *MockGateway
	publisher *recordingPublisher
}

func newTestDomain(t *testing.T) (*Domain, *testDeps) {
	t.Helper()
	deps := &testDeps{
		planDB:    new(MockPlanDB),
		subDB:     new(MockSubscriptionDB),
		webhookDB: new(MockWebhookDB),
		gateway:   new(MockGateway),
		publisher: &recordingPublisher{},
	}
	d := NewBillingDomain(deps.planDB, deps.subDB, deps.webhookDB, deps.gateway, deps.publisher,
		testCatalogue(), Config{SnapshotTTL: time.Minute, LowCreditThreshold: 2}, zap.NewNop())
	return d, deps
}

// --- Catalogue ---

func TestCatalogue_ProfissionalIsAlwaysUnlimited(t *testing.T) {
	c := NewCatalogue(PlanSpec{Type: model.PlanTypeProfissional, MonthlyCredits: 100})
	spec, ok := c.Get(model.PlanTypeProfissional)
	require.True(t, ok)
	assert.Equal(t, model.UnlimitedCredits, spec.MonthlyCredits)
	assert.True(t, spec.IsUnlimited())
}

func TestCatalogue_ListAndPriceLookup(t *testing.T) {
	c := testCatalogue()
	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, model.PlanTypeFree, list[0].Type)
	assert.Equal(t, model.PlanTypeProfissional, list[2].Type)

	spec, ok := c.ByPriceID("price_essencial")
	require.True(t, ok)
	assert.Equal(t, model.PlanTypeEssencial, spec.Type)

	_, ok = c.ByPriceID("")
	assert.False(t, ok)
}

func TestCatalogue_WithPriceIDs(t *testing.T) {
	base := DefaultCatalogue()
	c := base.WithPriceIDs(map[model.PlanType]string{
		model.PlanTypeEssencial:    "price_e",
		model.PlanTypeProfissional: "price_p",
	})

	spec, ok := c.ByPriceID("price_p")
	require.True(t, ok)
	assert.Equal(t, model.PlanTypeProfissional, spec.Type)
	assert.True(t, spec.IsUnlimited())

	free, _ := c.Get(model.PlanTypeFree)
	assert.Empty(t, free.StripePriceID)

	_, ok = base.ByPriceID("price_e")
	assert.False(t, ok, "original catalogue is unchanged")
}

// --- Subscription ---

func TestGetSubscription_ProvisionsFreePlan(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	deps.subDB.On("GetByUserID", ctx, "user-1").Return(nil, nil).Once()
	deps.subDB.On("Create", ctx, mock.MatchedBy(func(s *model.Subscription) bool {
		return s.Plan == model.PlanTypeFree && s.CreditsRemaining == 3 && s.MonthlyCreditsLimit == 3
	})).Return(nil)
	deps.subDB.On("GetByUserID", ctx, "user-1").Return(&model.Subscription{
		UserID:              "user-1",
		Plan:                model.PlanTypeFree,
		Status:              model.SubscriptionStatusActive,
		CreditsRemaining:    3,
		MonthlyCreditsLimit: 3,
		RenewalDate:         time.Now().AddDate(0, 1, 0),
	}, nil).Once()

	s, err := d.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.PlanTypeFree, s.Plan())
	assert.Equal(t, int64(3), s.CreditsRemaining())
	deps.subDB.AssertExpectations(t)
}

func TestGetSubscription_RenewsExpiredFreeAllowance(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	row := &model.Subscription{
		UserID:           "user-1",
		Plan:             model.PlanTypeFree,
		Status:           model.SubscriptionStatusActive,
		CreditsRemaining: 0,
		RenewalDate:      time.Now().Add(-time.Hour),
	}
	deps.subDB.On("GetByUserID", ctx, "user-1").Return(row, nil)
	deps.subDB.On("Update", ctx, "user-1").Return(row, nil)

	s, err := d.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.CreditsRemaining())
	assert.True(t, s.RenewalDate().After(time.Now()))
}

func TestGetSubscription_EmptyUser(t *testing.T) {
	d, _ := newTestDomain(t)
	_, err := d.GetSubscription(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestCheckCredits_UsesSnapshot(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	deps.subDB.On("GetByUserID", ctx, "user-1").Return(&model.Subscription{
		UserID:      "user-1",
		Plan:        model.PlanTypeFree,
		Status:      model.SubscriptionStatusActive,
		RenewalDate: time.Now().AddDate(0, 0, 10),
	}, nil)

	decision := d.CheckCredits(ctx, "user-1", GuardOptions{Required: 1})
	assert.False(t, decision.Allowed)
	assert.False(t, decision.Dismissible)
	assert.ErrorIs(t, decision.Err(), ErrInsufficientCredits)
}

func TestRegisterContact_UpdatesOnlyOnChange(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	row := &model.Subscription{UserID: "user-1", Email: "a@example.com", DisplayName: "Ana"}
	deps.subDB.On("GetByUserID", ctx, "user-1").Return(row, nil)

	require.NoError(t, d.RegisterContact(ctx, "user-1", "a@example.com", "Ana"))
	deps.subDB.AssertNotCalled(t, "UpdateContact", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	deps.subDB.On("UpdateContact", ctx, "user-1", "b@example.com", "").Return(nil).Once()
	require.NoError(t, d.RegisterContact(ctx, "user-1", "b@example.com", ""))
	deps.subDB.AssertExpectations(t)
	deps.subDB.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestContact(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	deps.subDB.On("GetByUserID", ctx, "user-1").Return(&model.Subscription{
		UserID:              "user-1",
		Email:               "a@example.com",
		DisplayName:         "Ana",
		Plan:                model.PlanTypeEssencial,
		CreditsRemaining:    2,
		MonthlyCreditsLimit: 50,
	}, nil)
	deps.subDB.On("GetByUserID", ctx, "ghost").Return(nil, nil)

	c, err := d.Contact(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", c.Email)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, "Essencial", c.PlanName)
	assert.Equal(t, int64(2), c.CreditsRemaining)
	assert.Equal(t, int64(50), c.MonthlyCredits)

	_, err = d.Contact(ctx, "ghost")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	deps.subDB.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- Checkout ---

func TestCreateCheckout(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	deps.subDB.On("GetByUserID", ctx, "user-1").Return(&model.Subscription{
		UserID:           "user-1",
		Plan:             model.PlanTypeFree,
		Status:           model.SubscriptionStatusActive,
		StripeCustomerID: "cus_1",
	}, nil)
	deps.gateway.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(in *outbound.CheckoutInput) bool {
		return in.PriceID == "price_essencial" && in.CustomerID == "cus_1" && in.Plan == model.PlanTypeEssencial
	})).Return(&outbound.CheckoutSession{ID: "cs_1", URL: "https://checkout/cs_1"}, nil)

	session, err := d.CreateCheckout(ctx, "user-1", "a@example.com", "pro")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout/cs_1", session.URL)
}

func TestCreateCheckout_Rejections(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	_, err := d.CreateCheckout(ctx, "user-1", "", "enterprise")
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = d.CreateCheckout(ctx, "user-1", "", "free")
	assert.ErrorIs(t, err, ErrPlanNotPurchase)

	deps.subDB.On("GetByUserID", ctx, "user-1").Return(&model.Subscription{
		UserID: "user-1",
		Plan:   model.PlanTypeEssencial,
		Status: model.SubscriptionStatusActive,
	}, nil)
	_, err = d.CreateCheckout(ctx, "user-1", "", "essencial")
	assert.ErrorIs(t, err, ErrSamePlan)

	noGateway := NewBillingDomain(deps.planDB, deps.subDB, deps.webhookDB, nil, nil, testCatalogue(), Config{}, zap.NewNop())
	_, err = noGateway.CreateCheckout(ctx, "user-1", "", "essencial")
	assert.ErrorIs(t, err, ErrPaymentNotConfigured)
}

// --- Webhooks ---

func TestHandleWebhook_CheckoutActivatesPlan(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()
	periodEnd := time.Now().AddDate(0, 1, 0)

	event := &outbound.PaymentEvent{
		ID:             "evt_1",
		Type:           outbound.PaymentEventCheckoutCompleted,
		UserID:         "user-1",
		Plan:           model.PlanTypeEssencial,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PeriodEnd:      periodEnd,
	}
	row := &model.Subscription{UserID: "user-1", Email: "a@example.com", Plan: model.PlanTypeFree, CreditsRemaining: 1}

	deps.gateway.On("ParseWebhook", []byte("{}"), "sig").Return(event, nil)
	deps.webhookDB.On("IsProcessed", ctx, "evt_1").Return(false, nil)
	deps.subDB.On("GetByUserID", ctx, "user-1").Return(row, nil)
	deps.subDB.On("Update", ctx, "user-1").Return(row, nil)
	deps.webhookDB.On("MarkProcessed", ctx, "evt_1", event.Type).Return(nil)

	require.NoError(t, d.HandleWebhook(ctx, []byte("{}"), "sig"))

	assert.Equal(t, model.PlanTypeEssencial, row.Plan)
	assert.Equal(t, int64(50), row.CreditsRemaining)
	assert.Equal(t, int64(50), row.MonthlyCreditsLimit)
	assert.Equal(t, "sub_1", row.StripeSubscriptionID)
	assert.Equal(t, periodEnd, row.RenewalDate)

	require.Len(t, deps.publisher.events, 1)
	evt, ok := deps.publisher.events[0].(*SubscriptionEvent)
	require.True(t, ok)
	assert.Equal(t, EventSubscriptionActivated, evt.EventType())
	assert.Equal(t, "Essencial", evt.PlanName)
	assert.Equal(t, "a@example.com", evt.Email)
}

func TestHandleWebhook_InvoicePaidResetsCredits(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	event := &outbound.PaymentEvent{ID: "evt_2", Type: outbound.PaymentEventInvoicePaid, SubscriptionID: "sub_1"}
	row := &model.Subscription{UserID: "user-1", Plan: model.PlanTypeEssencial, CreditsRemaining: 4}

	deps.gateway.On("ParseWebhook", mock.Anything, mock.Anything).Return(event, nil)
	deps.webhookDB.On("IsProcessed", ctx, "evt_2").Return(false, nil)
	deps.subDB.On("GetByStripeSubscriptionID", ctx, "sub_1").Return(row, nil)
	deps.subDB.On("Update", ctx, "user-1").Return(row, nil)
	deps.webhookDB.On("MarkProcessed", ctx, "evt_2", event.Type).Return(nil)

	require.NoError(t, d.HandleWebhook(ctx, []byte("{}"), "sig"))
	assert.Equal(t, int64(50), row.CreditsRemaining)
	assert.Equal(t, model.SubscriptionStatusActive, row.Status)
	require.Len(t, deps.publisher.events, 1)
	assert.Equal(t, EventSubscriptionRenewed, deps.publisher.events[0].EventType())
}

func TestHandleWebhook_SubscriptionDeletedDowngrades(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	event := &outbound.PaymentEvent{ID: "evt_3", Type: outbound.PaymentEventSubscriptionDeleted, SubscriptionID: "sub_1"}
	row := &model.Subscription{
		UserID:               "user-1",
		Plan:                 model.PlanTypeProfissional,
		CreditsRemaining:     model.UnlimitedCredits,
		StripeSubscriptionID: "sub_1",
	}

	deps.gateway.On("ParseWebhook", mock.Anything, mock.Anything).Return(event, nil)
	deps.webhookDB.On("IsProcessed", ctx, "evt_3").Return(false, nil)
	deps.subDB.On("GetByStripeSubscriptionID", ctx, "sub_1").Return(row, nil)
	deps.subDB.On("Update", ctx, "user-1").Return(row, nil)
	deps.webhookDB.On("MarkProcessed", ctx, "evt_3", event.Type).Return(nil)

	require.NoError(t, d.HandleWebhook(ctx, []byte("{}"), "sig"))
	assert.Equal(t, model.PlanTypeFree, row.Plan)
	assert.Equal(t, model.SubscriptionStatusCancelled, row.Status)
	assert.Equal(t, int64(3), row.CreditsRemaining)
	assert.Empty(t, row.StripeSubscriptionID)
}

func TestHandleWebhook_DuplicateEventIsSkipped(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	event := &outbound.PaymentEvent{ID: "evt_1", Type: outbound.PaymentEventInvoicePaid, SubscriptionID: "sub_1"}
	deps.gateway.On("ParseWebhook", mock.Anything, mock.Anything).Return(event, nil)
	deps.webhookDB.On("IsProcessed", ctx, "evt_1").Return(true, nil)

	require.NoError(t, d.HandleWebhook(ctx, []byte("{}"), "sig"))
	deps.subDB.AssertNotCalled(t, "GetByStripeSubscriptionID", mock.Anything, mock.Anything)
	deps.webhookDB.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	d, deps := newTestDomain(t)
	deps.gateway.On("ParseWebhook", mock.Anything, "bad").Return(nil, errors.New("signature mismatch"))

	err := d.HandleWebhook(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrInvalidWebhook)
}

func TestHandleWebhook_FailureIsNotMarkedProcessed(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()

	event := &outbound.PaymentEvent{ID: "evt_4", Type: outbound.PaymentEventInvoicePaid, SubscriptionID: "sub_1"}
	row := &model.Subscription{UserID: "user-1", Plan: model.PlanTypeEssencial}
	deps.gateway.On("ParseWebhook", mock.Anything, mock.Anything).Return(event, nil)
	deps.webhookDB.On("IsProcessed", ctx, "evt_4").Return(false, nil)
	deps.subDB.On("GetByStripeSubscriptionID", ctx, "sub_1").Return(row, nil)
	deps.subDB.On("Update", ctx, "user-1").Return(nil, errors.New("db down"))

	err := d.HandleWebhook(ctx, []byte("{}"), "sig")
	assert.Error(t, err)
	deps.webhookDB.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncPlans(t *testing.T) {
	d, deps := newTestDomain(t)
	ctx := context.Background()
	deps.planDB.On("Upsert", ctx, mock.AnythingOfType("*model.Plan")).Return(nil).Times(3)

	require.NoError(t, d.SyncPlans(ctx))
	deps.planDB.AssertExpectations(t)
}
