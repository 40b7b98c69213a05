package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
)

const testSecret = "whsec_test_secret"

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestGateway_ParseWebhook(t *testing.T) {
	g := NewGateway(&Config{APIKey: "sk_test", WebhookSecret: testSecret})

	t.Run("checkout completed", func(t *testing.T) {
		payload := `{
			"id": "evt_checkout",
			"object": "event",
			"type": "checkout.session.completed",
			"data": {"object": {
				"id": "cs_1",
				"object": "checkout.session",
				"client_reference_id": "user-1",
				"customer": "cus_1",
				"subscription": "sub_1",
				"metadata": {"user_id": "user-1", "plan": "essencial"}
			}}
		}`

		event, err := g.ParseWebhook([]byte(payload), sign(t, payload))
		require.NoError(t, err)
		assert.Equal(t, "evt_checkout", event.ID)
		assert.Equal(t, outbound.PaymentEventCheckoutCompleted, event.Type)
		assert.Equal(t, "user-1", event.UserID)
		assert.Equal(t, model.PlanTypeEssencial, event.Plan)
		assert.Equal(t, "cus_1", event.CustomerID)
		assert.Equal(t, "sub_1", event.SubscriptionID)
	})

	t.Run("invoice paid", func(t *testing.T) {
		payload := `{
			"id": "evt_invoice",
			"object": "event",
			"type": "invoice.paid",
			"data": {"object": {
				"id": "in_1",
				"object": "invoice",
				"customer": "cus_1",
				"subscription": "sub_1",
				"lines": {"object": "list", "data": [
					{"id": "il_1", "object": "line_item", "period": {"start": 1767225600, "end": 1769904000}}
				]}
			}}
		}`

		event, err := g.ParseWebhook([]byte(payload), sign(t, payload))
		require.NoError(t, err)
		assert.Equal(t, outbound.PaymentEventInvoicePaid, event.Type)
		assert.Equal(t, "sub_1", event.SubscriptionID)
		assert.Equal(t, "cus_1", event.CustomerID)
		assert.Equal(t, time.Unix(1769904000, 0).UTC(), event.PeriodEnd)
	})

	t.Run("subscription deleted", func(t *testing.T) {
		payload := `{
			"id": "evt_deleted",
			"object": "event",
			"type": "customer.subscription.deleted",
			"data": {"object": {
				"id": "sub_1",
				"object": "subscription",
				"customer": "cus_1",
				"metadata": {"user_id": "user-1", "plan": "master"}
			}}
		}`

		event, err := g.ParseWebhook([]byte(payload), sign(t, payload))
		require.NoError(t, err)
		assert.Equal(t, "sub_1", event.SubscriptionID)
		assert.Equal(t, "user-1", event.UserID)
		assert.Equal(t, model.PlanTypeProfissional, event.Plan)
		assert.True(t, event.PeriodEnd.IsZero())
	})

	t.Run("unhandled type keeps id and type", func(t *testing.T) {
		payload := `{"id": "evt_other", "object": "event", "type": "customer.created", "data": {"object": {"id": "cus_1", "object": "customer"}}}`

		event, err := g.ParseWebhook([]byte(payload), sign(t, payload))
		require.NoError(t, err)
		assert.Equal(t, "evt_other", event.ID)
		assert.Equal(t, "customer.created", event.Type)
		assert.Empty(t, event.UserID)
	})

	t.Run("bad signature", func(t *testing.T) {
		payload := `{"id": "evt_1", "object": "event", "type": "invoice.paid", "data": {"object": {}}}`
		_, err := g.ParseWebhook([]byte(payload), "t=1,v1=deadbeef")
		assert.Error(t, err)
	})

	t.Run("tampered payload", func(t *testing.T) {
		payload := `{"id": "evt_1", "object": "event", "type": "invoice.paid", "data": {"object": {}}}`
		header := sign(t, payload)
		_, err := g.ParseWebhook([]byte(payload+" "), header)
		assert.Error(t, err)
	})
}

func TestGateway_ParseWebhook_NoSecret(t *testing.T) {
	g := NewGateway(&Config{APIKey: "sk_test"})
	_, err := g.ParseWebhook([]byte(`{}`), "t=1,v1=00")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
