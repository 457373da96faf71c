package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stripe/stripe-go/v76"

	"github.com/formcoach/server/pkg/testing/mocks"
)

func stripeEvent(t *testing.T, eventType string, payload interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestCheckoutCompletedUpgradesTier(t *testing.T) {
	var gotPhone string
	var gotUpdate map[string]interface{}
	db := &mocks.MockDatabase{
		UpdateProfileFunc: func(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
			gotPhone = phoneNumber
			gotUpdate = data
			return nil
		},
	}

	event := stripeEvent(t, "checkout.session.completed", map[string]interface{}{
		"id":                  "cs_1",
		"client_reference_id": "whatsapp:+491",
		"customer":            map[string]interface{}{"id": "cus_1"},
		"subscription":        map[string]interface{}{"id": "sub_1"},
	})

	if err := HandleEvent(context.Background(), db, slog.Default(), event); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotPhone != "whatsapp:+491" {
		t.Errorf("Unexpected phone: %s", gotPhone)
	}
	if gotUpdate["tier"] != "pro" {
		t.Errorf("Expected pro tier, got %v", gotUpdate["tier"])
	}
	if gotUpdate["stripe_customer_id"] != "cus_1" || gotUpdate["stripe_subscription_id"] != "sub_1" {
		t.Errorf("Expected stripe IDs recorded, got %v", gotUpdate)
	}
}

func TestCheckoutWithoutReferenceFails(t *testing.T) {
	db := &mocks.MockDatabase{}
	event := stripeEvent(t, "checkout.session.completed", map[string]interface{}{"id": "cs_1"})

	if err := HandleEvent(context.Background(), db, slog.Default(), event); err == nil {
		t.Error("Expected an error for a session without client_reference_id")
	}
}

func TestSubscriptionDeletedDowngradesTier(t *testing.T) {
	var gotUpdate map[string]interface{}
	db := &mocks.MockDatabase{
		UpdateProfileFunc: func(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
			if phoneNumber != "whatsapp:+491" {
				t.Errorf("Unexpected phone: %s", phoneNumber)
			}
			gotUpdate = data
			return nil
		},
	}

	event := stripeEvent(t, "customer.subscription.deleted", map[string]interface{}{
		"id":       "sub_1",
		"metadata": map[string]string{"phone_number": "whatsapp:+491"},
	})

	if err := HandleEvent(context.Background(), db, slog.Default(), event); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotUpdate["tier"] != "free" {
		t.Errorf("Expected free tier, got %v", gotUpdate["tier"])
	}
	if gotUpdate["stripe_subscription_id"] != "" {
		t.Errorf("Expected subscription cleared, got %v", gotUpdate)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	updates := 0
	db := &mocks.MockDatabase{
		UpdateProfileFunc: func(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
			updates++
			return nil
		},
	}

	event := stripeEvent(t, "invoice.paid", map[string]interface{}{"id": "in_1"})
	if err := HandleEvent(context.Background(), db, slog.Default(), event); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if updates != 0 {
		t.Error("Unknown events must not touch profiles")
	}
}
