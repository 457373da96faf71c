// Package billing consumes Stripe webhooks and keeps profile tiers in
// sync with subscription state.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/bootstrap"
)

const serviceName = "billing-webhook"

// Stripe recommends capping webhook bodies well below this.
const maxBodyBytes = 1 << 16

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.HTTP("BillingWebhook", BillingWebhook)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx)
	})
	return svc, svcErr
}

// BillingWebhook is the entry point
func BillingWebhook(w http.ResponseWriter, r *http.Request) {
	svc, err := initService(r.Context())
	if err != nil {
		http.Error(w, "service init failed", http.StatusInternalServerError)
		return
	}

	logger := bootstrap.NewLogger(serviceName)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), svc.Config.StripeWebhookSecret)
	if err != nil {
		logger.Warn("Stripe signature rejected", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := HandleEvent(r.Context(), svc.DB, logger, event); err != nil {
		logger.Error("Billing event failed", "type", string(event.Type), "error", err)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleEvent applies one verified Stripe event. Unrecognized event types
// are acknowledged and ignored.
func HandleEvent(ctx context.Context, db shared.Database, logger *slog.Logger, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("unmarshal checkout session: %w", err)
		}
		phone := session.ClientReferenceID
		if phone == "" {
			return fmt.Errorf("checkout session %s has no client_reference_id", session.ID)
		}

		update := map[string]interface{}{"tier": "pro"}
		if session.Customer != nil {
			update["stripe_customer_id"] = session.Customer.ID
		}
		if session.Subscription != nil {
			update["stripe_subscription_id"] = session.Subscription.ID
		}
		if err := db.UpdateProfile(ctx, phone, update); err != nil {
			return fmt.Errorf("upgrade profile %s: %w", phone, err)
		}
		logger.Info("Profile upgraded to pro", "phone_number", phone)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("unmarshal subscription: %w", err)
		}
		phone := sub.Metadata["phone_number"]
		if phone == "" {
			return fmt.Errorf("subscription %s has no phone_number metadata", sub.ID)
		}

		if err := db.UpdateProfile(ctx, phone, map[string]interface{}{
			"tier":                   "free",
			"stripe_subscription_id": "",
		}); err != nil {
			return fmt.Errorf("downgrade profile %s: %w", phone, err)
		}
		logger.Info("Profile downgraded to free", "phone_number", phone)

	default:
		logger.Debug("Ignoring billing event", "type", string(event.Type))
	}
	return nil
}
