// Package webhook receives Twilio WhatsApp callbacks, verifies them, and
// fans the normalized message out over Pub/Sub.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/go-chi/chi/v5"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/bootstrap"
	"github.com/formcoach/server/pkg/execution"
	infrapubsub "github.com/formcoach/server/pkg/infrastructure/pubsub"
	"github.com/formcoach/server/pkg/integrations/twilio"
)

const serviceName = "whatsapp-webhook"

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.HTTP("WhatsAppWebhook", WhatsAppWebhook)
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

// WhatsAppWebhook is the entry point
func WhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	svc, err := initService(r.Context())
	if err != nil {
		http.Error(w, "service init failed", http.StatusInternalServerError)
		return
	}
	NewRouter(svc).ServeHTTP(w, r)
}

// NewRouter builds the webhook's HTTP routes.
func NewRouter(svc *bootstrap.Service) chi.Router {
	router := chi.NewRouter()
	router.Post("/", handleInbound(svc))
	router.Post("/whatsapp", handleInbound(svc))
	return router
}

func handleInbound(svc *bootstrap.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := bootstrap.NewLogger(serviceName)

		if err := r.ParseForm(); err != nil {
			logger.Warn("Malformed webhook form", "error", err)
			http.Error(w, "malformed form", http.StatusBadRequest)
			return
		}

		// Signature check is skipped only when no auth token is configured
		// (local runs against the log publisher).
		if token := svc.Config.TwilioAuthToken; token != "" {
			signature := r.Header.Get("X-Twilio-Signature")
			if !twilio.ValidateSignature(token, requestURL(r), r.PostForm, signature) {
				logger.Warn("Webhook signature rejected", "remote", r.RemoteAddr)
				http.Error(w, "invalid signature", http.StatusForbidden)
				return
			}
		}

		msg := twilio.ParseInbound(r)
		if msg.MessageSid == "" || msg.From == "" {
			logger.Warn("Webhook missing required fields")
			http.Error(w, "missing MessageSid or From", http.StatusBadRequest)
			return
		}

		logger = logger.With("phone_number", msg.From, "message_sid", msg.MessageSid)

		execID, err := execution.LogStart(ctx, svc.DB, serviceName, execution.Options{
			PhoneNumber: msg.From,
			TriggerType: "http",
		})
		if err != nil {
			logger.Error("Failed to log execution start", "error", err)
		}

		e, err := infrapubsub.NewCloudEvent(infrapubsub.SourceWebhook, infrapubsub.TypeMessageReceived, msg)
		if err != nil {
			logger.Error("CloudEvent build failed", "error", err)
			failAndRespond(ctx, svc, logger, w, execID, err)
			return
		}

		msgID, err := svc.Pub.PublishCloudEvent(ctx, shared.TopicInboundMessages, e)
		if err != nil {
			logger.Error("Publish failed", "error", err)
			failAndRespond(ctx, svc, logger, w, execID, err)
			return
		}

		logger.Info("Inbound message published", "pubsub_message_id", msgID)
		if err := execution.LogSuccess(ctx, svc.DB, execID, map[string]interface{}{
			"pubsub_message_id": msgID,
		}); err != nil {
			logger.Warn("Failed to log execution success", "error", err)
		}

		// Twilio expects TwiML; an empty response sends no auto-reply.
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, emptyTwiML)
	}
}

func failAndRespond(ctx context.Context, svc *bootstrap.Service, logger *slog.Logger, w http.ResponseWriter, execID string, err error) {
	if logErr := execution.LogFailure(ctx, svc.DB, execID, err, nil); logErr != nil {
		logger.Warn("Failed to log execution failure", "error", logErr)
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// requestURL rebuilds the public URL Twilio signed. Cloud Functions
// terminates TLS upstream, so the scheme comes from the forwarding proxy.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}
