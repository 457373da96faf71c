package framework

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/formcoach/server/pkg/bootstrap"
	"github.com/formcoach/server/pkg/execution"
	infrasentry "github.com/formcoach/server/pkg/infrastructure/sentry"
)

// FrameworkContext contains dependencies injected by the framework
type FrameworkContext struct {
	Service     *bootstrap.Service
	Logger      *slog.Logger
	ExecutionID string
}

// HandlerFunc is the signature for a cloud function handler
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error)

// WrapCloudEvent wraps a handler with execution logging and Sentry capture.
// Handles both HTTP and Pub/Sub triggers.
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) error {
		phoneNumber := extractPhoneNumber(e)

		triggerType := "pubsub"
		if e.Type() == "google.cloud.functions.http" {
			triggerType = "http"
		}

		opts := bootstrap.GetSlogHandlerOptions(bootstrap.LogLevelFromEnv())
		logger := slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("service", serviceName)
		if phoneNumber != "" {
			logger = logger.With("phone_number", phoneNumber)
		}

		execID, err := execution.LogStart(ctx, svc.DB, serviceName, execution.Options{
			PhoneNumber: phoneNumber,
			TriggerType: triggerType,
		})
		if err != nil {
			logger.Error("Failed to log execution start", "error", err)
			// Continue anyway - don't fail the function just because logging failed
		}

		logger = logger.With("execution_id", execID)
		logger.Info("Function started")

		fwCtx := &FrameworkContext{
			Service:     svc,
			Logger:      logger,
			ExecutionID: execID,
		}

		outputs, handlerErr := handler(ctx, e, fwCtx)

		if handlerErr != nil {
			logger.Error("Function failed", "error", handlerErr)
			infrasentry.CaptureException(handlerErr, map[string]interface{}{
				"service":      serviceName,
				"execution_id": execID,
			}, logger)
			infrasentry.Flush(2 * time.Second)
			if logErr := execution.LogFailure(ctx, svc.DB, execID, handlerErr, outputs); logErr != nil {
				logger.Warn("Failed to log execution failure", "error", logErr)
			}
			return handlerErr
		}

		logger.Info("Function completed successfully")

		// Handlers may report a custom terminal status (e.g. DEGRADED when a
		// collaborator failed and the user was asked to retry).
		customStatus := ""
		if outputsMap, ok := outputs.(map[string]interface{}); ok {
			if s, ok := outputsMap["status"].(string); ok && s != execution.StatusSuccess {
				customStatus = s
			}
		}

		if customStatus != "" {
			if logErr := execution.LogStatus(ctx, svc.DB, execID, customStatus, outputs); logErr != nil {
				logger.Warn("Failed to log execution status", "error", logErr)
			}
		} else {
			if logErr := execution.LogSuccess(ctx, svc.DB, execID, outputs); logErr != nil {
				logger.Warn("Failed to log execution success", "error", logErr)
			}
		}

		return nil
	}
}

// extractPhoneNumber pulls the sender's number out of the event payload.
// Works for both raw JSON payloads and Pub/Sub-wrapped messages.
func extractPhoneNumber(e event.Event) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(e.Data(), &payload); err != nil {
		return ""
	}
	if from, ok := payload["from"].(string); ok {
		return from
	}
	if phone, ok := payload["phone_number"].(string); ok {
		return phone
	}
	return ""
}
