// Package execution writes the per-invocation ledger used for debugging
// and for correlating at-least-once redeliveries.
package execution

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/types"
)

const (
	StatusStarted  = "STARTED"
	StatusSuccess  = "SUCCESS"
	StatusFailure  = "FAILURE"
	StatusDegraded = "DEGRADED" // collaborator failed, user was asked to retry
)

// Options carries optional metadata extracted from the trigger.
type Options struct {
	PhoneNumber string
	TriggerType string
}

// LogStart records the invocation and returns its execution ID.
func LogStart(ctx context.Context, db shared.Database, serviceName string, opts Options) (string, error) {
	execID := uuid.NewString()
	record := &types.ExecutionRecord{
		ExecutionID: execID,
		Service:     serviceName,
		PhoneNumber: opts.PhoneNumber,
		TriggerType: opts.TriggerType,
		Status:      StatusStarted,
		StartedAt:   time.Now().UTC(),
	}
	if err := db.SetExecution(ctx, record); err != nil {
		return execID, err
	}
	return execID, nil
}

// LogSuccess marks the invocation finished, attaching handler outputs.
func LogSuccess(ctx context.Context, db shared.Database, execID string, outputs interface{}) error {
	return logFinish(ctx, db, execID, StatusSuccess, "", outputs)
}

// LogFailure marks the invocation failed.
func LogFailure(ctx context.Context, db shared.Database, execID string, cause error, outputs interface{}) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return logFinish(ctx, db, execID, StatusFailure, msg, outputs)
}

// LogStatus records a custom terminal status (e.g. DEGRADED).
func LogStatus(ctx context.Context, db shared.Database, execID, status string, outputs interface{}) error {
	return logFinish(ctx, db, execID, status, "", outputs)
}

func logFinish(ctx context.Context, db shared.Database, execID, status, errMsg string, outputs interface{}) error {
	data := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now().UTC(),
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	if outputs != nil {
		if b, err := json.Marshal(outputs); err == nil {
			data["outputs_json"] = string(b)
		}
	}
	return db.UpdateExecution(ctx, execID, data)
}
