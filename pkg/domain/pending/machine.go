// Package pending implements the per-phone-number confirmation state
// machine used when an uploaded exercise video is ambiguous.
//
// States: NONE (no record), PENDING_CONFIRMATION (record exists,
// waiting_for_correction false), WAITING_FOR_CORRECTION (flag true).
// Terminal action from either live state is deletion.
package pending

import (
	"context"
	"fmt"
	"time"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/types"
)

// MaxReprompts bounds how many unclear replies are tolerated before the
// flow gives up and asks for the video again.
const MaxReprompts = 2

type Machine struct {
	db shared.Database
}

func NewMachine(db shared.Database) *Machine {
	return &Machine{db: db}
}

// Get returns the live record for the phone number, or nil in state NONE.
func (m *Machine) Get(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error) {
	return m.db.GetPendingConfirmation(ctx, phoneNumber)
}

// AwaitingCorrection returns the record only when the flow is specifically
// expecting a correction string, nil otherwise.
func (m *Machine) AwaitingCorrection(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error) {
	return m.db.GetPendingAwaitingCorrection(ctx, phoneNumber)
}

// Supersede installs a fresh PENDING_CONFIRMATION record for the phone
// number, replacing any prior record in one atomic write. The newest video
// always wins; nothing is merged.
func (m *Machine) Supersede(ctx context.Context, phoneNumber, detectedExercise string, video types.MediaRef) error {
	record := &types.PendingConfirmation{
		PhoneNumber:          phoneNumber,
		DetectedExercise:     detectedExercise,
		Video:                video,
		WaitingForCorrection: false,
		RepromptCount:        0,
		CreatedAt:            time.Now().UTC(),
	}
	if err := m.db.ReplacePendingConfirmation(ctx, record); err != nil {
		return fmt.Errorf("replace pending confirmation for %s: %w", phoneNumber, err)
	}
	return nil
}

// RequestCorrection moves the record to WAITING_FOR_CORRECTION after an
// unclear reply. Once MaxReprompts unclear replies have been burned the
// record is deleted instead and gaveUp is true: the caller should ask the
// user to resend the video.
//
// The record may have been resolved by a concurrent delivery (a newer
// video, or another reply) between the caller's read and this write. In
// that case the returned error wraps faults.ErrNotFound and no state is
// written; the reply has nothing left to correct.
func (m *Machine) RequestCorrection(ctx context.Context, record *types.PendingConfirmation) (gaveUp bool, err error) {
	if record.RepromptCount >= MaxReprompts {
		if err := m.Resolve(ctx, record.PhoneNumber); err != nil {
			return false, err
		}
		return true, nil
	}
	err = m.db.UpdatePendingConfirmation(ctx, record.PhoneNumber, map[string]interface{}{
		"waiting_for_correction": true,
		"reprompt_count":         record.RepromptCount + 1,
	})
	if err != nil {
		return false, fmt.Errorf("mark pending confirmation waiting for %s: %w", record.PhoneNumber, err)
	}
	return false, nil
}

// Resolve deletes the record, returning the phone number to state NONE.
// Deleting an already-resolved record is a no-op.
func (m *Machine) Resolve(ctx context.Context, phoneNumber string) error {
	if err := m.db.DeletePendingConfirmation(ctx, phoneNumber); err != nil {
		return fmt.Errorf("delete pending confirmation for %s: %w", phoneNumber, err)
	}
	return nil
}
