package pending

import (
	"context"
	"errors"
	"testing"

	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/testing/mocks"
	"github.com/formcoach/server/pkg/types"
)

func TestSupersedeReplacesRecord(t *testing.T) {
	var replaced *types.PendingConfirmation
	db := &mocks.MockDatabase{
		ReplacePendingConfirmationFunc: func(ctx context.Context, pending *types.PendingConfirmation) error {
			replaced = pending
			return nil
		},
	}

	m := NewMachine(db)
	video := types.MediaRef{URL: "https://api.twilio.com/media/abc", ContentType: "video/mp4"}
	if err := m.Supersede(context.Background(), "+491", "deadlift", video); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if replaced == nil {
		t.Fatal("Expected a replacement write")
	}
	if replaced.PhoneNumber != "+491" || replaced.DetectedExercise != "deadlift" {
		t.Errorf("Unexpected record: %+v", replaced)
	}
	if replaced.WaitingForCorrection {
		t.Error("Fresh record must start in PENDING_CONFIRMATION, not waiting")
	}
	if replaced.RepromptCount != 0 {
		t.Errorf("Fresh record must reset reprompt count, got %d", replaced.RepromptCount)
	}
	if replaced.Video.URL != video.URL {
		t.Errorf("Unexpected video ref: %+v", replaced.Video)
	}
	if replaced.CreatedAt.IsZero() {
		t.Error("Expected created_at to be stamped")
	}
}

func TestRequestCorrectionMarksWaiting(t *testing.T) {
	var gotPhone string
	var gotData map[string]interface{}
	db := &mocks.MockDatabase{
		UpdatePendingConfirmationFunc: func(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
			gotPhone = phoneNumber
			gotData = data
			return nil
		},
	}

	m := NewMachine(db)
	gaveUp, err := m.RequestCorrection(context.Background(), &types.PendingConfirmation{
		PhoneNumber:      "+491",
		DetectedExercise: "squat",
		RepromptCount:    0,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gaveUp {
		t.Error("First unclear reply must not give up")
	}
	if gotPhone != "+491" {
		t.Errorf("Unexpected phone: %s", gotPhone)
	}
	if waiting, ok := gotData["waiting_for_correction"].(bool); !ok || !waiting {
		t.Errorf("Expected waiting_for_correction true, got %v", gotData["waiting_for_correction"])
	}
	if count, ok := gotData["reprompt_count"].(int); !ok || count != 1 {
		t.Errorf("Expected reprompt_count 1, got %v", gotData["reprompt_count"])
	}
}

func TestRequestCorrectionGivesUpAtBound(t *testing.T) {
	deleted := false
	updateCalls := 0
	db := &mocks.MockDatabase{
		UpdatePendingConfirmationFunc: func(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
			updateCalls++
			return nil
		},
		DeletePendingConfirmationFunc: func(ctx context.Context, phoneNumber string) error {
			deleted = true
			return nil
		},
	}

	m := NewMachine(db)
	gaveUp, err := m.RequestCorrection(context.Background(), &types.PendingConfirmation{
		PhoneNumber:   "+491",
		RepromptCount: MaxReprompts,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !gaveUp {
		t.Error("Expected give-up once the reprompt bound is reached")
	}
	if !deleted {
		t.Error("Giving up must delete the record")
	}
	if updateCalls != 0 {
		t.Error("Giving up must not write another reprompt")
	}
}

func TestRequestCorrectionOnResolvedRecord(t *testing.T) {
	replaceCalls := 0
	db := &mocks.MockDatabase{
		UpdatePendingConfirmationFunc: func(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
			// The record was resolved by a concurrent delivery after the
			// caller read it; an exists-precondition write reports this
			// instead of recreating the document.
			return faults.ErrNotFound
		},
		ReplacePendingConfirmationFunc: func(ctx context.Context, pending *types.PendingConfirmation) error {
			replaceCalls++
			return nil
		},
	}

	m := NewMachine(db)
	gaveUp, err := m.RequestCorrection(context.Background(), &types.PendingConfirmation{
		PhoneNumber:      "+491",
		DetectedExercise: "squat",
	})
	if !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for a concurrently resolved record, got %v", err)
	}
	if gaveUp {
		t.Error("A resolved record is not a give-up")
	}
	if replaceCalls != 0 {
		t.Error("A resolved record must never be recreated")
	}
}

func TestResolveDeletes(t *testing.T) {
	var deletedPhone string
	db := &mocks.MockDatabase{
		DeletePendingConfirmationFunc: func(ctx context.Context, phoneNumber string) error {
			deletedPhone = phoneNumber
			return nil
		},
	}

	m := NewMachine(db)
	if err := m.Resolve(context.Background(), "+491"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if deletedPhone != "+491" {
		t.Errorf("Unexpected delete target: %s", deletedPhone)
	}
}

func TestResolvePropagatesError(t *testing.T) {
	dbErr := errors.New("firestore unavailable")
	db := &mocks.MockDatabase{
		DeletePendingConfirmationFunc: func(ctx context.Context, phoneNumber string) error {
			return dbErr
		},
	}

	m := NewMachine(db)
	if err := m.Resolve(context.Background(), "+491"); !errors.Is(err, dbErr) {
		t.Errorf("Expected wrapped delete error, got %v", err)
	}
}

func TestGetNoneState(t *testing.T) {
	m := NewMachine(&mocks.MockDatabase{})
	record, err := m.Get(context.Background(), "+491")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if record != nil {
		t.Errorf("Expected nil record in state NONE, got %+v", record)
	}
}
