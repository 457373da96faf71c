package artifacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/testing/mocks"
	"github.com/formcoach/server/pkg/types"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{1, 1},
		{100, 100},
		{500, MaxListLimit},
	}
	for _, c := range cases {
		if got := NormalizeLimit(c.in); got != c.want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSaveBodyScanStampsCaptureTime(t *testing.T) {
	var saved *types.BodyScan
	db := &mocks.MockDatabase{
		SaveBodyScanFunc: func(ctx context.Context, scan *types.BodyScan) (string, error) {
			saved = scan
			return "scan-1", nil
		},
	}

	s := NewStore(db)
	id, err := s.SaveBodyScan(context.Background(), &types.BodyScan{PhoneNumber: "+491"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "scan-1" {
		t.Errorf("Unexpected ID: %s", id)
	}
	if saved.CapturedAt.IsZero() {
		t.Error("Expected captured_at to be stamped")
	}
}

func TestSaveBiomechanicsKeepsExplicitCaptureTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var saved *types.Biomechanics
	db := &mocks.MockDatabase{
		SaveBiomechanicsFunc: func(ctx context.Context, record *types.Biomechanics) (string, error) {
			saved = record
			return "bio-1", nil
		},
	}

	s := NewStore(db)
	_, err := s.SaveBiomechanics(context.Background(), &types.Biomechanics{
		PhoneNumber: "+491",
		Exercise:    "squat",
		CapturedAt:  at,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !saved.CapturedAt.Equal(at) {
		t.Errorf("Expected caller timestamp preserved, got %v", saved.CapturedAt)
	}
}

func TestListClampsLimit(t *testing.T) {
	var gotLimit int
	db := &mocks.MockDatabase{
		ListBodyScansFunc: func(ctx context.Context, phoneNumber string, limit int) ([]*types.BodyScan, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	s := NewStore(db)
	if _, err := s.ListBodyScans(context.Background(), "+491", 9999); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotLimit != MaxListLimit {
		t.Errorf("Expected limit clamped to %d, got %d", MaxListLimit, gotLimit)
	}

	if _, err := s.ListBodyScans(context.Background(), "+491", 0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotLimit != DefaultListLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultListLimit, gotLimit)
	}
}

func TestLatestNotFoundPassesThrough(t *testing.T) {
	s := NewStore(&mocks.MockDatabase{})
	_, err := s.LatestPrediction(context.Background(), "+491")
	if !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty history, got %v", err)
	}
}
