// Package artifacts is the typed persistence layer for analysis results.
// All artifact collections are append-only and ordered by capture time.
package artifacts

import (
	"context"
	"time"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/types"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// NormalizeLimit clamps a caller-supplied page size to the allowed range.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

type Store struct {
	db shared.Database
}

func NewStore(db shared.Database) *Store {
	return &Store{db: db}
}

// SaveBodyScan appends a scan, stamping captured_at when the caller left
// it zero, and returns the generated document ID.
func (s *Store) SaveBodyScan(ctx context.Context, scan *types.BodyScan) (string, error) {
	if scan.CapturedAt.IsZero() {
		scan.CapturedAt = time.Now().UTC()
	}
	return s.db.SaveBodyScan(ctx, scan)
}

func (s *Store) LatestBodyScan(ctx context.Context, phoneNumber string) (*types.BodyScan, error) {
	return s.db.LatestBodyScan(ctx, phoneNumber)
}

func (s *Store) ListBodyScans(ctx context.Context, phoneNumber string, limit int) ([]*types.BodyScan, error) {
	return s.db.ListBodyScans(ctx, phoneNumber, NormalizeLimit(limit))
}

func (s *Store) SaveBiomechanics(ctx context.Context, record *types.Biomechanics) (string, error) {
	if record.CapturedAt.IsZero() {
		record.CapturedAt = time.Now().UTC()
	}
	return s.db.SaveBiomechanics(ctx, record)
}

func (s *Store) LatestBiomechanics(ctx context.Context, phoneNumber string) (*types.Biomechanics, error) {
	return s.db.LatestBiomechanics(ctx, phoneNumber)
}

func (s *Store) ListBiomechanics(ctx context.Context, phoneNumber string, limit int) ([]*types.Biomechanics, error) {
	return s.db.ListBiomechanics(ctx, phoneNumber, NormalizeLimit(limit))
}

func (s *Store) SaveNutritionPlan(ctx context.Context, plan *types.NutritionPlan) (string, error) {
	if plan.CapturedAt.IsZero() {
		plan.CapturedAt = time.Now().UTC()
	}
	return s.db.SaveNutritionPlan(ctx, plan)
}

func (s *Store) LatestNutritionPlan(ctx context.Context, phoneNumber string) (*types.NutritionPlan, error) {
	return s.db.LatestNutritionPlan(ctx, phoneNumber)
}

func (s *Store) ListNutritionPlans(ctx context.Context, phoneNumber string, limit int) ([]*types.NutritionPlan, error) {
	return s.db.ListNutritionPlans(ctx, phoneNumber, NormalizeLimit(limit))
}

func (s *Store) SaveTrainingPlan(ctx context.Context, plan *types.TrainingPlan) (string, error) {
	if plan.CapturedAt.IsZero() {
		plan.CapturedAt = time.Now().UTC()
	}
	return s.db.SaveTrainingPlan(ctx, plan)
}

func (s *Store) LatestTrainingPlan(ctx context.Context, phoneNumber string) (*types.TrainingPlan, error) {
	return s.db.LatestTrainingPlan(ctx, phoneNumber)
}

func (s *Store) ListTrainingPlans(ctx context.Context, phoneNumber string, limit int) ([]*types.TrainingPlan, error) {
	return s.db.ListTrainingPlans(ctx, phoneNumber, NormalizeLimit(limit))
}

func (s *Store) SavePrediction(ctx context.Context, prediction *types.Prediction) (string, error) {
	if prediction.CapturedAt.IsZero() {
		prediction.CapturedAt = time.Now().UTC()
	}
	return s.db.SavePrediction(ctx, prediction)
}

func (s *Store) LatestPrediction(ctx context.Context, phoneNumber string) (*types.Prediction, error) {
	return s.db.LatestPrediction(ctx, phoneNumber)
}

func (s *Store) ListPredictions(ctx context.Context, phoneNumber string, limit int) ([]*types.Prediction, error) {
	return s.db.ListPredictions(ctx, phoneNumber, NormalizeLimit(limit))
}
