package database

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/formcoach/server/pkg/faults"
	storage "github.com/formcoach/server/pkg/storage/firestore"
	"github.com/formcoach/server/pkg/types"
)

// FirestoreAdapter provides database operations using Firestore.
// It wraps our typed storage client.
type FirestoreAdapter struct {
	storage *storage.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{storage: storage.NewClient(client)}
}

// --- Executions ---

func (a *FirestoreAdapter) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	return a.storage.Executions().Doc(record.ExecutionID).Set(ctx, record)
}

func (a *FirestoreAdapter) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	return a.storage.Executions().Doc(id).Merge(ctx, data)
}

// --- Profiles ---

func (a *FirestoreAdapter) GetProfile(ctx context.Context, phoneNumber string) (*types.UserProfile, error) {
	return a.storage.Profiles().Doc(phoneNumber).Get(ctx)
}

func (a *FirestoreAdapter) CreateProfile(ctx context.Context, profile *types.UserProfile) (types.InsertOutcome[types.UserProfile], error) {
	doc := a.storage.Profiles().Doc(profile.PhoneNumber)
	created, err := doc.Create(ctx, profile)
	if err != nil {
		return types.InsertOutcome[types.UserProfile]{}, err
	}
	if created {
		return types.InsertOutcome[types.UserProfile]{Created: true, Existing: profile}, nil
	}
	existing, err := doc.Get(ctx)
	if err != nil {
		return types.InsertOutcome[types.UserProfile]{}, err
	}
	return types.InsertOutcome[types.UserProfile]{Created: false, Existing: existing}, nil
}

func (a *FirestoreAdapter) UpdateProfile(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
	data["updated_at"] = time.Now().UTC()
	return a.storage.Profiles().Doc(phoneNumber).Merge(ctx, data)
}

func (a *FirestoreAdapter) IncrementAnalysisCount(ctx context.Context, phoneNumber string) error {
	return a.storage.Profiles().Doc(phoneNumber).Update(ctx, []firestore.Update{
		{Path: "analysis_count_this_month", Value: firestore.Increment(1)},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
}

func (a *FirestoreAdapter) ResetAnalysisCount(ctx context.Context, phoneNumber string) error {
	return a.storage.Profiles().Doc(phoneNumber).Merge(ctx, map[string]interface{}{
		"analysis_count_this_month": 0,
		"analysis_count_reset_at":   time.Now().UTC(),
	})
}

// --- Thread mappings ---

func (a *FirestoreAdapter) GetThreadMapping(ctx context.Context, pairKey string) (*types.PhoneThreadMapping, error) {
	return a.storage.ThreadMappings().Doc(pairKey).Get(ctx)
}

func (a *FirestoreAdapter) CreateThreadMapping(ctx context.Context, pairKey string, mapping *types.PhoneThreadMapping) (types.InsertOutcome[types.PhoneThreadMapping], error) {
	doc := a.storage.ThreadMappings().Doc(pairKey)
	created, err := doc.Create(ctx, mapping)
	if err != nil {
		return types.InsertOutcome[types.PhoneThreadMapping]{}, err
	}
	if created {
		return types.InsertOutcome[types.PhoneThreadMapping]{Created: true, Existing: mapping}, nil
	}
	existing, err := doc.Get(ctx)
	if err != nil {
		return types.InsertOutcome[types.PhoneThreadMapping]{}, err
	}
	return types.InsertOutcome[types.PhoneThreadMapping]{Created: false, Existing: existing}, nil
}

// --- Pending confirmations ---

func (a *FirestoreAdapter) GetPendingConfirmation(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error) {
	pending, err := a.storage.PendingConfirmations().Doc(phoneNumber).Get(ctx)
	if errors.Is(err, faults.ErrNotFound) {
		return nil, nil
	}
	return pending, err
}

func (a *FirestoreAdapter) GetPendingAwaitingCorrection(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error) {
	pending, err := a.GetPendingConfirmation(ctx, phoneNumber)
	if err != nil || pending == nil {
		return nil, err
	}
	if !pending.WaitingForCorrection {
		return nil, nil
	}
	return pending, nil
}

// ReplacePendingConfirmation overwrites whatever record exists for the
// phone number in one atomic document write. Supersession, not merging.
func (a *FirestoreAdapter) ReplacePendingConfirmation(ctx context.Context, pending *types.PendingConfirmation) error {
	return a.storage.PendingConfirmations().Doc(pending.PhoneNumber).Set(ctx, pending)
}

// UpdatePendingConfirmation patches an existing record. A merge write
// would recreate a record that a concurrent delivery just resolved, so
// this uses an exists-precondition update instead: a missing document
// returns faults.ErrNotFound and nothing is written.
func (a *FirestoreAdapter) UpdatePendingConfirmation(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(data))
	for path, value := range data {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	return a.storage.PendingConfirmations().Doc(phoneNumber).Update(ctx, updates)
}

func (a *FirestoreAdapter) DeletePendingConfirmation(ctx context.Context, phoneNumber string) error {
	return a.storage.PendingConfirmations().Doc(phoneNumber).Delete(ctx)
}

// --- Artifacts ---

func (a *FirestoreAdapter) SaveBodyScan(ctx context.Context, scan *types.BodyScan) (string, error) {
	doc := a.storage.BodyScans().NewDoc()
	if err := doc.Set(ctx, scan); err != nil {
		return "", err
	}
	scan.ID = doc.ID()
	return doc.ID(), nil
}

func (a *FirestoreAdapter) LatestBodyScan(ctx context.Context, phoneNumber string) (*types.BodyScan, error) {
	scans, err := a.ListBodyScans(ctx, phoneNumber, 1)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, faults.ErrNotFound
	}
	return scans[0], nil
}

func (a *FirestoreAdapter) ListBodyScans(ctx context.Context, phoneNumber string, limit int) ([]*types.BodyScan, error) {
	scans, ids, err := a.storage.BodyScans().ByRecency(ctx, phoneNumber, limit)
	if err != nil {
		return nil, err
	}
	for i, s := range scans {
		s.ID = ids[i]
	}
	return scans, nil
}

func (a *FirestoreAdapter) SaveBiomechanics(ctx context.Context, record *types.Biomechanics) (string, error) {
	doc := a.storage.Biomechanics().NewDoc()
	if err := doc.Set(ctx, record); err != nil {
		return "", err
	}
	record.ID = doc.ID()
	return doc.ID(), nil
}

func (a *FirestoreAdapter) LatestBiomechanics(ctx context.Context, phoneNumber string) (*types.Biomechanics, error) {
	records, err := a.ListBiomechanics(ctx, phoneNumber, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, faults.ErrNotFound
	}
	return records[0], nil
}

func (a *FirestoreAdapter) ListBiomechanics(ctx context.Context, phoneNumber string, limit int) ([]*types.Biomechanics, error) {
	records, ids, err := a.storage.Biomechanics().ByRecency(ctx, phoneNumber, limit)
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		r.ID = ids[i]
	}
	return records, nil
}

func (a *FirestoreAdapter) SaveNutritionPlan(ctx context.Context, plan *types.NutritionPlan) (string, error) {
	doc := a.storage.NutritionPlans().NewDoc()
	if err := doc.Set(ctx, plan); err != nil {
		return "", err
	}
	plan.ID = doc.ID()
	return doc.ID(), nil
}

func (a *FirestoreAdapter) LatestNutritionPlan(ctx context.Context, phoneNumber string) (*types.NutritionPlan, error) {
	plans, err := a.ListNutritionPlans(ctx, phoneNumber, 1)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, faults.ErrNotFound
	}
	return plans[0], nil
}

func (a *FirestoreAdapter) ListNutritionPlans(ctx context.Context, phoneNumber string, limit int) ([]*types.NutritionPlan, error) {
	plans, ids, err := a.storage.NutritionPlans().ByRecency(ctx, phoneNumber, limit)
	if err != nil {
		return nil, err
	}
	for i, p := range plans {
		p.ID = ids[i]
	}
	return plans, nil
}

func (a *FirestoreAdapter) SaveTrainingPlan(ctx context.Context, plan *types.TrainingPlan) (string, error) {
	doc := a.storage.TrainingPlans().NewDoc()
	if err := doc.Set(ctx, plan); err != nil {
		return "", err
	}
	plan.ID = doc.ID()
	return doc.ID(), nil
}

func (a *FirestoreAdapter) LatestTrainingPlan(ctx context.Context, phoneNumber string) (*types.TrainingPlan, error) {
	plans, err := a.ListTrainingPlans(ctx, phoneNumber, 1)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, faults.ErrNotFound
	}
	return plans[0], nil
}

func (a *FirestoreAdapter) ListTrainingPlans(ctx context.Context, phoneNumber string, limit int) ([]*types.TrainingPlan, error) {
	plans, ids, err := a.storage.TrainingPlans().ByRecency(ctx, phoneNumber, limit)
	if err != nil {
		return nil, err
	}
	for i, p := range plans {
		p.ID = ids[i]
	}
	return plans, nil
}

func (a *FirestoreAdapter) SavePrediction(ctx context.Context, prediction *types.Prediction) (string, error) {
	doc := a.storage.Predictions().NewDoc()
	if err := doc.Set(ctx, prediction); err != nil {
		return "", err
	}
	prediction.ID = doc.ID()
	return doc.ID(), nil
}

func (a *FirestoreAdapter) LatestPrediction(ctx context.Context, phoneNumber string) (*types.Prediction, error) {
	predictions, err := a.ListPredictions(ctx, phoneNumber, 1)
	if err != nil {
		return nil, err
	}
	if len(predictions) == 0 {
		return nil, faults.ErrNotFound
	}
	return predictions[0], nil
}

func (a *FirestoreAdapter) ListPredictions(ctx context.Context, phoneNumber string, limit int) ([]*types.Prediction, error) {
	predictions, ids, err := a.storage.Predictions().ByRecency(ctx, phoneNumber, limit)
	if err != nil {
		return nil, err
	}
	for i, p := range predictions {
		p.ID = ids[i]
	}
	return predictions, nil
}

// --- Dashboard tokens ---

func (a *FirestoreAdapter) CreateDashboardToken(ctx context.Context, token *types.DashboardToken) error {
	return a.storage.DashboardTokens().Doc(token.Token).Set(ctx, token)
}

func (a *FirestoreAdapter) GetDashboardToken(ctx context.Context, token string) (*types.DashboardToken, error) {
	record, err := a.storage.DashboardTokens().Doc(token).Get(ctx)
	if err != nil {
		return nil, err
	}
	record.Token = token
	return record, nil
}
