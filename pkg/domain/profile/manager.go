// Package profile manages user profile documents keyed by phone number.
package profile

import (
	"context"
	"fmt"
	"time"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/types"
)

// Required onboarding fields, in prompt order.
var onboardingFields = []string{
	"age",
	"sex",
	"weight_kg",
	"height_cm",
	"goal",
	"experience",
	"equipment",
	"training_days_per_week",
}

type Manager struct {
	db shared.Database
}

func NewManager(db shared.Database) *Manager {
	return &Manager{db: db}
}

// GetOrCreateMinimal returns the profile for the phone number, creating a
// minimal one on first contact. The create is idempotent: a concurrent
// creator's document wins and is returned unchanged.
func (m *Manager) GetOrCreateMinimal(ctx context.Context, phoneNumber, displayName string) (*types.UserProfile, error) {
	now := time.Now().UTC()
	outcome, err := m.db.CreateProfile(ctx, &types.UserProfile{
		PhoneNumber:          phoneNumber,
		DisplayName:          displayName,
		Tier:                 "free",
		AnalysisCountResetAt: now,
		CreatedAt:            now,
		UpdatedAt:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("get or create profile for %s: %w", phoneNumber, err)
	}
	return outcome.Existing, nil
}

// Get returns the profile or faults.ErrNotFound.
func (m *Manager) Get(ctx context.Context, phoneNumber string) (*types.UserProfile, error) {
	return m.db.GetProfile(ctx, phoneNumber)
}

// UpdateFields applies a partial update. Unknown keys are the caller's
// problem; Firestore stores whatever it is given.
func (m *Manager) UpdateFields(ctx context.Context, phoneNumber string, fields map[string]interface{}) error {
	if err := m.db.UpdateProfile(ctx, phoneNumber, fields); err != nil {
		return fmt.Errorf("update profile for %s: %w", phoneNumber, err)
	}
	return nil
}

// RecordLastImage remembers the most recent physique photo for reuse by
// later plan generation.
func (m *Manager) RecordLastImage(ctx context.Context, phoneNumber string, media types.MediaRef) error {
	return m.UpdateFields(ctx, phoneNumber, map[string]interface{}{"last_image": media})
}

// RecordLastVideo remembers the most recent exercise video.
func (m *Manager) RecordLastVideo(ctx context.Context, phoneNumber string, media types.MediaRef) error {
	return m.UpdateFields(ctx, phoneNumber, map[string]interface{}{"last_video": media})
}

// CheckOnboarding recomputes completeness from the profile's current
// demographic fields rather than trusting the stored flag, and returns the
// fields still missing in prompt order. When the recomputed answer
// disagrees with the stored flag the document is corrected.
func (m *Manager) CheckOnboarding(ctx context.Context, p *types.UserProfile) (complete bool, missing []string, err error) {
	missing = missingFields(p)
	complete = len(missing) == 0

	if complete != p.OnboardingComplete {
		if err := m.db.UpdateProfile(ctx, p.PhoneNumber, map[string]interface{}{
			"onboarding_complete": complete,
		}); err != nil {
			return complete, missing, fmt.Errorf("persist onboarding flag for %s: %w", p.PhoneNumber, err)
		}
		p.OnboardingComplete = complete
	}
	return complete, missing, nil
}

func missingFields(p *types.UserProfile) []string {
	var missing []string
	for _, field := range onboardingFields {
		if !fieldSet(p, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

func fieldSet(p *types.UserProfile, field string) bool {
	switch field {
	case "age":
		return p.Age > 0
	case "sex":
		return p.Sex != ""
	case "weight_kg":
		return p.WeightKg > 0
	case "height_cm":
		return p.HeightCm > 0
	case "goal":
		return p.Goal != ""
	case "experience":
		return p.Experience != ""
	case "equipment":
		return p.Equipment != ""
	case "training_days_per_week":
		return p.TrainingDaysPerWeek > 0
	}
	return false
}
