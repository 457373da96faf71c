package tier

import (
	"time"

	"github.com/formcoach/server/pkg/types"
)

const FreeTierAnalysesPerMonth = 15

// Effective tier is used for internal logic
type EffectiveTier string

const (
	TierFree EffectiveTier = "free"
	TierPro  EffectiveTier = "pro"
)

// GetEffectiveTier determines the user's effective tier from the stored
// tier (default: free).
func GetEffectiveTier(profile *types.UserProfile) EffectiveTier {
	if profile.Tier == string(TierPro) {
		return TierPro
	}
	return TierFree
}

// CanAnalyze checks if the user can run another media analysis within
// their tier limits.
func CanAnalyze(profile *types.UserProfile) (allowed bool, reason string) {
	if GetEffectiveTier(profile) == TierPro {
		return true, ""
	}

	if profile.AnalysisCountThisMonth >= FreeTierAnalysesPerMonth {
		return false, "You've used all 15 free analyses this month. Upgrade to Pro for unlimited analyses."
	}

	return true, ""
}

// ShouldResetAnalysisCount checks if the monthly counter should be reset.
func ShouldResetAnalysisCount(profile *types.UserProfile) bool {
	if profile.AnalysisCountResetAt.IsZero() {
		return true
	}

	resetTime := profile.AnalysisCountResetAt
	now := time.Now()

	// Reset if the reset date is in a different month
	return resetTime.Year() != now.Year() || resetTime.Month() != now.Month()
}
