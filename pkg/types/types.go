// Package types defines the Firestore document models and event payloads
// shared across functions.
package types

import "time"

// InboundMessage is the normalized webhook payload published to Pub/Sub
// by the whatsapp-webhook function and consumed by the message-processor.
type InboundMessage struct {
	MessageSid       string    `json:"message_sid"`
	From             string    `json:"from"`
	To               string    `json:"to"`
	ProfileName      string    `json:"profile_name,omitempty"`
	Body             string    `json:"body,omitempty"`
	MediaURL         string    `json:"media_url,omitempty"`
	MediaContentType string    `json:"media_content_type,omitempty"`
	ReceivedAt       time.Time `json:"received_at"`
}

// HasMedia reports whether the message carries an attachment.
func (m *InboundMessage) HasMedia() bool {
	return m.MediaURL != ""
}

// UserProfile is one document per phone number in the profiles collection.
// Created lazily on the first interaction that needs it; never deleted.
type UserProfile struct {
	PhoneNumber string `firestore:"phone_number" json:"phone_number"`
	DisplayName string `firestore:"display_name,omitempty" json:"display_name,omitempty"`

	Age                 int     `firestore:"age,omitempty" json:"age,omitempty"`
	Sex                 string  `firestore:"sex,omitempty" json:"sex,omitempty"`
	WeightKg            float64 `firestore:"weight_kg,omitempty" json:"weight_kg,omitempty"`
	HeightCm            float64 `firestore:"height_cm,omitempty" json:"height_cm,omitempty"`
	Goal                string  `firestore:"goal,omitempty" json:"goal,omitempty"`
	Experience          string  `firestore:"experience,omitempty" json:"experience,omitempty"`
	Equipment           string  `firestore:"equipment,omitempty" json:"equipment,omitempty"`
	TrainingDaysPerWeek int     `firestore:"training_days_per_week,omitempty" json:"training_days_per_week,omitempty"`

	OnboardingComplete bool `firestore:"onboarding_complete" json:"onboarding_complete"`

	LastImage *MediaRef `firestore:"last_image,omitempty" json:"last_image,omitempty"`
	LastVideo *MediaRef `firestore:"last_video,omitempty" json:"last_video,omitempty"`

	Tier                   string    `firestore:"tier,omitempty" json:"tier,omitempty"`
	StripeCustomerID       string    `firestore:"stripe_customer_id,omitempty" json:"-"`
	StripeSubscriptionID   string    `firestore:"stripe_subscription_id,omitempty" json:"-"`
	AnalysisCountThisMonth int64     `firestore:"analysis_count_this_month" json:"-"`
	AnalysisCountResetAt   time.Time `firestore:"analysis_count_reset_at,omitempty" json:"-"`

	CreatedAt time.Time `firestore:"created_at" json:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at" json:"updated_at"`
}

// MediaRef points at one stored media object: the provider URL it was
// fetched from plus where our copy lives.
type MediaRef struct {
	URL         string `firestore:"url" json:"url"`
	StoragePath string `firestore:"storage_path" json:"storage_path"`
	ContentType string `firestore:"content_type,omitempty" json:"content_type,omitempty"`
}

// PhoneThreadMapping pins one (from, to) phone pair to one agent thread.
// Document ID is the pair key, which makes creation race-safe: Firestore
// serializes Create calls on the same document.
type PhoneThreadMapping struct {
	From      string    `firestore:"from" json:"from"`
	To        string    `firestore:"to" json:"to"`
	ThreadID  string    `firestore:"thread_id" json:"thread_id"`
	CreatedAt time.Time `firestore:"created_at" json:"created_at"`
}

// PendingConfirmation holds the ambiguous-video state for one phone number.
// Document ID is the phone number, so at most one can exist per number.
type PendingConfirmation struct {
	PhoneNumber          string    `firestore:"phone_number" json:"phone_number"`
	DetectedExercise     string    `firestore:"detected_exercise" json:"detected_exercise"`
	Video                MediaRef  `firestore:"video" json:"video"`
	WaitingForCorrection bool      `firestore:"waiting_for_correction" json:"waiting_for_correction"`
	RepromptCount        int       `firestore:"reprompt_count" json:"reprompt_count"`
	CreatedAt            time.Time `firestore:"created_at" json:"created_at"`
}

// --- Artifacts (append-only, ordered by captured_at) ---

// BodyScan is one physique-photo analysis.
type BodyScan struct {
	ID          string           `firestore:"-" json:"id"`
	PhoneNumber string           `firestore:"phone_number" json:"phone_number"`
	Media       MediaRef         `firestore:"media" json:"media"`
	Analysis    BodyScanAnalysis `firestore:"analysis" json:"analysis"`
	CapturedAt  time.Time        `firestore:"captured_at" json:"captured_at"`
}

type BodyScanAnalysis struct {
	Summary            string   `firestore:"summary" json:"summary"`
	BodyFatPctEstimate float64  `firestore:"body_fat_pct_estimate,omitempty" json:"body_fat_pct_estimate,omitempty"`
	Posture            string   `firestore:"posture,omitempty" json:"posture,omitempty"`
	Strengths          []string `firestore:"strengths,omitempty" json:"strengths,omitempty"`
	Recommendations    []string `firestore:"recommendations,omitempty" json:"recommendations,omitempty"`
}

// Biomechanics is one exercise-video form analysis.
type Biomechanics struct {
	ID          string               `firestore:"-" json:"id"`
	PhoneNumber string               `firestore:"phone_number" json:"phone_number"`
	Exercise    string               `firestore:"exercise" json:"exercise"`
	Confidence  float64              `firestore:"confidence" json:"confidence"`
	Media       MediaRef             `firestore:"media" json:"media"`
	Analysis    BiomechanicsAnalysis `firestore:"analysis" json:"analysis"`
	CapturedAt  time.Time            `firestore:"captured_at" json:"captured_at"`
}

type BiomechanicsAnalysis struct {
	Summary     string   `firestore:"summary" json:"summary"`
	FormScore   int      `firestore:"form_score,omitempty" json:"form_score,omitempty"`
	Issues      []string `firestore:"issues,omitempty" json:"issues,omitempty"`
	Corrections []string `firestore:"corrections,omitempty" json:"corrections,omitempty"`
}

// BiomechanicsDetection is what the vision collaborator returns for an
// unlabeled video: its best guess plus how sure it is.
type BiomechanicsDetection struct {
	Exercise   string               `json:"exercise"`
	Confidence float64              `json:"confidence"`
	Analysis   BiomechanicsAnalysis `json:"analysis"`
}

// NutritionPlan links back to the artifacts it was derived from.
type NutritionPlan struct {
	ID             string    `firestore:"-" json:"id"`
	PhoneNumber    string    `firestore:"phone_number" json:"phone_number"`
	CaloriesKcal   int       `firestore:"calories_kcal" json:"calories_kcal"`
	ProteinG       int       `firestore:"protein_g" json:"protein_g"`
	CarbsG         int       `firestore:"carbs_g" json:"carbs_g"`
	FatG           int       `firestore:"fat_g" json:"fat_g"`
	Guidance       string    `firestore:"guidance,omitempty" json:"guidance,omitempty"`
	BodyScanID     string    `firestore:"body_scan_id,omitempty" json:"body_scan_id,omitempty"`
	TrainingPlanID string    `firestore:"training_plan_id,omitempty" json:"training_plan_id,omitempty"`
	CapturedAt     time.Time `firestore:"captured_at" json:"captured_at"`
}

// TrainingPlan is a generated weekly schedule.
type TrainingPlan struct {
	ID          string            `firestore:"-" json:"id"`
	PhoneNumber string            `firestore:"phone_number" json:"phone_number"`
	DaysPerWeek int               `firestore:"days_per_week" json:"days_per_week"`
	Focus       string            `firestore:"focus,omitempty" json:"focus,omitempty"`
	Sessions    []TrainingSession `firestore:"sessions,omitempty" json:"sessions,omitempty"`
	CapturedAt  time.Time         `firestore:"captured_at" json:"captured_at"`
}

type TrainingSession struct {
	Day       string   `firestore:"day" json:"day"`
	Focus     string   `firestore:"focus,omitempty" json:"focus,omitempty"`
	Exercises []string `firestore:"exercises,omitempty" json:"exercises,omitempty"`
}

// Prediction records projected ranges with the evidence artifacts used.
type Prediction struct {
	ID              string    `firestore:"-" json:"id"`
	PhoneNumber     string    `firestore:"phone_number" json:"phone_number"`
	HorizonWeeks    int       `firestore:"horizon_weeks" json:"horizon_weeks"`
	WeightKgLow     float64   `firestore:"weight_kg_low" json:"weight_kg_low"`
	WeightKgHigh    float64   `firestore:"weight_kg_high" json:"weight_kg_high"`
	BodyFatPctLow   float64   `firestore:"body_fat_pct_low,omitempty" json:"body_fat_pct_low,omitempty"`
	BodyFatPctHigh  float64   `firestore:"body_fat_pct_high,omitempty" json:"body_fat_pct_high,omitempty"`
	Rationale       string    `firestore:"rationale,omitempty" json:"rationale,omitempty"`
	BodyScanIDs     []string  `firestore:"body_scan_ids,omitempty" json:"body_scan_ids,omitempty"`
	BiomechanicsIDs []string  `firestore:"biomechanics_ids,omitempty" json:"biomechanics_ids,omitempty"`
	CapturedAt      time.Time `firestore:"captured_at" json:"captured_at"`
}

// DashboardToken maps an opaque token to a phone number. Document ID is
// the token value.
type DashboardToken struct {
	Token       string    `firestore:"-" json:"token"`
	PhoneNumber string    `firestore:"phone_number" json:"phone_number"`
	ExpiresAt   time.Time `firestore:"expires_at" json:"expires_at"`
	CreatedAt   time.Time `firestore:"created_at" json:"created_at"`
}

// ExecutionRecord is one function invocation in the executions ledger.
type ExecutionRecord struct {
	ExecutionID string    `firestore:"execution_id" json:"execution_id"`
	Service     string    `firestore:"service" json:"service"`
	PhoneNumber string    `firestore:"phone_number,omitempty" json:"phone_number,omitempty"`
	TriggerType string    `firestore:"trigger_type" json:"trigger_type"`
	Status      string    `firestore:"status" json:"status"`
	Error       string    `firestore:"error,omitempty" json:"error,omitempty"`
	OutputsJSON string    `firestore:"outputs_json,omitempty" json:"outputs_json,omitempty"`
	StartedAt   time.Time `firestore:"started_at" json:"started_at"`
	FinishedAt  time.Time `firestore:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// ConfirmationVerdict classifies a user reply to a pending confirmation.
type ConfirmationVerdict struct {
	Outcome           ConfirmationOutcome `json:"outcome"`
	CorrectedExercise string              `json:"corrected_exercise,omitempty"`
}

type ConfirmationOutcome string

const (
	OutcomeConfirmed ConfirmationOutcome = "confirmed"
	OutcomeCorrected ConfirmationOutcome = "corrected"
	OutcomeUnclear   ConfirmationOutcome = "unclear"
)

// InsertOutcome is the result of an idempotent insert: either this call
// created the document, or it already existed and Existing carries it.
type InsertOutcome[T any] struct {
	Created  bool
	Existing *T
}
