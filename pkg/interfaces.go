package shared

import (
	"context"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/formcoach/server/pkg/types"
)

// --- Persistence Interfaces ---

type Database interface {
	// Executions
	SetExecution(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error

	// Profiles
	GetProfile(ctx context.Context, phoneNumber string) (*types.UserProfile, error)
	CreateProfile(ctx context.Context, profile *types.UserProfile) (types.InsertOutcome[types.UserProfile], error)
	UpdateProfile(ctx context.Context, phoneNumber string, data map[string]interface{}) error
	IncrementAnalysisCount(ctx context.Context, phoneNumber string) error
	ResetAnalysisCount(ctx context.Context, phoneNumber string) error

	// Thread mappings
	GetThreadMapping(ctx context.Context, pairKey string) (*types.PhoneThreadMapping, error)
	CreateThreadMapping(ctx context.Context, pairKey string, mapping *types.PhoneThreadMapping) (types.InsertOutcome[types.PhoneThreadMapping], error)

	// Pending confirmations
	GetPendingConfirmation(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error)
	GetPendingAwaitingCorrection(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error)
	ReplacePendingConfirmation(ctx context.Context, pending *types.PendingConfirmation) error
	// UpdatePendingConfirmation patches an existing record only; a missing
	// document reports faults.ErrNotFound instead of being created.
	UpdatePendingConfirmation(ctx context.Context, phoneNumber string, data map[string]interface{}) error
	DeletePendingConfirmation(ctx context.Context, phoneNumber string) error

	// Artifacts (append-only)
	SaveBodyScan(ctx context.Context, scan *types.BodyScan) (string, error)
	LatestBodyScan(ctx context.Context, phoneNumber string) (*types.BodyScan, error)
	ListBodyScans(ctx context.Context, phoneNumber string, limit int) ([]*types.BodyScan, error)

	SaveBiomechanics(ctx context.Context, record *types.Biomechanics) (string, error)
	LatestBiomechanics(ctx context.Context, phoneNumber string) (*types.Biomechanics, error)
	ListBiomechanics(ctx context.Context, phoneNumber string, limit int) ([]*types.Biomechanics, error)

	SaveNutritionPlan(ctx context.Context, plan *types.NutritionPlan) (string, error)
	LatestNutritionPlan(ctx context.Context, phoneNumber string) (*types.NutritionPlan, error)
	ListNutritionPlans(ctx context.Context, phoneNumber string, limit int) ([]*types.NutritionPlan, error)

	SaveTrainingPlan(ctx context.Context, plan *types.TrainingPlan) (string, error)
	LatestTrainingPlan(ctx context.Context, phoneNumber string) (*types.TrainingPlan, error)
	ListTrainingPlans(ctx context.Context, phoneNumber string, limit int) ([]*types.TrainingPlan, error)

	SavePrediction(ctx context.Context, prediction *types.Prediction) (string, error)
	LatestPrediction(ctx context.Context, phoneNumber string) (*types.Prediction, error)
	ListPredictions(ctx context.Context, phoneNumber string, limit int) ([]*types.Prediction, error)

	// Dashboard tokens
	CreateDashboardToken(ctx context.Context, token *types.DashboardToken) error
	GetDashboardToken(ctx context.Context, token string) (*types.DashboardToken, error)
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object, contentType string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// --- Collaborator Interfaces ---

// Assistant is the conversational-agent collaborator. The core only ever
// stores the thread identifier it returns.
type Assistant interface {
	CreateThread(ctx context.Context, ownerID, title string) (string, error)
	SendMessage(ctx context.Context, threadID, content string) (string, error)
}

// VisionAnalyzer covers the image/video analysis collaborators.
type VisionAnalyzer interface {
	AnalyzeBodyScan(ctx context.Context, image []byte, mimeType string) (*types.BodyScanAnalysis, error)
	AnalyzeBiomechanics(ctx context.Context, video []byte, mimeType string) (*types.BiomechanicsDetection, error)
	AnalyzeExercise(ctx context.Context, video []byte, mimeType, exercise string) (*types.BiomechanicsAnalysis, error)
	InterpretConfirmation(ctx context.Context, candidateExercise, reply string) (*types.ConfirmationVerdict, error)
}

// Transcriber turns an audio attachment into text. No partial text on error.
type Transcriber interface {
	Transcribe(ctx context.Context, phoneNumber string, audio []byte, mimeType string) (string, error)
}

// Planner generates the derived artifacts served by the dashboard API.
type Planner interface {
	GenerateNutritionPlan(ctx context.Context, profile *types.UserProfile, scan *types.BodyScan, plan *types.TrainingPlan) (*types.NutritionPlan, error)
	GenerateTrainingPlan(ctx context.Context, profile *types.UserProfile) (*types.TrainingPlan, error)
	GeneratePrediction(ctx context.Context, profile *types.UserProfile, scans []*types.BodyScan, mechanics []*types.Biomechanics) (*types.Prediction, error)
}

// Messenger delivers outbound WhatsApp messages.
type Messenger interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}

// MediaFetcher downloads an inbound attachment from the provider.
// Returns the bytes and the content type reported by the provider.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}
