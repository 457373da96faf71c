package mocks

import (
	"context"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/types"
)

// --- Mock Database ---

type MockDatabase struct {
	SetExecutionFunc    func(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecutionFunc func(ctx context.Context, id string, data map[string]interface{}) error

	GetProfileFunc             func(ctx context.Context, phoneNumber string) (*types.UserProfile, error)
	CreateProfileFunc          func(ctx context.Context, profile *types.UserProfile) (types.InsertOutcome[types.UserProfile], error)
	UpdateProfileFunc          func(ctx context.Context, phoneNumber string, data map[string]interface{}) error
	IncrementAnalysisCountFunc func(ctx context.Context, phoneNumber string) error
	ResetAnalysisCountFunc     func(ctx context.Context, phoneNumber string) error

	GetThreadMappingFunc    func(ctx context.Context, pairKey string) (*types.PhoneThreadMapping, error)
	CreateThreadMappingFunc func(ctx context.Context, pairKey string, mapping *types.PhoneThreadMapping) (types.InsertOutcome[types.PhoneThreadMapping], error)

	GetPendingConfirmationFunc       func(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error)
	GetPendingAwaitingCorrectionFunc func(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error)
	ReplacePendingConfirmationFunc   func(ctx context.Context, pending *types.PendingConfirmation) error
	UpdatePendingConfirmationFunc    func(ctx context.Context, phoneNumber string, data map[string]interface{}) error
	DeletePendingConfirmationFunc    func(ctx context.Context, phoneNumber string) error

	SaveBodyScanFunc   func(ctx context.Context, scan *types.BodyScan) (string, error)
	LatestBodyScanFunc func(ctx context.Context, phoneNumber string) (*types.BodyScan, error)
	ListBodyScansFunc  func(ctx context.Context, phoneNumber string, limit int) ([]*types.BodyScan, error)

	SaveBiomechanicsFunc   func(ctx context.Context, record *types.Biomechanics) (string, error)
	LatestBiomechanicsFunc func(ctx context.Context, phoneNumber string) (*types.Biomechanics, error)
	ListBiomechanicsFunc   func(ctx context.Context, phoneNumber string, limit int) ([]*types.Biomechanics, error)

	SaveNutritionPlanFunc   func(ctx context.Context, plan *types.NutritionPlan) (string, error)
	LatestNutritionPlanFunc func(ctx context.Context, phoneNumber string) (*types.NutritionPlan, error)
	ListNutritionPlansFunc  func(ctx context.Context, phoneNumber string, limit int) ([]*types.NutritionPlan, error)

	SaveTrainingPlanFunc   func(ctx context.Context, plan *types.TrainingPlan) (string, error)
	LatestTrainingPlanFunc func(ctx context.Context, phoneNumber string) (*types.TrainingPlan, error)
	ListTrainingPlansFunc  func(ctx context.Context, phoneNumber string, limit int) ([]*types.TrainingPlan, error)

	SavePredictionFunc   func(ctx context.Context, prediction *types.Prediction) (string, error)
	LatestPredictionFunc func(ctx context.Context, phoneNumber string) (*types.Prediction, error)
	ListPredictionsFunc  func(ctx context.Context, phoneNumber string, limit int) ([]*types.Prediction, error)

	CreateDashboardTokenFunc func(ctx context.Context, token *types.DashboardToken) error
	GetDashboardTokenFunc    func(ctx context.Context, token string) (*types.DashboardToken, error)
}

func (m *MockDatabase) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	if m.SetExecutionFunc != nil {
		return m.SetExecutionFunc(ctx, record)
	}
	return nil
}

func (m *MockDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateExecutionFunc != nil {
		return m.UpdateExecutionFunc(ctx, id, data)
	}
	return nil
}

func (m *MockDatabase) GetProfile(ctx context.Context, phoneNumber string) (*types.UserProfile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, phoneNumber)
	}
	return nil, faults.ErrNotFound
}

func (m *MockDatabase) CreateProfile(ctx context.Context, profile *types.UserProfile) (types.InsertOutcome[types.UserProfile], error) {
	if m.CreateProfileFunc != nil {
		return m.CreateProfileFunc(ctx, profile)
	}
	return types.InsertOutcome[types.UserProfile]{Created: true, Existing: profile}, nil
}

func (m *MockDatabase) UpdateProfile(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, phoneNumber, data)
	}
	return nil
}

func (m *MockDatabase) IncrementAnalysisCount(ctx context.Context, phoneNumber string) error {
	if m.IncrementAnalysisCountFunc != nil {
		return m.IncrementAnalysisCountFunc(ctx, phoneNumber)
	}
	return nil
}

func (m *MockDatabase) ResetAnalysisCount(ctx context.Context, phoneNumber string) error {
	if m.ResetAnalysisCountFunc != nil {
		return m.ResetAnalysisCountFunc(ctx, phoneNumber)
	}
	return nil
}

func (m *MockDatabase) GetThreadMapping(ctx context.Context, pairKey string) (*types.PhoneThreadMapping, error) {
	if m.GetThreadMappingFunc != nil {
		return m.GetThreadMappingFunc(ctx, pairKey)
	}
	return nil, faults.ErrNotFound
}

func (m *MockDatabase) CreateThreadMapping(ctx context.Context, pairKey string, mapping *types.PhoneThreadMapping) (types.InsertOutcome[types.PhoneThreadMapping], error) {
	if m.CreateThreadMappingFunc != nil {
		return m.CreateThreadMappingFunc(ctx, pairKey, mapping)
	}
	return types.InsertOutcome[types.PhoneThreadMapping]{Created: true, Existing: mapping}, nil
}

func (m *MockDatabase) GetPendingConfirmation(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error) {
	if m.GetPendingConfirmationFunc != nil {
		return m.GetPendingConfirmationFunc(ctx, phoneNumber)
	}
	return nil, nil
}

func (m *MockDatabase) GetPendingAwaitingCorrection(ctx context.Context, phoneNumber string) (*types.PendingConfirmation, error) {
	if m.GetPendingAwaitingCorrectionFunc != nil {
		return m.GetPendingAwaitingCorrectionFunc(ctx, phoneNumber)
	}
	return nil, nil
}

func (m *MockDatabase) ReplacePendingConfirmation(ctx context.Context, pending *types.PendingConfirmation) error {
	if m.ReplacePendingConfirmationFunc != nil {
		return m.ReplacePendingConfirmationFunc(ctx, pending)
	}
	return nil
}

func (m *MockDatabase) UpdatePendingConfirmation(ctx context.Context, phoneNumber string, data map[string]interface{}) error {
	if m.UpdatePendingConfirmationFunc != nil {
		return m.UpdatePendingConfirmationFunc(ctx, phoneNumber, data)
	}
	return nil
}

func (m *MockDatabase) DeletePendingConfirmation(ctx context.Context, phoneNumber string) error {
	if m.DeletePendingConfirmationFunc != nil {
		return m.DeletePendingConfirmationFunc(ctx, phoneNumber)
	}
	return nil
}

func (m *MockDatabase) SaveBodyScan(ctx context.Context, scan *types.BodyScan) (string, error) {
	if m.SaveBodyScanFunc != nil {
		return m.SaveBodyScanFunc(ctx, scan)
	}
	return "scan-id", nil
}

func (m *MockDatabase) LatestBodyScan(ctx context.Context, phoneNumber string) (*types.BodyScan, error) {
	if m.LatestBodyScanFunc != nil {
		return m.LatestBodyScanFunc(ctx, phoneNumber)
	}
	return nil, faults.ErrNotFound
}

func (m *MockDatabase) ListBodyScans(ctx context.Context, phoneNumber string, limit int) ([]*types.BodyScan, error) {
	if m.ListBodyScansFunc != nil {
		return m.ListBodyScansFunc(ctx, phoneNumber, limit)
	}
	return nil, nil
}

func (m *MockDatabase) SaveBiomechanics(ctx context.Context, record *types.Biomechanics) (string, error) {
	if m.SaveBiomechanicsFunc != nil {
		return m.SaveBiomechanicsFunc(ctx, record)
	}
	return "biomech-id", nil
}

func (m *MockDatabase) LatestBiomechanics(ctx context.Context, phoneNumber string) (*types.Biomechanics, error) {
	if m.LatestBiomechanicsFunc != nil {
		return m.LatestBiomechanicsFunc(ctx, phoneNumber)
	}
	return nil, faults.ErrNotFound
}

func (m *MockDatabase) ListBiomechanics(ctx context.Context, phoneNumber string, limit int) ([]*types.Biomechanics, error) {
	if m.ListBiomechanicsFunc != nil {
		return m.ListBiomechanicsFunc(ctx, phoneNumber, limit)
	}
	return nil, nil
}

func (m *MockDatabase) SaveNutritionPlan(ctx context.Context, plan *types.NutritionPlan) (string, error) {
	if m.SaveNutritionPlanFunc != nil {
		return m.SaveNutritionPlanFunc(ctx, plan)
	}
	return "plan-id", nil
}

func (m *MockDatabase) LatestNutritionPlan(ctx context.Context, phoneNumber string) (*types.NutritionPlan, error) {
	if m.LatestNutritionPlanFunc != nil {
		return m.LatestNutritionPlanFunc(ctx, phoneNumber)
	}
	return nil, faults.ErrNotFound
}

func (m *MockDatabase) ListNutritionPlans(ctx context.Context, phoneNumber string, limit int) ([]*types.NutritionPlan, error) {
	if m.ListNutritionPlansFunc != nil {
		return m.ListNutritionPlansFunc(ctx, phoneNumber, limit)
	}
	return nil, nil
}

func (m *MockDatabase) SaveTrainingPlan(ctx context.Context, plan *types.TrainingPlan) (string, error) {
	if m.SaveTrainingPlanFunc != nil {
		return m.SaveTrainingPlanFunc(ctx, plan)
	}
	return "training-plan-id", nil
}

func (m *MockDatabase) LatestTrainingPlan(ctx context.Context, phoneNumber string) (*types.TrainingPlan, error) {
	if m.LatestTrainingPlanFunc != nil {
		return m.LatestTrainingPlanFunc(ctx, phoneNumber)
	}
	return nil, faults.ErrNotFound
}

func (m *MockDatabase) ListTrainingPlans(ctx context.Context, phoneNumber string, limit int) ([]*types.TrainingPlan, error) {
	if m.ListTrainingPlansFunc != nil {
		return m.ListTrainingPlansFunc(ctx, phoneNumber, limit)
	}
	return nil, nil
}

func (m *MockDatabase) SavePrediction(ctx context.Context, prediction *types.Prediction) (string, error) {
	if m.SavePredictionFunc != nil {
		return m.SavePredictionFunc(ctx, prediction)
	}
	return "prediction-id", nil
}

func (m *MockDatabase) LatestPrediction(ctx context.Context, phoneNumber string) (*types.Prediction, error) {
	if m.LatestPredictionFunc != nil {
		return m.LatestPredictionFunc(ctx, phoneNumber)
	}
	return nil, faults.ErrNotFound
}

func (m *MockDatabase) ListPredictions(ctx context.Context, phoneNumber string, limit int) ([]*types.Prediction, error) {
	if m.ListPredictionsFunc != nil {
		return m.ListPredictionsFunc(ctx, phoneNumber, limit)
	}
	return nil, nil
}

func (m *MockDatabase) CreateDashboardToken(ctx context.Context, token *types.DashboardToken) error {
	if m.CreateDashboardTokenFunc != nil {
		return m.CreateDashboardTokenFunc(ctx, token)
	}
	return nil
}

func (m *MockDatabase) GetDashboardToken(ctx context.Context, token string) (*types.DashboardToken, error) {
	if m.GetDashboardTokenFunc != nil {
		return m.GetDashboardTokenFunc(ctx, token)
	}
	return nil, faults.ErrNotFound
}

// --- Mock Publisher ---

type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---

type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object, contentType string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, contentType, data)
	}
	return nil
}

func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}

// --- Mock Collaborators ---

type MockAssistant struct {
	CreateThreadFunc func(ctx context.Context, ownerID, title string) (string, error)
	SendMessageFunc  func(ctx context.Context, threadID, content string) (string, error)
}

func (m *MockAssistant) CreateThread(ctx context.Context, ownerID, title string) (string, error) {
	if m.CreateThreadFunc != nil {
		return m.CreateThreadFunc(ctx, ownerID, title)
	}
	return "thread-id", nil
}

func (m *MockAssistant) SendMessage(ctx context.Context, threadID, content string) (string, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, threadID, content)
	}
	return "mock-reply", nil
}

type MockVisionAnalyzer struct {
	AnalyzeBodyScanFunc       func(ctx context.Context, image []byte, mimeType string) (*types.BodyScanAnalysis, error)
	AnalyzeBiomechanicsFunc   func(ctx context.Context, video []byte, mimeType string) (*types.BiomechanicsDetection, error)
	AnalyzeExerciseFunc       func(ctx context.Context, video []byte, mimeType, exercise string) (*types.BiomechanicsAnalysis, error)
	InterpretConfirmationFunc func(ctx context.Context, candidateExercise, reply string) (*types.ConfirmationVerdict, error)
}

func (m *MockVisionAnalyzer) AnalyzeBodyScan(ctx context.Context, image []byte, mimeType string) (*types.BodyScanAnalysis, error) {
	if m.AnalyzeBodyScanFunc != nil {
		return m.AnalyzeBodyScanFunc(ctx, image, mimeType)
	}
	return &types.BodyScanAnalysis{Summary: "mock scan"}, nil
}

func (m *MockVisionAnalyzer) AnalyzeBiomechanics(ctx context.Context, video []byte, mimeType string) (*types.BiomechanicsDetection, error) {
	if m.AnalyzeBiomechanicsFunc != nil {
		return m.AnalyzeBiomechanicsFunc(ctx, video, mimeType)
	}
	return &types.BiomechanicsDetection{Exercise: "squat", Confidence: 0.9}, nil
}

func (m *MockVisionAnalyzer) AnalyzeExercise(ctx context.Context, video []byte, mimeType, exercise string) (*types.BiomechanicsAnalysis, error) {
	if m.AnalyzeExerciseFunc != nil {
		return m.AnalyzeExerciseFunc(ctx, video, mimeType, exercise)
	}
	return &types.BiomechanicsAnalysis{Summary: "mock analysis"}, nil
}

func (m *MockVisionAnalyzer) InterpretConfirmation(ctx context.Context, candidateExercise, reply string) (*types.ConfirmationVerdict, error) {
	if m.InterpretConfirmationFunc != nil {
		return m.InterpretConfirmationFunc(ctx, candidateExercise, reply)
	}
	return &types.ConfirmationVerdict{Outcome: types.OutcomeConfirmed}, nil
}

type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, phoneNumber string, audio []byte, mimeType string) (string, error)
}

func (m *MockTranscriber) Transcribe(ctx context.Context, phoneNumber string, audio []byte, mimeType string) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, phoneNumber, audio, mimeType)
	}
	return "mock transcript", nil
}

type MockPlanner struct {
	GenerateNutritionPlanFunc func(ctx context.Context, profile *types.UserProfile, scan *types.BodyScan, plan *types.TrainingPlan) (*types.NutritionPlan, error)
	GenerateTrainingPlanFunc  func(ctx context.Context, profile *types.UserProfile) (*types.TrainingPlan, error)
	GeneratePredictionFunc    func(ctx context.Context, profile *types.UserProfile, scans []*types.BodyScan, mechanics []*types.Biomechanics) (*types.Prediction, error)
}

func (m *MockPlanner) GenerateNutritionPlan(ctx context.Context, profile *types.UserProfile, scan *types.BodyScan, plan *types.TrainingPlan) (*types.NutritionPlan, error) {
	if m.GenerateNutritionPlanFunc != nil {
		return m.GenerateNutritionPlanFunc(ctx, profile, scan, plan)
	}
	return &types.NutritionPlan{CaloriesKcal: 2400}, nil
}

func (m *MockPlanner) GenerateTrainingPlan(ctx context.Context, profile *types.UserProfile) (*types.TrainingPlan, error) {
	if m.GenerateTrainingPlanFunc != nil {
		return m.GenerateTrainingPlanFunc(ctx, profile)
	}
	return &types.TrainingPlan{DaysPerWeek: 3}, nil
}

func (m *MockPlanner) GeneratePrediction(ctx context.Context, profile *types.UserProfile, scans []*types.BodyScan, mechanics []*types.Biomechanics) (*types.Prediction, error) {
	if m.GeneratePredictionFunc != nil {
		return m.GeneratePredictionFunc(ctx, profile, scans, mechanics)
	}
	return &types.Prediction{HorizonWeeks: 12}, nil
}

type MockMessenger struct {
	SendWhatsAppFunc func(ctx context.Context, to, body string) error
	Sent             []string
}

func (m *MockMessenger) SendWhatsApp(ctx context.Context, to, body string) error {
	m.Sent = append(m.Sent, body)
	if m.SendWhatsAppFunc != nil {
		return m.SendWhatsAppFunc(ctx, to, body)
	}
	return nil
}

type MockMediaFetcher struct {
	FetchFunc func(ctx context.Context, url string) ([]byte, string, error)
}

func (m *MockMediaFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url)
	}
	return []byte("mock-media"), "application/octet-stream", nil
}
