// Package gemini backs the vision, transcription and planning
// collaborators with the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/types"
)

const (
	visionModel = "gemini-1.5-flash"
	planModel   = "gemini-1.5-pro"
)

type Analyzer struct {
	client *genai.Client
}

func NewAnalyzer(ctx context.Context, apiKey string) (*Analyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Analyzer{client: client}, nil
}

func (a *Analyzer) Close() error {
	return a.client.Close()
}

// --- VisionAnalyzer ---

const bodyScanPrompt = `You are a fitness coach reviewing a physique photo.
Respond with JSON: {"summary": string, "body_fat_pct_estimate": number,
"posture": string, "strengths": [string], "recommendations": [string]}.
Keep the summary to three sentences a coach would text to a client.`

func (a *Analyzer) AnalyzeBodyScan(ctx context.Context, image []byte, mimeType string) (*types.BodyScanAnalysis, error) {
	raw, err := a.generateJSON(ctx, visionModel,
		genai.Blob{MIMEType: mimeType, Data: image},
		genai.Text(bodyScanPrompt))
	if err != nil {
		return nil, fmt.Errorf("body scan analysis: %w", err)
	}
	return ParseBodyScanAnalysis(raw)
}

const detectPrompt = `You are a strength coach reviewing an exercise video.
Identify the exercise and assess the form. Respond with JSON:
{"exercise": string, "confidence": number between 0 and 1,
"analysis": {"summary": string, "form_score": integer 1-10,
"issues": [string], "corrections": [string]}}.
Use a lowercase common exercise name. Confidence reflects how sure you
are about the exercise identity, not the form quality.`

func (a *Analyzer) AnalyzeBiomechanics(ctx context.Context, video []byte, mimeType string) (*types.BiomechanicsDetection, error) {
	raw, err := a.generateJSON(ctx, visionModel,
		genai.Blob{MIMEType: mimeType, Data: video},
		genai.Text(detectPrompt))
	if err != nil {
		return nil, fmt.Errorf("biomechanics detection: %w", err)
	}
	return ParseBiomechanicsDetection(raw)
}

const exercisePromptFmt = `You are a strength coach. The athlete confirmed
this video shows: %s. Analyze the form for that exercise. Respond with
JSON: {"summary": string, "form_score": integer 1-10, "issues": [string],
"corrections": [string]}.`

func (a *Analyzer) AnalyzeExercise(ctx context.Context, video []byte, mimeType, exercise string) (*types.BiomechanicsAnalysis, error) {
	raw, err := a.generateJSON(ctx, visionModel,
		genai.Blob{MIMEType: mimeType, Data: video},
		genai.Text(fmt.Sprintf(exercisePromptFmt, exercise)))
	if err != nil {
		return nil, fmt.Errorf("exercise analysis: %w", err)
	}
	return ParseBiomechanicsAnalysis(raw)
}

const confirmPromptFmt = `A coaching bot asked a user whether their video
showed "%s". The user replied: %q. Classify the reply. Respond with JSON:
{"outcome": "confirmed" | "corrected" | "unclear",
"corrected_exercise": string}. Use "corrected" only when the reply names a
different exercise; put that name in corrected_exercise, lowercase.`

func (a *Analyzer) InterpretConfirmation(ctx context.Context, candidateExercise, reply string) (*types.ConfirmationVerdict, error) {
	raw, err := a.generateJSON(ctx, visionModel,
		genai.Text(fmt.Sprintf(confirmPromptFmt, candidateExercise, reply)))
	if err != nil {
		return nil, fmt.Errorf("confirmation interpretation: %w", err)
	}
	return ParseConfirmationVerdict(raw)
}

// --- Transcriber ---

const transcribePrompt = `Transcribe this voice message verbatim. Respond
with only the transcript text, no commentary.`

func (a *Analyzer) Transcribe(ctx context.Context, phoneNumber string, audio []byte, mimeType string) (string, error) {
	model := a.client.GenerativeModel(visionModel)
	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: audio},
		genai.Text(transcribePrompt))
	if err != nil {
		return "", faults.Transient("gemini", fmt.Errorf("transcription: %w", err))
	}
	text, err := responseText(resp)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// --- Planner ---

const nutritionPromptFmt = `You are a nutrition coach. Build a daily intake
plan for this client. Profile: %s. Latest body scan: %s. Current training
plan: %s. Respond with JSON: {"calories_kcal": integer, "protein_g":
integer, "carbs_g": integer, "fat_g": integer, "guidance": string}.`

func (a *Analyzer) GenerateNutritionPlan(ctx context.Context, profile *types.UserProfile, scan *types.BodyScan, plan *types.TrainingPlan) (*types.NutritionPlan, error) {
	raw, err := a.generateJSON(ctx, planModel,
		genai.Text(fmt.Sprintf(nutritionPromptFmt, asJSON(profile), asJSON(scan), asJSON(plan))))
	if err != nil {
		return nil, fmt.Errorf("nutrition plan: %w", err)
	}
	out, err := ParseNutritionPlan(raw)
	if err != nil {
		return nil, err
	}
	out.PhoneNumber = profile.PhoneNumber
	if scan != nil {
		out.BodyScanID = scan.ID
	}
	if plan != nil {
		out.TrainingPlanID = plan.ID
	}
	return out, nil
}

const trainingPromptFmt = `You are a strength coach. Build a weekly training
plan for this client. Profile: %s. Respect their available equipment and
training days per week. Respond with JSON: {"days_per_week": integer,
"focus": string, "sessions": [{"day": string, "focus": string,
"exercises": [string]}]}.`

func (a *Analyzer) GenerateTrainingPlan(ctx context.Context, profile *types.UserProfile) (*types.TrainingPlan, error) {
	raw, err := a.generateJSON(ctx, planModel,
		genai.Text(fmt.Sprintf(trainingPromptFmt, asJSON(profile))))
	if err != nil {
		return nil, fmt.Errorf("training plan: %w", err)
	}
	out, err := ParseTrainingPlan(raw)
	if err != nil {
		return nil, err
	}
	out.PhoneNumber = profile.PhoneNumber
	return out, nil
}

const predictionPromptFmt = `You are a fitness coach projecting a client's
progress. Profile: %s. Body scan history (newest first): %s. Form analysis
history (newest first): %s. Project 12 weeks ahead assuming current
adherence. Respond with JSON: {"horizon_weeks": integer, "weight_kg_low":
number, "weight_kg_high": number, "body_fat_pct_low": number,
"body_fat_pct_high": number, "rationale": string}. Give honest ranges, not
a single point.`

func (a *Analyzer) GeneratePrediction(ctx context.Context, profile *types.UserProfile, scans []*types.BodyScan, mechanics []*types.Biomechanics) (*types.Prediction, error) {
	raw, err := a.generateJSON(ctx, planModel,
		genai.Text(fmt.Sprintf(predictionPromptFmt, asJSON(profile), asJSON(scans), asJSON(mechanics))))
	if err != nil {
		return nil, fmt.Errorf("prediction: %w", err)
	}
	out, err := ParsePrediction(raw)
	if err != nil {
		return nil, err
	}
	out.PhoneNumber = profile.PhoneNumber
	for _, s := range scans {
		out.BodyScanIDs = append(out.BodyScanIDs, s.ID)
	}
	for _, m := range mechanics {
		out.BiomechanicsIDs = append(out.BiomechanicsIDs, m.ID)
	}
	return out, nil
}

// --- Response plumbing ---

func (a *Analyzer) generateJSON(ctx context.Context, modelName string, parts ...genai.Part) (string, error) {
	model := a.client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", faults.Transient("gemini", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty model response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text in model response")
	}
	return b.String(), nil
}

func asJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// --- Payload parsing ---

// stripFences tolerates models that wrap JSON in markdown fences despite
// the response MIME type.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func ParseBodyScanAnalysis(raw string) (*types.BodyScanAnalysis, error) {
	var out types.BodyScanAnalysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse body scan analysis: %w", err)
	}
	if out.Summary == "" {
		return nil, fmt.Errorf("parse body scan analysis: missing summary")
	}
	return &out, nil
}

func ParseBiomechanicsDetection(raw string) (*types.BiomechanicsDetection, error) {
	var out types.BiomechanicsDetection
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse biomechanics detection: %w", err)
	}
	if out.Exercise == "" {
		return nil, fmt.Errorf("parse biomechanics detection: missing exercise")
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, fmt.Errorf("parse biomechanics detection: confidence %v out of range", out.Confidence)
	}
	return &out, nil
}

func ParseBiomechanicsAnalysis(raw string) (*types.BiomechanicsAnalysis, error) {
	var out types.BiomechanicsAnalysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse biomechanics analysis: %w", err)
	}
	if out.Summary == "" {
		return nil, fmt.Errorf("parse biomechanics analysis: missing summary")
	}
	return &out, nil
}

// ParseConfirmationVerdict maps anything unexpected to unclear rather than
// failing: a garbled classification still has a safe interpretation.
func ParseConfirmationVerdict(raw string) (*types.ConfirmationVerdict, error) {
	var out types.ConfirmationVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse confirmation verdict: %w", err)
	}
	switch out.Outcome {
	case types.OutcomeConfirmed:
	case types.OutcomeCorrected:
		if strings.TrimSpace(out.CorrectedExercise) == "" {
			out = types.ConfirmationVerdict{Outcome: types.OutcomeUnclear}
		}
	default:
		out = types.ConfirmationVerdict{Outcome: types.OutcomeUnclear}
	}
	return &out, nil
}

func ParseNutritionPlan(raw string) (*types.NutritionPlan, error) {
	var out types.NutritionPlan
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse nutrition plan: %w", err)
	}
	if out.CaloriesKcal <= 0 {
		return nil, fmt.Errorf("parse nutrition plan: missing calories")
	}
	return &out, nil
}

func ParseTrainingPlan(raw string) (*types.TrainingPlan, error) {
	var out types.TrainingPlan
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse training plan: %w", err)
	}
	if out.DaysPerWeek <= 0 || len(out.Sessions) == 0 {
		return nil, fmt.Errorf("parse training plan: missing sessions")
	}
	return &out, nil
}

func ParsePrediction(raw string) (*types.Prediction, error) {
	var out types.Prediction
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse prediction: %w", err)
	}
	if out.HorizonWeeks <= 0 {
		return nil, fmt.Errorf("parse prediction: missing horizon")
	}
	if out.WeightKgHigh < out.WeightKgLow {
		return nil, fmt.Errorf("parse prediction: inverted weight range")
	}
	return &out, nil
}
