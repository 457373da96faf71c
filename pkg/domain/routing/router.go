// Package routing decides what an inbound WhatsApp message means and runs
// the matching pipeline.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/domain/artifacts"
	"github.com/formcoach/server/pkg/domain/pending"
	"github.com/formcoach/server/pkg/domain/profile"
	"github.com/formcoach/server/pkg/domain/threads"
	"github.com/formcoach/server/pkg/domain/tier"
	"github.com/formcoach/server/pkg/execution"
	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/types"
)

// ConfidenceThreshold is the minimum detection confidence at which an
// exercise video is analyzed without asking the user first.
const ConfidenceThreshold = 0.75

// Decision is the routing outcome for one inbound message.
type Decision string

const (
	DecisionConfirmation  Decision = "confirmation"
	DecisionBodyScan      Decision = "body_scan"
	DecisionBiomechanics  Decision = "biomechanics"
	DecisionTranscription Decision = "transcription"
	DecisionChat          Decision = "chat"
	DecisionIgnored       Decision = "ignored"
)

// Decide applies the routing priority: a text-only reply while a
// confirmation is pending is always treated as that reply, then media is
// routed by kind, and everything else is conversation.
func Decide(msg *types.InboundMessage, hasPending bool) Decision {
	if hasPending && !msg.HasMedia() {
		return DecisionConfirmation
	}
	switch {
	case strings.HasPrefix(msg.MediaContentType, "image/"):
		return DecisionBodyScan
	case strings.HasPrefix(msg.MediaContentType, "video/"):
		return DecisionBiomechanics
	case strings.HasPrefix(msg.MediaContentType, "audio/"):
		return DecisionTranscription
	}
	if strings.TrimSpace(msg.Body) == "" {
		return DecisionIgnored
	}
	return DecisionChat
}

// Router owns the per-message pipelines. Transient collaborator failures
// end in a user-facing retry message and a DEGRADED outcome rather than a
// handler error, so Pub/Sub never retries them silently. Anything else is
// a bug and surfaces as a handler error.
type Router struct {
	db     shared.Database
	store  shared.BlobStore
	bucket string

	profiles  *profile.Manager
	threads   *threads.Resolver
	pending   *pending.Machine
	artifacts *artifacts.Store

	assistant   shared.Assistant
	vision      shared.VisionAnalyzer
	transcriber shared.Transcriber
	messenger   shared.Messenger
	media       shared.MediaFetcher
}

func NewRouter(db shared.Database, store shared.BlobStore, bucket string,
	assistant shared.Assistant, vision shared.VisionAnalyzer,
	transcriber shared.Transcriber, messenger shared.Messenger,
	media shared.MediaFetcher) *Router {
	return &Router{
		db:          db,
		store:       store,
		bucket:      bucket,
		profiles:    profile.NewManager(db),
		threads:     threads.NewResolver(db, assistant),
		pending:     pending.NewMachine(db),
		artifacts:   artifacts.NewStore(db),
		assistant:   assistant,
		vision:      vision,
		transcriber: transcriber,
		messenger:   messenger,
		media:       media,
	}
}

// Dispatch routes one inbound message. The returned map becomes the
// execution record's outputs; a "status" key overrides the terminal
// status.
func (r *Router) Dispatch(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage) (map[string]interface{}, error) {
	pendingRec, err := r.pending.Get(ctx, msg.From)
	if err != nil {
		return nil, fmt.Errorf("pending confirmation lookup: %w", err)
	}

	decision := Decide(msg, pendingRec != nil)
	logger.Info("Routed message", "decision", string(decision), "message_sid", msg.MessageSid)

	switch decision {
	case DecisionConfirmation:
		return r.handleConfirmation(ctx, logger, msg, pendingRec)
	case DecisionBodyScan:
		return r.handleBodyScan(ctx, logger, msg)
	case DecisionBiomechanics:
		return r.handleBiomechanics(ctx, logger, msg)
	case DecisionTranscription:
		return r.handleTranscription(ctx, logger, msg)
	case DecisionChat:
		return r.handleChat(ctx, logger, msg)
	}
	return map[string]interface{}{"decision": string(DecisionIgnored)}, nil
}

// --- Confirmation replies ---

func (r *Router) handleConfirmation(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage, rec *types.PendingConfirmation) (map[string]interface{}, error) {
	reply := strings.TrimSpace(msg.Body)

	// In WAITING_FOR_CORRECTION any non-blank text is taken verbatim as
	// the exercise name. No interpretation round trip.
	if rec.WaitingForCorrection {
		if reply == "" {
			return r.repromptOrGiveUp(ctx, logger, msg, rec)
		}
		return r.finalizeConfirmation(ctx, logger, msg, rec, reply)
	}

	verdict, err := r.vision.InterpretConfirmation(ctx, rec.DetectedExercise, reply)
	if err != nil {
		logger.Error("Confirmation interpretation failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, I couldn't process that reply. Please answer again.",
			map[string]interface{}{"decision": string(DecisionConfirmation)})
	}

	switch verdict.Outcome {
	case types.OutcomeConfirmed:
		return r.finalizeConfirmation(ctx, logger, msg, rec, rec.DetectedExercise)
	case types.OutcomeCorrected:
		return r.finalizeConfirmation(ctx, logger, msg, rec, verdict.CorrectedExercise)
	default:
		return r.repromptOrGiveUp(ctx, logger, msg, rec)
	}
}

func (r *Router) repromptOrGiveUp(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage, rec *types.PendingConfirmation) (map[string]interface{}, error) {
	gaveUp, err := r.pending.RequestCorrection(ctx, rec)
	if errors.Is(err, faults.ErrNotFound) {
		// A concurrent delivery resolved the record between our lookup and
		// this write; its reply already settled the flow. Nothing to ask.
		logger.Info("Pending confirmation already resolved, dropping reply")
		return map[string]interface{}{"decision": string(DecisionConfirmation), "already_resolved": true}, nil
	}
	if err != nil {
		return nil, err
	}
	if gaveUp {
		logger.Warn("Giving up on confirmation after repeated unclear replies")
		if err := r.send(ctx, msg.From, "I couldn't work out which exercise that was. Please send the video again."); err != nil {
			return nil, err
		}
		return map[string]interface{}{"decision": string(DecisionConfirmation), "gave_up": true}, nil
	}
	prompt := fmt.Sprintf("Sorry, I didn't catch that. Was the exercise %s? Reply yes, or tell me the right name.", rec.DetectedExercise)
	if err := r.send(ctx, msg.From, prompt); err != nil {
		return nil, err
	}
	return map[string]interface{}{"decision": string(DecisionConfirmation), "reprompted": true}, nil
}

// finalizeConfirmation deletes the pending record before running the
// final analysis. If anything after the delete fails the user is asked to
// resend the video; the stale record must never outlive its reply.
func (r *Router) finalizeConfirmation(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage, rec *types.PendingConfirmation, exercise string) (map[string]interface{}, error) {
	if err := r.pending.Resolve(ctx, msg.From); err != nil {
		return nil, err
	}

	video, err := r.store.Read(ctx, r.bucket, rec.Video.StoragePath)
	if err != nil {
		logger.Error("Stored video read failed", "error", err, "path", rec.Video.StoragePath)
		return r.degraded(ctx, err, msg.From, "Sorry, I lost track of that video. Please send it again.",
			map[string]interface{}{"decision": string(DecisionConfirmation)})
	}

	analysis, err := r.vision.AnalyzeExercise(ctx, video, rec.Video.ContentType, exercise)
	if err != nil {
		logger.Error("Exercise analysis failed", "error", err, "exercise", exercise)
		return r.degraded(ctx, err, msg.From, "Sorry, the analysis didn't go through. Please send the video again.",
			map[string]interface{}{"decision": string(DecisionConfirmation)})
	}

	id, err := r.artifacts.SaveBiomechanics(ctx, &types.Biomechanics{
		PhoneNumber: msg.From,
		Exercise:    exercise,
		Confidence:  1, // user-confirmed
		Media:       rec.Video,
		Analysis:    *analysis,
	})
	if err != nil {
		return nil, fmt.Errorf("save biomechanics: %w", err)
	}

	if err := r.db.IncrementAnalysisCount(ctx, msg.From); err != nil {
		logger.Warn("Analysis count increment failed", "error", err)
	}

	if err := r.send(ctx, msg.From, formatBiomechanicsReply(exercise, analysis)); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"decision":    string(DecisionConfirmation),
		"exercise":    exercise,
		"artifact_id": id,
	}, nil
}

// --- Body scan photos ---

func (r *Router) handleBodyScan(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage) (map[string]interface{}, error) {
	prof, outputs, err := r.admitAnalysis(ctx, logger, msg, DecisionBodyScan)
	if prof == nil {
		return outputs, err
	}

	image, contentType, err := r.media.Fetch(ctx, msg.MediaURL)
	if err != nil {
		logger.Error("Media fetch failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, I couldn't download that photo. Please send it again.",
			map[string]interface{}{"decision": string(DecisionBodyScan)})
	}
	if contentType == "" {
		contentType = msg.MediaContentType
	}

	ref := r.capture(ctx, logger, msg, image, contentType)

	analysis, err := r.vision.AnalyzeBodyScan(ctx, image, contentType)
	if err != nil {
		logger.Error("Body scan analysis failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, the analysis didn't go through. Please send the photo again.",
			map[string]interface{}{"decision": string(DecisionBodyScan)})
	}

	id, err := r.artifacts.SaveBodyScan(ctx, &types.BodyScan{
		PhoneNumber: msg.From,
		Media:       ref,
		Analysis:    *analysis,
	})
	if err != nil {
		return nil, fmt.Errorf("save body scan: %w", err)
	}

	if err := r.profiles.RecordLastImage(ctx, msg.From, ref); err != nil {
		logger.Warn("last_image update failed", "error", err)
	}
	if err := r.db.IncrementAnalysisCount(ctx, msg.From); err != nil {
		logger.Warn("Analysis count increment failed", "error", err)
	}

	if err := r.send(ctx, msg.From, formatBodyScanReply(analysis)); err != nil {
		return nil, err
	}
	return map[string]interface{}{"decision": string(DecisionBodyScan), "artifact_id": id}, nil
}

// --- Exercise videos ---

func (r *Router) handleBiomechanics(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage) (map[string]interface{}, error) {
	prof, outputs, err := r.admitAnalysis(ctx, logger, msg, DecisionBiomechanics)
	if prof == nil {
		return outputs, err
	}

	video, contentType, err := r.media.Fetch(ctx, msg.MediaURL)
	if err != nil {
		logger.Error("Media fetch failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, I couldn't download that video. Please send it again.",
			map[string]interface{}{"decision": string(DecisionBiomechanics)})
	}
	if contentType == "" {
		contentType = msg.MediaContentType
	}

	// The stored copy is what a later confirmation reply gets analyzed
	// from, so unlike photos this write has to stick.
	ref := types.MediaRef{
		URL:         msg.MediaURL,
		StoragePath: objectPath(msg.From, msg.MessageSid, contentType),
		ContentType: contentType,
	}
	if err := r.store.Write(ctx, r.bucket, ref.StoragePath, contentType, video); err != nil {
		logger.Error("Video capture failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, something went wrong with that video. Please send it again.",
			map[string]interface{}{"decision": string(DecisionBiomechanics)})
	}

	if err := r.profiles.RecordLastVideo(ctx, msg.From, ref); err != nil {
		logger.Warn("last_video update failed", "error", err)
	}

	detection, err := r.vision.AnalyzeBiomechanics(ctx, video, contentType)
	if err != nil {
		logger.Error("Biomechanics detection failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, the analysis didn't go through. Please send the video again.",
			map[string]interface{}{"decision": string(DecisionBiomechanics)})
	}

	// Ambiguous detection: park it and ask. A newer video always replaces
	// whatever was pending.
	if detection.Confidence < ConfidenceThreshold {
		if err := r.pending.Supersede(ctx, msg.From, detection.Exercise, ref); err != nil {
			return nil, err
		}
		prompt := fmt.Sprintf("That looks like %s, but I'm not sure. Reply yes to confirm, or tell me the right exercise.", detection.Exercise)
		if err := r.send(ctx, msg.From, prompt); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"decision":   string(DecisionBiomechanics),
			"pending":    true,
			"exercise":   detection.Exercise,
			"confidence": detection.Confidence,
		}, nil
	}

	// Confident detection resolves any older pending record.
	if err := r.pending.Resolve(ctx, msg.From); err != nil {
		logger.Warn("Pending cleanup failed", "error", err)
	}

	id, err := r.artifacts.SaveBiomechanics(ctx, &types.Biomechanics{
		PhoneNumber: msg.From,
		Exercise:    detection.Exercise,
		Confidence:  detection.Confidence,
		Media:       ref,
		Analysis:    detection.Analysis,
	})
	if err != nil {
		return nil, fmt.Errorf("save biomechanics: %w", err)
	}

	if err := r.db.IncrementAnalysisCount(ctx, msg.From); err != nil {
		logger.Warn("Analysis count increment failed", "error", err)
	}

	if err := r.send(ctx, msg.From, formatBiomechanicsReply(detection.Exercise, &detection.Analysis)); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"decision":    string(DecisionBiomechanics),
		"exercise":    detection.Exercise,
		"artifact_id": id,
	}, nil
}

// --- Voice notes ---

func (r *Router) handleTranscription(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage) (map[string]interface{}, error) {
	audio, contentType, err := r.media.Fetch(ctx, msg.MediaURL)
	if err != nil {
		logger.Error("Media fetch failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, I couldn't download that voice note. Please send it again.",
			map[string]interface{}{"decision": string(DecisionTranscription)})
	}
	if contentType == "" {
		contentType = msg.MediaContentType
	}

	transcript, err := r.transcriber.Transcribe(ctx, msg.From, audio, contentType)
	if err != nil {
		logger.Error("Transcription failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, I couldn't make out that voice note. Could you type it instead?",
			map[string]interface{}{"decision": string(DecisionTranscription)})
	}

	// Re-enter routing as if the user had typed the transcript. The copy
	// has no media, so it can route to a confirmation reply or chat but
	// never back here.
	text := *msg
	text.Body = transcript
	text.MediaURL = ""
	text.MediaContentType = ""

	outputs, err := r.Dispatch(ctx, logger, &text)
	if err != nil {
		return outputs, err
	}
	if outputs == nil {
		outputs = map[string]interface{}{}
	}
	outputs["transcribed"] = true
	return outputs, nil
}

// --- Conversation ---

func (r *Router) handleChat(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage) (map[string]interface{}, error) {
	prof, err := r.profiles.GetOrCreateMinimal(ctx, msg.From, msg.ProfileName)
	if err != nil {
		return nil, err
	}

	complete, missing, err := r.profiles.CheckOnboarding(ctx, prof)
	if err != nil {
		logger.Warn("Onboarding check failed", "error", err)
	}

	threadID, err := r.threads.ResolveOrCreate(ctx, logger, msg.From, msg.To, msg.ProfileName)
	if err != nil {
		logger.Error("Thread resolution failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, something went wrong on my end. Please try again.",
			map[string]interface{}{"decision": string(DecisionChat)})
	}

	// While the profile is incomplete the agent is told which fields are
	// still open so it can work the next question into the conversation.
	content := msg.Body
	if !complete && len(missing) > 0 {
		content = fmt.Sprintf("%s\n\n[coach context: profile fields still missing, in order: %s. Ask for the next one if it fits the conversation.]",
			msg.Body, strings.Join(missing, ", "))
	}

	answer, err := r.assistant.SendMessage(ctx, threadID, content)
	if err != nil {
		logger.Error("Assistant call failed", "error", err)
		return r.degraded(ctx, err, msg.From, "Sorry, something went wrong on my end. Please try again.",
			map[string]interface{}{"decision": string(DecisionChat)})
	}

	if err := r.send(ctx, msg.From, answer); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"decision":            string(DecisionChat),
		"thread_id":           threadID,
		"onboarding_complete": complete,
	}, nil
}

// --- Shared pipeline pieces ---

// admitAnalysis loads the profile, rolls the monthly counter if a new
// month started, and enforces the tier quota. A nil profile return means
// the pipeline must stop; outputs and err carry the outcome.
func (r *Router) admitAnalysis(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage, decision Decision) (*types.UserProfile, map[string]interface{}, error) {
	prof, err := r.profiles.GetOrCreateMinimal(ctx, msg.From, msg.ProfileName)
	if err != nil {
		return nil, nil, err
	}

	if tier.ShouldResetAnalysisCount(prof) {
		if err := r.db.ResetAnalysisCount(ctx, msg.From); err != nil {
			logger.Warn("Analysis count reset failed", "error", err)
		} else {
			prof.AnalysisCountThisMonth = 0
		}
	}

	if allowed, reason := tier.CanAnalyze(prof); !allowed {
		logger.Info("Analysis denied by tier quota", "tier", prof.Tier)
		if err := r.send(ctx, msg.From, reason); err != nil {
			return nil, nil, err
		}
		return nil, map[string]interface{}{"decision": string(decision), "quota_denied": true}, nil
	}
	return prof, nil, nil
}

// capture copies inbound media into the bucket. Photos survive a failed
// copy; the provider URL still works for the rest of the pipeline.
func (r *Router) capture(ctx context.Context, logger *slog.Logger, msg *types.InboundMessage, data []byte, contentType string) types.MediaRef {
	ref := types.MediaRef{
		URL:         msg.MediaURL,
		StoragePath: objectPath(msg.From, msg.MessageSid, contentType),
		ContentType: contentType,
	}
	if err := r.store.Write(ctx, r.bucket, ref.StoragePath, contentType, data); err != nil {
		logger.Warn("Media capture failed", "error", err, "path", ref.StoragePath)
		ref.StoragePath = ""
	}
	return ref
}

// degraded apologizes to the user and reports DEGRADED when the cause is
// a transient collaborator failure. Any other cause surfaces as a handler
// error: masking it would hide a bug behind a retry apology.
func (r *Router) degraded(ctx context.Context, cause error, to, apology string, outputs map[string]interface{}) (map[string]interface{}, error) {
	if !faults.IsTransient(cause) {
		return nil, cause
	}
	if err := r.send(ctx, to, apology); err != nil {
		return nil, err
	}
	outputs["status"] = execution.StatusDegraded
	return outputs, nil
}

func (r *Router) send(ctx context.Context, to, body string) error {
	if err := r.messenger.SendWhatsApp(ctx, to, body); err != nil {
		return fmt.Errorf("send whatsapp to %s: %w", to, err)
	}
	return nil
}

func objectPath(phoneNumber, messageSid, contentType string) string {
	return fmt.Sprintf("media/%s/%s%s", phoneNumber, messageSid, extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "video/mp4":
		return ".mp4"
	case "video/3gpp":
		return ".3gp"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/amr":
		return ".amr"
	default:
		return ".bin"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatBodyScanReply(a *types.BodyScanAnalysis) string {
	var b strings.Builder
	b.WriteString(a.Summary)
	if len(a.Recommendations) > 0 {
		b.WriteString("\n\nRecommendations:")
		for _, rec := range a.Recommendations {
			b.WriteString("\n- ")
			b.WriteString(rec)
		}
	}
	return b.String()
}

func formatBiomechanicsReply(exercise string, a *types.BiomechanicsAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s form check:\n%s", titleCase(exercise), a.Summary)
	if a.FormScore > 0 {
		fmt.Fprintf(&b, "\n\nForm score: %d/10", a.FormScore)
	}
	if len(a.Corrections) > 0 {
		b.WriteString("\n\nFocus on:")
		for _, c := range a.Corrections {
			b.WriteString("\n- ")
			b.WriteString(c)
		}
	}
	return b.String()
}
