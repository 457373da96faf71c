// Package dashboard serves the read API for the web dashboard plus
// on-demand plan generation. Every route except token minting is
// authenticated by an opaque dashboard token.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/go-chi/chi/v5"

	"github.com/formcoach/server/pkg/bootstrap"
	"github.com/formcoach/server/pkg/domain/artifacts"
	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/tokens"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.HTTP("DashboardAPI", DashboardAPI)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx)
	})
	return svc, svcErr
}

// DashboardAPI is the entry point
func DashboardAPI(w http.ResponseWriter, r *http.Request) {
	svc, err := initService(r.Context())
	if err != nil {
		http.Error(w, "service init failed", http.StatusInternalServerError)
		return
	}
	NewRouter(svc).ServeHTTP(w, r)
}

type contextKey string

const phoneKey contextKey = "phone_number"

type api struct {
	svc       *bootstrap.Service
	issuer    *tokens.Issuer
	artifacts *artifacts.Store
}

// NewRouter builds the dashboard routes.
func NewRouter(svc *bootstrap.Service) chi.Router {
	a := &api{
		svc:       svc,
		issuer:    tokens.NewIssuer(svc.DB),
		artifacts: artifacts.NewStore(svc.DB),
	}

	router := chi.NewRouter()
	router.Post("/v1/tokens", a.mintToken)

	router.Group(func(r chi.Router) {
		r.Use(a.authenticate)
		r.Get("/v1/profile", a.getProfile)
		r.Get("/v1/artifacts/{kind}", a.listArtifacts)
		r.Get("/v1/artifacts/{kind}/latest", a.latestArtifact)
		r.Post("/v1/nutrition-plans", a.generateNutritionPlan)
		r.Post("/v1/training-plans", a.generateTrainingPlan)
		r.Post("/v1/predictions", a.generatePrediction)
	})
	return router
}

// --- Auth ---

// mintToken is the admin-only entry point that links a dashboard session
// to a phone number.
func (a *api) mintToken(w http.ResponseWriter, r *http.Request) {
	adminKey := a.svc.Config.AdminAPIKey
	if adminKey == "" || r.Header.Get("X-Admin-Key") != adminKey {
		writeError(w, http.StatusUnauthorized, "invalid admin key")
		return
	}

	var body struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phone_number required")
		return
	}

	token, err := a.issuer.Issue(r.Context(), body.PhoneNumber, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (a *api) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		phone, err := a.issuer.Resolve(r.Context(), token)
		switch {
		case errors.Is(err, faults.ErrExpired):
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		case errors.Is(err, faults.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "token lookup failed")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), phoneKey, phone)))
	})
}

func phoneFrom(r *http.Request) string {
	phone, _ := r.Context().Value(phoneKey).(string)
	return phone
}

// --- Reads ---

func (a *api) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := a.svc.DB.GetProfile(r.Context(), phoneFrom(r))
	if err != nil {
		writeFaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *api) listArtifacts(w http.ResponseWriter, r *http.Request) {
	phone := phoneFrom(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var (
		payload interface{}
		err     error
	)
	switch chi.URLParam(r, "kind") {
	case "body-scans":
		payload, err = a.artifacts.ListBodyScans(r.Context(), phone, limit)
	case "biomechanics":
		payload, err = a.artifacts.ListBiomechanics(r.Context(), phone, limit)
	case "nutrition-plans":
		payload, err = a.artifacts.ListNutritionPlans(r.Context(), phone, limit)
	case "training-plans":
		payload, err = a.artifacts.ListTrainingPlans(r.Context(), phone, limit)
	case "predictions":
		payload, err = a.artifacts.ListPredictions(r.Context(), phone, limit)
	default:
		writeError(w, http.StatusNotFound, "unknown artifact kind")
		return
	}
	if err != nil {
		writeFaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": payload})
}

func (a *api) latestArtifact(w http.ResponseWriter, r *http.Request) {
	phone := phoneFrom(r)

	var (
		payload interface{}
		err     error
	)
	switch chi.URLParam(r, "kind") {
	case "body-scans":
		payload, err = a.artifacts.LatestBodyScan(r.Context(), phone)
	case "biomechanics":
		payload, err = a.artifacts.LatestBiomechanics(r.Context(), phone)
	case "nutrition-plans":
		payload, err = a.artifacts.LatestNutritionPlan(r.Context(), phone)
	case "training-plans":
		payload, err = a.artifacts.LatestTrainingPlan(r.Context(), phone)
	case "predictions":
		payload, err = a.artifacts.LatestPrediction(r.Context(), phone)
	default:
		writeError(w, http.StatusNotFound, "unknown artifact kind")
		return
	}
	if err != nil {
		writeFaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// --- Generation ---

func (a *api) generateNutritionPlan(w http.ResponseWriter, r *http.Request) {
	if a.svc.Planner == nil {
		writeError(w, http.StatusServiceUnavailable, "planner not configured")
		return
	}
	ctx := r.Context()
	phone := phoneFrom(r)

	profile, err := a.svc.DB.GetProfile(ctx, phone)
	if err != nil {
		writeFaultError(w, err)
		return
	}

	// Both inputs are optional; a plan from demographics alone is valid.
	scan, err := optionalLatest(a.artifacts.LatestBodyScan, ctx, phone)
	if err != nil {
		writeFaultError(w, err)
		return
	}
	trainingPlan, err := optionalLatest(a.artifacts.LatestTrainingPlan, ctx, phone)
	if err != nil {
		writeFaultError(w, err)
		return
	}

	plan, err := a.svc.Planner.GenerateNutritionPlan(ctx, profile, scan, trainingPlan)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("generation failed: %v", err))
		return
	}
	if _, err := a.artifacts.SaveNutritionPlan(ctx, plan); err != nil {
		writeFaultError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (a *api) generateTrainingPlan(w http.ResponseWriter, r *http.Request) {
	if a.svc.Planner == nil {
		writeError(w, http.StatusServiceUnavailable, "planner not configured")
		return
	}
	ctx := r.Context()

	profile, err := a.svc.DB.GetProfile(ctx, phoneFrom(r))
	if err != nil {
		writeFaultError(w, err)
		return
	}

	plan, err := a.svc.Planner.GenerateTrainingPlan(ctx, profile)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("generation failed: %v", err))
		return
	}
	if _, err := a.artifacts.SaveTrainingPlan(ctx, plan); err != nil {
		writeFaultError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (a *api) generatePrediction(w http.ResponseWriter, r *http.Request) {
	if a.svc.Planner == nil {
		writeError(w, http.StatusServiceUnavailable, "planner not configured")
		return
	}
	ctx := r.Context()
	phone := phoneFrom(r)

	profile, err := a.svc.DB.GetProfile(ctx, phone)
	if err != nil {
		writeFaultError(w, err)
		return
	}

	scans, err := a.artifacts.ListBodyScans(ctx, phone, 10)
	if err != nil {
		writeFaultError(w, err)
		return
	}
	mechanics, err := a.artifacts.ListBiomechanics(ctx, phone, 10)
	if err != nil {
		writeFaultError(w, err)
		return
	}
	if len(scans) == 0 && len(mechanics) == 0 {
		writeError(w, http.StatusConflict, "no artifacts to project from yet")
		return
	}

	prediction, err := a.svc.Planner.GeneratePrediction(ctx, profile, scans, mechanics)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("generation failed: %v", err))
		return
	}
	if _, err := a.artifacts.SavePrediction(ctx, prediction); err != nil {
		writeFaultError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, prediction)
}

// --- Helpers ---

// optionalLatest turns a not-found latest lookup into a nil input.
func optionalLatest[T any](fn func(context.Context, string) (*T, error), ctx context.Context, phone string) (*T, error) {
	v, err := fn(ctx, phone)
	if errors.Is(err, faults.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeFaultError(w http.ResponseWriter, err error) {
	if errors.Is(err, faults.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
