package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formcoach/server/pkg/bootstrap"
	"github.com/formcoach/server/pkg/testing/mocks"
	"github.com/formcoach/server/pkg/types"
)

func validToken(db *mocks.MockDatabase) {
	db.GetDashboardTokenFunc = func(ctx context.Context, token string) (*types.DashboardToken, error) {
		return &types.DashboardToken{
			Token:       token,
			PhoneNumber: "+491",
			ExpiresAt:   time.Now().Add(time.Hour),
		}, nil
	}
}

func testRouter(db *mocks.MockDatabase, planner *mocks.MockPlanner) chi.Router {
	return NewRouter(&bootstrap.Service{
		DB:      db,
		Config:  &bootstrap.Config{AdminAPIKey: "admin-key"},
		Planner: planner,
	})
}

func doRequest(router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestProfileRequiresToken(t *testing.T) {
	router := testRouter(&mocks.MockDatabase{}, nil)

	rec := doRequest(router, http.MethodGet, "/v1/profile", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestExpiredTokenDistinctFromUnknown(t *testing.T) {
	db := &mocks.MockDatabase{}
	db.GetDashboardTokenFunc = func(ctx context.Context, token string) (*types.DashboardToken, error) {
		return &types.DashboardToken{Token: token, PhoneNumber: "+491", ExpiresAt: time.Now().Add(-time.Hour)}, nil
	}
	router := testRouter(db, nil)

	rec := doRequest(router, http.MethodGet, "/v1/profile", "stale", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "token expired" {
		t.Errorf("Expected an expiry-specific message, got %q", body["error"])
	}

	unknown := testRouter(&mocks.MockDatabase{}, nil)
	rec = doRequest(unknown, http.MethodGet, "/v1/profile", "nope", nil)
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "invalid token" {
		t.Errorf("Expected an invalid-token message, got %q", body["error"])
	}
}

func TestGetProfile(t *testing.T) {
	db := &mocks.MockDatabase{}
	validToken(db)
	db.GetProfileFunc = func(ctx context.Context, phoneNumber string) (*types.UserProfile, error) {
		if phoneNumber != "+491" {
			t.Errorf("Expected the token's phone number, got %s", phoneNumber)
		}
		return &types.UserProfile{PhoneNumber: phoneNumber, Goal: "hypertrophy"}, nil
	}
	router := testRouter(db, nil)

	rec := doRequest(router, http.MethodGet, "/v1/profile", "tok", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var profile types.UserProfile
	json.Unmarshal(rec.Body.Bytes(), &profile)
	if profile.Goal != "hypertrophy" {
		t.Errorf("Unexpected profile: %+v", profile)
	}
}

func TestListArtifacts(t *testing.T) {
	db := &mocks.MockDatabase{}
	validToken(db)
	var gotLimit int
	db.ListBodyScansFunc = func(ctx context.Context, phoneNumber string, limit int) ([]*types.BodyScan, error) {
		gotLimit = limit
		return []*types.BodyScan{{ID: "scan-1", PhoneNumber: phoneNumber}}, nil
	}
	router := testRouter(db, nil)

	rec := doRequest(router, http.MethodGet, "/v1/artifacts/body-scans?limit=5", "tok", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if gotLimit != 5 {
		t.Errorf("Expected limit 5 passed through, got %d", gotLimit)
	}
	var body struct {
		Items []types.BodyScan `json:"items"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Items) != 1 || body.Items[0].ID != "scan-1" {
		t.Errorf("Unexpected items: %+v", body.Items)
	}
}

func TestUnknownArtifactKindIs404(t *testing.T) {
	db := &mocks.MockDatabase{}
	validToken(db)
	router := testRouter(db, nil)

	rec := doRequest(router, http.MethodGet, "/v1/artifacts/selfies", "tok", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestLatestArtifactNotFound(t *testing.T) {
	db := &mocks.MockDatabase{}
	validToken(db)
	router := testRouter(db, nil)

	rec := doRequest(router, http.MethodGet, "/v1/artifacts/predictions/latest", "tok", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for empty history, got %d", rec.Code)
	}
}

func TestGenerateNutritionPlanCrossLinks(t *testing.T) {
	db := &mocks.MockDatabase{}
	validToken(db)
	db.GetProfileFunc = func(ctx context.Context, phoneNumber string) (*types.UserProfile, error) {
		return &types.UserProfile{PhoneNumber: phoneNumber}, nil
	}
	db.LatestBodyScanFunc = func(ctx context.Context, phoneNumber string) (*types.BodyScan, error) {
		return &types.BodyScan{ID: "scan-9", PhoneNumber: phoneNumber}, nil
	}
	var saved *types.NutritionPlan
	db.SaveNutritionPlanFunc = func(ctx context.Context, plan *types.NutritionPlan) (string, error) {
		saved = plan
		return "plan-1", nil
	}

	planner := &mocks.MockPlanner{
		GenerateNutritionPlanFunc: func(ctx context.Context, profile *types.UserProfile, scan *types.BodyScan, plan *types.TrainingPlan) (*types.NutritionPlan, error) {
			out := &types.NutritionPlan{PhoneNumber: profile.PhoneNumber, CaloriesKcal: 2500}
			if scan != nil {
				out.BodyScanID = scan.ID
			}
			return out, nil
		},
	}
	router := testRouter(db, planner)

	rec := doRequest(router, http.MethodPost, "/v1/nutrition-plans", "tok", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if saved == nil || saved.BodyScanID != "scan-9" {
		t.Errorf("Expected the plan linked to the latest scan, got %+v", saved)
	}
}

func TestGeneratePredictionNeedsEvidence(t *testing.T) {
	db := &mocks.MockDatabase{}
	validToken(db)
	db.GetProfileFunc = func(ctx context.Context, phoneNumber string) (*types.UserProfile, error) {
		return &types.UserProfile{PhoneNumber: phoneNumber}, nil
	}
	router := testRouter(db, &mocks.MockPlanner{})

	rec := doRequest(router, http.MethodPost, "/v1/predictions", "tok", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 with no artifacts, got %d", rec.Code)
	}
}

func TestMintTokenRequiresAdminKey(t *testing.T) {
	router := testRouter(&mocks.MockDatabase{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/tokens", bytes.NewReader([]byte(`{"phone_number":"+491"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without admin key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/tokens", bytes.NewReader([]byte(`{"phone_number":"+491"}`)))
	req.Header.Set("X-Admin-Key", "admin-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var token types.DashboardToken
	json.Unmarshal(rec.Body.Bytes(), &token)
	if token.Token == "" || token.PhoneNumber != "+491" {
		t.Errorf("Unexpected token payload: %+v", token)
	}
}
