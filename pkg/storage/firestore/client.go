package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Profiles are keyed by phone number: profiles/{phone}
func (c *Client) Profiles() *Collection[types.UserProfile] {
	return &Collection[types.UserProfile]{Ref: c.fs.Collection(shared.CollectionProfiles)}
}

// ThreadMappings are keyed by the phone pair: thread_mappings/{from|to}
func (c *Client) ThreadMappings() *Collection[types.PhoneThreadMapping] {
	return &Collection[types.PhoneThreadMapping]{Ref: c.fs.Collection(shared.CollectionThreadMappings)}
}

// PendingConfirmations are keyed by phone number, which enforces the
// at-most-one-per-number invariant structurally.
func (c *Client) PendingConfirmations() *Collection[types.PendingConfirmation] {
	return &Collection[types.PendingConfirmation]{Ref: c.fs.Collection(shared.CollectionPendingConfirmations)}
}

func (c *Client) BodyScans() *Collection[types.BodyScan] {
	return &Collection[types.BodyScan]{Ref: c.fs.Collection(shared.CollectionBodyScans)}
}

func (c *Client) Biomechanics() *Collection[types.Biomechanics] {
	return &Collection[types.Biomechanics]{Ref: c.fs.Collection(shared.CollectionBiomechanics)}
}

func (c *Client) NutritionPlans() *Collection[types.NutritionPlan] {
	return &Collection[types.NutritionPlan]{Ref: c.fs.Collection(shared.CollectionNutritionPlans)}
}

func (c *Client) TrainingPlans() *Collection[types.TrainingPlan] {
	return &Collection[types.TrainingPlan]{Ref: c.fs.Collection(shared.CollectionTrainingPlans)}
}

func (c *Client) Predictions() *Collection[types.Prediction] {
	return &Collection[types.Prediction]{Ref: c.fs.Collection(shared.CollectionPredictions)}
}

// DashboardTokens are keyed by the token value: dashboard_tokens/{token}
func (c *Client) DashboardTokens() *Collection[types.DashboardToken] {
	return &Collection[types.DashboardToken]{Ref: c.fs.Collection(shared.CollectionDashboardTokens)}
}

func (c *Client) Executions() *Collection[types.ExecutionRecord] {
	return &Collection[types.ExecutionRecord]{Ref: c.fs.Collection(shared.CollectionExecutions)}
}
