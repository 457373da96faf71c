package shared

const (
	ProjectID = "formcoach-project" // Can be overridden by env var in bootstrap

	TopicInboundMessages = "topic-inbound-messages"

	CollectionProfiles             = "profiles"
	CollectionThreadMappings       = "thread_mappings"
	CollectionPendingConfirmations = "pending_confirmations"
	CollectionBodyScans            = "body_scans"
	CollectionBiomechanics         = "biomechanics"
	CollectionNutritionPlans       = "nutrition_plans"
	CollectionTrainingPlans        = "training_plans"
	CollectionPredictions          = "predictions"
	CollectionDashboardTokens      = "dashboard_tokens"
	CollectionExecutions           = "executions"
)
