package shared

const (
	ProjectID = "fitline-project" // Can be overridden by GOOGLE_CLOUD_PROJECT

	DefaultUserID   = "demo"
	DefaultTimezone = "Asia/Tokyo"

	TopicMetricsIngested = "topic-metrics-ingested"
	TopicCoachingTrigger = "topic-coaching-trigger"

	CollectionUsers         = "users"
	CollectionCredentials   = "credentials"
	CollectionProfile       = "profile"
	CollectionMetrics       = "metrics"
	CollectionCoachMonthly  = "coach_monthly"
	CollectionMeals         = "meals"
	CollectionExecutions    = "executions"
	ProfileLatestDocumentID = "latest"

	// TokenExpirySkew is how close to expiry an access token may get before it is refreshed.
	TokenExpirySkewSeconds = 120
)
