package shared

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/fitline/server/pkg/types"
)

// --- Persistence Interfaces ---

// Database is the primary document store. Missing documents surface as ErrNotFound.
type Database interface {
	// Credentials: users/{uid}/credentials/{provider}
	GetCredential(ctx context.Context, userID string, provider types.Provider) (*types.Credential, error)
	SetCredential(ctx context.Context, cred *types.Credential) error

	// Profile: users/{uid}/profile/latest
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
	MergeProfile(ctx context.Context, userID string, update types.ProfileFields, now time.Time) (*types.Profile, error)

	// Metric days: users/{uid}/metrics/{yyyy-mm-dd}
	SetDayMetrics(ctx context.Context, userID string, day types.DayMetrics) error
	GetDayMetrics(ctx context.Context, userID string, date civil.Date) (*types.DayMetrics, error)

	// Meals: users/{uid}/meals/{id}, queried by when_date
	AddMeal(ctx context.Context, meal *types.Meal) error
	MealsBetween(ctx context.Context, userID string, start, end civil.Date) ([]types.Meal, error)

	// Monthly coaching: users/{uid}/coach_monthly/{yyyy-mm}
	SetMonthlyReport(ctx context.Context, report *types.MonthlyReport) error

	// Push tokens live on the user document.
	GetFCMTokens(ctx context.Context, userID string) ([]string, error)
	RemoveFCMTokens(ctx context.Context, userID string, tokens []string) error

	// Executions
	SetExecution(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error
}

// Warehouse is the analytical store. Every call is best-effort from the
// caller's perspective.
type Warehouse interface {
	OverwriteDayMetrics(ctx context.Context, userID string, days []types.DayMetrics) error
	OverwriteBodyComposition(ctx context.Context, userID string, samples []types.BodyCompositionSample) error

	MergeProfile(ctx context.Context, profile *types.Profile) error
	DeleteProfile(ctx context.Context, userID string) error
	InsertProfile(ctx context.Context, profile *types.Profile) error

	InsertMeal(ctx context.Context, meal *types.Meal) error
	RecentMeals(ctx context.Context, userID string, end civil.Date, days, limit int) ([]types.Meal, error)

	MonthlyActivityStats(ctx context.Context, userID string, end civil.Date, days int) (*types.MonthlyStats, error)
	InsertMonthlyReport(ctx context.Context, report *types.MonthlyReport) error
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// --- Collaborator Interfaces ---

// Notifier pushes a message to a user. It never returns an error; failures
// are reported in the result.
type Notifier interface {
	Send(ctx context.Context, userID, title, body string) types.NotifyResult
}

// TextGenerator turns a prompt into generated text.
// It fails with ErrConfigurationMissing or ErrUpstream.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageDescriber turns a meal photo into a short text description.
// It fails with ErrConfigurationMissing or ErrUpstream.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, mime string, data []byte) (string, error)
}
