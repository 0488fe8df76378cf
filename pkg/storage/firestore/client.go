package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/types"
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

// User returns the raw user document: users/{uid}
func (c *Client) User(userID string) *firestore.DocumentRef {
	return c.fs.Collection(shared.CollectionUsers).Doc(userID)
}

// Credentials are sub-collections of Users: users/{uid}/credentials/{provider}
func (c *Client) Credentials(userID string) *Collection[types.Credential] {
	return &Collection[types.Credential]{
		Ref:           c.User(userID).Collection(shared.CollectionCredentials),
		ToFirestore:   CredentialToFirestore,
		FromFirestore: FirestoreToCredential,
	}
}

// Profiles holds the single "latest" snapshot: users/{uid}/profile/latest
func (c *Client) Profiles(userID string) *Collection[types.Profile] {
	return &Collection[types.Profile]{
		Ref:           c.User(userID).Collection(shared.CollectionProfile),
		ToFirestore:   ProfileToFirestore,
		FromFirestore: FirestoreToProfile,
	}
}

// Metrics are per-day facts keyed by ISO date: users/{uid}/metrics/{yyyy-mm-dd}
func (c *Client) Metrics(userID string) *Collection[types.DayMetrics] {
	return &Collection[types.DayMetrics]{
		Ref:           c.User(userID).Collection(shared.CollectionMetrics),
		ToFirestore:   DayMetricsToFirestore,
		FromFirestore: FirestoreToDayMetrics,
	}
}

// Meals are keyed by generated IDs: users/{uid}/meals/{id}
func (c *Client) Meals(userID string) *Collection[types.Meal] {
	return &Collection[types.Meal]{
		Ref:           c.User(userID).Collection(shared.CollectionMeals),
		ToFirestore:   MealToFirestore,
		FromFirestore: FirestoreToMeal,
	}
}

// MonthlyReports: users/{uid}/coach_monthly/{yyyy-mm}
func (c *Client) MonthlyReports(userID string) *Collection[types.MonthlyReport] {
	return &Collection[types.MonthlyReport]{
		Ref:           c.User(userID).Collection(shared.CollectionCoachMonthly),
		ToFirestore:   MonthlyReportToFirestore,
		FromFirestore: FirestoreToMonthlyReport,
	}
}

// Executions is a top-level collection: executions/{id}
func (c *Client) Executions() *Collection[types.ExecutionRecord] {
	return &Collection[types.ExecutionRecord]{
		Ref:           c.fs.Collection(shared.CollectionExecutions),
		ToFirestore:   ExecutionToFirestore,
		FromFirestore: FirestoreToExecution,
	}
}
