package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	shared "github.com/fitline/server/pkg"
	storage "github.com/fitline/server/pkg/storage/firestore"
	"github.com/fitline/server/pkg/types"
)

// FirestoreAdapter provides database operations using Firestore
// It wraps our typed storage client
type FirestoreAdapter struct {
	Client  *firestore.Client
	storage *storage.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		Client:  client,
		storage: storage.NewClient(client),
	}
}

func (a *FirestoreAdapter) GetCredential(ctx context.Context, userID string, provider types.Provider) (*types.Credential, error) {
	cred, err := a.storage.Credentials(userID).Doc(string(provider)).Get(ctx)
	if err != nil {
		return nil, err
	}
	// Older documents may predate the provider/user fields.
	cred.Provider = provider
	cred.UserID = userID
	return cred, nil
}

// SetCredential overwrites the whole credential document.
func (a *FirestoreAdapter) SetCredential(ctx context.Context, cred *types.Credential) error {
	return a.storage.Credentials(cred.UserID).Doc(string(cred.Provider)).Replace(ctx, cred)
}

// GetProfile returns an empty profile (not an error) when none has been saved.
func (a *FirestoreAdapter) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	p, err := a.storage.Profiles(userID).Doc(shared.ProfileLatestDocumentID).Get(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		return &types.Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	p.UserID = userID
	return p, nil
}

// MergeProfile applies update inside a transaction so a single merge is
// never torn and concurrent merges serialize.
func (a *FirestoreAdapter) MergeProfile(ctx context.Context, userID string, update types.ProfileFields, now time.Time) (*types.Profile, error) {
	ref := a.storage.Profiles(userID).Doc(shared.ProfileLatestDocumentID).Ref

	var merged *types.Profile
	err := a.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current := &types.Profile{UserID: userID}
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			current = storage.FirestoreToProfile(snap.Data())
			current.UserID = userID
		case storage.IsNotFound(err):
		default:
			return err
		}

		current.Merge(update)
		current.UpdatedAt = now
		merged = current
		return tx.Set(ref, storage.ProfileToFirestore(current))
	})
	if err != nil {
		return nil, fmt.Errorf("merge profile: %w", err)
	}
	return merged, nil
}

// SetDayMetrics replaces the day's document; it never merges with a prior run.
func (a *FirestoreAdapter) SetDayMetrics(ctx context.Context, userID string, day types.DayMetrics) error {
	return a.storage.Metrics(userID).Doc(day.Date.String()).Replace(ctx, &day)
}

func (a *FirestoreAdapter) GetDayMetrics(ctx context.Context, userID string, date civil.Date) (*types.DayMetrics, error) {
	return a.storage.Metrics(userID).Doc(date.String()).Get(ctx)
}

// AddMeal stores the meal under its ID, or a generated one when empty.
func (a *FirestoreAdapter) AddMeal(ctx context.Context, meal *types.Meal) error {
	meals := a.storage.Meals(meal.UserID)
	doc := meals.NewDoc()
	if meal.ID != "" {
		doc = meals.Doc(meal.ID)
	}
	if err := doc.Replace(ctx, meal); err != nil {
		return fmt.Errorf("add meal: %w", err)
	}
	meal.ID = doc.ID()
	return nil
}

// MealsBetween returns meals whose when_date lies in [start, end].
func (a *FirestoreAdapter) MealsBetween(ctx context.Context, userID string, start, end civil.Date) ([]types.Meal, error) {
	iter := a.storage.Meals(userID).Ref.
		Where("when_date", ">=", start.String()).
		Where("when_date", "<=", end.String()).
		OrderBy("when_date", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var out []types.Meal
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list meals: %w", err)
		}
		meal := storage.FirestoreToMeal(snap.Data())
		meal.ID = snap.Ref.ID
		meal.UserID = userID
		out = append(out, *meal)
	}
	return out, nil
}

func (a *FirestoreAdapter) SetMonthlyReport(ctx context.Context, report *types.MonthlyReport) error {
	return a.storage.MonthlyReports(report.UserID).Doc(report.Month).Set(ctx, report)
}

func (a *FirestoreAdapter) GetFCMTokens(ctx context.Context, userID string) ([]string, error) {
	snap, err := a.storage.User(userID).Get(ctx)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	raw, ok := snap.Data()["fcm_tokens"].([]interface{})
	if !ok {
		return nil, nil
	}
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok && s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens, nil
}

func (a *FirestoreAdapter) RemoveFCMTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	values := make([]interface{}, len(tokens))
	for i, t := range tokens {
		values[i] = t
	}
	_, err := a.storage.User(userID).Update(ctx, []firestore.Update{
		{Path: "fcm_tokens", Value: firestore.ArrayRemove(values...)},
	})
	return err
}

func (a *FirestoreAdapter) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	return a.storage.Executions().Doc(record.ExecutionID).Set(ctx, record)
}

func (a *FirestoreAdapter) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	// Use untyped update on connection
	return a.storage.Executions().Doc(id).Update(ctx, data)
}
