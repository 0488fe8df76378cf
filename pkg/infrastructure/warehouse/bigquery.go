// Package warehouse mirrors day metrics, body composition, profiles, meals
// and monthly reports into BigQuery.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/fitline/server/pkg/types"
)

type Tables struct {
	Daily    string
	Body     string
	Profiles string
	Meals    string
	Monthly  string
}

// BigQueryWarehouse implements shared.Warehouse.
type BigQueryWarehouse struct {
	Client   *bigquery.Client
	project  string
	dataset  string
	location string
	tables   Tables
	loc      *time.Location
	logger   *slog.Logger
}

func NewBigQueryWarehouse(client *bigquery.Client, project, dataset, location string, tables Tables, loc *time.Location, logger *slog.Logger) *BigQueryWarehouse {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BigQueryWarehouse{
		Client:   client,
		project:  project,
		dataset:  dataset,
		location: location,
		tables:   tables,
		loc:      loc,
		logger:   logger,
	}
}

func (w *BigQueryWarehouse) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", w.project, w.dataset, name)
}

func (w *BigQueryWarehouse) query(stmt statement) *bigquery.Query {
	q := w.Client.Query(stmt.sql)
	q.Parameters = stmt.params
	if w.location != "" {
		q.Location = w.location
	}
	return q
}

func (w *BigQueryWarehouse) exec(ctx context.Context, op string, stmt statement) error {
	start := time.Now()
	job, err := w.query(stmt).Run(ctx)
	if err != nil {
		return describe(op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return describe(op, err)
	}
	if err := status.Err(); err != nil {
		return describe(op, err)
	}
	w.logger.Debug("Warehouse statement done", "op", op, "job_id", job.ID(), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *BigQueryWarehouse) OverwriteDayMetrics(ctx context.Context, userID string, days []types.DayMetrics) error {
	if len(days) == 0 {
		return nil
	}
	return w.exec(ctx, "overwrite_day_metrics", overwriteDaysStatement(w.table(w.tables.Daily), userID, days))
}

func (w *BigQueryWarehouse) OverwriteBodyComposition(ctx context.Context, userID string, samples []types.BodyCompositionSample) error {
	if len(samples) == 0 {
		return nil
	}
	return w.exec(ctx, "overwrite_body_composition", overwriteBodyStatement(w.table(w.tables.Body), userID, samples, w.loc))
}

func (w *BigQueryWarehouse) MergeProfile(ctx context.Context, profile *types.Profile) error {
	return w.exec(ctx, "merge_profile", mergeProfileStatement(w.table(w.tables.Profiles), profile))
}

func (w *BigQueryWarehouse) DeleteProfile(ctx context.Context, userID string) error {
	return w.exec(ctx, "delete_profile", deleteProfileStatement(w.table(w.tables.Profiles), userID))
}

func (w *BigQueryWarehouse) InsertProfile(ctx context.Context, profile *types.Profile) error {
	return w.exec(ctx, "insert_profile", insertProfileStatement(w.table(w.tables.Profiles), profile))
}

// InsertMeal streams one row. The meal ID is the insert ID so a retried
// insert is deduplicated.
func (w *BigQueryWarehouse) InsertMeal(ctx context.Context, meal *types.Meal) error {
	inserter := w.Client.DatasetInProject(w.project, w.dataset).Table(w.tables.Meals).Inserter()
	saver := &bigquery.StructSaver{Struct: toMealRow(meal, time.Now()), InsertID: meal.ID}
	if err := inserter.Put(ctx, saver); err != nil {
		return describe("insert_meal", err)
	}
	return nil
}

type recentMealRow struct {
	WhenDate civil.Date           `bigquery:"when_date"`
	WhenAt   time.Time            `bigquery:"when_at"`
	Text     string               `bigquery:"text"`
	Kcal     bigquery.NullFloat64 `bigquery:"kcal"`
}

func (w *BigQueryWarehouse) RecentMeals(ctx context.Context, userID string, end civil.Date, days, limit int) ([]types.Meal, error) {
	if days < 1 {
		days = 30
	}
	if limit < 1 {
		limit = 10
	}
	it, err := w.query(recentMealsStatement(w.table(w.tables.Meals), userID, end, days, limit)).Read(ctx)
	if err != nil {
		return nil, describe("recent_meals", err)
	}
	var out []types.Meal
	for {
		var row recentMealRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, describe("recent_meals", err)
		}
		meal := types.Meal{UserID: userID, WhenDate: row.WhenDate, When: row.WhenAt, Text: row.Text}
		if row.Kcal.Valid {
			kcal := row.Kcal.Float64
			meal.Kcal = &kcal
		}
		out = append(out, meal)
	}
	return out, nil
}

type statsRow struct {
	Days        int64              `bigquery:"days"`
	AvgSteps    bigquery.NullInt64 `bigquery:"avg_steps"`
	MinSteps    bigquery.NullInt64 `bigquery:"min_steps"`
	MaxSteps    bigquery.NullInt64 `bigquery:"max_steps"`
	AvgCalories bigquery.NullInt64 `bigquery:"avg_cal"`
	MinCalories bigquery.NullInt64 `bigquery:"min_cal"`
	MaxCalories bigquery.NullInt64 `bigquery:"max_cal"`
}

func (r statsRow) toStats() *types.MonthlyStats {
	return &types.MonthlyStats{
		Days:        int(r.Days),
		AvgSteps:    int(r.AvgSteps.Int64),
		MinSteps:    int(r.MinSteps.Int64),
		MaxSteps:    int(r.MaxSteps.Int64),
		AvgCalories: int(r.AvgCalories.Int64),
		MinCalories: int(r.MinCalories.Int64),
		MaxCalories: int(r.MaxCalories.Int64),
	}
}

// MonthlyActivityStats returns zeroed stats when the window has no rows.
func (w *BigQueryWarehouse) MonthlyActivityStats(ctx context.Context, userID string, end civil.Date, days int) (*types.MonthlyStats, error) {
	if days < 1 {
		days = 30
	}
	it, err := w.query(monthlyStatsStatement(w.table(w.tables.Daily), userID, end, days)).Read(ctx)
	if err != nil {
		return nil, describe("monthly_activity_stats", err)
	}
	var row statsRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return &types.MonthlyStats{}, nil
	}
	if err != nil {
		return nil, describe("monthly_activity_stats", err)
	}
	return row.toStats(), nil
}

func (w *BigQueryWarehouse) InsertMonthlyReport(ctx context.Context, report *types.MonthlyReport) error {
	return w.exec(ctx, "insert_monthly_report", insertMonthlyReportStatement(w.table(w.tables.Monthly), report))
}

func (w *BigQueryWarehouse) Close() error {
	return w.Client.Close()
}

// describe keeps the HTTP status and reason of API errors in the message.
func describe(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := ""
		if len(gerr.Errors) > 0 {
			reason = gerr.Errors[0].Reason
		}
		return fmt.Errorf("bigquery %s: status %d %s: %w", op, gerr.Code, reason, err)
	}
	return fmt.Errorf("bigquery %s: %w", op, err)
}
