// Package persistence writes aggregated records to the document store and
// mirrors them into the warehouse.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/domain/metrics"
	infrapubsub "github.com/fitline/server/pkg/infrastructure/pubsub"
	"github.com/fitline/server/pkg/types"
)

// DefaultRecentDays is the window SaveRecentDays uses when none is given.
const DefaultRecentDays = 7

// DefaultMealLimit caps RecentMeals when no limit is given.
const DefaultMealLimit = 10

type DayFetcher interface {
	FetchDayRange(ctx context.Context, userID string, numDays int) ([]types.DayMetrics, error)
}

type BodyCompositionFetcher interface {
	FetchBodyComposition(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error)
}

// Coordinator owns every write path. The primary store is authoritative and
// its failures are returned; warehouse failures are reported in results.
type Coordinator struct {
	db        shared.Database
	warehouse shared.Warehouse
	publisher shared.Publisher
	days      DayFetcher
	body      BodyCompositionFetcher
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Coordinator)

// WithWarehouse enables the warehouse mirror. Without it every warehouse
// result carries ReasonWarehouseDisabled.
func WithWarehouse(w shared.Warehouse) Option { return func(c *Coordinator) { c.warehouse = w } }

func WithPublisher(p shared.Publisher) Option { return func(c *Coordinator) { c.publisher = p } }

func WithFetchers(days DayFetcher, body BodyCompositionFetcher) Option {
	return func(c *Coordinator) {
		c.days = days
		c.body = body
	}
}

func WithLogger(l *slog.Logger) Option { return func(c *Coordinator) { c.logger = l } }

func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

// WithLocation sets the zone meal dates are computed in. Defaults to UTC.
func WithLocation(loc *time.Location) Option { return func(c *Coordinator) { c.loc = loc } }

func NewCoordinator(db shared.Database, opts ...Option) *Coordinator {
	c := &Coordinator{db: db, loc: time.UTC, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SaveDayMetrics replaces each day's document whole, then overwrites the
// warehouse rows for exactly those dates.
func (c *Coordinator) SaveDayMetrics(ctx context.Context, userID string, days []types.DayMetrics) (*types.SaveResult, error) {
	for _, d := range days {
		if err := c.db.SetDayMetrics(ctx, userID, d); err != nil {
			return nil, fmt.Errorf("save day metrics %s: %w", d.Date, err)
		}
	}

	wr := c.singleStage(ctx, "overwrite_day_metrics", func(ctx context.Context) error {
		return c.warehouse.OverwriteDayMetrics(ctx, userID, days)
	})
	c.logger.Info("Saved day metrics", "user_id", userID, "days", len(days), "warehouse_ok", wr.OK, "reason", wr.Reason)

	dates := make([]string, len(days))
	for i, d := range days {
		dates[i] = d.Date.String()
	}
	c.publish(ctx, infrapubsub.MetricsIngested{UserID: userID, Kind: "day_metrics", Dates: dates, Degraded: wr.Degraded})

	return &types.SaveResult{Saved: len(days), Days: days, Warehouse: wr}, nil
}

// SaveRecentDays aggregates the last n days (DefaultRecentDays when n < 1)
// and persists them.
func (c *Coordinator) SaveRecentDays(ctx context.Context, userID string, n int) (*types.SaveResult, error) {
	if c.days == nil {
		return nil, fmt.Errorf("%w: no day fetcher", shared.ErrConfigurationMissing)
	}
	if n < 1 {
		n = DefaultRecentDays
	}
	days, err := c.days.FetchDayRange(ctx, userID, n)
	if err != nil {
		return nil, err
	}
	return c.SaveDayMetrics(ctx, userID, days)
}

// SaveBodyComposition overwrites the warehouse samples for the days present.
// Body composition has no primary-store copy.
func (c *Coordinator) SaveBodyComposition(ctx context.Context, userID string, samples []types.BodyCompositionSample) types.WarehouseResult {
	wr := c.singleStage(ctx, "overwrite_body_composition", func(ctx context.Context) error {
		return c.warehouse.OverwriteBodyComposition(ctx, userID, samples)
	})
	c.publish(ctx, infrapubsub.MetricsIngested{UserID: userID, Kind: "body_composition", Samples: len(samples), Degraded: wr.Degraded})
	return wr
}

// IngestBodyComposition fetches the last n days from HealthPlanet and saves them.
func (c *Coordinator) IngestBodyComposition(ctx context.Context, userID string, n int) ([]types.BodyCompositionSample, types.WarehouseResult, error) {
	if c.body == nil {
		return nil, types.WarehouseResult{}, fmt.Errorf("%w: no body composition fetcher", shared.ErrConfigurationMissing)
	}
	if n < 1 {
		n = DefaultRecentDays
	}
	bc, err := c.body.FetchBodyComposition(ctx, userID, n)
	if err != nil {
		return nil, types.WarehouseResult{}, err
	}
	return bc.Samples, c.SaveBodyComposition(ctx, userID, bc.Samples), nil
}

// UpsertProfile validates and merges a partial update into the stored
// profile, then reconciles the warehouse copy.
func (c *Coordinator) UpsertProfile(ctx context.Context, userID string, update types.ProfileFields) (*types.ProfileResult, error) {
	update.FillFromNotes()
	if err := update.Validate(); err != nil {
		return nil, err
	}

	merged, err := c.db.MergeProfile(ctx, userID, update, c.now())
	if err != nil {
		return nil, fmt.Errorf("merge profile: %w", err)
	}

	wr := c.ReconcileProfile(ctx, merged)
	c.logger.Info("Profile upserted", "user_id", userID, "warehouse_ok", wr.OK, "degraded", wr.Degraded, "reason", wr.Reason)
	return &types.ProfileResult{Profile: merged, Warehouse: wr}, nil
}

// ReconcileProfile mirrors p into the warehouse: MERGE, and only if that
// fails, DELETE followed by INSERT. Readers may briefly see no row between
// the two fallback statements.
func (c *Coordinator) ReconcileProfile(ctx context.Context, p *types.Profile) types.WarehouseResult {
	if c.warehouse == nil {
		return types.WarehouseResult{Reason: types.ReasonWarehouseDisabled}
	}

	mergeErr := c.warehouse.MergeProfile(ctx, p)
	stages := []types.StageResult{stage("merge", mergeErr)}
	if mergeErr == nil {
		return types.WarehouseResult{OK: true, Stages: stages}
	}
	c.logger.Warn("Warehouse profile MERGE failed, falling back to delete+insert", "user_id", p.UserID, "error", mergeErr)

	delErr := c.warehouse.DeleteProfile(ctx, p.UserID)
	stages = append(stages, stage("delete", delErr))
	if delErr != nil {
		c.logger.Error("Warehouse profile fallback failed", "user_id", p.UserID, "stage", "delete", "error", delErr)
		return types.WarehouseResult{Degraded: true, Reason: types.ReasonFallbackFailed, Stages: stages}
	}

	insErr := c.warehouse.InsertProfile(ctx, p)
	stages = append(stages, stage("insert", insErr))
	if insErr != nil {
		c.logger.Error("Warehouse profile fallback failed", "user_id", p.UserID, "stage", "insert", "error", insErr)
		return types.WarehouseResult{Degraded: true, Reason: types.ReasonFallbackFailed, Stages: stages}
	}
	return types.WarehouseResult{OK: true, Degraded: true, Reason: types.ReasonMergeFallback, Stages: stages}
}

// SaveMonthlyReport stores the report in the primary store and mirrors it.
func (c *Coordinator) SaveMonthlyReport(ctx context.Context, report *types.MonthlyReport) (types.WarehouseResult, error) {
	if err := c.db.SetMonthlyReport(ctx, report); err != nil {
		return types.WarehouseResult{}, fmt.Errorf("save monthly report: %w", err)
	}
	return c.singleStage(ctx, "insert_monthly_report", func(ctx context.Context) error {
		return c.warehouse.InsertMonthlyReport(ctx, report)
	}), nil
}

// SaveMeal stores a meal in the primary store and streams it to the
// warehouse. The meal date is taken in the configured zone.
func (c *Coordinator) SaveMeal(ctx context.Context, userID string, in types.MealInput) (*types.MealResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := c.now()
	when := now
	if in.When != "" {
		t, err := types.ParseMealTime(in.When, c.loc)
		if err != nil {
			return nil, err
		}
		when = t
	}
	source := in.Source
	if source == "" {
		source = types.MealSourceText
	}

	meal := &types.Meal{
		ID:        uuid.NewString(),
		UserID:    userID,
		When:      when,
		WhenDate:  civil.DateOf(when.In(c.loc)),
		Text:      in.Text,
		Kcal:      in.Kcal,
		Source:    source,
		FileName:  in.FileName,
		MIME:      in.MIME,
		CreatedAt: now.UTC(),
	}
	if err := c.db.AddMeal(ctx, meal); err != nil {
		return nil, fmt.Errorf("save meal: %w", err)
	}

	wr := c.singleStage(ctx, "insert_meal", func(ctx context.Context) error {
		return c.warehouse.InsertMeal(ctx, meal)
	})
	c.publish(ctx, infrapubsub.MetricsIngested{UserID: userID, Kind: "meal", Dates: []string{meal.WhenDate.String()}, Degraded: wr.Degraded})
	c.logger.Info("Meal saved", "user_id", userID, "source", source, "when_date", meal.WhenDate.String())
	return &types.MealResult{Meal: meal, Warehouse: wr}, nil
}

// MealsByDay reads the n days ending at end from the primary store.
func (c *Coordinator) MealsByDay(ctx context.Context, userID string, end civil.Date, n int) (map[civil.Date][]types.Meal, error) {
	if n < 1 {
		n = DefaultRecentDays
	}
	meals, err := c.db.MealsBetween(ctx, userID, end.AddDays(-(n - 1)), end)
	if err != nil {
		return nil, err
	}
	return types.GroupMealsByDay(meals), nil
}

// MealsLastDays reads the n days ending today in the configured zone.
func (c *Coordinator) MealsLastDays(ctx context.Context, userID string, n int) (map[civil.Date][]types.Meal, error) {
	return c.MealsByDay(ctx, userID, civil.DateOf(c.now().In(c.loc)), n)
}

// RecentMeals reads up to limit meals of the window ending at end from the
// warehouse, newest first.
func (c *Coordinator) RecentMeals(ctx context.Context, userID string, end civil.Date, days, limit int) ([]types.Meal, error) {
	if c.warehouse == nil {
		return nil, fmt.Errorf("%w: warehouse disabled", shared.ErrConfigurationMissing)
	}
	if limit < 1 {
		limit = DefaultMealLimit
	}
	return c.warehouse.RecentMeals(ctx, userID, end, days, limit)
}

// MonthlyStats reads the activity rollup for the window ending at end.
func (c *Coordinator) MonthlyStats(ctx context.Context, userID string, end civil.Date, days int) (*types.MonthlyStats, error) {
	if c.warehouse == nil {
		return nil, fmt.Errorf("%w: warehouse disabled", shared.ErrConfigurationMissing)
	}
	return c.warehouse.MonthlyActivityStats(ctx, userID, end, days)
}

func (c *Coordinator) singleStage(ctx context.Context, name string, fn func(context.Context) error) types.WarehouseResult {
	if c.warehouse == nil {
		return types.WarehouseResult{Reason: types.ReasonWarehouseDisabled}
	}
	err := fn(ctx)
	if err != nil {
		c.logger.Warn("Warehouse write failed", "stage", name, "error", err)
		return types.WarehouseResult{Degraded: true, Reason: types.ReasonWarehouseFailed, Stages: []types.StageResult{stage(name, err)}}
	}
	return types.WarehouseResult{OK: true, Stages: []types.StageResult{stage(name, nil)}}
}

func (c *Coordinator) publish(ctx context.Context, payload infrapubsub.MetricsIngested) {
	if c.publisher == nil {
		return
	}
	e, err := infrapubsub.NewCloudEvent(infrapubsub.EventSource, infrapubsub.EventTypeMetricsIngested, payload)
	if err != nil {
		c.logger.Warn("Failed to build ingest event", "error", err)
		return
	}
	if _, err := c.publisher.PublishCloudEvent(ctx, shared.TopicMetricsIngested, e); err != nil {
		c.logger.Warn("Failed to publish ingest event", "user_id", payload.UserID, "error", err)
	}
}

func stage(name string, err error) types.StageResult {
	if err != nil {
		return types.StageResult{Stage: name, Error: err.Error()}
	}
	return types.StageResult{Stage: name, OK: true}
}

// DegradedError turns a warehouse outcome into an ErrPersistenceDegraded
// error, or nil when the mirror succeeded cleanly or is disabled.
func DegradedError(wr types.WarehouseResult) error {
	if wr.Reason == types.ReasonWarehouseDisabled || (wr.OK && !wr.Degraded) {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrPersistenceDegraded, wr.Reason)
}
