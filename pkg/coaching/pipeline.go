// Package coaching turns aggregated metrics into generated coaching text and
// pushes it to the user.
package coaching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/infrastructure/sentry"
	"github.com/fitline/server/pkg/types"
)

type Kind string

const (
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

const (
	weeklyDays   = 7
	monthlyDays  = 30
	monthlyMeals = 10
)

type DayFetcher interface {
	FetchToday(ctx context.Context, userID string) (types.DayMetrics, error)
	FetchDayRange(ctx context.Context, userID string, numDays int) ([]types.DayMetrics, error)
}

// Store is the persistence the pipeline writes through.
type Store interface {
	SaveDayMetrics(ctx context.Context, userID string, days []types.DayMetrics) (*types.SaveResult, error)
	ReconcileProfile(ctx context.Context, p *types.Profile) types.WarehouseResult
	MealsByDay(ctx context.Context, userID string, end civil.Date, n int) (map[civil.Date][]types.Meal, error)
	RecentMeals(ctx context.Context, userID string, end civil.Date, days, limit int) ([]types.Meal, error)
	MonthlyStats(ctx context.Context, userID string, end civil.Date, days int) (*types.MonthlyStats, error)
	SaveMonthlyReport(ctx context.Context, report *types.MonthlyReport) (types.WarehouseResult, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
}

// Result is what a coaching run reports back to its trigger.
type Result struct {
	Kind        Kind                   `json:"kind"`
	OK          bool                   `json:"ok"`
	DryRun      bool                   `json:"dry,omitempty"`
	Preview     string                 `json:"preview,omitempty"`
	Prompt      string                 `json:"prompt,omitempty"`
	Sent        types.NotifyResult     `json:"sent"`
	Saved       int                    `json:"saved_count,omitempty"`
	Metrics     *types.WarehouseResult `json:"bq_metrics,omitempty"`
	Profile     *types.WarehouseResult `json:"bq_profile,omitempty"`
	ProfileUsed bool                   `json:"profile_used,omitempty"`
	MealDays    int                    `json:"meal_days,omitempty"`
	Month       string                 `json:"month,omitempty"`
	Report      *types.WarehouseResult `json:"bq_report,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

type Pipeline struct {
	days      DayFetcher
	store     Store
	profiles  ProfileReader
	generator shared.TextGenerator
	notifier  shared.Notifier
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func NewPipeline(days DayFetcher, store Store, profiles ProfileReader, gen shared.TextGenerator, notifier shared.Notifier, loc *time.Location, opts ...Option) *Pipeline {
	if loc == nil {
		loc = time.UTC
	}
	p := &Pipeline{
		days:      days,
		store:     store,
		profiles:  profiles,
		generator: gen,
		notifier:  notifier,
		loc:       loc,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Daily fetches and saves today, then pushes a short coaching message.
func (p *Pipeline) Daily(ctx context.Context, userID string) (*Result, error) {
	res := &Result{Kind: KindDaily}

	day, err := p.days.FetchToday(ctx, userID)
	if err != nil {
		return p.fail(ctx, userID, res, fmt.Errorf("fetch today: %w", err))
	}
	saved, err := p.store.SaveDayMetrics(ctx, userID, []types.DayMetrics{day})
	if err != nil {
		return p.fail(ctx, userID, res, err)
	}
	res.Saved = saved.Saved
	res.Metrics = &saved.Warehouse

	text, err := p.generator.Generate(ctx, DailyPrompt(day))
	if err != nil {
		return p.fail(ctx, userID, res, fmt.Errorf("generate daily coaching: %w", err))
	}

	res.OK = true
	res.Preview = text
	res.Sent = p.notifier.Send(ctx, userID, "Daily coaching", text)
	p.logger.Info("Daily coaching completed", "user_id", userID, "delivered", res.Sent.Delivered)
	return res, nil
}

// Weekly saves the last seven days, mirrors the profile, reads the week's
// meals and, unless dryRun, generates and pushes a structured weekly review.
// Missing meals only thin the prompt. A generation failure is reported in
// the preview rather than failing the run.
func (p *Pipeline) Weekly(ctx context.Context, userID string, dryRun, showPrompt bool) (*Result, error) {
	res := &Result{Kind: KindWeekly, DryRun: dryRun}

	days, err := p.days.FetchDayRange(ctx, userID, weeklyDays)
	if err != nil {
		return p.fail(ctx, userID, res, fmt.Errorf("fetch week: %w", err))
	}
	saved, err := p.store.SaveDayMetrics(ctx, userID, days)
	if err != nil {
		return p.fail(ctx, userID, res, err)
	}
	res.Saved = saved.Saved
	res.Metrics = &saved.Warehouse

	profile, err := p.profiles.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return p.fail(ctx, userID, res, fmt.Errorf("load profile: %w", err))
	}
	if !profile.IsEmpty() {
		res.ProfileUsed = true
		wr := p.store.ReconcileProfile(ctx, profile)
		res.Profile = &wr
	}

	end := civil.DateOf(p.now().In(p.loc))
	if len(days) > 0 {
		end = days[len(days)-1].Date
	}
	meals, err := p.store.MealsByDay(ctx, userID, end, weeklyDays)
	if err != nil {
		p.logger.Warn("Meals unavailable for weekly prompt", "user_id", userID, "error", err)
	}
	res.MealDays = len(meals)

	prompt := WeeklyPrompt(days, meals, profile)
	p.logger.Debug("Weekly prompt built", "user_id", userID, "prompt", prompt)
	if showPrompt {
		res.Prompt = prompt
	}

	res.OK = true
	if dryRun {
		res.Preview = "(dry run) no generation call"
		res.Sent = types.NotifyResult{Reason: "dry"}
		return res, nil
	}

	text, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		p.logger.Error("Weekly generation failed", "user_id", userID, "error", err)
		sentry.CaptureException(err, userID, map[string]string{"coaching": string(KindWeekly)}, p.logger)
		text = fmt.Sprintf("(generation error) %v", err)
	}
	res.Preview = text
	res.Sent = p.notifier.Send(ctx, userID, "Weekly coaching", text)
	return res, nil
}

// Monthly reads the 30-day rollup from the warehouse, generates the
// month-in-review and stores it under the current month.
func (p *Pipeline) Monthly(ctx context.Context, userID string) (*Result, error) {
	now := p.now().In(p.loc)
	month := now.Format("2006-01")
	res := &Result{Kind: KindMonthly, Month: month}

	stats, err := p.store.MonthlyStats(ctx, userID, civil.DateOf(now), monthlyDays)
	if err != nil {
		return p.fail(ctx, userID, res, fmt.Errorf("monthly stats: %w", err))
	}

	meals, err := p.store.RecentMeals(ctx, userID, civil.DateOf(now), monthlyDays, monthlyMeals)
	if err != nil {
		p.logger.Warn("Meals unavailable for monthly prompt", "user_id", userID, "error", err)
	}

	text, err := p.generator.Generate(ctx, MonthlyPrompt(month, *stats, meals))
	if err != nil {
		return p.fail(ctx, userID, res, fmt.Errorf("generate monthly coaching: %w", err))
	}

	report := &types.MonthlyReport{
		UserID:    userID,
		Month:     month,
		Text:      text,
		Stats:     *stats,
		CreatedAt: p.now().UTC(),
	}
	wr, err := p.store.SaveMonthlyReport(ctx, report)
	if err != nil {
		return p.fail(ctx, userID, res, err)
	}

	res.OK = true
	res.Report = &wr
	res.Preview = truncate(text, 400)
	res.Sent = p.notifier.Send(ctx, userID, "Monthly review", month+" review is ready")
	return res, nil
}

// Run dispatches on kind.
func (p *Pipeline) Run(ctx context.Context, userID string, kind Kind, dryRun bool) (*Result, error) {
	switch kind {
	case KindDaily:
		return p.Daily(ctx, userID)
	case KindWeekly:
		return p.Weekly(ctx, userID, dryRun, false)
	case KindMonthly:
		return p.Monthly(ctx, userID)
	}
	return nil, fmt.Errorf("%w: coaching kind %q", shared.ErrInvalidInput, kind)
}

// fail reports err to the user and Sentry. Missing configuration is only logged.
func (p *Pipeline) fail(ctx context.Context, userID string, res *Result, err error) (*Result, error) {
	res.OK = false
	res.Error = err.Error()
	if errors.Is(err, shared.ErrConfigurationMissing) {
		p.logger.Warn("Coaching skipped", "user_id", userID, "kind", res.Kind, "error", err)
		return res, err
	}

	p.logger.Error("Coaching failed", "user_id", userID, "kind", res.Kind, "error", err)
	sentry.CaptureException(err, userID, map[string]string{"coaching": string(res.Kind)}, p.logger)
	res.Sent = p.notifier.Send(ctx, userID, "Coaching error", err.Error())
	return res, err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
