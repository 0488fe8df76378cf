// Package metrics turns upstream provider responses into canonical per-day
// records for a window of calendar days.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/integrations/fitbit"
	"github.com/fitline/server/pkg/integrations/healthplanet"
	"github.com/fitline/server/pkg/types"
)

const defaultSpO2Concurrency = 4

// TokenSource hands out access tokens. Implemented by oauth.Manager.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, provider types.Provider, userID string) (string, error)
	ForceRefresh(ctx context.Context, provider types.Provider, userID, staleAccessToken string) (string, error)
}

type FitbitAPI interface {
	Steps(ctx context.Context, accessToken string, start, end civil.Date) (*fitbit.SeriesResponse, error)
	Calories(ctx context.Context, accessToken string, start, end civil.Date) (*fitbit.SeriesResponse, error)
	Sleep(ctx context.Context, accessToken string, start, end civil.Date) (*fitbit.SleepResponse, error)
	SpO2(ctx context.Context, accessToken string, day civil.Date) (*fitbit.SpO2Response, error)
}

type HealthPlanetAPI interface {
	Innerscan(ctx context.Context, accessToken string, from, to time.Time, tags ...string) (*healthplanet.InnerscanResponse, error)
}

// Archiver stores raw upstream payloads. Failures are its own concern.
type Archiver interface {
	Archive(ctx context.Context, userID string, provider types.Provider, resource string, day civil.Date, payload []byte)
}

// Aggregator fetches and merges provider data into DayMetrics.
type Aggregator struct {
	tokens       TokenSource
	fitbit       FitbitAPI
	healthPlanet HealthPlanetAPI
	archiver     Archiver
	loc          *time.Location
	now          func() time.Time
	logger       *slog.Logger

	SpO2Concurrency int
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

func WithArchiver(ar Archiver) Option { return func(a *Aggregator) { a.archiver = ar } }

func WithLogger(l *slog.Logger) Option { return func(a *Aggregator) { a.logger = l } }

func NewAggregator(tokens TokenSource, fb FitbitAPI, hp HealthPlanetAPI, loc *time.Location, opts ...Option) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	a := &Aggregator{
		tokens:          tokens,
		fitbit:          fb,
		healthPlanet:    hp,
		loc:             loc,
		now:             time.Now,
		logger:          slog.Default(),
		SpO2Concurrency: defaultSpO2Concurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Today is the current calendar day in the configured timezone.
func (a *Aggregator) Today() civil.Date {
	return civil.DateOf(a.now().In(a.loc))
}

// Window returns the numDays calendar days ending today, oldest first.
func (a *Aggregator) Window(numDays int) []civil.Date {
	end := a.Today()
	dates := make([]civil.Date, numDays)
	for i := range dates {
		dates[i] = end.AddDays(i - numDays + 1)
	}
	return dates
}

// FetchToday is FetchDayRange for a single day.
func (a *Aggregator) FetchToday(ctx context.Context, userID string) (types.DayMetrics, error) {
	days, err := a.FetchDayRange(ctx, userID, 1)
	if err != nil {
		return types.DayMetrics{}, err
	}
	return days[0], nil
}

// FetchDayRange returns exactly numDays records, oldest first, ending today.
// Only a missing or unrefreshable credential fails the call; every other
// upstream failure degrades the affected sub-metric.
func (a *Aggregator) FetchDayRange(ctx context.Context, userID string, numDays int) ([]types.DayMetrics, error) {
	if numDays < 1 {
		return nil, fmt.Errorf("%w: numDays must be at least 1, got %d", shared.ErrInvalidInput, numDays)
	}
	dates := a.Window(numDays)
	start, end := dates[0], dates[len(dates)-1]
	log := a.logger.With("user_id", userID, "start", start.String(), "end", end.String())

	token, err := a.tokens.GetValidAccessToken(ctx, types.ProviderFitbit, userID)
	if err != nil {
		return nil, err
	}
	tok := &tokenHolder{provider: types.ProviderFitbit, userID: userID, value: token}

	var (
		steps    map[civil.Date]int
		calories map[civil.Date]int
		sleep    map[civil.Date]*types.SleepSummary
		spo2     = make([]*float64, len(dates))
	)

	// Tasks never return errors so one failure cannot cancel its siblings.
	var g errgroup.Group
	g.Go(func() error {
		res, err := withRetry(ctx, a.tokens, tok, func(ctx context.Context, t string) (*fitbit.SeriesResponse, error) {
			return a.fitbit.Steps(ctx, t, start, end)
		})
		if err != nil {
			log.Error("Steps unavailable for whole window, defaulting to 0", "days", len(dates), "error", err)
			return nil
		}
		steps = seriesByDay(res.Points)
		a.archive(ctx, userID, types.ProviderFitbit, "steps", end, res.Raw)
		return nil
	})
	g.Go(func() error {
		res, err := withRetry(ctx, a.tokens, tok, func(ctx context.Context, t string) (*fitbit.SeriesResponse, error) {
			return a.fitbit.Calories(ctx, t, start, end)
		})
		if err != nil {
			log.Error("Calories unavailable for whole window, defaulting to 0", "days", len(dates), "error", err)
			return nil
		}
		calories = seriesByDay(res.Points)
		a.archive(ctx, userID, types.ProviderFitbit, "calories", end, res.Raw)
		return nil
	})
	g.Go(func() error {
		res, err := withRetry(ctx, a.tokens, tok, func(ctx context.Context, t string) (*fitbit.SleepResponse, error) {
			return a.fitbit.Sleep(ctx, t, start, end)
		})
		if err != nil {
			log.Warn("Sleep unavailable", "error", err)
			return nil
		}
		sleep = SleepByDay(res.Sleep)
		a.archive(ctx, userID, types.ProviderFitbit, "sleep", end, res.Raw)
		return nil
	})
	g.Go(func() error {
		var days errgroup.Group
		days.SetLimit(a.spo2Limit())
		for i, d := range dates {
			days.Go(func() error {
				res, err := withRetry(ctx, a.tokens, tok, func(ctx context.Context, t string) (*fitbit.SpO2Response, error) {
					return a.fitbit.SpO2(ctx, t, d)
				})
				if err != nil {
					log.Warn("SpO2 unavailable", "date", d.String(), "error", err)
					return nil
				}
				spo2[i] = res.Average()
				return nil
			})
		}
		return days.Wait()
	})
	_ = g.Wait()

	out := make([]types.DayMetrics, len(dates))
	for i, d := range dates {
		out[i] = types.DayMetrics{
			Date:          d,
			StepsTotal:    steps[d],
			CaloriesTotal: calories[d],
			Sleep:         sleep[d],
			SpO2Average:   spo2[i],
		}
	}
	log.Info("Aggregated day range", "days", len(out))
	return out, nil
}

// BodyComposition is the result of a HealthPlanet window fetch.
type BodyComposition struct {
	Samples []types.BodyCompositionSample
	Raw     []byte
}

// FetchBodyComposition returns the samples measured in the numDays window
// ending today, ascending by measurement time.
func (a *Aggregator) FetchBodyComposition(ctx context.Context, userID string, numDays int) (*BodyComposition, error) {
	if numDays < 1 {
		return nil, fmt.Errorf("%w: numDays must be at least 1, got %d", shared.ErrInvalidInput, numDays)
	}
	if a.healthPlanet == nil {
		return nil, fmt.Errorf("%w: healthplanet client", shared.ErrConfigurationMissing)
	}
	dates := a.Window(numDays)
	start, end := dates[0], dates[len(dates)-1]
	from := start.In(a.loc)
	to := end.In(a.loc).Add(24*time.Hour - time.Second)

	token, err := a.tokens.GetValidAccessToken(ctx, types.ProviderHealthPlanet, userID)
	if err != nil {
		return nil, err
	}
	tok := &tokenHolder{provider: types.ProviderHealthPlanet, userID: userID, value: token}

	res, err := withRetry(ctx, a.tokens, tok, func(ctx context.Context, t string) (*healthplanet.InnerscanResponse, error) {
		return a.healthPlanet.Innerscan(ctx, t, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch innerscan: %w", err)
	}
	a.archive(ctx, userID, types.ProviderHealthPlanet, "innerscan", end, res.Raw)

	return &BodyComposition{Samples: res.Samples(userID, a.loc), Raw: res.Raw}, nil
}

func (a *Aggregator) spo2Limit() int {
	if a.SpO2Concurrency < 1 {
		return 1
	}
	return a.SpO2Concurrency
}

func (a *Aggregator) archive(ctx context.Context, userID string, provider types.Provider, resource string, day civil.Date, payload []byte) {
	if a.archiver == nil || len(payload) == 0 {
		return
	}
	a.archiver.Archive(ctx, userID, provider, resource, day, payload)
}

// tokenHolder shares the most recent access token between concurrent sub-fetches.
type tokenHolder struct {
	provider types.Provider
	userID   string

	mu    sync.Mutex
	value string
}

func (h *tokenHolder) get() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

func (h *tokenHolder) set(v string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = v
}

// withRetry runs fn once and, on an Unauthorized result only, forces one
// token refresh and runs fn exactly once more.
func withRetry[T any](ctx context.Context, tokens TokenSource, tok *tokenHolder, fn func(context.Context, string) (T, error)) (T, error) {
	stale := tok.get()
	res, err := fn(ctx, stale)
	if err == nil || !errors.Is(err, shared.ErrUnauthorized) {
		return res, err
	}

	fresh, rerr := tokens.ForceRefresh(ctx, tok.provider, tok.userID, stale)
	if rerr != nil {
		var zero T
		return zero, fmt.Errorf("%w; refresh after unauthorized: %v", err, rerr)
	}
	tok.set(fresh)
	return fn(ctx, fresh)
}
