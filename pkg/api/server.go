// Package api is the HTTP surface: OAuth connect callbacks, a token-gated
// JSON API over the aggregator, persistence and coaching.
package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/coaching"
	"github.com/fitline/server/pkg/domain/metrics"
	"github.com/fitline/server/pkg/types"
)

// TokenHeader carries the pre-shared API token.
const TokenHeader = "X-Api-Token"

type Tokens interface {
	AuthCodeURL(provider types.Provider, state string) (string, error)
	Connect(ctx context.Context, provider types.Provider, userID, code string) (*types.Credential, error)
	Credential(ctx context.Context, provider types.Provider, userID string) (*types.Credential, error)
}

type Metrics interface {
	FetchToday(ctx context.Context, userID string) (types.DayMetrics, error)
	FetchDayRange(ctx context.Context, userID string, numDays int) ([]types.DayMetrics, error)
	FetchBodyComposition(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error)
}

type Persistence interface {
	SaveDayMetrics(ctx context.Context, userID string, days []types.DayMetrics) (*types.SaveResult, error)
	SaveRecentDays(ctx context.Context, userID string, n int) (*types.SaveResult, error)
	IngestBodyComposition(ctx context.Context, userID string, n int) ([]types.BodyCompositionSample, types.WarehouseResult, error)
	UpsertProfile(ctx context.Context, userID string, update types.ProfileFields) (*types.ProfileResult, error)
}

type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
}

type Weight interface {
	CurrentWeight(ctx context.Context, userID string, days int) (*types.WeightReading, error)
}

type Meals interface {
	SaveMeal(ctx context.Context, userID string, in types.MealInput) (*types.MealResult, error)
	MealsLastDays(ctx context.Context, userID string, n int) (map[civil.Date][]types.Meal, error)
}

type Coaching interface {
	Daily(ctx context.Context, userID string) (*coaching.Result, error)
	Weekly(ctx context.Context, userID string, dryRun, showPrompt bool) (*coaching.Result, error)
	Monthly(ctx context.Context, userID string) (*coaching.Result, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Tokens      Tokens
	Metrics     Metrics
	Persistence Persistence
	Profiles    Profiles
	Weight      Weight
	Meals       Meals
	Images      shared.ImageDescriber
	Coaching    Coaching
}

type Server struct {
	deps          Deps
	apiToken      string
	defaultUserID string
	logger        *slog.Logger
}

// NewServer builds the HTTP surface. An empty apiToken disables the gate.
func NewServer(deps Deps, apiToken, defaultUserID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, apiToken: apiToken, defaultUserID: defaultUserID, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	// Browser redirects cannot carry the API token.
	r.Get("/{provider}/login", s.login)
	r.Get("/{provider}/auth", s.callback)
	r.Post("/{provider}/auth", s.callback)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/fitbit/today", s.today)
		r.Get("/fitbit/last7", s.last7)
		r.Post("/fitbit/save/today", s.saveToday)
		r.Post("/fitbit/save/last7", s.saveLast7)

		r.Get("/healthplanet/innerscan", s.innerscan)
		r.Post("/healthplanet/innerscan/save", s.saveInnerscan)
		r.Get("/weight/current", s.currentWeight)

		r.Get("/ui/profile", s.getProfile)
		r.Post("/ui/profile", s.postProfile)
		r.Post("/ui/meal", s.postMeal)
		r.Post("/ui/meal_image", s.postMealImage)
		r.Get("/meals/last7", s.mealsLast7)

		r.Post("/coach/daily", s.coachDaily)
		r.Get("/coach/weekly", s.coachWeekly)
		r.Post("/coach/monthly", s.coachMonthly)

		r.Get("/tokens/{provider}", s.tokenStatus)
	})
	return r
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(TokenHeader)), []byte(s.apiToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "invalid api token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
