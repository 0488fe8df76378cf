package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5/middleware"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, shared.ErrRefreshFailed), errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, shared.ErrUnavailable), errors.Is(err, shared.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "status", status, "request_id", middleware.GetReqID(r.Context()), "error", err)
	} else {
		s.logger.Warn("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": err.Error()})
}

type dayView struct {
	Date          string              `json:"date"`
	StepsTotal    int                 `json:"steps_total"`
	Sleep         *types.SleepSummary `json:"sleep"`
	SleepLine     string              `json:"sleep_line"`
	SpO2Average   *float64            `json:"spo2_average"`
	SpO2Line      string              `json:"spo2_line"`
	CaloriesTotal int                 `json:"calories_total"`
}

func dayJSON(d types.DayMetrics) dayView {
	return dayView{
		Date:          d.Date.String(),
		StepsTotal:    d.StepsTotal,
		Sleep:         d.Sleep,
		SleepLine:     d.SleepLine(),
		SpO2Average:   d.SpO2Average,
		SpO2Line:      d.SpO2Line(),
		CaloriesTotal: d.CaloriesTotal,
	}
}

func daysJSON(days []types.DayMetrics) []dayView {
	out := make([]dayView, len(days))
	for i, d := range days {
		out[i] = dayJSON(d)
	}
	return out
}

type sampleView struct {
	MeasuredAt time.Time `json:"measured_at"`
	WeightKg   *float64  `json:"weight_kg"`
	BodyFatPct *float64  `json:"body_fat_pct"`
	SourceTag  string    `json:"source_tag"`
}

func samplesJSON(samples []types.BodyCompositionSample) []sampleView {
	out := make([]sampleView, len(samples))
	for i, s := range samples {
		out[i] = sampleView{MeasuredAt: s.MeasuredAt, WeightKg: s.WeightKg, BodyFatPct: s.BodyFatPct, SourceTag: s.SourceTag}
	}
	return out
}

type mealView struct {
	ID       string    `json:"id"`
	When     time.Time `json:"when"`
	WhenDate string    `json:"when_date"`
	Text     string    `json:"text"`
	Kcal     *float64  `json:"kcal"`
	Source   string    `json:"source"`
}

func mealJSON(m types.Meal) mealView {
	return mealView{
		ID:       m.ID,
		When:     m.When,
		WhenDate: m.WhenDate.String(),
		Text:     m.Text,
		Kcal:     m.Kcal,
		Source:   string(m.Source),
	}
}

func mealsByDayJSON(byDay map[civil.Date][]types.Meal) map[string][]mealView {
	out := make(map[string][]mealView, len(byDay))
	for d, meals := range byDay {
		views := make([]mealView, len(meals))
		for i, m := range meals {
			views[i] = mealJSON(m)
		}
		out[d.String()] = views
	}
	return out
}
