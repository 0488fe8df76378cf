package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/types"
)

func (s *Server) userID(r *http.Request) string {
	if u := r.URL.Query().Get("user_id"); u != "" {
		return u
	}
	return s.defaultUserID
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", shared.ErrInvalidInput, name)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

func providerParam(r *http.Request) (types.Provider, error) {
	p := types.Provider(chi.URLParam(r, "provider"))
	switch p {
	case types.ProviderFitbit, types.ProviderHealthPlanet:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown provider %q", shared.ErrNotFound, p)
}

// --- OAuth ---

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.deps.Tokens.AuthCodeURL(provider, s.userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// callback exchanges the code. HealthPlanet users paste the code into a form,
// so the code may arrive as a query or form value.
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing code", shared.ErrInvalidInput))
		return
	}
	userID := r.FormValue("state")
	if userID == "" {
		userID = s.defaultUserID
	}

	cred, err := s.deps.Tokens.Connect(r.Context(), provider, userID, code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("Provider connected", "provider", provider, "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"provider":   provider,
		"expires_at": cred.ExpiresAt,
		"scope":      cred.Scope,
	})
}

func (s *Server) tokenStatus(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cred, err := s.deps.Tokens.Credential(r.Context(), provider, s.userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider":          provider,
		"connected":         true,
		"expires_at":        cred.ExpiresAt,
		"has_refresh_token": cred.RefreshToken != "",
		"updated_at":        cred.UpdatedAt,
	})
}

// --- Metrics ---

func (s *Server) today(w http.ResponseWriter, r *http.Request) {
	day, err := s.deps.Metrics.FetchToday(r.Context(), s.userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dayJSON(day))
}

func (s *Server) last7(w http.ResponseWriter, r *http.Request) {
	days, err := s.deps.Metrics.FetchDayRange(r.Context(), s.userID(r), 7)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":    daysJSON(days),
		"summary": types.Summarize(days),
	})
}

func (s *Server) saveToday(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	day, err := s.deps.Metrics.FetchToday(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Persistence.SaveDayMetrics(r.Context(), userID, []types.DayMetrics{day})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "saved": dayJSON(day), "warehouse": res.Warehouse})
}

func (s *Server) saveLast7(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Persistence.SaveRecentDays(r.Context(), s.userID(r), 7)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "saved_count": res.Saved, "warehouse": res.Warehouse})
}

func (s *Server) innerscan(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 7)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bc, err := s.deps.Metrics.FetchBodyComposition(r.Context(), s.userID(r), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(bc.Samples), "samples": samplesJSON(bc.Samples)})
}

func (s *Server) saveInnerscan(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 7)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	samples, wr, err := s.deps.Persistence.IngestBodyComposition(r.Context(), s.userID(r), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "count": len(samples), "warehouse": wr})
}

func (s *Server) currentWeight(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reading, err := s.deps.Weight.CurrentWeight(r.Context(), s.userID(r), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// --- Profile ---

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.GetProfile(r.Context(), s.userID(r))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}
	if p.IsEmpty() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "profile": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "profile": p})
}

func (s *Server) postProfile(w http.ResponseWriter, r *http.Request) {
	var update types.ProfileFields
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	res, err := s.deps.Persistence.UpsertProfile(r.Context(), s.userID(r), update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "profile": res.Profile, "warehouse": res.Warehouse})
}

// --- Meals ---

// maxMealImageBytes bounds meal photo uploads.
const maxMealImageBytes = 10 << 20

func (s *Server) postMeal(w http.ResponseWriter, r *http.Request) {
	var in types.MealInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	in.Source = types.MealSourceText
	res, err := s.deps.Meals.SaveMeal(r.Context(), s.userID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "meal": mealJSON(*res.Meal), "warehouse": res.Warehouse})
}

// postMealImage describes an uploaded photo and logs the description as a
// meal. With dry=true it only reports what was received.
func (s *Server) postMealImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMealImageBytes)
	if err := r.ParseMultipartForm(maxMealImageBytes); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: file: %v", shared.ErrInvalidInput, err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: read file: %v", shared.ErrInvalidInput, err))
		return
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}

	if boolParam(r, "dry") {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":        true,
			"stage":     "received",
			"file_name": header.Filename,
			"size":      len(data),
			"mime":      mime,
		})
		return
	}

	if s.deps.Images == nil {
		s.writeError(w, r, fmt.Errorf("%w: image description disabled", shared.ErrConfigurationMissing))
		return
	}
	text, err := s.deps.Images.DescribeImage(r.Context(), mime, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Meals.SaveMeal(r.Context(), s.userID(r), types.MealInput{
		When:     r.FormValue("when"),
		Text:     text,
		Source:   types.MealSourceImage,
		FileName: header.Filename,
		MIME:     mime,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"preview":   text,
		"meal":      mealJSON(*res.Meal),
		"warehouse": res.Warehouse,
	})
}

func (s *Server) mealsLast7(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "days", 7)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	byDay, err := s.deps.Meals.MealsLastDays(r.Context(), s.userID(r), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mealsByDayJSON(byDay))
}

// --- Coaching ---

func (s *Server) coachDaily(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Coaching.Daily(r.Context(), s.userID(r))
	s.writeResult(w, r, res, err)
}

func (s *Server) coachWeekly(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Coaching.Weekly(r.Context(), s.userID(r), boolParam(r, "dry"), boolParam(r, "show_prompt"))
	s.writeResult(w, r, res, err)
}

func (s *Server) coachMonthly(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Coaching.Monthly(r.Context(), s.userID(r))
	s.writeResult(w, r, res, err)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res interface{}, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
