package firestore

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/fitline/server/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to get an optional string; absent or non-string values are nil
func getStringPtr(m map[string]interface{}, key string) *string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

// Firestore returns integers as int64 but tolerate float64 from older writes
func getInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func getIntPtr(m map[string]interface{}, key string) *int {
	switch v := m[key].(type) {
	case int64:
		i := int(v)
		return &i
	case int:
		return &v
	case float64:
		i := int(v)
		return &i
	}
	return nil
}

func getFloatPtr(m map[string]interface{}, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// putOptional only writes non-nil pointers so merges never clear a field.
func putOptional[T any](m map[string]interface{}, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}

// --- Credential Converters ---

func CredentialToFirestore(c *types.Credential) map[string]interface{} {
	return map[string]interface{}{
		"provider":      string(c.Provider),
		"user_id":       c.UserID,
		"access_token":  c.AccessToken,
		"refresh_token": c.RefreshToken,
		"token_type":    c.TokenType,
		"scope":         c.Scope,
		"expires_at":    c.ExpiresAt,
		"updated_at":    c.UpdatedAt,
	}
}

func FirestoreToCredential(m map[string]interface{}) *types.Credential {
	return &types.Credential{
		Provider:     types.Provider(getString(m, "provider")),
		UserID:       getString(m, "user_id"),
		AccessToken:  getString(m, "access_token"),
		RefreshToken: getString(m, "refresh_token"),
		TokenType:    getString(m, "token_type"),
		Scope:        getString(m, "scope"),
		ExpiresAt:    getInt64(m, "expires_at"),
		UpdatedAt:    getTime(m, "updated_at"),
	}
}

// --- Profile Converters ---

func ProfileToFirestore(p *types.Profile) map[string]interface{} {
	m := map[string]interface{}{
		"user_id":    p.UserID,
		"updated_at": p.UpdatedAt,
	}
	putOptional(m, "age", p.Age)
	if p.Sex != nil {
		m["sex"] = string(*p.Sex)
	}
	putOptional(m, "height_cm", p.HeightCm)
	putOptional(m, "weight_kg", p.WeightKg)
	putOptional(m, "target_weight_kg", p.TargetWeightKg)
	putOptional(m, "goal", p.Goal)
	if p.SmokingStatus != nil {
		m["smoking_status"] = string(*p.SmokingStatus)
	}
	if p.AlcoholHabit != nil {
		m["alcohol_habit"] = string(*p.AlcoholHabit)
	}
	if p.PastHistory != nil {
		history := make([]string, len(p.PastHistory))
		for i, c := range p.PastHistory {
			history[i] = string(c)
		}
		m["past_history"] = history
	}
	putOptional(m, "medications", p.Medications)
	putOptional(m, "allergies", p.Allergies)
	putOptional(m, "notes", p.Notes)
	return m
}

func FirestoreToProfile(m map[string]interface{}) *types.Profile {
	p := &types.Profile{
		UserID:    getString(m, "user_id"),
		UpdatedAt: getTime(m, "updated_at"),
	}
	p.Age = getIntPtr(m, "age")
	if s := getStringPtr(m, "sex"); s != nil {
		sex := types.Sex(*s)
		p.Sex = &sex
	}
	p.HeightCm = getFloatPtr(m, "height_cm")
	p.WeightKg = getFloatPtr(m, "weight_kg")
	p.TargetWeightKg = getFloatPtr(m, "target_weight_kg")
	p.Goal = getStringPtr(m, "goal")
	if s := getStringPtr(m, "smoking_status"); s != nil {
		v := types.SmokingStatus(*s)
		p.SmokingStatus = &v
	}
	if s := getStringPtr(m, "alcohol_habit"); s != nil {
		v := types.AlcoholHabit(*s)
		p.AlcoholHabit = &v
	}
	if raw, ok := m["past_history"].([]interface{}); ok {
		p.PastHistory = make([]types.Condition, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				p.PastHistory = append(p.PastHistory, types.Condition(s))
			}
		}
	}
	p.Medications = getStringPtr(m, "medications")
	p.Allergies = getStringPtr(m, "allergies")
	p.Notes = getStringPtr(m, "notes")
	return p
}

// --- DayMetrics Converters ---

// DayMetricsToFirestore carries no wall-clock fields so that identical
// aggregations produce identical documents.
func DayMetricsToFirestore(d *types.DayMetrics) map[string]interface{} {
	m := map[string]interface{}{
		"date":           d.Date.String(),
		"steps_total":    d.StepsTotal,
		"calories_total": d.CaloriesTotal,
		"sleep":          nil,
		"sleep_line":     d.SleepLine(),
		"spo2_average":   nil,
		"spo2_line":      d.SpO2Line(),
	}
	if d.Sleep != nil {
		m["sleep"] = map[string]interface{}{
			"total_minutes": d.Sleep.TotalMinutes,
			"stages": map[string]interface{}{
				"deep":  d.Sleep.Stages.Deep,
				"rem":   d.Sleep.Stages.REM,
				"light": d.Sleep.Stages.Light,
				"wake":  d.Sleep.Stages.Wake,
			},
		}
	}
	if d.SpO2Average != nil {
		m["spo2_average"] = *d.SpO2Average
	}
	return m
}

func FirestoreToDayMetrics(m map[string]interface{}) *types.DayMetrics {
	d := &types.DayMetrics{
		StepsTotal:    int(getInt64(m, "steps_total")),
		CaloriesTotal: int(getInt64(m, "calories_total")),
		SpO2Average:   getFloatPtr(m, "spo2_average"),
	}
	if date, err := civil.ParseDate(getString(m, "date")); err == nil {
		d.Date = date
	}
	if sleep := getMap(m, "sleep"); sleep != nil {
		stages := getMap(sleep, "stages")
		d.Sleep = &types.SleepSummary{
			TotalMinutes: int(getInt64(sleep, "total_minutes")),
			Stages: types.SleepStages{
				Deep:  int(getInt64(stages, "deep")),
				REM:   int(getInt64(stages, "rem")),
				Light: int(getInt64(stages, "light")),
				Wake:  int(getInt64(stages, "wake")),
			},
		}
	}
	return d
}

// --- Meal Converters ---

func MealToFirestore(meal *types.Meal) map[string]interface{} {
	m := map[string]interface{}{
		"user_id":    meal.UserID,
		"when":       meal.When,
		"when_date":  meal.WhenDate.String(),
		"text":       meal.Text,
		"kcal":       nil,
		"source":     string(meal.Source),
		"created_at": meal.CreatedAt,
	}
	if meal.Kcal != nil {
		m["kcal"] = *meal.Kcal
	}
	if meal.FileName != "" {
		m["file_name"] = meal.FileName
	}
	if meal.MIME != "" {
		m["mime"] = meal.MIME
	}
	return m
}

func FirestoreToMeal(m map[string]interface{}) *types.Meal {
	meal := &types.Meal{
		UserID:    getString(m, "user_id"),
		When:      getTime(m, "when"),
		Text:      getString(m, "text"),
		Kcal:      getFloatPtr(m, "kcal"),
		Source:    types.MealSource(getString(m, "source")),
		FileName:  getString(m, "file_name"),
		MIME:      getString(m, "mime"),
		CreatedAt: getTime(m, "created_at"),
	}
	if date, err := civil.ParseDate(getString(m, "when_date")); err == nil {
		meal.WhenDate = date
	}
	return meal
}

// --- MonthlyReport Converters ---

func MonthlyReportToFirestore(r *types.MonthlyReport) map[string]interface{} {
	return map[string]interface{}{
		"month":      r.Month,
		"text":       r.Text,
		"created_at": r.CreatedAt,
		"stats": map[string]interface{}{
			"days":      r.Stats.Days,
			"avg_steps": r.Stats.AvgSteps,
			"min_steps": r.Stats.MinSteps,
			"max_steps": r.Stats.MaxSteps,
			"avg_cal":   r.Stats.AvgCalories,
			"min_cal":   r.Stats.MinCalories,
			"max_cal":   r.Stats.MaxCalories,
		},
	}
}

func FirestoreToMonthlyReport(m map[string]interface{}) *types.MonthlyReport {
	stats := getMap(m, "stats")
	return &types.MonthlyReport{
		Month:     getString(m, "month"),
		Text:      getString(m, "text"),
		CreatedAt: getTime(m, "created_at"),
		Stats: types.MonthlyStats{
			Days:        int(getInt64(stats, "days")),
			AvgSteps:    int(getInt64(stats, "avg_steps")),
			MinSteps:    int(getInt64(stats, "min_steps")),
			MaxSteps:    int(getInt64(stats, "max_steps")),
			AvgCalories: int(getInt64(stats, "avg_cal")),
			MinCalories: int(getInt64(stats, "min_cal")),
			MaxCalories: int(getInt64(stats, "max_cal")),
		},
	}
}

// --- ExecutionRecord Converters ---

func ExecutionToFirestore(e *types.ExecutionRecord) map[string]interface{} {
	m := map[string]interface{}{
		"execution_id": e.ExecutionID,
		"service":      e.Service,
		"user_id":      e.UserID,
		"trigger_type": e.TriggerType,
		"status":       string(e.Status),
		"started_at":   e.StartedAt,
	}
	if e.CompletedAt != nil {
		m["completed_at"] = *e.CompletedAt
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	if e.Outputs != nil {
		m["outputs"] = e.Outputs
	}
	return m
}

func FirestoreToExecution(m map[string]interface{}) *types.ExecutionRecord {
	e := &types.ExecutionRecord{
		ExecutionID: getString(m, "execution_id"),
		Service:     getString(m, "service"),
		UserID:      getString(m, "user_id"),
		TriggerType: getString(m, "trigger_type"),
		Status:      types.ExecutionStatus(getString(m, "status")),
		StartedAt:   getTime(m, "started_at"),
		Error:       getString(m, "error"),
		Outputs:     getMap(m, "outputs"),
	}
	if t := getTime(m, "completed_at"); !t.IsZero() {
		e.CompletedAt = &t
	}
	return e
}
