package warehouse

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/fitline/server/pkg/types"
)

// statement is one parameterized query.
type statement struct {
	sql    string
	params []bigquery.QueryParameter
}

func (s statement) param(name string) (interface{}, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

type dayRow struct {
	Date          civil.Date           `bigquery:"date"`
	StepsTotal    int64                `bigquery:"steps_total"`
	CaloriesTotal int64                `bigquery:"calories_total"`
	SleepMinutes  bigquery.NullInt64   `bigquery:"sleep_minutes"`
	SleepDeep     bigquery.NullInt64   `bigquery:"sleep_deep"`
	SleepREM      bigquery.NullInt64   `bigquery:"sleep_rem"`
	SleepLight    bigquery.NullInt64   `bigquery:"sleep_light"`
	SleepWake     bigquery.NullInt64   `bigquery:"sleep_wake"`
	SleepLine     string               `bigquery:"sleep_line"`
	SpO2Avg       bigquery.NullFloat64 `bigquery:"spo2_avg"`
	SpO2Line      string               `bigquery:"spo2_line"`
}

func toDayRow(d types.DayMetrics) dayRow {
	row := dayRow{
		Date:          d.Date,
		StepsTotal:    int64(d.StepsTotal),
		CaloriesTotal: int64(d.CaloriesTotal),
		SleepLine:     d.SleepLine(),
		SpO2Line:      d.SpO2Line(),
	}
	if d.Sleep != nil {
		row.SleepMinutes = nullInt(d.Sleep.TotalMinutes)
		row.SleepDeep = nullInt(d.Sleep.Stages.Deep)
		row.SleepREM = nullInt(d.Sleep.Stages.REM)
		row.SleepLight = nullInt(d.Sleep.Stages.Light)
		row.SleepWake = nullInt(d.Sleep.Stages.Wake)
	}
	if d.SpO2Average != nil {
		row.SpO2Avg = bigquery.NullFloat64{Float64: *d.SpO2Average, Valid: true}
	}
	return row
}

// overwriteDaysStatement replaces the user's rows for exactly the dates in
// days inside one transaction. Duplicate dates keep the last record.
func overwriteDaysStatement(table, userID string, days []types.DayMetrics) statement {
	byDate := make(map[civil.Date]types.DayMetrics, len(days))
	for _, d := range days {
		byDate[d.Date] = d
	}
	dates := make([]civil.Date, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([]dayRow, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, toDayRow(byDate[d]))
	}

	sql := fmt.Sprintf(`BEGIN TRANSACTION;
DELETE FROM %[1]s WHERE user_id = @user_id AND date IN UNNEST(@dates);
INSERT INTO %[1]s (user_id, date, steps_total, calories_total, sleep_minutes, sleep_deep, sleep_rem, sleep_light, sleep_wake, sleep_line, spo2_avg, spo2_line, ingested_at)
SELECT @user_id, r.date, r.steps_total, r.calories_total, r.sleep_minutes, r.sleep_deep, r.sleep_rem, r.sleep_light, r.sleep_wake, r.sleep_line, r.spo2_avg, r.spo2_line, CURRENT_TIMESTAMP()
FROM UNNEST(@rows) AS r;
COMMIT TRANSACTION;`, table)

	return statement{sql: sql, params: []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "dates", Value: dates},
		{Name: "rows", Value: rows},
	}}
}

type bodyRow struct {
	MeasuredAt time.Time            `bigquery:"measured_at"`
	WeightKg   bigquery.NullFloat64 `bigquery:"weight_kg"`
	BodyFatPct bigquery.NullFloat64 `bigquery:"body_fat_pct"`
	SourceTag  string               `bigquery:"source_tag"`
}

// overwriteBodyStatement replaces the user's samples for every local day
// that appears in samples.
func overwriteBodyStatement(table, userID string, samples []types.BodyCompositionSample, loc *time.Location) statement {
	seen := make(map[civil.Date]bool)
	var dates []civil.Date
	rows := make([]bodyRow, 0, len(samples))
	for _, s := range samples {
		d := civil.DateOf(s.MeasuredAt.In(loc))
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
		row := bodyRow{MeasuredAt: s.MeasuredAt.UTC(), SourceTag: s.SourceTag}
		if s.WeightKg != nil {
			row.WeightKg = bigquery.NullFloat64{Float64: *s.WeightKg, Valid: true}
		}
		if s.BodyFatPct != nil {
			row.BodyFatPct = bigquery.NullFloat64{Float64: *s.BodyFatPct, Valid: true}
		}
		rows = append(rows, row)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	sql := fmt.Sprintf(`BEGIN TRANSACTION;
DELETE FROM %[1]s WHERE user_id = @user_id AND DATE(measured_at, @tz) IN UNNEST(@dates);
INSERT INTO %[1]s (user_id, measured_at, weight_kg, body_fat_pct, source_tag, ingested_at)
SELECT @user_id, r.measured_at, r.weight_kg, r.body_fat_pct, r.source_tag, CURRENT_TIMESTAMP()
FROM UNNEST(@rows) AS r;
COMMIT TRANSACTION;`, table)

	return statement{sql: sql, params: []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "tz", Value: loc.String()},
		{Name: "dates", Value: dates},
		{Name: "rows", Value: rows},
	}}
}

var profileColumns = []string{
	"age", "sex", "height_cm", "weight_kg", "target_weight_kg", "goal",
	"smoking_status", "alcohol_habit", "past_history", "medications", "allergies", "notes",
}

func profileParams(p *types.Profile) []bigquery.QueryParameter {
	history := make([]string, 0, len(p.PastHistory))
	for _, c := range p.PastHistory {
		history = append(history, string(c))
	}
	return []bigquery.QueryParameter{
		{Name: "user_id", Value: p.UserID},
		{Name: "age", Value: nullIntPtr(p.Age)},
		{Name: "sex", Value: nullString((*string)(p.Sex))},
		{Name: "height_cm", Value: nullFloatPtr(p.HeightCm)},
		{Name: "weight_kg", Value: nullFloatPtr(p.WeightKg)},
		{Name: "target_weight_kg", Value: nullFloatPtr(p.TargetWeightKg)},
		{Name: "goal", Value: nullString(p.Goal)},
		{Name: "smoking_status", Value: nullString((*string)(p.SmokingStatus))},
		{Name: "alcohol_habit", Value: nullString((*string)(p.AlcoholHabit))},
		{Name: "past_history", Value: history},
		{Name: "medications", Value: nullString(p.Medications)},
		{Name: "allergies", Value: nullString(p.Allergies)},
		{Name: "notes", Value: nullString(p.Notes)},
		{Name: "updated_at", Value: p.UpdatedAt.UTC()},
	}
}

func mergeProfileStatement(table string, p *types.Profile) statement {
	var src, set, cols, vals string
	for i, c := range profileColumns {
		sep := ""
		if i > 0 {
			sep = ", "
		}
		src += fmt.Sprintf("%s@%s AS %s", sep, c, c)
		set += fmt.Sprintf("%s%s = S.%s", sep, c, c)
		cols += sep + c
		vals += sep + "S." + c
	}
	sql := fmt.Sprintf(`MERGE %s T
USING (SELECT @user_id AS user_id, %s, @updated_at AS updated_at) S
ON T.user_id = S.user_id
WHEN MATCHED THEN
  UPDATE SET %s, updated_at = S.updated_at
WHEN NOT MATCHED THEN
  INSERT (user_id, %s, updated_at) VALUES (S.user_id, %s, S.updated_at)`, table, src, set, cols, vals)
	return statement{sql: sql, params: profileParams(p)}
}

func deleteProfileStatement(table, userID string) statement {
	return statement{
		sql:    fmt.Sprintf("DELETE FROM %s WHERE user_id = @user_id", table),
		params: []bigquery.QueryParameter{{Name: "user_id", Value: userID}},
	}
}

func insertProfileStatement(table string, p *types.Profile) statement {
	var cols, vals string
	for _, c := range profileColumns {
		cols += ", " + c
		vals += ", @" + c
	}
	return statement{
		sql:    fmt.Sprintf("INSERT INTO %s (user_id%s, updated_at) VALUES (@user_id%s, @updated_at)", table, cols, vals),
		params: profileParams(p),
	}
}

// monthlyStatsStatement rolls up the days-long window ending at end.
func monthlyStatsStatement(table, userID string, end civil.Date, days int) statement {
	sql := fmt.Sprintf(`SELECT
  COUNT(*) AS days,
  CAST(ROUND(AVG(steps_total)) AS INT64) AS avg_steps,
  MIN(steps_total) AS min_steps,
  MAX(steps_total) AS max_steps,
  CAST(ROUND(AVG(calories_total)) AS INT64) AS avg_cal,
  MIN(calories_total) AS min_cal,
  MAX(calories_total) AS max_cal
FROM %s
WHERE user_id = @user_id AND date BETWEEN @start AND @end`, table)
	return statement{sql: sql, params: []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start", Value: end.AddDays(-(days - 1))},
		{Name: "end", Value: end},
	}}
}

type mealRow struct {
	UserID     string               `bigquery:"user_id"`
	MealID     string               `bigquery:"meal_id"`
	WhenAt     time.Time            `bigquery:"when_at"`
	WhenDate   civil.Date           `bigquery:"when_date"`
	Text       string               `bigquery:"text"`
	Kcal       bigquery.NullFloat64 `bigquery:"kcal"`
	Source     string               `bigquery:"source"`
	FileName   bigquery.NullString  `bigquery:"file_name"`
	MIME       bigquery.NullString  `bigquery:"mime"`
	IngestedAt time.Time            `bigquery:"ingested_at"`
}

func toMealRow(m *types.Meal, ingestedAt time.Time) *mealRow {
	row := &mealRow{
		UserID:     m.UserID,
		MealID:     m.ID,
		WhenAt:     m.When.UTC(),
		WhenDate:   m.WhenDate,
		Text:       m.Text,
		Kcal:       nullFloatPtr(m.Kcal),
		Source:     string(m.Source),
		IngestedAt: ingestedAt.UTC(),
	}
	if m.FileName != "" {
		row.FileName = bigquery.NullString{StringVal: m.FileName, Valid: true}
	}
	if m.MIME != "" {
		row.MIME = bigquery.NullString{StringVal: m.MIME, Valid: true}
	}
	return row
}

// recentMealsStatement lists up to limit meals in the days-long window ending
// at end, newest first.
func recentMealsStatement(table, userID string, end civil.Date, days, limit int) statement {
	sql := fmt.Sprintf(`SELECT when_date, when_at, text, kcal
FROM %s
WHERE user_id = @user_id AND when_date BETWEEN @start AND @end
ORDER BY when_date DESC, when_at DESC
LIMIT @limit`, table)
	return statement{sql: sql, params: []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start", Value: end.AddDays(-(days - 1))},
		{Name: "end", Value: end},
		{Name: "limit", Value: int64(limit)},
	}}
}

func insertMonthlyReportStatement(table string, r *types.MonthlyReport) statement {
	sql := fmt.Sprintf(`INSERT INTO %s (user_id, month, report_text, days, avg_steps, min_steps, max_steps, avg_cal, min_cal, max_cal, created_at)
VALUES (@user_id, @month, @report_text, @days, @avg_steps, @min_steps, @max_steps, @avg_cal, @min_cal, @max_cal, @created_at)`, table)
	s := r.Stats
	return statement{sql: sql, params: []bigquery.QueryParameter{
		{Name: "user_id", Value: r.UserID},
		{Name: "month", Value: r.Month},
		{Name: "report_text", Value: r.Text},
		{Name: "days", Value: int64(s.Days)},
		{Name: "avg_steps", Value: int64(s.AvgSteps)},
		{Name: "min_steps", Value: int64(s.MinSteps)},
		{Name: "max_steps", Value: int64(s.MaxSteps)},
		{Name: "avg_cal", Value: int64(s.AvgCalories)},
		{Name: "min_cal", Value: int64(s.MinCalories)},
		{Name: "max_cal", Value: int64(s.MaxCalories)},
		{Name: "created_at", Value: r.CreatedAt.UTC()},
	}}
}

func nullInt(v int) bigquery.NullInt64 {
	return bigquery.NullInt64{Int64: int64(v), Valid: true}
}

func nullIntPtr(v *int) bigquery.NullInt64 {
	if v == nil {
		return bigquery.NullInt64{}
	}
	return nullInt(*v)
}

func nullFloatPtr(v *float64) bigquery.NullFloat64 {
	if v == nil {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) bigquery.NullString {
	if v == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *v, Valid: true}
}
