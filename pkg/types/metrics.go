package types

import (
	"fmt"
	"strconv"

	"cloud.google.com/go/civil"
)

// Unavailable is how a missing sub-metric is rendered.
const Unavailable = "unavailable"

// SleepStages holds minutes spent in each sleep stage.
type SleepStages struct {
	Deep  int `json:"deep"`
	REM   int `json:"rem"`
	Light int `json:"light"`
	Wake  int `json:"wake"`
}

func (s SleepStages) Total() int {
	return s.Deep + s.REM + s.Light + s.Wake
}

func (s SleepStages) Add(o SleepStages) SleepStages {
	return SleepStages{
		Deep:  s.Deep + o.Deep,
		REM:   s.REM + o.REM,
		Light: s.Light + o.Light,
		Wake:  s.Wake + o.Wake,
	}
}

// SleepSummary is the sleep attributed to one calendar day.
type SleepSummary struct {
	TotalMinutes int         `json:"total_minutes"`
	Stages       SleepStages `json:"stages"`
}

// HasStages reports whether a stage breakdown is worth rendering.
func (s SleepSummary) HasStages() bool {
	return s.Stages.Total() > 0
}

func (s SleepSummary) String() string {
	if !s.HasStages() {
		return fmt.Sprintf("total %d min", s.TotalMinutes)
	}
	return fmt.Sprintf("total %d min (deep %d / rem %d / light %d / wake %d)",
		s.TotalMinutes, s.Stages.Deep, s.Stages.REM, s.Stages.Light, s.Stages.Wake)
}

// DayMetrics is the canonical record of one user's signals for one calendar day.
// A nil Sleep or SpO2Average means the sub-metric was unavailable; steps and
// calories default to zero instead.
type DayMetrics struct {
	Date          civil.Date
	StepsTotal    int
	Sleep         *SleepSummary
	SpO2Average   *float64
	CaloriesTotal int
}

func (d DayMetrics) SleepLine() string {
	if d.Sleep == nil {
		return Unavailable
	}
	return d.Sleep.String()
}

func (d DayMetrics) SpO2Line() string {
	if d.SpO2Average == nil {
		return Unavailable
	}
	return "avg " + strconv.FormatFloat(*d.SpO2Average, 'f', -1, 64)
}

// RangeSummary totals a sequence of days.
type RangeSummary struct {
	StepsSum    int `json:"steps_sum"`
	CaloriesSum int `json:"calories_sum"`
	Count       int `json:"count"`
}

func Summarize(days []DayMetrics) RangeSummary {
	s := RangeSummary{Count: len(days)}
	for _, d := range days {
		s.StepsSum += d.StepsTotal
		s.CaloriesSum += d.CaloriesTotal
	}
	return s
}

// MonthlyStats is the 30-day activity rollup computed in the warehouse.
type MonthlyStats struct {
	Days        int `json:"days"`
	AvgSteps    int `json:"avg_steps"`
	MinSteps    int `json:"min_steps"`
	MaxSteps    int `json:"max_steps"`
	AvgCalories int `json:"avg_cal"`
	MinCalories int `json:"min_cal"`
	MaxCalories int `json:"max_cal"`
}
