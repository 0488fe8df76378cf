package types

import (
	"sort"
	"time"
)

// BodyCompositionSample is one scale measurement. Several may exist per day.
type BodyCompositionSample struct {
	UserID     string
	MeasuredAt time.Time
	WeightKg   *float64
	BodyFatPct *float64
	SourceTag  string
}

// SortSamples orders samples by MeasuredAt ascending.
func SortSamples(samples []BodyCompositionSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].MeasuredAt.Before(samples[j].MeasuredAt)
	})
}

// LatestWeight returns the most recent sample carrying a weight, or nil.
func LatestWeight(samples []BodyCompositionSample) *BodyCompositionSample {
	var latest *BodyCompositionSample
	for i := range samples {
		s := &samples[i]
		if s.WeightKg == nil {
			continue
		}
		if latest == nil || s.MeasuredAt.After(latest.MeasuredAt) {
			latest = s
		}
	}
	return latest
}

// WeightSource says where a current weight reading came from.
type WeightSource string

const (
	WeightSourceHealthPlanet WeightSource = "healthplanet"
	WeightSourceManual       WeightSource = "manual"
	WeightSourceNone         WeightSource = "none"
)

// WeightReading is the resolved current weight.
type WeightReading struct {
	ValueKg    *float64     `json:"value_kg"`
	Source     WeightSource `json:"source"`
	MeasuredAt *time.Time   `json:"measured_at,omitempty"`
}
