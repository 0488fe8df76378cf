package metrics

import (
	"math"

	"cloud.google.com/go/civil"

	"github.com/fitline/server/pkg/integrations/fitbit"
)

// Coerce converts an upstream numeric value to an int, truncating toward
// zero. Blank or malformed values are 0.
func Coerce(v fitbit.Value) int {
	f, ok := v.Float()
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// seriesByDay indexes a daily time series. Negative totals are clamped to 0.
func seriesByDay(points []fitbit.SeriesPoint) map[civil.Date]int {
	out := make(map[civil.Date]int, len(points))
	for _, p := range points {
		d, err := civil.ParseDate(p.DateTime)
		if err != nil {
			continue
		}
		n := Coerce(p.Value)
		if n < 0 {
			n = 0
		}
		out[d] = n
	}
	return out
}
