package metrics

import (
	"cloud.google.com/go/civil"

	"github.com/fitline/server/pkg/integrations/fitbit"
	"github.com/fitline/server/pkg/types"
)

// SleepByDay attributes each log to its dateOfSleep (or the date part of
// startTime) and sums totals and stage minutes per day. Days with no log
// are absent from the result.
func SleepByDay(logs []fitbit.SleepLog) map[civil.Date]*types.SleepSummary {
	out := make(map[civil.Date]*types.SleepSummary)
	for _, l := range logs {
		key := l.DateOfSleep
		if key == "" && len(l.StartTime) >= 10 {
			key = l.StartTime[:10]
		}
		d, err := civil.ParseDate(key)
		if err != nil {
			continue
		}

		s, ok := out[d]
		if !ok {
			s = &types.SleepSummary{}
			out[d] = s
		}
		s.TotalMinutes += Coerce(l.MinutesAsleep)
		s.Stages = s.Stages.Add(types.SleepStages{
			Deep:  Coerce(l.StageMinutes("deep")),
			REM:   Coerce(l.StageMinutes("rem")),
			Light: Coerce(l.StageMinutes("light")),
			Wake:  Coerce(l.StageMinutes("wake")),
		})
	}
	return out
}
