package metrics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/integrations/fitbit"
	"github.com/fitline/server/pkg/integrations/healthplanet"
	"github.com/fitline/server/pkg/types"
)

var tokyo = time.FixedZone("JST", 9*60*60)

// 2025-03-10 08:30 JST is still 2025-03-09 in UTC.
var clock = func() time.Time { return time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC) }

func TestWindow_UsesConfiguredTimezone(t *testing.T) {
	a := NewAggregator(&fakeTokens{}, &fakeFitbit{}, nil, tokyo, WithClock(clock))
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 10}, a.Today())

	w := a.Window(3)
	assert.Equal(t, []civil.Date{
		{Year: 2025, Month: 3, Day: 8},
		{Year: 2025, Month: 3, Day: 9},
		{Year: 2025, Month: 3, Day: 10},
	}, w)
}

func TestFetchDayRange_PartialFailure(t *testing.T) {
	fb := &fakeFitbit{
		StepsFunc: func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error) {
			assert.Equal(t, "2025-03-08", start.String())
			assert.Equal(t, "2025-03-10", end.String())
			return series("2025-03-08", "8000", "2025-03-09", "9000", "2025-03-10", "1200.9"), nil
		},
		CaloriesFunc: func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error) {
			return nil, unavailable()
		},
		SleepFunc: func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SleepResponse, error) {
			return &fitbit.SleepResponse{Sleep: []fitbit.SleepLog{
				{DateOfSleep: "2025-03-09", MinutesAsleep: "400", Levels: fitbit.SleepLevels{Summary: map[string]fitbit.StageSummary{
					"deep": {Minutes: "60"}, "rem": {Minutes: "90"}, "light": {Minutes: "250"}, "wake": {Minutes: "30"},
				}}},
				{StartTime: "2025-03-09T14:00:00.000", MinutesAsleep: "25"},
			}}, nil
		},
		SpO2Func: func(ctx context.Context, token string, day civil.Date) (*fitbit.SpO2Response, error) {
			if day.Day == 10 {
				return nil, unavailable()
			}
			return &fitbit.SpO2Response{Value: &fitbit.SpO2Value{Avg: f64(95.5)}}, nil
		},
	}

	a := NewAggregator(&fakeTokens{token: "tok"}, fb, nil, tokyo, WithClock(clock))
	days, err := a.FetchDayRange(context.Background(), "demo", 3)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, 8000, days[0].StepsTotal)
	assert.Equal(t, 1200, days[2].StepsTotal)
	for _, d := range days {
		assert.Equal(t, 0, d.CaloriesTotal)
	}

	assert.Nil(t, days[0].Sleep)
	require.NotNil(t, days[1].Sleep)
	assert.Equal(t, 425, days[1].Sleep.TotalMinutes)
	assert.Equal(t, 60, days[1].Sleep.Stages.Deep)

	require.NotNil(t, days[1].SpO2Average)
	assert.Equal(t, 95.5, *days[1].SpO2Average)
	assert.Nil(t, days[2].SpO2Average)
	assert.Equal(t, types.Unavailable, days[2].SpO2Line())
}

func TestFetchDayRange_NotConnectedFailsWholeCall(t *testing.T) {
	var called int32
	fb := &fakeFitbit{
		StepsFunc: func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error) {
			atomic.AddInt32(&called, 1)
			return nil, nil
		},
	}
	a := NewAggregator(&fakeTokens{err: shared.ErrNotConnected}, fb, nil, tokyo, WithClock(clock))

	_, err := a.FetchDayRange(context.Background(), "demo", 7)
	assert.ErrorIs(t, err, shared.ErrNotConnected)
	assert.Equal(t, int32(0), called)
}

func TestFetchDayRange_RejectsEmptyWindow(t *testing.T) {
	a := NewAggregator(&fakeTokens{token: "tok"}, &fakeFitbit{}, nil, tokyo)
	_, err := a.FetchDayRange(context.Background(), "demo", 0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestFetchDayRange_UnauthorizedRetriesOnce(t *testing.T) {
	var stepCalls int32
	var seen []string
	fb := &fakeFitbit{
		StepsFunc: func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error) {
			atomic.AddInt32(&stepCalls, 1)
			seen = append(seen, token)
			return nil, unauthorized()
		},
	}
	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	a := NewAggregator(tokens, fb, nil, tokyo, WithClock(clock))

	days, err := a.FetchToday(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, 0, days.StepsTotal)
	assert.Equal(t, int32(2), stepCalls)
	assert.Equal(t, []string{"stale", "fresh"}, seen)
}

func TestFetchDayRange_NoSubMetricsIsStillComplete(t *testing.T) {
	fb := &fakeFitbit{
		StepsFunc: func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error) {
			return nil, unavailable()
		},
		SleepFunc: func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SleepResponse, error) {
			return nil, unavailable()
		},
		SpO2Func: func(ctx context.Context, token string, day civil.Date) (*fitbit.SpO2Response, error) {
			return nil, unavailable()
		},
	}
	a := NewAggregator(&fakeTokens{token: "tok"}, fb, nil, tokyo, WithClock(clock))

	days, err := a.FetchDayRange(context.Background(), "demo", 2)
	require.NoError(t, err)
	for _, d := range days {
		assert.Equal(t, types.Unavailable, d.SleepLine())
		assert.Equal(t, types.Unavailable, d.SpO2Line())
		assert.Zero(t, d.StepsTotal)
	}
}

func TestFetchDayRange_ArchivesRawPayloads(t *testing.T) {
	fb := &fakeFitbit{
		StepsFunc: func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error) {
			return series("2025-03-10", "10"), nil
		},
	}
	ar := &recordingArchiver{}
	a := NewAggregator(&fakeTokens{token: "tok"}, fb, nil, tokyo, WithClock(clock), WithArchiver(ar))

	_, err := a.FetchToday(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"fitbit/steps"}, ar.resources)
}

func TestFetchBodyComposition(t *testing.T) {
	hp := &fakeHealthPlanet{
		InnerscanFunc: func(ctx context.Context, token string, from, to time.Time, tags ...string) (*healthplanet.InnerscanResponse, error) {
			assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, tokyo), from)
			assert.Equal(t, time.Date(2025, 3, 10, 23, 59, 59, 0, tokyo), to)
			return &healthplanet.InnerscanResponse{
				Data: []healthplanet.Entry{
					{Date: "202503100700", KeyData: "64.2", Tag: healthplanet.TagWeight},
					{Date: "202503050700", KeyData: "65.0", Tag: healthplanet.TagWeight},
				},
				Raw: []byte(`{"data":[]}`),
			}, nil
		},
	}
	a := NewAggregator(&fakeTokens{token: "hp"}, &fakeFitbit{}, hp, tokyo, WithClock(clock))

	res, err := a.FetchBodyComposition(context.Background(), "demo", 7)
	require.NoError(t, err)
	require.Len(t, res.Samples, 2)
	assert.True(t, res.Samples[0].MeasuredAt.Before(res.Samples[1].MeasuredAt))
	assert.NotEmpty(t, res.Raw)
}

func TestCoerce(t *testing.T) {
	tests := map[fitbit.Value]int{
		"123":   123,
		"123.9": 123,
		"-4.7":  -4,
		"":      0,
		"abc":   0,
		"NaN":   0,
	}
	for in, want := range tests {
		assert.Equal(t, want, Coerce(in), "Coerce(%q)", in)
	}
}

func TestSleepByDay_CoercesMinutes(t *testing.T) {
	days := SleepByDay([]fitbit.SleepLog{
		{DateOfSleep: "2025-03-10", MinutesAsleep: "412.5", Levels: fitbit.SleepLevels{Summary: map[string]fitbit.StageSummary{
			"deep": {Minutes: "80"}, "rem": {Minutes: "95.9"}, "light": {Minutes: "n/a"},
		}}},
		{DateOfSleep: "2025-03-10", MinutesAsleep: "30"},
		{DateOfSleep: "2025-03-11", MinutesAsleep: ""},
	})

	s := days[civil.Date{Year: 2025, Month: 3, Day: 10}]
	require.NotNil(t, s)
	assert.Equal(t, 442, s.TotalMinutes)
	assert.Equal(t, types.SleepStages{Deep: 80, REM: 95}, s.Stages)

	blank := days[civil.Date{Year: 2025, Month: 3, Day: 11}]
	require.NotNil(t, blank)
	assert.Equal(t, 0, blank.TotalMinutes)
}

func TestSleepByDay_StagesMissing(t *testing.T) {
	days := SleepByDay([]fitbit.SleepLog{{DateOfSleep: "2025-03-10", MinutesAsleep: "300"}})
	s := days[civil.Date{Year: 2025, Month: 3, Day: 10}]
	require.NotNil(t, s)
	assert.Equal(t, "total 300 min", s.String())
}
