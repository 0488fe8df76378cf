package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/integrations/fitbit"
	"github.com/fitline/server/pkg/integrations/healthplanet"
	"github.com/fitline/server/pkg/types"
)

type fakeTokens struct {
	token      string
	err        error
	refreshed  string
	refreshErr error
	forced     int32
}

func (f *fakeTokens) GetValidAccessToken(ctx context.Context, provider types.Provider, userID string) (string, error) {
	return f.token, f.err
}

func (f *fakeTokens) ForceRefresh(ctx context.Context, provider types.Provider, userID, stale string) (string, error) {
	atomic.AddInt32(&f.forced, 1)
	return f.refreshed, f.refreshErr
}

type fakeFitbit struct {
	StepsFunc    func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error)
	CaloriesFunc func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error)
	SleepFunc    func(ctx context.Context, token string, start, end civil.Date) (*fitbit.SleepResponse, error)
	SpO2Func     func(ctx context.Context, token string, day civil.Date) (*fitbit.SpO2Response, error)
}

func (f *fakeFitbit) Steps(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error) {
	if f.StepsFunc != nil {
		return f.StepsFunc(ctx, token, start, end)
	}
	return &fitbit.SeriesResponse{}, nil
}

func (f *fakeFitbit) Calories(ctx context.Context, token string, start, end civil.Date) (*fitbit.SeriesResponse, error) {
	if f.CaloriesFunc != nil {
		return f.CaloriesFunc(ctx, token, start, end)
	}
	return &fitbit.SeriesResponse{}, nil
}

func (f *fakeFitbit) Sleep(ctx context.Context, token string, start, end civil.Date) (*fitbit.SleepResponse, error) {
	if f.SleepFunc != nil {
		return f.SleepFunc(ctx, token, start, end)
	}
	return &fitbit.SleepResponse{}, nil
}

func (f *fakeFitbit) SpO2(ctx context.Context, token string, day civil.Date) (*fitbit.SpO2Response, error) {
	if f.SpO2Func != nil {
		return f.SpO2Func(ctx, token, day)
	}
	return &fitbit.SpO2Response{}, nil
}

type fakeHealthPlanet struct {
	InnerscanFunc func(ctx context.Context, token string, from, to time.Time, tags ...string) (*healthplanet.InnerscanResponse, error)
}

func (f *fakeHealthPlanet) Innerscan(ctx context.Context, token string, from, to time.Time, tags ...string) (*healthplanet.InnerscanResponse, error) {
	return f.InnerscanFunc(ctx, token, from, to, tags...)
}

type recordingArchiver struct {
	mu        sync.Mutex
	resources []string
}

func (r *recordingArchiver) Archive(ctx context.Context, userID string, provider types.Provider, resource string, day civil.Date, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = append(r.resources, string(provider)+"/"+resource)
}

func unauthorized() error { return shared.ErrUnauthorized }

func unavailable() error { return shared.ErrUnavailable }

func series(pairs ...string) *fitbit.SeriesResponse {
	res := &fitbit.SeriesResponse{Raw: []byte(`{}`)}
	for i := 0; i+1 < len(pairs); i += 2 {
		res.Points = append(res.Points, fitbit.SeriesPoint{DateTime: pairs[i], Value: fitbit.Value(pairs[i+1])})
	}
	return res
}

func f64(v float64) *float64 { return &v }
