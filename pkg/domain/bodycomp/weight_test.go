package bodycomp

import (
	"context"
	"testing"
	"time"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/domain/metrics"
	"github.com/fitline/server/pkg/testing/mocks"
	"github.com/fitline/server/pkg/types"
)

type fetchFunc func(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error)

func (f fetchFunc) FetchBodyComposition(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error) {
	return f(ctx, userID, numDays)
}

func kg(v float64) *float64 { return &v }

func TestCurrentWeight(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		fetch      fetchFunc
		manual     *float64
		wantSource types.WeightSource
		wantKg     float64
	}{
		{
			name: "scale reading wins",
			fetch: func(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error) {
				return &metrics.BodyComposition{Samples: []types.BodyCompositionSample{
					{MeasuredAt: now.Add(-time.Hour), WeightKg: kg(64.8)},
					{MeasuredAt: now, WeightKg: kg(64.2)},
					{MeasuredAt: now.Add(time.Minute), BodyFatPct: kg(18)},
				}}, nil
			},
			manual:     kg(70),
			wantSource: types.WeightSourceHealthPlanet,
			wantKg:     64.2,
		},
		{
			name: "not connected falls back to profile",
			fetch: func(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error) {
				return nil, shared.ErrNotConnected
			},
			manual:     kg(70),
			wantSource: types.WeightSourceManual,
			wantKg:     70,
		},
		{
			name: "upstream failure falls back to profile",
			fetch: func(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error) {
				return nil, shared.ErrUnavailable
			},
			manual:     kg(71.5),
			wantSource: types.WeightSourceManual,
			wantKg:     71.5,
		},
		{
			name: "nothing anywhere",
			fetch: func(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error) {
				return &metrics.BodyComposition{}, nil
			},
			wantSource: types.WeightSourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := mocks.NewMemoryDatabase()
			if tt.manual != nil {
				if _, err := db.MergeProfile(context.Background(), "demo", types.ProfileFields{WeightKg: tt.manual}, now); err != nil {
					t.Fatalf("seed profile: %v", err)
				}
			}

			got, err := NewResolver(tt.fetch, db, nil).CurrentWeight(context.Background(), "demo", 1)
			if err != nil {
				t.Fatalf("CurrentWeight failed: %v", err)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Expected source %s, got %s", tt.wantSource, got.Source)
			}
			if tt.wantSource == types.WeightSourceNone {
				if got.ValueKg != nil {
					t.Errorf("Expected no value, got %v", *got.ValueKg)
				}
				return
			}
			if got.ValueKg == nil || *got.ValueKg != tt.wantKg {
				t.Errorf("Expected %.1f kg, got %v", tt.wantKg, got.ValueKg)
			}
		})
	}
}
