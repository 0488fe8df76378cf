// Package bodycomp resolves a user's current body weight.
package bodycomp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/domain/metrics"
	"github.com/fitline/server/pkg/types"
)

type Fetcher interface {
	FetchBodyComposition(ctx context.Context, userID string, numDays int) (*metrics.BodyComposition, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
}

type Resolver struct {
	fetcher  Fetcher
	profiles ProfileReader
	logger   *slog.Logger
}

func NewResolver(fetcher Fetcher, profiles ProfileReader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fetcher: fetcher, profiles: profiles, logger: logger}
}

// CurrentWeight prefers the latest scale reading in the last days, then the
// manually entered profile weight.
func (r *Resolver) CurrentWeight(ctx context.Context, userID string, days int) (*types.WeightReading, error) {
	if days < 1 {
		days = 1
	}

	if r.fetcher != nil {
		bc, err := r.fetcher.FetchBodyComposition(ctx, userID, days)
		switch {
		case err == nil:
			if latest := types.LatestWeight(bc.Samples); latest != nil {
				at := latest.MeasuredAt
				return &types.WeightReading{ValueKg: latest.WeightKg, Source: types.WeightSourceHealthPlanet, MeasuredAt: &at}, nil
			}
		case errors.Is(err, shared.ErrNotConnected), errors.Is(err, shared.ErrConfigurationMissing):
		default:
			r.logger.Warn("HealthPlanet weight unavailable, falling back to profile", "user_id", userID, "error", err)
		}
	}

	p, err := r.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if p.WeightKg != nil {
		reading := &types.WeightReading{ValueKg: p.WeightKg, Source: types.WeightSourceManual}
		if !p.UpdatedAt.IsZero() {
			at := p.UpdatedAt
			reading.MeasuredAt = &at
		}
		return reading, nil
	}
	return &types.WeightReading{Source: types.WeightSourceNone}, nil
}
