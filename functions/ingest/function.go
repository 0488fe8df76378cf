package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/fitline/server/pkg/bootstrap"
	"github.com/fitline/server/pkg/framework"
	"github.com/fitline/server/pkg/persistence"
	"github.com/fitline/server/pkg/types"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("IngestRecent", IngestRecent)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx, "ingest")
	})
	return svc, svcErr
}

// IngestRecent is the scheduled entry point that persists the last days of
// provider data.
func IngestRecent(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("ingest", svc, ingestHandler(svc.Persistence, svc.Config.DefaultUserID))(ctx, e)
}

// Request is the scheduler payload. Days defaults to seven.
type Request struct {
	UserID string `json:"user_id"`
	Days   int    `json:"days"`
	Body   bool   `json:"body_composition"`
}

type saver interface {
	SaveRecentDays(ctx context.Context, userID string, n int) (*types.SaveResult, error)
	IngestBodyComposition(ctx context.Context, userID string, n int) ([]types.BodyCompositionSample, types.WarehouseResult, error)
}

func ingestHandler(s saver, defaultUserID string) framework.HandlerFunc {
	return func(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
		req := Request{UserID: defaultUserID}
		if len(e.Data()) > 0 {
			if err := framework.DecodePayload(e, &req); err != nil {
				return nil, err
			}
		}
		if req.UserID == "" {
			req.UserID = defaultUserID
		}

		saved, err := s.SaveRecentDays(ctx, req.UserID, req.Days)
		if err != nil {
			return nil, fmt.Errorf("save recent days: %w", err)
		}
		out := map[string]interface{}{
			"saved":     saved.Saved,
			"warehouse": saved.Warehouse,
		}
		if err := persistence.DegradedError(saved.Warehouse); err != nil {
			fwCtx.Logger.Warn("Warehouse mirror degraded", "error", err)
			out["degraded"] = err.Error()
		}
		fwCtx.Logger.Info("Recent days ingested", "saved", saved.Saved, "warehouse_ok", saved.Warehouse.OK)

		if req.Body {
			samples, wr, err := s.IngestBodyComposition(ctx, req.UserID, req.Days)
			if err != nil {
				// Day metrics are already stored; report the body failure alongside.
				fwCtx.Logger.Warn("Body composition ingest failed", "error", err)
				out["body_error"] = err.Error()
			} else {
				out["body_samples"] = len(samples)
				out["body_warehouse"] = wr
			}
		}
		return out, nil
	}
}
