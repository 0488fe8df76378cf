package coach

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/fitline/server/pkg/bootstrap"
	"github.com/fitline/server/pkg/coaching"
	"github.com/fitline/server/pkg/framework"
	infrapubsub "github.com/fitline/server/pkg/infrastructure/pubsub"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("RunCoaching", RunCoaching)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx, "coach")
	})
	return svc, svcErr
}

// RunCoaching is the entry point for topic-coaching-trigger messages.
func RunCoaching(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("coach", svc, coachHandler(svc.Coaching, svc.Config.DefaultUserID))(ctx, e)
}

type runner interface {
	Run(ctx context.Context, userID string, kind coaching.Kind, dryRun bool) (*coaching.Result, error)
}

func coachHandler(r runner, defaultUserID string) framework.HandlerFunc {
	return func(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
		var trigger infrapubsub.CoachingTrigger
		if err := framework.DecodePayload(e, &trigger); err != nil {
			return nil, err
		}
		if trigger.UserID == "" {
			trigger.UserID = defaultUserID
		}
		if trigger.Kind == "" {
			trigger.Kind = string(coaching.KindDaily)
		}

		fwCtx.Logger.Info("Running coaching", "kind", trigger.Kind, "dry_run", trigger.DryRun)
		return r.Run(ctx, trigger.UserID, coaching.Kind(trigger.Kind), trigger.DryRun)
	}
}
