package coach

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/fitline/server/pkg/coaching"
	"github.com/fitline/server/pkg/framework"
	infrapubsub "github.com/fitline/server/pkg/infrastructure/pubsub"
)

type fakeRunner struct {
	userID string
	kind   coaching.Kind
	dry    bool
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, userID string, kind coaching.Kind, dryRun bool) (*coaching.Result, error) {
	f.userID, f.kind, f.dry = userID, kind, dryRun
	return &coaching.Result{Kind: kind, OK: f.err == nil}, f.err
}

func triggerEvent(t *testing.T, trigger infrapubsub.CoachingTrigger) cloudevents.Event {
	t.Helper()
	e, err := infrapubsub.NewCloudEvent(infrapubsub.EventSource, infrapubsub.EventTypeCoachingTrigger, trigger)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestCoachHandler_Defaults(t *testing.T) {
	r := &fakeRunner{}
	fwCtx := &framework.FrameworkContext{Logger: slog.Default()}

	out, err := coachHandler(r, "demo")(context.Background(), triggerEvent(t, infrapubsub.CoachingTrigger{}), fwCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.userID != "demo" || r.kind != coaching.KindDaily {
		t.Errorf("Expected daily run for demo, got %s/%s", r.userID, r.kind)
	}
	if res, ok := out.(*coaching.Result); !ok || !res.OK {
		t.Errorf("Expected ok result, got %#v", out)
	}
}

func TestCoachHandler_PassesTrigger(t *testing.T) {
	r := &fakeRunner{err: errors.New("generation failed")}
	fwCtx := &framework.FrameworkContext{Logger: slog.Default()}

	_, err := coachHandler(r, "demo")(context.Background(),
		triggerEvent(t, infrapubsub.CoachingTrigger{UserID: "u2", Kind: "weekly", DryRun: true}), fwCtx)
	if err == nil {
		t.Fatal("Expected runner error to propagate")
	}
	if r.userID != "u2" || r.kind != coaching.KindWeekly || !r.dry {
		t.Errorf("Trigger not passed through: %+v", r)
	}
}
