package pubsub

import (
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

const (
	EventSource = "/fitline/server"

	EventTypeMetricsIngested = "com.fitline.metrics.ingested"
	EventTypeCoachingTrigger = "com.fitline.coaching.trigger"
)

// MetricsIngested announces freshly persisted data for a user.
type MetricsIngested struct {
	UserID   string   `json:"user_id"`
	Kind     string   `json:"kind"`
	Dates    []string `json:"dates,omitempty"`
	Samples  int      `json:"samples,omitempty"`
	Degraded bool     `json:"degraded"`
}

// CoachingTrigger asks the coaching function to run one report kind.
type CoachingTrigger struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// NewCloudEvent creates a standardized CloudEvent v1.0
func NewCloudEvent(source, eventType string, data interface{}) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetSpecVersion("1.0")
	e.SetID(uuid.NewString())
	e.SetType(eventType)
	e.SetSource(source)
	e.SetTime(time.Now())

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, err
	}

	return e, nil
}
