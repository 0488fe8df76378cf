package framework

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"

	"github.com/fitline/server/pkg/bootstrap"
	"github.com/fitline/server/pkg/infrastructure/sentry"
	"github.com/fitline/server/pkg/types"
)

// FrameworkContext contains dependencies injected by the framework
type FrameworkContext struct {
	Service     *bootstrap.Service
	Logger      *slog.Logger
	ExecutionID string
}

// HandlerFunc is the signature for a cloud function handler
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error)

// PubSubMessage is the push envelope Pub/Sub delivers through Eventarc.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// WrapCloudEvent wraps a handler with execution records in the document
// store, a request-scoped logger and panic capture.
// Handles both HTTP and Pub/Sub triggers
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) (err error) {
		userID := extractUserID(e)

		triggerType := "pubsub"
		if e.Type() == "google.cloud.functions.http" {
			triggerType = "http"
		}

		logger := svc.Logger
		if logger == nil {
			logger = bootstrap.NewLogger(serviceName)
		}
		execID := uuid.NewString()
		logger = logger.With("execution_id", execID)
		if userID != "" {
			logger = logger.With("user_id", userID)
		}

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				sentry.CaptureException(err, userID, map[string]string{"service": serviceName}, logger)
				logger.Error("Function panicked", "panic", r)
				finish(ctx, svc, logger, execID, err, nil)
			}
		}()

		record := &types.ExecutionRecord{
			ExecutionID: execID,
			Service:     serviceName,
			UserID:      userID,
			TriggerType: triggerType,
			Status:      types.ExecutionStarted,
			StartedAt:   time.Now().UTC(),
		}
		if logErr := svc.DB.SetExecution(ctx, record); logErr != nil {
			// Continue anyway - the record is bookkeeping only
			logger.Error("Failed to log execution start", "error", logErr)
		}
		logger.Info("Function started", "trigger_type", triggerType)

		fwCtx := &FrameworkContext{
			Service:     svc,
			Logger:      logger,
			ExecutionID: execID,
		}

		outputs, handlerErr := handler(ctx, e, fwCtx)
		if handlerErr != nil {
			logger.Error("Function failed", "error", handlerErr)
			sentry.CaptureException(handlerErr, userID, map[string]string{"service": serviceName}, logger)
		} else {
			logger.Info("Function completed successfully")
		}
		finish(ctx, svc, logger, execID, handlerErr, outputs)
		return handlerErr
	}
}

func finish(ctx context.Context, svc *bootstrap.Service, logger *slog.Logger, execID string, handlerErr error, outputs interface{}) {
	data := map[string]interface{}{
		"status":       string(types.ExecutionSuccess),
		"completed_at": time.Now().UTC(),
	}
	if handlerErr != nil {
		data["status"] = string(types.ExecutionFailed)
		data["error"] = handlerErr.Error()
	}
	if outputs != nil {
		if m, ok := toMap(outputs); ok {
			data["outputs"] = m
		}
	}
	if logErr := svc.DB.UpdateExecution(ctx, execID, data); logErr != nil {
		logger.Warn("Failed to log execution result", "error", logErr)
	}
}

// toMap round-trips outputs through JSON so Firestore stores plain maps.
func toMap(v interface{}) (map[string]interface{}, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// DecodePayload unmarshals the event payload into v, unwrapping a Pub/Sub
// push envelope when present.
func DecodePayload(e event.Event, v interface{}) error {
	var msg PubSubMessage
	if err := json.Unmarshal(e.Data(), &msg); err == nil && len(msg.Message.Data) > 0 {
		return json.Unmarshal(msg.Message.Data, v)
	}
	if err := json.Unmarshal(e.Data(), v); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}

func extractUserID(e event.Event) string {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := DecodePayload(e, &payload); err != nil {
		return ""
	}
	return payload.UserID
}
