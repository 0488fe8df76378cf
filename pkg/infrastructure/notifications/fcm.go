package notifications

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"github.com/fitline/server/pkg/types"
)

const (
	ReasonNotConfigured = "not_configured"
	ReasonNoTokens      = "no_tokens"
	ReasonSendFailed    = "send_failed"
	ReasonAllFailed     = "all_failed"
)

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// TokenStore reads and prunes a user's registered device tokens.
type TokenStore interface {
	GetFCMTokens(ctx context.Context, userID string) ([]string, error)
	RemoveFCMTokens(ctx context.Context, userID string, tokens []string) error
}

// FCMAdapter implements shared.Notifier on Firebase Cloud Messaging.
type FCMAdapter struct {
	client multicastSender
	tokens TokenStore
	logger *slog.Logger
}

func NewFCMAdapter(ctx context.Context, app *firebase.App, tokens TokenStore, logger *slog.Logger) (*FCMAdapter, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return newFCMAdapter(client, tokens, logger), nil
}

func newFCMAdapter(client multicastSender, tokens TokenStore, logger *slog.Logger) *FCMAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FCMAdapter{client: client, tokens: tokens, logger: logger}
}

// Send delivers to every registered device of userID. Delivered is true if
// at least one device accepted the message.
func (a *FCMAdapter) Send(ctx context.Context, userID, title, body string) types.NotifyResult {
	if a == nil || a.client == nil {
		return types.NotifyResult{Reason: ReasonNotConfigured}
	}

	tokens, err := a.tokens.GetFCMTokens(ctx, userID)
	if err != nil {
		a.logger.Warn("Failed to read FCM tokens", "user_id", userID, "error", err)
		return types.NotifyResult{Reason: ReasonSendFailed}
	}
	if len(tokens) == 0 {
		a.logger.Debug("No tokens for user, skipping notification", "user_id", userID)
		return types.NotifyResult{Reason: ReasonNoTokens}
	}

	a.logger.Info("Sending push notification", "user_id", userID, "token_count", len(tokens), "title", title)

	response, err := a.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	if err != nil {
		a.logger.Warn("Failed to send multicast message", "user_id", userID, "error", err)
		return types.NotifyResult{Reason: ReasonSendFailed}
	}

	if response.FailureCount > 0 {
		a.logger.Warn("Some push notifications failed to send",
			"user_id", userID,
			"failure_count", response.FailureCount,
			"success_count", response.SuccessCount,
		)
		a.cleanupDeadTokens(ctx, userID, tokens, response.Responses)
	}

	if response.SuccessCount == 0 {
		return types.NotifyResult{Reason: ReasonAllFailed}
	}
	return types.NotifyResult{Delivered: true}
}

// cleanupDeadTokens removes tokens that FCM reports as no longer registered.
func (a *FCMAdapter) cleanupDeadTokens(ctx context.Context, userID string, tokens []string, responses []*messaging.SendResponse) {
	var dead []string
	for i, resp := range responses {
		if i < len(tokens) && resp.Error != nil && messaging.IsRegistrationTokenNotRegistered(resp.Error) {
			dead = append(dead, tokens[i])
		}
	}
	if len(dead) == 0 {
		return
	}

	a.logger.Info("Removing dead FCM tokens", "user_id", userID, "count", len(dead))
	if err := a.tokens.RemoveFCMTokens(ctx, userID, dead); err != nil {
		a.logger.Error("Failed to remove dead FCM tokens", "user_id", userID, "error", err)
	}
}
