package notifications

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"

	"github.com/fitline/server/pkg/testing/mocks"
)

type fakeSender struct {
	resp *messaging.BatchResponse
	err  error
	msg  *messaging.MulticastMessage
}

func (f *fakeSender) SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.msg = m
	return f.resp, f.err
}

func TestSend_NoTokens(t *testing.T) {
	db := mocks.NewMemoryDatabase()
	res := newFCMAdapter(&fakeSender{}, db, nil).Send(context.Background(), "demo", "t", "b")
	if res.Delivered || res.Reason != ReasonNoTokens {
		t.Errorf("Expected no_tokens, got %+v", res)
	}
}

func TestSend_NotConfigured(t *testing.T) {
	var a *FCMAdapter
	if res := a.Send(context.Background(), "demo", "t", "b"); res.Reason != ReasonNotConfigured {
		t.Errorf("Expected not_configured, got %+v", res)
	}
}

func TestSend_Delivered(t *testing.T) {
	db := mocks.NewMemoryDatabase()
	db.SetFCMTokens("demo", "tok-a", "tok-b")
	sender := &fakeSender{resp: &messaging.BatchResponse{
		SuccessCount: 2,
		Responses:    []*messaging.SendResponse{{Success: true}, {Success: true}},
	}}

	res := newFCMAdapter(sender, db, nil).Send(context.Background(), "demo", "Daily coaching", "Walk more")
	if !res.Delivered {
		t.Fatalf("Expected delivery, got %+v", res)
	}
	if sender.msg.Notification.Title != "Daily coaching" || len(sender.msg.Tokens) != 2 {
		t.Errorf("Unexpected message: %+v", sender.msg)
	}
}

func TestSend_TransportFailure(t *testing.T) {
	db := mocks.NewMemoryDatabase()
	db.SetFCMTokens("demo", "tok-a")
	sender := &fakeSender{err: errors.New("unavailable")}

	res := newFCMAdapter(sender, db, nil).Send(context.Background(), "demo", "t", "b")
	if res.Delivered || res.Reason != ReasonSendFailed {
		t.Errorf("Expected send_failed, got %+v", res)
	}
}
