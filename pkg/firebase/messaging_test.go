package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
)

type recordingSender struct {
	sent []*messaging.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, msg)
	return "projects/p/messages/1", nil
}

func TestSendBuildsTopicMessage(t *testing.T) {
	sender := &recordingSender{}
	m := &Messenger{client: sender}

	id, err := m.Send(context.Background(), Push{
		Topic: "restaurant-staff",
		Title: "New order #042",
		Body:  "Pickup for Ana",
		Data:  map[string]string{"orderId": "abc"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id == "" || len(sender.sent) != 1 {
		t.Fatalf("expected one message sent")
	}
	msg := sender.sent[0]
	if msg.Topic != "restaurant-staff" || msg.Notification.Title != "New order #042" || msg.Data["orderId"] != "abc" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.APNS == nil || msg.APNS.Payload.Aps.Sound != "default" {
		t.Fatalf("expected an audible alert")
	}
}

func TestSendValidation(t *testing.T) {
	var nilMessenger *Messenger
	if _, err := nilMessenger.Send(context.Background(), Push{Topic: "t"}); err == nil {
		t.Fatalf("expected error from nil messenger")
	}
	m := &Messenger{client: &recordingSender{}}
	if _, err := m.Send(context.Background(), Push{}); err == nil {
		t.Fatalf("expected error for blank topic")
	}
	failing := &Messenger{client: &recordingSender{err: errors.New("unavailable")}}
	if _, err := failing.Send(context.Background(), Push{Topic: "t"}); err == nil {
		t.Fatalf("expected send error")
	}
}
