package firebase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/angelmondragon/restaurant-checkout/pkg/config"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

// Push is a notification addressed to an FCM topic.
type Push struct {
	Topic string
	Title string
	Body  string
	Data  map[string]string
}

type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Messenger sends pushes through Firebase Cloud Messaging.
type Messenger struct {
	client sender
}

// NewMessenger initializes the Firebase app from the configured credentials
// file, falling back to application default credentials when none is set.
func NewMessenger(ctx context.Context, cfg config.FirebaseConfig, gcp config.GCPConfig, logg *logger.Logger) (*Messenger, error) {
	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	var appCfg *fb.Config
	if gcp.ProjectID != "" {
		appCfg = &fb.Config{ProjectID: gcp.ProjectID}
	}
	app, err := fb.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "firebase messaging initialized")
	}
	return &Messenger{client: client}, nil
}

// Send delivers the push and returns the FCM message id.
func (m *Messenger) Send(ctx context.Context, push Push) (string, error) {
	if m == nil || m.client == nil {
		return "", errors.New("firebase messenger not initialized")
	}
	if strings.TrimSpace(push.Topic) == "" {
		return "", errors.New("push topic is required")
	}
	msg := &messaging.Message{
		Topic: push.Topic,
		Notification: &messaging.Notification{
			Title: push.Title,
			Body:  push.Body,
		},
		Data: push.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
	id, err := m.client.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("send push to %s: %w", push.Topic, err)
	}
	return id, nil
}

// IsPermanent reports errors that will not go away on redelivery.
func IsPermanent(err error) bool {
	return messaging.IsInvalidArgument(err) || messaging.IsUnregistered(err)
}
