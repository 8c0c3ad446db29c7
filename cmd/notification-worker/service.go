package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Redis    pinger
	PubSub   pinger
	Consumer runner
}

// Service checks the worker's dependencies once and then runs the staff push
// consumer until it stops or the context is canceled.
type Service struct {
	logg     *logger.Logger
	deps     map[string]pinger
	consumer runner
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.Redis == nil:
		return nil, errors.New("redis client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Consumer == nil:
		return nil, errors.New("notification consumer is required")
	}
	return &Service{
		logg:     params.Logger,
		deps:     map[string]pinger{"redis": params.Redis, "pubsub": params.PubSub},
		consumer: params.Consumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, name := range []string{"redis", "pubsub"} {
		if err := s.deps[name].Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	s.logg.Info(ctx, "notification worker dependencies ready")

	err := s.consumer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "notification consumer stopped unexpectedly", err)
	}
	return err
}
