package notification

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Subscriber feeds wake-ups published by any instance into the local hub.
type Subscriber struct {
	client redis.UniversalClient
	hub    *Hub
	logger *slog.Logger
	ready  chan struct{}
}

func NewSubscriber(client redis.UniversalClient, hub *Hub, logger *slog.Logger) *Subscriber {
	return &Subscriber{client: client, hub: hub, logger: logger, ready: make(chan struct{})}
}

// Ready is closed once the pattern subscription is confirmed.
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Run blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	ps := s.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	close(s.ready)
	s.logger.InfoContext(ctx, "notification subscriber started", "pattern", ChannelPrefix+"*")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			user, err := UserFromChannel(msg.Channel)
			if err != nil {
				s.logger.WarnContext(ctx, "dropping notification", "channel", msg.Channel, "error", err)
				continue
			}
			s.hub.Signal(user)
		}
	}
}
