package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	id "zimmet/pkg/domain"
	"zimmet/pkg/platform/circuit"
	pstrings "zimmet/pkg/platform/strings"
)

// ChannelPrefix namespaces the per-user pub/sub channels.
const ChannelPrefix = "zimmet:notify:"

// EventLedgerChanged is the only message type pushed to clients.
const EventLedgerChanged = "ledger.changed"

// Message is the wake-up payload.
type Message struct {
	Type string `json:"type"`
}

var ledgerChanged, _ = json.Marshal(Message{Type: EventLedgerChanged})

// Channel returns the pub/sub channel of user.
func Channel(user id.UserID) string {
	return ChannelPrefix + user.String()
}

// UserFromChannel parses the user id out of a channel name.
func UserFromChannel(channel string) (id.UserID, error) {
	raw, ok := strings.CutPrefix(channel, ChannelPrefix)
	if !ok {
		return id.UserID{}, fmt.Errorf("unexpected channel %q", channel)
	}
	return id.ParseUserID(raw)
}

// Relay publishes wake-ups so every instance can reach its own sessions.
// Without Redis, or while Redis is failing, it signals the local hub only.
type Relay struct {
	client  redis.UniversalClient
	hub     *Hub
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type RelayOption func(*Relay)

func WithRedis(client redis.UniversalClient) RelayOption {
	return func(r *Relay) {
		r.client = client
	}
}

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) RelayOption {
	return func(r *Relay) {
		r.breaker = b
	}
}

func NewRelay(hub *Hub, opts ...RelayOption) *Relay {
	r := &Relay{
		hub:     hub,
		breaker: circuit.New("notification-relay"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Notify wakes users. A Redis failure still reaches local sessions and is
// returned so the caller can log it.
func (r *Relay) Notify(ctx context.Context, users []id.UserID) error {
	users = pstrings.Dedupe(users)
	if len(users) == 0 {
		return nil
	}
	if r.client == nil {
		r.hub.Signal(users...)
		return nil
	}

	err := r.publish(ctx, users)
	if err == nil {
		if _, change := r.breaker.RecordSuccess(); change.Closed {
			r.logger.InfoContext(ctx, "notification relay recovered", "breaker", r.breaker.Name())
		}
		return nil
	}

	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.logger.WarnContext(ctx, "notification relay degraded to local delivery",
			"breaker", r.breaker.Name(),
			"error", err,
		)
	}
	r.hub.Signal(users...)
	return fmt.Errorf("publish notification: %w", err)
}

func (r *Relay) publish(ctx context.Context, users []id.UserID) error {
	pipe := r.client.Pipeline()
	for _, u := range users {
		pipe.Publish(ctx, Channel(u), ledgerChanged)
	}
	_, err := pipe.Exec(ctx)
	return err
}
