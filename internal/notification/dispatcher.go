// Package notification publishes progression events for the external
// push/email delivery workers. Publishing is fire-and-forget: a lost event
// costs a notification, never a progression update.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/limbo/ecotrack/pkg/entity"
)

const (
	channel        = "ecotrack:notifications"
	publishTimeout = 2 * time.Second
)

// Event kinds consumed by the delivery workers.
const (
	EventStreakRecord       = "streak_record"
	EventBadgeEarned        = "badge_earned"
	EventChallengeCompleted = "challenge_completed"
	EventStreakAtRisk       = "streak_at_risk"
	EventStreakBroken       = "streak_broken"
)

type Event struct {
	Type       string     `json:"type"`
	UserID     uuid.UUID  `json:"uid"`
	Streak     int        `json:"streak,omitempty"`
	BadgeID    *uuid.UUID `json:"badge_id,omitempty"`
	BadgeName  string     `json:"badge_name,omitempty"`
	BadgeIcon  string     `json:"badge_icon,omitempty"`
	Challenge  *uuid.UUID `json:"challenge_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Reward     int        `json:"reward,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type RedisDispatcher struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisDispatcher(addr, password string, logger *slog.Logger) *RedisDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  3 * time.Second,
		WriteTimeout: publishTimeout,
	})
	return &RedisDispatcher{
		client: client,
		logger: logger,
	}
}

// publish marshals and sends the event on its own goroutine. The caller's
// context is deliberately not reused: the request may finish before the
// publish does.
func (d *RedisDispatcher) publish(event Event) {
	event.OccurredAt = time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		payload, err := sonic.ConfigDefault.Marshal(event)
		if err != nil {
			d.logger.Error("marshalling notification event error", slog.String("type", event.Type), slog.String("error", err.Error()))
			return
		}
		if err = d.client.Publish(ctx, channel, payload).Err(); err != nil {
			d.logger.Error("publishing notification event error", slog.String("type", event.Type), slog.String("error", err.Error()))
		}
	}()
}

func (d *RedisDispatcher) StreakRecordReached(ctx context.Context, uid uuid.UUID, streak int) {
	d.publish(Event{Type: EventStreakRecord, UserID: uid, Streak: streak})
}

func (d *RedisDispatcher) BadgeEarned(ctx context.Context, uid uuid.UUID, badge *entity.Badge) {
	if badge == nil {
		return
	}
	d.publish(Event{
		Type:      EventBadgeEarned,
		UserID:    uid,
		BadgeID:   &badge.ID,
		BadgeName: badge.Name,
		BadgeIcon: badge.Icon,
	})
}

func (d *RedisDispatcher) ChallengeCompleted(ctx context.Context, uid uuid.UUID, challenge *entity.Challenge) {
	if challenge == nil {
		return
	}
	d.publish(Event{
		Type:      EventChallengeCompleted,
		UserID:    uid,
		Challenge: &challenge.ID,
		Name:      challenge.Name,
		Reward:    challenge.RewardPoints,
	})
}

func (d *RedisDispatcher) StreakAtRisk(ctx context.Context, uid uuid.UUID, streak int) {
	d.publish(Event{Type: EventStreakAtRisk, UserID: uid, Streak: streak})
}

func (d *RedisDispatcher) StreakBroken(ctx context.Context, uid uuid.UUID, lostStreak int) {
	d.publish(Event{Type: EventStreakBroken, UserID: uid, Streak: lostStreak})
}

// NopDispatcher drops every event. Used in tests and when redis is not
// configured.
type NopDispatcher struct{}

func (NopDispatcher) StreakRecordReached(ctx context.Context, uid uuid.UUID, streak int) {}

func (NopDispatcher) BadgeEarned(ctx context.Context, uid uuid.UUID, badge *entity.Badge) {}

func (NopDispatcher) ChallengeCompleted(ctx context.Context, uid uuid.UUID, ch *entity.Challenge) {}

func (NopDispatcher) StreakAtRisk(ctx context.Context, uid uuid.UUID, streak int) {}

func (NopDispatcher) StreakBroken(ctx context.Context, uid uuid.UUID, lostStreak int) {}
