package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"eligibility/internal/domain"
	"eligibility/internal/platform/config"
)

const (
	fieldCheckID     = "check_id"
	fieldBenefitType = "benefit_type"
	fieldCallbackURL = "callback_url"
)

// Stream is the Redis Streams transport. A consumer group provides the
// per-message lease: a delivered entry sits in this consumer's pending list
// until acknowledged, and only becomes claimable by others once it has been
// idle for the configured visibility window.
type Stream struct {
	client   redis.UniversalClient
	stream   string
	group    string
	consumer string
	// visibility is the lease duration after which an unacknowledged message
	// may be claimed by another consumer.
	visibility time.Duration
	logger     *zap.Logger
}

func NewStream(client redis.UniversalClient, cfg config.QueueConfig, logger *zap.Logger) *Stream {
	return &Stream{
		client:     client,
		stream:     cfg.Stream,
		group:      cfg.Group,
		consumer:   "worker-" + uuid.New().String()[:8],
		visibility: cfg.Visibility,
		logger:     logger,
	}
}

// EnsureGroup creates the stream and consumer group if they do not exist yet.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", s.group, err)
	}
	return nil
}

func (s *Stream) Enqueue(ctx context.Context, msg Message) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			fieldCheckID:     msg.CheckID,
			fieldBenefitType: string(msg.Type),
			fieldCallbackURL: msg.CallbackURL,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue check %s: %w", msg.CheckID, err)
	}
	return nil
}

// Dequeue first reclaims messages whose lease has expired, then reads new
// entries. Delivery counts come from the group's pending list.
func (s *Stream) Dequeue(ctx context.Context, max int64) ([]Message, error) {
	var entries []redis.XMessage

	claimed, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.visibility,
		Start:    "0-0",
		Count:    max,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("reclaim expired leases: %w", err)
	}
	entries = append(entries, claimed...)

	if remaining := max - int64(len(entries)); remaining > 0 {
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    remaining,
			Block:    -1,
		}).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("read new messages: %w", err)
		}
		for _, str := range streams {
			entries = append(entries, str.Messages...)
		}
	}

	if len(entries) == 0 {
		return nil, nil
	}

	deliveries, err := s.deliveryCounts(ctx)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(entries))
	for _, entry := range entries {
		msg := Message{ID: entry.ID, Deliveries: deliveries[entry.ID]}
		if v, ok := entry.Values[fieldCheckID].(string); ok {
			msg.CheckID = v
		}
		if v, ok := entry.Values[fieldBenefitType].(string); ok {
			msg.Type = domain.BenefitType(v)
		}
		if v, ok := entry.Values[fieldCallbackURL].(string); ok {
			msg.CallbackURL = v
		}
		if msg.CheckID == "" {
			// Malformed entry, drop it rather than loop on it forever.
			s.logger.Warn("dropping queue entry without check id", zap.String("entry_id", entry.ID))
			if err := s.Delete(ctx, entry.ID); err != nil {
				return nil, err
			}
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *Stream) deliveryCounts(ctx context.Context) (map[string]int64, error) {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   s.stream,
		Group:    s.group,
		Start:    "-",
		End:      "+",
		Count:    1024,
		Consumer: s.consumer,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read pending list: %w", err)
	}
	counts := make(map[string]int64, len(pending))
	for _, p := range pending {
		counts[p.ID] = p.RetryCount
	}
	return counts, nil
}

func (s *Stream) Delete(ctx context.Context, msgID string) error {
	if err := s.client.XAck(ctx, s.stream, s.group, msgID).Err(); err != nil {
		return fmt.Errorf("ack message %s: %w", msgID, err)
	}
	if err := s.client.XDel(ctx, s.stream, msgID).Err(); err != nil {
		return fmt.Errorf("delete message %s: %w", msgID, err)
	}
	return nil
}

// ResetVisibility backdates the message's idle time past the lease window so
// the next Dequeue on any consumer reclaims it immediately.
func (s *Stream) ResetVisibility(ctx context.Context, msgID string) error {
	idleMillis := strconv.FormatInt(s.visibility.Milliseconds()+1, 10)
	err := s.client.Do(ctx,
		"xclaim", s.stream, s.group, s.consumer, "0", msgID,
		"idle", idleMillis, "justid",
	).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("reset visibility of %s: %w", msgID, err)
	}
	return nil
}
