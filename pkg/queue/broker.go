package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PublisherI is the send side of the broker as seen by the pipeline: fire a
// message at an exchange/routing-key pair, optionally after a delay.
type PublisherI interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
	PublishDelayed(ctx context.Context, exchange, routingKey string, body []byte, delay time.Duration) error
}

// Broker is a Redis-backed at-least-once message broker. Each queue is a
// list; delayed deliveries sit in a companion sorted set scored by their due
// time and are drained into the list by the consumer loop.
type Broker struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewBroker(rdb *redis.Client, log *zap.Logger) *Broker {
	return &Broker{rdb: rdb, log: log}
}

func queueKey(queue string) string {
	return "sentra:queue:" + queue
}

func delayedKey(queue string) string {
	return "sentra:queue:" + queue + ":delayed"
}

// delayedMember prefixes the body with a unique ID so two schedules of an
// identical payload stay distinct members of the sorted set.
func delayedMember(id string, body []byte) string {
	return id + " " + string(body)
}

// delayedMemberBody strips the ID prefix from a sorted-set member. A member
// without a prefix is returned unchanged.
func delayedMemberBody(member string) []byte {
	if i := strings.IndexByte(member, ' '); i >= 0 {
		return []byte(member[i+1:])
	}
	return []byte(member)
}

// Publish routes the message through the binding table and appends it to the
// bound queue.
func (b *Broker) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	queue, ok := QueueFor(exchange, routingKey)
	if !ok {
		return fmt.Errorf("no queue bound to exchange %q routing key %q", exchange, routingKey)
	}
	if err := b.rdb.LPush(ctx, queueKey(queue), body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	b.log.Debug("Published message",
		zap.String("exchange", exchange),
		zap.String("routingKey", routingKey),
		zap.String("queue", queue))
	return nil
}

// PublishDelayed schedules the message for delivery after the given delay.
// Entries are prefixed with a unique ID so two republishes of an identical
// payload stay distinct members of the sorted set.
func (b *Broker) PublishDelayed(ctx context.Context, exchange, routingKey string, body []byte, delay time.Duration) error {
	if delay <= 0 {
		return b.Publish(ctx, exchange, routingKey, body)
	}
	queue, ok := QueueFor(exchange, routingKey)
	if !ok {
		return fmt.Errorf("no queue bound to exchange %q routing key %q", exchange, routingKey)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	member := delayedMember(id.String(), body)
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := b.rdb.ZAdd(ctx, delayedKey(queue), redis.Z{Score: due, Member: member}).Err(); err != nil {
		return fmt.Errorf("schedule on %s: %w", queue, err)
	}
	return nil
}

// drainDue moves due delayed entries onto the queue list. ZRem guards
// against two drainers delivering the same entry twice.
func (b *Broker) drainDue(ctx context.Context, queue string) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	members, err := b.rdb.ZRangeByScore(ctx, delayedKey(queue), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil || len(members) == 0 {
		return
	}
	for _, member := range members {
		removed, err := b.rdb.ZRem(ctx, delayedKey(queue), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := b.rdb.LPush(ctx, queueKey(queue), delayedMemberBody(member)).Err(); err != nil {
			b.log.Error("Failed to deliver delayed message", zap.String("queue", queue), zap.Error(err))
		}
	}
}

// pop blocks for up to timeout waiting for the next message on the queue.
func (b *Broker) pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := b.rdb.BRPop(ctx, timeout, queueKey(queue)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	// BRPop returns [key, value]
	if len(res) != 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}
