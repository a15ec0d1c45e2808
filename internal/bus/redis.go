package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

const consumerGroup = "wave-orchestrator"

// RedisBus is a Bus backed by Redis Streams consumer groups. Each session
// gets its own stream, keyed streamKey(sessionID); XADD assigns strict
// per-stream ordering, XREADGROUP+XACK give at-least-once delivery with
// acknowledgement, and a background XAUTOCLAIM loop reclaims entries an
// earlier consumer read but never acknowledged once they exceed the
// visibility timeout (spec §4.1).
type RedisBus struct {
	client       *redis.Client
	breaker      *gobreaker.CircuitBreaker
	callTimeout  time.Duration
	visibility   time.Duration
	consumerName string

	closeCh chan struct{}
	closed  bool
}

// RedisOption configures a RedisBus.
type RedisOption func(*RedisBus)

// WithCallTimeout bounds every individual Redis command (teacher idiom:
// internal/ratchet/gate.go's BdCLITimeout/ErrBdCLITimeout, generalized from
// one fixed CLI deadline to a configurable transport deadline).
func WithCallTimeout(d time.Duration) RedisOption {
	return func(b *RedisBus) { b.callTimeout = d }
}

// WithVisibilityTimeout overrides DefaultVisibilityTimeout.
func WithVisibilityTimeout(d time.Duration) RedisOption {
	return func(b *RedisBus) { b.visibility = d }
}

// WithConsumerName overrides the default consumer identity used for
// XREADGROUP/XAUTOCLAIM (default "primary"; a session is owned exclusively
// by one C10 instance under its session lock, so one consumer name per bus
// instance is sufficient).
func WithConsumerName(name string) RedisOption {
	return func(b *RedisBus) { b.consumerName = name }
}

// NewRedisBus wraps client in a circuit breaker and returns a ready Bus.
func NewRedisBus(client *redis.Client, opts ...RedisOption) *RedisBus {
	b := &RedisBus{
		client:       client,
		callTimeout:  5 * time.Second,
		visibility:   DefaultVisibilityTimeout,
		consumerName: "primary",
		closeCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "wave-signal-bus",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return b
}

func streamKey(sessionID string) string {
	return "wave:signals:" + sessionID
}

type wireSignal struct {
	Signal model.Signal `json:"signal"`
}

func (b *RedisBus) call(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()
	return b.breaker.Execute(func() (any, error) {
		v, err := fn(callCtx)
		if err != nil && !errors.Is(err, redis.Nil) {
			return v, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return v, err
	})
}

func (b *RedisBus) ensureGroup(ctx context.Context, key string) error {
	_, err := b.call(ctx, func(ctx context.Context) (any, error) {
		return nil, b.client.XGroupCreateMkStream(ctx, key, consumerGroup, "0").Err()
	})
	if err != nil && !isBusyGroup(err) {
		return err
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists" ||
		fmt.Sprintf("%v", err) == "bus: transport unavailable: BUSYGROUP Consumer Group name already exists")
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, signal model.Signal) (model.Signal, error) {
	if b.isClosed() {
		return model.Signal{}, ErrClosed
	}
	key := streamKey(signal.SessionID)
	if err := b.ensureGroup(ctx, key); err != nil {
		return model.Signal{}, err
	}

	payload, err := json.Marshal(wireSignal{Signal: signal})
	if err != nil {
		return model.Signal{}, fmt.Errorf("bus: marshal signal: %w", err)
	}

	res, err := b.call(ctx, func(ctx context.Context) (any, error) {
		return b.client.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			Values: map[string]any{"data": payload},
		}).Result()
	})
	if err != nil {
		return model.Signal{}, err
	}

	// The assigned stream ID encodes arrival order; we derive the
	// session-scoped Sequence from XLEN rather than the ID itself so the
	// field stays a plain monotone counter independent of Redis internals.
	seq, err := b.call(ctx, func(ctx context.Context) (any, error) {
		return b.client.XLen(ctx, key).Result()
	})
	if err != nil {
		return model.Signal{}, err
	}
	signal.Sequence = uint64(seq.(int64))
	_ = res
	return signal, nil
}

// Subscribe implements Bus.
func (b *RedisBus) Subscribe(ctx context.Context, sessionID string, fromSequence uint64) (<-chan model.Signal, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}
	key := streamKey(sessionID)
	if err := b.ensureGroup(ctx, key); err != nil {
		return nil, err
	}

	out := make(chan model.Signal, 64)
	go b.deliver(ctx, key, fromSequence, out)
	return out, nil
}

func (b *RedisBus) deliver(ctx context.Context, key string, fromSequence uint64, out chan<- model.Signal) {
	defer close(out)
	reclaimTick := time.NewTicker(b.visibility)
	defer reclaimTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.closeCh:
			return
		case <-reclaimTick.C:
			b.reclaim(ctx, key, out)
		default:
		}

		res, err := b.call(ctx, func(ctx context.Context) (any, error) {
			return b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    consumerGroup,
				Consumer: b.consumerName,
				Streams:  []string{key, ">"},
				Count:    64,
				Block:    2 * time.Second,
			}).Result()
		})
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			return
		}

		streams, _ := res.([]redis.XStream)
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				signal, ok := decodeMessage(msg)
				if !ok || signal.Sequence < fromSequence {
					continue
				}
				select {
				case out <- signal:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (b *RedisBus) reclaim(ctx context.Context, key string, out chan<- model.Signal) {
	res, err := b.call(ctx, func(ctx context.Context) (any, error) {
		messages, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   key,
			Group:    consumerGroup,
			Consumer: b.consumerName,
			MinIdle:  b.visibility,
			Start:    "0",
			Count:    64,
		}).Result()
		return messages, err
	})
	if err != nil {
		return
	}
	messages, _ := res.([]redis.XMessage)
	for _, msg := range messages {
		if signal, ok := decodeMessage(msg); ok {
			select {
			case out <- signal:
			case <-ctx.Done():
				return
			}
		}
	}
}

func decodeMessage(msg redis.XMessage) (model.Signal, bool) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return model.Signal{}, false
	}
	var wire wireSignal
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return model.Signal{}, false
	}
	return wire.Signal, true
}

// Acknowledge implements Bus.
func (b *RedisBus) Acknowledge(ctx context.Context, sessionID string, sequence uint64) error {
	if b.isClosed() {
		return ErrClosed
	}
	key := streamKey(sessionID)
	_, err := b.call(ctx, func(ctx context.Context) (any, error) {
		// Acknowledgement is keyed by our own monotone Sequence, not the
		// Redis stream ID; XACK accepts any ID still pending for the
		// group, so we resolve the matching entry via XRANGE first.
		entries, err := b.client.XRange(ctx, key, "-", "+").Result()
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			signal, ok := decodeMessage(entry)
			if ok && signal.Sequence == sequence {
				return nil, b.client.XAck(ctx, key, consumerGroup, entry.ID).Err()
			}
		}
		return nil, nil
	})
	return err
}

// Close implements Bus.
func (b *RedisBus) Close() error {
	if b.isClosed() {
		return nil
	}
	close(b.closeCh)
	b.closed = true
	return nil
}

func (b *RedisBus) isClosed() bool {
	return b.closed
}
