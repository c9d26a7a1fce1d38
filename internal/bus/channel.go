// Package bus provides event bus implementations for FraudGuard.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

var (
	ErrClosed     = errors.New("bus is closed")
	ErrBufferFull = errors.New("subscriber buffer full")
)

// ChannelBus implements EventBus using Go channels.
// Used as the Community tier event bus.
type ChannelBus struct {
	mu            sync.RWMutex
	bufferSize    int
	subscriptions map[string][]*channelSubscription
	closed        bool
	wg            sync.WaitGroup
}

type channelSubscription struct {
	bus     *ChannelBus
	id      string
	key     string
	topic   string
	handler domain.MessageHandler
	msgCh   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewChannelBus creates a new channel-based event bus.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize:    bufferSize,
		subscriptions: make(map[string][]*channelSubscription),
	}
}

// Publish delivers a message to the tenant's subscribers and to AllTenants
// subscribers of the topic. It never blocks: a full subscriber buffer is
// reported as ErrBufferFull after the other subscribers have been served.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if err := validateTenant(tenantID, false); err != nil {
		return err
	}

	msg := newMessage(ctx, tenantID, topic, payload)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	subs := b.subscriptions[b.makeKey(tenantID, topic)]
	wildcard := b.subscriptions[b.makeKey(domain.AllTenants, topic)]

	var dropped int
	for _, group := range [][]*channelSubscription{subs, wildcard} {
		for _, sub := range group {
			select {
			case sub.msgCh <- msg:
			default:
				dropped++
				slog.Warn("dropping message for slow subscriber",
					"topic", topic,
					"tenant_id", tenantID,
					"subscription_id", sub.id,
				)
			}
		}
	}

	if dropped > 0 {
		return fmt.Errorf("%w: %d subscriber(s) on %s", ErrBufferFull, dropped, topic)
	}
	return nil
}

// Subscribe registers a handler for a topic. tenantID may be
// domain.AllTenants.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if err := validateTenant(tenantID, true); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)

	sub := &channelSubscription{
		bus:     b,
		id:      uuid.New().String(),
		key:     b.makeKey(tenantID, topic),
		topic:   topic,
		handler: handler,
		msgCh:   make(chan *domain.Message, b.bufferSize),
		ctx:     subCtx,
		cancel:  cancel,
	}

	b.wg.Add(1)
	go b.handleMessages(sub)

	b.subscriptions[sub.key] = append(b.subscriptions[sub.key], sub)

	return sub, nil
}

// handleMessages processes messages for a subscription until it is
// cancelled.
func (b *ChannelBus) handleMessages(sub *channelSubscription) {
	defer b.wg.Done()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg := <-sub.msgCh:
			ctx := extractTrace(sub.ctx, msg)
			if err := sub.handler(ctx, msg); err != nil {
				slog.Error("handler error",
					"topic", msg.Topic,
					"message_id", msg.ID,
					"error", err,
				)
			}
		}
	}
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close cancels every subscription and waits for in-flight handlers.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.subscriptions = make(map[string][]*channelSubscription)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *ChannelBus) makeKey(tenantID, topic string) string {
	return tenantID + ":" + topic
}

func (b *ChannelBus) remove(sub *channelSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[sub.key]
	for i, s := range subs {
		if s == sub {
			b.subscriptions[sub.key] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscriptions[sub.key]) == 0 {
		delete(b.subscriptions, sub.key)
	}
}

// Unsubscribe stops receiving messages.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	s.bus.remove(s)
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}

// newMessage builds the envelope and injects the caller's trace context.
func newMessage(ctx context.Context, tenantID, topic string, payload []byte) *domain.Message {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))
	return msg
}

// extractTrace continues the publisher's trace in the handler context.
func extractTrace(ctx context.Context, msg *domain.Message) context.Context {
	if len(msg.Metadata) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
}

// validateTenant rejects IDs that would break subject routing.
func validateTenant(tenantID string, allowWildcard bool) error {
	switch {
	case tenantID == "":
		return fmt.Errorf("tenantID is required")
	case tenantID == domain.AllTenants:
		if !allowWildcard {
			return fmt.Errorf("cannot publish to all tenants")
		}
		return nil
	case strings.ContainsAny(tenantID, ".*> \t"):
		return fmt.Errorf("invalid tenantID %q", tenantID)
	}
	return nil
}

// ValidateTenantID reports whether tenantID can be used to publish.
func ValidateTenantID(tenantID string) error {
	return validateTenant(tenantID, false)
}
