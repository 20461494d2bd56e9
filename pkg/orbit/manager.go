package orbit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// MessageHandler is called for every message received on a channel.
type MessageHandler func(channel string, msg *pubsub.Message)

// HandlerID identifies one handler registration.
type HandlerID string

func generateHandlerID() HandlerID {
	return HandlerID(uuid.NewString())
}

// Manager maps channels onto namespaced gossipsub topics and fans each
// topic's messages out to its registered handlers.
type Manager struct {
	pubsub        *pubsub.PubSub
	topics        map[string]*pubsub.Topic
	subscriptions map[string]*channelSubscription
	namespace     string
	logger        *zap.Logger
	mu            sync.RWMutex
}

type channelSubscription struct {
	sub      *pubsub.Subscription
	cancel   context.CancelFunc
	done     chan struct{}
	handlers map[HandlerID]MessageHandler
	mu       sync.RWMutex
}

// NewManager creates a manager for ps. Topics are named "<namespace>.<channel>".
func NewManager(ps *pubsub.PubSub, namespace string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		pubsub:        ps,
		topics:        make(map[string]*pubsub.Topic),
		subscriptions: make(map[string]*channelSubscription),
		namespace:     namespace,
		logger:        logger,
	}
}

func (m *Manager) topicName(channel string) string {
	return fmt.Sprintf("%s.%s", m.namespace, channel)
}

// topicLocked returns the joined topic, joining it on first use. m.mu must be held.
func (m *Manager) topicLocked(name string) (*pubsub.Topic, error) {
	if topic, ok := m.topics[name]; ok {
		return topic, nil
	}
	topic, err := m.pubsub.Join(name)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic: %w", err)
	}
	m.topics[name] = topic
	return topic, nil
}

// Publish publishes data on channel.
func (m *Manager) Publish(ctx context.Context, channel string, data []byte) error {
	m.mu.Lock()
	topic, err := m.topicLocked(m.topicName(channel))
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to get topic for publishing: %w", err)
	}
	if err := topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe registers handler on channel. The first handler of a channel
// opens the underlying subscription.
func (m *Manager) Subscribe(ctx context.Context, channel string, handler MessageHandler) (HandlerID, error) {
	name := m.topicName(channel)
	id := generateHandlerID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if cs, ok := m.subscriptions[name]; ok {
		cs.mu.Lock()
		cs.handlers[id] = handler
		cs.mu.Unlock()
		return id, nil
	}

	topic, err := m.topicLocked(name)
	if err != nil {
		return "", err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return "", fmt.Errorf("failed to subscribe to topic: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	cs := &channelSubscription{
		sub:      sub,
		cancel:   cancel,
		done:     make(chan struct{}),
		handlers: map[HandlerID]MessageHandler{id: handler},
	}
	m.subscriptions[name] = cs

	go m.pump(subCtx, channel, cs)
	return id, nil
}

func (m *Manager) pump(ctx context.Context, channel string, cs *channelSubscription) {
	defer close(cs.done)
	defer cs.sub.Cancel()
	for {
		msg, err := cs.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Debug("Subscription read failed", zap.String("channel", channel), zap.Error(err))
			continue
		}

		cs.mu.RLock()
		handlers := make([]MessageHandler, 0, len(cs.handlers))
		for _, h := range cs.handlers {
			handlers = append(handlers, h)
		}
		cs.mu.RUnlock()

		for _, h := range handlers {
			h(channel, msg)
		}
	}
}

// Unsubscribe removes one handler. The subscription closes with its last handler.
func (m *Manager) Unsubscribe(channel string, id HandlerID) {
	name := m.topicName(channel)

	m.mu.Lock()
	defer m.mu.Unlock()

	cs, ok := m.subscriptions[name]
	if !ok {
		return
	}
	cs.mu.Lock()
	delete(cs.handlers, id)
	empty := len(cs.handlers) == 0
	cs.mu.Unlock()

	if empty {
		cs.cancel()
		delete(m.subscriptions, name)
	}
}

// Channels returns the channels with an open subscription.
func (m *Manager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := m.namespace + "."
	channels := make([]string, 0, len(m.subscriptions))
	for name := range m.subscriptions {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			channels = append(channels, name[len(prefix):])
		}
	}
	return channels
}

// Peers lists the peers known to be on channel.
func (m *Manager) Peers(channel string) []peer.ID {
	m.mu.RLock()
	topic, ok := m.topics[m.topicName(channel)]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return topic.ListPeers()
}

// Close cancels every subscription, waits for the readers to stop and
// then closes every topic.
func (m *Manager) Close() error {
	m.mu.Lock()
	subs := m.subscriptions
	topics := m.topics
	m.subscriptions = make(map[string]*channelSubscription)
	m.topics = make(map[string]*pubsub.Topic)
	m.mu.Unlock()

	for _, cs := range subs {
		cs.cancel()
	}
	for _, cs := range subs {
		<-cs.done
	}

	var firstErr error
	for name, topic := range topics {
		if err := topic.Close(); err != nil {
			m.logger.Warn("Failed to close topic", zap.String("topic", name), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close topic %s: %w", name, err)
			}
		}
	}
	return firstErr
}
