// Package orbit implements the orbit messaging transport: channels are
// gossipsub topics, posts are JSON documents stored in IPFS, and only
// their content address travels over the wire.
package orbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/ipfs"
	"github.com/toadkicker/embark-framework/pkg/messages"
)

const (
	// DefaultListenAddress lets the OS choose a port.
	DefaultListenAddress = "/ip4/0.0.0.0/tcp/0"
	// DefaultNamespace prefixes every channel topic.
	DefaultNamespace = "embark"
)

// Config holds the session settings.
type Config struct {
	ListenAddresses []string
	BootstrapPeers  []string
	Namespace       string
	// IdentityFile keeps the host key across runs. Empty uses a fresh key.
	IdentityFile string
	// DiscoveryInterval is the wait between reconnect rounds.
	DiscoveryInterval time.Duration
}

// PostStore keeps post bodies.
type PostStore interface {
	Add(ctx context.Context, data []byte) ([]ipfs.AddResult, error)
	Cat(ctx context.Context, hash string) ([]byte, error)
}

// announcement is what is published on a channel topic.
type announcement struct {
	Ref string `json:"ref"`
}

// Session is a messages.OrbitTransport.
type Session struct {
	host      host.Host
	manager   *Manager
	discovery *discovery
	store     PostStore
	logger    *zap.Logger

	mu        sync.RWMutex
	username  string
	joined    map[string]HandlerID
	listeners map[string]func(channel, ref string)
}

var _ messages.OrbitTransport = (*Session)(nil)

// NewSession starts a libp2p host with gossipsub and returns an
// unconnected session storing posts in store.
func NewSession(ctx context.Context, cfg Config, store PostStore, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	h, err := newHost(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	ps, err := pubsub.NewGossipSub(context.WithoutCancel(ctx), h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to create gossipsub: %w", err)
	}

	d := newDiscovery(h, logger)
	d.start(cfg.DiscoveryInterval)

	return &Session{
		host:      h,
		manager:   NewManager(ps, namespace, logger),
		discovery: d,
		store:     store,
		logger:    logger,
		joined:    make(map[string]HandlerID),
		listeners: make(map[string]func(string, string)),
	}, nil
}

// ID returns the host's peer ID.
func (s *Session) ID() peer.ID {
	return s.host.ID()
}

// Username returns the name posts are signed with.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Connect sets the name posts are sent under.
func (s *Session) Connect(ctx context.Context, username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	s.mu.Lock()
	s.username = username
	s.mu.Unlock()
	s.logger.Info("Orbit session connected",
		zap.String("username", username),
		zap.String("peer_id", s.host.ID().String()))
	return nil
}

// Join subscribes to channel. Joining twice is a no-op.
func (s *Session) Join(ctx context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.joined[channel]; ok {
		return nil
	}
	id, err := s.manager.Subscribe(ctx, channel, s.dispatch)
	if err != nil {
		return err
	}
	s.joined[channel] = id
	return nil
}

// Leave drops the subscription to channel.
func (s *Session) Leave(channel string) {
	s.mu.Lock()
	id, ok := s.joined[channel]
	delete(s.joined, channel)
	s.mu.Unlock()
	if ok {
		s.manager.Unsubscribe(channel, id)
	}
}

func (s *Session) dispatch(channel string, msg *pubsub.Message) {
	var a announcement
	if err := json.Unmarshal(msg.Data, &a); err != nil || a.Ref == "" {
		s.logger.Debug("Ignoring malformed announcement",
			zap.String("channel", channel),
			zap.String("from", msg.ReceivedFrom.String()))
		return
	}

	s.mu.RLock()
	listeners := make([]func(string, string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(channel, a.Ref)
	}
}

// OnMessage registers fn for messages of every joined channel.
func (s *Session) OnMessage(fn func(channel, ref string)) func() {
	id := uuid.NewString()
	s.mu.Lock()
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Send stores a post with content in IPFS and announces it on channel.
func (s *Session) Send(ctx context.Context, channel string, content json.RawMessage) error {
	post := messages.Post{
		Content: content,
		From:    s.Username(),
		Channel: channel,
		Time:    time.Now().UTC(),
	}
	body, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("failed to encode post: %w", err)
	}

	results, err := s.store.Add(ctx, body)
	if err != nil {
		return fmt.Errorf("failed to store post: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("failed to store post: no content address returned")
	}

	data, err := json.Marshal(announcement{Ref: results[0].Path()})
	if err != nil {
		return err
	}
	return s.manager.Publish(ctx, channel, data)
}

// GetPost loads the post stored under ref.
func (s *Session) GetPost(ctx context.Context, ref string) (*messages.Post, error) {
	body, err := s.store.Cat(ctx, ref)
	if err != nil {
		return nil, err
	}
	var post messages.Post
	if err := json.Unmarshal(body, &post); err != nil {
		return nil, fmt.Errorf("failed to decode post %s: %w", ref, err)
	}
	return &post, nil
}

// Close stops every subscription and the host.
func (s *Session) Close() error {
	s.discovery.stop()
	return errors.Join(s.manager.Close(), s.host.Close())
}
