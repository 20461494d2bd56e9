// Package whisper implements the whisper messaging transport over the
// node's shh_* JSON-RPC methods.
package whisper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/logging"
	"github.com/toadkicker/embark-framework/pkg/messages"
)

// DefaultFilterPollInterval is how often filters are polled for new envelopes.
const DefaultFilterPollInterval = time.Second

// Config holds the transport settings.
type Config struct {
	// FilterPollInterval defaults to one second.
	FilterPollInterval time.Duration
}

// Client is a messages.WhisperTransport bound to one RPC session.
type Client struct {
	rpc          *rpc.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

var _ messages.WhisperTransport = (*Client)(nil)

// Dial opens a session to url.
func Dial(ctx context.Context, url string, cfg Config, logger *zap.Logger) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewClient(rc, cfg, logger), nil
}

// NewClient wraps an existing session.
func NewClient(rc *rpc.Client, cfg Config, logger *zap.Logger) *Client {
	logger = logging.OrNop(logger)
	interval := cfg.FilterPollInterval
	if interval <= 0 {
		interval = DefaultFilterPollInterval
	}
	return &Client{rpc: rc, pollInterval: interval, logger: logger}
}

// Close closes the session.
func (c *Client) Close() error {
	c.rpc.Close()
	return nil
}

// Version returns shh_version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.rpc.CallContext(ctx, &version, "shh_version"); err != nil {
		return "", err
	}
	return version, nil
}

// NewIdentity returns shh_newIdentity.
func (c *Client) NewIdentity(ctx context.Context) (string, error) {
	var identity string
	if err := c.rpc.CallContext(ctx, &identity, "shh_newIdentity"); err != nil {
		return "", err
	}
	return identity, nil
}

type postArgs struct {
	From     string         `json:"from,omitempty"`
	Topics   []string       `json:"topics"`
	Payload  string         `json:"payload"`
	TTL      hexutil.Uint64 `json:"ttl"`
	Priority hexutil.Uint64 `json:"priority"`
}

// Post sends one message through shh_post.
func (c *Client) Post(ctx context.Context, msg messages.WhisperPost) error {
	var ok bool
	err := c.rpc.CallContext(ctx, &ok, "shh_post", postArgs{
		From:     msg.From,
		Topics:   msg.Topics,
		Payload:  msg.Payload,
		TTL:      hexutil.Uint64(msg.TTL),
		Priority: hexutil.Uint64(msg.Priority),
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("shh_post was not accepted")
	}
	return nil
}

type envelope struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Topics  []string       `json:"topics"`
	Payload string         `json:"payload"`
	Sent    hexutil.Uint64 `json:"sent"`
	TTL     hexutil.Uint64 `json:"ttl"`
	Hash    string         `json:"hash"`
}

// Filter installs a topic filter and polls it until StopWatching.
func (c *Client) Filter(ctx context.Context, topics []string, cb func(messages.WhisperEnvelope, error)) (messages.Watcher, error) {
	var id string
	if err := c.rpc.CallContext(ctx, &id, "shh_newFilter", map[string]any{"topics": topics}); err != nil {
		return nil, err
	}

	f := &filter{
		client: c,
		id:     id,
		quit:   make(chan struct{}),
	}
	go f.poll(context.WithoutCancel(ctx), cb)

	c.logger.Debug("Whisper filter installed", zap.String("filter", id), zap.Strings("topics", topics))
	return f, nil
}

type filter struct {
	client   *Client
	id       string
	quit     chan struct{}
	stopOnce sync.Once
}

func (f *filter) poll(ctx context.Context, cb func(messages.WhisperEnvelope, error)) {
	ticker := time.NewTicker(f.client.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.quit:
			return
		case <-ticker.C:
		}

		var changes []envelope
		if err := f.client.rpc.CallContext(ctx, &changes, "shh_getFilterChanges", f.id); err != nil {
			cb(messages.WhisperEnvelope{}, err)
			continue
		}
		for _, e := range changes {
			select {
			case <-f.quit:
				return
			default:
			}
			cb(messages.WhisperEnvelope{
				From:    e.From,
				To:      e.To,
				Topics:  e.Topics,
				Payload: e.Payload,
				Sent:    int64(e.Sent),
				TTL:     int(e.TTL),
				Hash:    e.Hash,
			}, nil)
		}
	}
}

// StopWatching stops polling and uninstalls the filter on the node. It is
// safe to call from inside the filter callback.
func (f *filter) StopWatching() error {
	var err error
	f.stopOnce.Do(func() {
		close(f.quit)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var ok bool
		err = f.client.rpc.CallContext(ctx, &ok, "shh_uninstallFilter", f.id)
	})
	return err
}
