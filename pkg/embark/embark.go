// Package embark wires the contract, storage and messaging facades from one
// configuration, the way an application sees them through a single
// namespace.
package embark

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/config"
	"github.com/toadkicker/embark-framework/pkg/contract"
	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
	"github.com/toadkicker/embark-framework/pkg/ethrpc"
	"github.com/toadkicker/embark-framework/pkg/ipfs"
	"github.com/toadkicker/embark-framework/pkg/logging"
	"github.com/toadkicker/embark-framework/pkg/messages"
	"github.com/toadkicker/embark-framework/pkg/orbit"
	"github.com/toadkicker/embark-framework/pkg/storage"
	"github.com/toadkicker/embark-framework/pkg/whisper"
)

// Embark holds one node session and the two provider facades.
type Embark struct {
	cfg    *config.Config
	log    *logging.ColoredLogger
	logger *zap.Logger

	node     *ethrpc.Client
	Storage  *storage.Storage
	Messages *messages.Messages

	mu      sync.Mutex
	closers []io.Closer
}

// New dials the contract node and builds the facades. No provider is
// selected yet; call Start or the facades' SetProvider.
func New(ctx context.Context, cfg *config.Config, log *logging.ColoredLogger) (*Embark, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		var err error
		if log, err = logging.NewDefaultLogger(); err != nil {
			return nil, err
		}
	}

	node, err := ethrpc.Dial(ctx, ethrpc.Config{
		URL:          cfg.RPC.URL,
		PollInterval: cfg.Contracts.Confirmation.PollInterval,
	}, log.For(logging.ComponentRPC))
	if err != nil {
		return nil, err
	}

	e := &Embark{
		cfg:    cfg,
		log:    log,
		logger: log.For(logging.ComponentGeneral),
		node:   node,
	}

	e.Storage = storage.New(log.For(logging.ComponentStorage),
		storage.WithTimeout(cfg.Storage.Timeout))
	e.Messages = messages.New(log.For(logging.ComponentMessages),
		messages.WithWhisperDialer(e.dialWhisper),
		messages.WithOrbitDialer(e.dialOrbit),
		messages.WithAccounts(node.Accounts))

	return e, nil
}

// Start selects the providers named in the configuration. The storage
// connection is awaited so a bad endpoint is reported here.
func (e *Embark) Start(ctx context.Context) error {
	if err := e.StartStorage(ctx); err != nil {
		return err
	}
	if err := e.StartMessages(ctx); err != nil {
		return err
	}
	e.logger.Info("Embark started",
		zap.String("rpc", e.cfg.RPC.URL),
		zap.String("storage", string(e.Storage.Provider())),
		zap.String("messages", string(e.Messages.Provider())))
	return nil
}

// StartStorage selects the configured storage provider, if any.
func (e *Embark) StartStorage(ctx context.Context) error {
	name := e.cfg.Storage.Provider
	if name == "" {
		return nil
	}
	opts := &storage.ProviderOptions{
		Protocol: e.cfg.Storage.Protocol,
		Server:   e.cfg.Storage.Server,
		Port:     e.cfg.Storage.Port,
	}
	if _, err := e.Storage.SetProvider(ctx, name, opts).Await(ctx); err != nil {
		return embarkerrors.Wrap(err, "storage")
	}
	return nil
}

// StartMessages selects the configured messaging provider, if any.
func (e *Embark) StartMessages(ctx context.Context) error {
	name := e.cfg.Messages.Provider
	if name == "" {
		return nil
	}
	opts := &messages.ProviderOptions{
		Server: e.cfg.Messages.Server,
		Port:   e.cfg.Messages.Port,
	}
	if err := e.Messages.SetProvider(ctx, name, opts); err != nil {
		return embarkerrors.Wrap(err, "messages")
	}
	return nil
}

// Node returns the contract node session.
func (e *Embark) Node() *ethrpc.Client {
	return e.node
}

func (e *Embark) contractOptions() []contract.Option {
	c := e.cfg.Contracts
	opts := []contract.Option{
		contract.WithMaxAttempts(c.Confirmation.MaxAttempts),
		contract.WithLogger(e.log.For(logging.ComponentContract)),
	}
	if c.Confirmation.PollInterval > 0 {
		opts = append(opts, contract.WithPollInterval(c.Confirmation.PollInterval))
	}
	if c.DefaultGas > 0 {
		opts = append(opts, contract.WithDefaultGas(c.DefaultGas))
	}
	return opts
}

// Contract returns a proxy bound to desc.Address.
func (e *Embark) Contract(desc contract.Descriptor) (*contract.Proxy, error) {
	return contract.New(desc, e.node, e.contractOptions()...)
}

// Template returns an unbound proxy for deploying desc.
func (e *Embark) Template(desc contract.Descriptor) *contract.Proxy {
	return contract.NewTemplate(desc, e.node, e.contractOptions()...)
}

func (e *Embark) dialWhisper(ctx context.Context, url string) (messages.WhisperTransport, error) {
	client, err := whisper.Dial(ctx, url, whisper.Config{
		FilterPollInterval: e.cfg.Messages.Whisper.FilterPollInterval,
	}, e.log.For(logging.ComponentWhisper))
	if err != nil {
		return nil, err
	}
	e.track(client)
	return client, nil
}

func (e *Embark) dialOrbit(ctx context.Context, apiURL string) (messages.OrbitTransport, error) {
	logger := e.log.For(logging.ComponentOrbit)
	store, err := ipfs.Dial(ctx, ipfs.Config{APIURL: apiURL, Timeout: e.cfg.Storage.Timeout}, logger)
	if err != nil {
		return nil, err
	}
	oc := e.cfg.Messages.Orbit
	session, err := orbit.NewSession(ctx, orbit.Config{
		ListenAddresses:   oc.ListenAddresses,
		BootstrapPeers:    oc.BootstrapPeers,
		Namespace:         oc.Namespace,
		IdentityFile:      oc.IdentityFile,
		DiscoveryInterval: oc.DiscoveryInterval,
	}, store, logger)
	if err != nil {
		return nil, err
	}
	e.track(session)
	return session, nil
}

func (e *Embark) track(c io.Closer) {
	e.mu.Lock()
	e.closers = append(e.closers, c)
	e.mu.Unlock()
}

// Close releases every session opened by the facades and the node session.
func (e *Embark) Close() error {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	var firstErr error
	for _, c := range closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.node.Close()
	return firstErr
}
