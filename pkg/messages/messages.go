package messages

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
	"github.com/toadkicker/embark-framework/pkg/logging"
)

const (
	defaultWhisperURL = "http://localhost:8545"
	defaultServer     = "localhost"
	defaultRPCPort    = 8545
	defaultIPFSPort   = 5001
)

// WhisperDialer opens a whisper session to an RPC endpoint.
type WhisperDialer func(ctx context.Context, url string) (WhisperTransport, error)

// OrbitDialer opens an orbit session backed by the IPFS API at apiURL.
type OrbitDialer func(ctx context.Context, apiURL string) (OrbitTransport, error)

// AccountsFunc lists node accounts; the first names the orbit session.
type AccountsFunc func(ctx context.Context) ([]common.Address, error)

// Messages is the messaging facade. One provider is active at a time.
type Messages struct {
	mu       sync.RWMutex
	provider Provider
	backend  Backend
	// generation of the newest SetProvider call
	gen uint64

	dialWhisper WhisperDialer
	dialOrbit   OrbitDialer
	accounts    AccountsFunc
	logger      *zap.Logger
}

// Option configures Messages.
type Option func(*Messages)

// WithWhisperDialer sets how whisper sessions are opened.
func WithWhisperDialer(d WhisperDialer) Option {
	return func(m *Messages) { m.dialWhisper = d }
}

// WithOrbitDialer sets how orbit sessions are opened.
func WithOrbitDialer(d OrbitDialer) Option {
	return func(m *Messages) { m.dialOrbit = d }
}

// WithAccounts gives the facade access to an RPC session's accounts.
func WithAccounts(fn AccountsFunc) Option {
	return func(m *Messages) { m.accounts = fn }
}

// New returns a facade with no active provider.
func New(logger *zap.Logger, opts ...Option) *Messages {
	logger = logging.OrNop(logger)
	m := &Messages{logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetProvider selects the messaging network by name. Unknown names fail
// immediately. Whisper probes its node in the background and only logs
// problems; orbit connects before returning. When calls overlap, only the
// most recently issued one updates the active backend.
func (m *Messages) SetProvider(ctx context.Context, name string, opts *ProviderOptions) error {
	provider, ok := ParseProvider(name)
	if !ok {
		return embarkerrors.UnknownProvider("message", name)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	var (
		backend Backend
		err     error
	)
	switch provider {
	case ProviderWhisper:
		backend, err = m.setupWhisper(ctx, opts)
	case ProviderOrbit:
		backend, err = m.setupOrbit(ctx, opts)
	}

	m.mu.Lock()
	current := m.gen == gen
	if current {
		if err != nil {
			m.provider, m.backend = "", nil
		} else {
			m.provider, m.backend = provider, backend
		}
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if !current {
		m.logger.Debug("Messages provider superseded by a later call", zap.String("provider", string(provider)))
		return nil
	}
	m.logger.Info("Messages provider set", zap.String("provider", string(provider)))
	return nil
}

func (m *Messages) setupWhisper(ctx context.Context, opts *ProviderOptions) (Backend, error) {
	if m.dialWhisper == nil {
		return nil, embarkerrors.NewConnectionError("whisper", "no whisper transport configured", nil)
	}
	url := defaultWhisperURL
	if opts != nil {
		server, port := opts.Server, opts.Port
		if server == "" {
			server = defaultServer
		}
		if port == 0 {
			port = defaultRPCPort
		}
		url = fmt.Sprintf("http://%s:%d", server, port)
	}

	transport, err := m.dialWhisper(ctx, url)
	if err != nil {
		return nil, embarkerrors.NewConnectionError("whisper", "Failed to connect to whisper", err)
	}

	w := NewWhisper(transport, m.logger)
	go w.Init(context.WithoutCancel(ctx))
	return w, nil
}

func (m *Messages) setupOrbit(ctx context.Context, opts *ProviderOptions) (Backend, error) {
	if m.dialOrbit == nil {
		return nil, embarkerrors.NewConnectionError("orbit", "no orbit transport configured", nil)
	}
	server, port := defaultServer, defaultIPFSPort
	if opts != nil {
		if opts.Server != "" {
			server = opts.Server
		}
		if opts.Port != 0 {
			port = opts.Port
		}
	}

	transport, err := m.dialOrbit(ctx, fmt.Sprintf("http://%s:%d", server, port))
	if err != nil {
		return nil, embarkerrors.NewConnectionError("orbit", "Failed to connect to orbit", err)
	}

	username := m.orbitUsername(ctx)
	if err := transport.Connect(ctx, username); err != nil {
		return nil, embarkerrors.NewConnectionError("orbit", "Failed to connect to orbit", err)
	}
	m.logger.Debug("Orbit session connected", zap.String("username", username))
	return NewOrbit(transport, m.logger), nil
}

// orbitUsername is the first node account when an RPC session is
// available, otherwise a random name.
func (m *Messages) orbitUsername(ctx context.Context) string {
	if m.accounts != nil {
		accounts, err := m.accounts(ctx)
		if err == nil && len(accounts) > 0 {
			return accounts[0].Hex()
		}
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Provider returns the active provider, empty when none is set.
func (m *Messages) Provider() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.provider
}

// Backend returns the active backend, or nil.
func (m *Messages) Backend() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

func (m *Messages) active() (Backend, error) {
	if b := m.Backend(); b != nil {
		return b, nil
	}
	return nil, embarkerrors.NewConnectionError("messages", "No messaging connection. Please ensure to call Messages.SetProvider()", nil)
}

// SendMessage sends through the active backend.
func (m *Messages) SendMessage(ctx context.Context, opts SendOptions) error {
	backend, err := m.active()
	if err != nil {
		return err
	}
	return backend.SendMessage(ctx, opts)
}

// ListenTo subscribes through the active backend.
func (m *Messages) ListenTo(ctx context.Context, opts ListenOptions) (*MessageStream, error) {
	backend, err := m.active()
	if err != nil {
		return nil, err
	}
	return backend.ListenTo(ctx, opts)
}
