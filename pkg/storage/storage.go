package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/async"
	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
	"github.com/toadkicker/embark-framework/pkg/ipfs"
	"github.com/toadkicker/embark-framework/pkg/logging"
)

const noConnectionMessage = "No IPFS connection. Please ensure to call Storage.SetProvider()"

// Storage is the storage facade. One provider is active at a time;
// selecting another replaces it without closing the previous one.
type Storage struct {
	mu       sync.RWMutex
	provider Provider
	backend  Transport
	location ProviderOptions
	// generation of the newest connecting SetProvider call
	gen uint64

	connect Connector
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Storage.
type Option func(*Storage)

// WithConnector replaces the IPFS dialer.
func WithConnector(c Connector) Option {
	return func(s *Storage) { s.connect = c }
}

// WithTimeout sets the per-request timeout passed to the IPFS client.
func WithTimeout(d time.Duration) Option {
	return func(s *Storage) { s.timeout = d }
}

// New returns a facade with no active provider.
func New(logger *zap.Logger, opts ...Option) *Storage {
	logger = logging.OrNop(logger)
	s := &Storage{logger: logger}
	s.connect = func(ctx context.Context, cfg ipfs.Config) (Transport, error) {
		client, err := ipfs.Dial(ctx, cfg, s.logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetProvider selects the storage network by name, case-insensitively.
// nil options connect to localhost:5001. A failed IPFS connection clears
// the active backend; unknown or unimplemented providers leave it as is.
// When calls overlap, only the most recently issued one updates the
// active backend, whatever order the connections finish in.
func (s *Storage) SetProvider(ctx context.Context, name string, opts *ProviderOptions) *async.Pending[*Storage] {
	provider, ok := ParseProvider(name)
	if !ok {
		return async.Rejected[*Storage](embarkerrors.UnknownProvider("storage", name))
	}
	if provider == ProviderSwarm {
		return async.Rejected[*Storage](embarkerrors.NewConfigurationError("provider", "Swarm not implemented", embarkerrors.ErrNotImplemented))
	}

	location := opts.withDefaults()
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	return async.Go(func() (*Storage, error) {
		backend, err := s.connect(ctx, ipfs.Config{APIURL: location.BaseURL(), Timeout: s.timeout})

		s.mu.Lock()
		current := s.gen == gen
		if current {
			if err != nil {
				s.provider, s.backend = "", nil
			} else {
				s.provider, s.backend, s.location = provider, backend, location
			}
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("IPFS connection failed",
				zap.String("api", location.BaseURL()),
				zap.Bool("superseded", !current),
				zap.Error(err))
			return nil, embarkerrors.NewConnectionError("ipfs", "Failed to connect to IPFS", err)
		}
		if !current {
			s.logger.Debug("Storage provider superseded by a later call",
				zap.String("api", location.BaseURL()))
			return s, nil
		}

		s.logger.Info("Storage provider set",
			zap.String("provider", string(provider)),
			zap.String("api", location.BaseURL()))
		return s, nil
	})
}

// Provider returns the active provider, empty when none is set.
func (s *Storage) Provider() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Storage) active() (Transport, ProviderOptions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.backend == nil {
		return nil, ProviderOptions{}, embarkerrors.NewConnectionError("ipfs", noConnectionMessage, nil)
	}
	return s.backend, s.location, nil
}

// SaveText stores text and resolves with its content address.
func (s *Storage) SaveText(ctx context.Context, text string) *async.Pending[string] {
	backend, _, err := s.active()
	if err != nil {
		return async.Rejected[string](err)
	}
	return async.Go(func() (string, error) {
		return add(ctx, backend, []byte(text))
	})
}

// Get resolves with the data of the object stored under hash.
func (s *Storage) Get(ctx context.Context, hash string) *async.Pending[string] {
	backend, _, err := s.active()
	if err != nil {
		return async.Rejected[string](err)
	}
	if err := validateHash(hash); err != nil {
		return async.Rejected[string](err)
	}
	return async.Go(func() (string, error) {
		node, err := backend.ObjectGet(ctx, hash)
		if err != nil {
			return "", embarkerrors.NewTransportError("object/get", err)
		}
		return node.Data, nil
	})
}

// UploadFile stores the first file of the first input. It fails
// immediately, before any connection check, when nothing is selected.
func (s *Storage) UploadFile(ctx context.Context, inputs []Input) (*async.Pending[string], error) {
	file := firstFile(inputs)
	if file == nil {
		return nil, embarkerrors.NoFile()
	}

	backend, _, err := s.active()
	if err != nil {
		return async.Rejected[string](err), nil
	}

	return async.Go(func() (string, error) {
		r, err := file.Open()
		if err != nil {
			return "", embarkerrors.NewInputError("file", fmt.Sprintf("cannot read %s: %v", file.Name(), err), file.Name())
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		if err != nil {
			return "", embarkerrors.NewInputError("file", fmt.Sprintf("cannot read %s: %v", file.Name(), err), file.Name())
		}
		return add(ctx, backend, data)
	}), nil
}

// GetURL returns the gateway URL of hash on the active node.
func (s *Storage) GetURL(hash string) (string, error) {
	_, location, err := s.active()
	if err != nil {
		return "", err
	}
	if err := validateHash(hash); err != nil {
		return "", err
	}
	return location.BaseURL() + "/ipfs/" + hash, nil
}

func add(ctx context.Context, backend Transport, data []byte) (string, error) {
	results, err := backend.Add(ctx, data)
	if err != nil {
		return "", embarkerrors.NewTransportError("add", err)
	}
	if len(results) == 0 {
		return "", embarkerrors.New("add returned no results")
	}
	return results[0].Path(), nil
}

func validateHash(hash string) error {
	if _, err := cid.Decode(hash); err != nil {
		return embarkerrors.NewInputError("hash", fmt.Sprintf("invalid content address %q: %v", hash, err), hash)
	}
	return nil
}
