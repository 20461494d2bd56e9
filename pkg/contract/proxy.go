package contract

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/async"
	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
)

// DefaultGas is the gas limit used for deploys when none is given.
const DefaultGas uint64 = 800000

type settings struct {
	pollInterval time.Duration
	maxAttempts  int
	defaultGas   uint64
	logger       *zap.Logger
}

// Option configures a Proxy.
type Option func(*settings)

// WithPollInterval sets the wait between receipt lookups.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) { s.pollInterval = d }
}

// WithMaxAttempts bounds receipt polling. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(s *settings) { s.maxAttempts = n }
}

// WithDefaultGas sets the deploy gas limit used when DeployOptions.Gas is zero.
func WithDefaultGas(gas uint64) Option {
	return func(s *settings) { s.defaultGas = gas }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// Proxy exposes a contract's ABI as named members. A Proxy is immutable
// once built.
type Proxy struct {
	desc      Descriptor
	backend   Backend
	settings  settings
	methods   []*Method
	byName    map[string]*Method
	confirmer *Confirmer
	logger    *zap.Logger
}

// New builds a proxy for a deployed contract. desc must carry an address.
func New(desc Descriptor, backend Backend, opts ...Option) (*Proxy, error) {
	if !desc.Bound() {
		return nil, embarkerrors.NewInputError("address", "contract address is required", nil)
	}
	return build(desc, backend, opts...), nil
}

// NewTemplate builds an unbound proxy, used to Deploy the contract or to
// bind it later with At.
func NewTemplate(desc Descriptor, backend Backend, opts ...Option) *Proxy {
	desc.Address = nil
	return build(desc, backend, opts...)
}

func build(desc Descriptor, backend Backend, opts ...Option) *Proxy {
	desc = desc.Clone()
	s := settings{
		pollInterval: DefaultPollInterval,
		defaultGas:   DefaultGas,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return withSettings(desc, backend, s)
}

func withSettings(desc Descriptor, backend Backend, s settings) *Proxy {
	methods, byName := synthesize(desc.Entries)
	return &Proxy{
		desc:     desc,
		backend:  backend,
		settings: s,
		methods:  methods,
		byName:   byName,
		confirmer: &Confirmer{
			Source:       backend,
			PollInterval: s.pollInterval,
			MaxAttempts:  s.maxAttempts,
			Logger:       s.logger,
		},
		logger: s.logger,
	}
}

// Address returns the bound address, or nil for a template.
func (p *Proxy) Address() *common.Address {
	if p.desc.Address == nil {
		return nil
	}
	addr := *p.desc.Address
	return &addr
}

// Descriptor returns a copy of the contract descriptor.
func (p *Proxy) Descriptor() Descriptor {
	return p.desc.Clone()
}

// Methods returns the synthesized members in ABI order.
func (p *Proxy) Methods() []*Method {
	out := make([]*Method, len(p.methods))
	copy(out, p.methods)
	return out
}

// Method looks up a member by name.
func (p *Proxy) Method(name string) (*Method, bool) {
	m, ok := p.byName[name]
	return m, ok
}

// Call invokes a read-only or mutating member with default options.
func (p *Proxy) Call(ctx context.Context, name string, args ...any) *async.Pending[any] {
	return p.Transact(ctx, name, TxOptions{}, args...)
}

// Transact invokes a member with explicit transaction options. Read-only
// members resolve with the decoded outputs; mutating members resolve with
// the receipt once the transaction is mined.
func (p *Proxy) Transact(ctx context.Context, name string, opts TxOptions, args ...any) *async.Pending[any] {
	m, err := p.callable(name, CapRead, CapTransact)
	if err != nil {
		return async.Rejected[any](err)
	}
	if opts.To == nil {
		opts.To = p.Address()
	}

	req := CallRequest{
		Descriptor: p.desc.Clone(),
		Method:     m.Spec,
		Args:       args,
		Opts:       opts,
	}

	return async.Go(func() (any, error) {
		raw, err := p.backend.Invoke(ctx, req)
		if err != nil {
			return nil, embarkerrors.NewTransportError(m.Spec.Name, err)
		}
		return p.confirmer.Confirm(ctx, raw, m.Cap == CapRead)
	})
}

// Subscribe opens a log subscription for an event member. filter holds one
// entry per indexed argument. The stream stays open until it is cancelled
// or the backend ends the subscription.
func (p *Proxy) Subscribe(ctx context.Context, name string, filter ...[]any) (*async.MessageEvent[EventLog], error) {
	m, err := p.callable(name, CapEvent)
	if err != nil {
		return nil, err
	}

	stream := async.NewMessageEvent[EventLog]()
	sub, err := p.backend.SubscribeEvent(ctx, EventRequest{
		Descriptor: p.desc.Clone(),
		Event:      m.Spec,
		Filter:     filter,
	}, func(log EventLog, err error) {
		if err != nil {
			stream.Fail(err)
			return
		}
		stream.Emit(log)
	})
	if err != nil {
		return nil, embarkerrors.NewTransportError(m.Spec.Name, err)
	}
	stream.Bind(sub.Unsubscribe)

	go func() {
		select {
		case err, ok := <-sub.Err():
			if ok && err != nil {
				stream.Fail(embarkerrors.NewTransportError(m.Spec.Name, err))
			}
			stream.Close()
		case <-stream.Done():
		}
	}()

	return stream, nil
}

func (p *Proxy) callable(name string, allowed ...Capability) (*Method, error) {
	m, ok := p.byName[name]
	if !ok {
		return nil, embarkerrors.NewInputError("method", fmt.Sprintf("contract has no member %q", name), name)
	}
	permitted := false
	for _, c := range allowed {
		if m.Cap == c {
			permitted = true
			break
		}
	}
	if !permitted {
		return nil, embarkerrors.NewInputError("method", fmt.Sprintf("member %q is a %s member", name, m.Cap), name)
	}
	if !p.desc.Bound() {
		return nil, embarkerrors.NewInputError("address", "contract is not deployed; call Deploy or At first", nil)
	}
	return m, nil
}

// DeployOptions override the creation transaction.
type DeployOptions struct {
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
}

// Deploy creates a new instance of the contract from the first node
// account. The result resolves only once the backend reports the address.
func (p *Proxy) Deploy(ctx context.Context, args []any, opts DeployOptions) *async.Pending[*Proxy] {
	if len(p.desc.Bytecode) == 0 {
		return async.Rejected[*Proxy](embarkerrors.NewInputError("bytecode", "contract has no bytecode to deploy", nil))
	}

	result := async.NewPending[*Proxy]()
	go func() {
		accounts, err := p.backend.Accounts(ctx)
		if err != nil {
			result.Reject(embarkerrors.NewTransportError("eth_accounts", err))
			return
		}

		gas := opts.Gas
		if gas == 0 {
			gas = p.settings.defaultGas
		}
		desc := p.desc.Clone()
		tx := TxOptions{
			Data:     desc.Bytecode,
			Gas:      gas,
			GasPrice: opts.GasPrice,
			Value:    opts.Value,
		}
		if len(accounts) > 0 {
			from := accounts[0]
			tx.From = &from
		}

		p.backend.Deploy(ctx, DeployRequest{Descriptor: desc, Args: args, Opts: tx}, func(progress DeployProgress, err error) {
			if err != nil {
				result.Reject(embarkerrors.NewTransportError("deploy", err))
				return
			}
			if progress.Address == nil {
				p.logger.Debug("Contract creation submitted", zap.String("tx", progress.TxHash))
				return
			}
			p.logger.Info("Contract deployed",
				zap.String("address", progress.Address.Hex()),
				zap.String("tx", progress.TxHash))
			result.Resolve(p.At(*progress.Address))
		})
	}()
	return result
}

// At returns a new proxy bound to addr with the same interface.
func (p *Proxy) At(addr common.Address) *Proxy {
	return withSettings(p.desc.WithAddress(addr), p.backend, p.settings)
}

// Send transfers value, expressed in unit, to the contract. It returns
// once the node accepts the transaction and never waits for a receipt.
func (p *Proxy) Send(ctx context.Context, value, unit string, opts TxOptions) (string, error) {
	wei, err := ToWei(value, unit)
	if err != nil {
		return "", err
	}
	opts.Value = wei
	return p.SendOptions(ctx, opts)
}

// SendOptions submits a transaction to the contract address with opts.
func (p *Proxy) SendOptions(ctx context.Context, opts TxOptions) (string, error) {
	if !p.desc.Bound() {
		return "", embarkerrors.NewInputError("address", "contract is not deployed; call Deploy or At first", nil)
	}
	opts.To = p.Address()

	fields := []zap.Field{zap.String("to", opts.To.Hex())}
	if opts.Value != nil {
		fields = append(fields, zap.String("value", opts.Value.String()))
	}
	if opts.From != nil {
		fields = append(fields, zap.String("from", opts.From.Hex()))
	}
	p.logger.Info("Sending transaction", fields...)

	hash, err := p.backend.SendTransaction(ctx, opts)
	if err != nil {
		return "", embarkerrors.NewTransportError("eth_sendTransaction", err)
	}
	return hash, nil
}
