package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/contract"
	"github.com/toadkicker/embark-framework/pkg/logging"
)

// DefaultURL is the node endpoint used when Config.URL is empty.
const DefaultURL = "http://localhost:8545"

// Config holds configuration for the node client
type Config struct {
	// URL is the JSON-RPC endpoint (http, ws or ipc path)
	// If empty, defaults to "http://localhost:8545"
	URL string

	// PollInterval is the wait between receipt lookups during deploys and
	// between log queries when the node cannot push subscriptions.
	// If zero, defaults to one second
	PollInterval time.Duration
}

// Client implements contract.Backend over a go-ethereum JSON-RPC session.
type Client struct {
	rpc          *rpc.Client
	eth          *ethclient.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

var _ contract.Backend = (*Client)(nil)

// Dial opens a session to cfg.URL.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewClient(rc, cfg, logger), nil
}

// NewClient wraps an existing session.
func NewClient(rc *rpc.Client, cfg Config, logger *zap.Logger) *Client {
	logger = logging.OrNop(logger)
	interval := cfg.PollInterval
	if interval == 0 {
		interval = contract.DefaultPollInterval
	}
	return &Client{
		rpc:          rc,
		eth:          ethclient.NewClient(rc),
		pollInterval: interval,
		logger:       logger,
	}
}

// RPC returns the underlying session, shared with the whisper transport.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// Close closes the session.
func (c *Client) Close() {
	c.rpc.Close()
}

// Accounts returns eth_accounts.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// TransactionReceipt returns nil, nil while the transaction is unknown or pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// SendTransaction submits opts through eth_sendTransaction, letting the
// node sign. A missing sender defaults to the first node account.
func (c *Client) SendTransaction(ctx context.Context, opts contract.TxOptions) (string, error) {
	args := sendArgs{
		From: opts.From,
		To:   opts.To,
		Data: opts.Data,
	}
	if args.From == nil {
		accounts, err := c.Accounts(ctx)
		if err != nil {
			return "", err
		}
		if len(accounts) > 0 {
			args.From = &accounts[0]
		}
	}
	if opts.Gas > 0 {
		gas := hexutil.Uint64(opts.Gas)
		args.Gas = &gas
	}
	if opts.GasPrice != nil {
		args.GasPrice = (*hexutil.Big)(opts.GasPrice)
	}
	if opts.Value != nil {
		args.Value = (*hexutil.Big)(opts.Value)
	}

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return "", err
	}
	c.logger.Debug("Transaction submitted", zap.String("tx", hash.Hex()))
	return hash.Hex(), nil
}

type sendArgs struct {
	From     *common.Address `json:"from,omitempty"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}
