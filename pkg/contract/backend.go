package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Backend is the RPC node client the proxy delegates to.
type Backend interface {
	// Accounts lists the node's accounts. The first one pays for deploys.
	Accounts(ctx context.Context) ([]common.Address, error)

	// Invoke runs one contract method. Read-only methods return the decoded
	// outputs; mutating methods return the transaction hash as a hex string.
	Invoke(ctx context.Context, req CallRequest) (any, error)

	// TransactionReceipt returns nil, nil while the transaction is unmined.
	TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error)

	// Deploy blocks until the creation finishes. progress may be called
	// first with only a hash, then again with the address.
	Deploy(ctx context.Context, req DeployRequest, progress func(DeployProgress, error))

	// SubscribeEvent streams decoded logs of one event to sink until the
	// returned subscription is unsubscribed.
	SubscribeEvent(ctx context.Context, req EventRequest, sink func(EventLog, error)) (event.Subscription, error)

	// SendTransaction submits a plain transaction and returns its hash.
	SendTransaction(ctx context.Context, opts TxOptions) (string, error)
}

// CallRequest is one method invocation.
type CallRequest struct {
	Descriptor Descriptor
	Method     MethodSpec
	Args       []any
	Opts       TxOptions
}

// DeployRequest carries the constructor arguments and creation options.
type DeployRequest struct {
	Descriptor Descriptor
	Args       []any
	Opts       TxOptions
}

// DeployProgress is reported by Backend.Deploy. Address stays nil until the
// contract is mined.
type DeployProgress struct {
	TxHash  string
	Address *common.Address
}

// EventRequest selects the logs of one event on one contract. Filter holds
// one entry per indexed argument, nil meaning any.
type EventRequest struct {
	Descriptor Descriptor
	Event      MethodSpec
	Filter     [][]any
}

// EventLog is one decoded event occurrence.
type EventLog struct {
	Event       string
	Args        map[string]any
	Address     common.Address
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Removed     bool
	Raw         types.Log
}

// TxOptions are the per-transaction overrides. Zero values mean "backend
// default".
type TxOptions struct {
	From     *common.Address
	To       *common.Address
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
	Data     []byte
}
