package ethrpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/contract"
)

// ErrCodeNotStored is reported when a creation transaction was mined but
// left no code at the new address.
var ErrCodeNotStored = errors.New("the contract code couldn't be stored, please check your gas amount")

// Invoke packs the call with the contract ABI. Read-only methods run
// through eth_call and return the unpacked outputs (a single output is
// returned bare). Mutating methods are sent as transactions and return
// the hash.
func (c *Client) Invoke(ctx context.Context, req contract.CallRequest) (any, error) {
	method := req.Method.Name
	input, err := req.Descriptor.ABI.Pack(method, req.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	to := req.Opts.To
	if to == nil {
		to = req.Descriptor.Address
	}

	if !req.Method.ReadOnly {
		opts := req.Opts
		opts.To = to
		opts.Data = input
		return c.SendTransaction(ctx, opts)
	}

	msg := ethereum.CallMsg{To: to, Data: input}
	if req.Opts.From != nil {
		msg.From = *req.Opts.From
	}
	out, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}
	values, err := req.Descriptor.ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	default:
		return values, nil
	}
}

// Deploy sends the creation transaction, reports its hash, waits for the
// receipt and reports the new address once code is present there.
func (c *Client) Deploy(ctx context.Context, req contract.DeployRequest, progress func(contract.DeployProgress, error)) {
	ctorArgs, err := req.Descriptor.ABI.Pack("", req.Args...)
	if err != nil {
		progress(contract.DeployProgress{}, fmt.Errorf("failed to pack constructor: %w", err))
		return
	}

	opts := req.Opts
	opts.To = nil
	opts.Data = append(append([]byte{}, req.Opts.Data...), ctorArgs...)

	hash, err := c.SendTransaction(ctx, opts)
	if err != nil {
		progress(contract.DeployProgress{}, err)
		return
	}
	progress(contract.DeployProgress{TxHash: hash}, nil)

	confirmer := &contract.Confirmer{Source: c, PollInterval: c.pollInterval, Logger: c.logger}
	receipt, err := confirmer.WaitReceipt(ctx, hash)
	if err != nil {
		progress(contract.DeployProgress{TxHash: hash}, err)
		return
	}

	addr := receipt.ContractAddress
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		progress(contract.DeployProgress{TxHash: hash}, err)
		return
	}
	if len(code) == 0 {
		progress(contract.DeployProgress{TxHash: hash}, ErrCodeNotStored)
		return
	}

	c.logger.Debug("Contract mined",
		zap.String("tx", hash),
		zap.String("address", addr.Hex()))
	progress(contract.DeployProgress{TxHash: hash, Address: &addr}, nil)
}
