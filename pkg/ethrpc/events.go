package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/contract"
)

// SubscribeEvent watches the logs of one event. Nodes that push
// notifications are subscribed to directly; plain HTTP nodes are polled
// with eth_getLogs from the current head onward.
func (c *Client) SubscribeEvent(ctx context.Context, req contract.EventRequest, sink func(contract.EventLog, error)) (event.Subscription, error) {
	if req.Descriptor.Address == nil {
		return nil, errors.New("event subscription needs a contract address")
	}
	bound := bind.NewBoundContract(*req.Descriptor.Address, req.Descriptor.ABI, c.eth, c.eth, c.eth)
	name := req.Event.Name

	logs, inner, err := bound.WatchLogs(&bind.WatchOpts{Context: ctx}, name, req.Filter...)
	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		c.logger.Debug("Node cannot push logs, polling instead", zap.String("event", name))
		return c.pollEvent(ctx, bound, req, sink)
	}
	if err != nil {
		return nil, err
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer inner.Unsubscribe()
		for {
			select {
			case l := <-logs:
				sink(decodeLog(bound, name, l))
			case err := <-inner.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (c *Client) pollEvent(ctx context.Context, bound *bind.BoundContract, req contract.EventRequest, sink func(contract.EventLog, error)) (event.Subscription, error) {
	name := req.Event.Name
	ev, ok := req.Descriptor.ABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("event %q not found in ABI", name)
	}
	topics, err := abi.MakeTopics(req.Filter...)
	if err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{*req.Descriptor.Address},
		Topics:    append([][]common.Hash{{ev.ID}}, topics...),
	}

	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	next := head + 1

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			head, err := c.eth.BlockNumber(ctx)
			if err != nil {
				sink(contract.EventLog{}, err)
				continue
			}
			if head < next {
				continue
			}
			query.FromBlock = new(big.Int).SetUint64(next)
			query.ToBlock = new(big.Int).SetUint64(head)
			logs, err := c.eth.FilterLogs(ctx, query)
			if err != nil {
				sink(contract.EventLog{}, err)
				continue
			}
			for _, l := range logs {
				sink(decodeLog(bound, name, l))
			}
			next = head + 1
		}
	}), nil
}

func decodeLog(bound *bind.BoundContract, name string, l types.Log) (contract.EventLog, error) {
	args := make(map[string]any)
	if err := bound.UnpackLogIntoMap(args, name, l); err != nil {
		return contract.EventLog{}, err
	}
	return contract.EventLog{
		Event:       name,
		Args:        args,
		Address:     l.Address,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
		Removed:     l.Removed,
		Raw:         l,
	}, nil
}
