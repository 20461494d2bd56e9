package contract

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
)

// DefaultPollInterval is the wait between two receipt lookups.
const DefaultPollInterval = 1000 * time.Millisecond

// ReceiptSource looks up transaction receipts.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error)
}

// Confirmer turns a backend call outcome into a final value, polling for the
// receipt of mutating calls.
type Confirmer struct {
	Source       ReceiptSource
	PollInterval time.Duration
	// MaxAttempts bounds the number of receipt lookups. Zero polls forever.
	MaxAttempts int
	Logger      *zap.Logger
}

// Confirm settles a call outcome. Non-string values and read-only results
// are returned as they are; a string on a mutating method is treated as a
// transaction hash and resolved to its receipt.
func (c *Confirmer) Confirm(ctx context.Context, raw any, readOnly bool) (any, error) {
	hash, ok := raw.(string)
	if readOnly || !ok {
		return raw, nil
	}
	return c.WaitReceipt(ctx, hash)
}

// WaitReceipt polls for the receipt of hash until it is found, the lookup
// fails, the context ends or MaxAttempts is exhausted.
func (c *Confirmer) WaitReceipt(ctx context.Context, hash string) (*types.Receipt, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := 0
	for {
		receipt, err := c.Source.TransactionReceipt(ctx, hash)
		attempts++
		if err != nil {
			return nil, embarkerrors.NewTransportError("eth_getTransactionReceipt", err)
		}
		if receipt != nil {
			logger.Debug("Transaction confirmed",
				zap.String("tx", hash),
				zap.Int("attempts", attempts))
			return receipt, nil
		}
		if c.MaxAttempts > 0 && attempts >= c.MaxAttempts {
			return nil, embarkerrors.Newf("transaction %s not confirmed after %d attempts", hash, attempts)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for receipt of %s: %w", hash, ctx.Err())
		case <-timer.C:
		}
	}
}
