package contract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

const storageABI = `[
	{"type":"constructor","inputs":[{"name":"initial","type":"uint256"}]},
	{"type":"function","name":"get","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"set","inputs":[{"name":"x","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"set","inputs":[{"name":"x","type":"uint256"},{"name":"y","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"Stored","inputs":[{"name":"who","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

var testAddress = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakeBackend struct {
	mu sync.Mutex

	accounts    []common.Address
	accountsErr error

	invokeResult any
	invokeErr    error
	invoked      []CallRequest

	// receipts are returned in order by TransactionReceipt; the last
	// element repeats once the queue is exhausted.
	receipts      []*types.Receipt
	receiptErr    error
	receiptLookup atomic.Int32

	deployed       []DeployRequest
	deployProgress []DeployProgress
	deployErr      error

	sink         func(EventLog, error)
	subscribed   []EventRequest
	unsubscribed atomic.Int32
	// subEnd, when set, ends every subscription right away with this error.
	subEnd error

	sent    []TxOptions
	sendErr error
}

func (f *fakeBackend) Accounts(ctx context.Context) ([]common.Address, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeBackend) Invoke(ctx context.Context, req CallRequest) (any, error) {
	f.mu.Lock()
	f.invoked = append(f.invoked, req)
	f.mu.Unlock()
	return f.invokeResult, f.invokeErr
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash string) (*types.Receipt, error) {
	n := int(f.receiptLookup.Add(1))
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if len(f.receipts) == 0 {
		return nil, nil
	}
	if n > len(f.receipts) {
		n = len(f.receipts)
	}
	return f.receipts[n-1], nil
}

func (f *fakeBackend) Deploy(ctx context.Context, req DeployRequest, progress func(DeployProgress, error)) {
	f.mu.Lock()
	f.deployed = append(f.deployed, req)
	f.mu.Unlock()
	if f.deployErr != nil {
		progress(DeployProgress{}, f.deployErr)
		return
	}
	for _, p := range f.deployProgress {
		progress(p, nil)
	}
}

func (f *fakeBackend) SubscribeEvent(ctx context.Context, req EventRequest, sink func(EventLog, error)) (event.Subscription, error) {
	f.mu.Lock()
	f.subscribed = append(f.subscribed, req)
	f.sink = sink
	end := f.subEnd
	f.mu.Unlock()
	return event.NewSubscription(func(quit <-chan struct{}) error {
		if end != nil {
			return end
		}
		<-quit
		f.unsubscribed.Add(1)
		return nil
	}), nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, opts TxOptions) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, opts)
	f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "0xfeed", nil
}

func (f *fakeBackend) emit(log EventLog, err error) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink(log, err)
}

var errBoom = errors.New("boom")
