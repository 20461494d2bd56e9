package ethrpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toadkicker/embark-framework/pkg/contract"
)

const storageABI = `[
	{"type":"constructor","inputs":[{"name":"initial","type":"uint256"}]},
	{"type":"function","name":"get","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"set","inputs":[{"name":"x","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"Stored","inputs":[{"name":"who","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

var (
	account      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	txHash       = common.HexToHash("0x01")
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC requests from a table of handlers.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]func(params []json.RawMessage) any
	calls    map[string][]rpcRequest
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		handlers: make(map[string]func([]json.RawMessage) any),
		calls:    make(map[string][]rpcRequest),
	}
}

func (n *fakeNode) on(method string, fn func(params []json.RawMessage) any) {
	n.mu.Lock()
	n.handlers[method] = fn
	n.mu.Unlock()
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls[method])
}

func (n *fakeNode) lastParams(method string) []json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	calls := n.calls[method]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1].Params
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method] = append(n.calls[req.Method], req)
	fn := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if fn == nil {
		resp["error"] = map[string]any{"code": -32601, "message": "method not found: " + req.Method}
	} else {
		result := fn(req.Params)
		if err, ok := result.(error); ok {
			resp["error"] = map[string]any{"code": -32000, "message": err.Error()}
		} else {
			resp["result"] = result
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)

	rc, err := rpc.DialHTTP(server.URL)
	require.NoError(t, err)
	t.Cleanup(rc.Close)

	return NewClient(rc, Config{PollInterval: 2 * time.Millisecond}, nil)
}

func testDescriptor(t *testing.T) contract.Descriptor {
	t.Helper()
	desc, err := contract.ParseDescriptor([]byte(storageABI), "0x6060", contractAddr.Hex())
	require.NoError(t, err)
	return desc
}

func specNamed(desc contract.Descriptor, name string) contract.MethodSpec {
	for _, s := range desc.Entries {
		if s.Name == name {
			return s
		}
	}
	return contract.MethodSpec{}
}

func receiptJSON(created *common.Address) map[string]any {
	r := map[string]any{
		"transactionHash":   txHash.Hex(),
		"blockHash":         common.HexToHash("0x02").Hex(),
		"blockNumber":       "0x1",
		"transactionIndex":  "0x0",
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"logsBloom":         hexutil.Encode(make([]byte, 256)),
		"logs":              []any{},
		"status":            "0x1",
		"type":              "0x0",
	}
	if created != nil {
		r["contractAddress"] = created.Hex()
	}
	return r
}

func TestAccounts(t *testing.T) {
	node := newFakeNode()
	node.on("eth_accounts", func([]json.RawMessage) any { return []string{account.Hex()} })
	c := newTestClient(t, node)

	accounts, err := c.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{account}, accounts)
}

func TestInvokeReadOnlyUsesCall(t *testing.T) {
	node := newFakeNode()
	out, err := abi.Arguments{{Type: mustType(t, "uint256")}}.Pack(big.NewInt(42))
	require.NoError(t, err)
	node.on("eth_call", func([]json.RawMessage) any { return hexutil.Encode(out) })
	c := newTestClient(t, node)
	desc := testDescriptor(t)

	v, err := c.Invoke(context.Background(), contract.CallRequest{
		Descriptor: desc,
		Method:     specNamed(desc, "get"),
	})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), v)
	assert.Zero(t, node.count("eth_sendTransaction"))
}

func TestInvokeMutatingSendsTransaction(t *testing.T) {
	node := newFakeNode()
	node.on("eth_accounts", func([]json.RawMessage) any { return []string{account.Hex()} })
	node.on("eth_sendTransaction", func([]json.RawMessage) any { return txHash.Hex() })
	c := newTestClient(t, node)
	desc := testDescriptor(t)

	v, err := c.Invoke(context.Background(), contract.CallRequest{
		Descriptor: desc,
		Method:     specNamed(desc, "set"),
		Args:       []any{big.NewInt(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, txHash.Hex(), v)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(node.lastParams("eth_sendTransaction")[0], &sent))
	assert.Equal(t, strings.ToLower(account.Hex()), strings.ToLower(sent["from"]))
	assert.Equal(t, strings.ToLower(contractAddr.Hex()), strings.ToLower(sent["to"]))
	assert.True(t, strings.HasPrefix(sent["data"], "0x60fe47b1"), "set(uint256) selector")
}

func TestTransactionReceiptAbsent(t *testing.T) {
	node := newFakeNode()
	node.on("eth_getTransactionReceipt", func([]json.RawMessage) any { return nil })
	c := newTestClient(t, node)

	r, err := c.TransactionReceipt(context.Background(), txHash.Hex())
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestTransactionReceiptError(t *testing.T) {
	node := newFakeNode()
	c := newTestClient(t, node)

	_, err := c.TransactionReceipt(context.Background(), txHash.Hex())
	assert.Error(t, err)
}

func TestDeployReportsHashThenAddress(t *testing.T) {
	node := newFakeNode()
	node.on("eth_accounts", func([]json.RawMessage) any { return []string{account.Hex()} })
	node.on("eth_sendTransaction", func([]json.RawMessage) any { return txHash.Hex() })
	node.on("eth_getTransactionReceipt", func([]json.RawMessage) any {
		if node.count("eth_getTransactionReceipt") < 2 {
			return nil
		}
		return receiptJSON(&contractAddr)
	})
	node.on("eth_getCode", func([]json.RawMessage) any { return "0x6060" })
	c := newTestClient(t, node)

	var reports []contract.DeployProgress
	c.Deploy(context.Background(), contract.DeployRequest{
		Descriptor: testDescriptor(t),
		Args:       []any{big.NewInt(1)},
		Opts:       contract.TxOptions{From: &account, Gas: 800000, Data: []byte{0x60, 0x60}},
	}, func(p contract.DeployProgress, err error) {
		require.NoError(t, err)
		reports = append(reports, p)
	})

	require.Len(t, reports, 2)
	assert.Nil(t, reports[0].Address)
	assert.Equal(t, txHash.Hex(), reports[0].TxHash)
	require.NotNil(t, reports[1].Address)
	assert.Equal(t, contractAddr, *reports[1].Address)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(node.lastParams("eth_sendTransaction")[0], &sent))
	assert.Empty(t, sent["to"])
	assert.Equal(t, "0xc3500", sent["gas"])
	assert.True(t, strings.HasPrefix(sent["data"], "0x6060"))
	assert.Len(t, sent["data"], len("0x6060")+64)
}

func TestDeployWithoutCodeFails(t *testing.T) {
	node := newFakeNode()
	node.on("eth_sendTransaction", func([]json.RawMessage) any { return txHash.Hex() })
	node.on("eth_getTransactionReceipt", func([]json.RawMessage) any { return receiptJSON(&contractAddr) })
	node.on("eth_getCode", func([]json.RawMessage) any { return "0x" })
	c := newTestClient(t, node)

	var lastErr error
	c.Deploy(context.Background(), contract.DeployRequest{
		Descriptor: testDescriptor(t),
		Args:       []any{big.NewInt(1)},
		Opts:       contract.TxOptions{From: &account, Data: []byte{0x60}},
	}, func(p contract.DeployProgress, err error) {
		if err != nil {
			lastErr = err
		}
	})
	assert.ErrorIs(t, lastErr, ErrCodeNotStored)
}

func TestSubscribeEventFallsBackToPolling(t *testing.T) {
	node := newFakeNode()
	var mu sync.Mutex
	head := uint64(10)
	node.on("eth_blockNumber", func([]json.RawMessage) any {
		mu.Lock()
		defer mu.Unlock()
		return hexutil.EncodeUint64(head)
	})

	desc := testDescriptor(t)
	ev := desc.ABI.Events["Stored"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(9))
	require.NoError(t, err)
	node.on("eth_getLogs", func([]json.RawMessage) any {
		return []any{map[string]any{
			"address":          contractAddr.Hex(),
			"topics":           []string{ev.ID.Hex(), common.BytesToHash(account.Bytes()).Hex()},
			"data":             hexutil.Encode(data),
			"blockNumber":      "0xb",
			"transactionHash":  txHash.Hex(),
			"transactionIndex": "0x0",
			"blockHash":        common.HexToHash("0x02").Hex(),
			"logIndex":         "0x0",
			"removed":          false,
		}}
	})
	c := newTestClient(t, node)

	got := make(chan contract.EventLog, 1)
	sub, err := c.SubscribeEvent(context.Background(), contract.EventRequest{
		Descriptor: desc,
		Event:      specNamed(desc, "Stored"),
	}, func(l contract.EventLog, err error) {
		if err == nil {
			got <- l
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	mu.Lock()
	head = 11
	mu.Unlock()

	select {
	case l := <-got:
		assert.Equal(t, "Stored", l.Event)
		assert.Equal(t, big.NewInt(9), l.Args["value"])
		assert.Equal(t, account, l.Args["who"])
		assert.EqualValues(t, 11, l.BlockNumber)
	case <-time.After(2 * time.Second):
		t.Fatal("no log delivered")
	}
}

func mustType(t *testing.T, name string) abi.Type {
	t.Helper()
	typ, err := abi.NewType(name, "", nil)
	require.NoError(t, err)
	return typ
}
