// Package ethrpc binds contract.Backend to an Ethereum node over JSON-RPC.
// Transactions are signed by the node (eth_sendTransaction); no keys are
// handled here.
package ethrpc
