// Package contract turns a contract's ABI into callable members backed by
// a Backend (the RPC node client).
//
// Every ABI entry becomes one Method at construction time. A Method is
// tagged with one of three capabilities and dispatched on it:
//
//   - CapRead: constant/view/pure functions. The backend's return value is
//     handed back as-is, with no receipt polling.
//   - CapTransact: state-mutating functions. The backend returns a
//     transaction hash and the Confirmer polls for its receipt.
//   - CapEvent: events. Subscribe opens a log subscription and returns an
//     async.MessageEvent that stays open until cancelled.
//
// A bound Proxy never changes its address; At returns a new Proxy.
package contract
