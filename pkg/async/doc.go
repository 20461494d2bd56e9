// Package async holds the two completion shapes the facades hand back to
// callers.
//
// Pending is a one-shot result: it settles exactly once, with a value or an
// error, and every waiter observes the same outcome. Contract calls,
// deployments and storage operations return one.
//
// MessageEvent is a repeating notification stream with a single value
// handler, a single error handler and a Cancel method. Contract event
// subscriptions and messaging listeners return one. A stream never settles
// and a Pending never repeats.
package async
