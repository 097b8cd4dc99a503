// Package engine dispatches tasks to targets and tracks them to a terminal
// result.
//
// Submissions land in the ledger as active and are queued; a drain loop hands
// each one to the executor under a fixed-size pool. The executor resolves the
// target through a target.Resolver, starts it if needed, invokes it with a
// hard timeout, and records exactly one terminal TaskResult. Callers block
// for a result with Wait, which is notified by the ledger rather than polled.
package engine
