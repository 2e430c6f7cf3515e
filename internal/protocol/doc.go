// Package protocol implements the MCP-facing client of a tether session.
//
// Each session owns exactly one Client. The client wraps an mcp-go transport
// (SSE or streamable-http), maintains a revisioned capability cache, and runs
// a notification listener that refreshes the cache when the server announces
// a tool/prompt/resource list change. Cache writes are serialized by that
// listener; readers take immutable snapshots.
//
// Outbound operations (tool calls, prompt gets, resource reads, listings) are
// bounded by a per-call timeout and retried with exponential backoff on
// transport failure. A call that still fails after the retry budget surfaces
// as an *api.ProtocolTransportError, which the orchestrator treats as a
// recoverable per-call error rather than a session failure.
//
// The client also hosts two protocol extensions:
//
//   - Server-initiated sampling: the server can ask the client to run a model
//     invocation. The client exposes an mcp-go sampling handler that bridges
//     to the session's agent, throttled by a shared semaphore.
//   - Transactions: Begin/Commit/Abort with buffered mutations applied
//     atomically on commit. MCP itself has no transaction frames, so the
//     buffered mutations target session-scoped state; a transaction left
//     open at teardown is implicitly aborted.
package protocol
