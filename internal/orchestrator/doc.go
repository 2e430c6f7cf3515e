// Package orchestrator runs the per-session turn loop. The Manager owns
// all sessions, wires each one's protocol client, agent, and adapter
// together, executes tool rounds, and delivers UI callbacks.
//
// Turn state machine per session: idle until the queue yields a unit, then
// generating while the agent streams a reply, then executing while the
// round's tool calls run, then idle again. A round that executed at least
// one call enqueues its results as one atomic follow-up unit, so the agent
// continues on its own until it answers without tool calls.
package orchestrator
