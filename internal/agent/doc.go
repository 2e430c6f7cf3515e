// Package agent defines the contract between the orchestrator and a model
// provider. An Agent owns the provider-native rendering of one session's
// history: the orchestrator hands it opaque history entries built by the
// session's adapter and asks it to generate, streaming deltas through an
// Events sink.
//
// Implementations live under internal/adapter/<provider> next to the
// adapter components they pair with.
package agent
