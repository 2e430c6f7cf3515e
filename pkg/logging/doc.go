// Package logging provides subsystem-tagged structured logging over log/slog.
//
// Two modes are supported. CLI mode writes text records to the configured
// writer. Relay mode buffers entries on a channel so an interactive consumer
// (the chat REPL) can render them without corrupting its own prompt; when the
// relay buffer is full the entry is dropped to stderr rather than blocking
// the producer.
//
// All packages log through the package-level Debug/Info/Warn/Error functions
// with a short subsystem tag as the first argument.
package logging
