// Package cli implements the interactive chat surface on top of the
// orchestrator. Rendering concerns live here; the orchestrator never
// touches the terminal.
package cli
