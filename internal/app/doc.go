// Package app contains the core application logic. It wires a pipeline file,
// the action registry and the run-time services (artifact store, secrets,
// notifier) into one run, decoupled from any specific entrypoint like a CLI.
package app
