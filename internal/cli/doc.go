// Package cli is responsible for parsing command-line arguments into the
// application's configuration. It is the bridge between the user's
// terminal input and the core application logic, and maps failures to
// process exit codes.
package cli
