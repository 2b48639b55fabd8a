// Package cli provides the interactive credcore shell.
//
// It drives the authentication flow from a terminal: register, verify the
// emailed code, log in (with a second factor when enrolled), manage the
// second factor and profile, inspect the audit log and log out.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list.
package cli
