// Package cli provides the interactive tradeclub command-line client.
//
// One process is one browser tab. It wires configuration, the shared
// SQLite storage, the auth API client, the storage watcher, the session
// synchronizer and the cart, then runs a REPL until the user exits.
//
// Key features:
//   - Login / Signup / Logout and profile edits
//   - Session changes made in other tabs are picked up and announced
//   - A tab-local cart: add, remove, change quantity, show, clear
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
