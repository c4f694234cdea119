// Package storage implements the persisted stores behind the client state.
//
// A browser is one SQLite file; every tab (client process) opens it.
//
//   - SharedRepository is the cross-tab store (the "cookie jar"). Rows may
//     expire, and every write is appended to a change log tagged with the
//     writing tab.
//   - TabRepository is the per-tab store, scoped by tab id and dropped when
//     the tab closes.
//   - MemoryRepository is a process-local Repository for tests and embedded use.
//   - Watcher turns filesystem notifications on the database into storage
//     events for writes made by other tabs.
//
// All repositories return (nil, nil) from Get when the key is absent.
package storage
