// Package session keeps a tab's notion of the current user aligned with the
// cross-tab session record.
//
// The Synchronizer is the only owner of the in-memory session. Writers
// (LoginSuccess, Logout, UpdateProfile) update memory and persist to both
// the shared store and the per-tab store. Readers bring memory back in line
// with the shared store through SyncFromPersistedStore, which two triggers
// call once Start has run:
//
//   - storage events from a Notifier, delivered for other tabs' writes only;
//   - a poller that re-reads the shared record every interval and syncs
//     only when its serialized form differs from the last synced one.
//
// The poller covers stores that do not notify reliably and records that
// simply expire. Neither trigger ever writes to a store.
package session
