// Package session implements the in-memory session store shared by every
// transport in pod-mcp-server.
//
// A Session is the server-side record of one authenticated caller: identity,
// permission set, activity timestamps, and optional use budget. The Store is
// the single source of truth for session state; all three transports
// (request/response HTTP, persistent WebSocket, local pipe) read and write
// through it, so every operation runs under the store's lock and operations
// on one session id are observed in a single linear order.
//
// Credential verification happens through an auth.Verifier before the store
// lock is taken, so no network call ever runs while session state is held.
// The store hands out snapshot copies of sessions, never pointers into its
// own table: handlers work on a copy that is safe to read after the lock is
// released.
//
// Expired sessions are unusable the moment their deadline passes; lookup
// re-checks expiry itself rather than relying on the periodic sweep. The
// Scheduler drives that sweep on a fixed interval and is safe to stop more
// than once.
package session
