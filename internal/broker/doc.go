// Package broker is the authorization and dispatch pipeline shared by all
// three transports.
//
// Every inbound call, regardless of whether it arrived over HTTP, the
// persistent WebSocket channel, or the local pipe, reduces to the same
// canonical triple (credential-or-session-id, operation name, arguments) and
// flows through the same sequence:
//
//	session lookup -> rate limiter -> permission check -> dispatch
//
// The rate limiter is consulted strictly after a successful session lookup,
// never the reverse, which fixes a single lock-acquisition order between the
// two shared structures. Tool handlers run on a session snapshot after the
// store's lock has been released.
//
// The broker returns typed errors from the auth, session, ratelimit, and
// tools packages; transports are the only layer that translates those into
// wire representations. ErrorKind maps an error to its stable kind string so
// all three adapters report the same taxonomy.
package broker
