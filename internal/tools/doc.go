// Package tools is the name-to-handler dispatch layer behind authorization.
//
// Tool implementations and resource readers are external collaborators: they
// register themselves in a Registry at startup and are invoked by the broker
// after the session and rate-limit checks pass. The registry's own
// responsibilities stop at three things: reject unknown names, check the
// operation's required permission against the session's flat permission set,
// and call the handler.
//
// Handlers run outside the registry lock, after the session store has
// released its lock too, so a slow tool never blocks registration, listing,
// or other callers.
package tools
