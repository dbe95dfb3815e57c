// Package podtools registers the PoD protocol business tools and resources.
//
// These are pass-through calls: each handler validates its arguments and
// forwards to a Ledger, the external collaborator that talks to the chain.
// The broker core neither knows nor cares what the tools do; it only needs
// the stable registration contract from the tools package.
//
// An in-memory Ledger is included for local development and tests. The real
// blockchain client is out of scope here and plugs in behind the same
// interface.
package podtools
