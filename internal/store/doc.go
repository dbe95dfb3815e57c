// Package store persists per-caller call history to SQLite.
//
// Every dispatched tool call and resource read is appended as a CallRecord
// keyed by session and user, so one caller's history can be listed without
// exposing any other caller's. Session state itself is never persisted here;
// sessions are in-memory only and do not survive a restart.
package store
