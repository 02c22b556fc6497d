// Package relay implements the Relay Hub.
//
// The hub:
//   - Tracks every open WebSocket connection in one Connection Set
//   - Forwards each inbound message, unchanged, to every other open connection
//   - Never blocks a broadcast on a slow peer (per-peer sends are non-blocking)
//   - Drops a connection from the set on close or any transport error
package relay
