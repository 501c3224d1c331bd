// Package server composes and runs the preferences process boundary.
//
// It opens the configured store, builds the application service and serves the
// JSON API (plus an optional static front-end) over one HTTP listener.
package server
