// Package sqlite provides the SQLite-backed preference store.
package sqlite
