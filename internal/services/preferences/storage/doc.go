// Package storage defines persistence contracts for preference history.
//
// Handlers and the application service depend on these interfaces so the
// SQLite and PostgreSQL drivers stay interchangeable.
package storage
