// Package preference defines the lecture capture preference model.
//
// A user's preference history is append-only: every expression is a new row
// stamped with the time it was made, and the row with the latest expressed_at
// is the user's current preference.
package preference
