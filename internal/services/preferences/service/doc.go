// Package service implements the preference use cases: listing each user's
// current preference, recording a new expression and describing the caller.
package service
