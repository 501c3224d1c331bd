// Package httpapi exposes the preference service over JSON HTTP endpoints.
package httpapi
