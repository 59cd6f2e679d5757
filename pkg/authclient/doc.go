// Package authclient is a small Go client for the clubdeck authentication
// service. It wraps the HTTP API with typed requests and responses so other
// services can validate sessions and drive authentication flows without
// hand-rolling HTTP calls.
//
// The client is deliberately stateless: callers hold the opaque session and
// refresh tokens themselves and pass them in where needed.
package authclient
