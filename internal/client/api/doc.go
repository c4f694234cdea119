// Package api is the client of the tradeclub authentication API.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) for the
//     calls the session core depends on: Login, Signup and Logout.
//  2. A JSON-over-HTTP implementation (see HTTPClient) that maps status
//     codes and transport failures to sentinel errors and retries logout
//     while the server is unreachable.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnauthorized, ErrConflict, ErrUnavailable.
//
// All operations accept context.Context and honor cancellation.
package api
