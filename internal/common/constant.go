// Package common contains shared constants and sentinel errors used across
// tradeclub client components.
package common

const (
	// SessionStorageKey names the cross-tab record holding the signed-in user.
	SessionStorageKey = "user"

	// CartStorageKey names the per-tab record holding the cart line items.
	CartStorageKey = "cart"

	// AuthorizationHeaderName carries the bearer token on API requests.
	AuthorizationHeaderName = "Authorization"
)
