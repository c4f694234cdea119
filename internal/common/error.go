// Package common defines shared constants and sentinel errors used across
// the storage, session and cart layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

// ErrMalformedRecord reports a persisted record that could not be decoded.
// Readers treat it as absent.
var ErrMalformedRecord = errors.New("malformed persisted record")
