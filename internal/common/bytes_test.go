package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWipeByteArray(t *testing.T) {
	b := []byte("s3cret")
	WipeByteArray(b)
	require.Equal(t, make([]byte, 6), b)

	require.NotPanics(t, func() { WipeByteArray(nil) })
}
