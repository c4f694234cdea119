package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("  ann@example.com \n"))
	var out bytes.Buffer

	got, err := GetSimpleText(in, "Email", &out)
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", got)
	require.Equal(t, "Email: ", out.String())
}

func TestGetSimpleText_LastLineWithoutNewline(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("Ann"))
	var out bytes.Buffer

	got, err := GetSimpleText(in, "Full name", &out)
	require.NoError(t, err)
	require.Equal(t, "Ann", got)

	_, err = GetSimpleText(in, "Full name", &out)
	require.ErrorIs(t, err, io.EOF)
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out, "Password")
	require.NoError(t, err)
	require.Equal(t, []byte("s3cret"), pw)
	require.Equal(t, "Password: \n", out.String())

	boom := errors.New("boom")
	readPassword = func(int) ([]byte, error) { return nil, boom }
	_, err = GetPassword(&out, "Password")
	require.ErrorIs(t, err, boom)
}
