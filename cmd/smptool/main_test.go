package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })

	err := newApp().Run(append([]string{"smptool"}, args...))
	return buf.String(), err
}

func TestCryptoC1(t *testing.T) {
	got, err := run(t, "crypto", "c1",
		"00000000000000000000000000000000",
		"e02e70c64e2788630e6fad5621d58357",
		"01010000100707", "02030000080005",
		"1", "a6a5a4a3a2a1", "0", "b6b5b4b3b2b1")
	require.NoError(t, err)
	require.Equal(t, "863bf1bec54da7d2ea888987ef3f1e1e\n", got)
}

func TestCryptoCMAC(t *testing.T) {
	got, err := run(t, "crypto", "cmac", "2b7e151628aed2a6abf7158809cf4f3c", "6bc1bee22e409f96e93d7e117393172a")
	require.NoError(t, err)
	require.Equal(t, "070a16b46b4d4144f79bdd9dd04a287c\n", got)
}

func TestCryptoBadArgs(t *testing.T) {
	_, err := run(t, "crypto", "s1", "00")
	require.Error(t, err)

	_, err = run(t, "crypto", "ah", "zz", "000000")
	require.Error(t, err)
}

func TestPairAndListBonds(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bonds.json")

	got, err := run(t, "pair", "--sc", "--bond-file", file)
	require.NoError(t, err)
	require.Contains(t, got, "central    paired")
	require.Contains(t, got, "peripheral paired")

	got, err = run(t, "bonds", "list", "--file", file)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "c1:c2:c3:c4:c5:c6"), got)

	_, err = run(t, "bonds", "delete", "--file", file, "--random", "c1:c2:c3:c4:c5:c6")
	require.NoError(t, err)

	got, err = run(t, "bonds", "list", "--file", file)
	require.NoError(t, err)
	require.Contains(t, got, "no bonds")
}

func TestPairNumericComparisonRejected(t *testing.T) {
	got, err := run(t, "pair", "--sc", "--mitm", "--init-io", "1", "--resp-io", "1", "--reject")
	require.Error(t, err)
	require.Contains(t, got, "compare")
	require.Contains(t, got, "numeric comparison failed")
}
