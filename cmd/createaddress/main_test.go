package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

func TestKnownAddresses(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{{
		path: "m/44'/0'/0'/0/0",
		want: "p2pkh:        1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA",
	}, {
		path: "m/84'/0'/0'/0/0",
		want: "p2wpkh:       bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu",
	}}

	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			var out bytes.Buffer
			err := run(&out, &options{
				Network:  "bitcoin",
				Mnemonic: testMnemonic,
				Path:     test.path,
				Count:    1,
			})
			require.NoError(t, err)
			require.Contains(t, out.String(), test.want)
			require.NotContains(t, out.String(), "mnemonic:")
		})
	}
}

func TestConsecutiveKeys(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, &options{
		Network: "ghost",
		Path:    "m/44'/531'/0'/0/5",
		Count:   3,
	})
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "mnemonic: ")
	require.Contains(t, text, "master xpub: ")
	for _, path := range []string{
		"m/44'/531'/0'/0/5", "m/44'/531'/0'/0/6", "m/44'/531'/0'/0/7",
	} {
		require.Contains(t, text, path+"\n")
	}
	require.Equal(t, 3, strings.Count(text, "p2tr:"))
	require.Contains(t, text, "p2wpkh:       gp1")
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer

	err := run(&out, &options{Network: "nowhere", Count: 1})
	require.ErrorIs(t, err, netparams.ErrUnknownNetwork)

	err = run(&out, &options{
		Network:  "bitcoin",
		Mnemonic: "abandon about",
		Path:     "m/0",
		Count:    1,
	})
	require.Error(t, err)

	err = run(&out, &options{
		Network:  "bitcoin",
		Mnemonic: testMnemonic,
		Path:     "m",
		Count:    1,
	})
	require.Error(t, err)
}
