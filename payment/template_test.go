package payment

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/stretchr/testify/require"
)

// testKeys returns n deterministic compressed public keys.
func testKeys(n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		secret := bytes.Repeat([]byte{byte(i + 1)}, 32)
		_, pub := btcec.PrivKeyFromBytes(secret)
		keys[i] = pub.SerializeCompressed()
	}
	return keys
}

func TestMultisigSortsKeys(t *testing.T) {
	keys := testKeys(4)
	reversed := [][]byte{keys[3], keys[2], keys[1], keys[0]}

	a, err := Build(Multisig{M: 2, Keys: keys}, &chaincfg.MainNetParams)
	require.NoError(t, err)
	b, err := Build(Multisig{M: 2, Keys: reversed}, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, a.Script, b.Script)

	m, parsed, err := ParseMultisig(a.Script)
	require.NoError(t, err)
	require.Equal(t, 2, m)
	require.Equal(t, SortKeys(keys), parsed)
	for i := 1; i < len(parsed); i++ {
		require.Negative(t, bytes.Compare(parsed[i-1], parsed[i]))
	}

	// Bare multisig has no address form.
	require.Empty(t, a.Address)
	_, err = Address(Multisig{M: 2, Keys: keys}, &chaincfg.MainNetParams)
	require.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestMultisigThreshold(t *testing.T) {
	tests := []struct {
		name string
		m    int
		n    int
		err  error
	}{
		{"zero threshold", 0, 3, ErrInvalidThreshold},
		{"threshold above keys", 4, 3, ErrInvalidThreshold},
		{"no keys", 1, 0, ErrInvalidThreshold},
		{"too many keys", 1, 16, ErrInvalidThreshold},
		{"one of one", 1, 1, nil},
		{"fifteen of fifteen", 15, 15, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Build(
				Multisig{M: test.m, Keys: testKeys(test.n)},
				&chaincfg.MainNetParams,
			)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMultisigDuplicateKey(t *testing.T) {
	keys := testKeys(2)
	_, err := Build(
		Multisig{M: 1, Keys: [][]byte{keys[0], keys[1], keys[0]}},
		&chaincfg.MainNetParams,
	)
	require.ErrorIs(t, err, ErrInvalidPubKey)
}

func TestNesting(t *testing.T) {
	keys := testKeys(3)
	ms := Multisig{M: 2, Keys: keys}
	net := &chaincfg.TestNet3Params

	// p2sh(p2ms): the multisig script is the redeem script.
	p2sh, err := Build(ScriptHash{Redeem: ms}, net)
	require.NoError(t, err)
	msPay, err := Build(ms, net)
	require.NoError(t, err)
	require.Equal(t, msPay.Script, p2sh.RedeemScript)
	require.Nil(t, p2sh.WitnessScript)
	require.Equal(t, txscript.ScriptHashTy, Classify(p2sh.Script))
	require.Equal(t, btcutil.Hash160(msPay.Script), ScriptHashOf(p2sh.Script))

	// p2wsh(p2ms): the multisig script is the witness script.
	p2wsh, err := Build(WitnessScriptHash{Redeem: ms}, net)
	require.NoError(t, err)
	require.Equal(t, msPay.Script, p2wsh.WitnessScript)
	require.Nil(t, p2wsh.RedeemScript)
	hash := sha256.Sum256(msPay.Script)
	require.Equal(t, hash[:], WitnessScriptHashOf(p2wsh.Script))

	// p2sh(p2wsh(p2ms)): both scripts are retained side by side.
	nested, err := Build(
		ScriptHash{Redeem: WitnessScriptHash{Redeem: ms}}, net,
	)
	require.NoError(t, err)
	require.Equal(t, p2wsh.Script, nested.RedeemScript)
	require.Equal(t, msPay.Script, nested.WitnessScript)

	// p2sh(p2wpkh): the witness program is the redeem script.
	wpkh, err := Build(WitnessPubKeyHash{Key: keys[0]}, net)
	require.NoError(t, err)
	p2shWpkh, err := Build(ScriptHash{Redeem: wpkh.Template}, net)
	require.NoError(t, err)
	require.Equal(t, wpkh.Script, p2shWpkh.RedeemScript)
	require.Nil(t, p2shWpkh.WitnessScript)
}

func TestInvalidNesting(t *testing.T) {
	key := testKeys(1)[0]
	net := &chaincfg.MainNetParams

	tests := []struct {
		name     string
		template Template
		err      error
	}{
		{"p2sh in p2sh",
			ScriptHash{Redeem: ScriptHash{Redeem: PubKey{Key: key}}},
			ErrInvalidNesting},
		{"p2wpkh in p2wsh",
			WitnessScriptHash{Redeem: WitnessPubKeyHash{Key: key}},
			ErrInvalidNesting},
		{"p2sh in p2wsh",
			WitnessScriptHash{Redeem: ScriptHash{Redeem: PubKey{Key: key}}},
			ErrInvalidNesting},
		{"embed in p2wsh",
			WitnessScriptHash{Redeem: Embed{}}, ErrInvalidNesting},
		{"empty p2sh", ScriptHash{}, ErrEmptyTemplate},
		{"nil template", nil, ErrEmptyTemplate},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Build(test.template, net)
			require.ErrorIs(t, err, test.err)
		})
	}
}

func TestWitnessKeyMustBeCompressed(t *testing.T) {
	_, pub := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{7}, 32))

	_, err := Build(
		WitnessPubKeyHash{Key: pub.SerializeUncompressed()},
		&chaincfg.MainNetParams,
	)
	require.ErrorIs(t, err, ErrInvalidPubKey)

	_, err = Build(
		PubKeyHash{Key: pub.SerializeUncompressed()},
		&chaincfg.MainNetParams,
	)
	require.NoError(t, err)

	_, err = Build(PubKeyHash{Key: []byte{0x02, 0x01}},
		&chaincfg.MainNetParams)
	require.ErrorIs(t, err, ErrInvalidPubKey)
}

func TestEmbed(t *testing.T) {
	p, err := Build(Embed{Data: [][]byte{[]byte("ghost")}},
		&chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, txscript.NullDataTy, Classify(p.Script))
	require.Empty(t, p.Address)
}

// TestAddressRoundTrip encodes and decodes the output script of every
// addressable template on every network.
func TestAddressRoundTrip(t *testing.T) {
	keys := testKeys(3)
	ms := Multisig{M: 2, Keys: keys}

	templates := map[string]Template{
		"p2pkh":       PubKeyHash{Key: keys[0]},
		"p2wpkh":      WitnessPubKeyHash{Key: keys[0]},
		"p2sh-p2ms":   ScriptHash{Redeem: ms},
		"p2sh-p2pk":   ScriptHash{Redeem: PubKey{Key: keys[1]}},
		"p2wsh-p2ms":  WitnessScriptHash{Redeem: ms},
		"p2wsh-p2pkh": WitnessScriptHash{Redeem: PubKeyHash{Key: keys[2]}},
		"p2sh-p2wpkh": ScriptHash{Redeem: WitnessPubKeyHash{Key: keys[0]}},
		"p2sh-p2wsh-p2ms": ScriptHash{
			Redeem: WitnessScriptHash{Redeem: ms},
		},
	}

	for _, params := range netparams.All() {
		for name, template := range templates {
			p, err := Build(template, params.Params)
			require.NoError(t, err, "%s/%s", params.Name, name)
			require.NotEmpty(t, p.Address, "%s/%s", params.Name, name)

			script, err := DecodeAddress(p.Address, params.Params)
			require.NoError(t, err, "%s/%s", params.Name, name)
			require.Equal(t, p.Script, script, "%s/%s", params.Name, name)

			addr, err := EncodeAddress(script, params.Params)
			require.NoError(t, err)
			require.Equal(t, p.Address, addr)
		}
	}
}

func TestTaprootAddressRoundTrip(t *testing.T) {
	program := bytes.Repeat([]byte{0x11}, 32)
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(program).
		Script()
	require.NoError(t, err)

	for _, params := range netparams.All() {
		addr, err := EncodeAddress(script, params.Params)
		require.NoError(t, err, params.Name)

		decoded, err := DecodeAddress(addr, params.Params)
		require.NoError(t, err, params.Name)
		require.Equal(t, script, decoded, params.Name)
	}
}

func TestDecodeAddressWrongNetwork(t *testing.T) {
	key := testKeys(1)[0]

	for _, template := range []Template{
		PubKeyHash{Key: key},
		WitnessPubKeyHash{Key: key},
		ScriptHash{Redeem: PubKey{Key: key}},
	} {
		addr, err := Address(template, netparams.GhostParams.Params)
		require.NoError(t, err)

		_, err = DecodeAddress(addr, netparams.MainNetParams.Params)
		require.ErrorIs(t, err, ErrInvalidAddress, addr)

		_, err = DecodeAddress(addr, netparams.GhostTestNetParams.Params)
		require.ErrorIs(t, err, ErrInvalidAddress, addr)
	}
}

// flipLast returns addr with its final character replaced, which breaks the
// checksum of both base58check and bech32 encodings.
func flipLast(addr string) string {
	last := addr[len(addr)-1]
	repl := byte('q')
	if last == 'q' {
		repl = 'p'
	}
	return addr[:len(addr)-1] + string(repl)
}

func TestDecodeAddressMalformed(t *testing.T) {
	key := testKeys(1)[0]
	net := &chaincfg.TestNet3Params

	legacy, err := Address(PubKeyHash{Key: key}, net)
	require.NoError(t, err)
	segwit, err := Address(WitnessPubKeyHash{Key: key}, net)
	require.NoError(t, err)

	tests := []string{
		"",
		"not-an-address",
		flipLast(legacy),
		flipLast(segwit),
	}

	for _, addr := range tests {
		_, err := DecodeAddress(addr, net)
		require.ErrorIs(t, err, ErrInvalidAddress, addr)
	}
}

func TestKeyHashOf(t *testing.T) {
	key := testKeys(1)[0]
	net := &chaincfg.TestNet3Params

	segwit, err := Address(WitnessPubKeyHash{Key: key}, net)
	require.NoError(t, err)
	require.True(t, len(segwit) > 3 && segwit[:3] == "tb1")
	script, err := DecodeAddress(segwit, net)
	require.NoError(t, err)
	require.Equal(t, txscript.WitnessV0PubKeyHashTy, Classify(script))
	require.True(t, IsWitnessProgram(script))

	legacy, err := Address(PubKeyHash{Key: key}, net)
	require.NoError(t, err)
	script2, err := DecodeAddress(legacy, net)
	require.NoError(t, err)
	require.Equal(t, txscript.PubKeyHashTy, Classify(script2))
	require.False(t, IsWitnessProgram(script2))

	// Both pay to the same key hash.
	require.Equal(t, btcutil.Hash160(key), KeyHashOf(script))
	require.Equal(t, KeyHashOf(script), KeyHashOf(script2))
}

func TestPubKeyOf(t *testing.T) {
	key := testKeys(1)[0]
	p, err := Build(PubKey{Key: key}, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, key, PubKeyOf(p.Script))
	require.Nil(t, PubKeyOf([]byte{txscript.OP_RETURN}))
}
