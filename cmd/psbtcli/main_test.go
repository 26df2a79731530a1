package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/ghost-coin/psbt-sdk/insight"
	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/ghost-coin/psbt-sdk/payment"
	"github.com/stretchr/testify/require"
)

var testNet = &netparams.GhostRegtestParams

func testKey(seed byte) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return priv
}

func testWIF(t *testing.T, seed byte) string {
	t.Helper()

	wif, err := btcutil.NewWIF(testKey(seed), testNet.Params, true)
	require.NoError(t, err)
	return wif.String()
}

// runCommand runs the command line on the regtest network and returns what
// it printed.
func runCommand(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	stdout = &out
	defer func() {
		stdout = os.Stdout
	}()

	args = append([]string{"--network", "ghostRegtest"}, args...)
	require.NoError(t, run(args))
	return strings.TrimSpace(out.String())
}

// multisigSkeleton writes a skeleton spending a 2-of-2 p2wsh output and
// returns its path.
func multisigSkeleton(t *testing.T) string {
	t.Helper()

	pay, err := payment.Build(payment.WitnessScriptHash{
		Redeem: payment.Multisig{
			M: 2,
			Keys: [][]byte{
				testKey(1).PubKey().SerializeCompressed(),
				testKey(2).PubKey().SerializeCompressed(),
			},
		},
	}, testNet.Params)
	require.NoError(t, err)

	s := skeleton{
		Inputs: []psbt.Input{{
			OutTxId:       chainhash.Hash{1}.String(),
			UtxoType:      psbt.Witness,
			PkScript:      hex.EncodeToString(pay.Script),
			Amount:        1000000,
			WitnessScript: hex.EncodeToString(pay.WitnessScript),
		}},
		Outputs: []psbt.Output{{
			Address: pay.Address,
			Amount:  900000,
		}},
	}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "skeleton.json")
	require.NoError(t, os.WriteFile(path, raw, 0600))
	return path
}

func decodeOutput(t *testing.T, doc string) *decodedDocument {
	t.Helper()

	var decoded decodedDocument
	out := runCommand(t, "decode", doc)
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	return &decoded
}

func TestMultisigRoundTrip(t *testing.T) {
	unsigned := runCommand(t, "create", "--file", multisigSkeleton(t))

	decoded := decodeOutput(t, unsigned)
	require.Equal(t, "ghostRegtest", decoded.Network)
	require.EqualValues(t, 160, decoded.Version)
	require.Len(t, decoded.Inputs, 1)
	require.Equal(t, "unsigned", decoded.Inputs[0].State)
	require.Len(t, decoded.Outputs, 1)
	require.NotEmpty(t, decoded.Outputs[0].Address)
	require.NotNil(t, decoded.Fee)
	require.EqualValues(t, 100000, *decoded.Fee)
	require.False(t, decoded.Complete)

	first := runCommand(t, "sign", "--wif", testWIF(t, 1), unsigned)
	second := runCommand(t, "sign", "--wif", testWIF(t, 2), "--input",
		"0", unsigned)

	decoded = decodeOutput(t, first)
	require.Len(t, decoded.Inputs[0].SignedBy, 1)
	require.True(t, decoded.SignaturesValid)

	combined := runCommand(t, "combine", first, second)
	decoded = decodeOutput(t, combined)
	require.Len(t, decoded.Inputs[0].SignedBy, 2)

	finalized := runCommand(t, "finalize", combined)
	require.True(t, decodeOutput(t, finalized).Complete)

	txHex := runCommand(t, "extract", finalized)
	require.Equal(t, txHex, runCommand(t, "finalize", "--extract",
		combined))

	raw, err := hex.DecodeString(txHex)
	require.NoError(t, err)
	tx := wire.NewMsgTx(wire.TxVersion)
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))
	require.Len(t, tx.TxIn[0].Witness, 4)
}

func TestCombineThroughStore(t *testing.T) {
	unsigned := runCommand(t, "create", "--file", multisigSkeleton(t))
	first := runCommand(t, "sign", "--wif", testWIF(t, 1), unsigned)
	second := runCommand(t, "sign", "--wif", testWIF(t, 2), unsigned)

	dir := t.TempDir()
	runCommand(t, "combine", "--storedir", dir, "--session", "s", first)
	stored := runCommand(t, "combine", "--storedir", dir, "--session",
		"s", second)

	require.Equal(t, runCommand(t, "combine", first, second), stored)
	require.True(t, decodeOutput(t, runCommand(t, "finalize",
		stored)).Complete)
}

func TestSendThroughInsight(t *testing.T) {
	key := testKey(3)
	pay, err := payment.Build(payment.WitnessPubKeyHash{
		Key: key.PubKey().SerializeCompressed(),
	}, testNet.Params)
	require.NoError(t, err)

	dest, err := payment.Address(payment.PubKeyHash{
		Key: testKey(4).PubKey().SerializeCompressed(),
	}, testNet.Params)
	require.NoError(t, err)

	var relayed string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/addr/" + pay.Address + "/utxo":
				_ = json.NewEncoder(w).Encode([]*insight.Unspent{{
					Address:      pay.Address,
					TxID:         chainhash.Hash{2}.String(),
					ScriptPubKey: hex.EncodeToString(pay.Script),
					Satoshis:     1000000,
				}})

			case "/tx/send":
				var req map[string]string
				_ = json.NewDecoder(r.Body).Decode(&req)
				relayed = req["rawtx"]
				_ = json.NewEncoder(w).Encode(map[string]string{
					"txid": "relayed",
				})

			default:
				http.NotFound(w, r)
			}
		},
	))
	defer srv.Close()

	wif, err := btcutil.NewWIF(key, testNet.Params, true)
	require.NoError(t, err)

	out := runCommand(t, "--insighturl", srv.URL, "send", "--wif",
		wif.String(), "--type", "p2wpkh", "--to", dest, "--amount",
		"500000", "--broadcast")
	require.Equal(t, "relayed", out)

	raw, err := hex.DecodeString(relayed)
	require.NoError(t, err)
	tx := wire.NewMsgTx(wire.TxVersion)
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))

	require.Len(t, tx.TxOut, 2)
	require.EqualValues(t, 500000, tx.TxOut[0].Value)
	require.EqualValues(t, 1000000-500000-defaultFee, tx.TxOut[1].Value)
	require.Equal(t, pay.Script, tx.TxOut[1].PkScript)

	// Relaying the same transaction from its hex form.
	out = runCommand(t, "--insighturl", srv.URL, "broadcast", "--rawtx",
		relayed)
	require.Equal(t, "relayed", out)
}

func TestSetupErrors(t *testing.T) {
	err := run([]string{"--network", "nowhere", "decode", "x"})
	require.ErrorIs(t, err, netparams.ErrUnknownNetwork)

	err = run([]string{"--network", "ghostRegtest", "--debuglevel",
		"NOPE=debug", "decode", "x"})
	require.ErrorContains(t, err, "unknown subsystem")

	// Regtest has no default explorer.
	err = run([]string{"--network", "ghostRegtest", "balance", "addr"})
	require.ErrorContains(t, err, "--insighturl")
}
