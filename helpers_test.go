package psbt_sdk

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/ghost-coin/psbt-sdk/payment"
	"github.com/stretchr/testify/require"
)

var testNet = &netparams.GhostRegtestParams

const (
	fundAmount  = 100000
	spendAmount = 90000
)

// testKey returns a fixed private key derived from seed.
func testKey(seed byte) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return priv
}

func pubOf(seed byte) []byte {
	return testKey(seed).PubKey().SerializeCompressed()
}

func signerOf(seed byte) PrivKeySigner {
	return PrivKeySigner{Key: testKey(seed)}
}

// fundingTx returns a transaction paying amount to pkScript at output 0.
// salt makes the hash unique.
func fundingTx(pkScript []byte, amount int64, salt byte) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{salt}},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(amount, pkScript))
	return tx
}

func buildPayment(t *testing.T, tmpl payment.Template) *payment.Payment {
	t.Helper()

	p, err := payment.Build(tmpl, testNet.Params)
	require.NoError(t, err)
	return p
}

// spendInput describes an input spending output 0 of a funding transaction
// for pay.
func spendInput(pay *payment.Payment, witnessUtxo bool,
	salt byte) InputData {

	prev := fundingTx(pay.Script, fundAmount, salt)
	in := InputData{
		PreviousOutPoint: wire.OutPoint{Hash: prev.TxHash()},
		RedeemScript:     pay.RedeemScript,
		WitnessScript:    pay.WitnessScript,
	}
	if witnessUtxo {
		in.WitnessUtxo = prev.TxOut[0]
	} else {
		in.NonWitnessUtxo = prev
	}
	return in
}

// newSpend returns a document spending one output of pay to a p2pkh
// address.
func newSpend(t *testing.T, pay *payment.Payment,
	witnessUtxo bool) *Document {

	t.Helper()

	doc := Create(testNet, 0, 0)
	_, err := doc.AddInput(spendInput(pay, witnessUtxo, 1))
	require.NoError(t, err)

	addDestination(t, doc)
	return doc
}

func addDestination(t *testing.T, doc *Document) {
	t.Helper()

	addr, err := payment.Address(payment.PubKeyHash{Key: pubOf(99)},
		testNet.Params)
	require.NoError(t, err)

	_, err = doc.AddOutput(Output{Address: addr, Amount: spendAmount})
	require.NoError(t, err)
}

// requireExecutes runs the script engine over every input of the extracted
// transaction.
func requireExecutes(t *testing.T, doc *Document) {
	t.Helper()

	tx, err := doc.ExtractTransaction()
	require.NoError(t, err)

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range tx.TxIn {
		prevOut, err := doc.prevOut(i)
		require.NoError(t, err)
		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOut)
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, txIn := range tx.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		vm, err := txscript.NewEngine(
			prevOut.PkScript, tx, i, txscript.StandardVerifyFlags,
			nil, sigHashes, prevOut.Value, fetcher,
		)
		require.NoError(t, err)
		require.NoError(t, vm.Execute(), "input %d", i)
	}
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	require.Error(t, err)
	require.True(t, IsError(err, code), "want %v, got %v", code, err)
}
