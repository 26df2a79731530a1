package psbt_sdk

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ghost-coin/psbt-sdk/payment"
)

// spendContext is everything needed to sign, check or finalize one input:
// the spent output, the script the keys sign for, and any wrapper scripts
// that have to be revealed.
type spendContext struct {
	index   int
	prevOut *wire.TxOut

	// script is the innermost template script: p2pk, p2pkh, multisig, or
	// the p2wpkh program itself.
	script []byte
	class  txscript.ScriptClass

	// witness selects the BIP143 digest.
	witness bool

	redeemScript  []byte
	witnessScript []byte
}

// PrevOutputFetcher serves the outputs spent by a document's inputs to the
// txscript sighash machinery.
type PrevOutputFetcher struct {
	doc *Document
}

// NewPrevOutputFetcher returns a fetcher over the inputs of doc.
func NewPrevOutputFetcher(doc *Document) *PrevOutputFetcher {
	return &PrevOutputFetcher{doc: doc}
}

// FetchPrevOutput returns the output spent at op, or nil if no input of the
// document spends it.
func (f *PrevOutputFetcher) FetchPrevOutput(op wire.OutPoint) *wire.TxOut {
	for i, txIn := range f.doc.packet.UnsignedTx.TxIn {
		if txIn.PreviousOutPoint != op {
			continue
		}
		prevOut, err := f.doc.prevOut(i)
		if err != nil {
			return nil
		}
		return prevOut
	}
	return nil
}

// spendContext resolves the spending template of input i, checking that any
// supplied redeem or witness script matches the commitment in the spent
// output.
func (d *Document) spendContext(i int) (*spendContext, error) {
	prevOut, err := d.prevOut(i)
	if err != nil {
		return nil, err
	}
	in := &d.packet.Inputs[i]

	ctx := &spendContext{
		index:   i,
		prevOut: prevOut,
		script:  prevOut.PkScript,
	}

	if payment.Classify(ctx.script) == txscript.ScriptHashTy {
		if in.RedeemScript == nil {
			return nil, psbtError(ErrInvalidScript, i,
				"script hash output without redeem script", nil)
		}
		hash := payment.ScriptHashOf(ctx.script)
		if !bytes.Equal(btcutil.Hash160(in.RedeemScript), hash) {
			return nil, psbtError(ErrInvalidScript, i,
				"redeem script does not match script hash", nil)
		}
		ctx.redeemScript = in.RedeemScript
		ctx.script = in.RedeemScript
	}

	if payment.IsWitnessProgram(ctx.script) {
		ctx.witness = true
	}

	if payment.Classify(ctx.script) == txscript.WitnessV0ScriptHashTy {
		if in.WitnessScript == nil {
			return nil, psbtError(ErrInvalidScript, i,
				"witness script hash output without witness "+
					"script", nil)
		}
		hash := sha256.Sum256(in.WitnessScript)
		program := payment.WitnessScriptHashOf(ctx.script)
		if !bytes.Equal(hash[:], program) {
			return nil, psbtError(ErrInvalidScript, i,
				"witness script does not match witness program",
				nil)
		}
		ctx.witnessScript = in.WitnessScript
		ctx.script = in.WitnessScript
	}

	ctx.class = payment.Classify(ctx.script)
	switch ctx.class {
	case txscript.PubKeyTy, txscript.PubKeyHashTy,
		txscript.MultiSigTy:

	case txscript.WitnessV0PubKeyHashTy:
		// Only valid as the top level program or nested in p2sh.
		if ctx.witnessScript != nil {
			return nil, psbtError(ErrUnsupportedScript, i,
				"key hash program inside witness script", nil)
		}

	default:
		return nil, psbtError(ErrUnsupportedScript, i,
			fmt.Sprintf("cannot spend %v script", ctx.class), nil)
	}

	return ctx, nil
}

// matchKey returns the serialization of pub that the template commits to, or
// nil if the key is not part of the template. Legacy templates may commit to
// the uncompressed form.
func (c *spendContext) matchKey(pub []byte) []byte {
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil
	}

	forms := [][]byte{key.SerializeCompressed()}
	if !c.witness {
		forms = append(forms, key.SerializeUncompressed())
	}

	for _, form := range forms {
		if c.hasKey(form) {
			return form
		}
	}
	return nil
}

// hasKey reports whether the exact serialization pub is one of the
// template's keys.
func (c *spendContext) hasKey(pub []byte) bool {
	switch c.class {
	case txscript.PubKeyTy:
		return bytes.Equal(payment.PubKeyOf(c.script), pub)

	case txscript.PubKeyHashTy, txscript.WitnessV0PubKeyHashTy:
		return bytes.Equal(payment.KeyHashOf(c.script),
			btcutil.Hash160(pub))

	case txscript.MultiSigTy:
		_, keys, err := payment.ParseMultisig(c.script)
		if err != nil {
			return false
		}
		for _, key := range keys {
			if bytes.Equal(key, pub) {
				return true
			}
		}
	}
	return false
}

// digest computes the signature hash of the input for hashType.
func (d *Document) digest(c *spendContext,
	hashType txscript.SigHashType) ([]byte, error) {

	tx := d.packet.UnsignedTx
	if !c.witness {
		return txscript.CalcSignatureHash(c.script, hashType, tx, c.index)
	}

	sigHashes := txscript.NewTxSigHashes(tx, NewPrevOutputFetcher(d))
	return txscript.CalcWitnessSigHash(
		c.script, sigHashes, hashType, tx, c.index, c.prevOut.Value,
	)
}

// sighashType returns the hash type requested by input i.
func (d *Document) sighashType(i int) txscript.SigHashType {
	if t := d.packet.Inputs[i].SighashType; t != 0 {
		return t
	}
	return txscript.SigHashAll
}
