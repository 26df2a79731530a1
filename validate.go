package psbt_sdk

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ValidateSignaturesOfInput checks the partial signatures of input i, or only
// the one made by pubKey when it is set. It reports true only when at least
// one signature was checked and every checked signature belongs to a key of
// the spending template and verifies against the recomputed digest for its
// own sighash type. The document is not modified.
func (d *Document) ValidateSignaturesOfInput(i int, pubKey []byte) (bool,
	error) {

	if err := d.checkIndex(i); err != nil {
		return false, err
	}

	sigs := d.packet.Inputs[i].PartialSigs
	if pubKey != nil {
		var mine []*psbt.PartialSig
		for _, sig := range sigs {
			if bytes.Equal(sig.PubKey, pubKey) {
				mine = append(mine, sig)
			}
		}
		if len(mine) == 0 {
			return false, psbtError(ErrNoSignatureForKey, i,
				fmt.Sprintf("no signature for key %x", pubKey), nil)
		}
		sigs = mine
	}
	if len(sigs) == 0 {
		return false, nil
	}

	ctx, err := d.spendContext(i)
	if err != nil {
		return false, err
	}

	for _, sig := range sigs {
		if !d.verifyPartialSig(ctx, sig) {
			log.Debugf("Input %d: signature by %x does not verify",
				i, sig.PubKey)
			return false, nil
		}
	}
	return true, nil
}

// ValidateAllSignatures validates every input that is not finalized.
func (d *Document) ValidateAllSignatures() (bool, error) {
	for i := range d.packet.Inputs {
		if isFinalized(&d.packet.Inputs[i]) {
			continue
		}
		ok, err := d.ValidateSignaturesOfInput(i, nil)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// verifyPartialSig checks one signature against the template and digest.
func (d *Document) verifyPartialSig(ctx *spendContext,
	sig *psbt.PartialSig) bool {

	if !ctx.hasKey(sig.PubKey) || len(sig.Signature) < 2 {
		return false
	}

	der := sig.Signature[:len(sig.Signature)-1]
	hashType := txscript.SigHashType(sig.Signature[len(sig.Signature)-1])

	parsed, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	pub, err := secp256k1.ParsePubKey(sig.PubKey)
	if err != nil {
		return false
	}

	digest, err := d.digest(ctx, hashType)
	if err != nil {
		return false
	}
	return parsed.Verify(digest, pub)
}
