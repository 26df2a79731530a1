package psbt_sdk

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// Merge combines two copies of the same document, as produced by different
// signers, into a new one. Neither argument is modified. Merge is
// commutative, associative and idempotent: where both copies hold different
// signatures under one key, or different final data, the byte-wise smaller
// value is kept.
func Merge(a, b *Document) (*Document, error) {
	skelA, err := skeleton(a.packet.UnsignedTx)
	if err != nil {
		return nil, err
	}
	skelB, err := skeleton(b.packet.UnsignedTx)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(skelA, skelB) {
		return nil, psbtErrorf(ErrSkeletonMismatch,
			"documents describe different transactions")
	}

	merged := a.Clone()
	other := b.Clone()
	p, q := merged.packet, other.packet

	for i := range p.Inputs {
		if err := mergeInput(&p.Inputs[i], &q.Inputs[i], i); err != nil {
			return nil, err
		}
	}
	for i := range p.Outputs {
		if err := mergeOutput(&p.Outputs[i], &q.Outputs[i], i); err != nil {
			return nil, err
		}
	}

	unknowns, err := mergeUnknowns(p.Unknowns, q.Unknowns, noIndex)
	if err != nil {
		return nil, err
	}
	p.Unknowns = unknowns

	normalize(p)
	return merged, nil
}

func skeleton(tx *wire.MsgTx) ([]byte, error) {
	var b bytes.Buffer
	if err := tx.SerializeNoWitness(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func mergeInput(dst, src *psbt.PInput, i int) error {
	if err := mergeUtxo(dst, src, i); err != nil {
		return err
	}

	var err error
	dst.Unknowns, err = mergeUnknowns(dst.Unknowns, src.Unknowns, i)
	if err != nil {
		return err
	}

	dstFinal, srcFinal := isFinalized(dst), isFinalized(src)
	switch {
	case dstFinal && srcFinal:
		if finalLess(src, dst) {
			dst.FinalScriptSig = src.FinalScriptSig
			dst.FinalScriptWitness = src.FinalScriptWitness
		}
		return nil

	case dstFinal:
		if len(src.PartialSigs) > 0 {
			return psbtError(ErrConflictingFinalState, i,
				"finalized in one copy, partially signed in the "+
					"other", nil)
		}
		return nil

	case srcFinal:
		if len(dst.PartialSigs) > 0 {
			return psbtError(ErrConflictingFinalState, i,
				"finalized in one copy, partially signed in the "+
					"other", nil)
		}
		dst.FinalScriptSig = src.FinalScriptSig
		dst.FinalScriptWitness = src.FinalScriptWitness
		dst.PartialSigs = nil
		dst.SighashType = 0
		dst.RedeemScript = nil
		dst.WitnessScript = nil
		dst.Bip32Derivation = nil
		return nil
	}

	dst.PartialSigs = mergePartialSigs(dst.PartialSigs, src.PartialSigs)

	switch {
	case dst.SighashType == 0:
		dst.SighashType = src.SighashType

	case src.SighashType != 0 && src.SighashType != dst.SighashType:
		return conflict(i, "sighash type")
	}

	dst.RedeemScript, err = mergeBytes(dst.RedeemScript, src.RedeemScript,
		i, "redeem script")
	if err != nil {
		return err
	}
	dst.WitnessScript, err = mergeBytes(dst.WitnessScript,
		src.WitnessScript, i, "witness script")
	if err != nil {
		return err
	}

	dst.Bip32Derivation, err = mergeDerivations(dst.Bip32Derivation,
		src.Bip32Derivation, i)
	return err
}

func mergeUtxo(dst, src *psbt.PInput, i int) error {
	switch {
	case dst.WitnessUtxo == nil:
		dst.WitnessUtxo = src.WitnessUtxo

	case src.WitnessUtxo != nil && !psbt.TxOutsEqual(dst.WitnessUtxo,
		src.WitnessUtxo):

		return conflict(i, "witness utxo")
	}

	switch {
	case dst.NonWitnessUtxo == nil:
		dst.NonWitnessUtxo = src.NonWitnessUtxo

	case src.NonWitnessUtxo != nil:
		a, err := fullTx(dst.NonWitnessUtxo)
		if err != nil {
			return err
		}
		b, err := fullTx(src.NonWitnessUtxo)
		if err != nil {
			return err
		}
		if !bytes.Equal(a, b) {
			return conflict(i, "non-witness utxo")
		}
	}
	return nil
}

func mergeOutput(dst, src *psbt.POutput, i int) error {
	var err error
	dst.RedeemScript, err = mergeBytes(dst.RedeemScript, src.RedeemScript,
		i, "output redeem script")
	if err != nil {
		return err
	}
	dst.WitnessScript, err = mergeBytes(dst.WitnessScript,
		src.WitnessScript, i, "output witness script")
	if err != nil {
		return err
	}
	dst.Bip32Derivation, err = mergeDerivations(dst.Bip32Derivation,
		src.Bip32Derivation, i)
	if err != nil {
		return err
	}
	dst.Unknowns, err = mergeUnknowns(dst.Unknowns, src.Unknowns, i)
	return err
}

// mergePartialSigs unions two signature sets by public key. When both hold
// a signature for the same key the smaller one wins.
func mergePartialSigs(a, b []*psbt.PartialSig) []*psbt.PartialSig {
	byKey := make(map[string]*psbt.PartialSig, len(a)+len(b))
	for _, sig := range append(append([]*psbt.PartialSig{}, a...), b...) {
		existing, ok := byKey[string(sig.PubKey)]
		if ok && bytes.Compare(existing.Signature, sig.Signature) <= 0 {
			continue
		}
		byKey[string(sig.PubKey)] = sig
	}

	merged := make([]*psbt.PartialSig, 0, len(byKey))
	for _, sig := range byKey {
		merged = append(merged, sig)
	}
	sort.Sort(psbt.PartialSigSorter(merged))
	return merged
}

func mergeDerivations(a, b []*psbt.Bip32Derivation,
	i int) ([]*psbt.Bip32Derivation, error) {

	byKey := make(map[string]*psbt.Bip32Derivation, len(a)+len(b))
	for _, d := range append(append([]*psbt.Bip32Derivation{}, a...), b...) {
		existing, ok := byKey[string(d.PubKey)]
		if !ok {
			byKey[string(d.PubKey)] = d
			continue
		}
		if existing.MasterKeyFingerprint != d.MasterKeyFingerprint ||
			!equalPath(existing.Bip32Path, d.Bip32Path) {

			return nil, conflict(i, fmt.Sprintf(
				"derivation of key %x", d.PubKey))
		}
	}

	if len(byKey) == 0 {
		return nil, nil
	}
	merged := make([]*psbt.Bip32Derivation, 0, len(byKey))
	for _, d := range byKey {
		merged = append(merged, d)
	}
	sort.Sort(psbt.Bip32Sorter(merged))
	return merged, nil
}

func mergeUnknowns(a, b []*psbt.Unknown, i int) ([]*psbt.Unknown, error) {
	byKey := make(map[string]*psbt.Unknown, len(a)+len(b))
	for _, u := range append(append([]*psbt.Unknown{}, a...), b...) {
		existing, ok := byKey[string(u.Key)]
		if !ok {
			byKey[string(u.Key)] = u
			continue
		}
		if !bytes.Equal(existing.Value, u.Value) {
			return nil, conflict(i, fmt.Sprintf("unknown key %x", u.Key))
		}
	}

	if len(byKey) == 0 {
		return a, nil
	}
	merged := make([]*psbt.Unknown, 0, len(byKey))
	for _, u := range byKey {
		merged = append(merged, u)
	}
	sort.Slice(merged, func(x, y int) bool {
		return bytes.Compare(merged[x].Key, merged[y].Key) < 0
	})
	return merged, nil
}

func mergeBytes(a, b []byte, i int, what string) ([]byte, error) {
	switch {
	case a == nil:
		return b, nil

	case b != nil && !bytes.Equal(a, b):
		return nil, conflict(i, what)
	}
	return a, nil
}

// finalLess orders final data by scriptSig, then witness.
func finalLess(a, b *psbt.PInput) bool {
	if c := bytes.Compare(a.FinalScriptSig, b.FinalScriptSig); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.FinalScriptWitness, b.FinalScriptWitness) < 0
}

func fullTx(tx *wire.MsgTx) ([]byte, error) {
	var b bytes.Buffer
	if err := tx.Serialize(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func equalPath(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func conflict(i int, what string) error {
	return psbtError(ErrConflictingMetadata, i,
		fmt.Sprintf("copies disagree on %s", what), nil)
}
