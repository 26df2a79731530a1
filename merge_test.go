package psbt_sdk

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ghost-coin/psbt-sdk/payment"
	"github.com/stretchr/testify/require"
)

func multisigPayment(t *testing.T, m int) *payment.Payment {
	return buildPayment(t, payment.WitnessScriptHash{
		Redeem: payment.Multisig{
			M:    m,
			Keys: [][]byte{pubOf(1), pubOf(2), pubOf(3)},
		},
	})
}

// signedCopies returns copies of one document, each signed by one of seeds.
func signedCopies(t *testing.T, base *Document, seeds ...byte) []*Document {
	t.Helper()

	copies := make([]*Document, 0, len(seeds))
	for _, seed := range seeds {
		doc := base.Clone()
		require.NoError(t, doc.SignInput(0, signerOf(seed)))
		copies = append(copies, doc)
	}
	return copies
}

func serialized(t *testing.T, doc *Document) []byte {
	t.Helper()

	b, err := doc.Serialize()
	require.NoError(t, err)
	return b
}

func mustMerge(t *testing.T, a, b *Document) *Document {
	t.Helper()

	merged, err := Merge(a, b)
	require.NoError(t, err)
	return merged
}

func TestMergeLaws(t *testing.T) {
	base := newSpend(t, multisigPayment(t, 2), true)
	copies := signedCopies(t, base, 1, 2, 3)
	a, b, c := copies[0], copies[1], copies[2]

	before := serialized(t, a)

	// Commutative.
	require.Equal(t, serialized(t, mustMerge(t, a, b)),
		serialized(t, mustMerge(t, b, a)))

	// Associative.
	require.Equal(t,
		serialized(t, mustMerge(t, mustMerge(t, a, b), c)),
		serialized(t, mustMerge(t, a, mustMerge(t, b, c))))

	// Idempotent.
	require.Equal(t, before, serialized(t, mustMerge(t, a, a)))

	// Inputs are not modified.
	require.Equal(t, before, serialized(t, a))

	merged := mustMerge(t, a, c)
	sigs, err := merged.PartialSigs(0)
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	ok, err := merged.ValidateSignaturesOfInput(0, nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, merged.FinalizeAllInputs())
	requireExecutes(t, merged)
}

func TestMergeWithUnsigned(t *testing.T) {
	base := newSpend(t, multisigPayment(t, 2), true)
	signed := signedCopies(t, base, 2)[0]

	require.Equal(t, serialized(t, signed),
		serialized(t, mustMerge(t, base, signed)))
	require.Equal(t, serialized(t, signed),
		serialized(t, mustMerge(t, signed, base)))
}

func TestMergeSkeletonMismatch(t *testing.T) {
	pay := multisigPayment(t, 2)
	a := newSpend(t, pay, true)
	b := newSpend(t, pay, true)
	_, err := b.AddOutput(Output{Script: "51", Amount: 1})
	require.NoError(t, err)

	_, err = Merge(a, b)
	requireCode(t, err, ErrSkeletonMismatch)

	c := Create(testNet, 0, 1)
	_, err = c.AddInput(spendInput(pay, true, 1))
	require.NoError(t, err)
	addDestination(t, c)

	_, err = Merge(a, c)
	requireCode(t, err, ErrSkeletonMismatch)
}

func TestMergeSameKeyDifferentSignature(t *testing.T) {
	base := newSpend(t, multisigPayment(t, 2), true)
	copies := signedCopies(t, base, 1, 1)
	a, b := copies[0], copies[1]

	sig := b.packet.Inputs[0].PartialSigs[0].Signature
	sig[len(sig)-2] ^= 0x01

	ab := serialized(t, mustMerge(t, a, b))
	require.Equal(t, ab, serialized(t, mustMerge(t, b, a)))

	merged := mustMerge(t, a, b)
	sigs, err := merged.PartialSigs(0)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
}

func TestMergeConflictingMetadata(t *testing.T) {
	pay := multisigPayment(t, 2)

	t.Run("witness utxo", func(t *testing.T) {
		a := newSpend(t, pay, true)
		b := a.Clone()
		b.packet.Inputs[0].WitnessUtxo = wire.NewTxOut(1, pay.Script)

		_, err := Merge(a, b)
		requireCode(t, err, ErrConflictingMetadata)
	})

	t.Run("sighash type", func(t *testing.T) {
		a := newSpend(t, pay, true)
		b := a.Clone()
		a.packet.Inputs[0].SighashType = txscript.SigHashAll
		b.packet.Inputs[0].SighashType = txscript.SigHashNone

		_, err := Merge(a, b)
		requireCode(t, err, ErrConflictingMetadata)
	})

	t.Run("witness script", func(t *testing.T) {
		a := newSpend(t, pay, true)
		b := a.Clone()
		b.packet.Inputs[0].WitnessScript = []byte{txscript.OP_TRUE}

		_, err := Merge(a, b)
		requireCode(t, err, ErrConflictingMetadata)
	})

	t.Run("derivation path", func(t *testing.T) {
		a := newSpend(t, pay, true)
		b := a.Clone()
		a.packet.Inputs[0].Bip32Derivation = []*psbt.Bip32Derivation{{
			PubKey:    pubOf(1),
			Bip32Path: []uint32{1},
		}}
		b.packet.Inputs[0].Bip32Derivation = []*psbt.Bip32Derivation{{
			PubKey:    pubOf(1),
			Bip32Path: []uint32{2},
		}}

		_, err := Merge(a, b)
		requireCode(t, err, ErrConflictingMetadata)
	})

	t.Run("global unknown", func(t *testing.T) {
		a := newSpend(t, pay, true)
		b := a.Clone()
		a.packet.Unknowns = []*psbt.Unknown{{Key: []byte{0xfc, 1},
			Value: []byte{1}}}
		b.packet.Unknowns = []*psbt.Unknown{{Key: []byte{0xfc, 1},
			Value: []byte{2}}}

		_, err := Merge(a, b)
		requireCode(t, err, ErrConflictingMetadata)
	})
}

func TestMergeUnionsMetadata(t *testing.T) {
	pay := multisigPayment(t, 2)
	a := newSpend(t, pay, true)
	b := a.Clone()

	a.packet.Inputs[0].Bip32Derivation = []*psbt.Bip32Derivation{{
		PubKey:    pubOf(1),
		Bip32Path: []uint32{1},
	}}
	b.packet.Inputs[0].Bip32Derivation = []*psbt.Bip32Derivation{{
		PubKey:    pubOf(2),
		Bip32Path: []uint32{2},
	}}
	a.packet.Unknowns = []*psbt.Unknown{{Key: []byte{0xfc, 1},
		Value: []byte{1}}}
	b.packet.Unknowns = []*psbt.Unknown{{Key: []byte{0xfc, 2},
		Value: []byte{2}}}
	b.packet.Outputs[0].RedeemScript = []byte{txscript.OP_TRUE}

	merged := mustMerge(t, a, b)
	require.Len(t, merged.packet.Inputs[0].Bip32Derivation, 2)
	require.Len(t, merged.packet.Unknowns, 2)
	require.Equal(t, []byte{txscript.OP_TRUE},
		merged.packet.Outputs[0].RedeemScript)

	require.Equal(t, serialized(t, merged),
		serialized(t, mustMerge(t, b, a)))
}

func TestMergeFinalized(t *testing.T) {
	base := newSpend(t, multisigPayment(t, 1), true)

	t.Run("finalized and partially signed", func(t *testing.T) {
		copies := signedCopies(t, base, 1, 2)
		a, b := copies[0], copies[1]
		require.NoError(t, a.FinalizeInput(0))

		_, err := Merge(a, b)
		requireCode(t, err, ErrConflictingFinalState)
		_, err = Merge(b, a)
		requireCode(t, err, ErrConflictingFinalState)
	})

	t.Run("finalized and unsigned", func(t *testing.T) {
		a := signedCopies(t, base, 1)[0]
		require.NoError(t, a.FinalizeInput(0))

		merged := mustMerge(t, base, a)
		require.True(t, merged.IsComplete())
		require.Equal(t, serialized(t, a), serialized(t, merged))
		require.Equal(t, serialized(t, merged),
			serialized(t, mustMerge(t, a, base)))
	})

	t.Run("finalized and unsigned with input unknowns", func(t *testing.T) {
		a := signedCopies(t, base, 1)[0]
		require.NoError(t, a.FinalizeInput(0))

		b := base.Clone()
		b.packet.Inputs[0].Unknowns = []*psbt.Unknown{{
			Key:   []byte{0xfc, 0x01},
			Value: []byte{0x09},
		}}

		ab := mustMerge(t, a, b)
		ba := mustMerge(t, b, a)
		require.Equal(t, serialized(t, ab), serialized(t, ba))
		require.True(t, ab.IsComplete())
		require.Len(t, ab.packet.Inputs[0].Unknowns, 1)
		require.Len(t, ba.packet.Inputs[0].Unknowns, 1)

		c := a.Clone()
		c.packet.Inputs[0].Unknowns = []*psbt.Unknown{{
			Key:   []byte{0xfc, 0x01},
			Value: []byte{0x0a},
		}}
		_, err := Merge(c, b)
		requireCode(t, err, ErrConflictingMetadata)
	})

	t.Run("both finalized differently", func(t *testing.T) {
		copies := signedCopies(t, base, 1, 3)
		a, b := copies[0], copies[1]
		require.NoError(t, a.FinalizeInput(0))
		require.NoError(t, b.FinalizeInput(0))

		ab := mustMerge(t, a, b)
		require.Equal(t, serialized(t, ab),
			serialized(t, mustMerge(t, b, a)))
		requireExecutes(t, ab)
	})
}
