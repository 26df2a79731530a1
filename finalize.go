package psbt_sdk

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ghost-coin/psbt-sdk/payment"
)

// FinalizeInput turns the signatures of input i into its final scriptSig
// and witness. Nothing is written unless finalization succeeds. On success
// the signing metadata is dropped and only the previous output data is kept.
func (d *Document) FinalizeInput(i int) error {
	if err := d.checkIndex(i); err != nil {
		return err
	}
	in := &d.packet.Inputs[i]
	if isFinalized(in) {
		return psbtError(ErrAlreadyFinalized, i, "input is finalized", nil)
	}

	ctx, err := d.spendContext(i)
	if err != nil {
		return err
	}

	stack, err := d.satisfy(ctx)
	if err != nil {
		return err
	}

	scriptSig, witness, err := ctx.wrap(stack)
	if err != nil {
		return psbtError(ErrInvalidScript, i,
			"cannot assemble final scripts", err)
	}

	var finalWitness []byte
	if witness != nil {
		var b bytes.Buffer
		if err := psbt.WriteTxWitness(&b, witness); err != nil {
			return psbtError(ErrInvalidScript, i,
				"cannot encode witness", err)
		}
		finalWitness = b.Bytes()
	}

	in.FinalScriptSig = scriptSig
	in.FinalScriptWitness = finalWitness
	in.PartialSigs = nil
	in.SighashType = 0
	in.RedeemScript = nil
	in.WitnessScript = nil
	in.Bip32Derivation = nil

	log.Debugf("Finalized input %d", i)

	return nil
}

// FinalizeAllInputs finalizes every input that is not finalized yet. It stops
// at the first failure, leaving earlier inputs finalized.
func (d *Document) FinalizeAllInputs() error {
	for i := range d.packet.Inputs {
		if isFinalized(&d.packet.Inputs[i]) {
			continue
		}
		if err := d.FinalizeInput(i); err != nil {
			return err
		}
	}
	return nil
}

// satisfy returns the stack items that satisfy the template script, not
// including any revealed redeem or witness script. Only signatures that
// verify, and that use the input's sighash type when one is set, count. A
// nil item stands for the empty push used as the multisig dummy.
func (d *Document) satisfy(ctx *spendContext) ([][]byte, error) {
	declared := d.packet.Inputs[ctx.index].SighashType

	valid := make(map[string][]byte)
	for _, sig := range d.packet.Inputs[ctx.index].PartialSigs {
		if !d.verifyPartialSig(ctx, sig) {
			continue
		}

		last := sig.Signature[len(sig.Signature)-1]
		hashType := txscript.SigHashType(last)
		if declared != 0 && hashType != declared {
			log.Debugf("Input %d: skipping signature by %x with "+
				"sighash %v, input requests %v", ctx.index,
				sig.PubKey, hashType, declared)
			continue
		}

		valid[string(sig.PubKey)] = sig.Signature
	}

	switch ctx.class {
	case txscript.PubKeyTy:
		sig, ok := valid[string(payment.PubKeyOf(ctx.script))]
		if !ok {
			return nil, insufficient(ctx.index, 0, 1)
		}
		return [][]byte{sig}, nil

	case txscript.PubKeyHashTy, txscript.WitnessV0PubKeyHashTy:
		for _, sig := range d.packet.Inputs[ctx.index].PartialSigs {
			if s, ok := valid[string(sig.PubKey)]; ok {
				return [][]byte{s, sig.PubKey}, nil
			}
		}
		return nil, insufficient(ctx.index, 0, 1)

	case txscript.MultiSigTy:
		m, keys, err := payment.ParseMultisig(ctx.script)
		if err != nil {
			return nil, psbtError(ErrUnsupportedScript, ctx.index,
				"malformed multisig script", err)
		}

		stack := [][]byte{nil}
		for _, key := range keys {
			if len(stack) == m+1 {
				break
			}
			if sig, ok := valid[string(key)]; ok {
				stack = append(stack, sig)
			}
		}
		if have := len(stack) - 1; have < m {
			return nil, insufficient(ctx.index, have, m)
		}
		return stack, nil
	}

	return nil, psbtError(ErrUnsupportedScript, ctx.index,
		fmt.Sprintf("cannot finalize %v script", ctx.class), nil)
}

// wrap places the satisfying stack into the scriptSig or witness according
// to the wrappers around the template.
func (c *spendContext) wrap(stack [][]byte) ([]byte, [][]byte, error) {
	if !c.witness {
		builder := txscript.NewScriptBuilder()
		for _, item := range stack {
			if item == nil {
				builder.AddOp(txscript.OP_0)
				continue
			}
			builder.AddData(item)
		}
		if c.redeemScript != nil {
			builder.AddData(c.redeemScript)
		}
		scriptSig, err := builder.Script()
		return scriptSig, nil, err
	}

	witness := make([][]byte, 0, len(stack)+1)
	for _, item := range stack {
		if item == nil {
			item = []byte{}
		}
		witness = append(witness, item)
	}
	if c.witnessScript != nil {
		witness = append(witness, c.witnessScript)
	}

	if c.redeemScript == nil {
		return nil, witness, nil
	}

	scriptSig, err := txscript.NewScriptBuilder().
		AddData(c.redeemScript).
		Script()
	return scriptSig, witness, err
}

func insufficient(i, have, need int) error {
	return psbtError(ErrInsufficientSignatures, i,
		fmt.Sprintf("have %d valid signatures, need %d", have, need), nil)
}
