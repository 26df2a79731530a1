package payment

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// ErrNotMultisig is returned by ParseMultisig for scripts that are not a
// standard m-of-n multisig.
var ErrNotMultisig = errors.New("not a multisig script")

// Classify returns the standard class of an output or sub-script.
func Classify(script []byte) txscript.ScriptClass {
	return txscript.GetScriptClass(script)
}

// IsWitnessProgram reports whether the script is a version 0 witness
// program this library can spend.
func IsWitnessProgram(script []byte) bool {
	switch Classify(script) {
	case txscript.WitnessV0PubKeyHashTy, txscript.WitnessV0ScriptHashTy:
		return true
	}
	return false
}

// ScriptHashOf returns the 20 byte hash committed to by a p2sh script.
func ScriptHashOf(script []byte) []byte {
	if Classify(script) != txscript.ScriptHashTy {
		return nil
	}
	return script[2:22]
}

// KeyHashOf returns the 20 byte key hash committed to by a p2pkh or p2wpkh
// script.
func KeyHashOf(script []byte) []byte {
	switch Classify(script) {
	case txscript.PubKeyHashTy:
		return script[3:23]

	case txscript.WitnessV0PubKeyHashTy:
		return script[2:22]
	}
	return nil
}

// WitnessScriptHashOf returns the 32 byte hash committed to by a p2wsh
// script.
func WitnessScriptHashOf(script []byte) []byte {
	if Classify(script) != txscript.WitnessV0ScriptHashTy {
		return nil
	}
	return script[2:34]
}

// PubKeyOf returns the key of a bare p2pk script.
func PubKeyOf(script []byte) []byte {
	if Classify(script) != txscript.PubKeyTy {
		return nil
	}

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	if !tokenizer.Next() {
		return nil
	}
	return tokenizer.Data()
}

// ParseMultisig returns the threshold and the keys, in script order, of a
// standard multisig script.
func ParseMultisig(script []byte) (int, [][]byte, error) {
	if Classify(script) != txscript.MultiSigTy {
		return 0, nil, ErrNotMultisig
	}

	var (
		tokenizer = txscript.MakeScriptTokenizer(0, script)
		threshold int
		keys      [][]byte
	)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		switch {
		case tokenizer.Data() != nil:
			keys = append(keys, tokenizer.Data())

		case op >= txscript.OP_1 && op <= txscript.OP_16 && threshold == 0:
			threshold = int(op - (txscript.OP_1 - 1))
		}
	}
	if err := tokenizer.Err(); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNotMultisig, err)
	}
	if threshold == 0 || threshold > len(keys) {
		return 0, nil, fmt.Errorf("%w: %d of %d", ErrNotMultisig,
			threshold, len(keys))
	}

	return threshold, keys, nil
}
