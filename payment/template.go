package payment

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// MaxMultisigKeys is the largest key set a standard multisig template may
// hold.
const MaxMultisigKeys = 15

var (
	// ErrInvalidThreshold is returned when a multisig template does not
	// satisfy 1 <= m <= n <= MaxMultisigKeys.
	ErrInvalidThreshold = errors.New("invalid multisig threshold")

	// ErrUnsupportedEncoding is returned when a script or template has no
	// address form.
	ErrUnsupportedEncoding = errors.New("no address encoding for script")

	// ErrInvalidNesting is returned when a wrapping template wraps
	// something it cannot carry.
	ErrInvalidNesting = errors.New("invalid template nesting")

	// ErrInvalidPubKey is returned for keys that do not parse, duplicate
	// keys, or uncompressed keys inside witness templates.
	ErrInvalidPubKey = errors.New("invalid public key")

	// ErrScriptTooLarge is returned when a wrapped script exceeds the
	// maximum script element size.
	ErrScriptTooLarge = errors.New("wrapped script too large")

	// ErrEmptyTemplate is returned when a template or its payload is nil.
	ErrEmptyTemplate = errors.New("empty template")
)

// Template describes how an output's spending condition is built. The set of
// implementations is closed: PubKey, PubKeyHash, WitnessPubKeyHash, Multisig,
// ScriptHash, WitnessScriptHash and Embed.
type Template interface {
	// script builds the template's own script, ignoring any wrapper.
	script(net *chaincfg.Params) (*Payment, error)
}

// PubKey pays to a bare public key (p2pk).
type PubKey struct {
	Key []byte
}

// PubKeyHash pays to the hash of a public key (p2pkh).
type PubKeyHash struct {
	Key []byte
}

// WitnessPubKeyHash pays to a version 0 witness key hash (p2wpkh).
type WitnessPubKeyHash struct {
	Key []byte
}

// Multisig is an m-of-n bare multisig (p2ms). Keys are sorted before being
// embedded, so the order given here does not matter.
type Multisig struct {
	M    int
	Keys [][]byte
}

// ScriptHash wraps another template behind a script hash (p2sh).
type ScriptHash struct {
	Redeem Template
}

// WitnessScriptHash wraps another template behind a version 0 witness
// script hash (p2wsh).
type WitnessScriptHash struct {
	Redeem Template
}

// Embed is an unspendable data carrier output (OP_RETURN).
type Embed struct {
	Data [][]byte
}

// Payment is the result of building a template for a network.
type Payment struct {
	// Template is the template the payment was built from.
	Template Template

	// Script is the output script (scriptPubKey).
	Script []byte

	// Address is the address form of Script, empty when there is none.
	Address string

	// RedeemScript is the script revealed in the scriptSig when spending a
	// ScriptHash output.
	RedeemScript []byte

	// WitnessScript is the script revealed in the witness when spending a
	// WitnessScriptHash output, possibly nested in a ScriptHash.
	WitnessScript []byte
}

// Build produces the output script, address and any retained sub-scripts for
// the template on the given network.
func Build(t Template, net *chaincfg.Params) (*Payment, error) {
	if t == nil {
		return nil, ErrEmptyTemplate
	}

	p, err := t.script(net)
	if err != nil {
		return nil, err
	}
	p.Template = t

	addr, err := EncodeAddress(p.Script, net)
	switch {
	case err == nil:
		p.Address = addr

	case !errors.Is(err, ErrUnsupportedEncoding):
		return nil, err
	}

	return p, nil
}

// Address returns the address of the template on the given network, or
// ErrUnsupportedEncoding if the template has no address form.
func Address(t Template, net *chaincfg.Params) (string, error) {
	p, err := Build(t, net)
	if err != nil {
		return "", err
	}
	if p.Address == "" {
		return "", fmt.Errorf("%w: %T", ErrUnsupportedEncoding, t)
	}
	return p.Address, nil
}

func (t PubKey) script(*chaincfg.Params) (*Payment, error) {
	if err := checkPubKey(t.Key, false); err != nil {
		return nil, err
	}

	script, err := txscript.NewScriptBuilder().
		AddData(t.Key).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, err
	}
	return &Payment{Script: script}, nil
}

func (t PubKeyHash) script(*chaincfg.Params) (*Payment, error) {
	if err := checkPubKey(t.Key, false); err != nil {
		return nil, err
	}

	script, err := PayToPubKeyHashScript(btcutil.Hash160(t.Key))
	if err != nil {
		return nil, err
	}
	return &Payment{Script: script}, nil
}

func (t WitnessPubKeyHash) script(*chaincfg.Params) (*Payment, error) {
	if err := checkPubKey(t.Key, true); err != nil {
		return nil, err
	}

	script, err := witnessProgram(btcutil.Hash160(t.Key))
	if err != nil {
		return nil, err
	}
	return &Payment{Script: script}, nil
}

func (t Multisig) script(*chaincfg.Params) (*Payment, error) {
	n := len(t.Keys)
	if t.M < 1 || t.M > n || n > MaxMultisigKeys {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, t.M, n)
	}

	keys := SortKeys(t.Keys)
	for i, key := range keys {
		if err := checkPubKey(key, false); err != nil {
			return nil, err
		}
		if i > 0 && bytes.Equal(keys[i-1], key) {
			return nil, fmt.Errorf("%w: duplicate key %x",
				ErrInvalidPubKey, key)
		}
	}

	builder := txscript.NewScriptBuilder().AddInt64(int64(t.M))
	for _, key := range keys {
		builder.AddData(key)
	}
	script, err := builder.
		AddInt64(int64(n)).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
	if err != nil {
		return nil, err
	}
	return &Payment{Script: script}, nil
}

func (t ScriptHash) script(net *chaincfg.Params) (*Payment, error) {
	switch t.Redeem.(type) {
	case nil:
		return nil, ErrEmptyTemplate

	case ScriptHash, *ScriptHash:
		return nil, fmt.Errorf("%w: script hash inside script hash",
			ErrInvalidNesting)
	}

	inner, err := t.Redeem.script(net)
	if err != nil {
		return nil, err
	}
	if len(inner.Script) > txscript.MaxScriptElementSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrScriptTooLarge,
			len(inner.Script))
	}

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(inner.Script)).
		AddOp(txscript.OP_EQUAL).
		Script()
	if err != nil {
		return nil, err
	}

	return &Payment{
		Script:        script,
		RedeemScript:  inner.Script,
		WitnessScript: inner.WitnessScript,
	}, nil
}

func (t WitnessScriptHash) script(net *chaincfg.Params) (*Payment, error) {
	switch t.Redeem.(type) {
	case nil:
		return nil, ErrEmptyTemplate

	case Multisig, *Multisig, PubKey, *PubKey, PubKeyHash, *PubKeyHash:

	default:
		return nil, fmt.Errorf("%w: %T inside witness script hash",
			ErrInvalidNesting, t.Redeem)
	}

	inner, err := t.Redeem.script(net)
	if err != nil {
		return nil, err
	}
	if len(inner.Script) > txscript.MaxScriptElementSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrScriptTooLarge,
			len(inner.Script))
	}

	hash := sha256.Sum256(inner.Script)
	script, err := witnessProgram(hash[:])
	if err != nil {
		return nil, err
	}

	return &Payment{
		Script:        script,
		WitnessScript: inner.Script,
	}, nil
}

func (t Embed) script(*chaincfg.Params) (*Payment, error) {
	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN)
	for _, data := range t.Data {
		builder.AddData(data)
	}
	script, err := builder.Script()
	if err != nil {
		return nil, err
	}
	return &Payment{Script: script}, nil
}

// SortKeys returns a copy of keys sorted by their raw byte encoding.
func SortKeys(keys [][]byte) [][]byte {
	sorted := make([][]byte, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// PayToPubKeyHashScript builds a p2pkh script for a 20 byte key hash.
func PayToPubKeyHashScript(hash []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

func witnessProgram(program []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(program).
		Script()
}

func checkPubKey(key []byte, compressedOnly bool) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidPubKey)
	}
	if compressedOnly && len(key) != btcec.PubKeyBytesLenCompressed {
		return fmt.Errorf("%w: witness keys must be compressed",
			ErrInvalidPubKey)
	}
	if _, err := btcec.ParsePubKey(key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}
	return nil
}
