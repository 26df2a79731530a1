package psbt_sdk

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/ghost-coin/psbt-sdk/payment"
)

// Document is a partially signed transaction bound to the network it was
// created for. All mutation goes through its methods so that the signing
// invariants hold: the input and output sets are frozen once a signature
// exists, and finalized inputs never change.
type Document struct {
	packet *psbt.Packet
	net    *netparams.Params
}

// Create returns an empty document. A zero version selects the network's
// default transaction version.
func Create(net *netparams.Params, version int32, lockTime uint32) *Document {
	if version == 0 {
		version = net.TxVersion
	}

	tx := wire.NewMsgTx(version)
	tx.LockTime = lockTime

	return &Document{
		packet: &psbt.Packet{
			UnsignedTx: tx,
			Unknowns:   make([]*psbt.Unknown, 0),
		},
		net: net,
	}
}

// Network returns the parameter set the document was created with.
func (d *Document) Network() *netparams.Params {
	return d.net
}

// Packet exposes the underlying BIP174 packet. Callers must not mutate it.
func (d *Document) Packet() *psbt.Packet {
	return d.packet
}

// AddInput appends an unsigned input and returns its index.
func (d *Document) AddInput(in InputData) (int, error) {
	index := len(d.packet.Inputs)

	if d.hasSignatures() {
		return 0, psbtError(ErrSignaturesExist, index,
			"cannot add inputs once signing has started", nil)
	}

	op := in.PreviousOutPoint
	switch {
	case in.WitnessUtxo == nil && in.NonWitnessUtxo == nil:
		return 0, psbtError(ErrMissingPrevoutData, index,
			fmt.Sprintf("no previous output data for %v", op), nil)

	case in.WitnessUtxo != nil && in.NonWitnessUtxo != nil:
		return 0, psbtError(ErrInvalidPrevoutData, index,
			"both witness and non-witness previous output given", nil)

	case in.NonWitnessUtxo != nil:
		if err := checkNonWitnessUtxo(in.NonWitnessUtxo, op); err != nil {
			return 0, psbtError(ErrInvalidPrevoutData, index,
				err.Error(), nil)
		}
	}

	for _, hint := range in.Bip32Derivation {
		if _, err := btcec.ParsePubKey(hint.PubKey); err != nil {
			return 0, psbtError(ErrMalformedDocument, index,
				"invalid key in derivation record", err)
		}
	}

	for i, txIn := range d.packet.UnsignedTx.TxIn {
		if txIn.PreviousOutPoint == op {
			return 0, psbtError(ErrDuplicateInput, index,
				fmt.Sprintf("outpoint %v already spent by input %d",
					op, i), nil)
		}
	}

	sequence := in.Sequence
	if sequence == 0 {
		sequence = wire.MaxTxInSequenceNum
	}

	d.packet.UnsignedTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: op,
		Sequence:         sequence,
	})

	derivations := append([]*psbt.Bip32Derivation(nil),
		in.Bip32Derivation...)
	sort.Sort(psbt.Bip32Sorter(derivations))

	d.packet.Inputs = append(d.packet.Inputs, psbt.PInput{
		NonWitnessUtxo:  in.NonWitnessUtxo,
		WitnessUtxo:     in.WitnessUtxo,
		SighashType:     in.SighashType,
		RedeemScript:    in.RedeemScript,
		WitnessScript:   in.WitnessScript,
		Bip32Derivation: derivations,
	})

	log.Debugf("Added input %d spending %v", index, op)

	return index, nil
}

// AddOutput appends an output and returns its index.
func (d *Document) AddOutput(out Output) (int, error) {
	index := len(d.packet.Outputs)

	if d.hasSignatures() {
		return 0, psbtError(ErrSignaturesExist, index,
			"cannot add outputs once signing has started", nil)
	}

	if out.Amount < 0 || out.Amount > btcutil.MaxSatoshi {
		return 0, psbtErrorf(ErrInvalidAmount,
			"output amount %d out of range", out.Amount)
	}

	var pkScript []byte
	if out.Script != "" {
		script, err := hex.DecodeString(out.Script)
		if err != nil {
			return 0, psbtError(ErrInvalidAddress, noIndex,
				"malformed output script", err)
		}
		pkScript = script
	} else {
		script, err := payment.DecodeAddress(out.Address, d.net.Params)
		if err != nil {
			return 0, psbtError(ErrInvalidAddress, noIndex,
				fmt.Sprintf("cannot pay to %q", out.Address), err)
		}
		pkScript = script
	}

	d.packet.UnsignedTx.AddTxOut(wire.NewTxOut(out.Amount, pkScript))
	d.packet.Outputs = append(d.packet.Outputs, psbt.POutput{})

	return index, nil
}

// InputCount returns the number of inputs.
func (d *Document) InputCount() int {
	return len(d.packet.UnsignedTx.TxIn)
}

// OutputCount returns the number of outputs.
func (d *Document) OutputCount() int {
	return len(d.packet.UnsignedTx.TxOut)
}

// InputState returns the signing progress of input i.
func (d *Document) InputState(i int) (InputState, error) {
	if err := d.checkIndex(i); err != nil {
		return 0, err
	}
	return inputState(&d.packet.Inputs[i]), nil
}

// PartialSigs returns a copy of the signatures recorded on input i, sorted by
// public key.
func (d *Document) PartialSigs(i int) ([]*psbt.PartialSig, error) {
	if err := d.checkIndex(i); err != nil {
		return nil, err
	}

	sigs := make([]*psbt.PartialSig, 0, len(d.packet.Inputs[i].PartialSigs))
	for _, sig := range d.packet.Inputs[i].PartialSigs {
		sigs = append(sigs, &psbt.PartialSig{
			PubKey:    cloneBytes(sig.PubKey),
			Signature: cloneBytes(sig.Signature),
		})
	}
	return sigs, nil
}

// UnsignedTx returns a copy of the transaction skeleton.
func (d *Document) UnsignedTx() *wire.MsgTx {
	return d.packet.UnsignedTx.Copy()
}

// IsComplete reports whether every input is finalized.
func (d *Document) IsComplete() bool {
	for i := range d.packet.Inputs {
		if !isFinalized(&d.packet.Inputs[i]) {
			return false
		}
	}
	return true
}

// Fee returns the difference between the spent and created amounts.
func (d *Document) Fee() (btcutil.Amount, error) {
	return d.packet.GetTxFee()
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	var b bytes.Buffer
	if err := snapshot(d.packet).Serialize(&b); err != nil {
		// Only a failing writer can make serialization fail.
		panic(err)
	}

	packet, err := psbt.NewFromRawBytes(&b, false)
	if err != nil {
		panic(err)
	}
	normalize(packet)

	return &Document{packet: packet, net: d.net}
}

// prevOut returns the output spent by input i.
func (d *Document) prevOut(i int) (*wire.TxOut, error) {
	in := &d.packet.Inputs[i]
	switch {
	case in.WitnessUtxo != nil:
		return in.WitnessUtxo, nil

	case in.NonWitnessUtxo != nil:
		op := d.packet.UnsignedTx.TxIn[i].PreviousOutPoint
		if int(op.Index) >= len(in.NonWitnessUtxo.TxOut) {
			return nil, psbtError(ErrInvalidPrevoutData, i,
				"output index past previous transaction", nil)
		}
		return in.NonWitnessUtxo.TxOut[op.Index], nil
	}

	return nil, psbtError(ErrMissingPrevoutData, i,
		"no previous output data", nil)
}

func (d *Document) checkIndex(i int) error {
	if i < 0 || i >= len(d.packet.Inputs) {
		return psbtError(ErrInputIndex, i, fmt.Sprintf(
			"document has %d inputs", len(d.packet.Inputs)), nil)
	}
	return nil
}

func (d *Document) hasSignatures() bool {
	for i := range d.packet.Inputs {
		if inputState(&d.packet.Inputs[i]) != InputUnsigned {
			return true
		}
	}
	return false
}

func inputState(in *psbt.PInput) InputState {
	switch {
	case isFinalized(in):
		return InputFinalized

	case len(in.PartialSigs) > 0:
		return InputPartiallySigned
	}
	return InputUnsigned
}

func isFinalized(in *psbt.PInput) bool {
	return in.FinalScriptSig != nil || in.FinalScriptWitness != nil
}

// checkNonWitnessUtxo verifies that tx is the transaction op points into.
func checkNonWitnessUtxo(tx *wire.MsgTx, op wire.OutPoint) error {
	if hash := tx.TxHash(); hash != op.Hash {
		return fmt.Errorf("previous transaction %v does not match "+
			"outpoint %v", hash, op)
	}
	if int(op.Index) >= len(tx.TxOut) {
		return fmt.Errorf("outpoint %v past the %d outputs of its "+
			"transaction", op, len(tx.TxOut))
	}
	return nil
}

// normalize puts every keyed collection of the packet in canonical order.
func normalize(p *psbt.Packet) {
	sort.Slice(p.Unknowns, func(i, j int) bool {
		return bytes.Compare(p.Unknowns[i].Key, p.Unknowns[j].Key) < 0
	})
	for i := range p.Inputs {
		sort.Sort(psbt.PartialSigSorter(p.Inputs[i].PartialSigs))
		sort.Sort(psbt.Bip32Sorter(p.Inputs[i].Bip32Derivation))
	}
	for i := range p.Outputs {
		sort.Sort(psbt.Bip32Sorter(p.Outputs[i].Bip32Derivation))
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
