package psbt_sdk

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/ghost-coin/psbt-sdk/netparams"
)

// Serialize encodes the document in the BIP174 binary format. Partial
// signatures and derivation records are written sorted by public key, so
// structurally equal documents serialize identically. The document itself
// is left untouched.
func (d *Document) Serialize() ([]byte, error) {
	packet := snapshot(d.packet)
	normalize(packet)

	var b bytes.Buffer
	if err := packet.Serialize(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// snapshot returns a copy of p whose keyed slices can be reordered without
// affecting p. The records they point to are shared.
func snapshot(p *psbt.Packet) *psbt.Packet {
	c := *p
	c.Unknowns = append([]*psbt.Unknown(nil), p.Unknowns...)

	c.Inputs = append([]psbt.PInput(nil), p.Inputs...)
	for i := range c.Inputs {
		in := &c.Inputs[i]
		in.PartialSigs = append([]*psbt.PartialSig(nil),
			in.PartialSigs...)
		in.Bip32Derivation = append([]*psbt.Bip32Derivation(nil),
			in.Bip32Derivation...)
		in.TaprootScriptSpendSig = append(
			[]*psbt.TaprootScriptSpendSig(nil),
			in.TaprootScriptSpendSig...,
		)
		in.TaprootLeafScript = append([]*psbt.TaprootTapLeafScript(nil),
			in.TaprootLeafScript...)
		in.TaprootBip32Derivation = append(
			[]*psbt.TaprootBip32Derivation(nil),
			in.TaprootBip32Derivation...,
		)
	}

	c.Outputs = append([]psbt.POutput(nil), p.Outputs...)
	for i := range c.Outputs {
		out := &c.Outputs[i]
		out.Bip32Derivation = append([]*psbt.Bip32Derivation(nil),
			out.Bip32Derivation...)
		out.TaprootBip32Derivation = append(
			[]*psbt.TaprootBip32Derivation(nil),
			out.TaprootBip32Derivation...,
		)
	}

	return &c
}

// B64Encode returns the base64 form of Serialize.
func (d *Document) B64Encode() (string, error) {
	b, err := d.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// HexEncode returns the hex form of Serialize.
func (d *Document) HexEncode() (string, error) {
	b, err := d.Serialize()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Deserialize decodes a BIP174 document for the given network. Besides codec
// failures it rejects inputs without previous output data, inputs spending
// the same outpoint, and non-witness previous transactions that do not match
// their outpoint.
func Deserialize(b []byte, net *netparams.Params) (*Document, error) {
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(b), false)
	if err != nil {
		return nil, psbtError(ErrMalformedDocument, noIndex,
			"cannot decode document", err)
	}

	if err := checkPacket(packet); err != nil {
		return nil, err
	}
	normalize(packet)

	return &Document{packet: packet, net: net}, nil
}

// FromBase64 decodes the base64 form of a document.
func FromBase64(s string, net *netparams.Params) (*Document, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, psbtError(ErrMalformedDocument, noIndex,
			"invalid base64", err)
	}
	return Deserialize(b, net)
}

// FromHex decodes the hex form of a document.
func FromHex(s string, net *netparams.Params) (*Document, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, psbtError(ErrMalformedDocument, noIndex,
			"invalid hex", err)
	}
	return Deserialize(b, net)
}

func checkPacket(p *psbt.Packet) error {
	seen := make(map[wire.OutPoint]int, len(p.UnsignedTx.TxIn))
	for i, txIn := range p.UnsignedTx.TxIn {
		op := txIn.PreviousOutPoint
		if j, ok := seen[op]; ok {
			return psbtError(ErrMalformedDocument, i, fmt.Sprintf(
				"outpoint %v already spent by input %d", op, j), nil)
		}
		seen[op] = i

		in := &p.Inputs[i]
		if in.WitnessUtxo == nil && in.NonWitnessUtxo == nil {
			return psbtError(ErrMalformedDocument, i,
				"no previous output data", nil)
		}
		if in.NonWitnessUtxo != nil {
			err := checkNonWitnessUtxo(in.NonWitnessUtxo, op)
			if err != nil {
				return psbtError(ErrMalformedDocument, i,
					err.Error(), nil)
			}
		}
	}
	return nil
}
