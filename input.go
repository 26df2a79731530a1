package psbt_sdk

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Input names a previous output to spend together with the data needed to
// sign for it. Scripts and the previous transaction are hex encoded.
type Input struct {
	OutTxId  string   `json:"out_tx_id"`
	OutIndex uint32   `json:"out_index"`
	UtxoType UtxoType `json:"utxo_type"`

	// NonWitnessUtxo is the full previous transaction, used when UtxoType
	// is NonWitness.
	NonWitnessUtxo string `json:"non_witness_utxo,omitempty"`

	// PkScript and Amount describe the spent output when UtxoType is
	// Witness.
	PkScript string `json:"pk_script,omitempty"`
	Amount   int64  `json:"amount,omitempty"`

	RedeemScript  string               `json:"redeem_script,omitempty"`
	WitnessScript string               `json:"witness_script,omitempty"`
	SighashType   txscript.SigHashType `json:"sighash_type,omitempty"`
}

// Output is a payment to an address or a raw script. Script, when set, is
// hex encoded and takes precedence over Address.
type Output struct {
	Address string `json:"address"`
	Script  string `json:"script"`
	Amount  int64  `json:"amount"`
}

// InputData describes one input to add to a document. Exactly one of
// WitnessUtxo and NonWitnessUtxo must be set.
type InputData struct {
	PreviousOutPoint wire.OutPoint

	// Sequence defaults to wire.MaxTxInSequenceNum when zero.
	Sequence uint32

	WitnessUtxo    *wire.TxOut
	NonWitnessUtxo *wire.MsgTx

	RedeemScript  []byte
	WitnessScript []byte

	Bip32Derivation []*psbt.Bip32Derivation

	// SighashType defaults to SIGHASH_ALL when zero.
	SighashType txscript.SigHashType
}

// InputData decodes the hex fields of in.
func (in Input) InputData() (InputData, error) {
	txHash, err := chainhash.NewHashFromStr(in.OutTxId)
	if err != nil {
		return InputData{}, psbtError(ErrInvalidPrevoutData, noIndex,
			"invalid previous txid", err)
	}

	data := InputData{
		PreviousOutPoint: *wire.NewOutPoint(txHash, in.OutIndex),
		SighashType:      in.SighashType,
	}

	switch in.UtxoType {
	case NonWitness:
		raw, err := hex.DecodeString(in.NonWitnessUtxo)
		if err != nil {
			return InputData{}, psbtError(ErrInvalidPrevoutData,
				noIndex, "invalid previous transaction hex", err)
		}
		tx := wire.NewMsgTx(wire.TxVersion)
		if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
			return InputData{}, psbtError(ErrInvalidPrevoutData,
				noIndex, "invalid previous transaction", err)
		}
		data.NonWitnessUtxo = tx

	case Witness:
		pkScript, err := hex.DecodeString(in.PkScript)
		if err != nil {
			return InputData{}, psbtError(ErrInvalidPrevoutData,
				noIndex, "invalid previous output script", err)
		}
		data.WitnessUtxo = wire.NewTxOut(in.Amount, pkScript)

	default:
		return InputData{}, psbtErrorf(ErrMissingPrevoutData,
			"unknown utxo type %d for %v", in.UtxoType,
			data.PreviousOutPoint)
	}

	if data.RedeemScript, err = decodeScript(in.RedeemScript); err != nil {
		return InputData{}, err
	}
	if data.WitnessScript, err = decodeScript(in.WitnessScript); err != nil {
		return InputData{}, err
	}

	return data, nil
}

func decodeScript(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	script, err := hex.DecodeString(s)
	if err != nil {
		return nil, psbtError(ErrInvalidScript, noIndex,
			"invalid script hex", err)
	}
	return script, nil
}
