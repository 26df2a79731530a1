package psbt_sdk

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// ExtractTransaction assembles the network transaction from a document whose
// inputs are all finalized. The document is not modified, so repeated calls
// return identical transactions.
func (d *Document) ExtractTransaction() (*wire.MsgTx, error) {
	for i := range d.packet.Inputs {
		if !isFinalized(&d.packet.Inputs[i]) {
			return nil, psbtError(ErrIncompleteTransaction, i,
				"input is not finalized", nil)
		}
	}

	tx, err := psbt.Extract(d.packet)
	if err != nil {
		return nil, psbtError(ErrIncompleteTransaction, noIndex,
			"cannot extract transaction", err)
	}
	return tx, nil
}

// ExtractHex returns the consensus serialization of ExtractTransaction in
// hex.
func (d *Document) ExtractHex() (string, error) {
	tx, err := d.ExtractTransaction()
	if err != nil {
		return "", err
	}

	var b bytes.Buffer
	if err := tx.Serialize(&b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b.Bytes()), nil
}
