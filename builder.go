package psbt_sdk

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ghost-coin/psbt-sdk/insight"
	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/ghost-coin/psbt-sdk/payment"
)

// UnspentSource looks up the outputs an address can spend and the
// transactions that created them.
type UnspentSource interface {
	FetchUnspents(ctx context.Context, address string) ([]*insight.Unspent,
		error)
	FetchRawTx(ctx context.Context, txid string) (*wire.MsgTx, error)
}

// Broadcaster relays a finished transaction to the network.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx *wire.MsgTx) (string, error)
}

// PsbtBuilder drives one document from creation to broadcast.
type PsbtBuilder struct {
	NetParams *netparams.Params
	Doc       *Document
}

// CreatePsbtBuilder creates a builder over a new document holding ins and
// outs.
func CreatePsbtBuilder(net *netparams.Params, ins []Input,
	outs []Output) (*PsbtBuilder, error) {

	s := &PsbtBuilder{
		NetParams: net,
		Doc:       Create(net, 0, 0),
	}

	for _, in := range ins {
		if err := s.AddInput(in); err != nil {
			return nil, err
		}
	}
	if err := s.AddOutput(outs); err != nil {
		return nil, err
	}

	return s, nil
}

// NewPsbtBuilder creates a builder over a hex encoded document.
func NewPsbtBuilder(net *netparams.Params, psbtHex string) (*PsbtBuilder,
	error) {

	doc, err := FromHex(psbtHex, net)
	if err != nil {
		return nil, err
	}
	return &PsbtBuilder{NetParams: net, Doc: doc}, nil
}

// AddInput adds one input described by its DTO.
func (s *PsbtBuilder) AddInput(in Input) error {
	data, err := in.InputData()
	if err != nil {
		return err
	}
	_, err = s.Doc.AddInput(data)
	return err
}

// AddOutput adds outs in order.
func (s *PsbtBuilder) AddOutput(outs []Output) error {
	for _, out := range outs {
		if _, err := s.Doc.AddOutput(out); err != nil {
			return err
		}
	}
	return nil
}

// AddInputsFromUnspents adds every unspent output of pay's address as an
// input and returns their total value. Segwit inputs carry only the spent
// output, other inputs carry the full previous transaction fetched from
// source. The redeem and witness scripts of pay are attached to each input.
func (s *PsbtBuilder) AddInputsFromUnspents(ctx context.Context,
	source UnspentSource, pay *payment.Payment, segwit bool) (int64, error) {

	if pay.Address == "" {
		return 0, psbtErrorf(ErrInvalidAddress,
			"payment has no address to look up")
	}

	unspents, err := source.FetchUnspents(ctx, pay.Address)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, unspent := range unspents {
		txHash, err := chainhash.NewHashFromStr(unspent.TxID)
		if err != nil {
			return 0, psbtError(ErrInvalidPrevoutData, noIndex,
				"invalid unspent txid", err)
		}

		data := InputData{
			PreviousOutPoint: *wire.NewOutPoint(txHash, unspent.Vout),
			RedeemScript:     pay.RedeemScript,
			WitnessScript:    pay.WitnessScript,
		}

		if segwit {
			pkScript, err := hex.DecodeString(unspent.ScriptPubKey)
			if err != nil {
				return 0, psbtError(ErrInvalidPrevoutData, noIndex,
					"invalid unspent script", err)
			}
			data.WitnessUtxo = wire.NewTxOut(unspent.Satoshis, pkScript)
		} else {
			prevTx, err := source.FetchRawTx(ctx, unspent.TxID)
			if err != nil {
				return 0, err
			}
			data.NonWitnessUtxo = prevTx
		}

		if _, err := s.Doc.AddInput(data); err != nil {
			return 0, err
		}
		total += unspent.Satoshis
	}

	log.Debugf("Added %d unspent outputs of %s worth %d", len(unspents),
		pay.Address, total)

	return total, nil
}

// AddChangeOutput pays change back to address unless it is at or below the
// dust limit. It reports whether an output was added.
func (s *PsbtBuilder) AddChangeOutput(address string, change int64) (bool,
	error) {

	if change <= DustLimit {
		log.Debugf("Dropping change of %d below dust", change)
		return false, nil
	}

	_, err := s.Doc.AddOutput(Output{Address: address, Amount: change})
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetInputs returns the inputs of the unsigned transaction.
func (s *PsbtBuilder) GetInputs() []*wire.TxIn {
	return s.Doc.UnsignedTx().TxIn
}

// GetOutputs returns the outputs of the unsigned transaction.
func (s *PsbtBuilder) GetOutputs() []*wire.TxOut {
	return s.Doc.UnsignedTx().TxOut
}

// IsComplete reports whether every input is finalized.
func (s *PsbtBuilder) IsComplete() bool {
	return s.Doc.IsComplete()
}

// ToString returns the hex encoded document.
func (s *PsbtBuilder) ToString() (string, error) {
	return s.Doc.HexEncode()
}

// SignFinalizeExtract signs every input signer can sign, finalizes all
// inputs and returns the network transaction.
func (s *PsbtBuilder) SignFinalizeExtract(signer Signer) (*wire.MsgTx,
	error) {

	if _, err := s.Doc.SignAllInputs(signer); err != nil {
		return nil, err
	}
	if err := s.Doc.FinalizeAllInputs(); err != nil {
		return nil, err
	}
	return s.Doc.ExtractTransaction()
}

// ExtractPsbtTransaction finalizes any remaining inputs and returns the hex
// encoded network transaction.
func (s *PsbtBuilder) ExtractPsbtTransaction() (string, error) {
	if !s.IsComplete() {
		if err := s.Doc.FinalizeAllInputs(); err != nil {
			return "", err
		}
	}
	return s.Doc.ExtractHex()
}

// CalculateFee estimates the fee of the transaction at feeRate satoshi per
// byte. The size is that of the extracted transaction once the document is
// complete, and that of the unsigned transaction before. extraSize is added
// to cover signatures or outputs not yet present.
func (s *PsbtBuilder) CalculateFee(feeRate int64, extraSize int64) (int64,
	error) {

	if feeRate < 0 || extraSize < 0 {
		return 0, psbtErrorf(ErrInvalidAmount,
			"negative fee rate %d or extra size %d", feeRate,
			extraSize)
	}

	tx := s.Doc.UnsignedTx()
	if s.IsComplete() {
		var err error
		tx, err = s.Doc.ExtractTransaction()
		if err != nil {
			return 0, err
		}
	}

	return (int64(tx.SerializeSize()) + extraSize) * feeRate, nil
}

// Broadcast extracts the finished transaction and relays it.
func (s *PsbtBuilder) Broadcast(ctx context.Context,
	b Broadcaster) (string, error) {

	tx, err := s.Doc.ExtractTransaction()
	if err != nil {
		return "", err
	}

	txid, err := b.Broadcast(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("broadcast %v: %w", tx.TxHash(), err)
	}
	return txid, nil
}
