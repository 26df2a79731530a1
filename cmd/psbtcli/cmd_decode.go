package main

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/ghost-coin/psbt-sdk/payment"
	"github.com/jessevdk/go-flags"
)

type decodedInput struct {
	OutPoint    string   `json:"outpoint"`
	Sequence    uint32   `json:"sequence"`
	State       string   `json:"state"`
	SighashType string   `json:"sighash_type,omitempty"`
	SignedBy    []string `json:"signed_by,omitempty"`
}

type decodedOutput struct {
	Amount  int64  `json:"amount"`
	Script  string `json:"script"`
	Class   string `json:"class"`
	Address string `json:"address,omitempty"`
}

type decodedDocument struct {
	Network         string          `json:"network"`
	TxID            string          `json:"txid"`
	Version         int32           `json:"version"`
	LockTime        uint32          `json:"locktime"`
	Inputs          []decodedInput  `json:"inputs"`
	Outputs         []decodedOutput `json:"outputs"`
	Fee             *int64          `json:"fee,omitempty"`
	SignaturesValid bool            `json:"signatures_valid"`
	Complete        bool            `json:"complete"`
}

type decodeCommand struct {
	opts *globalOptions
}

func newDecodeCommand(opts *globalOptions) *decodeCommand {
	return &decodeCommand{opts: opts}
}

func (x *decodeCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"decode",
		"Describe a document as JSON",
		"Print the inputs with their signing state, the outputs, the "+
			"fee and whether the partial signatures are valid",
		x,
	)
	return err
}

func (x *decodeCommand) Execute(args []string) error {
	doc, err := x.opts.readDocument(args)
	if err != nil {
		return err
	}

	decoded, err := describe(doc)
	if err != nil {
		return err
	}
	return printJSON(decoded)
}

func describe(doc *psbt.Document) (*decodedDocument, error) {
	net := doc.Network()
	tx := doc.UnsignedTx()
	packet := doc.Packet()

	decoded := &decodedDocument{
		Network:  net.Name,
		TxID:     tx.TxHash().String(),
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Complete: doc.IsComplete(),
	}

	for i, txIn := range tx.TxIn {
		state, err := doc.InputState(i)
		if err != nil {
			return nil, err
		}
		sigs, err := doc.PartialSigs(i)
		if err != nil {
			return nil, err
		}

		in := decodedInput{
			OutPoint: txIn.PreviousOutPoint.String(),
			Sequence: txIn.Sequence,
			State:    state.String(),
		}
		if sighash := packet.Inputs[i].SighashType; sighash != 0 {
			in.SighashType = sighashString(sighash)
		}
		for _, sig := range sigs {
			in.SignedBy = append(in.SignedBy,
				hex.EncodeToString(sig.PubKey))
		}
		decoded.Inputs = append(decoded.Inputs, in)
	}

	for _, txOut := range tx.TxOut {
		out := decodedOutput{
			Amount: txOut.Value,
			Script: hex.EncodeToString(txOut.PkScript),
			Class:  payment.Classify(txOut.PkScript).String(),
		}
		addr, err := payment.EncodeAddress(txOut.PkScript, net.Params)
		if err == nil {
			out.Address = addr
		}
		decoded.Outputs = append(decoded.Outputs, out)
	}

	if fee, err := doc.Fee(); err == nil {
		sat := int64(fee)
		decoded.Fee = &sat
	} else {
		log.Debugf("Fee not known: %v", err)
	}

	valid, err := doc.ValidateAllSignatures()
	if err != nil {
		log.Debugf("Unable to validate signatures: %v", err)
	}
	decoded.SignaturesValid = valid

	return decoded, nil
}

func sighashString(t txscript.SigHashType) string {
	var base string
	switch t &^ txscript.SigHashAnyOneCanPay {
	case txscript.SigHashAll:
		base = "ALL"
	case txscript.SigHashNone:
		base = "NONE"
	case txscript.SigHashSingle:
		base = "SINGLE"
	default:
		return fmt.Sprintf("0x%02x", uint32(t))
	}

	if t&txscript.SigHashAnyOneCanPay != 0 {
		return base + "|ANYONECANPAY"
	}
	return base
}
