package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/ghost-coin/psbt-sdk/hdkey"
	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/ghost-coin/psbt-sdk/payment"
	"github.com/jessevdk/go-flags"
)

const defaultFee = 35000

type sendCommand struct {
	keyOptions

	Type      string `long:"type" description:"Script type of the funding address" choice:"p2pkh" choice:"p2wpkh" choice:"p2sh-p2wpkh" default:"p2pkh"`
	To        string `long:"to" description:"Destination address" required:"true"`
	Amount    int64  `long:"amount" description:"Amount to send in satoshi" required:"true"`
	Fee       int64  `long:"fee" description:"Absolute fee in satoshi" default:"35000"`
	Broadcast bool   `long:"broadcast" description:"Relay the transaction instead of printing it"`

	opts *globalOptions
}

func newSendCommand(opts *globalOptions) *sendCommand {
	return &sendCommand{opts: opts, Type: "p2pkh", Fee: defaultFee}
}

func (x *sendCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"send",
		"Spend the unspent outputs of a key",
		"Look up every unspent output of the key's address through "+
			"the Insight API, pay --amount to --to, return the "+
			"remainder minus --fee to the same address, then sign "+
			"and print the transaction or relay it with "+
			"--broadcast",
		x,
	)
	return err
}

func (x *sendCommand) Execute(_ []string) error {
	net := x.opts.net

	if x.Amount <= 0 || x.Fee < 0 {
		return fmt.Errorf("invalid amount %d or fee %d", x.Amount, x.Fee)
	}

	key, err := x.privateKey(net)
	if err != nil {
		return err
	}

	pay, err := fundingPayment(x.Type, key.PubKey(), net)
	if err != nil {
		return err
	}
	log.Infof("Spending %s outputs of %s", x.Type, pay.Address)

	client, err := x.opts.insightClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	builder := &psbt.PsbtBuilder{
		NetParams: net,
		Doc:       psbt.Create(net, 0, 0),
	}

	total, err := builder.AddInputsFromUnspents(
		ctx, client, pay, x.Type != "p2pkh",
	)
	if err != nil {
		return err
	}
	if builder.Doc.InputCount() == 0 {
		return fmt.Errorf("no unspent outputs for %s", pay.Address)
	}

	change := total - x.Amount - x.Fee
	if change < 0 {
		return fmt.Errorf("insufficient funds: have %v, need %v",
			btcutil.Amount(total), btcutil.Amount(x.Amount+x.Fee))
	}

	err = builder.AddOutput([]psbt.Output{{
		Address: x.To,
		Amount:  x.Amount,
	}})
	if err != nil {
		return err
	}
	if _, err := builder.AddChangeOutput(pay.Address, change); err != nil {
		return err
	}

	tx, err := builder.SignFinalizeExtract(psbt.PrivKeySigner{Key: key})
	if err != nil {
		return err
	}

	if !x.Broadcast {
		txHex, err := builder.ExtractPsbtTransaction()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, txHex)
		return err
	}

	txid, err := builder.Broadcast(ctx, client)
	if err != nil {
		return err
	}
	log.Infof("Broadcast transaction %v", tx.TxHash())

	_, err = fmt.Fprintln(stdout, txid)
	return err
}

// privateKey returns the single key named by the options. A mnemonic needs
// an explicit path here since there are no derivation records to search.
func (k *keyOptions) privateKey(net *netparams.Params) (*btcec.PrivateKey,
	error) {

	signer, err := k.signer(net)
	if err != nil {
		return nil, err
	}

	switch s := signer.(type) {
	case psbt.PrivKeySigner:
		return s.Key, nil

	case psbt.HDSigner:
		if s.Path == nil {
			return nil, errors.New("--path is required with " +
				"--mnemonic")
		}
		child, err := s.Root.DeriveIndices(s.Path)
		if err != nil {
			return nil, err
		}
		log.Debugf("Using key at %s", hdkey.FormatPath(s.Path))
		return child.PrivKey()

	default:
		return nil, fmt.Errorf("unsupported signer %T", signer)
	}
}

// fundingPayment builds the single key payment of the given type.
func fundingPayment(scriptType string, pub *btcec.PublicKey,
	net *netparams.Params) (*payment.Payment, error) {

	key := pub.SerializeCompressed()

	var tmpl payment.Template
	switch scriptType {
	case "p2pkh":
		tmpl = payment.PubKeyHash{Key: key}
	case "p2wpkh":
		tmpl = payment.WitnessPubKeyHash{Key: key}
	case "p2sh-p2wpkh":
		tmpl = payment.ScriptHash{
			Redeem: payment.WitnessPubKeyHash{Key: key},
		}
	default:
		return nil, fmt.Errorf("unknown script type %q", scriptType)
	}

	return payment.Build(tmpl, net.Params)
}
