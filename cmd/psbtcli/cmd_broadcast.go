package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/wire"
	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/jessevdk/go-flags"
)

type broadcastCommand struct {
	RawTx bool `long:"rawtx" description:"The argument is a hex encoded network transaction rather than a complete document"`

	opts *globalOptions
}

func newBroadcastCommand(opts *globalOptions) *broadcastCommand {
	return &broadcastCommand{opts: opts}
}

func (x *broadcastCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"broadcast",
		"Relay a transaction through the Insight API",
		"Extract the transaction of a complete document, or decode "+
			"a raw transaction with --rawtx, relay it and print "+
			"the txid",
		x,
	)
	return err
}

func (x *broadcastCommand) Execute(args []string) error {
	client, err := x.opts.insightClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var txid string
	if x.RawTx {
		tx, err := readRawTx(args)
		if err != nil {
			return err
		}
		txid, err = client.Broadcast(ctx, tx)
		if err != nil {
			return err
		}
	} else {
		doc, err := x.opts.readDocument(args)
		if err != nil {
			return err
		}
		builder := &psbt.PsbtBuilder{NetParams: x.opts.net, Doc: doc}
		txid, err = builder.Broadcast(ctx, client)
		if err != nil {
			return err
		}
	}

	log.Infof("Broadcast transaction %s", txid)
	_, err = fmt.Fprintln(stdout, txid)
	return err
}

func readRawTx(args []string) (*wire.MsgTx, error) {
	if len(args) != 1 {
		return nil, errors.New("expected one transaction argument")
	}

	arg := args[0]
	if arg == "-" {
		raw, err := readInput(arg)
		if err != nil {
			return nil, err
		}
		arg = string(raw)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(arg))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}

type balanceCommand struct {
	Unspents bool `long:"unspents" description:"List the unspent outputs instead of the balance"`

	opts *globalOptions
}

func newBalanceCommand(opts *globalOptions) *balanceCommand {
	return &balanceCommand{opts: opts}
}

func (x *balanceCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"balance",
		"Show the balance of an address",
		"Print the Insight balance summary of the address given as "+
			"argument, or its unspent outputs with --unspents",
		x,
	)
	return err
}

func (x *balanceCommand) Execute(args []string) error {
	if len(args) != 1 {
		return errors.New("expected one address argument")
	}

	client, err := x.opts.insightClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if x.Unspents {
		unspents, err := client.FetchUnspents(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(unspents)
	}

	balance, err := client.FetchBalance(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(balance)
}
