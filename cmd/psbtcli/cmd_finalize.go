package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

type finalizeCommand struct {
	Input   int  `long:"input" description:"Index of the input to finalize, all inputs when negative" default:"-1"`
	Extract bool `long:"extract" description:"Print the network transaction instead of the document once complete"`

	opts *globalOptions
}

func newFinalizeCommand(opts *globalOptions) *finalizeCommand {
	return &finalizeCommand{opts: opts, Input: -1}
}

func (x *finalizeCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"finalize",
		"Finalize the inputs of a document",
		"Build the final scriptSig and witness of one or all inputs "+
			"from their partial signatures and print the document, "+
			"or the network transaction with --extract",
		x,
	)
	return err
}

func (x *finalizeCommand) Execute(args []string) error {
	doc, err := x.opts.readDocument(args)
	if err != nil {
		return err
	}

	if x.Input >= 0 {
		err = doc.FinalizeInput(x.Input)
	} else {
		err = doc.FinalizeAllInputs()
	}
	if err != nil {
		return err
	}

	if !x.Extract {
		return printDocument(doc)
	}

	txHex, err := doc.ExtractHex()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, txHex)
	return err
}

type extractCommand struct {
	opts *globalOptions
}

func newExtractCommand(opts *globalOptions) *extractCommand {
	return &extractCommand{opts: opts}
}

func (x *extractCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"extract",
		"Print the network transaction of a complete document",
		"Print the hex encoded network transaction of a document "+
			"whose inputs are all finalized",
		x,
	)
	return err
}

func (x *extractCommand) Execute(args []string) error {
	doc, err := x.opts.readDocument(args)
	if err != nil {
		return err
	}

	txHex, err := doc.ExtractHex()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, txHex)
	return err
}
