package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

type signCommand struct {
	keyOptions

	Input int `long:"input" description:"Index of the input to sign, all inputs the key can sign when negative" default:"-1"`

	opts *globalOptions
}

func newSignCommand(opts *globalOptions) *signCommand {
	return &signCommand{opts: opts, Input: -1}
}

func (x *signCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"sign",
		"Add partial signatures to a document",
		"Sign one input, or every input the key can sign, of the "+
			"document given as argument (- for stdin) and print "+
			"the updated document",
		x,
	)
	return err
}

func (x *signCommand) Execute(args []string) error {
	doc, err := x.opts.readDocument(args)
	if err != nil {
		return err
	}

	signer, err := x.signer(x.opts.net)
	if err != nil {
		return err
	}

	if x.Input >= 0 {
		if err := doc.SignInput(x.Input, signer); err != nil {
			return err
		}
		log.Infof("Signed input %d", x.Input)
	} else {
		signed, err := doc.SignAllInputs(signer)
		if err != nil {
			return fmt.Errorf("signed %v before failing: %w", signed,
				err)
		}
		log.Infof("Signed inputs %v", signed)
	}

	return printDocument(doc)
}
