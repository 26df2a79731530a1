package main

import (
	"encoding/json"
	"fmt"

	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/jessevdk/go-flags"
)

// skeleton is the JSON description of a new document.
type skeleton struct {
	Version  int32         `json:"version"`
	LockTime uint32        `json:"locktime"`
	Inputs   []psbt.Input  `json:"inputs"`
	Outputs  []psbt.Output `json:"outputs"`
}

type createCommand struct {
	File string `long:"file" short:"f" description:"JSON file with the inputs and outputs, - for stdin" default:"-"`

	opts *globalOptions
}

func newCreateCommand(opts *globalOptions) *createCommand {
	return &createCommand{opts: opts}
}

func (x *createCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"create",
		"Create an unsigned document",
		"Read a JSON object with the inputs, outputs, version and "+
			"locktime of a transaction and print the unsigned "+
			"document in base64",
		x,
	)
	return err
}

func (x *createCommand) Execute(_ []string) error {
	raw, err := readInput(x.File)
	if err != nil {
		return fmt.Errorf("unable to read skeleton: %w", err)
	}

	var s skeleton
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("unable to parse skeleton: %w", err)
	}

	doc := psbt.Create(x.opts.net, s.Version, s.LockTime)
	for i, in := range s.Inputs {
		data, err := in.InputData()
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if _, err := doc.AddInput(data); err != nil {
			return err
		}
	}
	for _, out := range s.Outputs {
		if _, err := doc.AddOutput(out); err != nil {
			return err
		}
	}

	log.Infof("Created document with %d inputs and %d outputs",
		doc.InputCount(), doc.OutputCount())

	return printDocument(doc)
}
