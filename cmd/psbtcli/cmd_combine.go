package main

import (
	"errors"

	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/ghost-coin/psbt-sdk/store"
	"github.com/jessevdk/go-flags"
)

type combineCommand struct {
	StoreDir string `long:"storedir" env:"PSBT_STORE_DIR" description:"Directory of the document store; documents are merged into the stored session when set"`
	Session  string `long:"session" description:"Session id of the stored document"`

	opts *globalOptions
}

func newCombineCommand(opts *globalOptions) *combineCommand {
	return &combineCommand{opts: opts}
}

func (x *combineCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"combine",
		"Merge copies of the same document",
		"Merge the documents given as arguments (- reads them from "+
			"stdin) into one. With --storedir and --session the "+
			"documents are merged into the stored session copy "+
			"and the session is printed",
		x,
	)
	return err
}

func (x *combineCommand) Execute(args []string) error {
	docs, err := x.opts.readDocuments(args)
	if err != nil {
		return err
	}

	if x.StoreDir != "" {
		return x.combineStored(docs)
	}

	if len(docs) == 0 {
		return errors.New("at least one document is required")
	}

	merged := docs[0]
	for _, doc := range docs[1:] {
		merged, err = psbt.Merge(merged, doc)
		if err != nil {
			return err
		}
	}

	log.Infof("Combined %d documents", len(docs))
	return printDocument(merged)
}

func (x *combineCommand) combineStored(docs []*psbt.Document) error {
	if x.Session == "" {
		return errors.New("--session is required with --storedir")
	}

	s, err := store.Open(x.StoreDir, x.opts.net)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Errorf("Unable to close store: %v", err)
		}
	}()

	for _, doc := range docs {
		if _, err := s.Put(x.Session, doc); err != nil {
			return err
		}
	}

	merged, err := s.Get(x.Session)
	if err != nil {
		return err
	}

	log.Infof("Merged %d documents into session %s", len(docs),
		x.Session)
	return printDocument(merged)
}
