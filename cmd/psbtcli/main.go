// Command psbtcli creates, signs, combines, finalizes and broadcasts
// partially signed transactions for the Bitcoin and Ghost networks.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// stdout receives command results. Log output goes to stderr.
var stdout io.Writer = os.Stdout

type subCommand interface {
	Register(parser *flags.Parser) error
}

func main() {
	// A missing .env file is fine, the environment may carry the values.
	_ = godotenv.Load()

	if err := run(os.Args[1:]); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	opts := &globalOptions{}
	parser := flags.NewParser(opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if err := opts.setup(); err != nil {
			return err
		}
		return cmd.Execute(args)
	}

	commands := []subCommand{
		newCreateCommand(opts),
		newSendCommand(opts),
		newSignCommand(opts),
		newCombineCommand(opts),
		newFinalizeCommand(opts),
		newExtractCommand(opts),
		newDecodeCommand(opts),
		newBroadcastCommand(opts),
		newBalanceCommand(opts),
	}
	for _, command := range commands {
		if err := command.Register(parser); err != nil {
			return fmt.Errorf("unable to register command: %w", err)
		}
	}

	_, err := parser.ParseArgs(args)
	return err
}
