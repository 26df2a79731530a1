package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/ghost-coin/psbt-sdk/hdkey"
	"github.com/ghost-coin/psbt-sdk/insight"
	"github.com/ghost-coin/psbt-sdk/netparams"
)

const (
	defaultNetwork        = "ghostTestnet"
	defaultDebugLevel     = "info"
	defaultRequestTimeout = 30 * time.Second
)

// stdin is where "-" arguments are read from.
var stdin io.Reader = os.Stdin

// globalOptions are the flags shared by every command.
type globalOptions struct {
	Network        string        `long:"network" env:"PSBT_NETWORK" description:"Network the documents and keys belong to" default:"ghostTestnet"`
	InsightURL     string        `long:"insighturl" env:"INSIGHT_URL" description:"Base URL of the Insight API, defaults to the network's explorer"`
	RequestTimeout time.Duration `long:"requesttimeout" description:"Timeout of a single Insight request" default:"30s"`
	DebugLevel     string        `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} or a list of <subsystem>=<level> pairs" default:"info"`

	net *netparams.Params
}

// setup resolves the network and configures logging. It runs once the
// command line has been parsed, before the selected command executes.
func (o *globalOptions) setup() error {
	if o.Network == "" {
		o.Network = defaultNetwork
	}
	net, err := netparams.ByName(o.Network)
	if err != nil {
		return fmt.Errorf("%w, known networks are %v", err,
			netparams.Names())
	}
	o.net = net

	if o.DebugLevel == "" {
		o.DebugLevel = defaultDebugLevel
	}
	if err := parseAndSetDebugLevels(o.DebugLevel); err != nil {
		return err
	}

	log.Debugf("Using network %s", net.Name)
	return nil
}

// insightClient returns a client for the configured Insight endpoint. The
// APIURL variable is honored for compatibility with older setups.
func (o *globalOptions) insightClient() (*insight.Client, error) {
	url := o.InsightURL
	if url == "" {
		url = os.Getenv("APIURL")
	}
	if url == "" {
		url = o.net.InsightURL
	}
	if url == "" {
		return nil, fmt.Errorf("no Insight API known for %s, use "+
			"--insighturl", o.net.Name)
	}

	timeout := o.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	log.Debugf("Using Insight API at %s", url)
	return insight.NewClient(&insight.ClientConfig{
		URL:            url,
		RequestTimeout: timeout,
	}), nil
}

// parseDocument decodes a document given as base64 or hex.
func (o *globalOptions) parseDocument(s string) (*psbt.Document, error) {
	s = strings.TrimSpace(s)
	doc, err := psbt.FromBase64(s, o.net)
	if err == nil {
		return doc, nil
	}

	doc, hexErr := psbt.FromHex(s, o.net)
	if hexErr == nil {
		return doc, nil
	}
	return nil, err
}

// readDocuments decodes every argument as a document. An argument of "-"
// reads whitespace separated documents from stdin.
func (o *globalOptions) readDocuments(args []string) ([]*psbt.Document,
	error) {

	var encoded []string
	for _, arg := range args {
		if arg != "-" {
			encoded = append(encoded, arg)
			continue
		}

		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		scanner.Split(bufio.ScanWords)
		for scanner.Scan() {
			encoded = append(encoded, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("error reading stdin: %w", err)
		}
	}

	docs := make([]*psbt.Document, 0, len(encoded))
	for i, s := range encoded {
		doc, err := o.parseDocument(s)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// readDocument expects exactly one document argument.
func (o *globalOptions) readDocument(args []string) (*psbt.Document, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected one document argument, got %d",
			len(args))
	}

	docs, err := o.readDocuments(args)
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("expected one document, got %d",
			len(docs))
	}
	return docs[0], nil
}

// keyOptions selects the key a command signs with.
type keyOptions struct {
	WIF        string `long:"wif" env:"PSBT_WIF" description:"WIF encoded private key"`
	Mnemonic   string `long:"mnemonic" env:"PSBT_MNEMONIC" description:"BIP39 mnemonic of the signing wallet"`
	Passphrase string `long:"passphrase" env:"PSBT_PASSPHRASE" description:"Optional BIP39 passphrase"`
	Path       string `long:"path" description:"Derivation path of the signing key, e.g. m/44'/531'/0'/0/0; inputs must list it in their derivation records, without it every listed key of the wallet signs"`
}

// signer builds the signer described by the options.
func (k *keyOptions) signer(net *netparams.Params) (psbt.Signer, error) {
	switch {
	case k.WIF != "" && k.Mnemonic != "":
		return nil, fmt.Errorf("--wif and --mnemonic are mutually " +
			"exclusive")

	case k.WIF != "":
		return psbt.NewWIFSigner(k.WIF, net)

	case k.Mnemonic != "":
		seed, err := hdkey.SeedFromMnemonic(k.Mnemonic, k.Passphrase)
		if err != nil {
			return nil, err
		}
		root, err := hdkey.NewMaster(seed, net)
		if err != nil {
			return nil, err
		}

		signer := psbt.HDSigner{Root: root}
		if k.Path != "" {
			signer.Path, err = hdkey.ParsePath(k.Path)
			if err != nil {
				return nil, err
			}
		}
		return signer, nil

	default:
		return nil, fmt.Errorf("a signing key is required, use --wif " +
			"or --mnemonic")
	}
}

// printDocument writes the base64 form of doc.
func printDocument(doc *psbt.Document) error {
	b64, err := doc.B64Encode()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, b64)
	return err
}

// printJSON writes v as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

// readInput returns the contents of the named file, or stdin for "-" or an
// empty name.
func readInput(name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}
