// Command createaddress derives keys from a BIP39 mnemonic and prints the
// addresses of every single key script type for the selected network.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ghost-coin/psbt-sdk/hdkey"
	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/ghost-coin/psbt-sdk/payment"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type options struct {
	Network    string `long:"network" env:"PSBT_NETWORK" description:"Network to encode keys and addresses for" default:"ghostTestnet"`
	Mnemonic   string `long:"mnemonic" env:"PSBT_MNEMONIC" description:"BIP39 mnemonic, a new one is generated when empty"`
	Passphrase string `long:"passphrase" env:"PSBT_PASSPHRASE" description:"Optional BIP39 passphrase"`
	Path       string `long:"path" description:"Derivation path of the first key" default:"m/44'/531'/0'/0/0"`
	Count      uint32 `long:"count" description:"Number of consecutive keys to derive" default:"1"`
}

// keyInfo is everything printed for one derived key.
type keyInfo struct {
	Path       string
	WIF        string
	PubKey     string
	P2PKH      string
	P2WPKH     string
	P2SHP2WPKH string
	P2TR       string
}

func main() {
	_ = godotenv.Load()

	opts := options{Count: 1}
	if _, err := flags.Parse(&opts); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(os.Stdout, &opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(w io.Writer, opts *options) error {
	net, err := netparams.ByName(opts.Network)
	if err != nil {
		return err
	}

	mnemonic := opts.Mnemonic
	if mnemonic == "" {
		mnemonic, err = hdkey.NewMnemonic(256)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "mnemonic: %s\n", mnemonic)
	}

	seed, err := hdkey.SeedFromMnemonic(mnemonic, opts.Passphrase)
	if err != nil {
		return err
	}
	master, err := hdkey.NewMaster(seed, net)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "master xpub: %s\n", master.Neuter())

	path, err := hdkey.ParsePath(opts.Path)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return fmt.Errorf("path %q names the master key", opts.Path)
	}

	for i := uint32(0); i < opts.Count; i++ {
		indices := append([]uint32(nil), path...)
		indices[len(indices)-1] += i

		info, err := deriveKey(master, indices)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "\n%s\n", info.Path)
		fmt.Fprintf(w, "  wif:          %s\n", info.WIF)
		fmt.Fprintf(w, "  public key:   %s\n", info.PubKey)
		fmt.Fprintf(w, "  p2pkh:        %s\n", info.P2PKH)
		fmt.Fprintf(w, "  p2wpkh:       %s\n", info.P2WPKH)
		fmt.Fprintf(w, "  p2sh-p2wpkh:  %s\n", info.P2SHP2WPKH)
		fmt.Fprintf(w, "  p2tr:         %s\n", info.P2TR)
	}

	return nil
}

// deriveKey derives the key at indices and encodes it in every form. The
// WIF is decoded again and must yield the same taproot address.
func deriveKey(master *hdkey.ExtendedKey, indices []uint32) (*keyInfo,
	error) {

	net := master.Network()

	child, err := master.DeriveIndices(indices)
	if err != nil {
		return nil, err
	}
	wif, err := child.WIF()
	if err != nil {
		return nil, err
	}
	pub := child.PubKeyBytes()

	info := &keyInfo{
		Path:   hdkey.FormatPath(indices),
		WIF:    wif,
		PubKey: hex.EncodeToString(pub),
	}

	templates := []struct {
		addr *string
		tmpl payment.Template
	}{
		{&info.P2PKH, payment.PubKeyHash{Key: pub}},
		{&info.P2WPKH, payment.WitnessPubKeyHash{Key: pub}},
		{&info.P2SHP2WPKH, payment.ScriptHash{
			Redeem: payment.WitnessPubKeyHash{Key: pub},
		}},
	}
	for _, t := range templates {
		*t.addr, err = payment.Address(t.tmpl, net.Params)
		if err != nil {
			return nil, err
		}
	}

	pubKey, err := child.PubKey()
	if err != nil {
		return nil, err
	}
	info.P2TR, err = taprootAddress(pubKey, net)
	if err != nil {
		return nil, err
	}

	restored, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, err
	}
	restoredAddr, err := taprootAddress(restored.PrivKey.PubKey(), net)
	if err != nil {
		return nil, err
	}
	if restoredAddr != info.P2TR {
		return nil, fmt.Errorf("WIF of %s restores to another key",
			info.Path)
	}

	return info, nil
}

// taprootAddress returns the key path only taproot address of pub.
func taprootAddress(pub *btcec.PublicKey, net *netparams.Params) (string,
	error) {

	outputKey := txscript.ComputeTaprootKeyNoScript(pub)
	addr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(outputKey), net.Params,
	)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}
