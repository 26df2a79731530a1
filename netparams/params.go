package netparams

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
)

// ErrUnknownNetwork is returned by ByName for names missing from the table.
var ErrUnknownNetwork = errors.New("unknown network")

const bitcoinMessagePrefix = "\x18Bitcoin Signed Message:\n"

// Params groups the chain constants used to encode addresses, WIF keys and
// extended keys for one network, together with the defaults used when
// building transactions on it.
type Params struct {
	*chaincfg.Params

	// MessagePrefix is prepended to messages before signing.
	MessagePrefix string

	// TxVersion is the version given to newly created transactions.
	TxVersion int32

	// InsightURL is the default block explorer API endpoint.
	InsightURL string
}

// MainNetParams contains parameters for the Bitcoin main network.
var MainNetParams = Params{
	Params:        &chaincfg.MainNetParams,
	MessagePrefix: bitcoinMessagePrefix,
	TxVersion:     2,
}

// TestNetParams contains parameters for the Bitcoin test network (version 3).
var TestNetParams = Params{
	Params:        &chaincfg.TestNet3Params,
	MessagePrefix: bitcoinMessagePrefix,
	TxVersion:     2,
}

// RegtestParams contains parameters for the Bitcoin regression test network.
var RegtestParams = Params{
	Params:        &chaincfg.RegressionNetParams,
	MessagePrefix: bitcoinMessagePrefix,
	TxVersion:     2,
}

// GhostParams contains parameters for the Ghost main network.
var GhostParams = Params{
	Params: ghostChainParams(chaincfg.MainNetParams, "ghost", "gp",
		0x26, 0x61, 0xa6,
		[4]byte{0x8e, 0x8e, 0xa8, 0xea}, [4]byte{0x68, 0xdf, 0x7c, 0xbd}),
	MessagePrefix: bitcoinMessagePrefix,
	TxVersion:     160,
	InsightURL:    "https://ghostscan.io/ghost-insight-api",
}

// GhostTestNetParams contains parameters for the Ghost test network.
var GhostTestNetParams = Params{
	Params: ghostChainParams(chaincfg.TestNet3Params, "ghostTestnet",
		"tghost", 0x4b, 0x89, 0x2e,
		[4]byte{0x04, 0x88, 0x94, 0x78}, [4]byte{0xe1, 0x42, 0x78, 0x00}),
	MessagePrefix: bitcoinMessagePrefix,
	TxVersion:     160,
	InsightURL:    "https://testnet.ghostscan.io/ghost-insight-api",
}

// GhostRegtestParams contains parameters for the Ghost regression test
// network.
var GhostRegtestParams = Params{
	Params: ghostChainParams(chaincfg.RegressionNetParams, "ghostRegtest",
		"ghost", 0x76, 0x7a, 0x2e,
		[4]byte{0x04, 0x88, 0x94, 0x78}, [4]byte{0xe1, 0x42, 0x78, 0x00}),
	MessagePrefix: bitcoinMessagePrefix,
	TxVersion:     160,
}

// ghostChainParams derives a Ghost chain parameter set from the Bitcoin set
// sharing its consensus rules. Only the encoding constants change. The result
// is deliberately kept out of the chaincfg registry.
func ghostChainParams(base chaincfg.Params, name, hrp string, pkh, sh,
	wif byte, hdPriv, hdPub [4]byte) *chaincfg.Params {

	base.Name = name
	base.Bech32HRPSegwit = hrp
	base.PubKeyHashAddrID = pkh
	base.ScriptHashAddrID = sh
	base.PrivateKeyID = wif
	base.HDPrivateKeyID = hdPriv
	base.HDPublicKeyID = hdPub

	return &base
}

var registry = map[string]*Params{
	"bitcoin":      &MainNetParams,
	"testnet":      &TestNetParams,
	"regtest":      &RegtestParams,
	"ghost":        &GhostParams,
	"ghostTestnet": &GhostTestNetParams,
	"ghostRegtest": &GhostRegtestParams,
}

// ByName looks up a parameter set by its table name.
func ByName(name string) (*Params, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
	return p, nil
}

// Names returns the sorted list of known network names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every parameter set in Names order.
func All() []*Params {
	names := Names()
	all := make([]*Params, 0, len(names))
	for _, name := range names {
		all = append(all, registry[name])
	}
	return all
}
