package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ErrInvalidAddress is returned when an address string cannot be decoded for
// the requested network.
var ErrInvalidAddress = errors.New("invalid address")

// EncodeAddress returns the address form of an output script on the given
// network. Key hash and script hash outputs use base58check with the
// network's version bytes, witness outputs use bech32 (v0) or bech32m (v1)
// with the network's human-readable prefix.
func EncodeAddress(script []byte, net *chaincfg.Params) (string, error) {
	var (
		addr btcutil.Address
		err  error
	)
	switch Classify(script) {
	case txscript.PubKeyHashTy:
		addr, err = btcutil.NewAddressPubKeyHash(script[3:23], net)

	case txscript.ScriptHashTy:
		addr, err = btcutil.NewAddressScriptHashFromHash(script[2:22], net)

	case txscript.WitnessV0PubKeyHashTy:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(script[2:22], net)

	case txscript.WitnessV0ScriptHashTy:
		addr, err = btcutil.NewAddressWitnessScriptHash(script[2:34], net)

	case txscript.WitnessV1TaprootTy:
		addr, err = btcutil.NewAddressTaproot(script[2:34], net)

	default:
		return "", fmt.Errorf("%w: %x", ErrUnsupportedEncoding, script)
	}
	if err != nil {
		return "", err
	}

	return addr.EncodeAddress(), nil
}

// DecodeAddress decodes an address for the given network and returns the
// output script it pays to. Addresses of other networks are rejected, never
// reinterpreted.
func DecodeAddress(address string, net *chaincfg.Params) ([]byte, error) {
	addr, err := decodeAddress(address, net)
	if err != nil {
		return nil, err
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return script, nil
}

func decodeAddress(address string, net *chaincfg.Params) (btcutil.Address,
	error) {

	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	segwitPrefix := net.Bech32HRPSegwit + "1"
	if strings.HasPrefix(strings.ToLower(address), segwitPrefix) {
		return decodeSegWitAddress(address, net)
	}

	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(payload) != 20 {
		return nil, fmt.Errorf("%w: payload length %d", ErrInvalidAddress,
			len(payload))
	}

	switch version {
	case net.PubKeyHashAddrID:
		return btcutil.NewAddressPubKeyHash(payload, net)

	case net.ScriptHashAddrID:
		return btcutil.NewAddressScriptHashFromHash(payload, net)

	default:
		return nil, fmt.Errorf("%w: version byte 0x%02x is not used by %s",
			ErrInvalidAddress, version, net.Name)
	}
}

func decodeSegWitAddress(address string, net *chaincfg.Params) (
	btcutil.Address, error) {

	hrp, data, encoding, err := bech32.DecodeGeneric(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if hrp != net.Bech32HRPSegwit {
		return nil, fmt.Errorf("%w: prefix %q is not used by %s",
			ErrInvalidAddress, hrp, net.Name)
	}
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: no witness version", ErrInvalidAddress)
	}

	version := data[0]
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	switch {
	case version == 0 && encoding == bech32.Version0 && len(program) == 20:
		return btcutil.NewAddressWitnessPubKeyHash(program, net)

	case version == 0 && encoding == bech32.Version0 && len(program) == 32:
		return btcutil.NewAddressWitnessScriptHash(program, net)

	case version == 1 && encoding == bech32.VersionM && len(program) == 32:
		return btcutil.NewAddressTaproot(program, net)
	}

	return nil, fmt.Errorf("%w: witness v%d program of %d bytes",
		ErrInvalidAddress, version, len(program))
}
