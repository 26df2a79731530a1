// Package hdkey implements BIP32 hierarchical deterministic keys and BIP39
// mnemonic seeds, with extended key serialization driven by an explicit
// network parameter set.
package hdkey

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/ghost-coin/psbt-sdk/netparams"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// HardenedKeyStart is the index of the first hardened child.
const HardenedKeyStart = bip32.FirstHardenedChild

var (
	// ErrInvalidMnemonic is returned for mnemonics that fail BIP39
	// checksum or word list validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrInvalidPath is returned for derivation paths that do not parse.
	ErrInvalidPath = errors.New("invalid derivation path")

	// ErrWrongNetwork is returned when an extended key string carries the
	// version bytes of another network.
	ErrWrongNetwork = errors.New("extended key belongs to another network")

	// ErrNotPrivate is returned when a private operation is requested on a
	// neutered key.
	ErrNotPrivate = errors.New("extended key is public only")
)

// ExtendedKey is a BIP32 node bound to the network whose version bytes it
// serializes with.
type ExtendedKey struct {
	key *bip32.Key
	net *netparams.Params
}

// NewMnemonic returns a fresh English mnemonic with the given entropy size in
// bits (128 to 256, multiple of 32).
func NewMnemonic(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// SeedFromMnemonic validates the mnemonic and stretches it into a 64 byte
// seed with the optional passphrase.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, passphrase), nil
}

// NewMaster creates the root node for seed on the given network.
func NewMaster(seed []byte, net *netparams.Params) (*ExtendedKey, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	return &ExtendedKey{key: key, net: net}, nil
}

// FromString parses a base58 extended key. The version bytes must be the
// network's public or private BIP32 version.
func FromString(s string, net *netparams.Params) (*ExtendedKey, error) {
	key, err := bip32.B58Deserialize(s)
	if err != nil {
		return nil, err
	}

	want := net.HDPublicKeyID[:]
	if key.IsPrivate {
		want = net.HDPrivateKeyID[:]
	}
	if !bytes.Equal(key.Version, want) {
		return nil, fmt.Errorf("%w: version %x on %s", ErrWrongNetwork,
			key.Version, net.Name)
	}

	return &ExtendedKey{key: key, net: net}, nil
}

// Network returns the parameter set the key serializes with.
func (k *ExtendedKey) Network() *netparams.Params {
	return k.net
}

// IsPrivate reports whether the key can derive hardened children and sign.
func (k *ExtendedKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the number of derivation steps from the master.
func (k *ExtendedKey) Depth() uint8 {
	return k.key.Depth
}

// Derive returns the child at index. Indices at or above HardenedKeyStart
// are hardened and need a private key.
func (k *ExtendedKey) Derive(index uint32) (*ExtendedKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, err
	}
	return &ExtendedKey{key: child, net: k.net}, nil
}

// DerivePath walks a path such as "m/44'/0'/0'/0/0" from this key.
func (k *ExtendedKey) DerivePath(path string) (*ExtendedKey, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return k.DeriveIndices(indices)
}

// DeriveIndices walks a parsed path from this key.
func (k *ExtendedKey) DeriveIndices(indices []uint32) (*ExtendedKey, error) {
	node := k
	for _, index := range indices {
		child, err := node.Derive(index)
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// Neuter returns the public-only form of the key.
func (k *ExtendedKey) Neuter() *ExtendedKey {
	return &ExtendedKey{key: k.key.PublicKey(), net: k.net}
}

// PubKeyBytes returns the compressed public key.
func (k *ExtendedKey) PubKeyBytes() []byte {
	return k.key.PublicKey().Key
}

// PubKey returns the public key.
func (k *ExtendedKey) PubKey() (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(k.PubKeyBytes())
}

// PrivKey returns the private key, or ErrNotPrivate for neutered keys.
func (k *ExtendedKey) PrivKey() (*btcec.PrivateKey, error) {
	if !k.key.IsPrivate {
		return nil, ErrNotPrivate
	}
	priv, _ := btcec.PrivKeyFromBytes(k.key.Key)
	return priv, nil
}

// Fingerprint returns the first four bytes of hash160(pubkey) as a little
// endian integer, the form used by PSBT derivation records.
func (k *ExtendedKey) Fingerprint() uint32 {
	return binary.LittleEndian.Uint32(btcutil.Hash160(k.PubKeyBytes())[:4])
}

// WIF encodes the private key in wallet import format for the key's network.
func (k *ExtendedKey) WIF() (string, error) {
	priv, err := k.PrivKey()
	if err != nil {
		return "", err
	}
	wif, err := btcutil.NewWIF(priv, k.net.Params, true)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}

// String serializes the key in base58 with the network's BIP32 version
// bytes.
func (k *ExtendedKey) String() string {
	key := *k.key
	if key.IsPrivate {
		key.Version = k.net.HDPrivateKeyID[:]
	} else {
		key.Version = k.net.HDPublicKeyID[:]
	}
	return key.B58Serialize()
}

// ParsePath parses "m/0'/1/2h" style paths. A leading "m" is optional and
// both ' and h mark hardened indices.
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	parts := strings.Split(path, "/")
	if len(parts) > 0 && (parts[0] == "m" || parts[0] == "M") {
		parts = parts[1:]
	}

	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			if len(parts) == 1 {
				break
			}
			return nil, fmt.Errorf("%w: empty element in %q",
				ErrInvalidPath, path)
		}

		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			hardened = true
			part = part[:len(part)-1]
		}

		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil || uint32(index) >= HardenedKeyStart {
			return nil, fmt.Errorf("%w: bad index %q in %q",
				ErrInvalidPath, part, path)
		}

		if hardened {
			index += uint64(HardenedKeyStart)
		}
		indices = append(indices, uint32(index))
	}

	return indices, nil
}

// FormatPath renders indices in "m/44'/0'/0'/0/0" form.
func FormatPath(indices []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, index := range indices {
		b.WriteString("/")
		if index >= HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(index-HardenedKeyStart), 10,
			))
			b.WriteString("'")
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(index), 10))
	}
	return b.String()
}
