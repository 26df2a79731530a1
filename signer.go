package psbt_sdk

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/ghost-coin/psbt-sdk/hdkey"
	"github.com/ghost-coin/psbt-sdk/netparams"
)

// Signer is a signing capability. The set of implementations is closed:
// PrivKeySigner holds a single key, HDSigner derives keys from a BIP32 root.
type Signer interface {
	// signingKeys returns the private keys the signer offers for input i.
	signingKeys(d *Document, i int) ([]*btcec.PrivateKey, error)
}

// PrivKeySigner signs with one private key.
type PrivKeySigner struct {
	Key *btcec.PrivateKey
}

// NewWIFSigner decodes a WIF private key that must belong to net.
func NewWIFSigner(wif string, net *netparams.Params) (PrivKeySigner, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return PrivKeySigner{}, err
	}
	if !decoded.IsForNet(net.Params) {
		return PrivKeySigner{}, fmt.Errorf("WIF key is not for %s",
			net.Name)
	}
	return PrivKeySigner{Key: decoded.PrivKey}, nil
}

func (s PrivKeySigner) signingKeys(*Document, int) ([]*btcec.PrivateKey,
	error) {

	return []*btcec.PrivateKey{s.Key}, nil
}

// HDSigner signs with keys derived from a BIP32 root. With an explicit Path
// the single key at that path is used, and it must be one the input declares
// in its derivation records. With a nil Path the keys are found
// through the input's derivation records whose master fingerprint is the
// root's.
type HDSigner struct {
	Root *hdkey.ExtendedKey
	Path []uint32
}

func (s HDSigner) signingKeys(d *Document, i int) ([]*btcec.PrivateKey,
	error) {

	hints := d.packet.Inputs[i].Bip32Derivation

	if s.Path != nil {
		if len(hints) == 0 {
			return nil, psbtError(ErrDerivationMismatch, i,
				"input declares no derivation records", nil)
		}
		child, err := s.Root.DeriveIndices(s.Path)
		if err != nil {
			return nil, err
		}
		if !hasDerivedKey(hints, child.PubKeyBytes()) {
			return nil, psbtError(ErrDerivationMismatch, i, fmt.Sprintf(
				"key at %s is not declared by the input",
				hdkey.FormatPath(s.Path)), nil)
		}
		priv, err := child.PrivKey()
		if err != nil {
			return nil, err
		}
		return []*btcec.PrivateKey{priv}, nil
	}

	fingerprint := s.Root.Fingerprint()
	var keys []*btcec.PrivateKey
	for _, hint := range hints {
		if hint.MasterKeyFingerprint != fingerprint {
			continue
		}

		child, err := s.Root.DeriveIndices(hint.Bip32Path)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(child.PubKeyBytes(), compressed(hint.PubKey)) {
			return nil, psbtError(ErrDerivationMismatch, i, fmt.Sprintf(
				"key at %s does not match declared key %x",
				hdkey.FormatPath(hint.Bip32Path), hint.PubKey), nil)
		}

		priv, err := child.PrivKey()
		if err != nil {
			return nil, err
		}
		keys = append(keys, priv)
	}

	if len(keys) == 0 {
		return nil, psbtError(ErrNoMatchingScript, i, fmt.Sprintf(
			"no derivation record for fingerprint %08x", fingerprint),
			nil)
	}
	return keys, nil
}

func hasDerivedKey(hints []*psbt.Bip32Derivation, pub []byte) bool {
	for _, hint := range hints {
		if bytes.Equal(compressed(hint.PubKey), pub) {
			return true
		}
	}
	return false
}

// compressed returns the compressed form of a serialized key, or the input
// unchanged if it does not parse.
func compressed(pub []byte) []byte {
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return pub
	}
	return key.SerializeCompressed()
}

// SignInput signs input i with every key of signer that belongs to the
// input's spending template. Signatures are deterministic (RFC6979), so
// signing twice records the same bytes.
func (d *Document) SignInput(i int, signer Signer) error {
	if err := d.checkIndex(i); err != nil {
		return err
	}
	if isFinalized(&d.packet.Inputs[i]) {
		return psbtError(ErrInputAlreadyFinalized, i,
			"input is finalized", nil)
	}

	ctx, err := d.spendContext(i)
	if err != nil {
		return err
	}

	keys, err := signer.signingKeys(d, i)
	if err != nil {
		return err
	}

	hashType := d.sighashType(i)
	var sigs []*psbt.PartialSig
	for _, key := range keys {
		pub := ctx.matchKey(key.PubKey().SerializeCompressed())
		if pub == nil {
			continue
		}

		digest, err := d.digest(ctx, hashType)
		if err != nil {
			return psbtError(ErrInvalidScript, i,
				"cannot compute signature hash", err)
		}

		sig := ecdsa.Sign(key, digest)
		sigs = append(sigs, &psbt.PartialSig{
			PubKey:    pub,
			Signature: append(sig.Serialize(), byte(hashType)),
		})
	}

	if len(sigs) == 0 {
		return psbtError(ErrNoMatchingScript, i,
			"no signing key belongs to the input's script", nil)
	}

	in := &d.packet.Inputs[i]
	for _, sig := range sigs {
		in.PartialSigs = addPartialSig(in.PartialSigs, sig)
		log.Debugf("Signed input %d with key %x", i, sig.PubKey)
	}

	return nil
}

// SignAllInputs signs every input signer has a key for and returns the
// signed indices. Inputs the signer has no key for are skipped.
func (d *Document) SignAllInputs(signer Signer) ([]int, error) {
	var signed []int
	for i := range d.packet.Inputs {
		if isFinalized(&d.packet.Inputs[i]) {
			continue
		}

		err := d.SignInput(i, signer)
		switch {
		case err == nil:
			signed = append(signed, i)

		case IsError(err, ErrNoMatchingScript),
			IsError(err, ErrUnsupportedScript):

			log.Tracef("Skipping input %d: %v", i, err)

		default:
			return signed, err
		}
	}

	if len(signed) == 0 {
		return nil, psbtErrorf(ErrNoMatchingScript,
			"no input can be signed by the given signer")
	}
	return signed, nil
}

// addPartialSig inserts sig keeping the slice sorted by public key. A
// signature already recorded under the same key is replaced.
func addPartialSig(sigs []*psbt.PartialSig,
	sig *psbt.PartialSig) []*psbt.PartialSig {

	for _, existing := range sigs {
		if bytes.Equal(existing.PubKey, sig.PubKey) {
			existing.Signature = sig.Signature
			return sigs
		}
	}

	sigs = append(sigs, sig)
	sort.Sort(psbt.PartialSigSorter(sigs))
	return sigs
}
