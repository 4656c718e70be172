package keys

import (
	"encoding/binary"

	"github.com/pkg/errors"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

// Domain separation tags for the two derivation stages.
const (
	dstMaster  = "CATALYST_WALLET_V1_MASTER"
	dstAccount = "CATALYST_WALLET_V1_ACCOUNT"
)

// SeedSize is the BIP-39 seed length in bytes.
const SeedSize = 64

var ErrBadMnemonic = errors.New("invalid BIP-39 mnemonic")

// SeedFromMnemonic validates the mnemonic checksum and stretches it into the
// 64-byte BIP-39 seed. The passphrase may be empty.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrBadMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, errors.Wrap(ErrBadMnemonic, err.Error())
	}
	return seed, nil
}

// NewMnemonic generates a fresh recovery phrase from the given entropy size
// in bits (128 for 12 words, 256 for 24).
func NewMnemonic(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// MasterFromSeed derives the 64-byte master material from a BIP-39 seed.
func MasterFromSeed(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, errors.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	sum := blake2b.Sum512(append([]byte(dstMaster), seed...))
	return sum[:], nil
}

// DeriveAccountKey derives the private key for account index i. Derivation is
// pure: the same seed and index always yield the same key.
func DeriveAccountKey(seed []byte, index uint32) (PrivateKey, error) {
	master, err := MasterFromSeed(seed)
	if err != nil {
		return PrivateKey{}, err
	}
	ikm := make([]byte, 0, len(dstAccount)+len(master)+4)
	ikm = append(ikm, dstAccount...)
	ikm = append(ikm, master...)
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)
	ikm = append(ikm, idx[:]...)

	sum := blake2b.Sum512(ikm)
	var key PrivateKey
	copy(key[:], sum[:32])
	return key, nil
}

// DeriveAccountAddress is a convenience wrapper returning the Hex-32 address
// for account index i.
func DeriveAccountAddress(seed []byte, index uint32) (string, error) {
	key, err := DeriveAccountKey(seed, index)
	if err != nil {
		return "", err
	}
	return key.Address(), nil
}
