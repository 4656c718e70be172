package keys

import (
	"github.com/gtank/ristretto255"

	"github.com/catalyst-network/catalyst-wallet/codec"
)

// PrivateKey is the 32-byte little-endian scalar seed of an account. The
// signing scalar is its value reduced modulo the Ristretto255 group order.
type PrivateKey [32]byte

// PrivateKeyFromHex parses a Hex-32 private key string.
func PrivateKeyFromHex(s string) (PrivateKey, error) {
	b, err := codec.ParseHex32(s)
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey(b), nil
}

// Hex renders the key in canonical lowercase 0x form.
func (k PrivateKey) Hex() string {
	return codec.FormatHex32(k)
}

// Scalar reduces the key bytes modulo the group order L. The 32-byte value is
// widened to 64 bytes before reduction, which leaves values below L unchanged.
func (k PrivateKey) Scalar() *ristretto255.Scalar {
	var wide [64]byte
	copy(wide[:32], k[:])
	return ristretto255.NewScalar().FromUniformBytes(wide[:])
}

// PublicBytes computes the compressed encoding of scalar·G.
func (k PrivateKey) PublicBytes() [32]byte {
	point := ristretto255.NewElement().ScalarBaseMult(k.Scalar())
	var out [32]byte
	copy(out[:], point.Encode(nil))
	return out
}

// Address renders compress(scalar·G) as the canonical Hex-32 account address.
func (k PrivateKey) Address() string {
	return codec.FormatHex32(k.PublicBytes())
}

// Zero wipes the key material in place.
func (k *PrivateKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}
