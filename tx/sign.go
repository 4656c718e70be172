package tx

import (
	"crypto/rand"

	"github.com/gtank/ristretto255"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/catalyst-network/catalyst-wallet/keys"
)

// Sign produces a 64-byte Schnorr signature R || s over message. The
// challenge binds the public key, so a signature cannot be replayed under a
// substituted key. The per-signature scalar k is sampled fresh from the
// system RNG on every call.
func Sign(priv keys.PrivateKey, message []byte) ([]byte, error) {
	x := priv.Scalar()
	pubBytes := priv.PublicBytes()

	var kBytes [32]byte
	if _, err := rand.Read(kBytes[:]); err != nil {
		return nil, errors.Wrap(err, "nonce sampling")
	}
	var wide [64]byte
	copy(wide[:32], kBytes[:])
	k := ristretto255.NewScalar().FromUniformBytes(wide[:])

	rBytes := ristretto255.NewElement().ScalarBaseMult(k).Encode(nil)

	e := challenge(rBytes, pubBytes[:], message)

	// s = k + e·x mod L
	s := ristretto255.NewScalar().Multiply(e, x)
	s = s.Add(s, k)

	sig := make([]byte, 0, SignatureSize)
	sig = append(sig, rBytes...)
	sig = append(sig, s.Encode(nil)...)
	return sig, nil
}

// Verify checks a signature produced by Sign against the compressed public
// key bytes: s·G == R + e·P.
func Verify(pubBytes [32]byte, message, signature []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}
	r := ristretto255.NewElement()
	if err := r.Decode(signature[:32]); err != nil {
		return false
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(signature[32:]); err != nil {
		return false
	}
	p := ristretto255.NewElement()
	if err := p.Decode(pubBytes[:]); err != nil {
		return false
	}

	e := challenge(signature[:32], pubBytes[:], message)

	left := ristretto255.NewElement().ScalarBaseMult(s)
	right := ristretto255.NewElement().ScalarMult(e, p)
	right = right.Add(right, r)
	return left.Equal(right) == 1
}

// challenge derives e = LE(BLAKE2b-256(R || P || m)) mod L.
func challenge(rBytes, pubBytes, message []byte) *ristretto255.Scalar {
	h, _ := blake2b.New256(nil)
	h.Write(rBytes)
	h.Write(pubBytes)
	h.Write(message)
	digest := h.Sum(nil)

	var wide [64]byte
	copy(wide[:32], digest)
	return ristretto255.NewScalar().FromUniformBytes(wide[:])
}
