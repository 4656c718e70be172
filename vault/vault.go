// Package vault implements password-based authenticated encryption for the
// wallet's secret blob. KDF parameters are stored alongside the ciphertext so
// they can be raised later without breaking existing records.
package vault

import (
	"crypto/rand"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/catalyst-network/catalyst-wallet/codec"
)

const (
	recordVersion = 1
	kdfName       = "scrypt"
	cipherName    = "xchacha20-poly1305"

	saltSize = 16

	defaultN = 1 << 15
	defaultR = 8
	defaultP = 1
	keyLen   = 32
)

var (
	ErrVersionUnsupported = errors.New("unsupported vault record version")
	ErrAlgUnsupported     = errors.New("unsupported vault kdf or cipher")
	ErrAuthFailed         = errors.New("vault authentication failed")
)

type KDFParams struct {
	Name    string `json:"name"`
	N       int    `json:"N"`
	R       int    `json:"r"`
	P       int    `json:"p"`
	SaltHex string `json:"saltHex"`
}

type CipherParams struct {
	Name     string `json:"name"`
	NonceHex string `json:"nonceHex"`
}

// Record is the persisted vault envelope, serialized as JSON.
type Record struct {
	Version       int          `json:"version"`
	KDF           KDFParams    `json:"kdf"`
	Cipher        CipherParams `json:"cipher"`
	CiphertextHex string       `json:"ciphertextHex"`
}

// Create encrypts plaintext under a fresh salt and nonce.
func Create(password string, plaintext []byte) (*Record, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "salt generation")
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "nonce generation")
	}

	key, err := scrypt.Key([]byte(password), salt, defaultN, defaultR, defaultP, keyLen)
	if err != nil {
		return nil, errors.Wrap(err, "scrypt")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return &Record{
		Version: recordVersion,
		KDF: KDFParams{
			Name:    kdfName,
			N:       defaultN,
			R:       defaultR,
			P:       defaultP,
			SaltHex: codec.FormatBytes(salt),
		},
		Cipher: CipherParams{
			Name:     cipherName,
			NonceHex: codec.FormatBytes(nonce),
		},
		CiphertextHex: codec.FormatBytes(ciphertext),
	}, nil
}

// Open re-derives the key from the stored parameters and decrypts. Once the
// hex fields decode, a wrong password and an altered ciphertext, salt or nonce
// are indistinguishable: all yield ErrAuthFailed.
func Open(password string, rec *Record) ([]byte, error) {
	if rec.Version != recordVersion {
		return nil, errors.Wrapf(ErrVersionUnsupported, "version %d", rec.Version)
	}
	if rec.KDF.Name != kdfName {
		return nil, errors.Wrapf(ErrAlgUnsupported, "kdf %q", rec.KDF.Name)
	}
	if rec.Cipher.Name != cipherName {
		return nil, errors.Wrapf(ErrAlgUnsupported, "cipher %q", rec.Cipher.Name)
	}

	salt, err := codec.ParseBytes(rec.KDF.SaltHex)
	if err != nil {
		return nil, err
	}
	nonce, err := codec.ParseBytes(rec.Cipher.NonceHex)
	if err != nil {
		return nil, err
	}
	ciphertext, err := codec.ParseBytes(rec.CiphertextHex)
	if err != nil {
		return nil, err
	}

	key, err := scrypt.Key([]byte(password), salt, rec.KDF.N, rec.KDF.R, rec.KDF.P, keyLen)
	if err != nil {
		return nil, errors.Wrap(err, "scrypt")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrAuthFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Marshal renders the record in its persisted JSON form.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRecord parses a persisted vault record.
func UnmarshalRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "vault record")
	}
	return &rec, nil
}
