// Package tx defines the canonical transaction encoding of the Catalyst
// chain and the domain-separated Schnorr scheme that signs it. Every byte
// emitted here is part of the wire contract; none of it may drift.
package tx

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/catalyst-network/catalyst-wallet/codec"
)

// Wire constants, ASCII bytes.
const (
	wireMagic = "CTX1"
	sigDomain = "CATALYST_SIG_V1"
)

// Type tags. Only the non-confidential transfer is in protocol today.
const (
	TypeNonConfidentialTransfer uint8 = 0x00
)

// amountTagPlain marks a cleartext i64 amount inside an entry.
const amountTagPlain uint8 = 0x00

const (
	// MaxDataLen bounds the free-form data field.
	MaxDataLen = 60
	// SignatureSize is the fixed Schnorr signature length.
	SignatureSize = 64
	// maxLockTime is the exclusive upper bound of the u32 lock_time field.
	maxLockTime = int64(1) << 32
)

var (
	ErrDataTooLong            = errors.New("transaction data exceeds 60 bytes")
	ErrAmountNonPositive      = errors.New("transfer amount must be positive")
	ErrSignatureLengthInvalid = errors.New("signature must be 64 bytes")
)

// Entry is one ledger posting: a signed amount against an address. A
// transfer debits the sender (negative) and credits the recipient (positive).
type Entry struct {
	Address [32]byte
	Amount  int64
}

// Core is the signed portion of a transaction.
type Core struct {
	Type     uint8
	Entries  []Entry
	Nonce    uint64
	LockTime uint32
	Fees     uint64
	Data     []byte
}

// Tx is the broadcast envelope: the core plus signature and timestamp.
type Tx struct {
	Core        Core
	Signature   [SignatureSize]byte
	TimestampMS uint64
}

func encodeEntry(e Entry) ([]byte, error) {
	tag, err := codec.U8(int64(amountTagPlain))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 32+1+8)
	out = append(out, e.Address[:]...)
	out = append(out, tag...)
	out = append(out, codec.I64LE(e.Amount)...)
	return out, nil
}

// SerializeCore renders the canonical core image:
//
//	u8(type) || vec(entries) || u64_le(nonce) || u32_le(lock_time) ||
//	u64_le(fees) || bytes_vec(data)
func SerializeCore(c *Core) ([]byte, error) {
	if len(c.Data) > MaxDataLen {
		return nil, errors.Wrapf(ErrDataTooLong, "%d bytes", len(c.Data))
	}
	tag, err := codec.U8(int64(c.Type))
	if err != nil {
		return nil, err
	}
	entries := make([][]byte, 0, len(c.Entries))
	for _, e := range c.Entries {
		enc, err := encodeEntry(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, enc)
	}
	entriesBz, err := codec.Vec(entries)
	if err != nil {
		return nil, err
	}
	lockBz, err := codec.U32LE(int64(c.LockTime))
	if err != nil {
		return nil, err
	}
	dataBz, err := codec.BytesVec(c.Data)
	if err != nil {
		return nil, err
	}

	out := tag
	out = append(out, entriesBz...)
	out = append(out, codec.U64LE(c.Nonce)...)
	out = append(out, lockBz...)
	out = append(out, codec.U64LE(c.Fees)...)
	out = append(out, dataBz...)
	return out, nil
}

// SerializeEnvelope renders core || bytes_vec(signature) || u64_le(timestamp).
func SerializeEnvelope(t *Tx) ([]byte, error) {
	coreBz, err := SerializeCore(&t.Core)
	if err != nil {
		return nil, err
	}
	sigBz, err := codec.BytesVec(t.Signature[:])
	if err != nil {
		return nil, err
	}
	out := coreBz
	out = append(out, sigBz...)
	out = append(out, codec.U64LE(t.TimestampMS)...)
	return out, nil
}

// WireBytes renders the broadcast image: WIRE_MAGIC || envelope.
func WireBytes(t *Tx) ([]byte, error) {
	envelope, err := SerializeEnvelope(t)
	if err != nil {
		return nil, err
	}
	return append([]byte(wireMagic), envelope...), nil
}

// ID computes the canonical transaction id: the first 32 bytes of
// BLAKE2b-512 over the wire image, in Hex-32 form.
func ID(t *Tx) (string, error) {
	wire, err := WireBytes(t)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum512(wire)
	var id [32]byte
	copy(id[:], sum[:32])
	return codec.FormatHex32(id), nil
}

// SigningPayload renders the byte string handed to the signer. Unlike the
// wire image it binds the chain: SIG_DOMAIN || u64_le(chain_id) ||
// genesis_hash || core || u64_le(timestamp).
func SigningPayload(c *Core, chainID uint64, genesisHash [32]byte, timestampMS uint64) ([]byte, error) {
	coreBz, err := SerializeCore(c)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sigDomain)+8+32+len(coreBz)+8)
	out = append(out, sigDomain...)
	out = append(out, codec.U64LE(chainID)...)
	out = append(out, genesisHash[:]...)
	out = append(out, coreBz...)
	out = append(out, codec.U64LE(timestampMS)...)
	return out, nil
}

// ClampLockTime validates a unix-seconds lock time against the u32 wire
// field. Times beyond the field's reach are an encoding error, not a clamp.
func ClampLockTime(unixSeconds int64) (uint32, error) {
	if unixSeconds < 0 || unixSeconds >= maxLockTime {
		return 0, errors.Wrapf(codec.ErrEncodeRange, "lock_time %d", unixSeconds)
	}
	return uint32(unixSeconds), nil
}

// BuildTransfer constructs the two-entry transfer core. Self-transfers are
// legal; non-positive amounts are not.
func BuildTransfer(from, to [32]byte, amount int64, nonce uint64, fees uint64, lockTime uint32) (*Core, error) {
	if amount <= 0 {
		return nil, errors.Wrapf(ErrAmountNonPositive, "amount %d", amount)
	}
	return &Core{
		Type: TypeNonConfidentialTransfer,
		Entries: []Entry{
			{Address: from, Amount: -amount},
			{Address: to, Amount: amount},
		},
		Nonce:    nonce,
		LockTime: lockTime,
		Fees:     fees,
		Data:     nil,
	}, nil
}

// Seal attaches a signature to a core, checking the fixed length.
func Seal(c *Core, signature []byte, timestampMS uint64) (*Tx, error) {
	if len(signature) != SignatureSize {
		return nil, errors.Wrapf(ErrSignatureLengthInvalid, "%d bytes", len(signature))
	}
	t := &Tx{Core: *c, TimestampMS: timestampMS}
	copy(t.Signature[:], signature)
	return t, nil
}
