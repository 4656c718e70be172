package codec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrHexFormat   = errors.New("invalid 0x-prefixed hex string")
	ErrHex32Shape  = errors.New("value is not 32 bytes of lowercase hex")
	ErrEncodeRange = errors.New("integer out of encodable range")
)

// Hex32Len is the canonical string length of a 32-byte hex value, prefix included.
const Hex32Len = 2 + 64

// ParseHex32 decodes a 0x-prefixed, 64-digit hex string into its 32 bytes.
// Uppercase digits are accepted and lowered; anything else is rejected.
func ParseHex32(s string) ([32]byte, error) {
	var out [32]byte
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return out, errors.Wrapf(ErrHexFormat, "missing 0x prefix in %q", s)
	}
	body := strings.ToLower(s[2:])
	if len(body) != 64 {
		return out, errors.Wrapf(ErrHex32Shape, "got %d hex digits, want 64", len(body))
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return out, errors.Wrap(ErrHex32Shape, err.Error())
	}
	copy(out[:], raw)
	return out, nil
}

// FormatHex32 renders 32 bytes in the canonical lowercase 0x form.
func FormatHex32(b [32]byte) string {
	return "0x" + hex.EncodeToString(b[:])
}

// FormatBytes renders an arbitrary byte slice as lowercase 0x hex.
func FormatBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// ParseBytes decodes a 0x-prefixed hex string of any even length.
func ParseBytes(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, errors.Wrapf(ErrHexFormat, "missing 0x prefix in %q", s)
	}
	raw, err := hex.DecodeString(strings.ToLower(s[2:]))
	if err != nil {
		return nil, errors.Wrap(ErrHexFormat, err.Error())
	}
	return raw, nil
}

func U8(v int64) ([]byte, error) {
	if v < 0 || v > 0xff {
		return nil, errors.Wrapf(ErrEncodeRange, "u8 value %d", v)
	}
	return []byte{byte(v)}, nil
}

func U32LE(v int64) ([]byte, error) {
	if v < 0 || v > 0xffffffff {
		return nil, errors.Wrapf(ErrEncodeRange, "u32 value %d", v)
	}
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(v))
	return out, nil
}

func U64LE(v uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)
	return out
}

// I64LE encodes a signed 64-bit integer as two's-complement little-endian.
func I64LE(v int64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(v))
	return out
}

// Vec encodes a count-prefixed vector: u32_le(len(items)) || concat(items).
func Vec(items [][]byte) ([]byte, error) {
	prefix, err := U32LE(int64(len(items)))
	if err != nil {
		return nil, err
	}
	out := prefix
	for _, item := range items {
		out = append(out, item...)
	}
	return out, nil
}

// BytesVec encodes a length-prefixed byte string: u32_le(len(b)) || b.
func BytesVec(b []byte) ([]byte, error) {
	prefix, err := U32LE(int64(len(b)))
	if err != nil {
		return nil, err
	}
	return append(prefix, b...), nil
}

// IsHex32 reports whether s already is a canonical lowercase Hex-32 string.
func IsHex32(s string) bool {
	if len(s) != Hex32Len || s[:2] != "0x" {
		return false
	}
	for _, c := range s[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// NormalizeHex32 parses and re-renders s, yielding the canonical lowercase form.
func NormalizeHex32(s string) (string, error) {
	b, err := ParseHex32(s)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", s, err)
	}
	return FormatHex32(b), nil
}
