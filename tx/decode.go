package tx

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var ErrMalformedWire = errors.New("malformed wire image")

type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, errors.Wrapf(ErrMalformedWire, "truncated at offset %d", r.off)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ParseWire decodes a broadcast image back into a transaction. It is the
// strict inverse of WireBytes: trailing bytes and oversize fields are errors.
func ParseWire(wire []byte) (*Tx, error) {
	r := &reader{buf: wire}

	magic, err := r.take(len(wireMagic))
	if err != nil {
		return nil, err
	}
	if string(magic) != wireMagic {
		return nil, errors.Wrap(ErrMalformedWire, "bad magic")
	}

	var out Tx
	typeTag, err := r.u8()
	if err != nil {
		return nil, err
	}
	out.Core.Type = typeTag

	entryCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < entryCount; i++ {
		addr, err := r.take(32)
		if err != nil {
			return nil, err
		}
		amountTag, err := r.u8()
		if err != nil {
			return nil, err
		}
		if amountTag != amountTagPlain {
			return nil, errors.Wrapf(ErrMalformedWire, "amount tag %d", amountTag)
		}
		amount, err := r.u64()
		if err != nil {
			return nil, err
		}
		var entry Entry
		copy(entry.Address[:], addr)
		entry.Amount = int64(amount)
		out.Core.Entries = append(out.Core.Entries, entry)
	}

	if out.Core.Nonce, err = r.u64(); err != nil {
		return nil, err
	}
	if out.Core.LockTime, err = r.u32(); err != nil {
		return nil, err
	}
	if out.Core.Fees, err = r.u64(); err != nil {
		return nil, err
	}

	dataLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	if dataLen > MaxDataLen {
		return nil, errors.Wrapf(ErrDataTooLong, "%d bytes", dataLen)
	}
	if dataLen > 0 {
		data, err := r.take(int(dataLen))
		if err != nil {
			return nil, err
		}
		out.Core.Data = append([]byte(nil), data...)
	}

	sigLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	if sigLen != SignatureSize {
		return nil, errors.Wrapf(ErrSignatureLengthInvalid, "%d bytes", sigLen)
	}
	sig, err := r.take(SignatureSize)
	if err != nil {
		return nil, err
	}
	copy(out.Signature[:], sig)

	if out.TimestampMS, err = r.u64(); err != nil {
		return nil, err
	}
	if r.off != len(wire) {
		return nil, errors.Wrapf(ErrMalformedWire, "%d trailing bytes", len(wire)-r.off)
	}
	return &out, nil
}
