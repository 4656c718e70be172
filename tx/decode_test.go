package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWireRoundTrip(t *testing.T) {
	core := fixtureCore()
	core.Data = []byte{0xde, 0xad}

	priv := testKey()
	sig, err := Sign(priv, []byte("payload"))
	require.NoError(t, err)
	sealed, err := Seal(core, sig, fixtureTimestampMS)
	require.NoError(t, err)

	wire, err := WireBytes(sealed)
	require.NoError(t, err)

	parsed, err := ParseWire(wire)
	require.NoError(t, err)
	assert.Equal(t, sealed.Core, parsed.Core)
	assert.Equal(t, sealed.Signature, parsed.Signature)
	assert.Equal(t, sealed.TimestampMS, parsed.TimestampMS)

	// Re-encoding the parse yields identical bytes.
	rewire, err := WireBytes(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, rewire)
}

func TestParseWireRejectsGarbage(t *testing.T) {
	sealed, err := Seal(fixtureCore(), make([]byte, SignatureSize), fixtureTimestampMS)
	require.NoError(t, err)
	wire, err := WireBytes(sealed)
	require.NoError(t, err)

	tests := []struct {
		name string
		wire []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("XXXX"), wire[4:]...)},
		{"truncated", wire[:len(wire)-3]},
		{"trailing bytes", append(append([]byte(nil), wire...), 0x00)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWire(tt.wire)
			assert.Error(t, err)
		})
	}
}

func TestParseWireNegativeAmounts(t *testing.T) {
	sealed, err := Seal(fixtureCore(), make([]byte, SignatureSize), fixtureTimestampMS)
	require.NoError(t, err)
	wire, err := WireBytes(sealed)
	require.NoError(t, err)

	parsed, err := ParseWire(wire)
	require.NoError(t, err)
	assert.Equal(t, int64(-7), parsed.Core.Entries[0].Amount)
	assert.Equal(t, int64(7), parsed.Core.Entries[1].Amount)
}
