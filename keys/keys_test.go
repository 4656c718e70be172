package keys

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// Stretched BIP-39 seed of testMnemonic with an empty passphrase.
const testSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc1" +
	"9a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

func testSeed(t *testing.T) []byte {
	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)
	return seed
}

func TestSeedFromMnemonic(t *testing.T) {
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, testSeedHex, hex.EncodeToString(seed))
}

func TestSeedFromMnemonicRejectsGarbage(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
	}{
		{"empty", ""},
		{"wrong words", "zzzz yyyy xxxx"},
		{"bad checksum", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SeedFromMnemonic(tt.mnemonic, "")
			assert.ErrorIs(t, err, ErrBadMnemonic)
		})
	}
}

func TestDeriveAccountKeyVectors(t *testing.T) {
	seed := testSeed(t)

	tests := []struct {
		index   uint32
		privHex string
		address string
	}{
		{0,
			"0xc1e630329501cb23dbc1ca2bce49476af92520fb11934d2e965a50320a683190",
			"0xc662aa70c1eefb5153424700ef9589b11ad7dda52680d782aff33ad1308b0123"},
		{1,
			"0x678e5743f7c4fa3fd795560b6c842311d11ceb01a1197c344ef4978309ee0a2f",
			"0xa42ca3d9469fc5f920c880a8a45b86a440e8625ee834822f01e70c9f1e16ac5f"},
	}

	for _, tt := range tests {
		key, err := DeriveAccountKey(seed, tt.index)
		require.NoError(t, err)
		assert.Equal(t, tt.privHex, key.Hex())
		assert.Equal(t, tt.address, key.Address())

		addr, err := DeriveAccountAddress(seed, tt.index)
		require.NoError(t, err)
		assert.Equal(t, tt.address, addr)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	seed := testSeed(t)
	a, err := DeriveAccountKey(seed, 7)
	require.NoError(t, err)
	b, err := DeriveAccountKey(seed, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveAccountKey(seed, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDeriveRejectsShortSeed(t *testing.T) {
	_, err := DeriveAccountKey([]byte{0x01, 0x02}, 0)
	assert.Error(t, err)
	_, err = MasterFromSeed(nil)
	assert.Error(t, err)
}

func TestAddressOfFixedKey(t *testing.T) {
	var raw [32]byte
	for i := range raw {
		raw[i] = 0x11
	}
	key := PrivateKey(raw)
	assert.Equal(t, "0x108e8d1590f8a01b7c61940faa56371db6742b5de8c9a3e29b1e9f3eafac6e79", key.Address())
}

func TestPrivateKeyFromHex(t *testing.T) {
	key, err := PrivateKeyFromHex("0x" + strings.Repeat("11", 32))
	require.NoError(t, err)
	assert.Equal(t, byte(0x11), key[0])

	_, err = PrivateKeyFromHex("not hex")
	assert.Error(t, err)
}

func TestZeroWipes(t *testing.T) {
	key, err := DeriveAccountKey(testSeed(t), 0)
	require.NoError(t, err)
	key.Zero()
	assert.Equal(t, PrivateKey{}, key)
}
