// Package chain verifies that an RPC endpoint is serving the network the
// wallet was configured for before any value leaves the door.
package chain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/catalyst-network/catalyst-wallet/client"
)

var ErrMismatch = errors.New("chain identity mismatch")

// Identity is the triple that uniquely names a network.
type Identity struct {
	ChainID     uint64
	NetworkID   string
	GenesisHash string
}

// MismatchError reports which fields of the advertised identity diverged.
type MismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("chain identity mismatch on %s: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// InfoSource is the slice of the RPC surface the guard needs.
type InfoSource interface {
	GetSyncInfo(ctx context.Context) (*client.SyncInfo, error)
	ChainID(ctx context.Context) (string, error)
	NetworkID(ctx context.Context) (string, error)
	GenesisHash(ctx context.Context) (string, error)
}

// Guard caches a successful verification. The flag is advisory: send paths
// re-verify immediately before broadcast regardless.
type Guard struct {
	expected Identity
	verified atomic.Bool
}

func NewGuard(expected Identity) *Guard {
	return &Guard{expected: expected}
}

// Verified reports whether a verification has succeeded during this session.
func (g *Guard) Verified() bool {
	return g.verified.Load()
}

// ParseChainID decodes a chain id advertised as decimal or 0x-prefixed hex.
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasPrefix(s, "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "chain id %q", s)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "chain id %q", s)
	}
	return v, nil
}

// Assert fetches the node's identity and compares it against expectations.
// The single-call getSyncInfo path is preferred; the three separate getters
// are the fallback for older nodes.
func (g *Guard) Assert(ctx context.Context, src InfoSource) error {
	var chainID, networkID, genesisHash string
	if info, err := src.GetSyncInfo(ctx); err == nil {
		chainID, networkID, genesisHash = info.ChainID, info.NetworkID, info.GenesisHash
	} else {
		if chainID, err = src.ChainID(ctx); err != nil {
			return errors.Wrap(err, "chain id")
		}
		if networkID, err = src.NetworkID(ctx); err != nil {
			return errors.Wrap(err, "network id")
		}
		if genesisHash, err = src.GenesisHash(ctx); err != nil {
			return errors.Wrap(err, "genesis hash")
		}
	}

	actualChainID, err := ParseChainID(chainID)
	if err != nil {
		return err
	}
	if actualChainID != g.expected.ChainID {
		return &MismatchError{
			Field:    "chain_id",
			Expected: strconv.FormatUint(g.expected.ChainID, 10),
			Actual:   chainID,
		}
	}
	if !strings.EqualFold(networkID, g.expected.NetworkID) {
		return &MismatchError{
			Field:    "network_id",
			Expected: g.expected.NetworkID,
			Actual:   networkID,
		}
	}
	if !strings.EqualFold(genesisHash, g.expected.GenesisHash) {
		return &MismatchError{
			Field:    "genesis",
			Expected: g.expected.GenesisHash,
			Actual:   genesisHash,
		}
	}
	g.verified.Store(true)
	return nil
}
