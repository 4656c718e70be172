// Package manager owns the wallet session: the decrypted wallet, the RPC
// client, nonce allocation and receipt tracking. Everything stateful hangs
// off one Manager value; persistence goes through the injected KV.
package manager

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/catalyst-network/catalyst-wallet/chain"
	"github.com/catalyst-network/catalyst-wallet/client"
	"github.com/catalyst-network/catalyst-wallet/codec"
	"github.com/catalyst-network/catalyst-wallet/config"
	"github.com/catalyst-network/catalyst-wallet/nonce"
	"github.com/catalyst-network/catalyst-wallet/store"
	"github.com/catalyst-network/catalyst-wallet/tracker"
	"github.com/catalyst-network/catalyst-wallet/vault"
	"github.com/catalyst-network/catalyst-wallet/wallet"
)

var (
	ErrLocked   = errors.New("wallet is locked")
	ErrNoWallet = errors.New("no wallet in storage")
)

// Manager is the wallet core. Construct with New, then Unlock or one of the
// Init constructors to start a session.
type Manager struct {
	log     *zap.Logger
	kv      store.KV
	rpc     *client.Client
	guard   *chain.Guard
	nonces  *nonce.Allocator
	network config.NetworkConfig
	genesis [32]byte

	// session state, valid while unlocked
	data     *wallet.Data
	password string
	tracker  *tracker.Tracker

	cancelPolling context.CancelFunc
}

func New(log *zap.Logger, kv store.KV, network config.NetworkConfig) (*Manager, error) {
	genesis, err := codec.ParseHex32(network.GenesisHash)
	if err != nil {
		return nil, errors.Wrap(err, "configured genesis hash")
	}

	urls := append([]string(nil), network.RPCURLs...)
	rpc, err := client.New(urls, log)
	if err != nil {
		return nil, err
	}
	if preferred, err := store.PreferredRPCURL(kv); err == nil && preferred != "" {
		rpc.Prefer(preferred)
	}

	m := &Manager{
		log:     log,
		kv:      kv,
		rpc:     rpc,
		network: network,
		genesis: genesis,
		guard: chain.NewGuard(chain.Identity{
			ChainID:     network.ChainID,
			NetworkID:   network.NetworkID,
			GenesisHash: network.GenesisHash,
		}),
	}
	m.nonces = nonce.NewAllocator(rpc)
	return m, nil
}

// RPC exposes the underlying client for read-only use by the CLI.
func (m *Manager) RPC() *client.Client {
	return m.rpc
}

// Unlocked reports whether a session is active.
func (m *Manager) Unlocked() bool {
	return m.data != nil
}

// HasVault reports whether a wallet vault exists in storage.
func (m *Manager) HasVault() (bool, error) {
	_, ok, err := m.kv.Get(store.VaultKey())
	return ok, err
}

// InitFromMnemonic creates a wallet from a recovery phrase, encrypts it and
// starts a session.
func (m *Manager) InitFromMnemonic(ctx context.Context, password, name, mnemonic, passphrase string, initialAccounts uint32) error {
	data, err := wallet.CreateFromMnemonic(name, mnemonic, passphrase, initialAccounts)
	if err != nil {
		return err
	}
	return m.adopt(ctx, data, password)
}

// InitFromPrivateKey imports a bare key into a fresh wallet.
func (m *Manager) InitFromPrivateKey(ctx context.Context, password, name, privHex string) error {
	data, err := wallet.CreateFromPrivateKey(name, privHex)
	if err != nil {
		return err
	}
	return m.adopt(ctx, data, password)
}

func (m *Manager) adopt(ctx context.Context, data *wallet.Data, password string) error {
	m.data = data
	m.password = password
	if err := m.persistWallet(); err != nil {
		m.data, m.password = nil, ""
		return err
	}
	return m.resumeTracking(ctx)
}

// Unlock decrypts the stored vault and starts a session.
func (m *Manager) Unlock(ctx context.Context, password string) error {
	raw, ok, err := m.kv.Get(store.VaultKey())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoWallet
	}
	record, err := vault.UnmarshalRecord(raw)
	if err != nil {
		return err
	}
	plaintext, err := vault.Open(password, record)
	if err != nil {
		return err
	}
	data, err := wallet.ParseAny(plaintext)
	if err != nil {
		return err
	}
	m.data = data
	m.password = password
	return m.resumeTracking(ctx)
}

// Lock drops the session and all decrypted material.
func (m *Manager) Lock() {
	if m.cancelPolling != nil {
		m.cancelPolling()
		m.cancelPolling = nil
	}
	m.data = nil
	m.password = ""
	m.tracker = nil
}

// Wallet returns the live wallet model of the current session.
func (m *Manager) Wallet() (*wallet.Data, error) {
	if m.data == nil {
		return nil, ErrLocked
	}
	return m.data, nil
}

// AddAccount derives the next mnemonic account, persists and re-targets
// tracking to it.
func (m *Manager) AddAccount(ctx context.Context) (*wallet.Account, error) {
	if m.data == nil {
		return nil, ErrLocked
	}
	acct, err := m.data.AddAccount()
	if err != nil {
		return nil, err
	}
	if err := m.persistWallet(); err != nil {
		return nil, err
	}
	return acct, m.resumeTracking(ctx)
}

// SelectAccount switches the selection, persists and re-targets tracking.
func (m *Manager) SelectAccount(ctx context.Context, id string) error {
	if m.data == nil {
		return ErrLocked
	}
	if err := m.data.SelectAccount(id); err != nil {
		return err
	}
	if err := m.persistWallet(); err != nil {
		return err
	}
	return m.resumeTracking(ctx)
}

// persistWallet re-encrypts the wallet under the session password and writes
// it through the store. Called after every wallet mutation.
func (m *Manager) persistWallet() error {
	plaintext, err := m.data.Marshal()
	if err != nil {
		return err
	}
	record, err := vault.Create(m.password, plaintext)
	if err != nil {
		return err
	}
	raw, err := record.Marshal()
	if err != nil {
		return err
	}
	return m.kv.Put(store.VaultKey(), raw)
}

// resumeTracking rebuilds the tracker for the selected account and restarts
// the polling loop.
func (m *Manager) resumeTracking(ctx context.Context) error {
	if m.cancelPolling != nil {
		m.cancelPolling()
		m.cancelPolling = nil
	}
	selected, err := m.data.Selected()
	if err != nil {
		return err
	}
	tr, err := tracker.New(m.log, m.kv, m.rpc, m.network.NetworkID, selected.Address, m.onApplied)
	if err != nil {
		return err
	}
	m.tracker = tr

	pollCtx, cancel := context.WithCancel(ctx)
	m.cancelPolling = cancel
	go tr.Run(pollCtx)
	return nil
}

// onApplied refreshes balances and history once a tracked transaction lands.
func (m *Manager) onApplied(rec store.TxRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
	defer cancel()
	if _, _, err := m.Refresh(ctx); err != nil {
		m.log.Warn("post-apply refresh failed", zap.Error(err))
	}
	if err := m.RefreshHistory(ctx); err != nil {
		m.log.Warn("post-apply history refresh failed", zap.Error(err))
	}
	m.log.Info("transaction applied", zap.String("tx", rec.LocalID))
}

// Tracker exposes the session tracker, nil while locked.
func (m *Manager) Tracker() *tracker.Tracker {
	return m.tracker
}
