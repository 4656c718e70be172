package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/catalyst-network/catalyst-wallet/client"
	"github.com/catalyst-network/catalyst-wallet/codec"
	"github.com/catalyst-network/catalyst-wallet/keys"
	"github.com/catalyst-network/catalyst-wallet/metrics"
	"github.com/catalyst-network/catalyst-wallet/store"
	"github.com/catalyst-network/catalyst-wallet/tx"
)

var ErrNonceRace = errors.New("broadcast rejected on nonce grounds")

// FundsError reports a send whose total cost exceeds the balance.
type FundsError struct {
	Have *big.Int
	Need *big.Int
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %s, need %s", e.Have, e.Need)
}

// SendResult describes a broadcast transfer.
type SendResult struct {
	LocalID     string
	ServerID    string
	Nonce       uint64
	Fees        uint64
	TimestampMS uint64
}

// Refresh fetches balance and committed nonce concurrently. The committed
// nonce raises the allocator floor, re-synchronizing after external activity
// on the account.
func (m *Manager) Refresh(ctx context.Context) (*big.Int, uint64, error) {
	if m.data == nil {
		return nil, 0, ErrLocked
	}
	selected, err := m.data.Selected()
	if err != nil {
		return nil, 0, err
	}

	var balance *big.Int
	var committed uint64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = m.rpc.GetBalance(gctx, selected.Address)
		return err
	})
	g.Go(func() error {
		var err error
		committed, err = m.rpc.GetNonce(gctx, selected.Address)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	m.nonces.BumpFloor(selected.Address, committed)
	return balance, committed, nil
}

// Send builds, signs and broadcasts a transfer from the selected account.
// The chain identity is re-verified immediately before every broadcast.
func (m *Manager) Send(ctx context.Context, to string, amount int64) (*SendResult, error) {
	return m.SendWithLockTime(ctx, to, amount, 0)
}

// SendWithLockTime is Send with an explicit unix-seconds lock time.
func (m *Manager) SendWithLockTime(ctx context.Context, to string, amount int64, lockUnixSeconds int64) (*SendResult, error) {
	if m.data == nil {
		return nil, ErrLocked
	}
	lockTime, err := tx.ClampLockTime(lockUnixSeconds)
	if err != nil {
		return nil, err
	}
	selected, err := m.data.Selected()
	if err != nil {
		return nil, err
	}
	priv, err := m.data.PrivateKeyFor(selected.ID)
	if err != nil {
		return nil, err
	}
	return m.send(ctx, selected.Address, priv, to, amount, lockTime, true)
}

func (m *Manager) send(ctx context.Context, fromAddr string, priv keys.PrivateKey, to string, amount int64, lockTime uint32, track bool) (*SendResult, error) {
	if err := m.guard.Assert(ctx, m.rpc); err != nil {
		return nil, err
	}

	toBytes, err := codec.ParseHex32(to)
	if err != nil {
		return nil, errors.Wrap(err, "recipient address")
	}
	fromBytes, err := codec.ParseHex32(fromAddr)
	if err != nil {
		return nil, errors.Wrap(err, "sender address")
	}

	fees, err := m.rpc.EstimateFee(ctx, &client.FeeRequest{
		From:  fromAddr,
		To:    to,
		Value: strconv.FormatInt(amount, 10),
	})
	if err != nil {
		return nil, errors.Wrap(err, "fee estimate")
	}

	if err := m.checkFunds(ctx, fromAddr, to, amount, fees); err != nil {
		return nil, err
	}

	allocated, err := m.nonces.Allocate(ctx, fromAddr)
	if err != nil {
		return nil, err
	}

	core, err := tx.BuildTransfer(fromBytes, toBytes, amount, allocated, fees, lockTime)
	if err != nil {
		return nil, err
	}

	result, err := m.signAndBroadcast(ctx, priv, core)
	if err != nil {
		return nil, err
	}
	result.Nonce = allocated
	result.Fees = fees

	if track && m.tracker != nil {
		if err := m.tracker.Track(result.LocalID, result.ServerID); err != nil {
			m.log.Warn("tracking registration failed", zap.Error(err))
		}
	}
	return result, nil
}

// checkFunds enforces need = amount + fees, or just fees when the transfer
// returns to the sender.
func (m *Manager) checkFunds(ctx context.Context, from, to string, amount int64, fees uint64) error {
	have, err := m.rpc.GetBalance(ctx, from)
	if err != nil {
		return errors.Wrap(err, "balance")
	}
	need := new(big.Int).SetUint64(fees)
	if !strings.EqualFold(from, to) {
		need.Add(need, big.NewInt(amount))
	}
	if have.Cmp(need) < 0 {
		return &FundsError{Have: have, Need: need}
	}
	return nil
}

func (m *Manager) signAndBroadcast(ctx context.Context, priv keys.PrivateKey, core *tx.Core) (*SendResult, error) {
	timestampMS := uint64(time.Now().UnixMilli())
	payload, err := tx.SigningPayload(core, m.network.ChainID, m.genesis, timestampMS)
	if err != nil {
		return nil, err
	}
	signature, err := tx.Sign(priv, payload)
	if err != nil {
		return nil, err
	}
	sealed, err := tx.Seal(core, signature, timestampMS)
	if err != nil {
		return nil, err
	}

	wire, err := tx.WireBytes(sealed)
	if err != nil {
		return nil, err
	}
	localID, err := tx.ID(sealed)
	if err != nil {
		return nil, err
	}

	serverID, err := m.rpc.SendRawTransaction(ctx, codec.FormatBytes(wire))
	if err != nil {
		metrics.Broadcasts.WithLabelValues("error").Inc()
		// External activity may have consumed our nonce; re-floor so the
		// next attempt reads fresh state.
		m.refloorFromChain(ctx, core)
		if isNonceRejection(err) {
			return nil, errors.Wrap(ErrNonceRace, err.Error())
		}
		return nil, err
	}
	metrics.Broadcasts.WithLabelValues("ok").Inc()

	if err := store.SavePreferredRPCURL(m.kv, m.rpc.LastGoodURL()); err != nil {
		m.log.Warn("preferred rpc persistence failed", zap.Error(err))
	}

	m.log.Info("transaction broadcast",
		zap.String("local_id", localID),
		zap.String("server_id", serverID),
		zap.Uint64("nonce", core.Nonce))

	return &SendResult{LocalID: localID, ServerID: serverID, TimestampMS: timestampMS}, nil
}

func (m *Manager) refloorFromChain(ctx context.Context, core *tx.Core) {
	if len(core.Entries) == 0 {
		return
	}
	sender := codec.FormatHex32(core.Entries[0].Address)
	committed, err := m.rpc.GetNonce(ctx, sender)
	if err != nil {
		m.log.Warn("nonce re-floor failed", zap.Error(err))
		return
	}
	m.nonces.BumpFloor(sender, committed)
}

// isNonceRejection classifies a broadcast failure as a nonce race: the node
// understood the transaction and refused it on nonce grounds.
func isNonceRejection(err error) bool {
	var protoErr *client.ProtocolError
	if !errors.As(err, &protoErr) {
		return false
	}
	return strings.Contains(strings.ToLower(protoErr.Message), "nonce")
}

// Faucet sends from a well-known funded key, retrying once with a fresh
// floor when another faucet user races us on the nonce.
func (m *Manager) Faucet(ctx context.Context, faucetPrivHex, to string, amount int64) (*SendResult, error) {
	priv, err := keys.PrivateKeyFromHex(faucetPrivHex)
	if err != nil {
		return nil, err
	}
	fromAddr := priv.Address()

	result, err := m.send(ctx, fromAddr, priv, to, amount, 0, false)
	if err == nil || !errors.Is(err, ErrNonceRace) {
		return result, err
	}

	m.log.Info("faucet nonce race, retrying with fresh floor", zap.String("from", fromAddr))
	return m.send(ctx, fromAddr, priv, to, amount, 0, false)
}

// RefreshHistory pages the node-side history of the selected account and
// caches the newest page.
func (m *Manager) RefreshHistory(ctx context.Context) error {
	if m.data == nil {
		return ErrLocked
	}
	selected, err := m.data.Selected()
	if err != nil {
		return err
	}
	page, err := m.rpc.GetTransactionsByAddress(ctx, selected.Address, nil, store.MaxTxRecords)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return store.SaveHistory(m.kv, m.network.NetworkID, selected.Address, raw)
}

// History returns the cached history page of the selected account, nil when
// nothing has been cached yet.
func (m *Manager) History() ([]client.TxSummary, error) {
	if m.data == nil {
		return nil, ErrLocked
	}
	selected, err := m.data.Selected()
	if err != nil {
		return nil, err
	}
	raw, err := store.LoadHistory(m.kv, m.network.NetworkID, selected.Address)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var page []client.TxSummary
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, errors.Wrap(err, "cached history payload")
	}
	return page, nil
}
