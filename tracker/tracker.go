// Package tracker polls the chain for receipts of submitted transactions
// until they reach a terminal state.
package tracker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/catalyst-network/catalyst-wallet/client"
	"github.com/catalyst-network/catalyst-wallet/metrics"
	"github.com/catalyst-network/catalyst-wallet/store"
)

// PollInterval is the receipt polling period while the wallet is unlocked.
const PollInterval = 2500 * time.Millisecond

// Transaction states. StatusApplied and StatusDropped are terminal: entries
// in those states are never polled again. The others are re-polled.
const (
	StatusApplied  = "applied"
	StatusDropped  = "dropped"
	StatusNotFound = "not_found"
	StatusPending  = "pending"
	StatusError    = "error"
)

// ReceiptSource is the slice of the RPC surface the tracker needs.
type ReceiptSource interface {
	GetTransactionReceipt(ctx context.Context, id string) (*client.Receipt, error)
}

// Tracker watches the submitted transactions of one address on one network.
type Tracker struct {
	log       *zap.Logger
	kv        store.KV
	src       ReceiptSource
	networkID string
	address   string

	// onApplied fires when an entry transitions into StatusApplied; the
	// owner hooks balance, nonce and history refresh here.
	onApplied func(rec store.TxRecord)

	mu      sync.Mutex
	records []store.TxRecord
}

// New loads the persisted record list for the address and resumes tracking.
func New(log *zap.Logger, kv store.KV, src ReceiptSource, networkID, address string, onApplied func(store.TxRecord)) (*Tracker, error) {
	records, err := store.LoadTxRecords(kv, networkID, address)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		log:       log,
		kv:        kv,
		src:       src,
		networkID: networkID,
		address:   address,
		onApplied: onApplied,
		records:   records,
	}, nil
}

// Track registers a freshly broadcast transaction.
func (t *Tracker) Track(localID, serverID string) error {
	t.mu.Lock()
	t.records = append(t.records, store.TxRecord{
		LocalID:   localID,
		ServerID:  serverID,
		Status:    StatusPending,
		CreatedMS: time.Now().UnixMilli(),
	})
	t.mu.Unlock()
	return t.persist()
}

// Records returns a snapshot of the tracked list.
func (t *Tracker) Records() []store.TxRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]store.TxRecord, len(t.records))
	copy(out, t.records)
	return out
}

func isTerminal(status string) bool {
	return status == StatusApplied || status == StatusDropped
}

// Run polls every PollInterval until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick performs one polling pass: at most one receipt lookup per pending
// entry. Timeouts are transient and retried on the next tick.
func (t *Tracker) Tick(ctx context.Context) {
	pending := t.pendingIDs()
	for _, item := range pending {
		receipt, err := t.src.GetTransactionReceipt(ctx, item.id)
		metrics.ReceiptPolls.Inc()
		if err != nil {
			if errors.Is(err, client.ErrTimeout) || errors.Is(err, client.ErrUnreachable) {
				continue
			}
			t.log.Warn("receipt poll failed",
				zap.String("tx", item.id),
				zap.Error(err))
			t.update(item.localID, StatusError, json.RawMessage(mustJSONString(err.Error())))
			continue
		}

		status := StatusNotFound
		var payload json.RawMessage
		if receipt != nil {
			payload = receipt.Raw
			if s := receipt.Status(); s != "" {
				status = s
			}
		}
		t.update(item.localID, status, payload)
	}
}

type pollItem struct {
	localID string
	id      string
}

func (t *Tracker) pendingIDs() []pollItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []pollItem
	for _, rec := range t.records {
		if isTerminal(rec.Status) {
			continue
		}
		id := rec.ServerID
		if id == "" {
			id = rec.LocalID
		}
		if id == "" {
			continue
		}
		out = append(out, pollItem{localID: rec.LocalID, id: id})
	}
	return out
}

func (t *Tracker) update(localID, status string, payload json.RawMessage) {
	var applied *store.TxRecord

	t.mu.Lock()
	for i := range t.records {
		if t.records[i].LocalID != localID {
			continue
		}
		transitioned := t.records[i].Status != status
		t.records[i].Status = status
		t.records[i].LastReceipt = payload
		t.records[i].LastCheckedMS = time.Now().UnixMilli()
		if transitioned && status == StatusApplied {
			rec := t.records[i]
			applied = &rec
		}
		break
	}
	t.mu.Unlock()

	if err := t.persist(); err != nil {
		t.log.Warn("tracked list persistence failed", zap.Error(err))
	}
	if applied != nil && t.onApplied != nil {
		t.onApplied(*applied)
	}
}

func (t *Tracker) persist() error {
	t.mu.Lock()
	records := make([]store.TxRecord, len(t.records))
	copy(records, t.records)
	t.mu.Unlock()
	return store.SaveTxRecords(t.kv, t.networkID, t.address, records)
}

func mustJSONString(s string) string {
	raw, err := json.Marshal(s)
	if err != nil {
		return `"receipt poll error"`
	}
	return string(raw)
}
