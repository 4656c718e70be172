package store

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// MaxTxRecords caps the tracked-transaction list per address.
const MaxTxRecords = 50

// TxRecord is one tracked outgoing transaction.
type TxRecord struct {
	LocalID       string          `json:"local_id"`
	ServerID      string          `json:"server_id,omitempty"`
	Status        string          `json:"status"`
	LastReceipt   json.RawMessage `json:"last_receipt,omitempty"`
	LastCheckedMS int64           `json:"last_checked_ms"`
	CreatedMS     int64           `json:"created_ms"`
}

// LoadTxRecords reads the tracked list for an address, empty when absent.
func LoadTxRecords(kv KV, networkID, address string) ([]TxRecord, error) {
	raw, ok, err := kv.Get(TxRecordsKey(networkID, address))
	if err != nil {
		return nil, errors.Wrap(err, "load tx records")
	}
	if !ok {
		return nil, nil
	}
	var records []TxRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.Wrap(err, "tx records payload")
	}
	return records, nil
}

// SaveTxRecords persists the list, newest first, truncated to MaxTxRecords.
func SaveTxRecords(kv KV, networkID, address string, records []TxRecord) error {
	sorted := append([]TxRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedMS > sorted[j].CreatedMS
	})
	if len(sorted) > MaxTxRecords {
		sorted = sorted[:MaxTxRecords]
	}
	raw, err := json.Marshal(sorted)
	if err != nil {
		return errors.Wrap(err, "tx records payload")
	}
	return errors.Wrap(kv.Put(TxRecordsKey(networkID, address), raw), "save tx records")
}

// SaveHistory caches the most recent node-reported history page.
func SaveHistory(kv KV, networkID, address string, page json.RawMessage) error {
	return errors.Wrap(kv.Put(HistoryKey(networkID, address), page), "save history")
}

// LoadHistory returns the cached history page, nil when absent.
func LoadHistory(kv KV, networkID, address string) (json.RawMessage, error) {
	raw, ok, err := kv.Get(HistoryKey(networkID, address))
	if err != nil || !ok {
		return nil, errors.Wrap(err, "load history")
	}
	return raw, nil
}

// SavePreferredRPCURL remembers the endpoint that last served a broadcast.
func SavePreferredRPCURL(kv KV, url string) error {
	return kv.Put(RPCURLKey(), []byte(url))
}

// PreferredRPCURL returns the remembered endpoint, empty when unset.
func PreferredRPCURL(kv KV) (string, error) {
	raw, ok, err := kv.Get(RPCURLKey())
	if err != nil || !ok {
		return "", err
	}
	return string(raw), nil
}
