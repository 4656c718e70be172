package store

import "strings"

// Well-known storage keys. The per-address keys scope records to a network
// so switching networks never mixes histories.
const (
	vaultKey        = "catalyst_wallet_vault_v1"
	rpcURLKey       = "catalyst_wallet_rpc_url"
	txRecordsPrefix = "catalyst_wallet_txs_v1"
	historyPrefix   = "catalyst_wallet_chain_history_v1"
)

func VaultKey() string {
	return vaultKey
}

func RPCURLKey() string {
	return rpcURLKey
}

func TxRecordsKey(networkID, address string) string {
	return txRecordsPrefix + ":" + networkID + ":" + strings.ToLower(address)
}

func HistoryKey(networkID, address string) string {
	return historyPrefix + ":" + networkID + ":" + strings.ToLower(address)
}
