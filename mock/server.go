package main

// Mock Catalyst node for local wallet development. Serves the JSON-RPC
// method set over an in-memory ledger, verifies Schnorr signatures against
// the sender address and applies transfers with strict nonce checking.

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/catalyst-network/catalyst-wallet/codec"
	"github.com/catalyst-network/catalyst-wallet/config"
	"github.com/catalyst-network/catalyst-wallet/tx"
)

type account struct {
	Balance *big.Int
	Nonce   uint64
}

type ledger struct {
	mu       sync.Mutex
	network  config.NetworkConfig
	genesis  [32]byte
	accounts map[string]*account
	receipts map[string]map[string]interface{}
	fee      uint64
}

func newLedger(network config.NetworkConfig) (*ledger, error) {
	genesis, err := codec.ParseHex32(network.GenesisHash)
	if err != nil {
		return nil, err
	}
	return &ledger{
		network:  network,
		genesis:  genesis,
		accounts: make(map[string]*account),
		receipts: make(map[string]map[string]interface{}),
		fee:      3,
	}, nil
}

func (l *ledger) accountFor(address string) *account {
	key := strings.ToLower(address)
	acct, ok := l.accounts[key]
	if !ok {
		acct = &account{Balance: new(big.Int)}
		l.accounts[key] = acct
	}
	return acct
}

// fund seeds an address, the mock's faucet.
func (l *ledger) fund(address string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accountFor(address).Balance.Add(l.accountFor(address).Balance, big.NewInt(amount))
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (l *ledger) apply(wireHex string) (string, *rpcError) {
	wire, err := codec.ParseBytes(wireHex)
	if err != nil {
		return "", &rpcError{Code: -32602, Message: err.Error()}
	}
	parsed, err := tx.ParseWire(wire)
	if err != nil {
		return "", &rpcError{Code: -32602, Message: err.Error()}
	}
	if len(parsed.Core.Entries) != 2 {
		return "", &rpcError{Code: -32602, Message: "expected a two-entry transfer"}
	}

	sender := parsed.Core.Entries[0].Address
	payload, err := tx.SigningPayload(&parsed.Core, l.network.ChainID, l.genesis, parsed.TimestampMS)
	if err != nil {
		return "", &rpcError{Code: -32602, Message: err.Error()}
	}
	if !tx.Verify(sender, payload, parsed.Signature[:]) {
		return "", &rpcError{Code: -32001, Message: "invalid signature"}
	}

	id, err := tx.ID(parsed)
	if err != nil {
		return "", &rpcError{Code: -32603, Message: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	senderHex := codec.FormatHex32(sender)
	acct := l.accountFor(senderHex)
	if parsed.Core.Nonce != acct.Nonce+1 {
		return "", &rpcError{Code: -32002,
			Message: fmt.Sprintf("nonce mismatch: expected %d, got %d", acct.Nonce+1, parsed.Core.Nonce)}
	}

	amount := parsed.Core.Entries[1].Amount
	need := new(big.Int).SetUint64(parsed.Core.Fees)
	recipientHex := codec.FormatHex32(parsed.Core.Entries[1].Address)
	if recipientHex != senderHex {
		need.Add(need, big.NewInt(amount))
	}
	if acct.Balance.Cmp(need) < 0 {
		return "", &rpcError{Code: -32003, Message: "insufficient funds"}
	}

	acct.Balance.Sub(acct.Balance, need)
	acct.Nonce = parsed.Core.Nonce
	if recipientHex != senderHex {
		recipient := l.accountFor(recipientHex)
		recipient.Balance.Add(recipient.Balance, big.NewInt(amount))
	}

	l.receipts[id] = map[string]interface{}{
		"status":    "applied",
		"tx_id":     id,
		"timestamp": time.Now().UnixMilli(),
	}
	return id, nil
}

func (l *ledger) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var result interface{}
	var errObj *rpcError

	switch req.Method {
	case "catalyst_getSyncInfo":
		result = map[string]string{
			"chain_id":     fmt.Sprintf("%d", l.network.ChainID),
			"network_id":   l.network.NetworkID,
			"genesis_hash": l.network.GenesisHash,
		}
	case "catalyst_chainId":
		result = fmt.Sprintf("0x%x", l.network.ChainID)
	case "catalyst_networkId":
		result = l.network.NetworkID
	case "catalyst_genesisHash":
		result = l.network.GenesisHash
	case "catalyst_getBalance":
		address := stringParam(req.Params, 0)
		l.mu.Lock()
		result = l.accountFor(address).Balance.String()
		l.mu.Unlock()
	case "catalyst_getNonce":
		address := stringParam(req.Params, 0)
		l.mu.Lock()
		result = l.accountFor(address).Nonce
		l.mu.Unlock()
	case "catalyst_estimateFee":
		result = fmt.Sprintf("%d", l.fee)
	case "catalyst_sendRawTransaction":
		result, errObj = l.apply(stringParam(req.Params, 0))
	case "catalyst_getTransactionReceipt":
		id := stringParam(req.Params, 0)
		l.mu.Lock()
		if receipt, ok := l.receipts[id]; ok {
			result = receipt
		}
		l.mu.Unlock()
	case "catalyst_getTransactionsByAddress":
		result = []interface{}{}
	default:
		errObj = &rpcError{Code: -32601, Message: "method not found"}
	}

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if errObj != nil {
		resp["error"] = errObj
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func stringParam(params []json.RawMessage, index int) string {
	if index >= len(params) {
		return ""
	}
	var out string
	_ = json.Unmarshal(params[index], &out)
	return out
}

func main() {
	addr := flag.String("addr", ":8645", "listen address")
	fundAddr := flag.String("fund", "", "address to pre-fund")
	fundAmount := flag.Int64("fund-amount", 1_000_000, "pre-funded balance")
	flag.Parse()

	l, err := newLedger(config.DefaultNetwork())
	if err != nil {
		fmt.Println("mock node setup failed:", err)
		return
	}
	if *fundAddr != "" {
		l.fund(*fundAddr, *fundAmount)
		fmt.Printf("funded %s with %d\n", *fundAddr, *fundAmount)
	}

	fmt.Printf("mock catalyst node listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, http.HandlerFunc(l.handle)); err != nil {
		fmt.Println("mock node stopped:", err)
	}
}
