package manager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalyst-network/catalyst-wallet/codec"
	"github.com/catalyst-network/catalyst-wallet/config"
	"github.com/catalyst-network/catalyst-wallet/store"
	"github.com/catalyst-network/catalyst-wallet/vault"
	"github.com/catalyst-network/catalyst-wallet/wallet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// fakeNode is a scriptable in-process Catalyst node.
type fakeNode struct {
	mu         sync.Mutex
	chainID    string
	networkID  string
	genesis    string
	balance    string
	nonce      uint64
	fee        string
	broadcasts []string
	sendError  *struct {
		code    int
		message string
	}
	failSendsLeft int
	server        *httptest.Server
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{
		chainID:   "200820092",
		networkID: "catalyst-testnet",
		genesis:   config.DefaultNetwork().GenesisHash,
		balance:   "1000000",
		nonce:     4,
		fee:       "5",
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.server.Close)
	return n
}

func (n *fakeNode) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	n.mu.Lock()
	defer n.mu.Unlock()

	var result interface{}
	var rpcErr map[string]interface{}
	switch req.Method {
	case "catalyst_getSyncInfo":
		result = map[string]string{
			"chain_id":     n.chainID,
			"network_id":   n.networkID,
			"genesis_hash": n.genesis,
		}
	case "catalyst_getBalance":
		result = n.balance
	case "catalyst_getNonce":
		result = n.nonce
	case "catalyst_estimateFee":
		result = n.fee
	case "catalyst_sendRawTransaction":
		if n.failSendsLeft > 0 && n.sendError != nil {
			n.failSendsLeft--
			rpcErr = map[string]interface{}{"code": n.sendError.code, "message": n.sendError.message}
			break
		}
		var wireHex string
		_ = json.Unmarshal(req.Params[0], &wireHex)
		n.broadcasts = append(n.broadcasts, wireHex)
		result = "0x" + strings.Repeat("cd", 32)
	case "catalyst_getTransactionReceipt":
		result = nil
	case "catalyst_getTransactionsByAddress":
		result = []interface{}{
			map[string]interface{}{"id": "0x" + strings.Repeat("ef", 32), "status": "applied", "cycle": 9},
		}
	default:
		rpcErr = map[string]interface{}{"code": -32601, "message": "method not found"}
	}

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) broadcastCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.broadcasts)
}

func newTestManager(t *testing.T, node *fakeNode, kv store.KV) *Manager {
	t.Helper()
	network := config.DefaultNetwork()
	network.RPCURLs = []string{node.server.URL}

	m, err := New(zap.NewNop(), kv, network)
	require.NoError(t, err)
	t.Cleanup(m.Lock)
	return m
}

func unlockedManager(t *testing.T, node *fakeNode) *Manager {
	t.Helper()
	m := newTestManager(t, node, store.NewMemKV())
	require.NoError(t, m.InitFromMnemonic(context.Background(), "pw", "main", testMnemonic, "", 1))
	return m
}

func TestInitAndUnlockRoundTrip(t *testing.T) {
	node := newFakeNode(t)
	kv := store.NewMemKV()

	m := newTestManager(t, node, kv)
	require.NoError(t, m.InitFromMnemonic(context.Background(), "pw", "main", testMnemonic, "", 2))
	w, err := m.Wallet()
	require.NoError(t, err)
	selected := w.SelectedID
	m.Lock()

	_, err = m.Wallet()
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, m.Unlock(context.Background(), "pw"))
	w2, err := m.Wallet()
	require.NoError(t, err)
	assert.Equal(t, selected, w2.SelectedID)
	assert.Len(t, w2.Accounts, 2)
}

func TestUnlockWrongPassword(t *testing.T) {
	node := newFakeNode(t)
	kv := store.NewMemKV()

	m := newTestManager(t, node, kv)
	require.NoError(t, m.InitFromMnemonic(context.Background(), "pw", "main", testMnemonic, "", 1))
	m.Lock()

	assert.Error(t, m.Unlock(context.Background(), "wrong"))
}

func TestUnlockWithoutVault(t *testing.T) {
	node := newFakeNode(t)
	m := newTestManager(t, node, store.NewMemKV())
	assert.ErrorIs(t, m.Unlock(context.Background(), "pw"), ErrNoWallet)
}

func TestSendHappyPath(t *testing.T) {
	node := newFakeNode(t)
	m := unlockedManager(t, node)

	result, err := m.Send(context.Background(), "0x"+strings.Repeat("02", 32), 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), result.Nonce, "committed 4 -> first allocation 5")
	assert.Equal(t, uint64(5), result.Fees)
	assert.NotEmpty(t, result.LocalID)
	assert.NotEmpty(t, result.ServerID)
	assert.Equal(t, 1, node.broadcastCount())

	// Wire image is hex with the CTX1 magic.
	node.mu.Lock()
	wire := node.broadcasts[0]
	node.mu.Unlock()
	assert.True(t, strings.HasPrefix(wire, "0x43545831"))

	// Tracker picked the transaction up.
	recs := m.Tracker().Records()
	require.Len(t, recs, 1)
	assert.Equal(t, result.LocalID, recs[0].LocalID)
}

func TestSendAllocatesContiguousNonces(t *testing.T) {
	node := newFakeNode(t)
	m := unlockedManager(t, node)
	to := "0x" + strings.Repeat("02", 32)

	r1, err := m.Send(context.Background(), to, 10)
	require.NoError(t, err)
	r2, err := m.Send(context.Background(), to, 10)
	require.NoError(t, err)
	r3, err := m.Send(context.Background(), to, 10)
	require.NoError(t, err)

	assert.Equal(t, []uint64{5, 6, 7}, []uint64{r1.Nonce, r2.Nonce, r3.Nonce})
}

func TestSendChainMismatchBlocksBroadcast(t *testing.T) {
	node := newFakeNode(t)
	node.chainID = "0x01"
	m := unlockedManager(t, node)

	_, err := m.Send(context.Background(), "0x"+strings.Repeat("02", 32), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain_id")
	assert.Equal(t, 0, node.broadcastCount(), "mismatch must block the broadcast")
}

func TestSendInsufficientFunds(t *testing.T) {
	node := newFakeNode(t)
	node.balance = "100"
	node.fee = "5"
	m := unlockedManager(t, node)

	_, err := m.Send(context.Background(), "0x"+strings.Repeat("02", 32), 200)
	var funds *FundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, "100", funds.Have.String())
	assert.Equal(t, "205", funds.Need.String())
	assert.Equal(t, 0, node.broadcastCount())
}

func TestSelfTransferNeedsOnlyFees(t *testing.T) {
	node := newFakeNode(t)
	node.balance = "5"
	node.fee = "5"
	m := unlockedManager(t, node)

	w, err := m.Wallet()
	require.NoError(t, err)
	self := w.Accounts[0].Address

	_, err = m.Send(context.Background(), self, 1000)
	assert.NoError(t, err, "self-transfer only pays fees")
}

func TestSendNonceRace(t *testing.T) {
	node := newFakeNode(t)
	node.sendError = &struct {
		code    int
		message string
	}{code: -32000, message: "nonce too low"}
	node.failSendsLeft = 1
	m := unlockedManager(t, node)

	_, err := m.Send(context.Background(), "0x"+strings.Repeat("02", 32), 10)
	assert.ErrorIs(t, err, ErrNonceRace)
}

func TestFaucetRetriesOnceOnNonceRace(t *testing.T) {
	node := newFakeNode(t)
	node.sendError = &struct {
		code    int
		message string
	}{code: -32000, message: "nonce already used"}
	node.failSendsLeft = 1
	m := unlockedManager(t, node)

	result, err := m.Faucet(context.Background(), "0x"+strings.Repeat("11", 32), "0x"+strings.Repeat("02", 32), 10)
	require.NoError(t, err, "second attempt succeeds after re-floor")
	assert.Equal(t, 1, node.broadcastCount())
	assert.NotEmpty(t, result.ServerID)
}

func TestFaucetGivesUpAfterSecondRace(t *testing.T) {
	node := newFakeNode(t)
	node.sendError = &struct {
		code    int
		message string
	}{code: -32000, message: "bad nonce"}
	node.failSendsLeft = 2
	m := unlockedManager(t, node)

	_, err := m.Faucet(context.Background(), "0x"+strings.Repeat("11", 32), "0x"+strings.Repeat("02", 32), 10)
	assert.ErrorIs(t, err, ErrNonceRace)
}

func TestSendWithLockTimeBeyondRange(t *testing.T) {
	node := newFakeNode(t)
	m := unlockedManager(t, node)

	_, err := m.SendWithLockTime(context.Background(), "0x"+strings.Repeat("02", 32), 10, int64(1)<<32)
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrEncodeRange)
	assert.Equal(t, 0, node.broadcastCount())
}

func TestRefreshBumpsNonceFloor(t *testing.T) {
	node := newFakeNode(t)
	node.nonce = 30
	m := unlockedManager(t, node)

	balance, committed, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000000", balance.String())
	assert.Equal(t, uint64(30), committed)

	result, err := m.Send(context.Background(), "0x"+strings.Repeat("02", 32), 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(31), result.Nonce)
}

func TestAddAccountPersists(t *testing.T) {
	node := newFakeNode(t)
	kv := store.NewMemKV()
	m := newTestManager(t, node, kv)
	require.NoError(t, m.InitFromMnemonic(context.Background(), "pw", "main", testMnemonic, "", 1))

	acct, err := m.AddAccount(context.Background())
	require.NoError(t, err)
	m.Lock()

	require.NoError(t, m.Unlock(context.Background(), "pw"))
	w, err := m.Wallet()
	require.NoError(t, err)
	assert.Len(t, w.Accounts, 2)
	assert.Equal(t, acct.ID, w.SelectedID)
}

func TestLegacyVaultPayloadMigratesOnUnlock(t *testing.T) {
	node := newFakeNode(t)
	kv := store.NewMemKV()
	m := newTestManager(t, node, kv)

	legacy := []byte(`{"privateKeyHex":"0x` + strings.Repeat("11", 32) + `"}`)
	rec, err := vault.Create("pw", legacy)
	require.NoError(t, err)
	raw, err := rec.Marshal()
	require.NoError(t, err)
	require.NoError(t, kv.Put(store.VaultKey(), raw))
	require.NoError(t, m.Unlock(context.Background(), "pw"))

	w, err := m.Wallet()
	require.NoError(t, err)
	assert.Equal(t, wallet.KindPrivateKey, w.Kind)
}

func TestHistoryRoundTrip(t *testing.T) {
	node := newFakeNode(t)
	m := unlockedManager(t, node)

	page, err := m.History()
	require.NoError(t, err)
	assert.Empty(t, page, "nothing cached before the first refresh")

	require.NoError(t, m.RefreshHistory(context.Background()))
	page, err = m.History()
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "0x"+strings.Repeat("ef", 32), page[0].ID)
	assert.Equal(t, "applied", page[0].Status)
	assert.Equal(t, uint64(9), page[0].Cycle)
}

func TestHasVault(t *testing.T) {
	node := newFakeNode(t)
	kv := store.NewMemKV()
	m := newTestManager(t, node, kv)

	ok, err := m.HasVault()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.InitFromPrivateKey(context.Background(), "pw", "w", "0x"+strings.Repeat("11", 32)))
	ok, err = m.HasVault()
	require.NoError(t, err)
	assert.True(t, ok)
}
