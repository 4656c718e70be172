package tracker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalyst-network/catalyst-wallet/client"
	"github.com/catalyst-network/catalyst-wallet/store"
)

type fakeReceipts struct {
	byID  map[string]*client.Receipt
	err   error
	calls atomic.Int64
}

func (f *fakeReceipts) GetTransactionReceipt(_ context.Context, id string) (*client.Receipt, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func receipt(status string) *client.Receipt {
	return &client.Receipt{Raw: json.RawMessage(`{"status":"` + status + `"}`)}
}

func newTracker(t *testing.T, kv store.KV, src ReceiptSource, onApplied func(store.TxRecord)) *Tracker {
	t.Helper()
	tr, err := New(zap.NewNop(), kv, src, "catalyst-testnet", "0xaa", onApplied)
	require.NoError(t, err)
	return tr
}

func TestTickUpdatesStatus(t *testing.T) {
	src := &fakeReceipts{byID: map[string]*client.Receipt{"0x01": receipt("pending_inclusion")}}
	tr := newTracker(t, store.NewMemKV(), src, nil)
	require.NoError(t, tr.Track("0x01", ""))

	tr.Tick(context.Background())

	recs := tr.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "pending_inclusion", recs[0].Status)
	assert.NotZero(t, recs[0].LastCheckedMS)
}

func TestTickMissingReceiptIsNotFound(t *testing.T) {
	src := &fakeReceipts{byID: map[string]*client.Receipt{}}
	tr := newTracker(t, store.NewMemKV(), src, nil)
	require.NoError(t, tr.Track("0x01", ""))

	tr.Tick(context.Background())
	assert.Equal(t, StatusNotFound, tr.Records()[0].Status)

	// not_found is not terminal: the next tick polls again.
	tr.Tick(context.Background())
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestTerminalStatesStopPolling(t *testing.T) {
	src := &fakeReceipts{byID: map[string]*client.Receipt{
		"0x01": receipt(StatusApplied),
		"0x02": receipt(StatusDropped),
	}}
	tr := newTracker(t, store.NewMemKV(), src, nil)
	require.NoError(t, tr.Track("0x01", ""))
	require.NoError(t, tr.Track("0x02", ""))

	tr.Tick(context.Background())
	assert.Equal(t, int64(2), src.calls.Load())

	tr.Tick(context.Background())
	assert.Equal(t, int64(2), src.calls.Load(), "terminal entries are never re-polled")
}

func TestAppliedTriggersCallback(t *testing.T) {
	src := &fakeReceipts{byID: map[string]*client.Receipt{"0xserver": receipt(StatusApplied)}}
	var appliedID atomic.Value
	tr := newTracker(t, store.NewMemKV(), src, func(rec store.TxRecord) {
		appliedID.Store(rec.LocalID)
	})
	require.NoError(t, tr.Track("0xlocal", "0xserver"))

	tr.Tick(context.Background())
	assert.Equal(t, "0xlocal", appliedID.Load(), "server id preferred for polling")
}

func TestTimeoutsAreSwallowed(t *testing.T) {
	src := &fakeReceipts{err: client.ErrTimeout}
	tr := newTracker(t, store.NewMemKV(), src, nil)
	require.NoError(t, tr.Track("0x01", ""))

	tr.Tick(context.Background())
	assert.Equal(t, StatusPending, tr.Records()[0].Status, "timeout leaves the entry untouched")

	src.err = &client.UnreachableError{Last: client.ErrTimeout}
	tr.Tick(context.Background())
	assert.Equal(t, StatusPending, tr.Records()[0].Status)
}

func TestHardErrorsAreRecorded(t *testing.T) {
	src := &fakeReceipts{err: errors.New("malformed id")}
	tr := newTracker(t, store.NewMemKV(), src, nil)
	require.NoError(t, tr.Track("0x01", ""))

	tr.Tick(context.Background())
	rec := tr.Records()[0]
	assert.Equal(t, StatusError, rec.Status)
	assert.Contains(t, string(rec.LastReceipt), "malformed id")
}

func TestPersistenceAcrossRestart(t *testing.T) {
	kv := store.NewMemKV()
	src := &fakeReceipts{byID: map[string]*client.Receipt{"0x01": receipt(StatusApplied)}}

	tr := newTracker(t, kv, src, nil)
	require.NoError(t, tr.Track("0x01", ""))
	tr.Tick(context.Background())

	resumed := newTracker(t, kv, src, nil)
	recs := resumed.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, StatusApplied, recs[0].Status)
}
