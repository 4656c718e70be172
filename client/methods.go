package client

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// SyncInfo is the chain identity triple advertised by a node.
type SyncInfo struct {
	ChainID     string `json:"chain_id"`
	NetworkID   string `json:"network_id"`
	GenesisHash string `json:"genesis_hash"`
}

// FeeRequest mirrors the catalyst_estimateFee parameter object.
type FeeRequest struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Value    string  `json:"value"`
	Data     *string `json:"data"`
	GasLimit *uint64 `json:"gas_limit"`
	GasPrice *uint64 `json:"gas_price"`
}

// Receipt is a node-reported transaction receipt. Nodes are free to extend
// the shape, so everything beyond the status string stays raw.
type Receipt struct {
	Raw json.RawMessage
}

// Status extracts the receipt's status string, empty when absent.
func (r *Receipt) Status() string {
	return gjson.GetBytes(r.Raw, "status").String()
}

// TxSummary is one entry of an address history page.
type TxSummary struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Cycle     uint64          `json:"cycle"`
	Timestamp uint64          `json:"timestamp"`
	Raw       json.RawMessage `json:"-"`
}

func (c *Client) resultInto(ctx context.Context, method string, params interface{}, opts callOpts, out interface{}) error {
	raw, err := c.call(ctx, method, params, opts)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "%s result", method)
	}
	return nil
}

// GetSyncInfo fetches the identity triple in a single round-trip.
func (c *Client) GetSyncInfo(ctx context.Context) (*SyncInfo, error) {
	var info SyncInfo
	if err := c.resultInto(ctx, "catalyst_getSyncInfo", nil, callOpts{failover: true}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ChainID fetches the advertised chain id string.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	var id string
	err := c.resultInto(ctx, "catalyst_chainId", nil, callOpts{failover: true}, &id)
	return id, err
}

// NetworkID fetches the advertised network id string.
func (c *Client) NetworkID(ctx context.Context) (string, error) {
	var id string
	err := c.resultInto(ctx, "catalyst_networkId", nil, callOpts{failover: true}, &id)
	return id, err
}

// GenesisHash fetches the advertised genesis hash.
func (c *Client) GenesisHash(ctx context.Context) (string, error) {
	var h string
	err := c.resultInto(ctx, "catalyst_genesisHash", nil, callOpts{failover: true}, &h)
	return h, err
}

// GetBalance fetches the decimal-string balance of an address.
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var dec string
	if err := c.resultInto(ctx, "catalyst_getBalance", []interface{}{address}, callOpts{failover: true}, &dec); err != nil {
		return nil, err
	}
	out, ok := new(big.Int).SetString(strings.TrimSpace(dec), 10)
	if !ok {
		return nil, errors.Errorf("malformed balance %q", dec)
	}
	return out, nil
}

// GetNonce fetches the committed nonce of an address.
func (c *Client) GetNonce(ctx context.Context, address string) (uint64, error) {
	var nonce uint64
	err := c.resultInto(ctx, "catalyst_getNonce", []interface{}{address}, callOpts{failover: true}, &nonce)
	return nonce, err
}

// EstimateFee asks the node to price a transfer, returned as a u64.
func (c *Client) EstimateFee(ctx context.Context, req *FeeRequest) (uint64, error) {
	var dec string
	if err := c.resultInto(ctx, "catalyst_estimateFee", []interface{}{req}, callOpts{failover: true}, &dec); err != nil {
		return 0, err
	}
	fee, err := strconv.ParseUint(strings.TrimSpace(dec), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed fee %q", dec)
	}
	return fee, nil
}

// SendRawTransaction broadcasts a wire image and returns the node-assigned
// transaction id. Broadcasts get the longer timeout and full failover.
func (c *Client) SendRawTransaction(ctx context.Context, wireHex string) (string, error) {
	var id string
	err := c.resultInto(ctx, "catalyst_sendRawTransaction", []interface{}{wireHex},
		callOpts{timeout: BroadcastTimeout, failover: true}, &id)
	return id, err
}

// GetTransactionReceipt fetches the receipt for a transaction id, nil when
// the node does not know the transaction yet.
func (c *Client) GetTransactionReceipt(ctx context.Context, id string) (*Receipt, error) {
	raw, err := c.call(ctx, "catalyst_getTransactionReceipt", []interface{}{id}, callOpts{failover: false})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return &Receipt{Raw: raw}, nil
}

// GetTransactionsByAddress pages the node-side history of an address.
func (c *Client) GetTransactionsByAddress(ctx context.Context, address string, fromCycle *uint64, limit int) ([]TxSummary, error) {
	params := []interface{}{address, fromCycle, limit}
	raw, err := c.call(ctx, "catalyst_getTransactionsByAddress", params, callOpts{failover: true})
	if err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "history page")
	}
	out := make([]TxSummary, 0, len(entries))
	for _, entry := range entries {
		var summary TxSummary
		if err := json.Unmarshal(entry, &summary); err != nil {
			return nil, errors.Wrap(err, "history entry")
		}
		summary.Raw = entry
		out = append(out, summary)
	}
	return out, nil
}
