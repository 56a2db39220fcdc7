// Package chainrpc implements chain.Client over the node's JSON-RPC API.
package chainrpc

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mantlenetworkio/gas-station/chain"
)

const (
	// coinPageLimit is the page size requested from the coin listing API.
	coinPageLimit = 100

	// objectBatchLimit is the node's cap on a multi-get request.
	objectBatchLimit = 50
)

// Client talks to a full node over JSON-RPC 2.0. Safe for concurrent use.
type Client struct {
	rpc *rpc.Client
}

var _ chain.Client = (*Client)(nil)

// Dial connects to the node at url.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial node at %s: %w", url, err)
	}
	return &Client{rpc: c}, nil
}

// NewClient wraps an existing RPC connection.
func NewClient(c *rpc.Client) *Client {
	return &Client{rpc: c}
}

// Close tears down the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// GetCoins returns one page of the owner's native fee coins.
func (c *Client) GetCoins(ctx context.Context, owner chain.Address, cursor *string) (*chain.CoinPage, error) {
	var page struct {
		Data        []*chain.Coin `json:"data"`
		NextCursor  *string       `json:"nextCursor"`
		HasNextPage bool          `json:"hasNextPage"`
	}
	if err := c.rpc.CallContext(ctx, &page, "suix_getCoins", owner, nil, cursor, coinPageLimit); err != nil {
		return nil, err
	}
	return &chain.CoinPage{Data: page.Data, NextCursor: page.NextCursor, HasNextPage: page.HasNextPage}, nil
}

// rpcObject is the multi-get response envelope. Deleted objects come back
// with an error stanza instead of data.
type rpcObject struct {
	Data *struct {
		ObjectID string `json:"objectId"`
		Version  string `json:"version"`
		Digest   string `json:"digest"`
		Content  *struct {
			Fields struct {
				Balance string `json:"balance"`
			} `json:"fields"`
		} `json:"content"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// MultiGetObjects fetches the current state of the given objects, chunking
// requests at the node's batch limit. Results are index-aligned with ids and
// nil for objects that no longer exist.
func (c *Client) MultiGetObjects(ctx context.Context, ids []chain.ObjectID) ([]*chain.Object, error) {
	objects := make([]*chain.Object, 0, len(ids))
	for start := 0; start < len(ids); start += objectBatchLimit {
		end := min(start+objectBatchLimit, len(ids))

		var raw []rpcObject
		options := map[string]bool{"showContent": true}
		if err := c.rpc.CallContext(ctx, &raw, "sui_multiGetObjects", ids[start:end], options); err != nil {
			return nil, err
		}
		if len(raw) != end-start {
			return nil, fmt.Errorf("node returned %d objects for %d ids", len(raw), end-start)
		}
		for i, obj := range raw {
			if obj.Data == nil {
				if obj.Error != nil {
					log.Debug("Object lookup failed", "id", ids[start+i], "code", obj.Error.Code)
				}
				objects = append(objects, nil)
				continue
			}
			var version, balance chainUint
			if err := version.parse(obj.Data.Version); err != nil {
				return nil, fmt.Errorf("object %s: bad version: %w", obj.Data.ObjectID, err)
			}
			if obj.Data.Content != nil {
				if err := balance.parse(obj.Data.Content.Fields.Balance); err != nil {
					return nil, fmt.Errorf("object %s: bad balance: %w", obj.Data.ObjectID, err)
				}
			}
			objects = append(objects, &chain.Object{
				Ref: chain.ObjectRef{
					ObjectID: chain.ObjectID(obj.Data.ObjectID),
					Version:  uint64(version),
					Digest:   obj.Data.Digest,
				},
				Balance: uint64(balance),
			})
		}
	}
	return objects, nil
}

// LatestSystemState returns the current epoch summary.
func (c *Client) LatestSystemState(ctx context.Context) (*chain.SystemState, error) {
	var state chain.SystemState
	if err := c.rpc.CallContext(ctx, &state, "suix_getLatestSuiSystemState"); err != nil {
		return nil, err
	}
	return &state, nil
}

// ExecuteTransaction submits a signed transaction and waits for its effects.
func (c *Client) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*chain.ExecuteResult, error) {
	var result chain.ExecuteResult
	options := map[string]bool{"showEffects": true}
	err := c.rpc.CallContext(ctx, &result, "sui_executeTransactionBlock",
		base64.StdEncoding.EncodeToString(txBytes), signatures, options, "WaitForLocalExecution")
	if err != nil {
		return nil, err
	}
	return &result, nil
}
