// Package chainclient provides uniform, typed-error access to the chain:
// latest block, ranged log queries, and historical view-function calls. No
// retry policy lives here except the bounded one in retry.go that callers
// opt into explicitly; ChainClient itself just classifies failures.
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrRangeTooLarge is returned by GetLogs when the RPC provider rejects the
// requested block range as too wide. Callers shrink their window and retry.
var ErrRangeTooLarge = errors.New("chainclient: block range too large")

// ErrPermanent marks a failure that retrying will not fix (malformed
// response, reverted call, unknown method).
var ErrPermanent = errors.New("chainclient: permanent failure")

// ErrTransient marks a failure worth retrying (timeout, 5xx, rate limit).
var ErrTransient = errors.New("chainclient: transient failure")

// rangeTooLargeMarkers are substrings real RPC providers use in their plain
// JSON-RPC error text for an oversized eth_getLogs range. There is no typed
// error for this on the wire, so classification has to happen here, once,
// rather than at every call site.
var rangeTooLargeMarkers = []string{
	"block range exceeded",
	"query returned more than",
	"range too large",
	"exceed maximum block range",
	"limit exceeded",
}

// ChainClient is the abstraction B and D depend on instead of a concrete
// RPC transport.
type ChainClient interface {
	LatestBlock(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, from, to uint64, topic0 common.Hash, contract common.Address) ([]types.Log, error)
	CallView(ctx context.Context, contract common.Address, abi *abi.ABI, method string, args []interface{}, atBlock uint64) ([]interface{}, error)
}

// rpcClient is the subset of ethclient.Client this package calls, so tests
// can substitute a fake without dialing a real node.
type rpcClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client is the concrete ChainClient backed by an ethclient.Client-shaped
// RPC transport, matching the dialing convention the teacher's cmd/main.go
// used for its own ethclient.Dial(conf.RPC) call.
type Client struct {
	rpc rpcClient
}

// New wraps an existing RPC transport (typically *ethclient.Client).
func New(rpc rpcClient) *Client {
	return &Client{rpc: rpc}
}

func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, classify(fmt.Errorf("chainclient: latest block: %w", err))
	}
	return n, nil
}

func (c *Client) GetLogs(ctx context.Context, from, to uint64, topic0 common.Hash, contract common.Address) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{topic0}},
	}

	logs, err := c.rpc.FilterLogs(ctx, query)
	if err != nil {
		if isRangeTooLarge(err) {
			return nil, fmt.Errorf("chainclient: get logs [%d,%d]: %w", from, to, ErrRangeTooLarge)
		}
		return nil, classify(fmt.Errorf("chainclient: get logs [%d,%d]: %w", from, to, err))
	}
	return logs, nil
}

func (c *Client) CallView(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args []interface{}, atBlock uint64) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chainclient: pack %s: %w: %v", method, ErrPermanent, err)
	}

	var blockNumber *big.Int
	if atBlock != 0 {
		blockNumber = new(big.Int).SetUint64(atBlock)
	}

	raw, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, blockNumber)
	if err != nil {
		return nil, classify(fmt.Errorf("chainclient: call %s on %s at block %d: %w", method, contract.Hex(), atBlock, err))
	}

	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chainclient: unpack %s: %w: %v", method, ErrPermanent, err)
	}
	return out, nil
}

// isRangeTooLarge string-matches the handful of phrasings real providers
// use for an oversized eth_getLogs window.
func isRangeTooLarge(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range rangeTooLargeMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classify tags a raw RPC error as transient or permanent based on common
// wire-level phrasing (timeouts, rate limits, 5xx are transient; anything
// else defaults to permanent since an unrecognized failure is safer to
// surface than to silently retry).
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	transientMarkers := []string{"timeout", "deadline exceeded", "rate limit", "too many requests", "connection reset", "temporarily unavailable", "503", "502", "504"}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}
