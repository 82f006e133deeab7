// Package chainclienttest provides an in-memory ChainClient fake for tests
// that exercise the position reader, discovery loop, and refresh loop
// without a live RPC endpoint.
package chainclienttest

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ViewCall identifies one programmed CallView response by contract, method,
// and args (args are compared by their fmt.Sprint form so a reserve address
// argument can distinguish two calls to the same method+contract).
type ViewCall struct {
	Contract common.Address
	Method   string
	Args     string
}

// Call builds a ViewCall key for a given contract/method/args triple,
// exported so tests can program responses without duplicating the encoding
// CallView uses internally.
func Call(contract common.Address, method string, args ...interface{}) ViewCall {
	return ViewCall{Contract: contract, Method: method, Args: fmt.Sprint(args)}
}

// Fake is a scriptable ChainClient: tests preload LatestBlockValue, Logs,
// and view-call results, then assert on the sequence of calls recorded.
type Fake struct {
	LatestBlockValue uint64
	LatestBlockErr   error

	Logs    []types.Log
	LogsErr error

	// Views maps a (contract, method, args) key to the unpacked return values
	// CallView should hand back.
	Views    map[ViewCall][]interface{}
	ViewErrs map[ViewCall]error

	Calls []string
}

// NewFake builds an empty Fake ready to have its fields populated by a test.
func NewFake() *Fake {
	return &Fake{
		Views:    make(map[ViewCall][]interface{}),
		ViewErrs: make(map[ViewCall]error),
	}
}

func (f *Fake) LatestBlock(ctx context.Context) (uint64, error) {
	f.Calls = append(f.Calls, "LatestBlock")
	return f.LatestBlockValue, f.LatestBlockErr
}

func (f *Fake) GetLogs(ctx context.Context, from, to uint64, topic0 common.Hash, contract common.Address) ([]types.Log, error) {
	f.Calls = append(f.Calls, fmt.Sprintf("GetLogs(%d,%d)", from, to))
	if f.LogsErr != nil {
		return nil, f.LogsErr
	}

	var out []types.Log
	for _, l := range f.Logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *Fake) CallView(ctx context.Context, contract common.Address, _ *abi.ABI, method string, args []interface{}, atBlock uint64) ([]interface{}, error) {
	key := Call(contract, method, args...)
	f.Calls = append(f.Calls, fmt.Sprintf("CallView(%s,%s,block=%d)", method, contract.Hex(), atBlock))

	if err, ok := f.ViewErrs[key]; ok {
		return nil, err
	}
	if out, ok := f.Views[key]; ok {
		return out, nil
	}
	return nil, fmt.Errorf("chainclienttest: no programmed response for %s on %s", method, contract.Hex())
}
