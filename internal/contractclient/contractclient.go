// Package contractclient provides the generic ABI-bound contract call
// wrapper the teacher repo's pkg/contractclient only left test fixtures for.
// It packs inputs against a parsed ABI, issues eth_call through an
// ethclient.Client, and unpacks the returned bytes.
package contractclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Caller is the subset of ethclient.Client the ContractClient needs, so
// tests can substitute a fake.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ContractClient calls view functions on a single contract address through
// a parsed ABI, mirroring the teacher's pkg/contractclient.ContractClient
// shape (Call against caller address + method + args).
type ContractClient struct {
	caller  Caller
	address common.Address
	abi     *abi.ABI
}

// New builds a ContractClient bound to one contract address and ABI.
func New(caller Caller, address common.Address, contractABI *abi.ABI) *ContractClient {
	return &ContractClient{caller: caller, address: address, abi: contractABI}
}

// NewFromEthClient is a convenience constructor for the common case of
// calling against a live *ethclient.Client.
func NewFromEthClient(client *ethclient.Client, address common.Address, contractABI *abi.ABI) *ContractClient {
	return New(client, address, contractABI)
}

// ContractAddress returns the bound contract's address.
func (c *ContractClient) ContractAddress() common.Address {
	return c.address
}

// Abi exposes the parsed ABI, e.g. for callers that need to pack a method
// call themselves.
func (c *ContractClient) Abi() *abi.ABI {
	return c.abi
}

// Call packs method+args, issues an eth_call at blockNumber (nil for
// latest), and unpacks the result into Go values.
func (c *ContractClient) Call(ctx context.Context, blockNumber *big.Int, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: failed to pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: data}
	raw, err := c.caller.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("contractclient: call %s on %s failed: %w", method, c.address.Hex(), err)
	}

	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("contractclient: failed to unpack %s: %w", method, err)
	}
	return out, nil
}
