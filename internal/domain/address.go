// Package domain holds the data model shared by every component of the
// indexer: addresses, position rows, account records, and the bucket
// enumeration.
package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte identifier, always compared and stored in its
// canonical lower-hex form.
type Address string

// NewAddress canonicalizes an Ethereum address into lower-hex form.
func NewAddress(a common.Address) Address {
	return Address(strings.ToLower(a.Hex()))
}

// AddressFromHex parses a hex string (with or without 0x prefix) into a
// canonical Address.
func AddressFromHex(hex string) Address {
	return NewAddress(common.HexToAddress(hex))
}

// Common converts back to a go-ethereum common.Address for contract calls.
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether a is empty or the zero address.
func (a Address) IsZero() bool {
	return a == "" || a == NewAddress(common.Address{})
}
