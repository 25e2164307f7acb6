// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainid defines the registered bridge chain identifiers and the
// directional routes between them.
package chainid

import (
	"errors"
	"fmt"
)

// ChainID identifies a chain on either end of the bridge. The numeric
// values are part of the cross-chain wire contract and must match the
// counterpart deployments byte for byte.
type ChainID uint8

const (
	SuiMainnet ChainID = 0
	SuiTestnet ChainID = 1
	SuiCustom  ChainID = 2

	EthMainnet ChainID = 10
	EthSepolia ChainID = 11
	EthCustom  ChainID = 12
)

var (
	ErrInvalidBridgeRoute = errors.New("invalid bridge route")
	ErrSameChain          = errors.New("route endpoints must differ")
)

// Valid reports whether id is a registered chain id.
func (id ChainID) Valid() bool {
	switch id {
	case SuiMainnet, SuiTestnet, SuiCustom, EthMainnet, EthSepolia, EthCustom:
		return true
	default:
		return false
	}
}

// IsSui reports whether id belongs to the Sui side of the bridge.
func (id ChainID) IsSui() bool {
	return id == SuiMainnet || id == SuiTestnet || id == SuiCustom
}

func (id ChainID) String() string {
	switch id {
	case SuiMainnet:
		return "sui-mainnet"
	case SuiTestnet:
		return "sui-testnet"
	case SuiCustom:
		return "sui-custom"
	case EthMainnet:
		return "eth-mainnet"
	case EthSepolia:
		return "eth-sepolia"
	case EthCustom:
		return "eth-custom"
	default:
		return fmt.Sprintf("unknown-chain-%d", uint8(id))
	}
}

// Route is an ordered (source, destination) pair. A route and its reverse
// are independent: each carries its own transfer limit and window.
type Route struct {
	Source      ChainID
	Destination ChainID
}

// NewRoute validates both endpoints and the route shape. Mainnet chains
// only pair with each other, and a route always crosses between the Sui
// and Eth sides.
func NewRoute(source, destination ChainID) (Route, error) {
	if !source.Valid() {
		return Route{}, fmt.Errorf("%w: source %s", ErrInvalidBridgeRoute, source)
	}
	if !destination.Valid() {
		return Route{}, fmt.Errorf("%w: destination %s", ErrInvalidBridgeRoute, destination)
	}
	if source == destination {
		return Route{}, fmt.Errorf("%w: %s", ErrSameChain, source)
	}
	if source.IsSui() == destination.IsSui() {
		return Route{}, fmt.Errorf("%w: %s -> %s", ErrInvalidBridgeRoute, source, destination)
	}
	mainnet := source == SuiMainnet || source == EthMainnet
	if mainnet != (destination == SuiMainnet || destination == EthMainnet) {
		return Route{}, fmt.Errorf("%w: %s -> %s", ErrInvalidBridgeRoute, source, destination)
	}
	return Route{Source: source, Destination: destination}, nil
}

// Reverse returns the route in the opposite direction.
func (r Route) Reverse() Route {
	return Route{Source: r.Destination, Destination: r.Source}
}

func (r Route) String() string {
	return fmt.Sprintf("%s -> %s", r.Source, r.Destination)
}
