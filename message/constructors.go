// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package message

import (
	"fmt"

	"github.com/luxfi/crypto"

	"github.com/luxfi/bridge/chainid"
)

// Chain-id validity is checked at construction time, not just decode time:
// a message referencing an unregistered chain id never comes into
// existence.

// NewTokenTransfer builds a token transfer from sourceChain to
// targetChain. The pair must form a registered bridge route.
func NewTokenTransfer(
	seqNum uint64,
	sourceChain chainid.ChainID,
	senderAddress []byte,
	targetChain chainid.ChainID,
	targetAddress []byte,
	tokenID uint8,
	amount uint64,
) (*Message, error) {
	if _, err := chainid.NewRoute(sourceChain, targetChain); err != nil {
		return nil, err
	}
	if len(senderAddress) == 0 || len(senderAddress) > maxListLen {
		return nil, fmt.Errorf("%w: sender address %d bytes", ErrInvalidAddressLength, len(senderAddress))
	}
	if len(targetAddress) == 0 || len(targetAddress) > maxListLen {
		return nil, fmt.Errorf("%w: target address %d bytes", ErrInvalidAddressLength, len(targetAddress))
	}
	return &Message{
		Type:        TokenTransfer,
		Version:     CurrentVersion,
		SeqNum:      seqNum,
		SourceChain: sourceChain,
		Payload: &TokenTransferPayload{
			SenderAddress: senderAddress,
			TargetChain:   targetChain,
			TargetAddress: targetAddress,
			TokenID:       tokenID,
			Amount:        amount,
		},
	}, nil
}

// NewEmergencyOp builds a pause or unpause command.
func NewEmergencyOp(seqNum uint64, sourceChain chainid.ChainID, op EmergencyOpType) (*Message, error) {
	if !sourceChain.Valid() {
		return nil, fmt.Errorf("%w: %s", chainid.ErrInvalidBridgeRoute, sourceChain)
	}
	if op != Pause && op != Unpause {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEmergencyOpType, op)
	}
	return &Message{
		Type:        EmergencyOp,
		Version:     CurrentVersion,
		SeqNum:      seqNum,
		SourceChain: sourceChain,
		Payload:     &EmergencyOpPayload{Op: op},
	}, nil
}

// NewBlocklist builds a committee blocklist command over raw 20-byte
// member addresses.
func NewBlocklist(
	seqNum uint64,
	sourceChain chainid.ChainID,
	kind BlocklistType,
	members [][]byte,
) (*Message, error) {
	if !sourceChain.Valid() {
		return nil, fmt.Errorf("%w: %s", chainid.ErrInvalidBridgeRoute, sourceChain)
	}
	if kind != Blocklist && kind != Unblocklist {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlocklistType, kind)
	}
	if len(members) == 0 {
		return nil, ErrEmptyList
	}
	if len(members) > maxListLen {
		return nil, fmt.Errorf("%w: %d members", ErrInvalidPayloadLength, len(members))
	}
	addrs := make([]crypto.Address, len(members))
	for i, m := range members {
		if len(m) != EthAddressLength {
			return nil, fmt.Errorf("%w: member %d is %d bytes", ErrInvalidAddressLength, i, len(m))
		}
		copy(addrs[i][:], m)
	}
	return &Message{
		Type:        CommitteeBlocklist,
		Version:     CurrentVersion,
		SeqNum:      seqNum,
		SourceChain: sourceChain,
		Payload:     &BlocklistPayload{Kind: kind, Members: addrs},
	}, nil
}

// NewUpdateBridgeLimit builds a limit update for the route
// sendingChain -> sourceChain, to be executed on sourceChain.
func NewUpdateBridgeLimit(
	seqNum uint64,
	sourceChain chainid.ChainID,
	sendingChain chainid.ChainID,
	newLimit uint64,
) (*Message, error) {
	if _, err := chainid.NewRoute(sendingChain, sourceChain); err != nil {
		return nil, err
	}
	return &Message{
		Type:        UpdateBridgeLimit,
		Version:     CurrentVersion,
		SeqNum:      seqNum,
		SourceChain: sourceChain,
		Payload: &UpdateBridgeLimitPayload{
			SendingChain: sendingChain,
			NewLimit:     newLimit,
		},
	}, nil
}

// NewUpdateAssetPrice builds an asset price update.
func NewUpdateAssetPrice(seqNum uint64, sourceChain chainid.ChainID, tokenID uint8, newPrice uint64) (*Message, error) {
	if !sourceChain.Valid() {
		return nil, fmt.Errorf("%w: %s", chainid.ErrInvalidBridgeRoute, sourceChain)
	}
	return &Message{
		Type:        UpdateAssetPrice,
		Version:     CurrentVersion,
		SeqNum:      seqNum,
		SourceChain: sourceChain,
		Payload: &UpdateAssetPricePayload{
			TokenID:  tokenID,
			NewPrice: newPrice,
		},
	}, nil
}

// NewAddTokensOnSui builds a token registration command. ids, typeNames
// and prices must run in lockstep.
func NewAddTokensOnSui(
	seqNum uint64,
	sourceChain chainid.ChainID,
	native bool,
	ids []uint8,
	typeNames []string,
	prices []uint64,
) (*Message, error) {
	if !sourceChain.Valid() {
		return nil, fmt.Errorf("%w: %s", chainid.ErrInvalidBridgeRoute, sourceChain)
	}
	if len(ids) != len(typeNames) || len(ids) != len(prices) {
		return nil, fmt.Errorf("%w: %d ids, %d names, %d prices",
			ErrInvalidPayloadLength, len(ids), len(typeNames), len(prices))
	}
	if len(ids) > maxListLen {
		return nil, fmt.Errorf("%w: %d tokens", ErrInvalidPayloadLength, len(ids))
	}
	for i, name := range typeNames {
		if len(name) > maxListLen {
			return nil, fmt.Errorf("%w: type name %d is %d bytes", ErrInvalidPayloadLength, i, len(name))
		}
	}
	return &Message{
		Type:        AddTokensOnSui,
		Version:     CurrentVersion,
		SeqNum:      seqNum,
		SourceChain: sourceChain,
		Payload: &AddTokensOnSuiPayload{
			Native:    native,
			TokenIDs:  ids,
			TypeNames: typeNames,
			Prices:    prices,
		},
	}, nil
}
