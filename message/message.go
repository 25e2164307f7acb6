// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package message implements the canonical, versioned wire format shared
// by every chain the bridge connects. The byte layout is a cross-language
// contract: a counterpart decoding these messages on another chain must
// agree byte for byte, so nothing here may depend on host-specific
// representations.
package message

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"

	"github.com/luxfi/bridge/chainid"
)

// SigningPrefix is the fixed ASCII domain-separation tag prepended to an
// encoded message before it is hashed for committee signing.
const SigningPrefix = "SUI_BRIDGE_MESSAGE"

// CurrentVersion is the wire version emitted for every message type.
const CurrentVersion uint8 = 1

// Type tags the message kind on the wire.
type Type uint8

const (
	TokenTransfer      Type = 0
	CommitteeBlocklist Type = 1
	EmergencyOp        Type = 2
	UpdateBridgeLimit  Type = 3
	UpdateAssetPrice   Type = 4
	// Tag 5 is reserved for EVM contract upgrades, which are authorized on
	// the EVM side only and never decoded here.
	AddTokensOnSui Type = 6
)

func (t Type) String() string {
	switch t {
	case TokenTransfer:
		return "token_transfer"
	case CommitteeBlocklist:
		return "committee_blocklist"
	case EmergencyOp:
		return "emergency_op"
	case UpdateBridgeLimit:
		return "update_bridge_limit"
	case UpdateAssetPrice:
		return "update_asset_price"
	case AddTokensOnSui:
		return "add_tokens_on_sui"
	default:
		return fmt.Sprintf("unknown-message-type-%d", uint8(t))
	}
}

// EmergencyOpType selects the emergency operation.
type EmergencyOpType uint8

const (
	Pause   EmergencyOpType = 0
	Unpause EmergencyOpType = 1
)

// BlocklistType selects whether listed members are being blocked or
// unblocked.
type BlocklistType uint8

const (
	Blocklist   BlocklistType = 0
	Unblocklist BlocklistType = 1
)

// Required voting power per message kind, in basis points of the
// committee's total. Pausing the bridge is deliberately cheap while
// resuming it requires broad agreement.
const (
	thresholdTokenTransfer    uint64 = 3334
	thresholdBlocklist        uint64 = 5001
	thresholdEmergencyPause   uint64 = 450
	thresholdEmergencyUnpause uint64 = 5001
	thresholdLimitUpdate      uint64 = 5001
	thresholdAssetPrice       uint64 = 5001
	thresholdAddTokens        uint64 = 5001
)

var (
	ErrInvalidMessageType     = errors.New("invalid message type")
	ErrInvalidMessageVersion  = errors.New("invalid message version")
	ErrInvalidPayloadLength   = errors.New("invalid payload length")
	ErrTrailingBytes          = errors.New("trailing bytes after payload")
	ErrEmptyList              = errors.New("empty list")
	ErrInvalidAddressLength   = errors.New("invalid address length")
	ErrInvalidEmergencyOpType = errors.New("invalid emergency op type")
	ErrInvalidBlocklistType   = errors.New("invalid blocklist type")
)

// Payload is the tagged union of the per-type payload layouts.
type Payload interface {
	payloadType() Type
	// appendPayload appends the payload's wire bytes to b.
	appendPayload(b []byte) []byte
}

// Message is a decoded bridge message envelope.
type Message struct {
	Type        Type
	Version     uint8
	SeqNum      uint64
	SourceChain chainid.ChainID
	Payload     Payload
}

// Key uniquely identifies a message for replay and record tracking:
// source chain id, message type tag, then the big-endian sequence number.
type Key [10]byte

func (m *Message) Key() Key {
	var k Key
	k[0] = byte(m.SourceChain)
	k[1] = byte(m.Type)
	binary.BigEndian.PutUint64(k[2:], m.SeqNum)
	return k
}

func (k Key) Bytes() []byte {
	return k[:]
}

// RequiredVotingPower returns the committee voting power, in basis points,
// a signature set must accumulate before this message is authorized.
func (m *Message) RequiredVotingPower() uint64 {
	switch m.Type {
	case TokenTransfer:
		return thresholdTokenTransfer
	case CommitteeBlocklist:
		return thresholdBlocklist
	case EmergencyOp:
		if p, ok := m.Payload.(*EmergencyOpPayload); ok && p.Op == Unpause {
			return thresholdEmergencyUnpause
		}
		return thresholdEmergencyPause
	case UpdateBridgeLimit:
		return thresholdLimitUpdate
	case UpdateAssetPrice:
		return thresholdAssetPrice
	case AddTokensOnSui:
		return thresholdAddTokens
	default:
		// Unreachable for constructed messages; an unknown type can never
		// accumulate enough power.
		return ^uint64(0)
	}
}

// TokenTransferPayload moves value from the envelope's source chain to
// TargetChain.
type TokenTransferPayload struct {
	SenderAddress []byte
	TargetChain   chainid.ChainID
	TargetAddress []byte
	TokenID       uint8
	Amount        uint64
}

func (*TokenTransferPayload) payloadType() Type { return TokenTransfer }

func (p *TokenTransferPayload) appendPayload(b []byte) []byte {
	b = append(b, byte(len(p.SenderAddress)))
	b = append(b, p.SenderAddress...)
	b = append(b, byte(p.TargetChain))
	b = append(b, byte(len(p.TargetAddress)))
	b = append(b, p.TargetAddress...)
	b = append(b, p.TokenID)
	return binary.BigEndian.AppendUint64(b, p.Amount)
}

// EmergencyOpPayload pauses or unpauses the bridge.
type EmergencyOpPayload struct {
	Op EmergencyOpType
}

func (*EmergencyOpPayload) payloadType() Type { return EmergencyOp }

func (p *EmergencyOpPayload) appendPayload(b []byte) []byte {
	return append(b, byte(p.Op))
}

// BlocklistPayload blocks or unblocks committee members, identified by
// their pubkey-derived 20-byte addresses.
type BlocklistPayload struct {
	Kind    BlocklistType
	Members []crypto.Address
}

func (*BlocklistPayload) payloadType() Type { return CommitteeBlocklist }

func (p *BlocklistPayload) appendPayload(b []byte) []byte {
	b = append(b, byte(p.Kind), byte(len(p.Members)))
	for _, m := range p.Members {
		b = append(b, m[:]...)
	}
	return b
}

// UpdateBridgeLimitPayload sets the USD transfer limit for the route from
// SendingChain to the envelope's source chain.
type UpdateBridgeLimitPayload struct {
	SendingChain chainid.ChainID
	NewLimit     uint64
}

func (*UpdateBridgeLimitPayload) payloadType() Type { return UpdateBridgeLimit }

func (p *UpdateBridgeLimitPayload) appendPayload(b []byte) []byte {
	b = append(b, byte(p.SendingChain))
	return binary.BigEndian.AppendUint64(b, p.NewLimit)
}

// UpdateAssetPricePayload sets the USD notional price of a token.
type UpdateAssetPricePayload struct {
	TokenID  uint8
	NewPrice uint64
}

func (*UpdateAssetPricePayload) payloadType() Type { return UpdateAssetPrice }

func (p *UpdateAssetPricePayload) appendPayload(b []byte) []byte {
	b = append(b, p.TokenID)
	return binary.BigEndian.AppendUint64(b, p.NewPrice)
}

// AddTokensOnSuiPayload registers new tokens with the treasury. TokenIDs,
// TypeNames and Prices run in lockstep and share one count byte.
type AddTokensOnSuiPayload struct {
	Native    bool
	TokenIDs  []uint8
	TypeNames []string
	Prices    []uint64
}

func (*AddTokensOnSuiPayload) payloadType() Type { return AddTokensOnSui }

func (p *AddTokensOnSuiPayload) appendPayload(b []byte) []byte {
	var native byte
	if p.Native {
		native = 1
	}
	b = append(b, native, byte(len(p.TokenIDs)))
	b = append(b, p.TokenIDs...)
	for _, name := range p.TypeNames {
		b = append(b, byte(len(name)))
		b = append(b, name...)
	}
	for _, price := range p.Prices {
		b = binary.BigEndian.AppendUint64(b, price)
	}
	return b
}
