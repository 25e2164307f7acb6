// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package message

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/crypto"

	"github.com/luxfi/bridge/chainid"
)

const (
	// EthAddressLength is the size of a pubkey-derived member address.
	EthAddressLength = 20

	// Every variable-length field carries a single-byte length prefix.
	maxListLen = 255

	// envelope: type(1) | version(1) | seq(8 BE) | source chain(1)
	envelopeLen = 11
)

// Encode returns the canonical wire bytes of m:
// type(1) | version(1) | seq_num(8 BE) | source_chain(1) | payload.
func Encode(m *Message) ([]byte, error) {
	if m.Payload == nil || m.Payload.payloadType() != m.Type {
		return nil, fmt.Errorf("%w: payload does not match type %s", ErrInvalidMessageType, m.Type)
	}
	b := make([]byte, 0, envelopeLen+32)
	b = append(b, byte(m.Type), m.Version)
	b = binary.BigEndian.AppendUint64(b, m.SeqNum)
	b = append(b, byte(m.SourceChain))
	return m.Payload.appendPayload(b), nil
}

// SigningBytes returns the preimage a committee member signs: the fixed
// ASCII prefix followed by the encoded message. Recipients on any chain
// recompute exactly this byte sequence.
func SigningBytes(m *Message) ([]byte, error) {
	encoded, err := Encode(m)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, len(SigningPrefix)+len(encoded))
	b = append(b, SigningPrefix...)
	return append(b, encoded...), nil
}

// Decode parses canonical wire bytes into a message. Any malformation is
// fatal to the whole message: a short field fails with
// ErrInvalidPayloadLength and unconsumed bytes fail with ErrTrailingBytes.
func Decode(b []byte) (*Message, error) {
	r := &reader{buf: b}
	typeByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	version, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageVersion, version)
	}
	seqNum, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	chainByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	sourceChain := chainid.ChainID(chainByte)
	if !sourceChain.Valid() {
		return nil, fmt.Errorf("%w: %s", chainid.ErrInvalidBridgeRoute, sourceChain)
	}

	msgType := Type(typeByte)
	var payload Payload
	switch msgType {
	case TokenTransfer:
		payload, err = decodeTokenTransfer(r)
	case CommitteeBlocklist:
		payload, err = decodeBlocklist(r)
	case EmergencyOp:
		payload, err = decodeEmergencyOp(r)
	case UpdateBridgeLimit:
		payload, err = decodeUpdateBridgeLimit(r)
	case UpdateAssetPrice:
		payload, err = decodeUpdateAssetPrice(r)
	case AddTokensOnSui:
		payload, err = decodeAddTokensOnSui(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageType, typeByte)
	}
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingBytes, r.remaining())
	}
	if tt, ok := payload.(*TokenTransferPayload); ok {
		if _, err := chainid.NewRoute(sourceChain, tt.TargetChain); err != nil {
			return nil, err
		}
	}
	return &Message{
		Type:        msgType,
		Version:     version,
		SeqNum:      seqNum,
		SourceChain: sourceChain,
		Payload:     payload,
	}, nil
}

func decodeTokenTransfer(r *reader) (Payload, error) {
	senderLen, err := r.readByte()
	if err != nil {
		return nil, err
	}
	sender, err := r.readN(int(senderLen))
	if err != nil {
		return nil, err
	}
	targetChainByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	targetChain := chainid.ChainID(targetChainByte)
	if !targetChain.Valid() {
		return nil, fmt.Errorf("%w: target %s", chainid.ErrInvalidBridgeRoute, targetChain)
	}
	targetLen, err := r.readByte()
	if err != nil {
		return nil, err
	}
	target, err := r.readN(int(targetLen))
	if err != nil {
		return nil, err
	}
	tokenID, err := r.readByte()
	if err != nil {
		return nil, err
	}
	amount, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	return &TokenTransferPayload{
		SenderAddress: sender,
		TargetChain:   targetChain,
		TargetAddress: target,
		TokenID:       tokenID,
		Amount:        amount,
	}, nil
}

func decodeEmergencyOp(r *reader) (Payload, error) {
	op, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if op != byte(Pause) && op != byte(Unpause) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEmergencyOpType, op)
	}
	return &EmergencyOpPayload{Op: EmergencyOpType(op)}, nil
}

func decodeBlocklist(r *reader) (Payload, error) {
	kind, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if kind != byte(Blocklist) && kind != byte(Unblocklist) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlocklistType, kind)
	}
	count, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrEmptyList
	}
	members := make([]crypto.Address, count)
	for i := range members {
		addr, err := r.readN(EthAddressLength)
		if err != nil {
			// A short member slot is a malformed address, not just a short
			// buffer.
			return nil, fmt.Errorf("%w: member %d", ErrInvalidAddressLength, i)
		}
		copy(members[i][:], addr)
	}
	return &BlocklistPayload{Kind: BlocklistType(kind), Members: members}, nil
}

func decodeUpdateBridgeLimit(r *reader) (Payload, error) {
	sendingByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	sendingChain := chainid.ChainID(sendingByte)
	if !sendingChain.Valid() {
		return nil, fmt.Errorf("%w: sending chain %s", chainid.ErrInvalidBridgeRoute, sendingChain)
	}
	newLimit, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	return &UpdateBridgeLimitPayload{SendingChain: sendingChain, NewLimit: newLimit}, nil
}

func decodeUpdateAssetPrice(r *reader) (Payload, error) {
	tokenID, err := r.readByte()
	if err != nil {
		return nil, err
	}
	newPrice, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	return &UpdateAssetPricePayload{TokenID: tokenID, NewPrice: newPrice}, nil
}

func decodeAddTokensOnSui(r *reader) (Payload, error) {
	native, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if native > 1 {
		return nil, fmt.Errorf("%w: native flag %d", ErrInvalidPayloadLength, native)
	}
	count, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return &AddTokensOnSuiPayload{Native: native == 1}, nil
	}
	ids, err := r.readN(int(count))
	if err != nil {
		return nil, err
	}
	names := make([]string, count)
	for i := range names {
		nameLen, err := r.readByte()
		if err != nil {
			return nil, err
		}
		name, err := r.readN(int(nameLen))
		if err != nil {
			return nil, err
		}
		names[i] = string(name)
	}
	prices := make([]uint64, count)
	for i := range prices {
		prices[i], err = r.readUint64()
		if err != nil {
			return nil, err
		}
	}
	tokenIDs := make([]uint8, count)
	copy(tokenIDs, ids)
	return &AddTokensOnSuiPayload{
		Native:    native == 1,
		TokenIDs:  tokenIDs,
		TypeNames: names,
		Prices:    prices,
	}, nil
}

// reader consumes wire bytes front to back, failing short reads with
// ErrInvalidPayloadLength.
type reader struct {
	buf []byte
	off int
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("%w: unexpected end of input at offset %d", ErrInvalidPayloadLength, r.off)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) readN(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrInvalidPayloadLength, n, r.off, r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) readUint64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}
