// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge sequences bridge messages and coordinates the committee,
// the transfer rate limiter and the treasury. It is the only package that
// mutates cross-component state; the host chain owns a Bridge instance
// and serializes all calls against it.
package bridge

import (
	"bytes"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/bridge/chainid"
	"github.com/luxfi/bridge/committee"
	"github.com/luxfi/bridge/limiter"
	"github.com/luxfi/bridge/message"
	"github.com/luxfi/bridge/treasury"
)

// SystemAddress is the privileged caller for bootstrap-only operations
// such as committee registration.
var SystemAddress = crypto.Address{}

type bridgeMetrics struct {
	messagesExecuted metric.CounterVec
	transferRecords  metric.GaugeVec
	frozen           metric.Gauge
}

// Bridge is the orchestrator: one monotonically increasing sequence
// counter per message type, the transfer-record store, and the frozen
// flag flipped by committee-approved emergency ops.
type Bridge struct {
	log     log.Logger
	metrics bridgeMetrics

	chainID   chainid.ChainID
	committee *committee.Committee
	limiter   *limiter.TransferLimiter
	treasury  *treasury.Treasury

	seqNums   map[message.Type]uint64
	records   map[message.Key]*TransferRecord
	processed map[message.Key]struct{}
	frozen    bool
}

// New returns a bridge for the local chain id.
func New(
	logger log.Logger,
	registerer metric.Registerer,
	namespace string,
	localChain chainid.ChainID,
	cmt *committee.Committee,
	lim *limiter.TransferLimiter,
	tsy *treasury.Treasury,
) (*Bridge, error) {
	if !localChain.Valid() {
		return nil, fmt.Errorf("%w: %s", chainid.ErrInvalidBridgeRoute, localChain)
	}
	return &Bridge{
		log: logger,
		metrics: bridgeMetrics{
			messagesExecuted: metric.NewCounterVec(
				metric.CounterOpts{
					Namespace: namespace,
					Name:      "bridge_messages_executed",
					Help:      "committee-approved messages executed by type",
				},
				[]string{"type"},
			),
			transferRecords: metric.NewGaugeVec(
				metric.GaugeOpts{
					Namespace: namespace,
					Name:      "bridge_transfer_records",
					Help:      "transfer records by state",
				},
				[]string{"state"},
			),
			frozen: metric.NewGauge(metric.GaugeOpts{
				Namespace: namespace,
				Name:      "bridge_frozen",
				Help:      "1 while the bridge is paused",
			}),
		},
		chainID:   localChain,
		committee: cmt,
		limiter:   lim,
		treasury:  tsy,
		seqNums:   make(map[message.Type]uint64),
		records:   make(map[message.Key]*TransferRecord),
		processed: make(map[message.Key]struct{}),
	}, nil
}

// Committee returns the bridge committee.
func (b *Bridge) Committee() *committee.Committee { return b.committee }

// Limiter returns the transfer rate limiter.
func (b *Bridge) Limiter() *limiter.TransferLimiter { return b.limiter }

// Treasury returns the asset registry.
func (b *Bridge) Treasury() *treasury.Treasury { return b.treasury }

// Frozen reports whether the bridge is paused.
func (b *Bridge) Frozen() bool { return b.frozen }

// RegisterCommitteeMember forwards a registration through the privileged
// bootstrap path. Only the system address may call it.
func (b *Bridge) RegisterCommitteeMember(
	snap committee.Snapshot,
	sender crypto.Address,
	registrant ids.NodeID,
	pubkey []byte,
	nodeURL string,
) error {
	if sender != SystemAddress {
		return fmt.Errorf("%w: %s", ErrNotSystemAddress, sender.Hex())
	}
	return b.committee.Register(snap, registrant, pubkey, nodeURL)
}

// GetCurrentSeqNumAndIncrement returns the next sequence number for
// msgType and advances the counter. Counters start at 0 on first use and
// are independent across message types.
func (b *Bridge) GetCurrentSeqNumAndIncrement(msgType message.Type) uint64 {
	seq := b.seqNums[msgType]
	b.seqNums[msgType] = seq + 1
	return seq
}

// SendTokenTransfer admits an outbound transfer: the bridge must not be
// frozen, the route must be under its rolling limit, and only then is a
// sequence number consumed and a pending record created.
func (b *Bridge) SendTokenTransfer(
	nowMS uint64,
	senderAddress []byte,
	targetChain chainid.ChainID,
	targetAddress []byte,
	tokenID uint8,
	amount uint64,
) (*message.Message, error) {
	if b.frozen {
		return nil, ErrBridgeUnavailable
	}
	route, err := chainid.NewRoute(b.chainID, targetChain)
	if err != nil {
		return nil, err
	}

	// Build the message before touching the limiter or the sequence
	// counter: a transfer that fails validation must leave both exactly
	// as they were.
	seq := b.seqNums[message.TokenTransfer]
	msg, err := message.NewTokenTransfer(
		seq, b.chainID, senderAddress, targetChain, targetAddress, tokenID, amount)
	if err != nil {
		return nil, err
	}

	admitted, err := b.limiter.CheckAndRecordSendingTransfer(b.treasury, nowMS, route, tokenID, amount)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, fmt.Errorf("%w: route %s", ErrLimitExceeded, route)
	}

	b.seqNums[message.TokenTransfer] = seq + 1
	b.records[msg.Key()] = &TransferRecord{Message: msg}
	b.updateRecordMetrics()
	b.log.Debug("outbound transfer recorded",
		log.Uint64("seqNum", seq),
		log.Stringer("route", route),
		log.Int("tokenID", int(tokenID)),
		log.Uint64("amount", amount),
	)
	return msg, nil
}

// ApproveTokenTransfer verifies the committee signatures over a token
// transfer and marks its record approved. Approval is idempotent:
// re-approving never overwrites the stored signatures and never reverts
// a claim.
func (b *Bridge) ApproveTokenTransfer(msg *message.Message, sigs [][]byte) error {
	if msg.Type != message.TokenTransfer {
		return fmt.Errorf("%w: %s", message.ErrInvalidMessageType, msg.Type)
	}
	if err := b.committee.VerifySignatures(msg, sigs); err != nil {
		return err
	}

	key := msg.Key()
	record, ok := b.records[key]
	if !ok {
		// Inbound transfer: the first time this chain sees it is at
		// approval.
		b.records[key] = &TransferRecord{Message: msg, Signatures: sigs}
		b.updateRecordMetrics()
		return nil
	}
	if err := sameMessage(record.Message, msg); err != nil {
		return err
	}
	if record.Claimed || record.Signatures != nil {
		return nil
	}
	record.Signatures = sigs
	b.updateRecordMetrics()
	return nil
}

// ClaimTokenTransfer marks an approved transfer claimed and reports the
// record's resulting status. Claiming an already-claimed record is a safe
// no-op that reports TransferClaimed again; claiming a pending record
// fails.
func (b *Bridge) ClaimTokenTransfer(key message.Key) (TransferStatus, error) {
	record, ok := b.records[key]
	if !ok {
		return TransferNotFound, fmt.Errorf("%w: %x", ErrRecordNotFound, key)
	}
	switch record.status() {
	case TransferClaimed:
		return TransferClaimed, nil
	case TransferPending:
		return TransferPending, fmt.Errorf("%w: %x", ErrTransferNotApproved, key)
	}
	record.Claimed = true
	b.updateRecordMetrics()
	return TransferClaimed, nil
}

// TransferStatus returns the record state for key.
func (b *Bridge) TransferStatus(key message.Key) TransferStatus {
	record, ok := b.records[key]
	if !ok {
		return TransferNotFound
	}
	return record.status()
}

// Execute applies a committee-approved governance message: emergency ops,
// blocklist updates, limit updates, asset price updates and token
// registrations. A message key is consumed exactly once; replays fail.
func (b *Bridge) Execute(msg *message.Message, sigs [][]byte) error {
	if msg.Type == message.TokenTransfer {
		return fmt.Errorf("%w: token transfers are approved, not executed", message.ErrInvalidMessageType)
	}
	key := msg.Key()
	if _, ok := b.processed[key]; ok {
		return fmt.Errorf("%w: %x", ErrMessageAlreadyProcessed, key)
	}
	if err := b.committee.VerifySignatures(msg, sigs); err != nil {
		return err
	}

	var err error
	switch payload := msg.Payload.(type) {
	case *message.EmergencyOpPayload:
		err = b.executeEmergencyOp(payload)
	case *message.BlocklistPayload:
		err = b.committee.ExecuteBlocklist(msg.SeqNum, payload)
	case *message.UpdateBridgeLimitPayload:
		err = b.executeLimitUpdate(msg.SourceChain, payload)
	case *message.UpdateAssetPricePayload:
		err = b.treasury.UpdateAssetPrice(payload)
	case *message.AddTokensOnSuiPayload:
		err = b.executeAddTokens(msg.SourceChain, payload)
	default:
		err = fmt.Errorf("%w: %s", message.ErrInvalidMessageType, msg.Type)
	}
	if err != nil {
		return err
	}

	b.processed[key] = struct{}{}
	b.metrics.messagesExecuted.With(map[string]string{"type": msg.Type.String()}).Inc()
	b.log.Info("bridge message executed",
		log.Stringer("type", msg.Type),
		log.Uint64("seqNum", msg.SeqNum),
		log.Stringer("sourceChain", msg.SourceChain),
	)
	return nil
}

func (b *Bridge) executeEmergencyOp(payload *message.EmergencyOpPayload) error {
	switch payload.Op {
	case message.Pause:
		if b.frozen {
			return ErrAlreadyPaused
		}
		b.frozen = true
		b.metrics.frozen.Set(1)
	case message.Unpause:
		if !b.frozen {
			return ErrNotPaused
		}
		b.frozen = false
		b.metrics.frozen.Set(0)
	default:
		return fmt.Errorf("%w: %d", message.ErrInvalidEmergencyOpType, payload.Op)
	}
	return nil
}

func (b *Bridge) executeLimitUpdate(sourceChain chainid.ChainID, payload *message.UpdateBridgeLimitPayload) error {
	// The receiving chain is implied by the envelope's source chain; a
	// command addressed to another chain must not execute here.
	if sourceChain != b.chainID {
		return fmt.Errorf("%w: limit update for %s executed on %s",
			ErrUnexpectedChainID, sourceChain, b.chainID)
	}
	route, err := chainid.NewRoute(payload.SendingChain, b.chainID)
	if err != nil {
		return err
	}
	b.limiter.UpdateRouteLimit(route, payload.NewLimit)
	return nil
}

func (b *Bridge) executeAddTokens(sourceChain chainid.ChainID, payload *message.AddTokensOnSuiPayload) error {
	if sourceChain != b.chainID {
		return fmt.Errorf("%w: token registration for %s executed on %s",
			ErrUnexpectedChainID, sourceChain, b.chainID)
	}
	return b.treasury.RegisterTokens(payload)
}

func (b *Bridge) updateRecordMetrics() {
	counts := map[TransferStatus]int{}
	for _, record := range b.records {
		counts[record.status()]++
	}
	for _, state := range []TransferStatus{TransferPending, TransferApproved, TransferClaimed} {
		b.metrics.transferRecords.
			With(map[string]string{"state": state.String()}).
			Set(float64(counts[state]))
	}
}

// sameMessage fails with ErrRecordMismatch unless a and b encode to the
// same canonical bytes.
func sameMessage(a, c *message.Message) error {
	ab, err := message.Encode(a)
	if err != nil {
		return err
	}
	cb, err := message.Encode(c)
	if err != nil {
		return err
	}
	if !bytes.Equal(ab, cb) {
		return ErrRecordMismatch
	}
	return nil
}
