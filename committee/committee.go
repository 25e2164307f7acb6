// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package committee maintains the bridge committee: member registration,
// one-time finalization against a weighted validator snapshot, member
// blocklisting, and threshold verification of committee signatures.
package committee

import (
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/metric"

	"github.com/luxfi/bridge/message"
)

const (
	// PubkeyLength is the size of a compressed secp256k1 public key.
	PubkeyLength = 33

	// SignatureLength is the size of a recoverable [R || S || V] signature.
	SignatureLength = 65

	// TotalVotingPower is the full committee authority in basis points.
	TotalVotingPower uint64 = 10000
)

var (
	ErrCommitteeAlreadyInitiated = errors.New("committee already initiated")
	ErrSenderNotActiveValidator  = errors.New("sender is not an active validator")
	ErrInvalidPubkeyLength       = errors.New("invalid pubkey length")

	ErrInvalidSignature         = errors.New("invalid signature")
	ErrDuplicatedSignature      = errors.New("duplicated signature")
	ErrSignatureBelowThreshold  = errors.New("signature voting power below threshold")
	ErrBlocklistUnknownKey      = errors.New("validator blocklist contains unknown key")
	ErrSenderNotCommitteeMember = errors.New("sender is not in bridge committee")
)

// Snapshot is the host-supplied, point-in-time view of the weighted
// validator set. The committee never fetches this itself; it is passed in
// at call time.
type Snapshot interface {
	// Validator returns a validator's stake weight in basis points of the
	// whole network and whether it is currently active. ok is false for
	// unknown validators.
	Validator(nodeID ids.NodeID) (stakeBP uint64, active bool, ok bool)
}

// Member is a finalized committee member, keyed by the Ethereum-style
// address derived from its pubkey.
type Member struct {
	Address     crypto.Address
	Pubkey      [PubkeyLength]byte
	VotingPower uint64
	NodeURL     string
	Blocklisted bool
}

// Registration is a pending membership request, held until the committee
// finalizes.
type Registration struct {
	NodeID  ids.NodeID
	Pubkey  [PubkeyLength]byte
	NodeURL string
}

type committeeMetrics struct {
	verifications metric.CounterVec
	votingPower   metric.Gauge
	members       metric.Gauge
}

// Committee holds membership and verifies weighted committee signatures.
// Callers must serialize mutating access; the committee performs no
// internal locking.
type Committee struct {
	log     log.Logger
	metrics committeeMetrics

	members          map[crypto.Address]*Member
	registrations    map[ids.NodeID]*Registration
	lastBlocklistSeq uint64
	finalized        bool
}

// New returns an empty, unfinalized committee.
func New(logger log.Logger, registerer metric.Registerer, namespace string) *Committee {
	return &Committee{
		log: logger,
		metrics: committeeMetrics{
			verifications: metric.NewCounterVec(
				metric.CounterOpts{
					Namespace: namespace,
					Name:      "committee_verifications",
					Help:      "signature set verifications by result",
				},
				[]string{"result"},
			),
			votingPower: metric.NewGauge(metric.GaugeOpts{
				Namespace: namespace,
				Name:      "committee_voting_power",
				Help:      "total voting power of non-blocklisted members (bp)",
			}),
			members: metric.NewGauge(metric.GaugeOpts{
				Namespace: namespace,
				Name:      "committee_members",
				Help:      "number of finalized committee members",
			}),
		},
		members:       make(map[crypto.Address]*Member),
		registrations: make(map[ids.NodeID]*Registration),
	}
}

// Register records a membership request from an active validator.
// Re-registration by the same validator replaces the pending entry rather
// than duplicating it. Registration closes once membership finalizes.
func (c *Committee) Register(snap Snapshot, registrant ids.NodeID, pubkey []byte, nodeURL string) error {
	if c.finalized {
		return ErrCommitteeAlreadyInitiated
	}
	if len(pubkey) != PubkeyLength {
		return fmt.Errorf("%w: %d bytes", ErrInvalidPubkeyLength, len(pubkey))
	}
	if _, err := crypto.DecompressPubkey(pubkey); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPubkeyLength, err)
	}
	if _, active, ok := snap.Validator(registrant); !ok || !active {
		return fmt.Errorf("%w: %s", ErrSenderNotActiveValidator, registrant)
	}

	reg := &Registration{NodeID: registrant, NodeURL: nodeURL}
	copy(reg.Pubkey[:], pubkey)
	c.registrations[registrant] = reg
	c.log.Debug("committee registration recorded",
		log.Stringer("registrant", registrant),
		log.Int("pendingRegistrations", len(c.registrations)),
	)
	return nil
}

// TryCreateNextCommittee finalizes membership once enough registered
// stake has accumulated. Registrants that went inactive since registering
// contribute nothing. Below minStakeBP, or after finalization, the call
// is a safe no-op and membership is left untouched. On success each
// member's voting power is re-derived proportionally among the finalized
// set, truncating toward zero.
func (c *Committee) TryCreateNextCommittee(snap Snapshot, minStakeBP uint64) error {
	if c.finalized {
		c.log.Debug("committee already finalized, ignoring")
		return nil
	}

	totalStakeBP := uint64(0)
	for nodeID := range c.registrations {
		if stakeBP, active, ok := snap.Validator(nodeID); ok && active {
			totalStakeBP += stakeBP
		}
	}
	if totalStakeBP < minStakeBP {
		c.log.Info("insufficient registered stake for committee",
			log.Uint64("registeredStakeBP", totalStakeBP),
			log.Uint64("minStakeBP", minStakeBP),
		)
		return nil
	}

	for nodeID, reg := range c.registrations {
		stakeBP, active, ok := snap.Validator(nodeID)
		if !ok || !active {
			continue
		}
		pub, err := crypto.DecompressPubkey(reg.Pubkey[:])
		if err != nil {
			// Key bytes were validated at registration time.
			return fmt.Errorf("%w: registrant %s: %s", ErrInvalidPubkeyLength, nodeID, err)
		}
		addr := crypto.PubkeyToAddress(*pub)
		c.members[addr] = &Member{
			Address:     addr,
			Pubkey:      reg.Pubkey,
			VotingPower: stakeBP * TotalVotingPower / totalStakeBP,
			NodeURL:     reg.NodeURL,
		}
	}
	c.finalized = true
	c.metrics.members.Set(float64(len(c.members)))
	c.metrics.votingPower.Set(float64(c.TotalVotingPower()))
	c.log.Info("bridge committee finalized",
		log.Int("members", len(c.members)),
		log.Uint64("registeredStakeBP", totalStakeBP),
	)
	return nil
}

// Finalized reports whether membership has been fixed.
func (c *Committee) Finalized() bool {
	return c.finalized
}

// Member returns the finalized member at addr.
func (c *Committee) Member(addr crypto.Address) (*Member, bool) {
	m, ok := c.members[addr]
	return m, ok
}

// Members returns the number of finalized members.
func (c *Committee) Members() int {
	return len(c.members)
}

// TotalVotingPower sums the voting power of all non-blocklisted members.
// It is recomputed on every call so a blocklist change can never be
// observed through a stale cache.
func (c *Committee) TotalVotingPower() uint64 {
	total := uint64(0)
	for _, m := range c.members {
		if !m.Blocklisted {
			total += m.VotingPower
		}
	}
	return total
}

// VerifySignatures checks that sigs carry enough non-blocklisted voting
// power to authorize msg. Each signature is a 65-byte recoverable
// signature over keccak256(SigningPrefix || Encode(msg)). A signature
// recovering to an unknown key fails the whole set, as does any duplicate
// signer. Blocklisted signers contribute zero power.
func (c *Committee) VerifySignatures(msg *message.Message, sigs [][]byte) error {
	signingBytes, err := message.SigningBytes(msg)
	if err != nil {
		return err
	}
	digest := crypto.Keccak256(signingBytes)

	seen := set.NewSet[crypto.Address](len(sigs))
	accumulated := uint64(0)
	for i, sig := range sigs {
		if len(sig) != SignatureLength {
			c.metrics.verifications.With(map[string]string{"result": "invalid_signature"}).Inc()
			return fmt.Errorf("%w: signature %d is %d bytes", ErrInvalidSignature, i, len(sig))
		}
		pub, err := crypto.SigToPub(digest, sig)
		if err != nil {
			c.metrics.verifications.With(map[string]string{"result": "invalid_signature"}).Inc()
			return fmt.Errorf("%w: signature %d: %s", ErrInvalidSignature, i, err)
		}
		addr := crypto.PubkeyToAddress(*pub)
		member, ok := c.members[addr]
		if !ok {
			c.metrics.verifications.With(map[string]string{"result": "invalid_signature"}).Inc()
			return fmt.Errorf("%w: signature %d recovered unknown signer %s", ErrInvalidSignature, i, addr.Hex())
		}
		if seen.Contains(addr) {
			c.metrics.verifications.With(map[string]string{"result": "duplicated_signature"}).Inc()
			return fmt.Errorf("%w: signer %s", ErrDuplicatedSignature, addr.Hex())
		}
		seen.Add(addr)
		if !member.Blocklisted {
			accumulated += member.VotingPower
		}
	}

	if required := msg.RequiredVotingPower(); accumulated < required {
		c.metrics.verifications.With(map[string]string{"result": "below_threshold"}).Inc()
		return fmt.Errorf("%w: accumulated %d, required %d",
			ErrSignatureBelowThreshold, accumulated, required)
	}
	c.metrics.verifications.With(map[string]string{"result": "ok"}).Inc()
	return nil
}

// ExecuteBlocklist applies a committee-approved blocklist command. The
// batch is atomic: if any listed address is not a member, no member is
// touched. Unblocking only ever clears the addresses explicitly listed.
func (c *Committee) ExecuteBlocklist(seqNum uint64, payload *message.BlocklistPayload) error {
	for _, addr := range payload.Members {
		if _, ok := c.members[addr]; !ok {
			return fmt.Errorf("%w: %s", ErrBlocklistUnknownKey, addr.Hex())
		}
	}
	blocklisted := payload.Kind == message.Blocklist
	for _, addr := range payload.Members {
		c.members[addr].Blocklisted = blocklisted
	}
	c.lastBlocklistSeq = seqNum
	c.metrics.votingPower.Set(float64(c.TotalVotingPower()))
	c.log.Info("committee blocklist executed",
		log.Uint64("seqNum", seqNum),
		log.Int("members", len(payload.Members)),
		log.Bool("blocklisted", blocklisted),
	)
	return nil
}

// LastBlocklistSeq returns the sequence number of the most recently
// executed blocklist command.
func (c *Committee) LastBlocklistSeq() uint64 {
	return c.lastBlocklistSeq
}

// UpdateNodeURL lets a finalized member overwrite its own node URL.
func (c *Committee) UpdateNodeURL(caller crypto.Address, nodeURL string) error {
	member, ok := c.members[caller]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSenderNotCommitteeMember, caller.Hex())
	}
	member.NodeURL = nodeURL
	return nil
}
