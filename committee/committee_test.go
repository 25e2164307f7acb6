// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package committee_test

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridge/bridgetest"
	"github.com/luxfi/bridge/chainid"
	"github.com/luxfi/bridge/committee"
	"github.com/luxfi/bridge/message"
)

func newCommittee() *committee.Committee {
	return committee.New(log.NewNoOpLogger(), metric.NewRegistry(), "test")
}

func TestRegister(t *testing.T) {
	require := require.New(t)

	keys := bridgetest.Keys(t)
	nodeID := ids.GenerateTestNodeID()
	inactiveNodeID := ids.GenerateTestNodeID()
	snap := bridgetest.Snapshot{
		nodeID:         {StakeBP: 10000, Active: true},
		inactiveNodeID: {StakeBP: 10000, Active: false},
	}

	c := newCommittee()

	err := c.Register(snap, nodeID, bridgetest.Pubkey(keys[0])[:16], "https://a.example")
	require.ErrorIs(err, committee.ErrInvalidPubkeyLength)

	badPubkey := make([]byte, committee.PubkeyLength)
	err = c.Register(snap, nodeID, badPubkey, "https://a.example")
	require.ErrorIs(err, committee.ErrInvalidPubkeyLength)

	err = c.Register(snap, inactiveNodeID, bridgetest.Pubkey(keys[0]), "https://a.example")
	require.ErrorIs(err, committee.ErrSenderNotActiveValidator)

	err = c.Register(snap, ids.GenerateTestNodeID(), bridgetest.Pubkey(keys[0]), "https://a.example")
	require.ErrorIs(err, committee.ErrSenderNotActiveValidator)

	// Re-registration replaces the pending entry.
	require.NoError(c.Register(snap, nodeID, bridgetest.Pubkey(keys[0]), "https://a.example"))
	require.NoError(c.Register(snap, nodeID, bridgetest.Pubkey(keys[1]), "https://b.example"))

	require.NoError(c.TryCreateNextCommittee(snap, 1))
	require.True(c.Finalized())
	require.Equal(1, c.Members())

	_, ok := c.Member(bridgetest.Address(keys[0]))
	require.False(ok)
	member, ok := c.Member(bridgetest.Address(keys[1]))
	require.True(ok)
	require.Equal("https://b.example", member.NodeURL)

	// Registration closes once membership is fixed.
	err = c.Register(snap, nodeID, bridgetest.Pubkey(keys[2]), "https://c.example")
	require.ErrorIs(err, committee.ErrCommitteeAlreadyInitiated)
}

func TestTryCreateNextCommittee(t *testing.T) {
	require := require.New(t)

	keys := bridgetest.Keys(t)
	nodeIDs := []ids.NodeID{ids.GenerateTestNodeID(), ids.GenerateTestNodeID()}
	snap := bridgetest.Snapshot{
		nodeIDs[0]: {StakeBP: 3333, Active: true},
		nodeIDs[1]: {StakeBP: 3333, Active: true},
	}

	c := newCommittee()
	for i, nodeID := range nodeIDs {
		require.NoError(c.Register(snap, nodeID, bridgetest.Pubkey(keys[i]), "https://bridge.example"))
	}

	// Below the stake floor nothing happens.
	require.NoError(c.TryCreateNextCommittee(snap, 9000))
	require.False(c.Finalized())
	require.Zero(c.Members())

	// 3333 + 3333 registered splits the full authority evenly: each member
	// ends up with 5000 of 10000.
	require.NoError(c.TryCreateNextCommittee(snap, 6000))
	require.True(c.Finalized())
	require.Equal(2, c.Members())
	require.Equal(committee.TotalVotingPower, c.TotalVotingPower())
	for i := range keys[:2] {
		member, ok := c.Member(bridgetest.Address(keys[i]))
		require.True(ok)
		require.Equal(uint64(5000), member.VotingPower)
	}

	// Repeat calls are no-ops.
	require.NoError(c.TryCreateNextCommittee(snap, 1))
	require.Equal(2, c.Members())
}

func TestTryCreateNextCommitteeSkipsInactive(t *testing.T) {
	require := require.New(t)

	keys := bridgetest.Keys(t)
	nodeIDs := []ids.NodeID{ids.GenerateTestNodeID(), ids.GenerateTestNodeID()}
	snap := bridgetest.Snapshot{
		nodeIDs[0]: {StakeBP: 5000, Active: true},
		nodeIDs[1]: {StakeBP: 5000, Active: true},
	}

	c := newCommittee()
	for i, nodeID := range nodeIDs {
		require.NoError(c.Register(snap, nodeID, bridgetest.Pubkey(keys[i]), "https://bridge.example"))
	}

	// The second registrant went inactive between registration and
	// finalization. The survivor absorbs the full authority.
	snap[nodeIDs[1]] = bridgetest.Validator{StakeBP: 5000, Active: false}
	require.NoError(c.TryCreateNextCommittee(snap, 1))
	require.True(c.Finalized())
	require.Equal(1, c.Members())

	member, ok := c.Member(bridgetest.Address(keys[0]))
	require.True(ok)
	require.Equal(committee.TotalVotingPower, member.VotingPower)
}

func TestVerifySignatures(t *testing.T) {
	require := require.New(t)

	c, keys := bridgetest.NewCommittee(t, []uint64{3333, 3333})

	msg, err := message.NewTokenTransfer(
		1,
		chainid.SuiCustom,
		make([]byte, 32),
		chainid.EthCustom,
		make([]byte, 20),
		0,
		100,
	)
	require.NoError(err)

	sig0 := bridgetest.Sign(t, keys[0], msg)
	sig1 := bridgetest.Sign(t, keys[1], msg)

	// A token transfer needs 3334 of 10000. One 5000-power member clears
	// it; so do both.
	require.NoError(c.VerifySignatures(msg, [][]byte{sig0}))
	require.NoError(c.VerifySignatures(msg, [][]byte{sig0, sig1}))

	err = c.VerifySignatures(msg, nil)
	require.ErrorIs(err, committee.ErrSignatureBelowThreshold)

	err = c.VerifySignatures(msg, [][]byte{sig0[:64]})
	require.ErrorIs(err, committee.ErrInvalidSignature)

	err = c.VerifySignatures(msg, [][]byte{sig0, sig0})
	require.ErrorIs(err, committee.ErrDuplicatedSignature)

	// A signature from a key outside the committee fails the whole set
	// even when the rest would clear the threshold on their own.
	outsider := bridgetest.Keys(t)[3]
	err = c.VerifySignatures(msg, [][]byte{sig0, sig1, bridgetest.Sign(t, outsider, msg)})
	require.ErrorIs(err, committee.ErrInvalidSignature)

	// A signature over different bytes recovers to an unknown address.
	other, err := message.NewEmergencyOp(1, chainid.SuiCustom, message.Pause)
	require.NoError(err)
	err = c.VerifySignatures(msg, [][]byte{bridgetest.Sign(t, keys[0], other)})
	require.ErrorIs(err, committee.ErrInvalidSignature)
}

func TestVerifySignaturesThreshold(t *testing.T) {
	require := require.New(t)

	// Three equal members at 3333 each. A token transfer needs 3334, so
	// one signer alone is short by exactly one basis point.
	c, keys := bridgetest.NewCommittee(t, []uint64{1000, 1000, 1000})

	msg, err := message.NewTokenTransfer(
		7,
		chainid.SuiCustom,
		make([]byte, 32),
		chainid.EthCustom,
		make([]byte, 20),
		0,
		100,
	)
	require.NoError(err)

	err = c.VerifySignatures(msg, [][]byte{bridgetest.Sign(t, keys[0], msg)})
	require.ErrorIs(err, committee.ErrSignatureBelowThreshold)

	require.NoError(c.VerifySignatures(msg, [][]byte{
		bridgetest.Sign(t, keys[0], msg),
		bridgetest.Sign(t, keys[1], msg),
	}))
}

func TestVerifySignaturesBlocklisted(t *testing.T) {
	require := require.New(t)

	c, keys := bridgetest.NewCommittee(t, []uint64{5000, 5000})

	blocklist, err := message.NewBlocklist(1, chainid.SuiCustom, message.Blocklist, [][]byte{
		bridgetest.Address(keys[0]).Bytes(),
	})
	require.NoError(err)
	require.NoError(c.ExecuteBlocklist(1, blocklist.Payload.(*message.BlocklistPayload)))
	require.Equal(uint64(5000), c.TotalVotingPower())

	msg, err := message.NewEmergencyOp(2, chainid.SuiCustom, message.Unpause)
	require.NoError(err)

	// The blocklisted member still signs valid bytes but contributes
	// nothing toward the 5001 unpause threshold.
	err = c.VerifySignatures(msg, [][]byte{
		bridgetest.Sign(t, keys[0], msg),
		bridgetest.Sign(t, keys[1], msg),
	})
	require.ErrorIs(err, committee.ErrSignatureBelowThreshold)

	// Unblocking restores the member's power.
	unblock, err := message.NewBlocklist(2, chainid.SuiCustom, message.Unblocklist, [][]byte{
		bridgetest.Address(keys[0]).Bytes(),
	})
	require.NoError(err)
	require.NoError(c.ExecuteBlocklist(2, unblock.Payload.(*message.BlocklistPayload)))
	require.Equal(committee.TotalVotingPower, c.TotalVotingPower())
	require.NoError(c.VerifySignatures(msg, [][]byte{
		bridgetest.Sign(t, keys[0], msg),
		bridgetest.Sign(t, keys[1], msg),
	}))
}

func TestExecuteBlocklistAtomic(t *testing.T) {
	require := require.New(t)

	c, keys := bridgetest.NewCommittee(t, []uint64{5000, 5000})

	// One unknown address poisons the whole batch.
	unknown := bridgetest.Address(bridgetest.Keys(t)[3])
	blocklist, err := message.NewBlocklist(1, chainid.SuiCustom, message.Blocklist, [][]byte{
		bridgetest.Address(keys[0]).Bytes(),
		unknown.Bytes(),
	})
	require.NoError(err)

	err = c.ExecuteBlocklist(1, blocklist.Payload.(*message.BlocklistPayload))
	require.ErrorIs(err, committee.ErrBlocklistUnknownKey)
	require.Equal(committee.TotalVotingPower, c.TotalVotingPower())
	require.Zero(c.LastBlocklistSeq())

	member, ok := c.Member(bridgetest.Address(keys[0]))
	require.True(ok)
	require.False(member.Blocklisted)
}

func TestExecuteBlocklistOrderIndependent(t *testing.T) {
	require := require.New(t)

	run := func(members [][]byte) *committee.Committee {
		c, _ := bridgetest.NewCommittee(t, []uint64{5000, 5000})
		blocklist, err := message.NewBlocklist(1, chainid.SuiCustom, message.Blocklist, members)
		require.NoError(err)
		require.NoError(c.ExecuteBlocklist(1, blocklist.Payload.(*message.BlocklistPayload)))
		return c
	}

	keys := bridgetest.Keys(t)[:2]
	forward := [][]byte{bridgetest.Address(keys[0]).Bytes(), bridgetest.Address(keys[1]).Bytes()}
	reverse := [][]byte{forward[1], forward[0]}

	cForward := run(forward)
	cReverse := run(reverse)
	for _, key := range keys {
		mf, ok := cForward.Member(bridgetest.Address(key))
		require.True(ok)
		mr, ok := cReverse.Member(bridgetest.Address(key))
		require.True(ok)
		require.True(mf.Blocklisted)
		require.True(mr.Blocklisted)
	}
	require.Zero(cForward.TotalVotingPower())
	require.Zero(cReverse.TotalVotingPower())
}

func TestUpdateNodeURL(t *testing.T) {
	require := require.New(t)

	c, keys := bridgetest.NewCommittee(t, []uint64{10000})

	require.NoError(c.UpdateNodeURL(bridgetest.Address(keys[0]), "https://new.example"))
	member, ok := c.Member(bridgetest.Address(keys[0]))
	require.True(ok)
	require.Equal("https://new.example", member.NodeURL)

	outsider := bridgetest.Address(bridgetest.Keys(t)[3])
	err := c.UpdateNodeURL(outsider, "https://evil.example")
	require.ErrorIs(err, committee.ErrSenderNotCommitteeMember)
}
