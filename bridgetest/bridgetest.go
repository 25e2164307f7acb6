// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridgetest provides deterministic fixtures shared by the bridge
// package tests: fixed committee keys, snapshot fakes and signing
// helpers.
package bridgetest

import (
	"crypto/ecdsa"
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridge/committee"
	"github.com/luxfi/bridge/message"
)

// Fixed secp256k1 private keys so that member addresses, and therefore
// expected bytes in regression tests, never change between runs.
var testKeyHex = []string{
	"e42c82337ce12d4a7ad6cd65876d91b2ab6594fd50cdab1737c91773ba7451db",
	"1aacd610da3d0cc691a04b83b01c34c6c65cda0fe8d502df25ff4b3185c85687",
	"53e7baf8378fbc62692e3056c2e10c6666ef8b5b3a53914830f47636d1678140",
	"08b5350a091faabd5f25b6e290bfc3f505d43208775b9110dfed5ee6c7a653f0",
}

// Keys returns the fixed test keys.
func Keys(tb testing.TB) []*ecdsa.PrivateKey {
	keys := make([]*ecdsa.PrivateKey, len(testKeyHex))
	for i, hexKey := range testKeyHex {
		key, err := crypto.HexToECDSA(hexKey)
		require.NoError(tb, err)
		keys[i] = key
	}
	return keys
}

// Address returns the committee member address for key.
func Address(key *ecdsa.PrivateKey) crypto.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Pubkey returns key's compressed 33-byte public key.
func Pubkey(key *ecdsa.PrivateKey) []byte {
	return crypto.CompressPubkey(&key.PublicKey)
}

// Sign returns key's 65-byte recoverable signature over msg's signing
// preimage.
func Sign(tb testing.TB, key *ecdsa.PrivateKey, msg *message.Message) []byte {
	signingBytes, err := message.SigningBytes(msg)
	require.NoError(tb, err)
	sig, err := crypto.Sign(crypto.Keccak256(signingBytes), key)
	require.NoError(tb, err)
	return sig
}

// Validator is one entry of a snapshot fake.
type Validator struct {
	StakeBP uint64
	Active  bool
}

// Snapshot is an in-memory committee.Snapshot.
type Snapshot map[ids.NodeID]Validator

func (s Snapshot) Validator(nodeID ids.NodeID) (uint64, bool, bool) {
	v, ok := s[nodeID]
	return v.StakeBP, v.Active, ok
}

// NewCommittee returns a finalized committee whose members are the first
// len(stakesBP) fixed test keys, registered with the given snapshot stake
// weights, plus the keys in member order.
func NewCommittee(tb testing.TB, stakesBP []uint64) (*committee.Committee, []*ecdsa.PrivateKey) {
	require := require.New(tb)

	keys := Keys(tb)[:len(stakesBP)]
	snap := Snapshot{}
	nodeIDs := make([]ids.NodeID, len(stakesBP))
	for i, stake := range stakesBP {
		nodeIDs[i] = ids.GenerateTestNodeID()
		snap[nodeIDs[i]] = Validator{StakeBP: stake, Active: true}
	}

	c := committee.New(log.NewNoOpLogger(), metric.NewRegistry(), "test")
	for i, key := range keys {
		require.NoError(c.Register(snap, nodeIDs[i], Pubkey(key), "https://bridge.example"))
	}
	require.NoError(c.TryCreateNextCommittee(snap, 1))
	require.True(c.Finalized())
	return c, keys
}
