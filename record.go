// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import "github.com/luxfi/bridge/message"

// TransferStatus is the lifecycle state of a transfer record. The numeric
// values are shared with counterpart chains.
type TransferStatus uint8

const (
	TransferPending  TransferStatus = 0
	TransferApproved TransferStatus = 1
	TransferClaimed  TransferStatus = 2
	TransferNotFound TransferStatus = 3
)

func (s TransferStatus) String() string {
	switch s {
	case TransferPending:
		return "pending"
	case TransferApproved:
		return "approved"
	case TransferClaimed:
		return "claimed"
	case TransferNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// TransferRecord tracks one token transfer through
// pending -> approved -> claimed. Transitions are one-directional:
// approving never overwrites existing signatures and claiming is never
// reverted.
type TransferRecord struct {
	Message    *message.Message
	Signatures [][]byte
	Claimed    bool
}

func (r *TransferRecord) status() TransferStatus {
	switch {
	case r.Claimed:
		return TransferClaimed
	case r.Signatures != nil:
		return TransferApproved
	default:
		return TransferPending
	}
}
