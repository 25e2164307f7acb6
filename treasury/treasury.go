// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package treasury is the bridge's asset registry. It maps token ids to
// their native decimal multipliers and USD notional prices, and applies
// committee-approved token registrations and price updates. The limiter
// consults it for every outbound transfer.
package treasury

import (
	"errors"
	"fmt"

	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/bridge/message"
)

// Well-known token ids shared with the counterpart chains.
const (
	TokenIDSui  uint8 = 0
	TokenIDBTC  uint8 = 1
	TokenIDEth  uint8 = 2
	TokenIDUSDC uint8 = 3
	TokenIDUSDT uint8 = 4
)

var (
	ErrUnknownToken           = errors.New("unknown token")
	ErrTokenAlreadyRegistered = errors.New("token already registered")
)

// Asset describes one supported token.
type Asset struct {
	TokenID uint8
	// TypeName is the canonical on-chain type of the token.
	TypeName string
	// NativeDecimals is the token's decimal count in its native units.
	NativeDecimals uint8
	// NotionalValue is the USD price of one whole token, fixed point.
	NotionalValue uint64
	// Native reports whether the asset originates on this chain.
	Native bool
}

// Treasury registers supported assets. Mutating calls must be serialized
// by the owner.
type Treasury struct {
	log    log.Logger
	assets map[uint8]*Asset
}

// New returns a treasury preloaded with the given assets.
func New(logger log.Logger, assets []Asset) (*Treasury, error) {
	t := &Treasury{
		log:    logger,
		assets: make(map[uint8]*Asset, len(assets)),
	}
	for i := range assets {
		a := assets[i]
		if _, ok := t.assets[a.TokenID]; ok {
			return nil, fmt.Errorf("%w: id %d", ErrTokenAlreadyRegistered, a.TokenID)
		}
		t.assets[a.TokenID] = &a
	}
	return t, nil
}

// DefaultAssets are the tokens registered at genesis, priced in USD fixed
// point (1e9 per whole USD).
func DefaultAssets() []Asset {
	return []Asset{
		{TokenID: TokenIDSui, TypeName: "0x2::sui::SUI", NativeDecimals: 9, NotionalValue: 1_000_000_000, Native: true},
		{TokenID: TokenIDBTC, TypeName: "bridged::btc::BTC", NativeDecimals: 8, NotionalValue: 50_000_000_000_000},
		{TokenID: TokenIDEth, TypeName: "bridged::eth::ETH", NativeDecimals: 8, NotionalValue: 3_000_000_000_000},
		{TokenID: TokenIDUSDC, TypeName: "bridged::usdc::USDC", NativeDecimals: 6, NotionalValue: 1_000_000_000},
		{TokenID: TokenIDUSDT, TypeName: "bridged::usdt::USDT", NativeDecimals: 6, NotionalValue: 1_000_000_000},
	}
}

// DecimalMultiplier returns 10^decimals for the token, the divisor that
// converts a raw native amount into whole tokens.
func (t *Treasury) DecimalMultiplier(tokenID uint8) (uint64, error) {
	a, ok := t.assets[tokenID]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownToken, tokenID)
	}
	multiplier := uint64(1)
	for i := uint8(0); i < a.NativeDecimals; i++ {
		multiplier *= 10
	}
	return multiplier, nil
}

// NotionalValue returns the USD fixed-point price of one whole token.
func (t *Treasury) NotionalValue(tokenID uint8) (uint64, error) {
	a, ok := t.assets[tokenID]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownToken, tokenID)
	}
	return a.NotionalValue, nil
}

// Asset returns the registered asset for tokenID.
func (t *Treasury) Asset(tokenID uint8) (Asset, error) {
	a, ok := t.assets[tokenID]
	if !ok {
		return Asset{}, fmt.Errorf("%w: id %d", ErrUnknownToken, tokenID)
	}
	return *a, nil
}

// UpdateAssetPrice applies a committee-approved price update.
func (t *Treasury) UpdateAssetPrice(payload *message.UpdateAssetPricePayload) error {
	a, ok := t.assets[payload.TokenID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownToken, payload.TokenID)
	}
	old := a.NotionalValue
	a.NotionalValue = payload.NewPrice
	t.log.Info("asset price updated",
		log.Int("tokenID", int(payload.TokenID)),
		log.Uint64("oldPrice", old),
		log.Uint64("newPrice", payload.NewPrice),
	)
	return nil
}

// RegisterTokens applies a committee-approved token registration. The
// batch is atomic: a duplicate id anywhere leaves the registry untouched.
// Registered tokens default to 8 native decimals until the host treasury
// records the real coin metadata.
func (t *Treasury) RegisterTokens(payload *message.AddTokensOnSuiPayload) error {
	batch := set.NewSet[uint8](len(payload.TokenIDs))
	for _, id := range payload.TokenIDs {
		if _, ok := t.assets[id]; ok || batch.Contains(id) {
			return fmt.Errorf("%w: id %d", ErrTokenAlreadyRegistered, id)
		}
		batch.Add(id)
	}
	for i, id := range payload.TokenIDs {
		t.assets[id] = &Asset{
			TokenID:        id,
			TypeName:       payload.TypeNames[i],
			NativeDecimals: 8,
			NotionalValue:  payload.Prices[i],
			Native:         payload.Native,
		}
		t.log.Info("token registered",
			log.Int("tokenID", int(id)),
			log.UserString("typeName", payload.TypeNames[i]),
			log.Uint64("price", payload.Prices[i]),
		)
	}
	return nil
}
