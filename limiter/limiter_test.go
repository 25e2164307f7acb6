// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limiter

import (
	"math"
	"testing"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridge/chainid"
)

// fakeAssets is a single-token asset source with zero native decimals, so
// one native unit is one whole token.
type fakeAssets struct {
	multiplier uint64
	notional   uint64
}

func (f fakeAssets) DecimalMultiplier(uint8) (uint64, error) { return f.multiplier, nil }
func (f fakeAssets) NotionalValue(uint8) (uint64, error)     { return f.notional, nil }

func newLimiter(t *testing.T, limits map[chainid.Route]uint64) *TransferLimiter {
	t.Helper()
	return New(log.NewNoOpLogger(), metric.NewRegistry(), "test", limits)
}

func TestCheckAndRecordSendingTransfer(t *testing.T) {
	require := require.New(t)

	route := chainid.Route{Source: chainid.SuiCustom, Destination: chainid.EthCustom}
	// Room for 100 units of a 5 USD asset.
	assets := fakeAssets{multiplier: 1, notional: 5 * USDValueMultiplier}
	l := newLimiter(t, map[chainid.Route]uint64{route: 500 * USDValueMultiplier})

	now := uint64(1_000) * msPerHour

	// 60 units is 300 USD, under the 500 USD limit.
	ok, err := l.CheckAndRecordSendingTransfer(assets, now, route, 0, 60)
	require.NoError(err)
	require.True(ok)
	require.Equal(300*USDValueMultiplier, l.WindowTotal(route))

	// Another 60 would land at 600 USD. Rejected, window untouched.
	ok, err = l.CheckAndRecordSendingTransfer(assets, now, route, 0, 60)
	require.NoError(err)
	require.False(ok)
	require.Equal(300*USDValueMultiplier, l.WindowTotal(route))

	// A smaller transfer in the same hour still fits.
	ok, err = l.CheckAndRecordSendingTransfer(assets, now, route, 0, 40)
	require.NoError(err)
	require.True(ok)
	require.Equal(500*USDValueMultiplier, l.WindowTotal(route))

	// The window is now exactly full.
	ok, err = l.CheckAndRecordSendingTransfer(assets, now, route, 0, 1)
	require.NoError(err)
	require.False(ok)
}

func TestUnknownRoute(t *testing.T) {
	require := require.New(t)

	l := newLimiter(t, nil)
	route := chainid.Route{Source: chainid.SuiCustom, Destination: chainid.EthCustom}

	_, err := l.CheckAndRecordSendingTransfer(fakeAssets{multiplier: 1, notional: 1}, 0, route, 0, 1)
	require.ErrorIs(err, ErrLimitNotFoundForRoute)

	_, ok := l.RouteLimit(route)
	require.False(ok)
}

func TestWindowDecay(t *testing.T) {
	require := require.New(t)

	route := chainid.Route{Source: chainid.EthCustom, Destination: chainid.SuiCustom}
	assets := fakeAssets{multiplier: 1, notional: USDValueMultiplier}
	l := newLimiter(t, map[chainid.Route]uint64{route: 100 * USDValueMultiplier})

	hour := uint64(5_000)
	ok, err := l.CheckAndRecordSendingTransfer(assets, hour*msPerHour, route, 0, 100)
	require.NoError(err)
	require.True(ok)

	// Full for the next 23 hours.
	ok, err = l.CheckAndRecordSendingTransfer(assets, (hour+23)*msPerHour, route, 0, 1)
	require.NoError(err)
	require.False(ok)
	require.Equal(100*USDValueMultiplier, l.WindowTotal(route))

	// At hour+24 the filling bucket has slid out of the window.
	ok, err = l.CheckAndRecordSendingTransfer(assets, (hour+24)*msPerHour, route, 0, 100)
	require.NoError(err)
	require.True(ok)
	require.Equal(100*USDValueMultiplier, l.WindowTotal(route))
}

func TestWindowPartialDecay(t *testing.T) {
	require := require.New(t)

	route := chainid.Route{Source: chainid.EthCustom, Destination: chainid.SuiCustom}
	assets := fakeAssets{multiplier: 1, notional: USDValueMultiplier}
	l := newLimiter(t, map[chainid.Route]uint64{route: 100 * USDValueMultiplier})

	hour := uint64(7_000)
	for i, amount := range []uint64{40, 30, 30} {
		ok, err := l.CheckAndRecordSendingTransfer(assets, (hour+uint64(i))*msPerHour, route, 0, amount)
		require.NoError(err)
		require.True(ok)
	}
	require.Equal(100*USDValueMultiplier, l.WindowTotal(route))

	// 24 hours after the first bucket only that bucket's 40 has expired.
	ok, err := l.CheckAndRecordSendingTransfer(assets, (hour+24)*msPerHour, route, 0, 40)
	require.NoError(err)
	require.True(ok)
	require.Equal(100*USDValueMultiplier, l.WindowTotal(route))

	ok, err = l.CheckAndRecordSendingTransfer(assets, (hour+24)*msPerHour, route, 0, 1)
	require.NoError(err)
	require.False(ok)
}

func TestWindowLongGap(t *testing.T) {
	require := require.New(t)

	route := chainid.Route{Source: chainid.SuiTestnet, Destination: chainid.EthSepolia}
	assets := fakeAssets{multiplier: 1, notional: USDValueMultiplier}
	l := newLimiter(t, map[chainid.Route]uint64{route: 100 * USDValueMultiplier})

	hour := uint64(9_000)
	ok, err := l.CheckAndRecordSendingTransfer(assets, hour*msPerHour, route, 0, 100)
	require.NoError(err)
	require.True(ok)

	// A gap far longer than the window clears everything, including the
	// buckets whose ring slots would alias the old hours.
	ok, err = l.CheckAndRecordSendingTransfer(assets, (hour+1_000)*msPerHour, route, 0, 100)
	require.NoError(err)
	require.True(ok)
	require.Equal(100*USDValueMultiplier, l.WindowTotal(route))
}

func TestWindowTail(t *testing.T) {
	require := require.New(t)

	hour := uint64(5_000)
	w := &window{hourHead: hour, hourTail: hour}

	// Advancing within the first day never drags the tail before the
	// hour the window was created.
	w.advance(hour + 5)
	require.Equal(hour+5, w.hourHead)
	require.Equal(hour, w.hourTail)

	// Once a full day has passed the tail trails the head by exactly 23.
	w.advance(hour + 30)
	require.Equal(hour+30, w.hourHead)
	require.Equal(hour+30-(windowHours-1), w.hourTail)
}

func TestUSDConversion(t *testing.T) {
	require := require.New(t)

	route := chainid.Route{Source: chainid.SuiCustom, Destination: chainid.EthCustom}
	// 8 decimals at 50k USD per whole token, BTC-shaped.
	assets := fakeAssets{multiplier: 100_000_000, notional: 50_000 * USDValueMultiplier}
	l := newLimiter(t, map[chainid.Route]uint64{route: MaxTransferLimit})

	// 1.5 whole tokens.
	ok, err := l.CheckAndRecordSendingTransfer(assets, 0, route, 0, 150_000_000)
	require.NoError(err)
	require.True(ok)
	require.Equal(75_000*USDValueMultiplier, l.WindowTotal(route))

	// One base unit of a 50k USD token still truncates to a nonzero
	// fixed-point value: 50000e9 / 1e8 = 500000.
	ok, err = l.CheckAndRecordSendingTransfer(assets, 0, route, 0, 1)
	require.NoError(err)
	require.True(ok)
	require.Equal(75_000*USDValueMultiplier+500_000, l.WindowTotal(route))
}

func TestUSDConversionOverflow(t *testing.T) {
	require := require.New(t)

	route := chainid.Route{Source: chainid.SuiCustom, Destination: chainid.EthCustom}
	assets := fakeAssets{multiplier: 1, notional: math.MaxUint64}
	l := newLimiter(t, map[chainid.Route]uint64{route: MaxTransferLimit})

	// amount * notional exceeds 64 bits even after dividing by the
	// multiplier. Rejection, never wraparound.
	ok, err := l.CheckAndRecordSendingTransfer(assets, 0, route, 0, math.MaxUint64)
	require.NoError(err)
	require.False(ok)
	require.Zero(l.WindowTotal(route))
}

func TestUpdateRouteLimit(t *testing.T) {
	require := require.New(t)

	route := chainid.Route{Source: chainid.SuiCustom, Destination: chainid.EthCustom}
	assets := fakeAssets{multiplier: 1, notional: USDValueMultiplier}
	l := newLimiter(t, map[chainid.Route]uint64{route: 10 * USDValueMultiplier})

	ok, err := l.CheckAndRecordSendingTransfer(assets, 0, route, 0, 10)
	require.NoError(err)
	require.True(ok)

	l.UpdateRouteLimit(route, 20*USDValueMultiplier)
	limit, found := l.RouteLimit(route)
	require.True(found)
	require.Equal(20*USDValueMultiplier, limit)

	ok, err = l.CheckAndRecordSendingTransfer(assets, 0, route, 0, 10)
	require.NoError(err)
	require.True(ok)

	// Lowering the limit below the in-flight total does not rewrite
	// history; it just blocks new admissions until the window decays.
	l.UpdateRouteLimit(route, 5*USDValueMultiplier)
	ok, err = l.CheckAndRecordSendingTransfer(assets, 0, route, 0, 1)
	require.NoError(err)
	require.False(ok)
	require.Equal(20*USDValueMultiplier, l.WindowTotal(route))
}

func TestDefaultTransferLimits(t *testing.T) {
	require := require.New(t)

	limits := DefaultTransferLimits()
	require.Equal(
		5_000_000*USDValueMultiplier,
		limits[chainid.Route{Source: chainid.EthMainnet, Destination: chainid.SuiMainnet}],
	)
	require.Equal(
		MaxTransferLimit,
		limits[chainid.Route{Source: chainid.SuiTestnet, Destination: chainid.EthSepolia}],
	)
}
