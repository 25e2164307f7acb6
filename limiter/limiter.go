// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package limiter enforces a rolling 24-hour USD-denominated transfer
// limit per directional route. Amounts of any supported asset are
// converted to a common USD fixed-point scale and accumulated in a ring
// of 24 hourly buckets.
package limiter

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/bridge/chainid"
)

const (
	// USDValueMultiplier is the fixed-point scale of all USD amounts:
	// one whole USD is 1e9.
	USDValueMultiplier uint64 = 1_000_000_000

	// MaxTransferLimit disables limiting for a route in practice.
	MaxTransferLimit uint64 = math.MaxUint64

	windowHours = 24
	msPerHour   = 3_600_000
)

var ErrLimitNotFoundForRoute = errors.New("limit not found for route")

// AssetSource supplies per-asset conversion data. Lookups are synchronous
// and side-effect free; the treasury implements this.
type AssetSource interface {
	// DecimalMultiplier returns 10^decimals for the token.
	DecimalMultiplier(tokenID uint8) (uint64, error)
	// NotionalValue returns the USD fixed-point price of one whole token.
	NotionalValue(tokenID uint8) (uint64, error)
}

// window is the per-route ring buffer of hourly USD totals. The bucket
// for hour h lives at index h % 24; hourTail is the earliest retained
// hour, trailing hourHead by at most 23 and never preceding the hour the
// window was created.
type window struct {
	hourHead       uint64
	hourTail       uint64
	perHourAmounts [windowHours]uint64
	totalAmount    uint64
}

type limiterMetrics struct {
	admitted    metric.CounterVec
	rejected    metric.CounterVec
	windowTotal metric.GaugeVec
}

// TransferLimiter tracks rolling transfer volume per route. Sending
// routes are opt-in: a route with no configured limit is a programming
// error, never treated as unlimited. Callers must serialize access per
// instance.
type TransferLimiter struct {
	log     log.Logger
	metrics limiterMetrics

	transferLimits  map[chainid.Route]uint64
	transferRecords map[chainid.Route]*window
}

// New returns a limiter with the given per-route limits, in USD fixed
// point.
func New(
	logger log.Logger,
	registerer metric.Registerer,
	namespace string,
	limits map[chainid.Route]uint64,
) *TransferLimiter {
	routeLabels := []string{"route"}
	l := &TransferLimiter{
		log: logger,
		metrics: limiterMetrics{
			admitted: metric.NewCounterVec(
				metric.CounterOpts{
					Namespace: namespace,
					Name:      "limiter_transfers_admitted",
					Help:      "transfers admitted by the rate limiter",
				},
				routeLabels,
			),
			rejected: metric.NewCounterVec(
				metric.CounterOpts{
					Namespace: namespace,
					Name:      "limiter_transfers_rejected",
					Help:      "transfers rejected by the rate limiter",
				},
				routeLabels,
			),
			windowTotal: metric.NewGaugeVec(
				metric.GaugeOpts{
					Namespace: namespace,
					Name:      "limiter_window_total_usd",
					Help:      "rolling 24h USD total per route (fixed point)",
				},
				routeLabels,
			),
		},
		transferLimits:  make(map[chainid.Route]uint64, len(limits)),
		transferRecords: make(map[chainid.Route]*window),
	}
	for route, limit := range limits {
		l.transferLimits[route] = limit
	}
	return l
}

// DefaultTransferLimits mirrors the genesis configuration: 5M USD per
// rolling day between the mainnets, unlimited elsewhere.
func DefaultTransferLimits() map[chainid.Route]uint64 {
	return map[chainid.Route]uint64{
		{Source: chainid.EthMainnet, Destination: chainid.SuiMainnet}: 5_000_000 * USDValueMultiplier,
		{Source: chainid.SuiMainnet, Destination: chainid.EthMainnet}: 5_000_000 * USDValueMultiplier,
		{Source: chainid.EthSepolia, Destination: chainid.SuiTestnet}: MaxTransferLimit,
		{Source: chainid.SuiTestnet, Destination: chainid.EthSepolia}: MaxTransferLimit,
		{Source: chainid.EthCustom, Destination: chainid.SuiCustom}:   MaxTransferLimit,
		{Source: chainid.SuiCustom, Destination: chainid.EthCustom}:   MaxTransferLimit,
	}
}

// CheckAndRecordSendingTransfer converts amount (native integer units of
// tokenID) to USD fixed point and admits it against route's rolling
// window at nowMS. It returns false, leaving the window untouched, if
// admitting the transfer would push the rolling total over the route's
// limit; the caller may retry a smaller amount in the same hour.
func (l *TransferLimiter) CheckAndRecordSendingTransfer(
	assets AssetSource,
	nowMS uint64,
	route chainid.Route,
	tokenID uint8,
	amount uint64,
) (bool, error) {
	limit, ok := l.transferLimits[route]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrLimitNotFoundForRoute, route)
	}

	usdAmount, overflow, err := usdValue(assets, tokenID, amount)
	if err != nil {
		return false, err
	}
	if overflow {
		// A value too large for the USD scale can never fit under a limit.
		l.metrics.rejected.With(map[string]string{"route": route.String()}).Inc()
		return false, nil
	}

	w, ok := l.transferRecords[route]
	if !ok {
		currentHour := nowMS / msPerHour
		w = &window{hourHead: currentHour, hourTail: currentHour}
		l.transferRecords[route] = w
	}
	w.advance(nowMS / msPerHour)

	if usdAmount > limit || w.totalAmount > limit-usdAmount {
		l.metrics.rejected.With(map[string]string{"route": route.String()}).Inc()
		l.log.Debug("transfer rejected by rate limiter",
			log.Stringer("route", route),
			log.Uint64("usdAmount", usdAmount),
			log.Uint64("windowTotal", w.totalAmount),
			log.Uint64("limit", limit),
		)
		return false, nil
	}

	w.perHourAmounts[w.hourHead%windowHours] += usdAmount
	w.totalAmount += usdAmount
	l.metrics.admitted.With(map[string]string{"route": route.String()}).Inc()
	l.metrics.windowTotal.With(map[string]string{"route": route.String()}).Set(float64(w.totalAmount))
	return true, nil
}

// UpdateRouteLimit overwrites route's limit unconditionally. An in-flight
// window already above the new limit is left alone; it decays naturally.
func (l *TransferLimiter) UpdateRouteLimit(route chainid.Route, newLimit uint64) {
	old, had := l.transferLimits[route]
	l.transferLimits[route] = newLimit
	l.log.Info("route limit updated",
		log.Stringer("route", route),
		log.Uint64("oldLimit", old),
		log.Bool("existed", had),
		log.Uint64("newLimit", newLimit),
	)
}

// RouteLimit returns the configured limit for route.
func (l *TransferLimiter) RouteLimit(route chainid.Route) (uint64, bool) {
	limit, ok := l.transferLimits[route]
	return limit, ok
}

// WindowTotal returns the current rolling USD total for route without
// advancing the window.
func (l *TransferLimiter) WindowTotal(route chainid.Route) uint64 {
	if w, ok := l.transferRecords[route]; ok {
		return w.totalAmount
	}
	return 0
}

// advance slides the window head forward to currentHour, zeroing every
// bucket strictly after the old head up to and including the new one.
// The total is recomputed from the buffer rather than adjusted
// incrementally, so it can never drift.
func (w *window) advance(currentHour uint64) {
	if currentHour <= w.hourHead {
		return
	}
	if currentHour-w.hourHead >= windowHours {
		w.perHourAmounts = [windowHours]uint64{}
	} else {
		for h := w.hourHead + 1; h <= currentHour; h++ {
			w.perHourAmounts[h%windowHours] = 0
		}
	}
	w.hourHead = currentHour
	if currentHour >= windowHours-1 {
		if tail := currentHour - (windowHours - 1); tail > w.hourTail {
			w.hourTail = tail
		}
	}

	total := uint64(0)
	for _, amount := range w.perHourAmounts {
		total += amount
	}
	w.totalAmount = total
}

// usdValue converts a raw native amount to USD fixed point:
// amount * notional / multiplier in 128-bit intermediate precision,
// truncating toward zero. overflow reports a result that does not fit in
// 64 bits.
func usdValue(assets AssetSource, tokenID uint8, amount uint64) (value uint64, overflow bool, err error) {
	multiplier, err := assets.DecimalMultiplier(tokenID)
	if err != nil {
		return 0, false, err
	}
	notional, err := assets.NotionalValue(tokenID)
	if err != nil {
		return 0, false, err
	}
	hi, lo := bits.Mul64(amount, notional)
	if hi >= multiplier {
		return 0, true, nil
	}
	quo, _ := bits.Div64(hi, lo, multiplier)
	return quo, false, nil
}
