// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accrual holds the time-proportional reward math.
// Everything here is pure: no state, no clocks.
package accrual

import (
	"math/big"

	"github.com/stakemesh/mesh/mesh"
)

// Reward computes the yield earned by principal at rate over elapsed seconds.
//
//	reward = floor(principal * rate * elapsed / (duration * FeeScale))
//
// The rate is expressed in basis points over one full staking duration.
// Integer division truncates toward zero; the residual fraction is
// forfeited, not carried forward. A zero duration yields zero reward.
func Reward(principal, rate *big.Int, elapsed, duration uint64) *big.Int {
	if duration == 0 || elapsed == 0 || principal.Sign() <= 0 || rate.Sign() <= 0 {
		return new(big.Int)
	}
	reward := new(big.Int).Mul(principal, rate)
	reward.Mul(reward, new(big.Int).SetUint64(elapsed))
	denom := new(big.Int).Mul(new(big.Int).SetUint64(duration), big.NewInt(mesh.FeeScale))
	return reward.Div(reward, denom)
}

// Fee computes the fee taken from amount at the given basis-point rate,
// with the same truncation policy as Reward.
func Fee(amount, rate *big.Int) *big.Int {
	if amount.Sign() <= 0 || rate.Sign() <= 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, rate)
	return fee.Div(fee, big.NewInt(mesh.FeeScale))
}
