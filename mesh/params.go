// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mesh

import "math/big"

// Constants of the staking engine.
const (
	// FeeScale is the fixed-point denominator for fee, penalty and reward rates.
	// All rates are expressed in basis points: 10000 == 100%.
	FeeScale = 10000

	// DefaultStakingDuration is the default minimum holding period, in seconds.
	DefaultStakingDuration = 60 * 60 * 24 * 7 // 7 days

	// DefaultStakingFee is the default fee charged on stake and ordinary unstake, in basis points.
	DefaultStakingFee = 100 // 1%

	// DefaultEarlyUnstakeFee is the default penalty for exiting before the lock matures, in basis points.
	DefaultEarlyUnstakeFee = 2000 // 20%

	// DefaultRewardRate is the fallback yield rate over one full staking duration, in basis points.
	DefaultRewardRate = 1000 // 10%
)

// MaxUint256 is the largest value representable in a storage slot.
// Amounts beyond it are rejected rather than truncated.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
