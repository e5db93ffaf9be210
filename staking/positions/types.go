// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package positions

import "math/big"

// Position is a user's global staking position across all pools.
type Position struct {
	Staked  *big.Int // sum of principal across pools
	Rewards *big.Int // accrued, unpaid yield; zeroed on payout
}

// IsEmpty returns true when the position holds nothing.
func (p *Position) IsEmpty() bool {
	return p == nil || ((p.Staked == nil || p.Staked.Sign() == 0) && (p.Rewards == nil || p.Rewards.Sign() == 0))
}

func (p *Position) normalize() {
	if p.Staked == nil {
		p.Staked = new(big.Int)
	}
	if p.Rewards == nil {
		p.Rewards = new(big.Int)
	}
}

// PoolStake is a user's principal committed to one specific pool.
// StartTime tracks the lock per (user, pool), so staking into one pool
// never extends the lock of an unrelated position.
type PoolStake struct {
	Amount      *big.Int // principal currently committed
	StartTime   uint64   // time of the most recent stake into this pool
	LastSettled uint64   // time up to which accrual has been settled
}

// IsEmpty returns true when no principal is committed.
func (ps *PoolStake) IsEmpty() bool {
	return ps == nil || ps.Amount == nil || ps.Amount.Sign() == 0
}

func (ps *PoolStake) normalize() {
	if ps.Amount == nil {
		ps.Amount = new(big.Int)
	}
}
