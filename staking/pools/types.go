// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pools

import (
	"math/big"

	"github.com/stakemesh/mesh/mesh"
)

// Pool is a named bucket of staked principal with its own yield rate.
// A pool exists once created and is never destroyed, only drained to zero.
type Pool struct {
	Rate           *big.Int      // yield rate in basis points over one staking duration, always > 0
	TotalStaked    *big.Int      // sum of all user principals currently in the pool
	LastUpdateTime uint64        // time of the last accrual settlement touching this pool
	CreatedAt      uint64        // creation time
	Migrating      bool          // a rate migration is in progress
	PendingRate    *big.Int      // target rate of the migration, zero when none
	Cursor         *mesh.Address `rlp:"nil"` // next member to process during migration
	Next           *mesh.Address `rlp:"nil"` // registry list link, insertion order
}

// IsEmpty returns true for the zero value, i.e. a pool that was never created.
func (p *Pool) IsEmpty() bool {
	return p == nil || p.Rate == nil || p.Rate.Sign() == 0
}

// memberList tracks the stakers of one pool in insertion order.
type memberList struct {
	Head *mesh.Address `rlp:"nil"`
	Tail *mesh.Address `rlp:"nil"`
	Size uint64
}

// memberNode is one staker's link in a pool's member list.
type memberNode struct {
	Listed bool
	Prev   *mesh.Address `rlp:"nil"`
	Next   *mesh.Address `rlp:"nil"`
}
