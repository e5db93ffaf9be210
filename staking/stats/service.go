// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stats manages engine-wide staking totals.
package stats

import (
	"math/big"

	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/storage"
)

var (
	slotTotalStaked = mesh.BytesToBytes32([]byte("total-staked"))
	slotFeesBurned  = mesh.BytesToBytes32([]byte("total-fees-burned"))
	slotRewardsPaid = mesh.BytesToBytes32([]byte("total-rewards-paid"))
)

// Service tracks totals across all pools. At any quiescent point
// TotalStaked equals the sum of every pool's staked principal.
type Service struct {
	totalStaked *storage.Uint256
	feesBurned  *storage.Uint256
	rewardsPaid *storage.Uint256
}

func New(sctx *storage.Context) *Service {
	return &Service{
		totalStaked: storage.NewUint256(sctx, slotTotalStaked),
		feesBurned:  storage.NewUint256(sctx, slotFeesBurned),
		rewardsPaid: storage.NewUint256(sctx, slotRewardsPaid),
	}
}

// TotalStaked returns the principal currently held across all pools.
func (s *Service) TotalStaked() (*big.Int, error) {
	return s.totalStaked.Get()
}

// AddStaked increases the engine-wide staked total.
func (s *Service) AddStaked(amount *big.Int) error {
	return s.totalStaked.Add(amount)
}

// SubStaked decreases the engine-wide staked total.
func (s *Service) SubStaked(amount *big.Int) error {
	return s.totalStaked.Sub(amount)
}

// FeesBurned returns the cumulative value destroyed as fees and penalties.
func (s *Service) FeesBurned() (*big.Int, error) {
	return s.feesBurned.Get()
}

// AddFeesBurned increases the cumulative burned-fee total.
func (s *Service) AddFeesBurned(amount *big.Int) error {
	return s.feesBurned.Add(amount)
}

// RewardsPaid returns the cumulative yield paid out.
func (s *Service) RewardsPaid() (*big.Int, error) {
	return s.rewardsPaid.Get()
}

// AddRewardsPaid increases the cumulative paid-reward total.
func (s *Service) AddRewardsPaid(amount *big.Int) error {
	return s.rewardsPaid.Add(amount)
}
