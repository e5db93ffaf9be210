// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package positions keeps per-user and per-(user, pool) stake accounting.
package positions

import (
	"math/big"

	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/reverts"
	"github.com/stakemesh/mesh/storage"
)

var (
	basePositions = mesh.BytesToBytes32([]byte("positions"))
	baseStakes    = mesh.BytesToBytes32([]byte("pool-stakes"))
)

func stakeKey(user, pool mesh.Address) mesh.Bytes32 {
	return mesh.Keccak256(user.Bytes(), pool.Bytes())
}

// Service reads and writes stake records.
type Service struct {
	positions *storage.Mapping[mesh.Address, *Position]
	stakes    *storage.Mapping[mesh.Bytes32, *PoolStake]
}

func New(sctx *storage.Context) *Service {
	return &Service{
		positions: storage.NewMapping[mesh.Address, *Position](sctx, basePositions),
		stakes:    storage.NewMapping[mesh.Bytes32, *PoolStake](sctx, baseStakes),
	}
}

// GetPosition returns the user's global position; a zero record when absent.
func (s *Service) GetPosition(user mesh.Address) (*Position, error) {
	pos, err := s.positions.Get(user)
	if err != nil {
		return nil, err
	}
	pos.normalize()
	return pos, nil
}

// SetPosition persists the user's global position, clearing empty records.
func (s *Service) SetPosition(user mesh.Address, pos *Position) error {
	if pos.IsEmpty() {
		return s.positions.Delete(user)
	}
	return s.positions.Set(user, pos)
}

// GetPoolStake returns the user's stake in the pool; a zero record when absent.
func (s *Service) GetPoolStake(user, pool mesh.Address) (*PoolStake, error) {
	ps, err := s.stakes.Get(stakeKey(user, pool))
	if err != nil {
		return nil, err
	}
	ps.normalize()
	return ps, nil
}

// SetPoolStake persists the user's stake in the pool, clearing empty records.
func (s *Service) SetPoolStake(user, pool mesh.Address, ps *PoolStake) error {
	if ps.IsEmpty() {
		return s.stakes.Delete(stakeKey(user, pool))
	}
	return s.stakes.Set(stakeKey(user, pool), ps)
}

// AddStake increases the user's principal in the pool and the global position.
func (s *Service) AddStake(user, pool mesh.Address, amount *big.Int, now uint64) error {
	ps, err := s.GetPoolStake(user, pool)
	if err != nil {
		return err
	}
	ps.Amount = new(big.Int).Add(ps.Amount, amount)
	ps.StartTime = now
	ps.LastSettled = now
	if err := s.SetPoolStake(user, pool, ps); err != nil {
		return err
	}

	pos, err := s.GetPosition(user)
	if err != nil {
		return err
	}
	pos.Staked = new(big.Int).Add(pos.Staked, amount)
	return s.SetPosition(user, pos)
}

// SubStake decreases the user's principal in the pool and the global position.
// Driving either record negative fails with InsufficientStake, no mutation.
func (s *Service) SubStake(user, pool mesh.Address, amount *big.Int) error {
	ps, err := s.GetPoolStake(user, pool)
	if err != nil {
		return err
	}
	if ps.Amount.Cmp(amount) < 0 {
		return reverts.InsufficientStake()
	}
	pos, err := s.GetPosition(user)
	if err != nil {
		return err
	}
	if pos.Staked.Cmp(amount) < 0 {
		return reverts.InsufficientStake()
	}

	ps.Amount = new(big.Int).Sub(ps.Amount, amount)
	if err := s.SetPoolStake(user, pool, ps); err != nil {
		return err
	}
	pos.Staked = new(big.Int).Sub(pos.Staked, amount)
	return s.SetPosition(user, pos)
}

// CreditReward adds settled yield to the user's reward accumulator.
func (s *Service) CreditReward(user mesh.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	pos, err := s.GetPosition(user)
	if err != nil {
		return err
	}
	pos.Rewards = new(big.Int).Add(pos.Rewards, amount)
	return s.SetPosition(user, pos)
}

// TakeRewards zeroes and returns the user's reward accumulator.
func (s *Service) TakeRewards(user mesh.Address) (*big.Int, error) {
	pos, err := s.GetPosition(user)
	if err != nil {
		return nil, err
	}
	rewards := pos.Rewards
	pos.Rewards = new(big.Int)
	if err := s.SetPosition(user, pos); err != nil {
		return nil, err
	}
	return rewards, nil
}
