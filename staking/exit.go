// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"
	"time"

	"github.com/stakemesh/mesh/events"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/params"
	"github.com/stakemesh/mesh/reverts"
	"github.com/stakemesh/mesh/staking/accrual"
)

// Unstake withdraws the user's entire stake from the pool after the lock
// has matured. The payout is principal minus the ordinary fee plus all
// accrued rewards.
func (s *Staking) Unstake(user, id mesh.Address, now uint64) (err error) {
	start := time.Now()
	defer func() { record("unstake", start, err) }()
	return s.exit(user, id, now, false)
}

// EarlyUnstake withdraws the user's entire stake before the lock matures,
// substituting the penalty rate for the ordinary fee.
func (s *Staking) EarlyUnstake(user, id mesh.Address, now uint64) (err error) {
	start := time.Now()
	defer func() { record("early_unstake", start, err) }()
	return s.exit(user, id, now, true)
}

// exit runs the shared withdrawal sequence. All engine state is mutated
// before any outbound transfer, and any engine call made by the ledger
// during that transfer fails instead of blocking, so a ledger that calls
// back into the engine cannot observe or exploit a half-finished
// withdrawal.
func (s *Staking) exit(user, id mesh.Address, now uint64, early bool) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	var evs []*events.Event
	err := s.atomically(func() error {
		pool, err := s.pools.GetExisting(id)
		if err != nil {
			return err
		}
		if pool.Migrating {
			return reverts.MigrationInProgress()
		}

		ps, err := s.positions.GetPoolStake(user, id)
		if err != nil {
			return err
		}
		if ps.Amount.Sign() == 0 {
			return reverts.InsufficientStake()
		}

		feeKey := params.KeyStakingFee
		name := events.Unstaked
		if early {
			feeKey = params.KeyEarlyUnstakeFee
			name = events.EarlyUnstaked
		} else {
			duration, err := s.params.Get(params.KeyStakingDuration)
			if err != nil {
				return err
			}
			if now < ps.StartTime+duration.Uint64() {
				return reverts.LockNotMatured()
			}
		}

		if err := s.settle(user, id, pool, ps, now); err != nil {
			return err
		}

		staked := new(big.Int).Set(ps.Amount)
		feeRate, err := s.params.Get(feeKey)
		if err != nil {
			return err
		}
		fee := accrual.Fee(staked, feeRate)

		if err := s.positions.SubStake(user, id, staked); err != nil {
			return err
		}
		rewards, err := s.positions.TakeRewards(user)
		if err != nil {
			return err
		}
		pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, staked)
		if pool.TotalStaked.Sign() < 0 {
			return reverts.Underflow()
		}
		pool.LastUpdateTime = now
		if err := s.pools.Update(id, pool); err != nil {
			return err
		}
		if err := s.pools.RemoveMember(id, user); err != nil {
			return err
		}
		if err := s.stats.SubStaked(staked); err != nil {
			return err
		}
		if err := s.stats.AddRewardsPaid(rewards); err != nil {
			return err
		}

		// state is final from here on; only value movement remains
		payout := new(big.Int).Sub(staked, fee)
		payout.Add(payout, rewards)
		if err := s.collectFee(s.custody, fee); err != nil {
			return err
		}
		if err := s.transfer(s.custody, user, payout); err != nil {
			return err
		}

		total, err := s.stats.TotalStaked()
		if err != nil {
			return err
		}
		evs = append(evs,
			&events.Event{Time: now, Name: name, User: user, Pool: id, Amount: staked, Aux: fee},
		)
		if rewards.Sign() > 0 {
			evs = append(evs,
				&events.Event{Time: now, Name: events.RewardPaid, User: user, Pool: id, Amount: rewards},
			)
		}
		evs = append(evs,
			&events.Event{Time: now, Name: events.StatisticsUpdated, Amount: total},
		)
		return nil
	})
	if err != nil {
		logger.Debug("exit reverted", "user", user, "pool", id, "early", early, "error", err)
		return err
	}

	s.emit(evs...)
	s.updateStakedGauge()
	logger.Info("unstaked", "user", user, "pool", id, "early", early)
	return nil
}
