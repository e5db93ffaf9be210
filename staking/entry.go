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

// Stake locks amount of the user's ledger balance into the pool.
//
// Past yield is settled first, so the new principal never backdates into an
// elapsed reward window. The full amount becomes principal; the entry fee is
// paid out of the engine's fee account and burned, so fees never shrink the
// user's recorded stake. The lock restarts for this (user, pool) only.
func (s *Staking) Stake(user, id mesh.Address, amount *big.Int, now uint64) (err error) {
	start := time.Now()
	defer func() { record("stake", start, err) }()
	if err = s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	var evs []*events.Event
	err = s.atomically(func() error {
		if user.IsZero() {
			return reverts.InvalidAddress()
		}
		if amount == nil || amount.Sign() <= 0 {
			return reverts.ZeroAmount()
		}
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
		if err := s.settle(user, id, pool, ps, now); err != nil {
			return err
		}

		if err := s.transfer(user, s.custody, amount); err != nil {
			return err
		}
		if err := s.positions.AddStake(user, id, amount, now); err != nil {
			return err
		}
		pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)
		pool.LastUpdateTime = now
		if err := s.pools.Update(id, pool); err != nil {
			return err
		}
		if err := s.pools.AddMember(id, user); err != nil {
			return err
		}
		if err := s.stats.AddStaked(amount); err != nil {
			return err
		}

		feeRate, err := s.params.Get(params.KeyStakingFee)
		if err != nil {
			return err
		}
		fee := accrual.Fee(amount, feeRate)
		if err := s.collectFee(s.feeAccount, fee); err != nil {
			return err
		}

		total, err := s.stats.TotalStaked()
		if err != nil {
			return err
		}
		evs = append(evs,
			&events.Event{Time: now, Name: events.Staked, User: user, Pool: id, Amount: amount, Aux: fee},
			&events.Event{Time: now, Name: events.StatisticsUpdated, Amount: total},
		)
		return nil
	})
	if err != nil {
		logger.Debug("stake reverted", "user", user, "pool", id, "error", err)
		return err
	}

	s.emit(evs...)
	s.updateStakedGauge()
	logger.Info("staked", "user", user, "pool", id, "amount", amount)
	return nil
}
