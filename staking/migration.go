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
	"github.com/stakemesh/mesh/reverts"
)

// StartMigration begins moving the pool to a new yield rate.
//
// Every staker's accrual must be settled at the old rate before the rate
// changes, and the member set is unbounded, so the settlement runs in
// batches driven by MigrateBatch. While a migration is in progress the
// pool rejects stake and exit traffic, which keeps the batch cursor stable.
// An empty pool needs no settlement and takes the new rate immediately.
func (s *Staking) StartMigration(caller, id mesh.Address, newRate *big.Int, now uint64) (err error) {
	start := time.Now()
	defer func() { record("start_migration", start, err) }()
	if err = s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	var evs []*events.Event
	err = s.atomically(func() error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		if newRate == nil || newRate.Sign() <= 0 {
			return reverts.InvalidRate()
		}
		pool, err := s.pools.GetExisting(id)
		if err != nil {
			return err
		}
		if pool.Migrating {
			return reverts.MigrationInProgress()
		}

		if pool.TotalStaked.Sign() == 0 {
			pool.Rate = new(big.Int).Set(newRate)
			pool.LastUpdateTime = now
			if err := s.pools.Update(id, pool); err != nil {
				return err
			}
			evs = append(evs, &events.Event{Time: now, Name: events.PoolUpdated, Pool: id, Aux: newRate})
			return nil
		}

		first, err := s.pools.FirstMember(id)
		if err != nil {
			return err
		}
		pool.Migrating = true
		pool.PendingRate = new(big.Int).Set(newRate)
		cursor := first
		pool.Cursor = &cursor
		return s.pools.Update(id, pool)
	})
	if err != nil {
		return err
	}

	s.emit(evs...)
	logger.Info("migration started", "pool", id, "rate", newRate)
	return nil
}

// MigrateBatch settles up to limit stakers of a migrating pool at the old
// rate, resuming from the stored cursor. When the member list is exhausted
// the pending rate is committed and the pool reopens. It returns the number
// of stakers processed and whether the migration completed.
//
// Each staker is settled all-or-nothing: the batch either fully commits or
// fully reverts, and a reverted batch can be retried from the same cursor.
func (s *Staking) MigrateBatch(caller, id mesh.Address, limit uint64, now uint64) (processed uint64, done bool, err error) {
	start := time.Now()
	defer func() { record("migrate_batch", start, err) }()
	if err = s.lock(); err != nil {
		return 0, false, err
	}
	defer s.mu.Unlock()

	var evs []*events.Event
	err = s.atomically(func() error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		if limit == 0 {
			return reverts.ZeroAmount()
		}
		pool, err := s.pools.GetExisting(id)
		if err != nil {
			return err
		}
		if !pool.Migrating {
			return reverts.NoMigration()
		}

		var cursor mesh.Address
		if pool.Cursor != nil {
			cursor = *pool.Cursor
		}
		for processed < limit && !cursor.IsZero() {
			ps, err := s.positions.GetPoolStake(cursor, id)
			if err != nil {
				return err
			}
			if err := s.settle(cursor, id, pool, ps, now); err != nil {
				return err
			}
			processed++
			cursor, err = s.pools.NextMember(id, cursor)
			if err != nil {
				return err
			}
		}

		if cursor.IsZero() {
			rate := pool.PendingRate
			pool.Rate = rate
			pool.Migrating = false
			pool.PendingRate = new(big.Int)
			pool.Cursor = nil
			pool.LastUpdateTime = now
			done = true
			evs = append(evs, &events.Event{Time: now, Name: events.PoolUpdated, Pool: id, Aux: rate})
		} else {
			next := cursor
			pool.Cursor = &next
		}
		return s.pools.Update(id, pool)
	})
	if err != nil {
		return 0, false, err
	}

	s.emit(evs...)
	logger.Info("migration batch", "pool", id, "processed", processed, "done", done)
	return processed, done, nil
}
