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
)

func (s *Staking) requireAdmin(caller mesh.Address) error {
	ok, err := s.auth.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return reverts.Unauthorized()
	}
	return nil
}

// Initialize sets the admin account. It succeeds exactly once.
func (s *Staking) Initialize(admin mesh.Address) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.atomically(func() error {
		return s.auth.Init(admin)
	})
}

// TransferAdmin hands the admin role to next.
func (s *Staking) TransferAdmin(caller, next mesh.Address) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.atomically(func() error {
		return s.auth.Transfer(caller, next)
	})
}

// AddPool registers a new empty pool with the given yield rate.
func (s *Staking) AddPool(caller, id mesh.Address, rate *big.Int, now uint64) (err error) {
	start := time.Now()
	defer func() { record("add_pool", start, err) }()
	if err = s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	err = s.atomically(func() error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		return s.pools.Create(id, rate, now)
	})
	if err != nil {
		return err
	}

	s.emit(&events.Event{Time: now, Name: events.PoolCreated, Pool: id, Aux: rate})
	logger.Info("pool created", "pool", id, "rate", rate)
	return nil
}

// SetPoolRate changes the yield rate of an empty pool. A pool holding
// principal must be migrated instead; see StartMigration.
func (s *Staking) SetPoolRate(caller, id mesh.Address, rate *big.Int, now uint64) (err error) {
	start := time.Now()
	defer func() { record("set_pool_rate", start, err) }()
	if err = s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	err = s.atomically(func() error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		return s.pools.SetRate(id, rate)
	})
	if err != nil {
		return err
	}

	s.emit(&events.Event{Time: now, Name: events.PoolUpdated, Pool: id, Aux: rate})
	logger.Info("pool rate set", "pool", id, "rate", rate)
	return nil
}

// SetStakingDuration changes the minimum holding period, in seconds.
// It affects subsequent accrual windows only.
func (s *Staking) SetStakingDuration(caller mesh.Address, seconds *big.Int) error {
	return s.setParam(caller, params.KeyStakingDuration, seconds, func(v *big.Int) error {
		if v == nil || v.Sign() <= 0 {
			return reverts.InvalidRate()
		}
		return nil
	})
}

// SetStakingFee changes the ordinary fee rate, in basis points.
func (s *Staking) SetStakingFee(caller mesh.Address, rate *big.Int) error {
	return s.setParam(caller, params.KeyStakingFee, rate, checkFeeRate)
}

// SetEarlyUnstakeFee changes the early-exit penalty rate, in basis points.
func (s *Staking) SetEarlyUnstakeFee(caller mesh.Address, rate *big.Int) error {
	return s.setParam(caller, params.KeyEarlyUnstakeFee, rate, checkFeeRate)
}

// SetRewardRate changes the fallback yield rate applied when a pool carries
// none. Pools created through AddPool always carry an explicit rate, so no
// live principal accrues against this value and no prior settlement is due.
func (s *Staking) SetRewardRate(caller mesh.Address, rate *big.Int) error {
	return s.setParam(caller, params.KeyRewardRate, rate, func(v *big.Int) error {
		if v == nil || v.Sign() <= 0 {
			return reverts.InvalidRate()
		}
		return nil
	})
}

// SetFeeSink changes the account fees pass through before burning.
// A zero address burns fees in place.
func (s *Staking) SetFeeSink(caller, sink mesh.Address) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.atomically(func() error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		s.params.SetAddress(params.KeyFeeSink, sink)
		return nil
	})
}

func (s *Staking) setParam(caller mesh.Address, key mesh.Bytes32, value *big.Int, check func(*big.Int) error) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	err := s.atomically(func() error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		if err := check(value); err != nil {
			return err
		}
		return s.params.Set(key, value)
	})
	if err != nil {
		return err
	}
	logger.Info("parameter set", "key", key, "value", value)
	return nil
}

// checkFeeRate bounds fee rates to [0, FeeScale], i.e. at most 100%.
func checkFeeRate(v *big.Int) error {
	if v == nil || v.Sign() < 0 || v.Cmp(big.NewInt(mesh.FeeScale)) > 0 {
		return reverts.InvalidRate()
	}
	return nil
}
