// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staking implements the multi-pool staking engine: pool lifecycle,
// per-user stake accounting, time-proportional reward accrual, fee and
// penalty application on exit, and batched pool migration.
//
// Every mutating operation is atomic: accrual settlement, principal changes
// and ledger transfers either all commit or all revert. Operations are
// serialized by an engine-wide mutex; callers provide the operation time.
package staking

import (
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/stakemesh/mesh/authority"
	"github.com/stakemesh/mesh/events"
	"github.com/stakemesh/mesh/ledger"
	"github.com/stakemesh/mesh/log"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/metrics"
	"github.com/stakemesh/mesh/params"
	"github.com/stakemesh/mesh/reverts"
	"github.com/stakemesh/mesh/staking/accrual"
	"github.com/stakemesh/mesh/staking/pools"
	"github.com/stakemesh/mesh/staking/positions"
	"github.com/stakemesh/mesh/staking/stats"
	"github.com/stakemesh/mesh/state"
	"github.com/stakemesh/mesh/storage"
)

var (
	logger = log.WithContext("pkg", "staking")

	metricOpCount    = metrics.CounterVec("staking_op_count", []string{"op", "status"})
	metricOpDuration = metrics.Histogram("staking_op_duration_ms", metrics.Bucket10s)
	metricStaked     = metrics.Gauge("staking_total_staked")
)

// Config binds the engine to its accounts in state.
type Config struct {
	// Address is the storage-context address all engine slots live under.
	Address mesh.Address
	// Custody holds staked principal and funds payouts.
	Custody mesh.Address
	// FeeAccount funds entry fees, so fees never shrink recorded principal.
	FeeAccount mesh.Address
}

// Staking is the engine facade. All operations are safe for concurrent use.
type Staking struct {
	mu    sync.Mutex
	state *state.State
	token ledger.Token
	sink  events.Sink

	pools     *pools.Service
	positions *positions.Service
	stats     *stats.Service
	params    *params.Params
	auth      *authority.Authority

	custody    mesh.Address
	feeAccount mesh.Address

	// set while a ledger call is outstanding; see lock.
	inTransfer atomic.Bool
}

// New create a staking engine over the given state and token ledger.
// A nil sink discards events.
func New(cfg Config, st *state.State, token ledger.Token, sink events.Sink) *Staking {
	if sink == nil {
		sink = events.NopSink{}
	}
	sctx := storage.NewContext(cfg.Address, st)
	return &Staking{
		state:      st,
		token:      token,
		sink:       sink,
		pools:      pools.New(sctx),
		positions:  positions.New(sctx),
		stats:      stats.New(sctx),
		params:     params.New(sctx),
		auth:       authority.New(sctx),
		custody:    cfg.Custody,
		feeAccount: cfg.FeeAccount,
	}
}

// lock acquires the engine mutex. When the mutex is contended while a
// ledger call is outstanding, the caller may be the ledger re-entering
// the engine on the same goroutine; blocking would deadlock, so the
// call is rejected instead.
func (s *Staking) lock() error {
	if s.mu.TryLock() {
		return nil
	}
	if s.inTransfer.Load() {
		return reverts.ReentrantCall()
	}
	s.mu.Lock()
	return nil
}

// atomically runs fn inside a state checkpoint and commits on success.
// Any error reverts every journaled mutation fn made.
func (s *Staking) atomically(fn func() error) error {
	cp := s.state.NewCheckpoint()
	if err := fn(); err != nil {
		s.state.RevertTo(cp)
		return err
	}
	if err := s.state.Stage().Commit(); err != nil {
		s.state.RevertTo(cp)
		return errors.Wrap(err, "commit staking state")
	}
	return nil
}

func (s *Staking) emit(evs ...*events.Event) {
	for _, ev := range evs {
		if err := s.sink.Append(ev); err != nil {
			logger.Warn("event sink failed", "event", ev.Name, "error", err)
		}
	}
}

func record(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "reverted"
	}
	metricOpCount.AddWithLabel(1, map[string]string{"op": op, "status": status})
	metricOpDuration.Observe(time.Since(start).Milliseconds())
}

// updateStakedGauge mirrors the committed engine-wide staked total.
func (s *Staking) updateStakedGauge() {
	if total, err := s.stats.TotalStaked(); err == nil {
		metricStaked.Set(clampInt64(total))
	}
}

// clampInt64 saturates instead of wrapping for values beyond 63 bits.
func clampInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() > 0 {
		return math.MaxInt64
	}
	return math.MinInt64
}

// rateOf returns the pool's yield rate, falling back to the global
// reward-rate parameter when the pool carries none.
func (s *Staking) rateOf(pool *pools.Pool) (*big.Int, error) {
	if pool.Rate != nil && pool.Rate.Sign() > 0 {
		return pool.Rate, nil
	}
	return s.params.Get(params.KeyRewardRate)
}

// settle credits the yield ps earned since its last settlement and advances
// both the stake's and the pool's settlement time to now. It must run before
// any change to principal or rate, so no reward window ever spans a change.
func (s *Staking) settle(user, id mesh.Address, pool *pools.Pool, ps *positions.PoolStake, now uint64) error {
	if now > ps.LastSettled && ps.Amount.Sign() > 0 {
		rate, err := s.rateOf(pool)
		if err != nil {
			return err
		}
		duration, err := s.params.Get(params.KeyStakingDuration)
		if err != nil {
			return err
		}
		increment := accrual.Reward(ps.Amount, rate, now-ps.LastSettled, duration.Uint64())
		if err := s.positions.CreditReward(user, increment); err != nil {
			return err
		}
	}
	if now > ps.LastSettled {
		ps.LastSettled = now
		if err := s.positions.SetPoolStake(user, id, ps); err != nil {
			return err
		}
	}
	if now > pool.LastUpdateTime {
		pool.LastUpdateTime = now
		if err := s.pools.Update(id, pool); err != nil {
			return err
		}
	}
	return nil
}

// collectFee moves fee out of from and destroys it. When a fee sink is
// configured the value passes through it before burning, keeping an
// auditable trail; otherwise it is burned in place.
func (s *Staking) collectFee(from mesh.Address, fee *big.Int) error {
	if fee.Sign() == 0 {
		return nil
	}
	sink, err := s.params.GetAddress(params.KeyFeeSink)
	if err != nil {
		return err
	}
	holder := from
	if !sink.IsZero() {
		if err := s.transfer(from, sink, fee); err != nil {
			return err
		}
		holder = sink
	}
	if err := s.burn(holder, fee); err != nil {
		return err
	}
	return s.stats.AddFeesBurned(fee)
}

func (s *Staking) transfer(from, to mesh.Address, amount *big.Int) error {
	s.inTransfer.Store(true)
	defer s.inTransfer.Store(false)
	return transferErr(s.token.Transfer(from, to, amount))
}

func (s *Staking) burn(from mesh.Address, amount *big.Int) error {
	s.inTransfer.Store(true)
	defer s.inTransfer.Store(false)
	return transferErr(s.token.Burn(from, amount))
}

func transferErr(err error) error {
	if err == nil || reverts.IsRevert(err) {
		return err
	}
	return reverts.TransferFailed(err)
}

//
// read-only surface
//

// GetPool returns the pool record, nil when never created.
func (s *Staking) GetPool(id mesh.Address) (*pools.Pool, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.pools.Get(id)
}

// ListPools returns all pool identifiers in creation order.
func (s *Staking) ListPools() ([]mesh.Address, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.pools.List()
}

// MemberCount returns the number of stakers in the pool.
func (s *Staking) MemberCount(id mesh.Address) (uint64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return s.pools.MemberCount(id)
}

// Position returns the user's global position.
func (s *Staking) Position(user mesh.Address) (*positions.Position, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.positions.GetPosition(user)
}

// PoolStake returns the user's stake in the given pool.
func (s *Staking) PoolStake(user, pool mesh.Address) (*positions.PoolStake, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.positions.GetPoolStake(user, pool)
}

// PendingReward projects the yield the stake would be credited if settled
// at time now. It mutates nothing.
func (s *Staking) PendingReward(user, id mesh.Address, now uint64) (*big.Int, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	pool, err := s.pools.Get(id)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, reverts.PoolNotFound()
	}
	ps, err := s.positions.GetPoolStake(user, id)
	if err != nil {
		return nil, err
	}
	if ps.Amount.Sign() == 0 || now <= ps.LastSettled {
		return new(big.Int), nil
	}
	rate, err := s.rateOf(pool)
	if err != nil {
		return nil, err
	}
	duration, err := s.params.Get(params.KeyStakingDuration)
	if err != nil {
		return nil, err
	}
	return accrual.Reward(ps.Amount, rate, now-ps.LastSettled, duration.Uint64()), nil
}

// Totals are the engine-wide counters.
type Totals struct {
	TotalStaked *big.Int `json:"totalStaked"`
	FeesBurned  *big.Int `json:"feesBurned"`
	RewardsPaid *big.Int `json:"rewardsPaid"`
}

// GetTotals returns the engine-wide counters.
func (s *Staking) GetTotals() (*Totals, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	staked, err := s.stats.TotalStaked()
	if err != nil {
		return nil, err
	}
	burned, err := s.stats.FeesBurned()
	if err != nil {
		return nil, err
	}
	paid, err := s.stats.RewardsPaid()
	if err != nil {
		return nil, err
	}
	return &Totals{TotalStaked: staked, FeesBurned: burned, RewardsPaid: paid}, nil
}

// GetParam returns the configuration value for key.
func (s *Staking) GetParam(key mesh.Bytes32) (*big.Int, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.params.Get(key)
}

// FeeSink returns the configured fee sink address, zero when unset.
func (s *Staking) FeeSink() (mesh.Address, error) {
	if err := s.lock(); err != nil {
		return mesh.Address{}, err
	}
	defer s.mu.Unlock()
	return s.params.GetAddress(params.KeyFeeSink)
}

// Admin returns the current admin address.
func (s *Staking) Admin() (mesh.Address, error) {
	if err := s.lock(); err != nil {
		return mesh.Address{}, err
	}
	defer s.mu.Unlock()
	return s.auth.Admin()
}
