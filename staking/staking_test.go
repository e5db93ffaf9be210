// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/mesh/events"
	"github.com/stakemesh/mesh/ledger"
	"github.com/stakemesh/mesh/lvldb"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/reverts"
	"github.com/stakemesh/mesh/state"
	"github.com/stakemesh/mesh/storage"
)

var (
	engineAddr = mesh.BytesToAddress([]byte("staking-engine"))
	ledgerAddr = mesh.BytesToAddress([]byte("token-ledger"))
	custody    = mesh.BytesToAddress([]byte("custody"))
	feeAcc     = mesh.BytesToAddress([]byte("fee-account"))
	admin      = mesh.BytesToAddress([]byte("admin"))
	alice      = mesh.BytesToAddress([]byte("alice"))
	bob        = mesh.BytesToAddress([]byte("bob"))
	carol      = mesh.BytesToAddress([]byte("carol"))
	pool1      = mesh.BytesToAddress([]byte("pool-1"))
	pool2      = mesh.BytesToAddress([]byte("pool-2"))
)

const (
	t0       = uint64(1_700_000_000)
	duration = uint64(mesh.DefaultStakingDuration)
)

type env struct {
	t      *testing.T
	engine *Staking
	ledger *ledger.Ledger
	state  *state.State
	sink   *events.MemSink
}

func newEnv(t *testing.T) *env {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	st := state.New(db)
	led := ledger.New(storage.NewContext(ledgerAddr, st))
	sink := &events.MemSink{}
	engine := New(Config{Address: engineAddr, Custody: custody, FeeAccount: feeAcc}, st, led, sink)

	for _, acc := range []mesh.Address{alice, bob, carol, custody, feeAcc} {
		require.NoError(t, led.Mint(acc, big.NewInt(1_000_000)))
	}
	require.NoError(t, st.Stage().Commit())
	require.NoError(t, engine.Initialize(admin))
	return &env{t: t, engine: engine, ledger: led, state: st, sink: sink}
}

func (e *env) addPool(id mesh.Address, rate int64) {
	require.NoError(e.t, e.engine.AddPool(admin, id, big.NewInt(rate), t0))
}

func (e *env) balance(addr mesh.Address) *big.Int {
	bal, err := e.ledger.BalanceOf(addr)
	require.NoError(e.t, err)
	return bal
}

func revertCode(t *testing.T, err error, want reverts.Code) {
	require.Error(t, err)
	code, ok := reverts.CodeOf(err)
	require.True(t, ok, "expected a revert, got %v", err)
	assert.Equal(t, want, code)
}

func TestStakeValidation(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	revertCode(t, e.engine.Stake(alice, pool1, big.NewInt(0), t0), reverts.CodeValidation)
	revertCode(t, e.engine.Stake(alice, pool1, big.NewInt(-5), t0), reverts.CodeValidation)
	revertCode(t, e.engine.Stake(alice, pool2, big.NewInt(100), t0), reverts.CodeValidation)
	revertCode(t, e.engine.Stake(mesh.Address{}, pool1, big.NewInt(100), t0), reverts.CodeValidation)
}

func TestStakeMovesValueAndRecordsPrincipal(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))

	assert.Equal(t, big.NewInt(990_000), e.balance(alice))
	assert.Equal(t, big.NewInt(1_010_000), e.balance(custody))
	// 1% entry fee paid by the engine's fee account, not by principal
	assert.Equal(t, big.NewInt(999_900), e.balance(feeAcc))

	ps, err := e.engine.PoolStake(alice, pool1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000), ps.Amount)
	assert.Equal(t, t0, ps.StartTime)

	pool, err := e.engine.GetPool(pool1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000), pool.TotalStaked)

	totals, err := e.engine.GetTotals()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000), totals.TotalStaked)
	assert.Equal(t, big.NewInt(100), totals.FeesBurned)
}

func TestPendingReward(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000) // 10% per full duration

	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))

	// no elapsed time, no reward
	pending, err := e.engine.PendingReward(alice, pool1, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Int64())

	// half the duration accrues half the full-duration yield
	pending, err = e.engine.PendingReward(alice, pool1, t0+duration/2)
	require.NoError(t, err)
	assert.Equal(t, int64(500), pending.Int64())

	pending, err = e.engine.PendingReward(alice, pool1, t0+duration)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pending.Int64())
}

func TestRewardsMonotonic(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)
	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))

	prev := big.NewInt(-1)
	for _, dt := range []uint64{0, 1, duration / 7, duration / 3, duration, 2 * duration} {
		pending, err := e.engine.PendingReward(alice, pool1, t0+dt)
		require.NoError(t, err)
		assert.True(t, pending.Cmp(prev) >= 0, "reward decreased at +%d", dt)
		prev = pending
	}
}

func TestUnstakeRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	before := e.balance(alice)
	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))
	require.NoError(t, e.engine.Unstake(alice, pool1, t0+duration))

	// payout = 10000 - 1% fee + 10% reward = 10900
	after := e.balance(alice)
	assert.Equal(t, big.NewInt(900), new(big.Int).Sub(after, before))

	ps, err := e.engine.PoolStake(alice, pool1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ps.Amount.Int64())

	pool, err := e.engine.GetPool(pool1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pool.TotalStaked.Int64())

	totals, err := e.engine.GetTotals()
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.TotalStaked.Int64())
	assert.Equal(t, big.NewInt(1000), totals.RewardsPaid)
}

func TestUnstakeBeforeMaturity(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)
	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))

	revertCode(t, e.engine.Unstake(alice, pool1, t0+duration-1), reverts.CodePrecondition)
	// nothing changed
	ps, err := e.engine.PoolStake(alice, pool1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000), ps.Amount)
}

func TestUnstakeWithoutStake(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)
	revertCode(t, e.engine.Unstake(alice, pool1, t0+duration), reverts.CodePrecondition)
}

func TestEarlyUnstake(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	before := e.balance(alice)
	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))
	require.NoError(t, e.engine.EarlyUnstake(alice, pool1, t0+duration/2))

	// payout = 10000 - 20% penalty + half-duration reward 500 = 8500
	after := e.balance(alice)
	assert.Equal(t, big.NewInt(-1500), new(big.Int).Sub(after, before))

	totals, err := e.engine.GetTotals()
	require.NoError(t, err)
	// 100 entry fee + 2000 penalty
	assert.Equal(t, big.NewInt(2100), totals.FeesBurned)
}

func TestCrossPoolLockIsolation(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)
	e.addPool(pool2, 2000)

	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))
	// a later stake into another pool must not reset pool1's lock or accrual
	require.NoError(t, e.engine.Stake(alice, pool2, big.NewInt(5_000), t0+duration/2))

	pending, err := e.engine.PendingReward(alice, pool1, t0+duration)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pending.Int64())

	require.NoError(t, e.engine.Unstake(alice, pool1, t0+duration))
	revertCode(t, e.engine.Unstake(alice, pool2, t0+duration), reverts.CodePrecondition)
	require.NoError(t, e.engine.Unstake(alice, pool2, t0+duration/2+duration))
}

func TestRestakeSettlesBeforePrincipalChange(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))
	// second stake at half duration settles 500 first, then grows principal
	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0+duration/2))

	pos, err := e.engine.Position(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), pos.Rewards)
	assert.Equal(t, big.NewInt(20_000), pos.Staked)

	// the new principal accrues from the restake time only
	pending, err := e.engine.PendingReward(alice, pool1, t0+duration)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pending.Int64())
}

func TestPoolTotalMatchesSumOfStakes(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(3_000), t0))
	require.NoError(t, e.engine.Stake(bob, pool1, big.NewInt(5_000), t0))
	require.NoError(t, e.engine.Stake(carol, pool1, big.NewInt(2_000), t0))
	require.NoError(t, e.engine.EarlyUnstake(bob, pool1, t0+1))

	sum := new(big.Int)
	for _, user := range []mesh.Address{alice, bob, carol} {
		ps, err := e.engine.PoolStake(user, pool1)
		require.NoError(t, err)
		sum.Add(sum, ps.Amount)
	}
	pool, err := e.engine.GetPool(pool1)
	require.NoError(t, err)
	assert.Equal(t, sum, pool.TotalStaked)
}

func TestEventsEmitted(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))
	require.NoError(t, e.engine.Unstake(alice, pool1, t0+duration))

	var names []string
	for _, ev := range e.sink.Events {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{
		events.PoolCreated,
		events.Staked, events.StatisticsUpdated,
		events.Unstaked, events.RewardPaid, events.StatisticsUpdated,
	}, names)
}

func TestRevertedOpEmitsNothing(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)
	emitted := len(e.sink.Events)

	revertCode(t, e.engine.Stake(alice, pool1, big.NewInt(0), t0), reverts.CodeValidation)
	assert.Len(t, e.sink.Events, emitted)
}

func TestAdminSurfaceAuthorization(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	revertCode(t, e.engine.AddPool(alice, pool2, big.NewInt(500), t0), reverts.CodeAuthorization)
	revertCode(t, e.engine.SetStakingFee(alice, big.NewInt(50)), reverts.CodeAuthorization)
	revertCode(t, e.engine.StartMigration(alice, pool1, big.NewInt(500), t0), reverts.CodeAuthorization)

	require.NoError(t, e.engine.TransferAdmin(admin, bob))
	require.NoError(t, e.engine.SetStakingFee(bob, big.NewInt(50)))
	revertCode(t, e.engine.SetStakingFee(admin, big.NewInt(50)), reverts.CodeAuthorization)
}

func TestSetPoolRateRequiresEmptyPool(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	require.NoError(t, e.engine.SetPoolRate(admin, pool1, big.NewInt(2000), t0))
	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(1_000), t0))
	revertCode(t, e.engine.SetPoolRate(admin, pool1, big.NewInt(3000), t0), reverts.CodePrecondition)
}

func TestFeeRateBounds(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.engine.SetStakingFee(admin, big.NewInt(0)))
	require.NoError(t, e.engine.SetStakingFee(admin, big.NewInt(mesh.FeeScale)))
	revertCode(t, e.engine.SetStakingFee(admin, big.NewInt(mesh.FeeScale+1)), reverts.CodeValidation)
	revertCode(t, e.engine.SetEarlyUnstakeFee(admin, big.NewInt(-1)), reverts.CodeValidation)
}

func TestMigration(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))
	require.NoError(t, e.engine.Stake(bob, pool1, big.NewInt(10_000), t0))
	require.NoError(t, e.engine.Stake(carol, pool1, big.NewInt(10_000), t0))

	mid := t0 + duration/2
	require.NoError(t, e.engine.StartMigration(admin, pool1, big.NewInt(2000), mid))

	// the pool is closed while migrating
	revertCode(t, e.engine.Stake(alice, pool1, big.NewInt(1), mid), reverts.CodePrecondition)
	revertCode(t, e.engine.EarlyUnstake(alice, pool1, mid), reverts.CodePrecondition)
	revertCode(t, e.engine.StartMigration(admin, pool1, big.NewInt(3000), mid), reverts.CodePrecondition)

	processed, done, err := e.engine.MigrateBatch(admin, pool1, 2, mid)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), processed)
	assert.False(t, done)

	processed, done, err = e.engine.MigrateBatch(admin, pool1, 2, mid)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), processed)
	assert.True(t, done)

	// old-rate yield for the first half was settled during migration
	pos, err := e.engine.Position(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), pos.Rewards)

	pool, err := e.engine.GetPool(pool1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2000), pool.Rate)
	assert.False(t, pool.Migrating)

	// the second half accrues at the new rate: 10000 * 20% / 2 = 1000
	pending, err := e.engine.PendingReward(alice, pool1, t0+duration)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pending.Int64())

	// pool reopens after completion
	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(1_000), mid))
	revertCode(t, e.engine.Unstake(alice, pool1, t0+duration), reverts.CodePrecondition)

	_, _, err = e.engine.MigrateBatch(admin, pool1, 2, mid)
	revertCode(t, err, reverts.CodePrecondition)
}

func TestMigrationOfEmptyPool(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)

	require.NoError(t, e.engine.StartMigration(admin, pool1, big.NewInt(2000), t0))
	pool, err := e.engine.GetPool(pool1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2000), pool.Rate)
	assert.False(t, pool.Migrating)
}

// failingToken rejects transfers to a chosen account.
type failingToken struct {
	ledger.Token
	rejectTo mesh.Address
}

func (f *failingToken) Transfer(from, to mesh.Address, amount *big.Int) error {
	if to == f.rejectTo {
		return reverts.TransferFailed(assert.AnError)
	}
	return f.Token.Transfer(from, to, amount)
}

func TestFailedTransferRevertsEverything(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	st := state.New(db)
	led := ledger.New(storage.NewContext(ledgerAddr, st))
	token := &failingToken{Token: led, rejectTo: alice}
	engine := New(Config{Address: engineAddr, Custody: custody, FeeAccount: feeAcc}, st, token, nil)

	for _, acc := range []mesh.Address{alice, custody, feeAcc} {
		require.NoError(t, led.Mint(acc, big.NewInt(1_000_000)))
	}
	require.NoError(t, st.Stage().Commit())
	require.NoError(t, engine.Initialize(admin))
	require.NoError(t, engine.AddPool(admin, pool1, big.NewInt(1000), t0))
	require.NoError(t, engine.Stake(alice, pool1, big.NewInt(10_000), t0))

	// the payout transfer to alice fails; settlement and decrements must not survive
	err = engine.Unstake(alice, pool1, t0+duration)
	revertCode(t, err, reverts.CodeTransfer)

	ps, err := engine.PoolStake(alice, pool1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000), ps.Amount)
	pos, err := engine.Position(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos.Rewards.Int64())
	bal, err := led.BalanceOf(custody)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_010_000), bal)
}

// reentrantToken calls back into the engine during the payout transfer.
type reentrantToken struct {
	ledger.Token
	engine   *Staking
	target   mesh.Address
	observed error
}

func (r *reentrantToken) Transfer(from, to mesh.Address, amount *big.Int) error {
	if from == custody && r.observed == nil {
		r.observed = r.engine.Unstake(to, r.target, t0+2*duration)
	}
	return r.Token.Transfer(from, to, amount)
}

func TestReentrantExitRejected(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	st := state.New(db)
	led := ledger.New(storage.NewContext(ledgerAddr, st))
	token := &reentrantToken{Token: led, target: pool1}
	engine := New(Config{Address: engineAddr, Custody: custody, FeeAccount: feeAcc}, st, token, nil)
	token.engine = engine

	for _, acc := range []mesh.Address{alice, custody, feeAcc} {
		require.NoError(t, led.Mint(acc, big.NewInt(1_000_000)))
	}
	require.NoError(t, st.Stage().Commit())
	require.NoError(t, engine.Initialize(admin))
	require.NoError(t, engine.AddPool(admin, pool1, big.NewInt(1000), t0))
	require.NoError(t, engine.Stake(alice, pool1, big.NewInt(10_000), t0))

	require.NoError(t, engine.Unstake(alice, pool1, t0+duration))
	revertCode(t, token.observed, reverts.CodePrecondition)
}

// crossPoolToken re-enters the engine for an unrelated stake during a
// transfer.
type crossPoolToken struct {
	ledger.Token
	engine   *Staking
	observed error
	called   bool
}

func (c *crossPoolToken) Transfer(from, to mesh.Address, amount *big.Int) error {
	if !c.called {
		c.called = true
		c.observed = c.engine.Stake(bob, pool2, big.NewInt(500), t0)
	}
	return c.Token.Transfer(from, to, amount)
}

func TestReentrantCallForOtherPoolRejected(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	st := state.New(db)
	led := ledger.New(storage.NewContext(ledgerAddr, st))
	token := &crossPoolToken{Token: led}
	engine := New(Config{Address: engineAddr, Custody: custody, FeeAccount: feeAcc}, st, token, nil)
	token.engine = engine

	for _, acc := range []mesh.Address{alice, bob, custody, feeAcc} {
		require.NoError(t, led.Mint(acc, big.NewInt(1_000_000)))
	}
	require.NoError(t, st.Stage().Commit())
	require.NoError(t, engine.Initialize(admin))
	require.NoError(t, engine.AddPool(admin, pool1, big.NewInt(1000), t0))
	require.NoError(t, engine.AddPool(admin, pool2, big.NewInt(2000), t0))

	// the callback targets a different (user, pool) pair; it must fail
	// instead of deadlocking on the engine mutex
	require.NoError(t, engine.Stake(alice, pool1, big.NewInt(10_000), t0))
	revertCode(t, token.observed, reverts.CodePrecondition)

	ps, err := engine.PoolStake(bob, pool2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ps.Amount.Int64())
}

func TestExitRevertsWhenTreasuryUnfunded(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	st := state.New(db)
	led := ledger.New(storage.NewContext(ledgerAddr, st))
	engine := New(Config{Address: engineAddr, Custody: custody, FeeAccount: feeAcc}, st, led, nil)

	require.NoError(t, led.Mint(alice, big.NewInt(1_000_000)))
	require.NoError(t, led.Mint(feeAcc, big.NewInt(1_000_000)))
	require.NoError(t, st.Stage().Commit())
	require.NoError(t, engine.Initialize(admin))
	require.NoError(t, engine.AddPool(admin, pool1, big.NewInt(1000), t0))
	require.NoError(t, engine.Stake(alice, pool1, big.NewInt(10_000), t0))

	// custody holds exactly the principal; the reward surplus has no
	// funding, so the exit reverts in one piece
	revertCode(t, engine.Unstake(alice, pool1, t0+duration), reverts.CodeTransfer)

	ps, err := engine.PoolStake(alice, pool1)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), ps.Amount.Int64())
	bal, err := led.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(990_000), bal.Int64())

	// funding the reward treasury makes the same exit succeed
	require.NoError(t, led.Mint(custody, big.NewInt(1_000)))
	require.NoError(t, st.Stage().Commit())
	require.NoError(t, engine.Unstake(alice, pool1, t0+duration))
	bal, err = led.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_900), bal.Int64())
}

func TestStakedGaugeSaturates(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 80)

	assert.Equal(t, int64(5), clampInt64(big.NewInt(5)))
	assert.Equal(t, int64(math.MaxInt64), clampInt64(big.NewInt(math.MaxInt64)))
	assert.Equal(t, int64(math.MaxInt64), clampInt64(huge))
	assert.Equal(t, int64(math.MinInt64), clampInt64(new(big.Int).Neg(huge)))
}

func TestFeeSinkPassThrough(t *testing.T) {
	e := newEnv(t)
	e.addPool(pool1, 1000)
	sinkAddr := mesh.BytesToAddress([]byte("fee-sink"))
	require.NoError(t, e.engine.SetFeeSink(admin, sinkAddr))

	require.NoError(t, e.engine.Stake(alice, pool1, big.NewInt(10_000), t0))

	// the fee passed through the sink and was burned there
	assert.Equal(t, big.NewInt(999_900), e.balance(feeAcc))
	assert.Equal(t, int64(0), e.balance(sinkAddr).Int64())
	burned, err := e.ledger.TotalBurned()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), burned)
}

func TestInitializeOnce(t *testing.T) {
	e := newEnv(t)
	revertCode(t, e.engine.Initialize(bob), reverts.CodeAuthorization)
}
