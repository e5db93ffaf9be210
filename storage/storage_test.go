// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/mesh/lvldb"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/reverts"
	"github.com/stakemesh/mesh/state"
)

func newContext(t *testing.T) *Context {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	return NewContext(mesh.BytesToAddress([]byte("ctx")), state.New(db))
}

func TestUint256(t *testing.T) {
	ctx := newContext(t)
	v := NewUint256(ctx, mesh.BytesToBytes32([]byte("slot")))

	got, err := v.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Int64())

	require.NoError(t, v.Set(big.NewInt(100)))
	require.NoError(t, v.Add(big.NewInt(50)))
	require.NoError(t, v.Sub(big.NewInt(30)))

	got, err = v.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.Int64())
}

func TestUint256Underflow(t *testing.T) {
	ctx := newContext(t)
	v := NewUint256(ctx, mesh.BytesToBytes32([]byte("slot")))
	require.NoError(t, v.Set(big.NewInt(10)))

	err := v.Sub(big.NewInt(11))
	code, ok := reverts.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, reverts.CodeArithmetic, code)

	// failed decrement leaves the slot untouched
	got, err := v.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Int64())
}

func TestUint256Overflow(t *testing.T) {
	ctx := newContext(t)
	v := NewUint256(ctx, mesh.BytesToBytes32([]byte("slot")))

	require.NoError(t, v.Set(mesh.MaxUint256))
	err := v.Add(big.NewInt(1))
	code, ok := reverts.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, reverts.CodeArithmetic, code)

	assert.Error(t, v.Set(big.NewInt(-1)))
}

type record struct {
	Amount *big.Int
	Time   uint64
}

func TestMapping(t *testing.T) {
	ctx := newContext(t)
	m := NewMapping[mesh.Address, *record](ctx, mesh.BytesToBytes32([]byte("base")))
	key := mesh.BytesToAddress([]byte("k1"))

	got, err := m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Time)
	assert.Nil(t, got.Amount)

	require.NoError(t, m.Set(key, &record{Amount: big.NewInt(42), Time: 7}))
	got, err = m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Amount.Int64())
	assert.Equal(t, uint64(7), got.Time)

	// distinct keys land in distinct slots
	other, err := m.Get(mesh.BytesToAddress([]byte("k2")))
	require.NoError(t, err)
	assert.Nil(t, other.Amount)

	require.NoError(t, m.Delete(key))
	got, err = m.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got.Amount)
}
