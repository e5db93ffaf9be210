// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/mesh/lvldb"
	"github.com/stakemesh/mesh/mesh"
)

var (
	addr = mesh.BytesToAddress([]byte("acc1"))
	key1 = mesh.BytesToBytes32([]byte("key1"))
	key2 = mesh.BytesToBytes32([]byte("key2"))
	val1 = mesh.BytesToBytes32([]byte("val1"))
	val2 = mesh.BytesToBytes32([]byte("val2"))
)

func newState(t *testing.T) (*State, *lvldb.LevelDB) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	return New(db), db
}

func TestStorageRoundTrip(t *testing.T) {
	st, _ := newState(t)

	got, err := st.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	st.SetStorage(addr, key1, val1)
	got, err = st.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.Equal(t, val1, got)

	st.SetStorage(addr, key1, mesh.Bytes32{})
	got, err = st.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestCheckpointRevert(t *testing.T) {
	st, _ := newState(t)
	st.SetStorage(addr, key1, val1)

	cp := st.NewCheckpoint()
	st.SetStorage(addr, key1, val2)
	st.SetStorage(addr, key2, val2)
	st.RevertTo(cp)

	got, err := st.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.Equal(t, val1, got)
	got, err = st.GetStorage(addr, key2)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestNestedCheckpoints(t *testing.T) {
	st, _ := newState(t)

	cp1 := st.NewCheckpoint()
	st.SetStorage(addr, key1, val1)
	cp2 := st.NewCheckpoint()
	st.SetStorage(addr, key1, val2)
	st.RevertTo(cp2)

	got, err := st.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.Equal(t, val1, got)

	st.RevertTo(cp1)
	got, err = st.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestCommitPersists(t *testing.T) {
	st, db := newState(t)
	st.SetStorage(addr, key1, val1)
	require.NoError(t, st.Stage().Commit())

	// a fresh state over the same store sees the committed value
	st2 := New(db)
	got, err := st2.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.Equal(t, val1, got)
}

func TestCommitThenDelete(t *testing.T) {
	st, db := newState(t)
	st.SetStorage(addr, key1, val1)
	require.NoError(t, st.Stage().Commit())

	st.SetStorage(addr, key1, mesh.Bytes32{})
	require.NoError(t, st.Stage().Commit())

	st2 := New(db)
	got, err := st2.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestCommitAfterRewritingSlot(t *testing.T) {
	st, _ := newState(t)

	// a slot deleted and rewritten within one operation must still be
	// readable after the journal collapses on commit
	cp := st.NewCheckpoint()
	st.SetStorage(addr, key1, val1)
	st.SetStorage(addr, key1, mesh.Bytes32{})
	st.SetStorage(addr, key1, val2)
	st.RevertTo(cp)

	st.SetStorage(addr, key1, val1)
	st.SetStorage(addr, key1, mesh.Bytes32{})
	st.SetStorage(addr, key1, val2)
	require.NoError(t, st.Stage().Commit())

	got, err := st.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.Equal(t, val2, got)

	got, err = st.GetStorage(addr, key2)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestUncommittedNotPersisted(t *testing.T) {
	st, db := newState(t)
	st.SetStorage(addr, key1, val1)

	st2 := New(db)
	got, err := st2.GetStorage(addr, key1)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
