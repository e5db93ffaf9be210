// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/mesh/events"
	"github.com/stakemesh/mesh/mesh"
)

var (
	alice = mesh.BytesToAddress([]byte("alice"))
	bob   = mesh.BytesToAddress([]byte("bob"))
	pool1 = mesh.BytesToAddress([]byte("pool-1"))
	pool2 = mesh.BytesToAddress([]byte("pool-2"))
)

func newDB(t *testing.T) *EventDB {
	db, err := NewMem()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func seed(t *testing.T, db *EventDB) {
	for _, ev := range []*events.Event{
		{Time: 100, Name: events.PoolCreated, Pool: pool1, Aux: big.NewInt(1000)},
		{Time: 110, Name: events.Staked, User: alice, Pool: pool1, Amount: big.NewInt(500), Aux: big.NewInt(5)},
		{Time: 120, Name: events.Staked, User: bob, Pool: pool1, Amount: big.NewInt(700), Aux: big.NewInt(7)},
		{Time: 130, Name: events.Staked, User: alice, Pool: pool2, Amount: big.NewInt(900), Aux: big.NewInt(9)},
		{Time: 140, Name: events.Unstaked, User: alice, Pool: pool1, Amount: big.NewInt(500), Aux: big.NewInt(5)},
	} {
		require.NoError(t, db.Append(ev))
	}
}

func TestAppendAndFilterAll(t *testing.T) {
	db := newDB(t)
	seed(t, db)

	got, err := db.Filter(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, events.PoolCreated, got[0].Name)
	assert.Equal(t, big.NewInt(500), got[1].Amount)
	assert.Equal(t, alice, got[1].User)
}

func TestFilterByUser(t *testing.T) {
	db := newDB(t)
	seed(t, db)

	got, err := db.Filter(context.Background(), &Filter{
		CriteriaSet: []*Criteria{{User: &alice}},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, ev := range got {
		assert.Equal(t, alice, ev.User)
	}
}

func TestFilterByNameAndPool(t *testing.T) {
	db := newDB(t)
	seed(t, db)

	name := events.Staked
	got, err := db.Filter(context.Background(), &Filter{
		CriteriaSet: []*Criteria{{Name: &name, Pool: &pool1}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFilterCriteriaAreORed(t *testing.T) {
	db := newDB(t)
	seed(t, db)

	got, err := db.Filter(context.Background(), &Filter{
		CriteriaSet: []*Criteria{{User: &bob}, {Pool: &pool2}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFilterRangeAndOrder(t *testing.T) {
	db := newDB(t)
	seed(t, db)

	got, err := db.Filter(context.Background(), &Filter{
		Range: &Range{From: 110, To: 130},
		Order: DESC,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(130), got[0].Time)
	assert.Equal(t, uint64(110), got[2].Time)
}

func TestFilterPagination(t *testing.T) {
	db := newDB(t)
	seed(t, db)

	got, err := db.Filter(context.Background(), &Filter{
		Options: &Options{Offset: 1, Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].Seq)
	assert.Equal(t, uint64(3), got[1].Seq)
}

func TestAppendedSignal(t *testing.T) {
	db := newDB(t)
	w := db.Appended()

	require.NoError(t, db.Append(&events.Event{Time: 1, Name: events.Staked}))
	select {
	case <-w.C():
	case <-time.After(time.Second):
		t.Fatal("append not signaled")
	}
}
