// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stakemesh/mesh/stackedmap"
)

func M(a ...any) []any {
	return a
}

func TestStackedMap(t *testing.T) {
	assert := assert.New(t)
	src := make(map[string]string)
	src["foo"] = "bar"

	sm := stackedmap.New(func(key any) (any, bool, error) {
		v, r := src[key.(string)]
		return v, r, nil
	})

	tests := []struct {
		f         func()
		depth     int
		putKey    string
		putValue  string
		getKey    string
		getReturn []any
	}{
		{func() {}, 0, "", "", "foo", []any{"bar", true, nil}},
		{func() { sm.Push() }, 1, "foo", "baz", "foo", []any{"baz", true, nil}},
		{func() {}, 1, "foo", "baz1", "foo", []any{"baz1", true, nil}},
		{func() { sm.Push() }, 2, "foo", "qux", "foo", []any{"qux", true, nil}},
		{func() { sm.Pop() }, 1, "", "", "foo", []any{"baz1", true, nil}},
		{func() { sm.Pop() }, 0, "", "", "foo", []any{"bar", true, nil}},

		{func() { sm.Push(); sm.Push() }, 2, "", "", "", nil},
		{func() { sm.PopTo(0) }, 0, "", "", "", nil},
	}

	for _, test := range tests {
		test.f()
		assert.Equal(sm.Depth(), test.depth)
		if test.putKey != "" {
			sm.Put(test.putKey, test.putValue)
		}
		if test.getKey != "" {
			assert.Equal(M(sm.Get(test.getKey)), test.getReturn)
		}
	}
}

// A key rewritten within one level must leave exactly one revision entry,
// or collapsing the stack strands a revision pointing at a popped level
// and the next Get panics.
func TestRewriteWithinLevelThenCollapse(t *testing.T) {
	assert := assert.New(t)
	src := map[string]string{"k": "committed"}

	sm := stackedmap.New(func(key any) (any, bool, error) {
		v, r := src[key.(string)]
		return v, r, nil
	})

	sm.Push()
	sm.Put("k", "first")
	sm.Put("k", "second")
	v, found, err := sm.Get("k")
	assert.Equal(M(v, found, err), []any{"second", true, nil})

	// collapse the journal the way a state commit does
	sm.PopTo(0)
	sm.Push()

	v, found, err = sm.Get("k")
	assert.Equal(M(v, found, err), []any{"committed", true, nil})
}

func TestRewriteWithinLevelThenPop(t *testing.T) {
	assert := assert.New(t)
	sm := stackedmap.New(func(any) (any, bool, error) {
		return nil, false, nil
	})

	sm.Push()
	sm.Put("k", "base")
	sm.Push()
	sm.Put("k", "a")
	sm.Put("k", "b")
	sm.Pop()

	v, found, err := sm.Get("k")
	assert.Equal(M(v, found, err), []any{"base", true, nil})
}

func TestJournalKeepsEveryPut(t *testing.T) {
	assert := assert.New(t)
	sm := stackedmap.New(func(any) (any, bool, error) {
		return nil, false, nil
	})

	sm.Push()
	sm.Put("k", "a")
	sm.Put("k", "b")

	var values []any
	sm.Journal(func(_, value any) bool {
		values = append(values, value)
		return true
	})
	assert.Equal([]any{"a", "b"}, values)
}
