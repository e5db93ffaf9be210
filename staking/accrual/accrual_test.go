// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accrual

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReward(t *testing.T) {
	duration := uint64(604800)

	tests := []struct {
		name      string
		principal int64
		rate      int64
		elapsed   uint64
		expected  int64
	}{
		{"full duration at 10%", 10_000, 1000, duration, 1000},
		{"half duration at 10%", 10_000, 1000, duration / 2, 500},
		{"double duration at 10%", 10_000, 1000, 2 * duration, 2000},
		{"zero elapsed", 10_000, 1000, 0, 0},
		{"zero principal", 0, 1000, duration, 0},
		{"zero rate", 10_000, 0, duration, 0},
		{"truncates toward zero", 3, 1000, duration / 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reward(big.NewInt(tt.principal), big.NewInt(tt.rate), tt.elapsed, duration)
			assert.Equal(t, tt.expected, got.Int64())
		})
	}
}

func TestRewardZeroDuration(t *testing.T) {
	got := Reward(big.NewInt(10_000), big.NewInt(1000), 100, 0)
	assert.Equal(t, int64(0), got.Int64())
}

func TestRewardLargeValues(t *testing.T) {
	// principal near 2^200 must not overflow or wrap
	principal := new(big.Int).Lsh(big.NewInt(1), 200)
	got := Reward(principal, big.NewInt(10_000), 604800, 604800)
	assert.Equal(t, 0, got.Cmp(principal))
}

func TestFee(t *testing.T) {
	assert.Equal(t, int64(100), Fee(big.NewInt(10_000), big.NewInt(100)).Int64())
	assert.Equal(t, int64(2000), Fee(big.NewInt(10_000), big.NewInt(2000)).Int64())
	assert.Equal(t, int64(10_000), Fee(big.NewInt(10_000), big.NewInt(10_000)).Int64())
	assert.Equal(t, int64(0), Fee(big.NewInt(99), big.NewInt(100)).Int64())
	assert.Equal(t, int64(0), Fee(big.NewInt(0), big.NewInt(100)).Int64())
	assert.Equal(t, int64(0), Fee(big.NewInt(10_000), big.NewInt(0)).Int64())
}
