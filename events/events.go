// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package events defines the observability events emitted by the staking
// engine and the sink they are delivered to. Events never influence
// behavior; a failing sink is reported but does not revert operations.
package events

import (
	"math/big"

	"github.com/stakemesh/mesh/mesh"
)

// Event names.
const (
	Staked            = "Staked"
	Unstaked          = "Unstaked"
	EarlyUnstaked     = "EarlyUnstaked"
	RewardPaid        = "RewardPaid"
	PoolCreated       = "PoolCreated"
	PoolUpdated       = "PoolUpdated"
	StatisticsUpdated = "StatisticsUpdated"
)

// Event is a single engine occurrence.
// Aux carries the event-specific secondary amount: the fee for Staked and
// Unstaked, the penalty for EarlyUnstaked, the rate for pool events.
type Event struct {
	Time   uint64       `json:"time"`
	Name   string       `json:"name"`
	User   mesh.Address `json:"user"`
	Pool   mesh.Address `json:"pool"`
	Amount *big.Int     `json:"amount"`
	Aux    *big.Int     `json:"aux"`
}

// Sink receives emitted events.
type Sink interface {
	Append(ev *Event) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Append(*Event) error { return nil }

// MemSink collects events in memory, for tests.
type MemSink struct {
	Events []*Event
}

func (s *MemSink) Append(ev *Event) error {
	s.Events = append(s.Events, ev)
	return nil
}
