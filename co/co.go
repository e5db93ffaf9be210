// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package co has goroutine life-cycle and signaling helpers.
package co

import "sync"

// Goes runs and manages the life-cycle of goroutines.
type Goes struct {
	wg sync.WaitGroup
}

// Go runs f in a goroutine.
func (g *Goes) Go(f func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		f()
	}()
}

// Wait blocks until all goroutines started by Go are done.
func (g *Goes) Wait() {
	g.wg.Wait()
}

// Done returns a channel closed when all goroutines started by Go are done.
func (g *Goes) Done() chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.wg.Wait()
	}()
	return done
}

// Waiter provides a channel to wait on for a signal or broadcast.
// A true value read from the channel indicates a signal, false a broadcast.
type Waiter interface {
	C() <-chan bool
}

// Signal is a channel-based rendezvous point for goroutines waiting for or
// announcing the occurrence of an event. Unlike sync.Cond, a waiter can
// select on the returned channel alongside other channels.
type Signal struct {
	l  sync.Mutex
	ch chan bool
}

func (s *Signal) init() {
	if s.ch == nil {
		s.ch = make(chan bool, 1)
	}
}

// Signal wakes one waiter.
func (s *Signal) Signal() {
	s.l.Lock()
	defer s.l.Unlock()
	s.init()
	select {
	case s.ch <- true:
	default:
	}
}

// Broadcast wakes all waiters.
func (s *Signal) Broadcast() {
	s.l.Lock()
	defer s.l.Unlock()
	s.init()
	close(s.ch)
	s.ch = make(chan bool, 1)
}

type waiter struct {
	ch chan bool
}

// NewWaiter creates a waiter bound to the signal's current round.
// After a receive, obtain a fresh waiter to observe later rounds.
func (s *Signal) NewWaiter() Waiter {
	s.l.Lock()
	defer s.l.Unlock()
	s.init()
	return waiter{s.ch}
}

func (w waiter) C() <-chan bool {
	return w.ch
}
