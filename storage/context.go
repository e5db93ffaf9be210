// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package storage provides typed accessors over state slots, similar to
// declaring variables in a smart contract: fixed slots for scalars and
// hashed slots for mappings keyed by arbitrary byte keys.
package storage

import (
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/state"
)

// Context binds typed accessors to a namespace address within a state.
// Each engine component owns one namespace so slot layouts cannot collide.
type Context struct {
	address mesh.Address
	state   *state.State
}

func NewContext(address mesh.Address, state *state.State) *Context {
	return &Context{address: address, state: state}
}

// Address returns the namespace address of the context.
func (c *Context) Address() mesh.Address {
	return c.address
}

// State returns the underlying state.
func (c *Context) State() *state.State {
	return c.state
}
