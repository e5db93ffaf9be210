// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"math/big"

	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/reverts"
)

// Uint256 is a wrapper for storage and retrieval of a non-negative integer,
// similar to storing an uint256 in a smart contract.
// Values that do not fit into 256 bits are rejected, not truncated.
type Uint256 struct {
	context *Context
	pos     mesh.Bytes32
}

func NewUint256(context *Context, slot mesh.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: slot}
}

func (u *Uint256) Get() (*big.Int, error) {
	word, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(word.Bytes()), nil
}

func (u *Uint256) Set(value *big.Int) error {
	if value.Sign() < 0 || value.Cmp(mesh.MaxUint256) > 0 {
		return reverts.ArithmeticOverflow()
	}
	u.context.state.SetStorage(u.context.address, u.pos, mesh.BytesToBytes32(value.Bytes()))
	return nil
}

func (u *Uint256) Add(value *big.Int) error {
	stored, err := u.Get()
	if err != nil {
		return err
	}
	return u.Set(stored.Add(stored, value))
}

// Sub subtracts value from the stored integer.
// Driving the value negative fails with an underflow revert, leaving the slot unchanged.
func (u *Uint256) Sub(value *big.Int) error {
	stored, err := u.Get()
	if err != nil {
		return err
	}
	if stored.Cmp(value) < 0 {
		return reverts.Underflow()
	}
	return u.Set(stored.Sub(stored, value))
}
