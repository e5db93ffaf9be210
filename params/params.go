// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package params keeps the engine's admin-owned configuration in state.
package params

import (
	"math/big"

	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/storage"
)

// Well-known parameter keys.
var (
	KeyStakingDuration = mesh.BytesToBytes32([]byte("staking-duration"))
	KeyStakingFee      = mesh.BytesToBytes32([]byte("staking-fee"))
	KeyEarlyUnstakeFee = mesh.BytesToBytes32([]byte("early-unstake-fee"))
	KeyRewardRate      = mesh.BytesToBytes32([]byte("reward-rate"))
	KeyFeeSink         = mesh.BytesToBytes32([]byte("fee-sink"))
)

// defaults applied when a key has never been set.
var defaults = map[mesh.Bytes32]*big.Int{
	KeyStakingDuration: big.NewInt(mesh.DefaultStakingDuration),
	KeyStakingFee:      big.NewInt(mesh.DefaultStakingFee),
	KeyEarlyUnstakeFee: big.NewInt(mesh.DefaultEarlyUnstakeFee),
	KeyRewardRate:      big.NewInt(mesh.DefaultRewardRate),
}

// Params reads and writes configuration values.
type Params struct {
	context *storage.Context
}

// New create params bound to the given storage context.
func New(context *storage.Context) *Params {
	return &Params{context: context}
}

// Get returns the value for key, falling back to the built-in default
// when the key has never been written.
func (p *Params) Get(key mesh.Bytes32) (*big.Int, error) {
	word, err := p.context.State().GetStorage(p.context.Address(), key)
	if err != nil {
		return nil, err
	}
	if word.IsZero() {
		if def, ok := defaults[key]; ok {
			return new(big.Int).Set(def), nil
		}
		return new(big.Int), nil
	}
	return new(big.Int).SetBytes(word.Bytes()), nil
}

// Set writes the value for key.
func (p *Params) Set(key mesh.Bytes32, value *big.Int) error {
	return storage.NewUint256(p.context, key).Set(value)
}

// GetAddress returns an address-valued parameter.
func (p *Params) GetAddress(key mesh.Bytes32) (mesh.Address, error) {
	word, err := p.context.State().GetStorage(p.context.Address(), key)
	if err != nil {
		return mesh.Address{}, err
	}
	return mesh.BytesToAddress(word.Bytes()), nil
}

// SetAddress writes an address-valued parameter.
func (p *Params) SetAddress(key mesh.Bytes32, addr mesh.Address) {
	p.context.State().SetStorage(p.context.Address(), key, mesh.BytesToBytes32(addr.Bytes()))
}
