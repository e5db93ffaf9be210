// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger holds the fungible-value ledger the staking engine moves
// value through. The engine only depends on the Token interface; the
// state-backed implementation here is the default collaborator.
package ledger

import (
	"math/big"

	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/reverts"
	"github.com/stakemesh/mesh/storage"
)

// Token is the ledger contract consumed by the staking engine.
// All amounts are non-negative integers in the ledger's base unit.
// Every call is atomic: it either fully applies or leaves balances unchanged.
type Token interface {
	BalanceOf(addr mesh.Address) (*big.Int, error)
	Transfer(from, to mesh.Address, amount *big.Int) error
	Burn(from mesh.Address, amount *big.Int) error
}

var (
	slotTokenSupply = mesh.BytesToBytes32([]byte("token-supply"))
	slotTotalSub    = mesh.BytesToBytes32([]byte("total-sub"))
)

func accountKey(addr mesh.Address) mesh.Bytes32 {
	return mesh.BytesToBytes32(append([]byte("a"), addr.Bytes()...))
}

// Ledger is the state-backed Token implementation.
type Ledger struct {
	context *Context
}

// Context alias to keep constructor signatures uniform across components.
type Context = storage.Context

// New create a ledger bound to the given storage context.
func New(context *Context) *Ledger {
	return &Ledger{context: context}
}

func (l *Ledger) balance(addr mesh.Address) *storage.Uint256 {
	return storage.NewUint256(l.context, accountKey(addr))
}

// Mint credits freshly issued value to addr and grows the supply.
// Used at genesis and by tests; not reachable through the engine.
func (l *Ledger) Mint(addr mesh.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return reverts.NegativeAmount()
	}
	if err := l.balance(addr).Add(amount); err != nil {
		return err
	}
	return storage.NewUint256(l.context, slotTokenSupply).Add(amount)
}

// BalanceOf returns the current balance of addr.
func (l *Ledger) BalanceOf(addr mesh.Address) (*big.Int, error) {
	return l.balance(addr).Get()
}

// Transfer moves amount from one account to another.
// It fails without partial effects when the payer's balance is short.
func (l *Ledger) Transfer(from, to mesh.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return reverts.NegativeAmount()
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := l.balance(from).Get()
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return reverts.InsufficientBalance()
	}
	if err := l.balance(from).Sub(amount); err != nil {
		return err
	}
	return l.balance(to).Add(amount)
}

// Burn permanently destroys amount from addr's balance.
func (l *Ledger) Burn(from mesh.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return reverts.NegativeAmount()
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := l.balance(from).Get()
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return reverts.InsufficientBalance()
	}
	if err := l.balance(from).Sub(amount); err != nil {
		return err
	}
	return storage.NewUint256(l.context, slotTotalSub).Add(amount)
}

// TotalSupply returns the amount ever minted.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	return storage.NewUint256(l.context, slotTokenSupply).Get()
}

// TotalBurned returns the amount destroyed through Burn.
func (l *Ledger) TotalBurned() (*big.Int, error) {
	return storage.NewUint256(l.context, slotTotalSub).Get()
}
