// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package authority implements the engine's single authorization predicate.
// It is deliberately a capability-check abstraction so finer-grained roles
// can be added later without touching accrual or exit logic.
package authority

import (
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/reverts"
	"github.com/stakemesh/mesh/storage"
)

// Authorizer answers the binary admin check.
type Authorizer interface {
	IsAdmin(caller mesh.Address) (bool, error)
}

var slotAdmin = mesh.BytesToBytes32([]byte("admin"))

// Authority is the state-backed Authorizer with a single admin account.
type Authority struct {
	context *storage.Context
}

// New create an authority bound to the given storage context.
func New(context *storage.Context) *Authority {
	return &Authority{context: context}
}

// Admin returns the current admin address, zero if never initialized.
func (a *Authority) Admin() (mesh.Address, error) {
	word, err := a.context.State().GetStorage(a.context.Address(), slotAdmin)
	if err != nil {
		return mesh.Address{}, err
	}
	return mesh.BytesToAddress(word.Bytes()), nil
}

// Init sets the admin for the first time. Subsequent calls are rejected.
func (a *Authority) Init(admin mesh.Address) error {
	if admin.IsZero() {
		return reverts.InvalidAddress()
	}
	current, err := a.Admin()
	if err != nil {
		return err
	}
	if !current.IsZero() {
		return reverts.Unauthorized()
	}
	a.context.State().SetStorage(a.context.Address(), slotAdmin, mesh.BytesToBytes32(admin.Bytes()))
	return nil
}

// Transfer hands the admin role to a new address. Only the current admin may call.
func (a *Authority) Transfer(caller, next mesh.Address) error {
	ok, err := a.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return reverts.Unauthorized()
	}
	if next.IsZero() {
		return reverts.InvalidAddress()
	}
	a.context.State().SetStorage(a.context.Address(), slotAdmin, mesh.BytesToBytes32(next.Bytes()))
	return nil
}

// IsAdmin implements Authorizer.
func (a *Authority) IsAdmin(caller mesh.Address) (bool, error) {
	admin, err := a.Admin()
	if err != nil {
		return false, err
	}
	return !admin.IsZero() && admin == caller, nil
}
