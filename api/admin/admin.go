// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin exposes the engine's configuration surface over http.
// Every mutation requires the caller to hold the admin role; the check
// is enforced by the engine, not here.
package admin

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakemesh/mesh/api/utils"
	"github.com/stakemesh/mesh/log"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/params"
	"github.com/stakemesh/mesh/staking"
)

type Admin struct {
	engine *staking.Staking
}

func New(engine *staking.Staking) *Admin {
	return &Admin{engine: engine}
}

type paramRequest struct {
	Caller mesh.Address          `json:"caller"`
	Value  *math.HexOrDecimal256 `json:"value"`
}

type addressRequest struct {
	Caller  mesh.Address `json:"caller"`
	Address mesh.Address `json:"address"`
}

// settable parameters, by url name
var setters = map[string]struct {
	key mesh.Bytes32
	set func(engine *staking.Staking, caller mesh.Address, value *big.Int) error
}{
	"staking-duration":  {params.KeyStakingDuration, (*staking.Staking).SetStakingDuration},
	"staking-fee":       {params.KeyStakingFee, (*staking.Staking).SetStakingFee},
	"early-unstake-fee": {params.KeyEarlyUnstakeFee, (*staking.Staking).SetEarlyUnstakeFee},
	"reward-rate":       {params.KeyRewardRate, (*staking.Staking).SetRewardRate},
}

func (a *Admin) handleGetConfig(w http.ResponseWriter, _ *http.Request) error {
	out := utils.M{}
	for name, s := range setters {
		value, err := a.engine.GetParam(s.key)
		if err != nil {
			return err
		}
		out[name] = (*math.HexOrDecimal256)(value)
	}
	sink, err := a.engine.FeeSink()
	if err != nil {
		return err
	}
	out["fee-sink"] = sink
	adminAddr, err := a.engine.Admin()
	if err != nil {
		return err
	}
	out["admin"] = adminAddr
	return utils.WriteJSON(w, out)
}

func (a *Admin) handleSetParam(w http.ResponseWriter, req *http.Request) error {
	name := mux.Vars(req)["name"]
	setter, ok := setters[name]
	if !ok {
		return utils.NotFound(errors.New("unknown parameter: " + name))
	}
	var body paramRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := setter.set(a.engine, body.Caller, (*big.Int)(body.Value)); err != nil {
		return utils.RevertError(err)
	}
	return utils.WriteJSON(w, utils.M{name: body.Value})
}

func (a *Admin) handleSetFeeSink(w http.ResponseWriter, req *http.Request) error {
	var body addressRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := a.engine.SetFeeSink(body.Caller, body.Address); err != nil {
		return utils.RevertError(err)
	}
	return utils.WriteJSON(w, utils.M{"fee-sink": body.Address})
}

func (a *Admin) handleTransferAdmin(w http.ResponseWriter, req *http.Request) error {
	var body addressRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := a.engine.TransferAdmin(body.Caller, body.Address); err != nil {
		return utils.RevertError(err)
	}
	return utils.WriteJSON(w, utils.M{"admin": body.Address})
}

type verbosityRequest struct {
	Caller mesh.Address `json:"caller"`
	Level  string       `json:"level"`
}

func (a *Admin) handleGetVerbosity(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, utils.M{"level": strings.ToLower(log.LevelVar().Level().String())})
}

// handleSetVerbosity switches the process log level at runtime.
func (a *Admin) handleSetVerbosity(w http.ResponseWriter, req *http.Request) error {
	var body verbosityRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	adminAddr, err := a.engine.Admin()
	if err != nil {
		return err
	}
	if body.Caller != adminAddr {
		return utils.Forbidden(errors.New("caller is not admin"))
	}
	lvl, ok := log.ParseLevel(body.Level)
	if !ok {
		return utils.BadRequest(errors.New("invalid level: " + body.Level))
	}
	log.SetLevel(lvl)
	return utils.WriteJSON(w, utils.M{"level": body.Level})
}

func (a *Admin) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/config").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetConfig))
	sub.Path("/params/{name}").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(a.handleSetParam))
	sub.Path("/fee-sink").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(a.handleSetFeeSink))
	sub.Path("/transfer").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(a.handleTransferAdmin))
	sub.Path("/verbosity").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetVerbosity))
	sub.Path("/verbosity").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(a.handleSetVerbosity))
}
