// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stakers exposes per-user positions and the stake/unstake surface
// over http.
package stakers

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakemesh/mesh/api/utils"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/staking"
)

type Stakers struct {
	engine *staking.Staking
	now    func() uint64
}

func New(engine *staking.Staking, now func() uint64) *Stakers {
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Stakers{engine: engine, now: now}
}

// Position is the http projection of a user's global position.
type Position struct {
	Address mesh.Address          `json:"address"`
	Staked  *math.HexOrDecimal256 `json:"staked"`
	Rewards *math.HexOrDecimal256 `json:"rewards"`
}

// PoolStake is the http projection of a user's stake in one pool.
type PoolStake struct {
	Pool          mesh.Address          `json:"pool"`
	Amount        *math.HexOrDecimal256 `json:"amount"`
	StartTime     uint64                `json:"startTime"`
	LastSettled   uint64                `json:"lastSettled"`
	PendingReward *math.HexOrDecimal256 `json:"pendingReward"`
}

type stakeRequest struct {
	Pool   mesh.Address          `json:"pool"`
	Amount *math.HexOrDecimal256 `json:"amount"`
}

type unstakeRequest struct {
	Pool mesh.Address `json:"pool"`
}

func (s *Stakers) handleGetPosition(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	pos, err := s.engine.Position(addr)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Position{
		Address: addr,
		Staked:  (*math.HexOrDecimal256)(pos.Staked),
		Rewards: (*math.HexOrDecimal256)(pos.Rewards),
	})
}

func (s *Stakers) handleGetPoolStake(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	pool, err := mesh.ParseAddress(mux.Vars(req)["pool"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "pool"))
	}
	ps, err := s.engine.PoolStake(addr, *pool)
	if err != nil {
		return err
	}
	pending, err := s.engine.PendingReward(addr, *pool, s.now())
	if err != nil {
		return utils.RevertError(err)
	}
	return utils.WriteJSON(w, &PoolStake{
		Pool:          *pool,
		Amount:        (*math.HexOrDecimal256)(ps.Amount),
		StartTime:     ps.StartTime,
		LastSettled:   ps.LastSettled,
		PendingReward: (*math.HexOrDecimal256)(pending),
	})
}

func (s *Stakers) handleStake(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	var body stakeRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := s.engine.Stake(addr, body.Pool, (*big.Int)(body.Amount), s.now()); err != nil {
		return utils.RevertError(err)
	}
	return s.writePoolStake(w, addr, body.Pool)
}

func (s *Stakers) handleUnstake(w http.ResponseWriter, req *http.Request) error {
	return s.handleExit(w, req, false)
}

func (s *Stakers) handleEarlyUnstake(w http.ResponseWriter, req *http.Request) error {
	return s.handleExit(w, req, true)
}

func (s *Stakers) handleExit(w http.ResponseWriter, req *http.Request, early bool) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	var body unstakeRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if early {
		err = s.engine.EarlyUnstake(addr, body.Pool, s.now())
	} else {
		err = s.engine.Unstake(addr, body.Pool, s.now())
	}
	if err != nil {
		return utils.RevertError(err)
	}
	return s.writePoolStake(w, addr, body.Pool)
}

func (s *Stakers) writePoolStake(w http.ResponseWriter, addr, pool mesh.Address) error {
	ps, err := s.engine.PoolStake(addr, pool)
	if err != nil {
		return err
	}
	pending, err := s.engine.PendingReward(addr, pool, s.now())
	if err != nil {
		return utils.RevertError(err)
	}
	return utils.WriteJSON(w, &PoolStake{
		Pool:          pool,
		Amount:        (*math.HexOrDecimal256)(ps.Amount),
		StartTime:     ps.StartTime,
		LastSettled:   ps.LastSettled,
		PendingReward: (*math.HexOrDecimal256)(pending),
	})
}

func parseAddress(req *http.Request) (mesh.Address, error) {
	addr, err := mesh.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return mesh.Address{}, utils.BadRequest(errors.WithMessage(err, "address"))
	}
	return *addr, nil
}

func (s *Stakers) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{address}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(s.handleGetPosition))
	sub.Path("/{address}/pools/{pool}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(s.handleGetPoolStake))
	sub.Path("/{address}/stake").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(s.handleStake))
	sub.Path("/{address}/unstake").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(s.handleUnstake))
	sub.Path("/{address}/early-unstake").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(s.handleEarlyUnstake))
}
