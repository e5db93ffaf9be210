// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pools exposes the pool registry and migration surface over http.
package pools

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

type Pools struct {
	engine *staking.Staking
	now    func() uint64
}

func New(engine *staking.Staking, now func() uint64) *Pools {
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Pools{engine: engine, now: now}
}

// Pool is the http projection of a pool record.
type Pool struct {
	ID             mesh.Address          `json:"id"`
	Rate           *math.HexOrDecimal256 `json:"rate"`
	TotalStaked    *math.HexOrDecimal256 `json:"totalStaked"`
	LastUpdateTime uint64                `json:"lastUpdateTime"`
	CreatedAt      uint64                `json:"createdAt"`
	Migrating      bool                  `json:"migrating"`
	PendingRate    *math.HexOrDecimal256 `json:"pendingRate,omitempty"`
	Members        uint64                `json:"members"`
}

type createRequest struct {
	Caller mesh.Address          `json:"caller"`
	ID     mesh.Address          `json:"id"`
	Rate   *math.HexOrDecimal256 `json:"rate"`
}

type rateRequest struct {
	Caller mesh.Address          `json:"caller"`
	Rate   *math.HexOrDecimal256 `json:"rate"`
}

type batchRequest struct {
	Caller mesh.Address `json:"caller"`
	Limit  uint64       `json:"limit"`
}

type batchResult struct {
	Processed uint64 `json:"processed"`
	Done      bool   `json:"done"`
}

func (p *Pools) pool(id mesh.Address) (*Pool, error) {
	pool, err := p.engine.GetPool(id)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, utils.NotFound(errors.New("pool not found"))
	}
	members, err := p.engine.MemberCount(id)
	if err != nil {
		return nil, err
	}
	out := &Pool{
		ID:             id,
		Rate:           (*math.HexOrDecimal256)(pool.Rate),
		TotalStaked:    (*math.HexOrDecimal256)(pool.TotalStaked),
		LastUpdateTime: pool.LastUpdateTime,
		CreatedAt:      pool.CreatedAt,
		Migrating:      pool.Migrating,
		Members:        members,
	}
	if pool.Migrating {
		out.PendingRate = (*math.HexOrDecimal256)(pool.PendingRate)
	}
	return out, nil
}

func (p *Pools) handleList(w http.ResponseWriter, _ *http.Request) error {
	ids, err := p.engine.ListPools()
	if err != nil {
		return err
	}
	out := make([]*Pool, 0, len(ids))
	for _, id := range ids {
		pool, err := p.pool(id)
		if err != nil {
			return err
		}
		out = append(out, pool)
	}
	return utils.WriteJSON(w, out)
}

func (p *Pools) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	pool, err := p.pool(id)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, pool)
}

func (p *Pools) handleTotals(w http.ResponseWriter, _ *http.Request) error {
	totals, err := p.engine.GetTotals()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{
		"totalStaked": (*math.HexOrDecimal256)(totals.TotalStaked),
		"feesBurned":  (*math.HexOrDecimal256)(totals.FeesBurned),
		"rewardsPaid": (*math.HexOrDecimal256)(totals.RewardsPaid),
	})
}

func (p *Pools) handleCreate(w http.ResponseWriter, req *http.Request) error {
	var body createRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.engine.AddPool(body.Caller, body.ID, (*big.Int)(body.Rate), p.now()); err != nil {
		return utils.RevertError(err)
	}
	pool, err := p.pool(body.ID)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, pool)
}

func (p *Pools) handleSetRate(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	var body rateRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.engine.SetPoolRate(body.Caller, id, (*big.Int)(body.Rate), p.now()); err != nil {
		return utils.RevertError(err)
	}
	pool, err := p.pool(id)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, pool)
}

func (p *Pools) handleStartMigration(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	var body rateRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.engine.StartMigration(body.Caller, id, (*big.Int)(body.Rate), p.now()); err != nil {
		return utils.RevertError(err)
	}
	pool, err := p.pool(id)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, pool)
}

func (p *Pools) handleMigrateBatch(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	var body batchRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	processed, done, err := p.engine.MigrateBatch(body.Caller, id, body.Limit, p.now())
	if err != nil {
		return utils.RevertError(err)
	}
	return utils.WriteJSON(w, &batchResult{Processed: processed, Done: done})
}

func parseID(req *http.Request) (mesh.Address, error) {
	id, err := mesh.ParseAddress(mux.Vars(req)["id"])
	if err != nil {
		return mesh.Address{}, utils.BadRequest(errors.WithMessage(err, "id"))
	}
	return *id, nil
}

func (p *Pools) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/totals").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(p.handleTotals))
	sub.Path("").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(p.handleList))
	sub.Path("").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(p.handleCreate))
	sub.Path("/{id}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(p.handleGet))
	sub.Path("/{id}/rate").Methods(http.MethodPut).HandlerFunc(utils.WrapHandlerFunc(p.handleSetRate))
	sub.Path("/{id}/migration").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(p.handleStartMigration))
	sub.Path("/{id}/migration/batch").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(p.handleMigrateBatch))
}
