// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pools owns the registry of staking pools and, per pool, the
// insertion-ordered list of stakers used by batched migration.
package pools

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/reverts"
	"github.com/stakemesh/mesh/storage"
)

var (
	slotRegistryHead  = mesh.BytesToBytes32([]byte("pools-head"))
	slotRegistryTail  = mesh.BytesToBytes32([]byte("pools-tail"))
	slotRegistryCount = mesh.BytesToBytes32([]byte("pools-count"))

	basePools   = mesh.BytesToBytes32([]byte("pools"))
	baseMembers = mesh.BytesToBytes32([]byte("pool-members"))
	baseNodes   = mesh.BytesToBytes32([]byte("pool-member-nodes"))
)

func nodeKey(pool, user mesh.Address) mesh.Bytes32 {
	return mesh.Keccak256(pool.Bytes(), user.Bytes())
}

// Service reads and writes pools and their member lists.
type Service struct {
	sctx    *storage.Context
	pools   *storage.Mapping[mesh.Address, *Pool]
	members *storage.Mapping[mesh.Address, *memberList]
	nodes   *storage.Mapping[mesh.Bytes32, *memberNode]
	count   *storage.Uint256
}

func New(sctx *storage.Context) *Service {
	return &Service{
		sctx:    sctx,
		pools:   storage.NewMapping[mesh.Address, *Pool](sctx, basePools),
		members: storage.NewMapping[mesh.Address, *memberList](sctx, baseMembers),
		nodes:   storage.NewMapping[mesh.Bytes32, *memberNode](sctx, baseNodes),
		count:   storage.NewUint256(sctx, slotRegistryCount),
	}
}

// Create registers a new pool with zero staked principal.
func (s *Service) Create(id mesh.Address, rate *big.Int, now uint64) error {
	if id.IsZero() {
		return reverts.InvalidAddress()
	}
	if rate == nil || rate.Sign() <= 0 {
		return reverts.InvalidRate()
	}
	existing, err := s.pools.Get(id)
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return reverts.DuplicatePool()
	}

	pool := &Pool{
		Rate:           new(big.Int).Set(rate),
		TotalStaked:    new(big.Int),
		LastUpdateTime: now,
		CreatedAt:      now,
		PendingRate:    new(big.Int),
	}
	if err := s.pools.Set(id, pool); err != nil {
		return err
	}
	if err := s.registryAppend(id); err != nil {
		return errors.Wrap(err, "append pool to registry")
	}
	return s.count.Add(big.NewInt(1))
}

// Get returns the pool, or nil if it was never created.
func (s *Service) Get(id mesh.Address) (*Pool, error) {
	pool, err := s.pools.Get(id)
	if err != nil {
		return nil, err
	}
	if pool.IsEmpty() {
		return nil, nil
	}
	return pool, nil
}

// GetExisting returns the pool or a PoolNotFound revert.
func (s *Service) GetExisting(id mesh.Address) (*Pool, error) {
	pool, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, reverts.PoolNotFound()
	}
	return pool, nil
}

// Update persists the pool record.
func (s *Service) Update(id mesh.Address, pool *Pool) error {
	return s.pools.Set(id, pool)
}

// SetRate changes the yield rate of an empty pool.
// Changing terms under live principal requires a migration instead.
func (s *Service) SetRate(id mesh.Address, rate *big.Int) error {
	if rate == nil || rate.Sign() <= 0 {
		return reverts.InvalidRate()
	}
	pool, err := s.GetExisting(id)
	if err != nil {
		return err
	}
	if pool.TotalStaked.Sign() != 0 {
		return reverts.PoolNotEmpty()
	}
	pool.Rate = new(big.Int).Set(rate)
	return s.pools.Set(id, pool)
}

// List returns all pool identifiers in insertion order.
func (s *Service) List() ([]mesh.Address, error) {
	head, err := s.sctx.State().GetStorage(s.sctx.Address(), slotRegistryHead)
	if err != nil {
		return nil, err
	}
	var ids []mesh.Address
	cur := mesh.BytesToAddress(head.Bytes())
	for !cur.IsZero() {
		ids = append(ids, cur)
		pool, err := s.pools.Get(cur)
		if err != nil {
			return nil, err
		}
		if pool.IsEmpty() || pool.Next == nil {
			break
		}
		cur = *pool.Next
	}
	return ids, nil
}

// Count returns the number of registered pools.
func (s *Service) Count() (*big.Int, error) {
	return s.count.Get()
}

func (s *Service) registryAppend(id mesh.Address) error {
	st := s.sctx.State()
	tail, err := st.GetStorage(s.sctx.Address(), slotRegistryTail)
	if err != nil {
		return err
	}
	tailAddr := mesh.BytesToAddress(tail.Bytes())
	if tailAddr.IsZero() {
		st.SetStorage(s.sctx.Address(), slotRegistryHead, mesh.BytesToBytes32(id.Bytes()))
	} else {
		prev, err := s.pools.Get(tailAddr)
		if err != nil {
			return err
		}
		if prev.IsEmpty() {
			return errors.New("registry tail points to missing pool")
		}
		link := id
		prev.Next = &link
		if err := s.pools.Set(tailAddr, prev); err != nil {
			return err
		}
	}
	st.SetStorage(s.sctx.Address(), slotRegistryTail, mesh.BytesToBytes32(id.Bytes()))
	return nil
}

//
// member list - the stakers of a pool, insertion ordered
//

// AddMember appends user to the pool's member list. No-op when already listed.
func (s *Service) AddMember(pool, user mesh.Address) error {
	node, err := s.nodes.Get(nodeKey(pool, user))
	if err != nil {
		return err
	}
	if node != nil && node.Listed {
		return nil
	}

	list, err := s.getMemberList(pool)
	if err != nil {
		return err
	}
	node = &memberNode{Listed: true, Prev: list.Tail}
	if list.Tail == nil {
		entry := user
		list.Head = &entry
	} else {
		tailNode, err := s.nodes.Get(nodeKey(pool, *list.Tail))
		if err != nil {
			return err
		}
		if tailNode == nil || !tailNode.Listed {
			return errors.New("member tail points to missing node")
		}
		entry := user
		tailNode.Next = &entry
		if err := s.nodes.Set(nodeKey(pool, *list.Tail), tailNode); err != nil {
			return err
		}
	}
	entry := user
	list.Tail = &entry
	list.Size++
	if err := s.nodes.Set(nodeKey(pool, user), node); err != nil {
		return err
	}
	return s.members.Set(pool, list)
}

// RemoveMember unlinks user from the pool's member list. No-op when not listed.
func (s *Service) RemoveMember(pool, user mesh.Address) error {
	key := nodeKey(pool, user)
	node, err := s.nodes.Get(key)
	if err != nil {
		return err
	}
	if node == nil || !node.Listed {
		return nil
	}

	list, err := s.getMemberList(pool)
	if err != nil {
		return err
	}
	if node.Prev == nil {
		list.Head = node.Next
	} else {
		prevNode, err := s.nodes.Get(nodeKey(pool, *node.Prev))
		if err != nil {
			return err
		}
		prevNode.Next = node.Next
		if err := s.nodes.Set(nodeKey(pool, *node.Prev), prevNode); err != nil {
			return err
		}
	}
	if node.Next == nil {
		list.Tail = node.Prev
	} else {
		nextNode, err := s.nodes.Get(nodeKey(pool, *node.Next))
		if err != nil {
			return err
		}
		nextNode.Prev = node.Prev
		if err := s.nodes.Set(nodeKey(pool, *node.Next), nextNode); err != nil {
			return err
		}
	}
	list.Size--
	if err := s.nodes.Delete(key); err != nil {
		return err
	}
	return s.members.Set(pool, list)
}

// FirstMember returns the first staker of the pool, zero when the pool has none.
func (s *Service) FirstMember(pool mesh.Address) (mesh.Address, error) {
	list, err := s.getMemberList(pool)
	if err != nil {
		return mesh.Address{}, err
	}
	if list.Head == nil {
		return mesh.Address{}, nil
	}
	return *list.Head, nil
}

// NextMember returns the staker after user, zero at the end of the list.
func (s *Service) NextMember(pool, user mesh.Address) (mesh.Address, error) {
	node, err := s.nodes.Get(nodeKey(pool, user))
	if err != nil {
		return mesh.Address{}, err
	}
	if node == nil || !node.Listed || node.Next == nil {
		return mesh.Address{}, nil
	}
	return *node.Next, nil
}

// MemberCount returns the number of stakers in the pool.
func (s *Service) MemberCount(pool mesh.Address) (uint64, error) {
	list, err := s.getMemberList(pool)
	if err != nil {
		return 0, err
	}
	return list.Size, nil
}

func (s *Service) getMemberList(pool mesh.Address) (*memberList, error) {
	list, err := s.members.Get(pool)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = &memberList{}
	}
	return list, nil
}
