// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/stakemesh/mesh/kv"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/stackedmap"
)

const readCacheSize = 2048

// storageKey identifies a storage slot of an account.
type storageKey struct {
	addr mesh.Address
	key  mesh.Bytes32
}

func (k storageKey) encode() []byte {
	buf := make([]byte, 0, 20+32)
	buf = append(buf, k.addr.Bytes()...)
	return append(buf, k.key.Bytes()...)
}

// State manages the engine's keyed storage with journaled mutation.
// All mutations stay in an in-memory journal until committed via Stage,
// and can be reverted to a checkpoint at any time before that.
type State struct {
	db    kv.GetPutter
	sm    *stackedmap.StackedMap
	cache *lru.Cache // read-through cache of raw slots in db
}

// storageBucket namespaces all storage slots in the backing store.
var storageBucket = kv.Bucket("s")

// New create a state object bound to the given kv store.
func New(db kv.GetPutter) *State {
	cache, _ := lru.New(readCacheSize)
	store := &struct {
		kv.Getter
		kv.Putter
	}{storageBucket.NewGetter(db), storageBucket.NewPutter(db)}
	state := &State{db: store, cache: cache}
	state.sm = stackedmap.New(func(key any) (any, bool, error) {
		raw, err := state.load(key.(storageKey))
		if err != nil {
			return nil, false, err
		}
		return raw, true, nil
	})
	// the bottom layer of the journal holds uncommitted writes
	state.sm.Push()
	return state
}

func (s *State) load(key storageKey) (rlp.RawValue, error) {
	enc := string(key.encode())
	if cached, ok := s.cache.Get(enc); ok {
		return cached.(rlp.RawValue), nil
	}
	raw, err := s.db.Get([]byte(enc))
	if err != nil {
		if s.db.IsNotFound(err) {
			s.cache.Add(enc, rlp.RawValue(nil))
			return nil, nil
		}
		return nil, errors.Wrap(err, "load storage")
	}
	s.cache.Add(enc, rlp.RawValue(raw))
	return raw, nil
}

// GetRawStorage returns the raw rlp encoded value of the given slot.
func (s *State) GetRawStorage(addr mesh.Address, key mesh.Bytes32) (rlp.RawValue, error) {
	v, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, err
	}
	return v.(rlp.RawValue), nil
}

// SetRawStorage sets the raw rlp encoded value of the given slot.
// An empty raw value deletes the slot.
func (s *State) SetRawStorage(addr mesh.Address, key mesh.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// GetStorage returns the 32-byte word stored at the given slot.
func (s *State) GetStorage(addr mesh.Address, key mesh.Bytes32) (mesh.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return mesh.Bytes32{}, err
	}
	if len(raw) == 0 {
		return mesh.Bytes32{}, nil
	}
	_, content, _, err := rlp.Split(raw)
	if err != nil {
		return mesh.Bytes32{}, errors.Wrap(err, "decode storage")
	}
	return mesh.BytesToBytes32(content), nil
}

// SetStorage sets the 32-byte word at the given slot.
// Leading zero bytes are trimmed before encoding, a zero word clears the slot.
func (s *State) SetStorage(addr mesh.Address, key, value mesh.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	trimmed := value.Bytes()
	for len(trimmed) > 0 && trimmed[0] == 0 {
		trimmed = trimmed[1:]
	}
	raw, _ := rlp.EncodeToBytes(trimmed)
	s.SetRawStorage(addr, key, raw)
}

// EncodeStorage set storage value encoded by given enc method.
// An empty encoded value deletes the slot.
func (s *State) EncodeStorage(addr mesh.Address, key mesh.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return err
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value using given dec method.
// The dec method is called with nil raw value if the slot is empty.
func (s *State) DecodeStorage(addr mesh.Address, key mesh.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	return dec(raw)
}

// NewCheckpoint makes a checkpoint of current state.
// It returns a checkpoint revision to pass into RevertTo.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo reverts the state to the given checkpoint.
// Mutations made after the checkpoint are discarded.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Stage flushes all journaled mutations into a single kv batch.
// After a successful commit, the journal is collapsed into the backing store.
func (s *State) Stage() *Stage {
	return &Stage{state: s}
}

// Stage accumulates the dirty slots of a state for a batched commit.
type Stage struct {
	state *State
}

// Commit writes every journaled slot to the kv store atomically.
func (st *Stage) Commit() error {
	batch := st.state.db.NewBatch()

	dirty := make(map[storageKey]rlp.RawValue)
	st.state.sm.Journal(func(key, value any) bool {
		dirty[key.(storageKey)] = value.(rlp.RawValue)
		return true
	})

	for key, raw := range dirty {
		enc := key.encode()
		if len(raw) == 0 {
			if err := batch.Delete(enc); err != nil {
				return errors.Wrap(err, "stage commit")
			}
		} else {
			if err := batch.Put(enc, raw); err != nil {
				return errors.Wrap(err, "stage commit")
			}
		}
		st.state.cache.Add(string(enc), raw)
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "stage commit")
	}

	// collapse the journal; committed values are now served by the store
	st.state.sm.PopTo(0)
	st.state.sm.Push()
	return nil
}
