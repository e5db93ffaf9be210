// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// Bucket provides logical bucket for kv store, by prefixing all keys.
type Bucket []byte

// NewGetter creates a bucket getter, with the bucket as key prefix.
func (b Bucket) NewGetter(src Getter) Getter {
	return &struct {
		getFunc
		hasFunc
		isNotFoundFunc
	}{
		func(key []byte) ([]byte, error) {
			return src.Get(append([]byte(b), key...))
		},
		func(key []byte) (bool, error) {
			return src.Has(append([]byte(b), key...))
		},
		src.IsNotFound,
	}
}

// NewPutter creates a bucket putter, with the bucket as key prefix.
func (b Bucket) NewPutter(src Putter) Putter {
	return &struct {
		putFunc
		deleteFunc
		newBatchFunc
	}{
		func(key, val []byte) error {
			return src.Put(append([]byte(b), key...), val)
		},
		func(key []byte) error {
			return src.Delete(append([]byte(b), key...))
		},
		func() Batch {
			return &bucketBatch{b, src.NewBatch()}
		},
	}
}

type (
	getFunc        func(key []byte) ([]byte, error)
	hasFunc        func(key []byte) (bool, error)
	isNotFoundFunc func(error) bool
	putFunc        func(key, val []byte) error
	deleteFunc     func(key []byte) error
	newBatchFunc   func() Batch
)

func (f getFunc) Get(key []byte) ([]byte, error)   { return f(key) }
func (f hasFunc) Has(key []byte) (bool, error)     { return f(key) }
func (f isNotFoundFunc) IsNotFound(err error) bool { return f(err) }
func (f putFunc) Put(key, val []byte) error        { return f(key, val) }
func (f deleteFunc) Delete(key []byte) error       { return f(key) }
func (f newBatchFunc) NewBatch() Batch             { return f() }

type bucketBatch struct {
	bucket Bucket
	batch  Batch
}

func (bb *bucketBatch) Put(key, val []byte) error {
	return bb.batch.Put(append([]byte(bb.bucket), key...), val)
}

func (bb *bucketBatch) Delete(key []byte) error {
	return bb.batch.Delete(append([]byte(bb.bucket), key...))
}

func (bb *bucketBatch) NewBatch() Batch { return bb.bucket.NewPutter(bb.batch).NewBatch() }
func (bb *bucketBatch) Len() int        { return bb.batch.Len() }
func (bb *bucketBatch) Write() error    { return bb.batch.Write() }
