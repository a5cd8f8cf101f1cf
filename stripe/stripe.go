// Package stripe provides striped locking: a fixed set of reusable lock tokens picked by hashing a key or a
// chunk address, and reference counted per address locks drawing from a small reuse pool.
package stripe

import (
	"context"
	"encoding/binary"
	"github.com/cespare/xxhash/v2"
	"github.com/gostonefire/chunkmap/storeerr"
	"sync"
)

// Token - A mutual exclusion lock that also supports try and context bounded acquisition.
// The zero value is not usable, tokens are handed out by Locks and AddressLocks.
type Token struct {
	sem chan struct{}
}

func newToken() *Token {
	return &Token{sem: make(chan struct{}, 1)}
}

// Lock - Blocks until the token is acquired
func (T *Token) Lock() {
	T.sem <- struct{}{}
}

// TryLock - Acquires the token if it is free and reports whether it did
func (T *Token) TryLock() bool {
	select {
	case T.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// LockContext - Blocks until the token is acquired or ctx is done, in which case ctx.Err() is returned
func (T *Token) LockContext(ctx context.Context) error {
	select {
	case T.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock - Releases the token, it panics if the token is not held
func (T *Token) Unlock() {
	select {
	case <-T.sem:
	default:
		panic("stripe: unlock of unlocked token")
	}
}

// Locks - A fixed size array of lock tokens. Keys or addresses hashing to the same token are serialized,
// others proceed concurrently.
type Locks struct {
	tokens []*Token
}

// New - Returns a pointer to a new Locks instance
//   - n is the number of tokens, it must be positive
func New(n int) (locks *Locks, err error) {
	if n < 1 {
		err = storeerr.NewInvalidArgument("number of lock stripes %d must be positive", n)
		return
	}

	locks = &Locks{tokens: make([]*Token, n)}
	for i := range locks.tokens {
		locks.tokens[i] = newToken()
	}

	return
}

// Len - Returns the number of tokens
func (L *Locks) Len() int {
	return len(L.tokens)
}

// Index - Returns the token number key maps to
func (L *Locks) Index(key []byte) int {
	return int(xxhash.Sum64(key) % uint64(len(L.tokens)))
}

// For - Returns the token guarding key
func (L *Locks) For(key []byte) *Token {
	return L.tokens[L.Index(key)]
}

// ForString - Returns the token guarding a string key
func (L *Locks) ForString(key string) *Token {
	return L.tokens[xxhash.Sum64String(key)%uint64(len(L.tokens))]
}

// ForAddress - Returns the token guarding a chunk address
func (L *Locks) ForAddress(address int64) *Token {
	return L.For(addressKey(address))
}

// addressKey - Returns the big endian bytes of address
func addressKey(address int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(address))
	return buf
}

// addressLock - A token shared by all holders and waiters of one address
type addressLock struct {
	token *Token
	refs  int
}

// AddressLocks - One lock per chunk address, created on first use and released when the last holder or waiter
// is done. Released locks go back to a pool of at most poolSize entries.
type AddressLocks struct {
	mutex    sync.Mutex
	locks    map[int64]*addressLock
	pool     []*addressLock
	poolSize int
}

// NewAddressLocks - Returns a pointer to a new AddressLocks instance
//   - poolSize is the max number of released locks kept for reuse
func NewAddressLocks(poolSize int) *AddressLocks {
	return &AddressLocks{
		locks:    make(map[int64]*addressLock),
		poolSize: max(poolSize, 0),
	}
}

// Lock - Blocks until the lock of address is held
func (A *AddressLocks) Lock(address int64) {
	A.acquire(address).token.Lock()
}

// LockContext - Blocks until the lock of address is held or ctx is done, in which case ctx.Err() is returned
func (A *AddressLocks) LockContext(ctx context.Context, address int64) (err error) {
	lock := A.acquire(address)

	err = lock.token.LockContext(ctx)
	if err != nil {
		A.release(address, lock)
	}

	return
}

// Unlock - Releases the lock of address, it panics if the lock is not held
func (A *AddressLocks) Unlock(address int64) {
	A.mutex.Lock()
	lock, ok := A.locks[address]
	A.mutex.Unlock()
	if !ok {
		panic("stripe: unlock of unlocked address")
	}

	lock.token.Unlock()
	A.release(address, lock)
}

// Active - Returns the number of addresses currently held or waited for
func (A *AddressLocks) Active() int {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	return len(A.locks)
}

// Pooled - Returns the number of released locks waiting for reuse
func (A *AddressLocks) Pooled() int {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	return len(A.pool)
}

// acquire - Returns the lock of address with its reference count raised, taking it from the pool if needed
func (A *AddressLocks) acquire(address int64) (lock *addressLock) {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	lock, ok := A.locks[address]
	if !ok {
		if n := len(A.pool); n > 0 {
			lock = A.pool[n-1]
			A.pool = A.pool[:n-1]
		} else {
			lock = &addressLock{token: newToken()}
		}
		A.locks[address] = lock
	}
	lock.refs++

	return
}

// release - Lowers the reference count of the lock of address, pooling it when it reaches zero
func (A *AddressLocks) release(address int64, lock *addressLock) {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	lock.refs--
	if lock.refs > 0 {
		return
	}

	delete(A.locks, address)
	if len(A.pool) < A.poolSize {
		A.pool = append(A.pool, lock)
	}
}
