package memory

import (
	"sync"

	"github.com/bnb-chain/zkbnb-bmt/database"
	"github.com/bnb-chain/zkbnb-bmt/utils"
)

var (
	_ database.TreeDB  = (*MemoryDB)(nil)
	_ database.Batcher = (*batch)(nil)
)

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		db: make(map[string][]byte),
	}
}

// MemoryDB is an in-process key-value store, mostly useful for tests.
type MemoryDB struct {
	db   map[string][]byte
	lock sync.RWMutex
}

// Get retrieves the given key if it's present in the key-value store.
func (db *MemoryDB) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return nil, database.ErrDatabaseClosed
	}
	if entry, ok := db.db[string(key)]; ok {
		return utils.CopyBytes(entry), nil
	}
	return nil, database.ErrDatabaseNotFound
}

// Has retrieves if a key is present in the key-value store.
func (db *MemoryDB) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return false, database.ErrDatabaseClosed
	}
	_, ok := db.db[string(key)]
	return ok, nil
}

// Set inserts the given value into the key-value store.
func (db *MemoryDB) Set(key []byte, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return database.ErrDatabaseClosed
	}
	db.db[string(key)] = utils.CopyBytes(value)
	return nil
}

// Delete removes the key from the key-value store.
func (db *MemoryDB) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return database.ErrDatabaseClosed
	}
	delete(db.db, string(key))
	return nil
}

// Len returns the number of stored keys.
func (db *MemoryDB) Len() int {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return len(db.db)
}

// NewBatch creates a write-only key-value store that buffers changes to its host
// database until a final write is called.
func (db *MemoryDB) NewBatch() database.Batcher {
	return &batch{
		db: db,
	}
}

// Close deallocates the internal map and ensures any consecutive data access op
// fails with an error.
func (db *MemoryDB) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.db = nil
	return nil
}

// keyvalue is a key-value tuple tagged with a deletion field to allow creating
// memory-database write batches.
type keyvalue struct {
	key    []byte
	value  []byte
	delete bool
}

// batch buffers writes until Write applies them under one lock. A batch
// cannot be used concurrently.
type batch struct {
	db     *MemoryDB
	writes []keyvalue
	size   int
}

// Set inserts the given value into the batch for later committing.
func (b *batch) Set(key, value []byte) error {
	b.writes = append(b.writes, keyvalue{utils.CopyBytes(key), utils.CopyBytes(value), false})
	b.size += len(value)
	return nil
}

// Delete inserts the a key removal into the batch for later committing.
func (b *batch) Delete(key []byte) error {
	b.writes = append(b.writes, keyvalue{utils.CopyBytes(key), nil, true})
	b.size += len(key)
	return nil
}

// Write flushes any accumulated data to the memory database.
func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.db == nil {
		return database.ErrDatabaseClosed
	}
	for _, kv := range b.writes {
		if kv.delete {
			delete(b.db.db, string(kv.key))
			continue
		}
		b.db.db[string(kv.key)] = kv.value
	}
	return nil
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *batch) ValueSize() int {
	return b.size
}

// Reset resets the batch for reuse.
func (b *batch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}
