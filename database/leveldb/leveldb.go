package leveldb

import (
	"bytes"

	"github.com/bnb-chain/zkbnb-bmt/database"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var (
	_ database.TreeDB  = (*Database)(nil)
	_ database.Batcher = (*batch)(nil)
)

const (
	// minCache is the minimum amount of memory in megabytes to allocate to leveldb
	// read and write caching, split half and half.
	minCache = 16

	// minHandles is the minimum number of files handles to allocate to the open
	// database files.
	minHandles = 16
)

type Database struct {
	namespace []byte
	db        *leveldb.DB // LevelDB instance
}

// New opens the LevelDB at file, with cache megabytes of block cache and
// write buffer and handles open files.
func New(file string, cache int, handles int, readonly bool) (*Database, error) {
	return NewCustom(file, "", func(options *opt.Options) {
		if cache < minCache {
			cache = minCache
		}
		if handles < minHandles {
			handles = minHandles
		}
		options.OpenFilesCacheCapacity = handles
		options.BlockCacheCapacity = cache / 2 * opt.MiB
		options.WriteBuffer = cache / 4 * opt.MiB // Two of these are used internally
		options.ReadOnly = readonly
	})
}

// NewFromExistLevelDB wraps an already opened LevelDB.
func NewFromExistLevelDB(db *leveldb.DB) *Database {
	return &Database{
		db: db,
	}
}

// NewCustom opens a LevelDB whose keys are prefixed with namespace. The
// customize function allows the caller to modify the leveldb options.
func NewCustom(file string, namespace string, customize func(options *opt.Options)) (*Database, error) {
	options := configureOptions(customize)

	// Open the db and recover any potential corruptions
	db, err := leveldb.OpenFile(file, options)
	if _, corrupted := err.(*leveldbErrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb %s", file)
	}

	ldb := &Database{
		db: db,
	}
	if len(namespace) != 0 {
		ldb.namespace = []byte(namespace)
	}
	return ldb, nil
}

// WrapWithNamespace returns a view of db whose keys are prefixed with
// namespace. Both views share the underlying LevelDB.
func WrapWithNamespace(db *Database, namespace string) *Database {
	return &Database{
		namespace: []byte(namespace),
		db:        db.db,
	}
}

func configureOptions(customizeFn func(*opt.Options)) *opt.Options {
	options := &opt.Options{
		Filter:                 filter.NewBloomFilter(10),
		DisableSeeksCompaction: true,
	}
	if customizeFn != nil {
		customizeFn(options)
	}
	return options
}

func wrapKey(namespace, key []byte) []byte {
	if len(namespace) > 0 {
		return bytes.Join([][]byte{namespace, key}, []byte(":"))
	}
	return key
}

// Close flushes any pending data to disk and closes
// all io accesses to the underlying key-value store.
func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Has(key []byte) (bool, error) {
	return db.db.Has(wrapKey(db.namespace, key), nil)
}

func (db *Database) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(wrapKey(db.namespace, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, database.ErrDatabaseNotFound
	}
	return dat, err
}

func (db *Database) Set(key []byte, value []byte) error {
	return db.db.Put(wrapKey(db.namespace, key), value, nil)
}

func (db *Database) Delete(key []byte) error {
	return db.db.Delete(wrapKey(db.namespace, key), nil)
}

func (db *Database) NewBatch() database.Batcher {
	return &batch{
		db:        db.db,
		namespace: db.namespace,
		b:         new(leveldb.Batch),
	}
}

// batch is a write-only leveldb batch that commits changes to its host database
// when Write is called. A batch cannot be used concurrently.
type batch struct {
	namespace []byte
	db        *leveldb.DB
	b         *leveldb.Batch
	size      int
}

func (b *batch) Set(key, value []byte) error {
	b.b.Put(wrapKey(b.namespace, key), value)
	b.size += len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(wrapKey(b.namespace, key))
	b.size += len(key)
	return nil
}

func (b *batch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}
