package leveldb

import (
	"testing"

	"github.com/bnb-chain/zkbnb-bmt/database"
	"github.com/bnb-chain/zkbnb-bmt/database/dbtest"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

func newMemLevelDB(t *testing.T) *Database {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	require.NoError(t, err)
	return NewFromExistLevelDB(db)
}

func TestLevelDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() database.TreeDB {
			return newMemLevelDB(t)
		})
	})
}

func TestLevelDBWithNamespace(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() database.TreeDB {
			return WrapWithNamespace(newMemLevelDB(t), "test")
		})
	})
}

func TestNamespaceIsolation(t *testing.T) {
	base := newMemLevelDB(t)
	defer base.Close()
	a := WrapWithNamespace(base, "a")
	b := WrapWithNamespace(base, "b")

	require.NoError(t, a.Set([]byte("tree"), []byte("1")))
	has, err := b.Has([]byte("tree"))
	require.NoError(t, err)
	require.False(t, has)

	_, err = base.Get([]byte("tree"))
	require.ErrorIs(t, err, database.ErrDatabaseNotFound)
}

func TestNewOnDisk(t *testing.T) {
	db, err := New(t.TempDir(), 0, 0, false)
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("k"), []byte("v")))
	dat, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), dat)
	require.NoError(t, db.Close())
}
