package memory

import (
	"testing"

	"github.com/bnb-chain/zkbnb-bmt/database"
	"github.com/bnb-chain/zkbnb-bmt/database/dbtest"
	"github.com/stretchr/testify/require"
)

func TestMemoryDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() database.TreeDB {
			return NewMemoryDB()
		})
	})
}

func TestMemoryDBClosed(t *testing.T) {
	db := NewMemoryDB()
	require.NoError(t, db.Set([]byte("k"), []byte("v")))
	require.Equal(t, 1, db.Len())

	b := db.NewBatch()
	require.NoError(t, b.Set([]byte("k2"), []byte("v2")))
	require.NoError(t, db.Close())

	_, err := db.Get([]byte("k"))
	require.ErrorIs(t, err, database.ErrDatabaseClosed)
	require.ErrorIs(t, db.Set([]byte("k"), nil), database.ErrDatabaseClosed)
	require.ErrorIs(t, b.Write(), database.ErrDatabaseClosed)
}
