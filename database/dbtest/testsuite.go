package dbtest

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/bnb-chain/zkbnb-bmt/database"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSuite runs a suite of tests against a TreeDB implementation.
func TestDatabaseSuite(t *testing.T, New func() database.TreeDB) {
	t.Run("KeyValueOperations", func(t *testing.T) {
		db := New()
		defer db.Close()

		key := []byte("foo")

		got, err := db.Has(key)
		require.NoError(t, err)
		require.False(t, got)

		_, err = db.Get(key)
		require.True(t, errors.Is(err, database.ErrDatabaseNotFound), "unexpected error: %v", err)

		value := []byte("hello world")
		require.NoError(t, db.Set(key, value))

		got, err = db.Has(key)
		require.NoError(t, err)
		require.True(t, got)

		dat, err := db.Get(key)
		require.NoError(t, err)
		require.True(t, bytes.Equal(dat, value), "wrong value: %q", dat)

		require.NoError(t, db.Delete(key))

		got, err = db.Has(key)
		require.NoError(t, err)
		require.False(t, got)
	})

	t.Run("BinaryKeys", func(t *testing.T) {
		db := New()
		defer db.Close()

		// keys shaped like the tree's leaf keys
		for i := uint64(0); i < 16; i++ {
			key := make([]byte, 13)
			copy(key, "leaf/")
			binary.BigEndian.PutUint64(key[5:], i)
			require.NoError(t, db.Set(key, []byte{byte(i), 0xff}))
		}
		for i := uint64(0); i < 16; i++ {
			key := make([]byte, 13)
			copy(key, "leaf/")
			binary.BigEndian.PutUint64(key[5:], i)
			dat, err := db.Get(key)
			require.NoError(t, err)
			require.True(t, bytes.Equal(dat, []byte{byte(i), 0xff}), "wrong value for %d: %x", i, dat)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		db := New()
		defer db.Close()

		b := db.NewBatch()
		for _, k := range []string{"1", "2", "3", "4"} {
			require.NoError(t, b.Set([]byte(k), nil))
		}

		has, err := db.Has([]byte("1"))
		require.NoError(t, err)
		require.False(t, has, "db contains element before batch write")

		require.NoError(t, b.Write())
		b.Reset()
		require.Equal(t, 0, b.ValueSize())

		// Mix writes and deletes in batch
		require.NoError(t, b.Set([]byte("5"), nil))
		require.NoError(t, b.Delete([]byte("1")))
		require.NoError(t, b.Set([]byte("6"), nil))
		require.NoError(t, b.Delete([]byte("3")))
		require.NoError(t, b.Set([]byte("3"), []byte("test3")))
		require.NotZero(t, b.ValueSize())

		require.NoError(t, b.Write())

		testObjs := []struct {
			Key   []byte
			Val   []byte
			Exist bool
		}{
			{Key: []byte("1"), Exist: false},
			{Key: []byte("2"), Exist: true},
			{Key: []byte("3"), Val: []byte("test3"), Exist: true},
			{Key: []byte("4"), Exist: true},
			{Key: []byte("5"), Exist: true},
			{Key: []byte("6"), Exist: true},
		}
		for _, obj := range testObjs {
			if !obj.Exist {
				has, err := db.Has(obj.Key)
				require.NoError(t, err)
				require.False(t, has, "key %q should be deleted", obj.Key)
				continue
			}
			dat, err := db.Get(obj.Key)
			require.NoError(t, err)
			require.True(t, bytes.Equal(dat, obj.Val), "wrong value for %q: %q", obj.Key, dat)
		}
	})
}
