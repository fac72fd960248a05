// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/zkbnb-bmt/database"
	"github.com/bnb-chain/zkbnb-bmt/database/dbtest"
)

func newMiniRedis(t *testing.T) *Database {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return NewFromExistRedisClient(client)
}

func TestRedis(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() database.TreeDB {
			return newMiniRedis(t)
		})
	})
}

func TestRedisWithNamespace(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() database.TreeDB {
			return WrapWithNamespace(newMiniRedis(t), "test")
		})
	})
}

func TestRedisTransactions(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() database.TreeDB {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return NewFromExistRedisClient(client, WithTransactions())
		})
	})
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)
	db, err := New(&RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Set([]byte("k"), []byte("v")))
	require.True(t, mr.Exists("k"))

	addr := mr.Addr()
	mr.Close()
	_, err = New(&RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
}
