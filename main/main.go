package main

import (
	"encoding/json"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-redis/redis/v8"
	"github.com/panjf2000/ants/v2"
	hostMemory "github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	bmt "github.com/bnb-chain/zkbnb-bmt"
	"github.com/bnb-chain/zkbnb-bmt/database"
	wrappedLevelDB "github.com/bnb-chain/zkbnb-bmt/database/leveldb"
	"github.com/bnb-chain/zkbnb-bmt/database/memory"
	wrappedRedis "github.com/bnb-chain/zkbnb-bmt/database/redis"
	bmtPrometheus "github.com/bnb-chain/zkbnb-bmt/metrics/prometheus"
)

//go tool pprof -http :8877 http://localhost:8081/debug/pprof/profile?seconds=10

var (
	addr      = flag.String("addr", "127.0.0.1:8080", "http listen address")
	pprofAddr = flag.String("pprof", "127.0.0.1:8081", "pprof listen address")
	backend   = flag.String("db", "memoryDB", "storage backend: memoryDB, levelDB or redis")
	dataDir   = flag.String("datadir", "", "leveldb directory, in memory when empty")
	keccak    = flag.Bool("keccak", false, "hash with keccak-256 instead of sha-256")
	verbosity = flag.Int("verbosity", int(log.LvlInfo), "log level, 0-5")
)

func main() {
	flag.Parse()
	log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(*verbosity),
		log.StreamHandler(os.Stderr, log.TerminalFormat(false))))

	env, err := prepareEnv(*backend)
	if err != nil {
		log.Crit("prepare storage", "db", *backend, "err", err)
	}
	db, err := env.db()
	if err != nil {
		log.Crit("open storage", "db", env.tag, "err", err)
	}
	defer db.Close()

	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		log.Crit("create worker pool", "err", err)
	}
	defer pool.Release()

	collector, err := bmtPrometheus.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Crit("register metrics", "err", err)
	}
	tree, err := bmt.LoadBinaryMerkleTree(db, env.hasher,
		bmt.EnableMetrics(collector),
		bmt.WithWorkerPool(pool),
	)
	if err != nil {
		log.Crit("load tree", "err", err)
	}
	log.Info("tree loaded", "db", env.tag, "version", tree.LatestVersion(), "leaves", tree.LeafCount())

	s := &server{tree: tree, db: db, hasher: env.hasher}
	mux := http.NewServeMux()
	mux.HandleFunc("/append", s.appendHandler)
	mux.HandleFunc("/commit", s.commitHandler)
	mux.HandleFunc("/rollback", s.rollbackHandler)
	mux.HandleFunc("/root", s.rootHandler)
	mux.HandleFunc("/proof", s.proofHandler)
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
			log.Error("pprof server stopped", "err", err)
		}
	}()

	log.Info("serving", "addr", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Crit("http server stopped", "err", err)
	}
}

type server struct {
	// serialises commit/rollback with the save that follows them
	lock   sync.Mutex
	tree   *bmt.BinaryMerkleTree
	db     database.TreeDB
	hasher bmt.TreeHasher
}

// appendHandler stages every leaf query value. Values that are not digests
// of the tree's hasher are hashed first.
func (s *server) appendHandler(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()["leaf"]
	if len(values) == 0 {
		writeError(w, http.StatusBadRequest, "missing leaf")
		return
	}
	leaves := make([]bmt.Digest, len(values))
	for i, value := range values {
		raw := common.FromHex(value)
		if len(raw) != s.hasher.Size() {
			raw = s.hasher.Hash([]byte(value))
		}
		leaves[i] = raw
	}
	if err := s.tree.Append(leaves); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{"staged": s.tree.StagedCount()})
}

func (s *server) commitHandler(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	version := s.tree.Commit()
	if err := s.tree.Save(s.db); err != nil {
		log.Error("save tree", "version", version, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeRoot(w)
}

func (s *server) rollbackHandler(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var err error
	if v := r.URL.Query().Get("version"); v != "" {
		var version uint64
		version, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		err = s.tree.RollbackTo(bmt.Version(version))
	} else {
		err = s.tree.Rollback()
	}
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.tree.Save(s.db); err != nil {
		log.Error("save tree", "version", s.tree.LatestVersion(), "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeRoot(w)
}

func (s *server) rootHandler(w http.ResponseWriter, r *http.Request) {
	s.writeRoot(w)
}

func (s *server) writeRoot(w http.ResponseWriter) {
	resp := map[string]interface{}{
		"version": s.tree.LatestVersion(),
		"leaves":  s.tree.LeafCount(),
		"depth":   s.tree.Depth(),
		"staged":  s.tree.StagedCount(),
	}
	if root, err := s.tree.RootHex(); err == nil {
		resp["root"] = root
	}
	if root, err := s.tree.UncommittedRootHex(); err == nil {
		resp["uncommittedRoot"] = root
	}
	writeJSON(w, resp)
}

func (s *server) proofHandler(w http.ResponseWriter, r *http.Request) {
	var indices []int
	for _, field := range strings.Split(r.URL.Query().Get("indices"), ",") {
		if field == "" {
			continue
		}
		index, err := strconv.Atoi(field)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		indices = append(indices, index)
	}
	if len(indices) == 0 {
		writeError(w, http.StatusBadRequest, "missing indices")
		return
	}

	proof, err := s.tree.Proof(indices)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	layered, err := s.tree.Proof2D(indices)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	layers := make([][]map[string]interface{}, len(layered.Layers))
	for i, layer := range layered.Layers {
		layers[i] = make([]map[string]interface{}, len(layer))
		for j, node := range layer {
			layers[i][j] = map[string]interface{}{"index": node.Index, "hash": node.Digest.Hex()}
		}
	}
	writeJSON(w, map[string]interface{}{
		"leafCount": s.tree.LeafCount(),
		"indices":   indices,
		"hashes":    proof.HashesHex(),
		"layers":    layers,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type testEnv struct {
	tag    string
	hasher *bmt.Hasher
	db     func() (database.TreeDB, error)
}

func prepareEnv(tag string) (testEnv, error) {
	// an eighth of the host memory, in megabytes, capped at 1GiB
	cache := int(hostMemory.TotalMemory() / 8 / opt.MiB)
	if cache > 1024 {
		cache = 1024
	}

	initLevelDB := func() (database.TreeDB, error) {
		if *dataDir != "" {
			db, err := wrappedLevelDB.New(*dataDir, cache, 0, false)
			if err != nil {
				return nil, err
			}
			return wrappedLevelDB.WrapWithNamespace(db, "bmt"), nil
		}
		db, err := leveldb.Open(storage.NewMemStorage(), &opt.Options{
			BlockCacheCapacity: cache / 2 * opt.MiB,
		})
		if err != nil {
			return nil, err
		}
		return wrappedLevelDB.WrapWithNamespace(wrappedLevelDB.NewFromExistLevelDB(db), "bmt"), nil
	}
	initRedisDB := func() (database.TreeDB, error) {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(&redis.Options{
			Addr: mr.Addr(),
		})
		return wrappedRedis.WrapWithNamespace(wrappedRedis.NewFromExistRedisClient(client, wrappedRedis.WithTransactions()), "bmt"), nil
	}
	initMemoryDB := func() (database.TreeDB, error) {
		return memory.NewMemoryDB(), nil
	}

	hasher := bmt.NewSha256Hasher()
	if *keccak {
		hasher = bmt.NewKeccak256Hasher()
	}
	switch tag {
	case "memoryDB":
		return testEnv{tag: tag, hasher: hasher, db: initMemoryDB}, nil
	case "levelDB":
		return testEnv{tag: tag, hasher: hasher, db: initLevelDB}, nil
	case "redis":
		return testEnv{tag: tag, hasher: hasher, db: initRedisDB}, nil
	}
	return testEnv{}, errors.Errorf("unknown db backend %q", tag)
}
