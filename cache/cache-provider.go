package cache

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// CacheProvider is an interface for a cache provider.
// It stores and retrieves []byte values, which represent HTTP responses.
// Entries are partitioned by generation identifier: activating a new
// generation purges every other one wholesale. There is no per-entry
// expiry; an entry lives until its generation is purged or it is
// overwritten by a later write for the same key (last write wins).
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the stored bytes for the given key in the given
	// generation, if they exist. The boolean indicates whether
	// retrieval was successful.
	Get(generation, key string) ([]byte, bool, error)
	// Put stores the given bytes under the given key in the given
	// generation, overwriting any prior entry for that key.
	Put(generation, key string, bytes []byte) error
	// Generations returns the distinct generation identifiers
	// currently present in the store.
	Generations() ([]string, error)
	// PurgeGeneration removes every entry belonging to the given
	// generation.
	PurgeGeneration(generation string) error
	// Keys calls the given callback for each key in the generation
	// that has the given prefix. It calls the callback in order to
	// enable very large lists of keys to be processable.
	Keys(generation, prefix string, cb func(string)) error
	// Purge removes the cache entry for the given key.
	// It is a utility method that is not used by the middleware.
	Purge(generation, key string)
}

type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]map[string][]byte
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]map[string][]byte),
	}
}

func (m MemCache) Get(generation, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	gen, ok := m.db[generation]
	if !ok {
		return nil, false, nil
	}
	bytes, ok := gen[key]
	return bytes, ok, nil
}

func (m MemCache) Put(generation, key string, bytes []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	gen, ok := m.db[generation]
	if !ok {
		gen = make(map[string][]byte)
		m.db[generation] = gen
	}
	gen[key] = bytes
	return nil
}

func (m MemCache) Generations() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	generations := make([]string, 0, len(m.db))
	for generation := range m.db {
		generations = append(generations, generation)
	}
	return generations, nil
}

func (m MemCache) PurgeGeneration(generation string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, generation)
	return nil
}

func (m MemCache) Keys(generation, prefix string, cb func(string)) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for key := range m.db[generation] {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			cb(key)
		}
	}
	return nil
}

func (m MemCache) Purge(generation, key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db[generation], key)
}

type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) SQLiteCache {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		generation TEXT,
		key TEXT,
		bytes BLOB,
		PRIMARY KEY (generation, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteCache) Get(generation, key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRow(
		"SELECT bytes FROM cache WHERE generation = ? AND key = ?",
		generation, key,
	).Scan(&bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (s SQLiteCache) Put(generation, key string, bytes []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO cache (generation, key, bytes) VALUES (?, ?, ?)",
		generation, key, bytes,
	)
	return err
}

func (s SQLiteCache) Generations() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT generation FROM cache")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	generations := make([]string, 0)
	for rows.Next() {
		var generation string
		if err := rows.Scan(&generation); err != nil {
			return generations, err
		}
		generations = append(generations, generation)
	}
	return generations, rows.Err()
}

func (s SQLiteCache) PurgeGeneration(generation string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE generation = ?", generation)
	return err
}

func (s SQLiteCache) Keys(generation, prefix string, cb func(string)) error {
	rows, err := s.db.Query(
		"SELECT key FROM cache WHERE generation = ? AND key LIKE ?",
		generation, prefix+"%",
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		cb(key)
	}
	return rows.Err()
}

func (s SQLiteCache) Purge(generation, key string) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE generation = ? AND key = ?", generation, key)
	if err != nil {
		panic(err)
	}
}
