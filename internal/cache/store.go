package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/smileynet/wopt/internal/weapon"
)

// Storage keys. Each blob has a companion key holding its write time in
// Unix milliseconds.
const (
	KeyResults          = "results"
	KeyResultsExpiry    = "results-expiry"
	KeyWeaponData       = "weapon-data"
	KeyWeaponDataExpiry = "weapon-data-expiry"
	KeyWeapons          = "weapons"
	KeyWeaponsExpiry    = "weapons-expiry"
)

// DefaultTTL is how long a blob stays fresh after it is started.
const DefaultTTL = 24 * time.Hour

// Store is the result and snapshot cache.
type Store struct {
	mu      sync.Mutex
	storage Storage
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets the freshness window.
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.ttl = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithStoreLogger sets the logger used for malformed-data warnings.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a Store over storage.
func NewStore(storage Storage, opts ...StoreOption) *Store {
	s := &Store{
		storage: storage,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached result for key when the results blob is fresh.
func (s *Store) Get(key string) (weapon.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results map[string]weapon.Result
	if !s.read(KeyResults, KeyResultsExpiry, &results) {
		return weapon.Result{}, false
	}
	r, ok := results[key]
	return r, ok
}

// Put stores r under key. A stale or missing blob is started afresh and
// its timestamp reset; otherwise the timestamp is kept.
func (s *Store) Put(key string, r weapon.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results map[string]weapon.Result
	fresh := s.read(KeyResults, KeyResultsExpiry, &results)
	if !fresh || results == nil {
		results = make(map[string]weapon.Result)
	}
	results[key] = r
	return s.write(KeyResults, KeyResultsExpiry, results, !fresh)
}

// Clear drops every cached result.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(KeyResults, KeyResultsExpiry)
}

// Snapshot returns the cached weapon-data snapshot when fresh.
func (s *Store) Snapshot() (weapon.DataMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data weapon.DataMap
	if !s.read(KeyWeaponData, KeyWeaponDataExpiry, &data) || data == nil {
		return nil, false
	}
	return data, true
}

// PutSnapshot replaces the cached snapshot and restarts its freshness window.
func (s *Store) PutSnapshot(data weapon.DataMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(KeyWeaponData, KeyWeaponDataExpiry, data, true)
}

// ClearSnapshot drops the cached snapshot.
func (s *Store) ClearSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(KeyWeaponData, KeyWeaponDataExpiry)
}

// Weapons returns the cached weapon catalog when fresh.
func (s *Store) Weapons() ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	if !s.read(KeyWeapons, KeyWeaponsExpiry, &names) {
		return nil, false
	}
	return names, true
}

// PutWeapons replaces the cached catalog and restarts its freshness window.
func (s *Store) PutWeapons(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(KeyWeapons, KeyWeaponsExpiry, names, true)
}

// ClearAll drops every blob the store manages.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pair := range blobs {
		if err := s.remove(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

var blobs = [][2]string{
	{KeyResults, KeyResultsExpiry},
	{KeyWeaponData, KeyWeaponDataExpiry},
	{KeyWeapons, KeyWeaponsExpiry},
}

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Key     string
	Present bool
	Fresh   bool
	Written time.Time
	Items   int
}

// Info reports the state of every blob.
func (s *Store) Info() []BlobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]BlobInfo, 0, len(blobs))
	for _, pair := range blobs {
		info := BlobInfo{Key: pair[0]}
		var items map[string]json.RawMessage
		var list []json.RawMessage
		raw, ok, err := s.storage.GetItem(pair[0])
		if err == nil && ok {
			info.Present = true
			if json.Unmarshal([]byte(raw), &items) == nil {
				info.Items = len(items)
			} else if json.Unmarshal([]byte(raw), &list) == nil {
				info.Items = len(list)
			}
		}
		if written, ok := s.written(pair[1]); ok {
			info.Written = written
			info.Fresh = info.Present && s.now().Sub(written) < s.ttl
		}
		infos = append(infos, info)
	}
	return infos
}

// TTL returns the freshness window.
func (s *Store) TTL() time.Duration { return s.ttl }

// read decodes the blob at dataKey into out and reports whether it was
// present, well-formed and within the TTL. Must be called with s.mu held.
func (s *Store) read(dataKey, expiryKey string, out any) bool {
	written, ok := s.written(expiryKey)
	if !ok || s.now().Sub(written) >= s.ttl {
		return false
	}
	raw, ok, err := s.storage.GetItem(dataKey)
	if err != nil {
		s.logger.Warn("cache read failed", "key", dataKey, "err", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("cache data malformed, ignoring", "key", dataKey, "err", err)
		return false
	}
	return true
}

// written returns the timestamp stored under expiryKey.
func (s *Store) written(expiryKey string) (time.Time, bool) {
	raw, ok, err := s.storage.GetItem(expiryKey)
	if err != nil || !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("cache timestamp malformed, ignoring", "key", expiryKey, "value", raw)
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// write stores v under dataKey, stamping expiryKey when restart is set.
// Must be called with s.mu held.
func (s *Store) write(dataKey, expiryKey string, v any, restart bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encoding %s: %w", dataKey, err)
	}
	if err := s.storage.SetItem(dataKey, string(data)); err != nil {
		return err
	}
	if restart {
		stamp := strconv.FormatInt(s.now().UnixMilli(), 10)
		if err := s.storage.SetItem(expiryKey, stamp); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) remove(keys ...string) error {
	for _, k := range keys {
		if err := s.storage.RemoveItem(k); err != nil {
			return err
		}
	}
	return nil
}
