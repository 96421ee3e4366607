package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/smileynet/wopt/internal/weapon"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 8, 14, 9, 0, 0, 0, time.UTC)}
}

func sampleResult() weapon.Result {
	return weapon.Result{
		Weapon:    "Thunder Cage",
		Valby:     true,
		MaxDPS:    1520.75,
		BestRolls: []weapon.Roll{{RollType: "FirearmAtk", Value: 0.12}},
		BestModules: []weapon.ModuleContribution{
			{Module: weapon.Module{Name: "Rifling Reinforcement", ModuleType: "General"}, Contribution: 210.5},
		},
	}
}

func TestStore_RoundTripBeforeExpiry(t *testing.T) {
	// Given a store with a result written now
	clock := newClock()
	store := NewStore(NewMemoryStorage(), WithClock(clock.now))
	want := sampleResult()
	if err := store.Put("Thunder Cage_1_valby", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// When read back just inside the window
	clock.advance(DefaultTTL - time.Minute)
	got, ok := store.Get("Thunder Cage_1_valby")

	// Then the result is identical
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestStore_RoundTripOfDecodedWireResult(t *testing.T) {
	// Given a result decoded from the service's JSON, empty lists included
	const wire = `{
		"weapon": "Belief", "valby": false, "gley": true, "enzo": false,
		"max_dps": 980.5,
		"best_rolls": [],
		"best_modules": [[{"name": "Rifling", "module_type": "General", "effects": []}, 12.5]]
	}`
	var want weapon.Result
	if err := json.Unmarshal([]byte(wire), &want); err != nil {
		t.Fatalf("decoding wire result: %v", err)
	}
	store := NewStore(NewMemoryStorage(), WithClock(newClock().now))

	// When it is cached and read back
	if err := store.Put("Belief_1_gley", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok := store.Get("Belief_1_gley")

	// Then it is identical to what was fetched
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %#v, want %#v", got, want)
	}
}

func TestStore_MissAfterExpiry(t *testing.T) {
	clock := newClock()
	store := NewStore(NewMemoryStorage(), WithClock(clock.now))
	if err := store.Put("k", sampleResult()); err != nil {
		t.Fatal(err)
	}

	clock.advance(DefaultTTL)

	if _, ok := store.Get("k"); ok {
		t.Error("Get() after TTL should miss")
	}
}

func TestStore_TimestampKeptWhileFresh(t *testing.T) {
	// Given a blob started at t0
	clock := newClock()
	mem := NewMemoryStorage()
	store := NewStore(mem, WithClock(clock.now))
	if err := store.Put("a", sampleResult()); err != nil {
		t.Fatal(err)
	}
	start, _, _ := mem.GetItem(KeyResultsExpiry)

	// When another result is added an hour later
	clock.advance(time.Hour)
	if err := store.Put("b", sampleResult()); err != nil {
		t.Fatal(err)
	}

	// Then the blob keeps its original timestamp and both entries
	stamp, _, _ := mem.GetItem(KeyResultsExpiry)
	if stamp != start {
		t.Errorf("expiry stamp = %s, want unchanged %s", stamp, start)
	}
	if _, ok := store.Get("a"); !ok {
		t.Error("first entry missing")
	}
}

func TestStore_StaleBlobRestarts(t *testing.T) {
	clock := newClock()
	mem := NewMemoryStorage()
	store := NewStore(mem, WithClock(clock.now))
	if err := store.Put("old", sampleResult()); err != nil {
		t.Fatal(err)
	}

	clock.advance(DefaultTTL + time.Hour)
	if err := store.Put("new", sampleResult()); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.Get("old"); ok {
		t.Error("stale entry should be discarded on restart")
	}
	if _, ok := store.Get("new"); !ok {
		t.Error("new entry missing")
	}
	stamp, _, _ := mem.GetItem(KeyResultsExpiry)
	if stamp != strconv.FormatInt(clock.t.UnixMilli(), 10) {
		t.Errorf("expiry stamp = %s, want restart time", stamp)
	}
}

func TestStore_MalformedDataIsMiss(t *testing.T) {
	// Given storage holding garbage under a fresh timestamp
	clock := newClock()
	mem := NewMemoryStorage()
	_ = mem.SetItem(KeyResults, "{not json")
	_ = mem.SetItem(KeyResultsExpiry, strconv.FormatInt(clock.t.UnixMilli(), 10))
	_ = mem.SetItem(KeyWeaponData, "[1,2]")
	_ = mem.SetItem(KeyWeaponDataExpiry, "yesterday")
	store := NewStore(mem, WithClock(clock.now))

	// When reading
	_, resOK := store.Get("k")
	_, snapOK := store.Snapshot()

	// Then both are treated as absent, and a write recovers
	if resOK || snapOK {
		t.Errorf("malformed data should miss: results=%v snapshot=%v", resOK, snapOK)
	}
	if err := store.Put("k", sampleResult()); err != nil {
		t.Fatalf("Put() after malformed error = %v", err)
	}
	if _, ok := store.Get("k"); !ok {
		t.Error("Put() should replace malformed blob")
	}
}

func TestStore_SnapshotAndWeapons(t *testing.T) {
	clock := newClock()
	store := NewStore(NewMemoryStorage(), WithClock(clock.now), WithTTL(time.Hour))
	data := weapon.DataMap{"Belief": {"1_enzo": {MaxDPS: 900}}}

	if err := store.PutSnapshot(data); err != nil {
		t.Fatal(err)
	}
	if err := store.PutWeapons([]string{"Belief"}); err != nil {
		t.Fatal(err)
	}

	got, ok := store.Snapshot()
	if !ok || got["Belief"]["1_enzo"].MaxDPS != 900 {
		t.Errorf("Snapshot() = %+v, %v", got, ok)
	}
	names, ok := store.Weapons()
	if !ok || len(names) != 1 {
		t.Errorf("Weapons() = %v, %v", names, ok)
	}

	clock.advance(time.Hour)
	if _, ok := store.Snapshot(); ok {
		t.Error("snapshot should expire with custom TTL")
	}
}

func TestStore_ClearAndInfo(t *testing.T) {
	clock := newClock()
	store := NewStore(NewMemoryStorage(), WithClock(clock.now))
	_ = store.Put("a", sampleResult())
	_ = store.Put("b", sampleResult())
	_ = store.PutWeapons([]string{"x", "y", "z"})

	infos := store.Info()
	if len(infos) != 3 {
		t.Fatalf("Info() len = %d, want 3", len(infos))
	}
	if infos[0].Key != KeyResults || infos[0].Items != 2 || !infos[0].Fresh {
		t.Errorf("results info = %+v", infos[0])
	}
	if infos[1].Present {
		t.Errorf("weapon-data should be absent: %+v", infos[1])
	}
	if infos[2].Items != 3 {
		t.Errorf("weapons info = %+v", infos[2])
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get("a"); ok {
		t.Error("Clear() should drop results")
	}
	if _, ok := store.Weapons(); !ok {
		t.Error("Clear() should keep the catalog")
	}

	if err := store.ClearAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Weapons(); ok {
		t.Error("ClearAll() should drop the catalog")
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	fs := NewFileStorage(dir)

	if _, ok, err := fs.GetItem(KeyResults); err != nil || ok {
		t.Fatalf("GetItem(empty) = ok %v, err %v", ok, err)
	}
	if err := fs.SetItem(KeyResults, `{"a":1}`); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	v, ok, err := fs.GetItem(KeyResults)
	if err != nil || !ok || v != `{"a":1}` {
		t.Errorf("GetItem() = %q, %v, %v", v, ok, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "results.json" {
		t.Errorf("dir entries = %v, want only results.json", entries)
	}

	if err := fs.RemoveItem(KeyResults); err != nil {
		t.Fatal(err)
	}
	if err := fs.RemoveItem(KeyResults); err != nil {
		t.Errorf("removing a missing key should succeed, got %v", err)
	}
}

func TestFileStorage_RejectsInvalidKeys(t *testing.T) {
	fs := NewFileStorage(t.TempDir())
	for _, key := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
		if err := fs.SetItem(key, "x"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("SetItem(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestStore_FileStorageSurvivesReopen(t *testing.T) {
	// Given a result written through one store
	dir := t.TempDir()
	clock := newClock()
	first := NewStore(NewFileStorage(dir), WithClock(clock.now))
	if err := first.Put("k", sampleResult()); err != nil {
		t.Fatal(err)
	}

	// When a second store opens the same directory
	second := NewStore(NewFileStorage(dir), WithClock(clock.now))

	// Then it sees the result
	if _, ok := second.Get("k"); !ok {
		t.Error("result should persist across stores")
	}
}

// fakeFetcher counts calls and returns canned data.
type fakeFetcher struct {
	weapons     []string
	data        weapon.DataMap
	result      weapon.Result
	err         error
	optimize    int
	weaponData  int
	weaponCalls int
	cleared     []string
}

func (f *fakeFetcher) Weapons(context.Context) ([]string, error) {
	f.weaponCalls++
	return f.weapons, f.err
}

func (f *fakeFetcher) WeaponData(context.Context) (weapon.DataMap, error) {
	f.weaponData++
	return f.data, f.err
}

func (f *fakeFetcher) Optimize(_ context.Context, req weapon.Request) (weapon.Result, error) {
	f.optimize++
	if f.err != nil {
		return weapon.Result{}, f.err
	}
	r := f.result
	r.Weapon = req.Weapon
	return r, nil
}

func (f *fakeFetcher) ClearCacheAndFetch(_ context.Context, target string) error {
	f.cleared = append(f.cleared, target)
	return f.err
}

func TestCachedClient_OptimizeCachesResult(t *testing.T) {
	// Given a cached client over a fetcher
	f := &fakeFetcher{result: sampleResult()}
	cc := NewCachedClient(f, NewStore(NewMemoryStorage()), nil)
	req := weapon.NewRequest("Thunder Cage", 1, weapon.Buffs{Valby: true})

	// When optimizing the same request twice
	first, err := cc.Optimize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cc.Optimize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	// Then the fetcher is called once and both answers match
	if f.optimize != 1 {
		t.Errorf("fetcher calls = %d, want 1", f.optimize)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	if !cc.Cached(req) {
		t.Error("Cached() = false after Optimize")
	}
}

func TestCachedClient_OptimizeErrorNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	cc := NewCachedClient(f, NewStore(NewMemoryStorage()), nil)
	req := weapon.NewRequest("x", 1, weapon.Buffs{})

	if _, err := cc.Optimize(context.Background(), req); err == nil {
		t.Fatal("expected error")
	}
	if cc.Cached(req) {
		t.Error("failed request must not be cached")
	}
}

func TestCachedClient_WeaponDataForce(t *testing.T) {
	f := &fakeFetcher{data: weapon.DataMap{"Belief": {}}}
	cc := NewCachedClient(f, NewStore(NewMemoryStorage()), nil)
	ctx := context.Background()

	if _, err := cc.WeaponData(ctx, false); err != nil {
		t.Fatal(err)
	}
	if _, err := cc.WeaponData(ctx, false); err != nil {
		t.Fatal(err)
	}
	if f.weaponData != 1 {
		t.Errorf("fetches = %d, want 1 (second from cache)", f.weaponData)
	}
	if _, err := cc.WeaponData(ctx, true); err != nil {
		t.Fatal(err)
	}
	if f.weaponData != 2 {
		t.Errorf("fetches = %d, want 2 after force", f.weaponData)
	}
}

func TestCachedClient_WeaponsCached(t *testing.T) {
	f := &fakeFetcher{weapons: []string{"a", "b"}}
	cc := NewCachedClient(f, NewStore(NewMemoryStorage()), nil)

	for range 2 {
		names, err := cc.Weapons(context.Background())
		if err != nil || len(names) != 2 {
			t.Fatalf("Weapons() = %v, %v", names, err)
		}
	}
	if f.weaponCalls != 1 {
		t.Errorf("fetches = %d, want 1", f.weaponCalls)
	}
}

func TestCachedClient_Refresh(t *testing.T) {
	// Given a cached snapshot
	f := &fakeFetcher{data: weapon.DataMap{"Belief": {}}}
	store := NewStore(NewMemoryStorage())
	cc := NewCachedClient(f, store, nil)
	_ = store.PutSnapshot(weapon.DataMap{"Stale": {}})

	// When refreshing the sniper list
	data, err := cc.Refresh(context.Background(), "sniper")

	// Then the backend is asked to recompute and the new snapshot is cached
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(f.cleared) != 1 || f.cleared[0] != "sniper" {
		t.Errorf("cleared = %v, want [sniper]", f.cleared)
	}
	if _, ok := data["Belief"]; !ok {
		t.Errorf("Refresh() data = %v", data)
	}
	cached, _ := store.Snapshot()
	if _, ok := cached["Stale"]; ok {
		t.Error("stale snapshot should be replaced")
	}
}

func TestCachedClient_RefreshError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("nope")}
	cc := NewCachedClient(f, NewStore(NewMemoryStorage()), nil)

	if _, err := cc.Refresh(context.Background(), "all"); err == nil {
		t.Fatal("expected error")
	}
	if f.weaponData != 0 {
		t.Error("snapshot should not be fetched after a failed trigger")
	}
}
