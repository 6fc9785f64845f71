package idtable

import (
	"sync"
	"testing"
)

func TestNewRoundsToPowerOfTwo(t *testing.T) {
	tbl := New(10)
	if len(tbl.shards) != 16 {
		t.Errorf("shards = %d, want 16", len(tbl.shards))
	}
}

func TestNewDefaultShards(t *testing.T) {
	tbl := New(0)
	if len(tbl.shards) != DefaultShards {
		t.Errorf("shards = %d, want %d", len(tbl.shards), DefaultShards)
	}
}

func TestStoreLoadDelete(t *testing.T) {
	tbl := New(8)

	if _, ok := tbl.Load(42); ok {
		t.Fatal("expected miss before Store")
	}

	tbl.Store(42, "hello")
	v, ok := tbl.Load(42)
	if !ok || v != "hello" {
		t.Fatalf("Load(42) = %v, %v; want hello, true", v, ok)
	}

	if !tbl.Contains(42) {
		t.Error("Contains(42) = false, want true")
	}

	tbl.Delete(42)
	if _, ok := tbl.Load(42); ok {
		t.Error("expected miss after Delete")
	}
}

func TestDeleteDoesNotMutateValue(t *testing.T) {
	tbl := New(8)
	type record struct{ n int }
	r := &record{n: 7}
	tbl.Store(1, r)

	loaded, _ := tbl.Load(1)
	tbl.Delete(1)

	// The caller's copy of the pointer must remain valid and unmodified;
	// Delete only removes the map slot.
	if loaded.(*record).n != 7 {
		t.Errorf("value mutated by Delete: %+v", loaded)
	}
}

func TestLen(t *testing.T) {
	tbl := New(4)
	for i := uint32(0); i < 100; i++ {
		tbl.Store(i, i)
	}
	if tbl.Len() != 100 {
		t.Errorf("Len() = %d, want 100", tbl.Len())
	}
	tbl.Delete(5)
	if tbl.Len() != 99 {
		t.Errorf("Len() after delete = %d, want 99", tbl.Len())
	}
}

func TestRangeSnapshot(t *testing.T) {
	tbl := New(4)
	want := map[uint32]any{}
	for i := uint32(0); i < 50; i++ {
		tbl.Store(i, i*2)
		want[i] = i * 2
	}

	got := map[uint32]any{}
	tbl.Range(func(key uint32, val any) bool {
		got[key] = val
		return true
	})

	if len(got) != len(want) {
		t.Fatalf("Range visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Range[%d] = %v, want %v", k, got[k], v)
		}
	}
}

func TestRangeEarlyStop(t *testing.T) {
	tbl := New(4)
	for i := uint32(0); i < 20; i++ {
		tbl.Store(i, i)
	}
	count := 0
	tbl.Range(func(key uint32, val any) bool {
		count++
		return count < 5
	})
	if count != 5 {
		t.Errorf("Range visited %d entries, want 5 (early stop)", count)
	}
}

func TestConcurrentStoreLoad(t *testing.T) {
	tbl := New(16)
	var wg sync.WaitGroup
	const n = 2000

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint32(0); i < n; i++ {
			tbl.Store(i, i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := uint32(0); i < n; i++ {
			tbl.Load(i)
		}
	}()
	wg.Wait()

	if tbl.Len() != n {
		t.Errorf("Len() = %d, want %d", tbl.Len(), n)
	}
}
