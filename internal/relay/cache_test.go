package relay

import (
	"fmt"
	"sync"
	"testing"

	"hls-relay/internal/channel"
)

func TestInMemoryCache_GetPutRemove(t *testing.T) {
	cache := NewInMemoryCache()

	if _, ok := cache.Get(demoV1); ok {
		t.Error("expected absent entry for empty cache")
	}

	empty := EmptySnapshot()
	cache.Put(demoV1, empty)
	got, ok := cache.Get(demoV1)
	if !ok || got != empty {
		t.Fatalf("Get after Put: ok=%v got %p want %p", ok, got, empty)
	}
	if got.Ready() {
		t.Error("empty snapshot must not be ready")
	}

	full := &Snapshot{Playlist: "#EXTM3U", Segments: []string{"http://o/a.ts"}}
	cache.Put(demoV1, full)
	if got, _ := cache.Get(demoV1); got != full {
		t.Errorf("Put should replace: got %p want %p", got, full)
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d", cache.Len())
	}

	cache.Remove(demoV1)
	if _, ok := cache.Get(demoV1); ok {
		t.Error("entry should be gone after Remove")
	}
	cache.Remove(demoV1)
}

func TestInMemoryCache_VersionsAreDistinctKeys(t *testing.T) {
	cache := NewInMemoryCache()
	v2 := channel.ID{Name: "demo", Version: "v2"}
	cache.Put(demoV1, &Snapshot{Playlist: "one"})
	cache.Put(v2, &Snapshot{Playlist: "two"})

	a, _ := cache.Get(demoV1)
	b, _ := cache.Get(v2)
	if a.Playlist != "one" || b.Playlist != "two" {
		t.Errorf("got %q and %q", a.Playlist, b.Playlist)
	}
}

func TestInMemoryCache_ReplaceRequiresEntry(t *testing.T) {
	cache := NewInMemoryCache()
	snap := &Snapshot{Playlist: "#EXTM3U"}

	if cache.Replace(demoV1, snap) {
		t.Fatal("Replace must not create an entry")
	}
	if _, ok := cache.Get(demoV1); ok {
		t.Fatal("absent entry was created by Replace")
	}

	cache.Put(demoV1, EmptySnapshot())
	if !cache.Replace(demoV1, snap) {
		t.Fatal("Replace of a present entry should succeed")
	}
	if got, _ := cache.Get(demoV1); got != snap {
		t.Errorf("got %p want %p", got, snap)
	}

	cache.Remove(demoV1)
	if cache.Replace(demoV1, snap) {
		t.Error("Replace after Remove must fail")
	}
}

// Readers must always see a playlist and table produced by the same cycle.
func TestInMemoryCache_NoTornReads(t *testing.T) {
	cache := NewInMemoryCache()
	cache.Put(demoV1, &Snapshot{Playlist: "0", Segments: []string{"0"}})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 2000; i++ {
			n := fmt.Sprint(i)
			cache.Put(demoV1, &Snapshot{Playlist: n, Segments: []string{n}})
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, ok := cache.Get(demoV1)
				if !ok || snap.Segments[0] != snap.Playlist {
					t.Errorf("torn snapshot: %+v", snap)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSnapshot_SegmentURL(t *testing.T) {
	snap := &Snapshot{Segments: []string{"a", "b"}}
	if u, ok := snap.SegmentURL(1); !ok || u != "b" {
		t.Errorf("SegmentURL(1) = %q, %v", u, ok)
	}
	for _, i := range []int{-1, 2, 5} {
		if _, ok := snap.SegmentURL(i); ok {
			t.Errorf("SegmentURL(%d) should be out of range", i)
		}
	}
	var nilSnap *Snapshot
	if _, ok := nilSnap.SegmentURL(0); ok {
		t.Error("nil snapshot has no segments")
	}
}
