package resolver

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	mu       sync.Mutex
	calls    map[string]int
	versions map[string][]string
	fail     map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	block    chan struct{}
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{
		calls:    make(map[string]int),
		versions: make(map[string][]string),
		fail:     make(map[string]bool),
	}
}

func (f *countingFetcher) FetchVersions(_ context.Context, name string) ([]string, error) {
	cur := f.inFlight.Add(1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	f.calls[name]++
	failed := f.fail[name]
	versions := f.versions[name]
	f.mu.Unlock()

	if failed {
		return nil, fmt.Errorf("registry unreachable for %s", name)
	}
	return versions, nil
}

func (f *countingFetcher) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func TestResolveCacheIdempotence(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.versions["serde"] = []string{"1.0.0", "1.0.1"}
	res := New(fetcher, 4, nil)

	first := res.Resolve(context.Background(), []string{"serde"})
	second := res.Resolve(context.Background(), []string{"serde"})

	assert.Equal(t, 1, fetcher.callCount("serde"))
	assert.Equal(t, []string{"1.0.0", "1.0.1"}, first["serde"])
	assert.Equal(t, first["serde"], second["serde"])
}

func TestResolveDeduplicatesWithinOneCall(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.versions["tokio"] = []string{"1.0.0"}
	res := New(fetcher, 4, nil)

	out := res.Resolve(context.Background(), []string{"tokio", "tokio", "tokio"})

	assert.Equal(t, 1, fetcher.callCount("tokio"))
	assert.Equal(t, []string{"1.0.0"}, out["tokio"])
}

func TestResolveFailureNotCachedAndRetried(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.fail["flaky"] = true
	res := New(fetcher, 4, nil)

	out := res.Resolve(context.Background(), []string{"flaky"})
	require.Contains(t, out, "flaky")
	assert.Empty(t, out["flaky"])
	_, cached := res.CachedVersions("flaky")
	assert.False(t, cached)

	// The registry recovers; the next pass retries and caches.
	fetcher.mu.Lock()
	fetcher.fail["flaky"] = false
	fetcher.versions["flaky"] = []string{"0.2.0"}
	fetcher.mu.Unlock()

	out = res.Resolve(context.Background(), []string{"flaky"})
	assert.Equal(t, []string{"0.2.0"}, out["flaky"])
	assert.Equal(t, 2, fetcher.callCount("flaky"))
}

func TestResolveConcurrencyBound(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.block = make(chan struct{})
	names := make([]string, 16)
	for i := range names {
		names[i] = fmt.Sprintf("crate-%d", i)
		fetcher.versions[names[i]] = []string{"1.0.0"}
	}
	res := New(fetcher, 4, nil)

	done := make(chan map[string][]string)
	go func() {
		done <- res.Resolve(context.Background(), names)
	}()
	close(fetcher.block)
	out := <-done

	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int32(4))
	assert.Len(t, out, 16)
	for _, name := range names {
		assert.Equal(t, []string{"1.0.0"}, out[name])
	}
}

func TestResolveSingleFlightAcrossOverlappingCalls(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.block = make(chan struct{})
	fetcher.versions["shared"] = []string{"3.0.0"}
	res := New(fetcher, 4, nil)

	var wg sync.WaitGroup
	results := make([]map[string][]string, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = res.Resolve(context.Background(), []string{"shared"})
		}(i)
	}
	// Let both calls claim before the fetch completes.
	for fetcher.inFlight.Load() == 0 {
		runtime.Gosched()
	}
	close(fetcher.block)
	wg.Wait()

	assert.Equal(t, 1, fetcher.callCount("shared"))
	for _, out := range results {
		assert.Equal(t, []string{"3.0.0"}, out["shared"])
	}
}

func TestResolveBarrierReturnsAllRequested(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.versions["a"] = []string{"1"}
	fetcher.versions["bc"] = []string{"2"}
	fetcher.fail["broken"] = true
	res := New(fetcher, 2, nil)

	out := res.Resolve(context.Background(), []string{"a", "bc", "broken"})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"1"}, out["a"])
	assert.Equal(t, []string{"2"}, out["bc"])
	assert.Empty(t, out["broken"])
}
