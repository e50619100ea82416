package memo

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOrCompute_ComputesOnce(t *testing.T) {
	cache := NewCache[[]string]()

	calls := 0
	compute := func() ([]string, error) {
		calls++
		return []string{"victoria", "northern"}, nil
	}

	for i := 0; i < 5; i++ {
		got, err := cache.GetOrCompute("tube-lines", compute)
		if err != nil {
			t.Fatalf("GetOrCompute failed: %v", err)
		}
		if len(got) != 2 || got[0] != "victoria" {
			t.Errorf("GetOrCompute = %v, want [victoria northern]", got)
		}
	}

	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestGetOrCompute_DistinctKeys(t *testing.T) {
	cache := NewCache[int]()

	for i, key := range []string{"a", "b", "c"} {
		want := i
		got, err := cache.GetOrCompute(key, func() (int, error) {
			return want, nil
		})
		if err != nil {
			t.Fatalf("GetOrCompute(%q) failed: %v", key, err)
		}
		if got != want {
			t.Errorf("GetOrCompute(%q) = %d, want %d", key, got, want)
		}
	}

	if cache.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cache.Len())
	}
}

// TestGetOrCompute_SingleFlight launches many concurrent callers for one
// uncomputed key and verifies exactly one computation runs, with every
// caller observing its result.
func TestGetOrCompute_SingleFlight(t *testing.T) {
	cache := NewCache[int]()

	var computes int64
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func() (int, error) {
		atomic.AddInt64(&computes, 1)
		<-release
		return 42, nil
	}

	const callers = 20
	results := make([]int, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	var once sync.Once
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			once.Do(func() { close(started) })
			results[i], errs[i] = cache.GetOrCompute("shared", compute)
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	if got := atomic.LoadInt64(&computes); got != 1 {
		t.Errorf("compute ran %d times under concurrency, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d got error %v", i, errs[i])
		}
		if results[i] != 42 {
			t.Errorf("caller %d got %d, want 42", i, results[i])
		}
	}
}

func TestGetOrCompute_FailureNotCached(t *testing.T) {
	cache := NewCache[string]()

	boom := errors.New("remote unavailable")
	calls := 0
	failing := func() (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	}

	_, err := cache.GetOrCompute("flaky", failing)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected first call to fail with %v, got %v", boom, err)
	}
	if cache.Len() != 0 {
		t.Errorf("Failed computation was cached, Len() = %d", cache.Len())
	}

	got, err := cache.GetOrCompute("flaky", failing)
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}
	if got != "ok" {
		t.Errorf("Second call = %q, want ok", got)
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}

	// Third call is a pure hit.
	if _, err := cache.GetOrCompute("flaky", failing); err != nil {
		t.Fatalf("Third call failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("compute called %d times after hit, want 2", calls)
	}
}
