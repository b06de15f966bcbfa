package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_Do(t *testing.T) {
	var g SingleFlight[string]
	var counter int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			val, err, _ := g.Do("token-key", func() (string, error) {
				atomic.AddInt32(&counter, 1)
				time.Sleep(20 * time.Millisecond)
				return "ok", nil
			})
			if err != nil {
				t.Errorf("singleflight call failed: %v", err)
			}
			if val != "ok" {
				t.Errorf("singleflight value = %q, want ok", val)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&counter); got != 1 {
		t.Fatalf("expected function to run once, got %d", got)
	}
}

func TestSingleFlight_SequentialCallsRunEachTime(t *testing.T) {
	var g SingleFlight[int]
	runs := 0

	for i := 0; i < 3; i++ {
		val, err, shared := g.Do("key", func() (int, error) {
			runs++
			return runs, nil
		})
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		if shared {
			t.Fatal("sequential call reported a shared result")
		}
		if val != i+1 {
			t.Fatalf("val = %d, want %d", val, i+1)
		}
	}
}
