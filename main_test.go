package main

import (
	"sync"
	"testing"
)

func TestPersistentUptimeConcurrent(t *testing.T) {
	persistentUptime.Store(0)
	defer persistentUptime.Store(0)

	// Ticker writes and status-card reads run on different goroutines.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				persistentUptime.Add(60)
				_ = persistentUptime.Load()
			}
		}()
	}
	wg.Wait()

	if got := persistentUptime.Load(); got != 8*1000*60 {
		t.Errorf("uptime counter = %d, expected %d", got, 8*1000*60)
	}
}
