package shared

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyMutexSerialisesSameKey(t *testing.T) {
	m := NewKeyMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("ledger:a")
			counter++
			m.Unlock("ledger:a")
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestKeyMutexIndependentKeys(t *testing.T) {
	m := NewKeyMutex()
	m.Lock("ledger:a")
	done := make(chan struct{})
	go func() {
		m.Lock("ledger:b")
		m.Unlock("ledger:b")
		close(done)
	}()
	<-done
	m.Unlock("ledger:a")

	// The map must not leak entries once locks are released.
	m.mu.Lock()
	require.Empty(t, m.locks)
	m.mu.Unlock()
}
