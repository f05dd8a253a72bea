package worker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateSingleSlot(t *testing.T) {
	g := NewGate(0)

	release, err := g.TryAcquire()
	require.NoError(t, err)
	assert.Equal(t, 1, g.InFlight())

	_, err = g.TryAcquire()
	assert.ErrorIs(t, err, ErrBusy)

	release()
	release()
	assert.Equal(t, 0, g.InFlight())

	release2, err := g.TryAcquire()
	require.NoError(t, err)
	release2()
}

func TestGateConcurrentAcquire(t *testing.T) {
	g := NewGate(3)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
		releases []func()
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.TryAcquire()
			if err != nil {
				return
			}
			mu.Lock()
			acquired++
			releases = append(releases, release)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, acquired)
	for _, r := range releases {
		r()
	}
	assert.Equal(t, 0, g.InFlight())
}
