package filesystem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestKeyLockExcludes(t *testing.T) {
	l := newKeyLock()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		inside  int
		maxSeen int
		counter int
	)
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			unlock := l.Lock("/a")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			counter++

			mu.Lock()
			inside--
			mu.Unlock()
			return nil
		})
	}
	assert.NoError(t, g.Wait())

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 32, counter)
	assert.Equal(t, 0, l.size())
}

func TestKeyLockMultiKeyOrdering(t *testing.T) {
	l := newKeyLock()

	// Opposite argument orders must not deadlock.
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			unlock := l.Lock("/x", "/y")
			unlock()
			return nil
		})
		g.Go(func() error {
			unlock := l.Lock("/y", "/x", "/y")
			unlock()
			return nil
		})
	}
	assert.NoError(t, g.Wait())
	assert.Equal(t, 0, l.size())
}

func TestKeyLockIndependentKeys(t *testing.T) {
	l := newKeyLock()

	unlockA := l.Lock("/a")
	done := make(chan struct{})
	go func() {
		unlock := l.Lock("/b")
		unlock()
		close(done)
	}()
	<-done
	unlockA()
}
