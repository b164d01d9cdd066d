package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLocks_SerializesPerUser(t *testing.T) {
	locks := newUserLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("alice")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, locks.locks, "released locks are dropped")
}

func TestUserLocks_IndependentUsers(t *testing.T) {
	locks := newUserLocks()

	unlockAlice := locks.Lock("alice")
	// would deadlock if users shared a mutex
	unlockBob := locks.Lock("bob")
	unlockBob()
	unlockAlice()

	assert.Empty(t, locks.locks)
}
