package attendance

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	k := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("emp-1")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, k.locks)
}
