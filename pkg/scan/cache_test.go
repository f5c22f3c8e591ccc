package scan

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueCacheRoundTrip(t *testing.T) {
	c := NewValueCache()

	_, ok := c.Get("4111-1111-1111-1111")
	assert.False(t, ok)

	c.Put("4111-1111-1111-1111", []string{"credit_card"})
	names, ok := c.Get("4111-1111-1111-1111")
	assert.True(t, ok)
	assert.Equal(t, []string{"credit_card"}, names)
	assert.Equal(t, 1, c.Len())
}

func TestValueCacheStoresEmptyResults(t *testing.T) {
	c := NewValueCache()

	c.Put("nothing matched here 42", nil)
	names, ok := c.Get("nothing matched here 42")
	assert.True(t, ok, "a negative result is still a result")
	assert.Nil(t, names)
}

func TestValueCacheConcurrentAccess(t *testing.T) {
	c := NewValueCache()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v := fmt.Sprintf("value-%d", i)
				c.Put(v, []string{"email"})
				c.Get(v)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 200, c.Len())
}
