package gateway

import (
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func testClient(id string, userID uint64) *Client {
	return newClient(id, userID, "web", nil, 8)
}

func TestRegistry_RegisterCollect(t *testing.T) {
	r := NewRegistry()

	c1 := testClient("c1", 1)
	c2 := testClient("c2", 1)
	c3 := testClient("c3", 2)
	r.Register(c1)
	r.Register(c2)
	r.Register(c3)

	assert.Equal(t, 3, r.Count())
	assert.Equal(t, 2, r.CountByUser(1))
	assert.Len(t, r.Collect(1), 2)
	assert.Len(t, r.Collect(99), 0)

	r.Unregister("c1")
	assert.Equal(t, 1, r.CountByUser(1))

	// unregistering twice is harmless
	r.Unregister("c1")
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("g%d-c%d", g, i)
				r.Register(testClient(id, uint64(g%3)))
				r.Collect(uint64(g % 3))
				r.Unregister(id)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

func TestClient_SendNonBlocking(t *testing.T) {
	c := testClient("c1", 1)

	// fill the buffer without a reader
	for i := 0; i < 8; i++ {
		assert.True(t, c.Send([]byte("x")))
	}
	// a full buffer rejects instead of blocking the caller
	assert.False(t, c.Send([]byte("overflow")))
}

// TestRegistryCountProperty checks that after any interleaving of register
// and unregister operations, per-user counts add up to the total.
func TestRegistryCountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("counts are consistent", prop.ForAll(
		func(ops []int) bool {
			r := NewRegistry()
			registered := make(map[string]uint64)
			for i, op := range ops {
				id := fmt.Sprintf("c%d", i%10)
				uid := uint64(op % 4)
				if op%2 == 0 {
					r.Register(testClient(id, uid))
					registered[id] = uid
				} else {
					r.Unregister(id)
					delete(registered, id)
				}
			}
			if r.Count() != len(registered) {
				return false
			}
			perUser := make(map[uint64]int)
			for _, uid := range registered {
				perUser[uid]++
			}
			for uid, want := range perUser {
				if r.CountByUser(uid) != want {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}
