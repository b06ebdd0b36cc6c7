package repositories

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPair(t *testing.T) {
	minID, maxID := canonicalPair(7, 3)
	assert.Equal(t, uint64(3), minID)
	assert.Equal(t, uint64(7), maxID)

	minID, maxID = canonicalPair(3, 7)
	assert.Equal(t, uint64(3), minID)
	assert.Equal(t, uint64(7), maxID)
}

func TestCanonicalPairProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("order insensitive", prop.ForAll(
		func(a, b uint64) bool {
			m1, x1 := canonicalPair(a, b)
			m2, x2 := canonicalPair(b, a)
			return m1 == m2 && x1 == x2
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.Property("sorted and set preserving", prop.ForAll(
		func(a, b uint64) bool {
			m, x := canonicalPair(a, b)
			if m > x {
				return false
			}
			return (m == a && x == b) || (m == b && x == a)
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.TestingRun(t)
}
