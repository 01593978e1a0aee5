package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	s := NewFixed(5 * time.Second)
	assert.Equal(t, 5*time.Second, s.Next())
	assert.Equal(t, 5*time.Second, s.Next())
	s.Reset()
	assert.Equal(t, 5*time.Second, s.Next())
}

func TestRangeWithinBounds(t *testing.T) {
	s := NewRange(1*time.Second, 5*time.Second)
	for i := 0; i < 100; i++ {
		d := s.Next()
		assert.GreaterOrEqual(t, d, 1*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestRangeDegenerate(t *testing.T) {
	s := NewRange(3*time.Second, 3*time.Second)
	assert.Equal(t, 3*time.Second, s.Next())

	// swapped bounds are normalized
	s = NewRange(5*time.Second, 1*time.Second)
	d := s.Next()
	assert.GreaterOrEqual(t, d, 1*time.Second)
	assert.LessOrEqual(t, d, 5*time.Second)
}

func TestExponential(t *testing.T) {
	s := NewExponential(1*time.Second, 2, 5*time.Second)
	assert.Equal(t, 1*time.Second, s.Next())
	assert.Equal(t, 2*time.Second, s.Next())
	assert.Equal(t, 4*time.Second, s.Next())
	assert.Equal(t, 5*time.Second, s.Next()) // capped
	s.Reset()
	assert.Equal(t, 1*time.Second, s.Next())
}
