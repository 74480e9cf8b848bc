package doorkeeper

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowOnSecondSighting(t *testing.T) {
	t.Parallel()

	d := New(1000, 0.001)

	assert.False(t, d.Allow("/a"))
	assert.True(t, d.Allow("/a"))
	assert.True(t, d.Allow("/a"))
	assert.False(t, d.Allow("/b"))
}

func TestReset(t *testing.T) {
	t.Parallel()

	d := New(1000, 0.001)
	d.Allow("/a")
	d.Reset()

	assert.False(t, d.Allow("/a"))
	assert.Equal(t, uint64(1), d.Resets())
}

func TestGenerationRollsOver(t *testing.T) {
	t.Parallel()

	d := New(10, 0.001)
	for i := 0; i < 10; i++ {
		d.Allow("/p" + strconv.Itoa(i))
	}
	assert.Zero(t, d.Resets())

	d.Allow("/overflow")
	assert.Equal(t, uint64(1), d.Resets())
	assert.False(t, d.Allow("/p0"))
}
