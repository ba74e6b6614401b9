package tsdemux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockReferenceTicks(t *testing.T) {
	c := newClockReference(1, 2)
	assert.Equal(t, int64(1*300+2), c.Ticks())
}

func TestClockReferenceDuration(t *testing.T) {
	c := newClockReference(90000, 0)
	assert.Equal(t, time.Second, c.Duration())
}

func TestClockReferenceMax33Bit(t *testing.T) {
	const max33 = 1<<33 - 1
	c := newClockReference(max33, 511)
	assert.Equal(t, int64(max33), c.Base)
	assert.Equal(t, int64(511), c.Extension)
	assert.Equal(t, int64(max33)*300+511, c.Ticks())
}
