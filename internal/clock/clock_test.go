package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvance(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f := NewFake(t0)

	assert.Equal(t, t0, f.Now())
	assert.Equal(t, t0.Add(16*time.Minute), f.Advance(16*time.Minute))
	assert.Equal(t, t0.Add(16*time.Minute), f.Now())

	f.Set(t0)
	assert.Equal(t, t0, f.Now())
}

func TestFakeZeroValue(t *testing.T) {
	var f Fake
	assert.Equal(t, time.Unix(0, 0).UTC(), f.Now())
	assert.Equal(t, time.Unix(60, 0).UTC(), f.Advance(time.Minute))
}

func TestOr(t *testing.T) {
	assert.IsType(t, Real{}, Or(nil))
	f := NewFake(time.Now())
	assert.Same(t, f, Or(f))
}
