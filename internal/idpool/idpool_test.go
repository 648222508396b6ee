package idpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquire_Monotonic(t *testing.T) {
	p := New()
	a := p.Acquire()
	b := p.Acquire()
	c := p.Acquire()
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestRelease_NeverReissuedBeforeCooldown(t *testing.T) {
	p := NewWithCooldown(60 * time.Second)
	clock := time.Now()
	p.SetClock(func() time.Time { return clock })

	id := p.Acquire()
	p.Release(id)

	assert.True(t, p.InCooldown(id))

	for i := 0; i < 1000; i++ {
		fresh := p.Acquire()
		assert.NotEqual(t, id, fresh, "a freed id must never be reissued within its cooldown")
	}
}

func TestInCooldown_ExpiresAfterGracePeriod(t *testing.T) {
	p := NewWithCooldown(60 * time.Second)
	clock := time.Now()
	p.SetClock(func() time.Time { return clock })

	id := p.Acquire()
	p.Release(id)
	assert.True(t, p.InCooldown(id))

	clock = clock.Add(61 * time.Second)
	assert.False(t, p.InCooldown(id))
}

func TestHighChurn_NoCollisionWithinCooldownWindow(t *testing.T) {
	p := NewWithCooldown(60 * time.Second)
	clock := time.Now()
	p.SetClock(func() time.Time { return clock })

	first := make(map[uint32]bool)
	for i := 0; i < 50; i++ {
		first[p.Acquire()] = true
	}
	for id := range first {
		p.Release(id)
	}

	second := make(map[uint32]bool)
	for i := 0; i < 50; i++ {
		second[p.Acquire()] = true
	}

	for id := range second {
		assert.False(t, first[id], "second batch of ids must not collide with the still-cooling-down first batch")
	}
}
