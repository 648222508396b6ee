package vsource

import (
	"testing"

	"github.com/rtacoustics/raengine/pkg/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyOf_ConcatenatesPartsLeftToRight(t *testing.T) {
	parts := []PathPart{
		{Kind: room.PathReflection, ID: 3},
		{Kind: room.PathDiffraction, ID: 7},
	}
	assert.Equal(t, "3r7d", KeyOf(parts))
}

func TestKeyOf_EmptyIsDirect(t *testing.T) {
	assert.Equal(t, "direct", KeyOf(nil))
}

func TestMap_DiffAddsFadesUpdates(t *testing.T) {
	m := NewMap()
	m.Diff(map[string]Descriptor{"1r": {Key: "1r"}})
	require.Len(t, m.Entries(), 1)
	assert.Equal(t, 1.0, m.Entries()["1r"].Target)
	assert.Equal(t, 0.0, m.Entries()["1r"].Gain)

	// Advance until visible.
	for i := 0; i < 1000; i++ {
		m.AdvanceGains(0.01)
	}
	assert.InDelta(t, 1.0, m.Entries()["1r"].Gain, 1e-9)

	// Now the path disappears from the fresh set: should start fading.
	m.Diff(map[string]Descriptor{})
	assert.Equal(t, 0.0, m.Entries()["1r"].Target)

	var reclaimed []string
	for i := 0; i < 1000 && len(reclaimed) == 0; i++ {
		reclaimed = m.AdvanceGains(0.01)
	}
	require.Len(t, reclaimed, 1)
	m.Reclaim(reclaimed)
	assert.Len(t, m.Entries(), 0)
}

func TestChannelAllocator_AcquireReleaseReuse(t *testing.T) {
	a := NewChannelAllocator(4)
	ch1, ok := a.Acquire()
	require.True(t, ok)
	ch2, ok := a.Acquire()
	require.True(t, ok)
	assert.NotEqual(t, ch1, ch2)

	a.Release(ch1)
	ch3, ok := a.Acquire()
	require.True(t, ok)
	assert.Equal(t, ch1, ch3)
}

func TestChannelAllocator_WrapsModuloNWhenExhausted(t *testing.T) {
	a := NewChannelAllocator(2)
	_, _ = a.Acquire()
	_, _ = a.Acquire()
	ch, ok := a.Acquire()
	require.True(t, ok)
	assert.Less(t, ch, 2)
}
