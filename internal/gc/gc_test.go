package gc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtots-lang/mtots/internal/value"
)

// fakeRoots marks exactly the values it was built with, standing in
// for the VM's own stack/globals/upvalue walk.
type fakeRoots struct {
	roots []value.Value
}

func (r *fakeRoots) MarkRoots(c *Collector) {
	for _, v := range r.roots {
		c.MarkValue(v)
	}
}

func TestCollectFreesUnreachableAndKeepsReachable(t *testing.T) {
	c := New()

	kept := value.NewList([]value.Value{value.Number(1)})
	c.Track(kept)
	garbage := value.NewList([]value.Value{value.Number(2)})
	c.Track(garbage)

	require.Equal(t, 2, c.Count())

	roots := &fakeRoots{roots: []value.Value{value.Obj(kept)}}
	c.Collect(roots)

	require.Equal(t, 1, c.Count())
}

func TestMarkIsIdempotentAndSkipsAlreadyMarked(t *testing.T) {
	c := New()
	l := value.NewList(nil)
	c.Track(l)

	c.Mark(l)
	require.True(t, l.Marked())
	require.Len(t, c.gray, 1)

	c.Mark(l) // already marked: must not re-enqueue
	require.Len(t, c.gray, 1)
}

func TestBlackenTracesListElementsIntoGray(t *testing.T) {
	c := New()
	inner := value.NewList(nil)
	c.Track(inner)
	outer := value.NewList([]value.Value{value.Obj(inner)})
	c.Track(outer)

	c.Mark(outer)
	c.traceGray()

	require.True(t, inner.Marked(), "blackening outer must mark the inner list it references")
}

func TestShouldCollectRespectsThreshold(t *testing.T) {
	c := New()
	require.False(t, c.ShouldCollect())

	c.bytesAlloc = c.nextGC + 1
	require.True(t, c.ShouldCollect())
}
