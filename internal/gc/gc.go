// Package gc implements Mtots' stop-the-world, non-moving,
// tri-color mark-sweep collector (spec §4.C). It owns the single
// intrusive allocation list every heap Object is threaded onto at
// construction time, the gray worklist used to trace reachability,
// and the string/tuple/frozen-map intern pools' weak-reference
// pruning that follows a full mark.
package gc

import (
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/mtots-lang/mtots/internal/config"
	"github.com/mtots-lang/mtots/internal/hashmap"
	"github.com/mtots-lang/mtots/internal/value"
)

// Roots is implemented by the VM: the collector never reaches into VM
// internals directly, mirroring the CallContext/GenericTable pattern
// used elsewhere to keep internal/value and internal/vm decoupled.
// MarkRoots is called once per collection and must call back into
// Collector.Mark (or MarkValue) for every root reference.
type Roots interface {
	MarkRoots(c *Collector)
}

// Collector owns the allocation list, the intern pools, and the
// byte-count thresholds that decide when a collection runs.
type Collector struct {
	head       value.Object // intrusive allocation list, most-recent first
	count      int
	bytesAlloc uint64
	nextGC     uint64

	Strings *hashmap.StringPool
	Aggregates *hashmap.AggregateIntern

	gray []value.Object

	stressGC bool
	trace    bool
	logger   *slog.Logger
}

const initialNextGC = 1 << 20 // 1 MiB, mirrors the reference collector's default threshold

// New returns a Collector with fresh, empty intern pools and the
// stress/trace flags read from their documented environment variables
// (spec §7's MTOTS_STRESS_GC / MTOTS_GC_TRACE).
func New() *Collector {
	return &Collector{
		Strings:    hashmap.NewStringPool(),
		Aggregates: hashmap.NewAggregateIntern(),
		nextGC:     initialNextGC,
		stressGC:   os.Getenv(config.EnvStressGC) != "",
		trace:      os.Getenv(config.EnvGCTrace) != "",
		logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "gc"),
	}
}

// Track registers a freshly allocated heap object, threading it onto
// the allocation list so the next sweep can find it. The code that
// allocates an Object calls this (the VM through its track helper,
// natives through CallContext.Track); constructors in internal/value
// do not. String/Tuple/FrozenMap are owned by the intern pools
// instead (spec §3).
func (c *Collector) Track(o value.Tracked) {
	o.SetNextObj(c.head)
	c.head = o
	c.count++
	c.bytesAlloc += sizeOf(o)
	if c.stressGC {
		return // caller triggers the collection explicitly under stress mode
	}
}

// ShouldCollect reports whether bytesAlloc has crossed nextGC, or
// unconditionally true under MTOTS_STRESS_GC (spec §4.C: "every
// allocation can trigger a collection under the stress-test mode").
func (c *Collector) ShouldCollect() bool {
	return c.stressGC || c.bytesAlloc >= c.nextGC
}

// Collect runs one full stop-the-world mark-sweep cycle: mark every
// root reachable via roots.MarkRoots, trace the gray worklist to
// blacken the whole live graph, prune the intern pools' dead weak
// references, then sweep the allocation list and free every object
// still white.
func (c *Collector) Collect(roots Roots) {
	before := c.bytesAlloc
	roots.MarkRoots(c)
	c.traceGray()
	c.pruneIntern()
	freed := c.sweep()
	c.nextGC = c.bytesAlloc * config.GCHeapGrowFactor
	if c.nextGC < initialNextGC {
		c.nextGC = initialNextGC
	}
	if c.trace {
		c.logger.Info("collected",
			"before", humanize.Bytes(before),
			"after", humanize.Bytes(c.bytesAlloc),
			"freed_objects", freed,
			"next_gc", humanize.Bytes(c.nextGC),
		)
	}
}

// MarkValue paints v's underlying object gray if it is an
// object-carrying Value. Intended for roots implementations to call
// for every Value slot they hold (stack slots, globals, fields).
func (c *Collector) MarkValue(v value.Value) {
	switch v.Kind {
	case value.KString:
		if v.Str != nil {
			v.Str.SetMarked(true)
		}
	case value.KObject:
		c.Mark(v.Obj)
	}
}

// Mark paints a heap object gray (adds it to the worklist) unless it
// is already marked, implementing the tri-color invariant: white
// (unmarked, not yet seen), gray (marked, children not yet traced),
// black (marked, children traced — implicit once popped off the
// worklist and blackened).
func (c *Collector) Mark(o value.Object) {
	if o == nil {
		return
	}
	t, ok := o.(value.Tracked)
	if !ok {
		return
	}
	if t.Marked() {
		return
	}
	t.SetMarked(true)
	c.gray = append(c.gray, o)
}

func (c *Collector) traceGray() {
	for len(c.gray) > 0 {
		n := len(c.gray) - 1
		o := c.gray[n]
		c.gray = c.gray[:n]
		c.blacken(o)
	}
}

// blacken visits every reference one object holds to other GC objects
// and/or interned strings, marking each in turn. This is the single
// place that must be kept in sync with internal/value/object.go's
// field list for every heap type.
func (c *Collector) blacken(o value.Object) {
	switch t := o.(type) {
	case *value.Class:
		for _, m := range t.Methods {
			c.MarkValue(m)
		}
		for _, m := range t.Statics {
			c.MarkValue(m)
		}
		if t.Superclass != nil {
			c.Mark(t.Superclass)
		}
	case *value.FunctionProto:
		if t.Chunk != nil {
			for _, k := range t.Chunk.Constants {
				c.MarkValue(k)
			}
		}
		for _, d := range t.Defaults {
			c.MarkValue(d)
		}
	case *value.Closure:
		c.Mark(t.Proto)
		c.Mark(t.Module)
		for _, uv := range t.Upvalues {
			c.Mark(uv)
		}
	case *value.NativeClosure:
		if t.Blacken != nil {
			t.Blacken(t.State, c.MarkValue)
		}
	case *value.Instance:
		c.Mark(t.Class)
		for _, v := range t.Fields {
			c.MarkValue(v)
		}
	case *value.Module:
		c.Mark(t.Class)
		for _, v := range t.Fields {
			c.MarkValue(v)
		}
	case *value.List:
		for _, v := range t.Elements {
			c.MarkValue(v)
		}
	case *value.Tuple:
		for _, v := range t.Elements {
			c.MarkValue(v)
		}
	case *value.MapObj:
		if t.Table != nil {
			t.Table.Each(func(k, v value.Value) {
				c.MarkValue(k)
				c.MarkValue(v)
			})
		}
	case *value.FrozenMap:
		for _, v := range t.Keys {
			c.MarkValue(v)
		}
		for _, v := range t.Vals {
			c.MarkValue(v)
		}
	case *value.NativeOpaque:
		if t.Descriptor != nil && t.Descriptor.Blacken != nil {
			t.Descriptor.Blacken(t, c.MarkValue)
		}
	case *value.Upvalue:
		c.MarkValue(t.Closed)
	case *value.Buffer, *value.File:
		// no outgoing references
	}
}

// pruneIntern drops every interned string/tuple/frozen-map that did
// not get marked during this cycle's trace, per spec §4.C's
// tableRemoveWhite step: interning tables hold weak references, so a
// string with no other referent must not keep itself alive forever.
func (c *Collector) pruneIntern() {
	c.Strings.RemoveWhite()
	c.Aggregates.RemoveWhite(func(o value.Object) bool {
		t, ok := o.(value.Tracked)
		return ok && t.Marked()
	})
}

// sweep walks the allocation list, freeing (unlinking, and invoking
// any native Free hook) every object left white, and clearing the
// mark bit on every object left black for the next cycle.
func (c *Collector) sweep() int {
	var newHead value.Object
	var prevKept value.Tracked
	freed := 0
	for o := c.head; o != nil; {
		t := o.(value.Tracked)
		next := t.NextObj()
		if t.Marked() {
			t.SetMarked(false)
			t.SetNextObj(nil)
			if prevKept == nil {
				newHead = o
			} else {
				prevKept.SetNextObj(o)
			}
			prevKept = t
		} else {
			c.free(o)
			c.bytesAlloc -= sizeOf(o)
			c.count--
			freed++
		}
		o = next
	}
	c.head = newHead
	return freed
}

func (c *Collector) free(o value.Object) {
	if n, ok := o.(*value.NativeOpaque); ok && n.Descriptor != nil && n.Descriptor.Free != nil {
		n.Descriptor.Free(n)
	}
	if n, ok := o.(*value.NativeClosure); ok && n.Free != nil {
		n.Free(n.State)
	}
	if fi, ok := o.(*value.File); ok && fi.IsOpen {
		if closer, ok := fi.Handle.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
}

// sizeOf estimates an object's heap footprint for threshold purposes.
// Exactness does not matter here — only that larger objects push the
// next collection closer, matching the reference collector's
// bytesAllocated bookkeeping (it too uses sizeof(), a rough estimate
// for variable-length payloads like strings and arrays).
func sizeOf(o value.Object) uint64 {
	switch t := o.(type) {
	case *value.List:
		return 48 + uint64(len(t.Elements))*32
	case *value.Tuple:
		return 48 + uint64(len(t.Elements))*32
	case *value.FrozenMap:
		return 48 + uint64(len(t.Keys))*64
	case *value.Buffer:
		return 32 + uint64(len(t.Bytes))
	case *value.Instance:
		return 48 + uint64(len(t.Fields))*40
	case *value.Module:
		return 64 + uint64(len(t.Fields))*40
	case *value.FunctionProto:
		sz := uint64(80)
		if t.Chunk != nil {
			sz += uint64(len(t.Chunk.Code)) + uint64(len(t.Chunk.Constants))*32
		}
		return sz
	case *value.Closure:
		return 48 + uint64(len(t.Upvalues))*8
	case *value.NativeOpaque:
		sz := uint64(32)
		if t.Descriptor != nil {
			sz += uint64(t.Descriptor.Size)
		}
		return sz
	default:
		return 48
	}
}

// Count returns the number of live tracked objects, for gc.stats()
// (SPEC_FULL.md's supplemented feature #4).
func (c *Collector) Count() int { return c.count }

// BytesAllocated returns the collector's current heap-size estimate.
func (c *Collector) BytesAllocated() uint64 { return c.bytesAlloc }

// NextGC returns the threshold at which the next collection triggers.
func (c *Collector) NextGC() uint64 { return c.nextGC }
