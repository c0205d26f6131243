package builtins

import (
	"fmt"
	"testing"

	"github.com/mtots-lang/mtots/internal/hashmap"
	"github.com/mtots-lang/mtots/internal/value"
)

// testCtx is a minimal value.CallContext double for exercising native
// method bodies in isolation, without a full VM/GC/compiler pipeline.
type testCtx struct {
	tracked []value.Tracked
}

func (c *testCtx) RuntimeError(format string, args ...interface{}) error {
	return &testErr{msg: fmt.Sprintf(format, args...)}
}
func (c *testCtx) Call(callee value.Value, args []value.Value) (value.Value, error) {
	return value.Nil(), &testErr{msg: "Call not supported in testCtx"}
}
func (c *testCtx) Push(v value.Value) {}
func (c *testCtx) Pop() value.Value   { return value.Nil() }
func (c *testCtx) Track(o value.Tracked) {
	c.tracked = append(c.tracked, o)
}
func (c *testCtx) Intern(s string) *value.String { return &value.String{Value: s} }
func (c *testCtx) InternTuple(elems []value.Value) *value.Tuple {
	return &value.Tuple{Elements: elems}
}
func (c *testCtx) InternFrozenMap(keys, vals []value.Value) (*value.FrozenMap, error) {
	return &value.FrozenMap{Keys: keys, Vals: vals}, nil
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func TestListAppendPopMulGetSet(t *testing.T) {
	ctx := &testCtx{}
	list := value.NewList([]value.Value{value.Number(1), value.Number(2)})
	recv := value.Obj(list)

	if _, err := listAppend(ctx, []value.Value{recv, value.Number(3)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(list.Elements) != 3 || list.Elements[2].Num != 3 {
		t.Fatalf("append did not extend list: %+v", list.Elements)
	}

	v, err := listPop(ctx, []value.Value{recv})
	if err != nil || v.Num != 3 {
		t.Fatalf("pop: got %v, err %v", v, err)
	}
	if len(list.Elements) != 2 {
		t.Fatalf("pop did not shrink list")
	}

	if _, err := listPop(ctx, []value.Value{value.Obj(value.NewList(nil))}); err == nil {
		t.Fatal("expected error popping empty list")
	}

	mulResult, err := listMul(ctx, []value.Value{recv, value.Number(2)})
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	repeated := mulResult.ObjectOf().(*value.List)
	if len(repeated.Elements) != 4 {
		t.Fatalf("expected repeated list of length 4, got %d", len(repeated.Elements))
	}

	if _, err := listMul(ctx, []value.Value{recv, value.Number(-1)}); err == nil {
		t.Fatal("expected error for negative repeat count")
	}

	got, err := listGetItem(ctx, []value.Value{recv, value.Number(-1)})
	if err != nil || got.Num != 2 {
		t.Fatalf("negative index get: got %v, err %v", got, err)
	}

	if _, err := listGetItem(ctx, []value.Value{recv, value.Number(99)}); err == nil {
		t.Fatal("expected out-of-range error")
	}

	if _, err := listSetItem(ctx, []value.Value{recv, value.Number(0), value.Number(42)}); err != nil {
		t.Fatalf("setitem: %v", err)
	}
	if list.Elements[0].Num != 42 {
		t.Fatalf("setitem did not take effect")
	}
}

func TestListIterYieldsElementsThenStopIteration(t *testing.T) {
	ctx := &testCtx{}
	list := value.NewList([]value.Value{value.Number(10), value.Number(20)})
	iterVal, err := listIter(ctx, []value.Value{value.Obj(list)})
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	nc := iterVal.ObjectOf().(*value.NativeClosure)

	v1, _ := nc.Body(nil)
	v2, _ := nc.Body(nil)
	v3, _ := nc.Body(nil)
	if v1.Num != 10 || v2.Num != 20 {
		t.Fatalf("unexpected iteration values: %v, %v", v1, v2)
	}
	if v3.Kind != value.KSentinel || v3.Sent != value.SentinelStopIteration {
		t.Fatalf("expected StopIteration, got %v", v3)
	}
	if len(ctx.tracked) != 1 {
		t.Fatalf("expected iterator to be tracked once, got %d", len(ctx.tracked))
	}
}

func TestDictGetSetDeleteContainsRget(t *testing.T) {
	ctx := &testCtx{}
	m := &value.MapObj{Table: hashmap.NewTable()}
	recv := value.Obj(m)
	key := value.Str(ctx.Intern("a"))

	if _, err := dictSetItem(ctx, []value.Value{recv, key, value.Number(1)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := dictGetItem(ctx, []value.Value{recv, key})
	if err != nil || v.Num != 1 {
		t.Fatalf("get: got %v, err %v", v, err)
	}

	contains, err := dictContains(ctx, []value.Value{recv, key})
	if err != nil || !contains.Truthy() {
		t.Fatalf("contains: got %v, err %v", contains, err)
	}

	missing := value.Str(ctx.Intern("missing"))
	def, err := dictRget(ctx, []value.Value{recv, missing, value.Number(-1)})
	if err != nil || def.Num != -1 {
		t.Fatalf("rget with default: got %v, err %v", def, err)
	}
	if _, err := dictRget(ctx, []value.Value{recv, missing}); err == nil {
		t.Fatal("expected error for missing key with no default")
	}

	if _, err := dictDelete(ctx, []value.Value{recv, key}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := dictGetItem(ctx, []value.Value{recv, key}); err == nil {
		t.Fatal("expected error getting deleted key")
	}
}

func TestGlobalFrozenDictBuildsFromDict(t *testing.T) {
	ctx := &testCtx{}
	keyA := value.Str(ctx.Intern("a"))
	m := &value.MapObj{Table: hashmap.NewTable()}
	if _, err := m.Table.Set(keyA, value.Number(1)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := m.Table.Set(value.Str(ctx.Intern("b")), value.Number(2)); err != nil {
		t.Fatalf("set: %v", err)
	}

	out, err := globalFrozenDict(ctx, []value.Value{value.Nil(), value.Obj(m)})
	if err != nil {
		t.Fatalf("FrozenDict: %v", err)
	}
	fm := out.ObjectOf().(*value.FrozenMap)
	if len(fm.Keys) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(fm.Keys))
	}
	v, ok := fm.Get(keyA)
	if !ok || v.Num != 1 {
		t.Fatalf("expected a=1 in frozen map, got %v, ok %v", v, ok)
	}
}

func TestTupleMulInternsAndGetItem(t *testing.T) {
	ctx := &testCtx{}
	tup := &value.Tuple{Elements: []value.Value{value.Number(1), value.Number(2)}}
	recv := value.Obj(tup)

	out, err := tupleMul(ctx, []value.Value{recv, value.Number(2)})
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	repeated := out.ObjectOf().(*value.Tuple)
	if len(repeated.Elements) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(repeated.Elements))
	}

	v, err := tupleGetItem(ctx, []value.Value{recv, value.Number(1)})
	if err != nil || v.Num != 2 {
		t.Fatalf("getitem: got %v, err %v", v, err)
	}
}

func TestStringSliceStripReplaceJoinSplit(t *testing.T) {
	ctx := &testCtx{}
	s := value.Str(&value.String{Value: "  hello world  "})

	trimmed, err := strStrip(ctx, []value.Value{s})
	if err != nil || trimmed.Str.Value != "hello world" {
		t.Fatalf("strip: got %q, err %v", trimmed.Str.Value, err)
	}

	replaced, err := strReplace(ctx, []value.Value{s, value.Str(&value.String{Value: "world"}), value.Str(&value.String{Value: "there"})})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if replaced.Str.Value != "  hello there  " {
		t.Fatalf("replace: got %q", replaced.Str.Value)
	}

	sliceResult, err := strSlice(ctx, []value.Value{value.Str(&value.String{Value: "hello"}), value.Number(1), value.Nil()})
	if err != nil || sliceResult.Str.Value != "ello" {
		t.Fatalf("slice: got %v, err %v", sliceResult, err)
	}

	parts, err := strSplit(ctx, []value.Value{value.Str(&value.String{Value: "a,b,c"}), value.Str(&value.String{Value: ","})})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	list := parts.ObjectOf().(*value.List)
	if len(list.Elements) != 3 || list.Elements[1].Str.Value != "b" {
		t.Fatalf("split result wrong: %+v", list.Elements)
	}

	joined, err := strJoin(ctx, []value.Value{value.Str(&value.String{Value: "-"}), value.Obj(value.NewList([]value.Value{
		value.Str(&value.String{Value: "x"}), value.Str(&value.String{Value: "y"}),
	}))})
	if err != nil || joined.Str.Value != "x-y" {
		t.Fatalf("join: got %v, err %v", joined, err)
	}
}

func TestByteArrayGetSetLock(t *testing.T) {
	ctx := &testCtx{}
	buf := &value.Buffer{Bytes: []byte{10, 20, 30}}
	recv := value.Obj(buf)

	v, err := baGetItem(ctx, []value.Value{recv, value.Number(1)})
	if err != nil || v.Num != 20 {
		t.Fatalf("getitem: got %v, err %v", v, err)
	}

	if _, err := baSetItem(ctx, []value.Value{recv, value.Number(0), value.Number(99)}); err != nil {
		t.Fatalf("setitem: %v", err)
	}
	if buf.Bytes[0] != 99 {
		t.Fatalf("setitem did not apply")
	}

	if _, err := baLock(ctx, []value.Value{recv}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := baSetItem(ctx, []value.Value{recv, value.Number(0), value.Number(1)}); err == nil {
		t.Fatal("expected error mutating a locked ByteArray")
	}
}
