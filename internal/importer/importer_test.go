package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtots-lang/mtots/internal/value"
)

// fakeInterpreter stands in for *vm.VM: it just records the source it
// was asked to run and sets a single field into the module, enough to
// exercise Loader.Load's resolve-read-run-sync sequence without a real
// compiler/VM.
type fakeInterpreter struct {
	loaded map[string]*value.Module
	ran    []string
}

func (f *fakeInterpreter) Loaded(name string) (*value.Module, bool) {
	m, ok := f.loaded[name]
	return m, ok
}

func (f *fakeInterpreter) Interpret(source string, module *value.Module) (value.Value, error) {
	f.ran = append(f.ran, source)
	module.Fields["loadedSource"] = value.Str(&value.String{Value: source})
	return value.Nil(), nil
}

func TestResolveFindsFileAcrossRoots(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "mod.mtots"), []byte("final x = 1\n"), 0644))

	l := &Loader{Roots: []string{dir}}
	path, err := l.Resolve("pkg.mod")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(sub, "mod.mtots"), path)
}

func TestResolveMissingModuleErrors(t *testing.T) {
	l := &Loader{Roots: []string{t.TempDir()}}
	_, err := l.Resolve("nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no module named")
}

func TestLoadRunsResolvedSourceOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.mtots"), []byte("final x = 1\n"), 0644))
	l := &Loader{Roots: []string{dir}}
	interp := &fakeInterpreter{loaded: map[string]*value.Module{}}

	mod, err := l.Load(interp, "util")
	require.NoError(t, err)
	require.Equal(t, "util", mod.Name)
	require.Equal(t, "final x = 1\n", mod.Fields["loadedSource"].Str.Value)
	require.Len(t, interp.ran, 1)
}

func TestLoadReturnsCachedModuleWithoutReinterpreting(t *testing.T) {
	interp := &fakeInterpreter{loaded: map[string]*value.Module{
		"cached": value.NewModule("cached"),
	}}
	l := &Loader{Roots: []string{t.TempDir()}}

	mod, err := l.Load(interp, "cached")
	require.NoError(t, err)
	require.Equal(t, "cached", mod.Name)
	require.Empty(t, interp.ran)
}

func TestSeedPreludeDoesNotClobberExistingBinding(t *testing.T) {
	fields := map[string]value.Value{
		"sorted": value.Number(42),
	}
	SeedPrelude(fields)
	require.Equal(t, value.Number(42), fields["sorted"])
	for _, name := range []string{"list", "tuple", "dict", "set"} {
		require.Contains(t, fields, name)
	}
}

func TestPreludeSortedTupleSet(t *testing.T) {
	ctx := &fakePreludeCtx{}
	elems := []value.Value{value.Number(3), value.Number(1), value.Number(2)}
	list := value.NewList(elems)

	sorted, err := preludeSorted(ctx, []value.Value{value.Nil(), value.Obj(list)})
	require.NoError(t, err)
	out := sorted.ObjectOf().(*value.List)
	require.Equal(t, []float64{1, 2, 3}, numsOf(out.Elements))

	asTuple, err := preludeTuple(ctx, []value.Value{value.Nil(), value.Obj(list)})
	require.NoError(t, err)
	require.Equal(t, 3, len(asTuple.ObjectOf().(*value.Tuple).Elements))

	d, err := preludeSet(ctx, []value.Value{value.Nil(), value.Obj(list)})
	require.NoError(t, err)
	set := d.ObjectOf().(*value.MapObj)
	require.Equal(t, 3, set.Table.Len())
}

func numsOf(vs []value.Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Num
	}
	return out
}

type fakePreludeCtx struct{}

func (c *fakePreludeCtx) RuntimeError(format string, args ...interface{}) error {
	return fgRuntimeError(format)
}
func (c *fakePreludeCtx) Call(callee value.Value, args []value.Value) (value.Value, error) {
	return value.Nil(), fgRuntimeError("unsupported")
}
func (c *fakePreludeCtx) Push(v value.Value) {}
func (c *fakePreludeCtx) Pop() value.Value   { return value.Nil() }
func (c *fakePreludeCtx) Track(o value.Tracked) {}
func (c *fakePreludeCtx) Intern(s string) *value.String { return &value.String{Value: s} }
func (c *fakePreludeCtx) InternTuple(elems []value.Value) *value.Tuple {
	return &value.Tuple{Elements: elems}
}
func (c *fakePreludeCtx) InternFrozenMap(keys, vals []value.Value) (*value.FrozenMap, error) {
	return &value.FrozenMap{Keys: keys, Vals: vals}, nil
}
