package vm

import (
	"github.com/dustin/go-humanize"

	"github.com/mtots-lang/mtots/internal/hashmap"
	"github.com/mtots-lang/mtots/internal/value"
)

// registerNativeModules wires the native-module contract spec §6
// describes (a name resolves to a Go-built module instead of a
// `.mtots` file) onto something concrete: a `gc` module exposing the
// collector's own counters, matching how every retrieved scripting
// engine ships at least one native introspection module alongside its
// source-file importer.
func (vm *VM) registerNativeModules() {
	vm.NativeModuleThunks["gc"] = &value.CFunction{
		Name: "gc", MinArity: 0, MaxArity: 0,
		Body: func(ctx value.CallContext, args []value.Value) (value.Value, error) {
			mod := value.NewModule("gc")
			mod.Fields["stats"] = value.Fn(&value.CFunction{
				Name: "stats", MinArity: 0, MaxArity: 0,
				Body: vm.gcStats,
			})
			return value.Obj(mod), nil
		},
	}
}

// gcStats reports the collector's live counters as a dict, formatting
// byte counts with go-humanize the same way internal/gc's trace lines
// do (reference: no analogous builtin, supplemented per SPEC_FULL.md's
// heap-size-reporting section).
func (vm *VM) gcStats(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := &value.MapObj{Table: hashmap.NewTable()}
	entries := []struct {
		key string
		val value.Value
	}{
		{"count", value.Number(float64(vm.GC.Count()))},
		{"bytesAllocated", value.Number(float64(vm.GC.BytesAllocated()))},
		{"nextGC", value.Number(float64(vm.GC.NextGC()))},
		{"bytesAllocatedHuman", value.Str(ctx.Intern(humanize.Bytes(vm.GC.BytesAllocated())))},
		{"nextGCHuman", value.Str(ctx.Intern(humanize.Bytes(vm.GC.NextGC())))},
	}
	for _, e := range entries {
		if _, err := m.Table.Set(value.Str(ctx.Intern(e.key)), e.val); err != nil {
			return value.Nil(), ctx.RuntimeError("%s", err.Error())
		}
	}
	ctx.Track(m)
	return value.Obj(m), nil
}
