package vm

import "github.com/mtots-lang/mtots/internal/value"

// importModule implements OP_IMPORT's runtime half: resolve name
// against already-loaded modules first, then against registered
// native-module thunks, caching the result (reference addNativeModule /
// prepPrelude's module-cache lookup). Source-file module resolution
// (search roots, parsing, OP_IMPORT of a .mtots file) is layered on top
// of this by the module loader that owns the search-root configuration.
func (vm *VM) importModule(name string) bool {
	if mod, ok := vm.Globals[name]; ok {
		vm.push(value.Obj(mod))
		return true
	}
	thunk, ok := vm.NativeModuleThunks[name]
	if !ok {
		return vm.importSourceModule(name)
	}
	result, err := thunk.Body(vm, nil)
	if err != nil {
		return vm.raise("%s", err.Error())
	}
	mod, ok := result.ObjectOf().(*value.Module)
	if !ok {
		return vm.raise("native module '%s' did not produce a module", name)
	}
	mod.SyncMethodsFromFields()
	vm.Globals[name] = mod
	vm.push(value.Obj(mod))
	return true
}

// importSourceModule is OP_IMPORT's fallback once neither the module
// cache nor the native-thunk registry has name: ask the source-file
// loader to find and run a matching .mtots file.
func (vm *VM) importSourceModule(name string) bool {
	if vm.SourceLoader == nil {
		return vm.raise("no module named '%s'", name)
	}
	mod, err := vm.SourceLoader.Load(vm, name)
	if err != nil {
		return vm.raise("%s", err.Error())
	}
	vm.Globals[name] = mod
	vm.push(value.Obj(mod))
	return true
}
