package vm

import "github.com/mtots-lang/mtots/internal/value"

// execGetField implements OP_GET_FIELD: pop the receiver, look up
// name on it, push the result. Looking up a method name that isn't
// also an instance field returns the raw, unbound Closure/CFunction
// value from the class's method table — callers that want the
// receiver bound automatically go through OP_INVOKE instead (reference
// run()'s OP_GET_PROPERTY case).
func (vm *VM) execGetField(frame *callFrame) bool {
	name := vm.readString(frame)
	receiver := vm.pop()

	switch o := receiver.ObjectOf().(type) {
	case *value.Instance:
		if v, ok := o.Fields[name.Value]; ok {
			vm.push(v)
			return true
		}
		if v, ok := o.Class.Methods[name.Value]; ok {
			vm.push(v)
			return true
		}
		return vm.raise("%s instance has no field '%s'", o.Class.Name, name.Value)
	case *value.Module:
		if v, ok := o.Fields[name.Value]; ok {
			vm.push(v)
			return true
		}
		return vm.raise("module '%s' has no field '%s'", o.Name, name.Value)
	case *value.Class:
		if v, ok := o.Statics[name.Value]; ok {
			vm.push(v)
			return true
		}
		return vm.raise("class '%s' has no static field '%s'", o.Name, name.Value)
	case *value.NativeOpaque:
		if o.Descriptor.GetField != nil {
			if v, ok := o.Descriptor.GetField(o, name.Value); ok {
				vm.push(v)
				return true
			}
		}
		return vm.raise("%s has no field '%s'", o.Descriptor.Name, name.Value)
	}
	return vm.raise("%s values have no fields", receiver.TypeName())
}

// execSetField implements OP_SET_FIELD: pop the value then the
// receiver, assign, and push the value back (field assignment is an
// expression yielding the assigned value).
func (vm *VM) execSetField(frame *callFrame) bool {
	name := vm.readString(frame)
	val := vm.pop()
	receiver := vm.pop()

	switch o := receiver.ObjectOf().(type) {
	case *value.Instance:
		o.Fields[name.Value] = val
		vm.push(val)
		return true
	case *value.Module:
		o.Fields[name.Value] = val
		vm.push(val)
		return true
	case *value.NativeOpaque:
		if o.Descriptor.SetField != nil && o.Descriptor.SetField(o, name.Value, val) {
			vm.push(val)
			return true
		}
		return vm.raise("%s has no settable field '%s'", o.Descriptor.Name, name.Value)
	}
	return vm.raise("%s values have no settable fields", receiver.TypeName())
}
