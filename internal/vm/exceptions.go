package vm

// pushTrySnapshot records the state OP_TRY_START must be able to
// rewind to if the protected expression raises: which frame was
// active, where to resume (the catch-block offset), and the stack
// depth to restore (reference OP_TRY_START handling).
func (vm *VM) pushTrySnapshot(frame *callFrame, catchIP int) bool {
	if len(vm.trySnapshots) >= tryStackMax {
		panic("mtots: try snapshot overflow")
	}
	vm.trySnapshots = append(vm.trySnapshots, trySnapshot{
		frameCount: vm.frameCount,
		ip:         catchIP,
		stackTop:   vm.stackTop,
	})
	return true
}

// popTrySnapshot discards the innermost try snapshot on normal exit
// from the protected expression (reference OP_TRY_END handling).
func (vm *VM) popTrySnapshot() bool {
	if len(vm.trySnapshots) == 0 {
		panic("mtots: try snapshot underflow")
	}
	vm.trySnapshots = vm.trySnapshots[:len(vm.trySnapshots)-1]
	return true
}
