package builtins

import "github.com/mtots-lang/mtots/internal/value"

// ClassSet names the built-in singleton classes Register populates.
// internal/vm constructs one from its own Class fields at startup;
// builtins never imports vm directly (vm imports builtins instead),
// so this indirection is how the two packages stay acyclic.
type ClassSet struct {
	String        *value.Class
	List          *value.Class
	Tuple         *value.Class
	Dict          *value.Class
	FrozenDict    *value.Class
	ByteArray     *value.Class
	ByteArrayView *value.Class
	Class         *value.Class
	File          *value.Class
}

// Register wires every native method table in this package into the
// VM's built-in singleton classes, mirroring how the reference's
// initVM calls each initXClass() in turn.
func Register(c ClassSet) {
	RegisterString(c.String)
	RegisterList(c.List)
	RegisterTuple(c.Tuple)
	RegisterDict(c.Dict)
	RegisterFrozenDict(c.FrozenDict)
	RegisterByteArray(c.ByteArray, c.ByteArrayView)
	RegisterClass(c.Class)
	RegisterFile(c.File)
}
