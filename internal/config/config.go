// Package config holds module-wide constants: version, file extension,
// and the environment variables the importer consults for search roots.
package config

// Version is the current Mtots version.
var Version = "0.1.0"

// SourceFileExt is the canonical extension for Mtots source files.
const SourceFileExt = ".mtots"

// Environment variables consulted by the module loader, in priority order.
const (
	EnvRoot       = "MTOTS_ROOT"       // project root
	EnvAuxRoot    = "MTOTS_AUX_ROOT"   // auxiliary root
	EnvLibRoot    = "MTOTS_LIB_ROOT"   // third-party libs
	EnvStdlibRoot = "MTOTS_STDLIB_ROOT" // standard library
)

// EnvGCTrace, when set to a non-empty value, makes the collector log a
// line to stderr on every collection cycle.
const EnvGCTrace = "MTOTS_GC_TRACE"

// EnvStressGC, when set to a non-empty value, forces a collection on
// every tracked allocation, right after the new object is registered.
// Mirrors the reference implementation's DEBUG_STRESS_GC.
const EnvStressGC = "MTOTS_STRESS_GC"

// EnvDisassemble, when set, makes the compiler print a disassembly of
// every chunk it produces to stderr.
const EnvDisassemble = "MTOTS_DISASSEMBLE"

// MaxIdentifierLength bounds scanner identifiers, matching the reference
// scanner's MAX_IDENTIFIER_LENGTH.
const MaxIdentifierLength = 128

// MaxElifChain bounds the number of chained `elif` clauses the compiler
// will accept in a single if-statement.
const MaxElifChain = 64

// FramesMax is the maximum number of nested call frames.
const FramesMax = 64

// StackMax is the size of the VM's value stack.
const StackMax = FramesMax * 256

// GCHeapGrowFactor is the multiplier applied to nextGC after a collection.
const GCHeapGrowFactor = 2
