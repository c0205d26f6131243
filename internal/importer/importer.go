// Package importer layers source-file module resolution on top of
// internal/vm's native-module cache: given a dotted module name, it
// searches the configured roots for a matching `.mtots` file,
// compiles it as a fresh module, and runs it to populate that
// module's globals — mirroring the reference's mtots_import.c search
// order (project root, then aux, then third-party lib, then stdlib).
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mtots-lang/mtots/internal/config"
	"github.com/mtots-lang/mtots/internal/value"
)

// Interpreter is the subset of *vm.VM the importer needs: running a
// module's source and checking/populating its already-loaded cache.
// Defined here (rather than importing internal/vm) so vm and importer
// don't form a cycle — the *vm.VM passes itself to Load when OP_IMPORT
// falls back to a source file.
type Interpreter interface {
	Interpret(source string, module *value.Module) (value.Value, error)
	Loaded(name string) (*value.Module, bool)
}

// Loader resolves dotted module names to source files under a
// priority-ordered list of search roots (reference: MTOTS_ROOT,
// MTOTS_AUX_ROOT, MTOTS_LIB_ROOT, MTOTS_STDLIB_ROOT, in that order;
// the first root with a matching file wins).
type Loader struct {
	Roots []string
}

// NewLoader builds a Loader from the four MTOTS_*_ROOT environment
// variables, skipping any that are unset, plus the current directory
// as an implicit first root (so `mtots foo.mtots` can `import bar`
// from files sitting next to it).
func NewLoader() *Loader {
	l := &Loader{Roots: []string{"."}}
	for _, envVar := range []string{config.EnvRoot, config.EnvAuxRoot, config.EnvLibRoot, config.EnvStdlibRoot} {
		if root := os.Getenv(envVar); root != "" {
			l.Roots = append(l.Roots, root)
		}
	}
	return l
}

// Resolve turns a dotted module name ("foo.bar") into the first
// matching source file across the loader's roots ("foo/bar.mtots").
func (l *Loader) Resolve(name string) (string, error) {
	rel := filepath.Join(strings.Split(name, ".")...) + config.SourceFileExt
	for _, root := range l.Roots {
		candidate := filepath.Join(root, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no module named '%s'", name)
}

// Load resolves and runs name as a fresh module, the source-file
// counterpart to vm.VM's native-module-thunk cache path in
// OP_IMPORT. Callers should only reach this once the VM's own
// Globals/NativeModuleThunks lookup has already missed.
func (l *Loader) Load(interp Interpreter, name string) (*value.Module, error) {
	if mod, ok := interp.Loaded(name); ok {
		return mod, nil
	}
	path, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read module '%s': %s", name, err.Error())
	}
	mod := value.NewModule(name)
	if _, err := interp.Interpret(string(src), mod); err != nil {
		return nil, err
	}
	mod.SyncMethodsFromFields()
	return mod, nil
}
