package vm

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtots-lang/mtots/internal/value"
)

// runAndCapture interprets source in a fresh VM and fresh __main__
// module, returning whatever the script wrote to stdout via print().
func runAndCapture(t *testing.T, source string) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	oldStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = oldStdout }()

	outCh := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		outCh <- buf.String()
	}()

	interp := New()
	mod := value.NewModule("__main__")
	mod.IsMain = true
	_, runErr := interp.Interpret(source, mod)

	w.Close()
	out := <-outCh
	require.NoError(t, runErr, "output so far: %s", out)
	return out
}

func TestClosuresAndUpvalues(t *testing.T) {
	out := runAndCapture(t, `
def make():
  var i = 0
  def inc():
    i = i + 1
    return i
  return inc
final f = make()
print(f()); print(f()); print(f())
`)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestClassDispatchAndInheritance(t *testing.T) {
	out := runAndCapture(t, `
class A:
  def __init__(x): this.x = x
  def describe(): return "A:" + str(this.x)
class B(A):
  def describe(): return "B:" + str(this.x)
print(A(1).describe()); print(B(2).describe())
`)
	require.Equal(t, "A:1\nB:2\n", out)
}

func TestTupleInterning(t *testing.T) {
	out := runAndCapture(t, `
final a = (1, 2, 3); final b = (1, 2, 3)
print(a is b)
`)
	require.Equal(t, "true\n", out)
}

func TestFrozenDictInterningIsOrderIndependent(t *testing.T) {
	out := runAndCapture(t, `
final a = frozendict({"x": 1, "y": 2})
final b = frozendict({"y": 2, "x": 1})
print(a is b); print(a in FrozenDict)
`)
	require.Equal(t, "true\ntrue\n", out)
}

func TestIterationProtocolAndRange(t *testing.T) {
	out := runAndCapture(t, `
final xs = []
for i in range(3): xs.append(i * i)
print(xs)
`)
	require.Equal(t, "[0, 1, 4]\n", out)
}

func TestTryRaiseRecovery(t *testing.T) {
	out := runAndCapture(t, `
final v = try raise "boom" else "caught"
print(v)
`)
	require.Equal(t, "caught\n", out)
}

func TestIndentationErrorSurfacesAtCompileTime(t *testing.T) {
	interp := New()
	mod := value.NewModule("__main__")
	_, err := interp.Interpret("def f():\n   return 1\n", mod)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple of 2")
}

func TestInOnClassPerformsIsinstance(t *testing.T) {
	out := runAndCapture(t, `
print(1 in Number); print("s" in Number)
`)
	require.Equal(t, "true\nfalse\n", out)
}

func TestGCModuleStats(t *testing.T) {
	interp := New()
	mod := value.NewModule("__main__")
	mod.IsMain = true
	_, err := interp.Interpret(`
import gc
final s = gc.stats()
print(s["count"] >= 0)
`, mod)
	require.NoError(t, err)
}

func TestRuntimeErrorUnwindsToOutermostCaller(t *testing.T) {
	interp := New()
	mod := value.NewModule("__main__")
	_, err := interp.Interpret(`
final x = nil
x.field
`, mod)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "[line"))
}
