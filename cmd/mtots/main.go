// Command mtots is the Mtots CLI: a REPL when run with no arguments,
// a script runner when given a file path, and a one-liner evaluator
// under -e, mirroring funxy's hand-rolled os.Args dispatch (no flag
// parsing library) in cmd/funxy/main.go.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/mtots-lang/mtots/internal/config"
	"github.com/mtots-lang/mtots/internal/value"
	"github.com/mtots-lang/mtots/internal/vm"
)

// Exit codes per spec §6: 0 success, 1 runtime error, 2 stack
// over/underflow or other recovered internal panic.
const (
	exitSuccess = 0
	exitError   = 1
	exitPanic   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "mtots: internal error: %v\n", r)
			code = exitPanic
		}
	}()

	if len(args) >= 1 && (args[0] == "-v" || args[0] == "--version") {
		fmt.Println("mtots " + config.Version)
		return exitSuccess
	}
	if len(args) >= 2 && args[0] == "-e" {
		return runSource(args[1], "__main__")
	}
	if len(args) >= 1 {
		return runFile(args[0])
	}
	return runREPL()
}

func runFile(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mtots: %s\n", err)
		return exitError
	}
	return runSource(string(src), path)
}

func runSource(src, moduleName string) int {
	interp := vm.New()
	mod := value.NewModule(moduleName)
	mod.IsMain = true
	if _, err := interp.Interpret(src, mod); err != nil {
		fmt.Fprintf(os.Stderr, "%s", err)
		return exitError
	}
	return exitSuccess
}

// runREPL reads one logical statement at a time, keeping a single
// persistent __main__ module across the whole session (spec §6). A
// line ending in ':' opens an indented block, so the REPL keeps
// reading continuation lines (themselves indented, terminated by a
// blank line) before handing the accumulated source to the compiler —
// the same multi-line-block behavior every indentation-sensitive REPL
// in this language's lineage needs.
func runREPL() int {
	interp := vm.New()
	mod := value.NewModule("__main__")
	mod.IsMain = true

	colorize := isatty.IsTerminal(os.Stdin.Fd())
	prompt, contPrompt := ">>> ", "... "
	if !colorize {
		prompt, contPrompt = "", ""
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(prompt)
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		var block strings.Builder
		block.WriteString(line)
		for strings.HasSuffix(strings.TrimRight(line, " \t"), ":") {
			fmt.Print(contPrompt)
			if !scanner.Scan() {
				break
			}
			line = scanner.Text()
			if line == "" {
				break
			}
			block.WriteByte('\n')
			block.WriteString(line)
		}
		if strings.TrimSpace(block.String()) == "" {
			continue
		}
		result, err := interp.Interpret(block.String(), mod)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s", err)
			continue
		}
		if !result.IsNil() {
			fmt.Println(result.Inspect())
		}
	}
	return exitSuccess
}
