package builtins

import (
	"io"
	"os"

	"github.com/mtots-lang/mtots/internal/value"
)

func fileHandle(ctx value.CallContext, f *value.File) (*os.File, error) {
	if !f.IsOpen {
		return nil, ctx.RuntimeError("File '%s' is closed", f.Name)
	}
	return f.Handle.(*os.File), nil
}

func fileWrite(ctx value.CallContext, args []value.Value) (value.Value, error) {
	f := args[0].ObjectOf().(*value.File)
	handle, err := fileHandle(ctx, f)
	if err != nil {
		return value.Nil(), err
	}
	n, werr := handle.Write([]byte(args[1].Str.Value))
	if werr != nil {
		return value.Nil(), ctx.RuntimeError("Error while trying to write to file: %s", werr.Error())
	}
	return value.Number(float64(n)), nil
}

// fileRead implements `read()` (entire remaining contents) and
// `read(n)` (an exact byte count, erroring on short read) per the
// reference's readAll/readBytes split in implFileRead.
func fileRead(ctx value.CallContext, args []value.Value) (value.Value, error) {
	f := args[0].ObjectOf().(*value.File)
	handle, err := fileHandle(ctx, f)
	if err != nil {
		return value.Nil(), err
	}
	if len(args) < 2 || args[1].IsNil() {
		data, rerr := io.ReadAll(handle)
		if rerr != nil {
			return value.Nil(), ctx.RuntimeError("Error while trying to read bytes")
		}
		return value.Str(ctx.Intern(string(data))), nil
	}
	n := int(args[1].Num)
	buf := make([]byte, n)
	read, rerr := io.ReadFull(handle, buf)
	if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
		return value.Nil(), ctx.RuntimeError("Error while trying to read bytes")
	}
	if read != n {
		return value.Nil(), ctx.RuntimeError("Tried to read %d bytes but got %d", n, read)
	}
	return value.Str(ctx.Intern(string(buf))), nil
}

func fileClose(ctx value.CallContext, args []value.Value) (value.Value, error) {
	f := args[0].ObjectOf().(*value.File)
	if !f.IsOpen {
		return value.Nil(), nil
	}
	handle := f.Handle.(*os.File)
	if err := handle.Close(); err != nil {
		return value.Nil(), ctx.RuntimeError("Error while closing file: %s", err.Error())
	}
	f.IsOpen = false
	return value.Nil(), nil
}

// RegisterFile populates the built-in File class's method table
// (reference initFileClass).
func RegisterFile(cls *value.Class) {
	def := func(name string, min, max int, patterns []value.TypePattern, body func(value.CallContext, []value.Value) (value.Value, error)) {
		cls.Methods[name] = value.Fn(&value.CFunction{
			Name: name, MinArity: min, MaxArity: max, Params: patterns, Body: body,
		})
	}
	def("write", 1, 1, []value.TypePattern{{Kind: value.PatternString}}, fileWrite)
	def("read", 0, 1, []value.TypePattern{{Kind: value.PatternNumber}}, fileRead)
	def("close", 0, 0, nil, fileClose)
}
