package builtins

import (
	"encoding/binary"
	"math"

	"github.com/mtots-lang/mtots/internal/value"
)

func baByteOrder(b *value.Buffer) binary.ByteOrder {
	if b.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func baGetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	ba := args[0].ObjectOf().(*value.Buffer)
	index := int(args[1].Num)
	if index < 0 {
		index += len(ba.Bytes)
	}
	if index < 0 || index >= len(ba.Bytes) {
		return value.Nil(), ctx.RuntimeError("Index %d out of range of ByteArray (%d)", index, len(ba.Bytes))
	}
	return value.Number(float64(ba.Bytes[index])), nil
}

func baSetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	ba := args[0].ObjectOf().(*value.Buffer)
	if err := checkNotLocked(ctx, ba); err != nil {
		return value.Nil(), err
	}
	index := int(args[1].Num)
	if index < 0 {
		index += len(ba.Bytes)
	}
	if index < 0 || index >= len(ba.Bytes) {
		return value.Nil(), ctx.RuntimeError("Index %d out of range of ByteArray (%d)", index, len(ba.Bytes))
	}
	ba.Bytes[index] = byte(args[2].Num)
	return args[2], nil
}

func checkNotLocked(ctx value.CallContext, ba *value.Buffer) error {
	if ba.IsLocked {
		return ctx.RuntimeError("ByteArray is locked and cannot be modified")
	}
	return nil
}

func baLock(ctx value.CallContext, args []value.Value) (value.Value, error) {
	ba := args[0].ObjectOf().(*value.Buffer)
	ba.IsLocked = true
	return args[0], nil
}

func baIsLocked(ctx value.CallContext, args []value.Value) (value.Value, error) {
	ba := args[0].ObjectOf().(*value.Buffer)
	return value.Bool(ba.IsLocked), nil
}

// numWidth describes one fixed-width numeric encoding this ByteArray
// class exposes as addN/getN/setN triples (reference's per-width
// bufferAddI8/bufferGetI8/bufferSetI8 family in mtots_class_buffer.c).
type numWidth struct {
	size  int
	get   func(b []byte, order binary.ByteOrder) float64
	put   func(b []byte, order binary.ByteOrder, v float64)
}

var numWidths = map[string]numWidth{
	"I8": {1,
		func(b []byte, _ binary.ByteOrder) float64 { return float64(int8(b[0])) },
		func(b []byte, _ binary.ByteOrder, v float64) { b[0] = byte(int8(v)) }},
	"U8": {1,
		func(b []byte, _ binary.ByteOrder) float64 { return float64(b[0]) },
		func(b []byte, _ binary.ByteOrder, v float64) { b[0] = byte(uint8(v)) }},
	"I16": {2,
		func(b []byte, order binary.ByteOrder) float64 { return float64(int16(order.Uint16(b))) },
		func(b []byte, order binary.ByteOrder, v float64) { order.PutUint16(b, uint16(int16(v))) }},
	"U16": {2,
		func(b []byte, order binary.ByteOrder) float64 { return float64(order.Uint16(b)) },
		func(b []byte, order binary.ByteOrder, v float64) { order.PutUint16(b, uint16(v)) }},
	"I32": {4,
		func(b []byte, order binary.ByteOrder) float64 { return float64(int32(order.Uint32(b))) },
		func(b []byte, order binary.ByteOrder, v float64) { order.PutUint32(b, uint32(int32(v))) }},
	"U32": {4,
		func(b []byte, order binary.ByteOrder) float64 { return float64(order.Uint32(b)) },
		func(b []byte, order binary.ByteOrder, v float64) { order.PutUint32(b, uint32(v)) }},
	"F32": {4,
		func(b []byte, order binary.ByteOrder) float64 { return float64(math.Float32frombits(order.Uint32(b))) },
		func(b []byte, order binary.ByteOrder, v float64) { order.PutUint32(b, math.Float32bits(float32(v))) }},
	"F64": {8,
		func(b []byte, order binary.ByteOrder) float64 { return math.Float64frombits(order.Uint64(b)) },
		func(b []byte, order binary.ByteOrder, v float64) { order.PutUint64(b, math.Float64bits(v)) }},
}

func baAdd(w numWidth) func(value.CallContext, []value.Value) (value.Value, error) {
	return func(ctx value.CallContext, args []value.Value) (value.Value, error) {
		ba := args[0].ObjectOf().(*value.Buffer)
		if err := checkNotLocked(ctx, ba); err != nil {
			return value.Nil(), err
		}
		buf := make([]byte, w.size)
		w.put(buf, baByteOrder(ba), args[1].Num)
		ba.Bytes = append(ba.Bytes, buf...)
		return args[0], nil
	}
}

func baGet(w numWidth) func(value.CallContext, []value.Value) (value.Value, error) {
	return func(ctx value.CallContext, args []value.Value) (value.Value, error) {
		ba := args[0].ObjectOf().(*value.Buffer)
		index := int(args[1].Num)
		if index < 0 || index+w.size > len(ba.Bytes) {
			return value.Nil(), ctx.RuntimeError("Index %d out of range of ByteArray (%d)", index, len(ba.Bytes))
		}
		return value.Number(w.get(ba.Bytes[index:index+w.size], baByteOrder(ba))), nil
	}
}

func baSet(w numWidth) func(value.CallContext, []value.Value) (value.Value, error) {
	return func(ctx value.CallContext, args []value.Value) (value.Value, error) {
		ba := args[0].ObjectOf().(*value.Buffer)
		if err := checkNotLocked(ctx, ba); err != nil {
			return value.Nil(), err
		}
		index := int(args[1].Num)
		if index < 0 || index+w.size > len(ba.Bytes) {
			return value.Nil(), ctx.RuntimeError("Index %d out of range of ByteArray (%d)", index, len(ba.Bytes))
		}
		w.put(ba.Bytes[index:index+w.size], baByteOrder(ba), args[2].Num)
		return args[2], nil
	}
}

// RegisterByteArray populates the built-in ByteArray class's method
// table (reference initBufferClass) and gives ByteArrayView the
// read-only subset (getitem + the getN accessors, no mutation).
func RegisterByteArray(cls, viewCls *value.Class) {
	def := func(target *value.Class, name string, min, max int, patterns []value.TypePattern, body func(value.CallContext, []value.Value) (value.Value, error)) {
		target.Methods[name] = value.Fn(&value.CFunction{
			Name: name, MinArity: min, MaxArity: max, Params: patterns, Body: body,
		})
	}
	numPat := []value.TypePattern{{Kind: value.PatternNumber}}
	twoNumPat := []value.TypePattern{{Kind: value.PatternNumber}, {Kind: value.PatternNumber}}

	for _, target := range []*value.Class{cls, viewCls} {
		def(target, "__getitem__", 1, 1, numPat, baGetItem)
		for name, w := range numWidths {
			def(target, "get"+name, 1, 1, numPat, baGet(w))
		}
	}

	def(cls, "__setitem__", 2, 2, twoNumPat, baSetItem)
	def(cls, "lock", 0, 0, nil, baLock)
	def(cls, "isLocked", 0, 0, nil, baIsLocked)
	for name, w := range numWidths {
		def(cls, "add"+name, 1, 1, numPat, baAdd(w))
		def(cls, "set"+name, 2, 2, twoNumPat, baSet(w))
	}
}
