package objection

import (
	"math"
	"reflect"

	"golang.org/x/exp/constraints"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// Char 为单个 UTF-16 码元，按 2 字节写入。
type Char uint16

type number interface {
	constraints.Integer | constraints.Float
}

// numberCodec 按定宽大端序编解码一种数值 Kind，解码结果转换为请求的具体类型。
type numberCodec[N number] struct {
	rkind reflect.Kind
	width int
}

func newNumberCodec[N number](width int) numberCodec[N] {
	return numberCodec[N]{rkind: reflect.TypeFor[N]().Kind(), width: width}
}

func (c numberCodec[N]) kind() Kind { return KindPrimitive }

func (c numberCodec[N]) Accept(t reflect.Type) bool {
	return t.Kind() == c.rkind
}

func (c numberCodec[N]) Encode(w *Writer, v any, ctx Context) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != c.rkind {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "expect "+c.rkind.String()+", got "+typeString(v))
	}
	n := rv.Convert(reflect.TypeFor[N]()).Interface().(N)
	return w.writeBits(toBits(n), c.width)
}

func (c numberCodec[N]) Decode(r *Reader, t reflect.Type, _ Context) (any, error) {
	bits, err := r.readBits(c.width)
	if err != nil {
		return nil, err
	}
	n := fromBits[N](bits)
	if t == nil || t.Kind() != c.rkind {
		return n, nil
	}
	return reflect.ValueOf(n).Convert(t).Interface(), nil
}

func toBits[N number](n N) uint64 {
	switch x := any(n).(type) {
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	}
	return uint64(n)
}

// fromBits 是 toBits 的逆运算，有符号整数依靠截断转换恢复补码。
func fromBits[N number](bits uint64) N {
	var zero N
	switch any(zero).(type) {
	case float32:
		return N(math.Float32frombits(uint32(bits)))
	case float64:
		return N(math.Float64frombits(bits))
	}
	return N(bits)
}

type boolCodec struct{}

func (boolCodec) kind() Kind { return KindPrimitive }

func (boolCodec) Accept(t reflect.Type) bool {
	return t.Kind() == reflect.Bool
}

func (boolCodec) Encode(w *Writer, v any, ctx Context) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Bool {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "expect bool, got "+typeString(v))
	}
	return w.WriteBool(rv.Bool())
}

func (boolCodec) Decode(r *Reader, t reflect.Type, _ Context) (any, error) {
	b, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if t == nil || t.Kind() != reflect.Bool {
		return b, nil
	}
	return reflect.ValueOf(b).Convert(t).Interface(), nil
}

// stringCodec 写入 4 字节长度 + UTF-8 字节。
type stringCodec struct{}

func (stringCodec) kind() Kind { return KindString }

func (stringCodec) Accept(t reflect.Type) bool {
	return t.Kind() == reflect.String
}

func (stringCodec) Encode(w *Writer, v any, ctx Context) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.String {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "expect string, got "+typeString(v))
	}
	return w.WriteString(rv.String())
}

func (stringCodec) Decode(r *Reader, t reflect.Type, ctx Context) (any, error) {
	s, err := r.ReadString(ctx.reg.maxStringLength())
	if err != nil {
		return nil, err
	}
	if t == nil || t.Kind() != reflect.String {
		return s, nil
	}
	return reflect.ValueOf(s).Convert(t).Interface(), nil
}

func typeString(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
