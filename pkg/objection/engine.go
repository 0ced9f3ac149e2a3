package objection

import (
	"io"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lk2023060901/objection-go/pkg/metrics"
	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// Encode 将 v 的对象图写入 w，返回的 Registry 已登记所有写出的类型名，
// 可直接用于解码。reg 为 nil 时新建一个。
func Encode(v any, w io.Writer, reg *Registry) (*Registry, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	wr := NewWriter(w)
	err := encode(v, wr, reg)
	observe(metrics.EncodeTotal, err)
	if err != nil {
		return reg, err
	}
	metrics.EncodedBytes.Observe(float64(wr.Count()))
	return reg, nil
}

func encode(v any, w *Writer, reg *Registry) error {
	td, err := Describe(v, reg)
	if err != nil {
		return err
	}
	codec, err := reg.Resolve(descriptorType)
	if err != nil {
		return err
	}
	return codec.Encode(w, td, NewContext(reg))
}

// Decode 从 r 读取一个嵌套类型，返回填充了字段值的 TypeDescriptor。
// 只有 reg 中登记过的类型名会被接受。
func Decode(r io.Reader, reg *Registry) (*TypeDescriptor, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	td, err := decode(NewReader(r), reg)
	observe(metrics.DecodeTotal, err)
	return td, err
}

func decode(r *Reader, reg *Registry) (*TypeDescriptor, error) {
	codec, err := reg.Resolve(descriptorType)
	if err != nil {
		return nil, err
	}
	v, err := codec.Decode(r, descriptorType, NewContext(reg))
	if err != nil {
		return nil, err
	}
	td, ok := v.(*TypeDescriptor)
	if !ok {
		return nil, merr.WrapErrInvalidValue("<root>", "decoded "+typeString(v))
	}
	return td, nil
}

// Materialize 通过无参构造器与字段 setter 构造实例。
// 流中缺失的字段保持零值，绑定了实例的描述符直接返回该实例。
func Materialize(td *TypeDescriptor) (any, error) {
	if td == nil {
		return nil, merr.WrapErrParameterInvalidMsg("materialize nil descriptor")
	}
	if td.instance != nil {
		return td.instance, nil
	}
	inst, err := td.class.New()
	if err != nil {
		return nil, err
	}
	for _, fd := range td.fields {
		if !fd.loaded {
			continue
		}
		v, err := coerce(fd.value, fd.DeclaredType())
		if err != nil {
			return nil, errors.Wrapf(err, "materialize field %s.%s", td.Name(), fd.Name())
		}
		if err := fd.slot.set(inst, v); err != nil {
			return nil, errors.Wrapf(err, "materialize field %s.%s", td.Name(), fd.Name())
		}
	}
	td.instance = inst
	return inst, nil
}

// Assign 将 v 写入 out 指向的变量，嵌套描述符会先被实例化。
func Assign(out any, v any) error {
	ov := reflect.ValueOf(out)
	if ov.Kind() != reflect.Pointer || ov.IsNil() {
		return merr.WrapErrParameterInvalidMsg("output must be a non-nil pointer, got %s", typeString(out))
	}
	cv, err := coerce(v, ov.Elem().Type())
	if err != nil {
		return err
	}
	ov.Elem().Set(cv)
	return nil
}

// coerce 将解码得到的值转换为可赋给 t 的 reflect.Value。
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	if td, ok := v.(*TypeDescriptor); ok && t != descriptorType {
		inst, err := Materialize(td)
		if err != nil {
			return reflect.Value{}, err
		}
		v = inst
	}
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	switch {
	case rt.AssignableTo(t):
		return rv, nil
	case rt.Kind() == reflect.Pointer && rt.Elem().AssignableTo(t):
		if rv.IsNil() {
			return reflect.Zero(t), nil
		}
		return rv.Elem(), nil
	case t.Kind() == reflect.Pointer && rt.AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(rv)
		return p, nil
	case rt.Kind() == t.Kind() && rt.ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, merr.WrapErrInvalidValue(t.String(), "cannot assign "+rt.String())
}

func observe(counter *prometheus.CounterVec, err error) {
	if err != nil {
		counter.WithLabelValues(metrics.FailLabel).Inc()
		metrics.FailuresTotal.WithLabelValues(merr.Name(err)).Inc()
		return
	}
	counter.WithLabelValues(metrics.SuccessLabel).Inc()
}
