package objection

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/objection-go/pkg/log"
	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// descriptorCodec 编解码嵌套类型：
//
//	version:u8 nameLen:u8 name modifiers:u32 structId:u32 fieldCount:u32 Field*
type descriptorCodec struct{}

func (descriptorCodec) kind() Kind { return KindNested }

func (descriptorCodec) Accept(t reflect.Type) bool {
	return t == descriptorType
}

func (descriptorCodec) Encode(w *Writer, v any, ctx Context) error {
	td, ok := v.(*TypeDescriptor)
	if !ok || td == nil {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "expect *TypeDescriptor, got "+typeString(v))
	}
	reg := ctx.reg
	reg.registerIfAbsent(td.class)

	if err := w.WriteUint8(td.Version()); err != nil {
		return err
	}
	if err := w.WriteName(td.Name()); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(td.Modifiers())); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(td.StructuralID())); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(td.fields))); err != nil {
		return err
	}
	inner := ctx.WithType(td)
	fc := reg.fieldCodec()
	for _, fd := range td.fields {
		if err := fc.Encode(w, fd, inner.WithField(fd)); err != nil {
			return err
		}
	}
	return nil
}

func (descriptorCodec) Decode(r *Reader, _ reflect.Type, ctx Context) (any, error) {
	reg := ctx.reg
	// 流中的类型版本仅作记录，字段集合以本地 Class 为准。
	if _, err := r.ReadUint8(); err != nil {
		return nil, err
	}
	name, err := r.ReadName()
	if err != nil {
		return nil, err
	}
	defer clear(name)

	class := reg.classByName(string(name))
	if class == nil {
		reg.Logger().RatedWarn(1, "reject unregistered type name", log.FieldType(string(name)))
		return nil, merr.WrapErrUnsafeOperation(string(name))
	}
	modifiers, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	structID, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int32(modifiers) != class.modifiers || int32(structID) != class.structID {
		reg.Logger().RatedWarn(1, "reject type with mismatched checksum",
			log.FieldType(class.name),
			zap.Int32("modifiers", int32(modifiers)),
			zap.Int32("structuralID", int32(structID)))
		return nil, merr.WrapErrChecksumMismatch(class.name, class.modifiers, int32(modifiers), class.structID, int32(structID))
	}

	td, err := describe(class, nil, reg)
	if err != nil {
		return nil, err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := reg.checkElements("fields of "+class.name, count); err != nil {
		return nil, err
	}
	inner := ctx.WithType(td)
	fc := reg.fieldCodec()
	for i := uint32(0); i < count; i++ {
		if _, err := fc.Decode(r, fieldDescriptorType, inner); err != nil {
			return nil, err
		}
	}
	return td, nil
}

// fieldCodec 编解码单个字段：
//
//	kindTag:u8 version:u8 nameLen:u8 name value
type fieldCodec struct{}

func (fieldCodec) Accept(t reflect.Type) bool {
	return t == fieldDescriptorType
}

func (fieldCodec) Encode(w *Writer, v any, ctx Context) error {
	fd, ok := v.(*FieldDescriptor)
	if !ok || fd == nil {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "expect *FieldDescriptor, got "+typeString(v))
	}
	if err := w.WriteUint8(uint8(fd.kind)); err != nil {
		return err
	}
	if err := w.WriteUint8(fd.Version()); err != nil {
		return err
	}
	if err := w.WriteName(fd.Name()); err != nil {
		return err
	}
	value, err := fd.Value()
	if err != nil {
		return err
	}
	if err := fd.codec.Encode(w, value, ctx.WithField(fd)); err != nil {
		return errors.Wrapf(err, "encode field %s.%s", fd.owner.Name(), fd.Name())
	}
	return nil
}

func (fieldCodec) Decode(r *Reader, _ reflect.Type, ctx Context) (any, error) {
	td := ctx.typ
	if td == nil {
		return nil, merr.WrapErrParameterInvalidMsg("field decoded outside of a type")
	}
	kind, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	name, err := r.ReadName()
	if err != nil {
		return nil, err
	}
	defer clear(name)

	fd := td.Field(string(name))
	if fd == nil {
		ctx.reg.Logger().RatedWarn(1, "reject unknown field", log.FieldType(td.Name()), log.FieldField(string(name)))
		return nil, merr.WrapErrUnknownField(td.Name(), string(name))
	}
	if fd.Version() != version || fd.kind != Kind(kind) {
		ctx.reg.Logger().RatedWarn(1, "reject field with mismatched version",
			log.FieldType(td.Name()),
			log.FieldField(fd.Name()),
			zap.Uint8("version", version),
			zap.Uint8("kind", kind))
		return nil, merr.WrapErrVersionMismatch(fd.Name(), fd.Version(), version, uint8(fd.kind), kind)
	}
	value, err := fd.codec.Decode(r, fd.typ, ctx.WithField(fd))
	if err != nil {
		return nil, errors.Wrapf(err, "decode field %s.%s", td.Name(), fd.Name())
	}
	fd.setValue(value)
	return fd, nil
}

// element 为数组、容器与 map 中单个元素的编解码方式。
// 没有直接 Codec 的元素类型以嵌套类型写入，解码后实例化为目标类型。
type element struct {
	typ    reflect.Type
	codec  Codec
	nested bool
}

func (r *Registry) element(t reflect.Type) (element, error) {
	codec, err := r.Resolve(t)
	if err == nil {
		return element{typ: t, codec: codec}, nil
	}
	if !errors.Is(err, merr.ErrNoCodec) {
		return element{}, err
	}
	if t.Kind() == reflect.Interface || r.classFor(t) != nil {
		return element{typ: t, codec: r.descriptorCodec(), nested: true}, nil
	}
	return element{}, err
}

func (e element) encode(w *Writer, v any, ctx Context) error {
	if e.nested {
		if isNil(v) {
			return merr.WrapErrInvalidValue(ctx.fieldName(), "nil element of nested type "+e.typ.String())
		}
		td, err := Describe(v, ctx.reg)
		if err != nil {
			return err
		}
		v = td
	}
	return e.codec.Encode(w, v, ctx)
}

func (e element) decode(r *Reader, ctx Context) (reflect.Value, error) {
	target := e.typ
	if e.nested {
		target = descriptorType
	}
	v, err := e.codec.Decode(r, target, ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	return coerce(v, e.typ)
}
