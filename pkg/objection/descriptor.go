package objection

import (
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

var (
	descriptorType      = reflect.TypeFor[*TypeDescriptor]()
	fieldDescriptorType = reflect.TypeFor[*FieldDescriptor]()
)

// TypeDescriptor 描述一个可序列化类型：名称、版本、结构校验值与有序字段。
// 绑定实例时用于编码，未绑定时由解码填充字段值。
type TypeDescriptor struct {
	class    *Class
	fields   []*FieldDescriptor
	byName   map[string]*FieldDescriptor
	instance any
	reg      *Registry
}

func (td *TypeDescriptor) Class() *Class                      { return td.class }
func (td *TypeDescriptor) Name() string                       { return td.class.name }
func (td *TypeDescriptor) Version() uint8                     { return td.class.version }
func (td *TypeDescriptor) Modifiers() int32                   { return td.class.modifiers }
func (td *TypeDescriptor) StructuralID() int32                { return td.class.structID }
func (td *TypeDescriptor) Fields() []*FieldDescriptor         { return td.fields }
func (td *TypeDescriptor) Instance() any                      { return td.instance }
func (td *TypeDescriptor) Field(name string) *FieldDescriptor { return td.byName[name] }

// Describe 为一个实例构造 TypeDescriptor。
// 实例需实现 Serializable，或其类型已通过 RegisterType 注册且声明了 Serialize()。
func Describe(v any, reg *Registry) (*TypeDescriptor, error) {
	if td, ok := v.(*TypeDescriptor); ok {
		return td, nil
	}
	if reg == nil {
		reg = NewRegistry()
	}
	class, inst, err := reg.bind(v)
	if err != nil {
		return nil, err
	}
	return describe(class, inst, reg)
}

// DescribeClass 构造一个未绑定实例的 TypeDescriptor。
func DescribeClass(class *Class, reg *Registry) (*TypeDescriptor, error) {
	if class == nil {
		return nil, merr.WrapErrParameterInvalidMsg("class is nil")
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return describe(class, nil, reg)
}

func describe(class *Class, inst any, reg *Registry) (*TypeDescriptor, error) {
	if !class.serializable {
		return nil, merr.WrapErrNotSerializable(class.name)
	}
	slots := reg.layouts.layout(class)
	td := &TypeDescriptor{
		class:    class,
		fields:   make([]*FieldDescriptor, 0, len(slots)),
		byName:   make(map[string]*FieldDescriptor, len(slots)),
		instance: inst,
		reg:      reg,
	}
	for _, slot := range slots {
		fd := &FieldDescriptor{
			slot:  slot,
			typ:   slot.spec.typ,
			owner: td,
		}
		codec, err := reg.Resolve(slot.spec.typ)
		switch {
		case err == nil:
			fd.codec = codec
			fd.kind = kindOf(codec)
		case errors.Is(err, merr.ErrNoCodec):
			fd.codec = reg.descriptorCodec()
			fd.kind = KindNested
			fd.typ = descriptorType
		default:
			return nil, errors.Wrapf(err, "describe field %s.%s", class.name, slot.spec.name)
		}
		td.fields = append(td.fields, fd)
		if _, ok := td.byName[fd.Name()]; !ok {
			td.byName[fd.Name()] = fd
		}
	}
	return td, nil
}
