package objection

import (
	"encoding/binary"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
	"github.com/lk2023060901/objection-go/pkg/util/typeutil"
)

// 类型修饰符位，写入流中并参与结构校验。
const (
	ModPublic    int32 = 0x0001
	ModPrivate   int32 = 0x0002
	ModProtected int32 = 0x0004
	ModStatic    int32 = 0x0008
	ModFinal     int32 = 0x0010
	ModInterface int32 = 0x0200
	ModAbstract  int32 = 0x0400
)

// Serializable 是可序列化能力标记：实现该接口的类型无需 Serialize() 选项。
type Serializable interface {
	ObjectionClass() *Class
}

var serializableType = reflect.TypeFor[Serializable]()

// Class 是一个 Go 类型的显式字段表，替代运行时反射遍历私有字段。
// Class 构造完成后只读，可在多个 Registry 间共享。
type Class struct {
	name         string
	goType       reflect.Type
	version      uint8
	modifiers    int32
	serializable bool
	fields       []FieldSpec
	parent       *Class
	up           func(any) any
	newFn        func() any
	structID     int32
}

// ClassOption 配置 Class。
type ClassOption func(c *Class) error

// NewClass 为 T 创建字段表，name 为写入流中的限定类型名。
func NewClass[T any](name string, opts ...ClassOption) (*Class, error) {
	goType := reflect.TypeFor[T]()
	c := &Class{
		name:      name,
		goType:    goType,
		modifiers: ModPublic,
		newFn:     func() any { return new(T) },
	}
	if name == "" {
		return nil, merr.WrapErrParameterInvalidMsg("class name of %s is empty", goType)
	}
	if len(name) > maxNameLength {
		return nil, merr.WrapErrParameterInvalidRange(0, maxNameLength, len(name), "class name too long")
	}
	if goType.Implements(serializableType) || reflect.PointerTo(goType).Implements(serializableType) {
		c.serializable = true
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrapf(err, "build class %s", name)
		}
	}

	names := typeutil.NewSet[string]()
	for _, spec := range c.fields {
		if spec.owner != goType {
			return nil, merr.WrapErrParameterInvalid(goType.String(), spec.owner.String(), "field "+spec.name+" declared on another type")
		}
		if spec.name == "" || len(spec.name) > maxNameLength {
			return nil, merr.WrapErrParameterInvalidRange(1, maxNameLength, len(spec.name), "field name of "+name)
		}
		if names.Contain(spec.name) {
			return nil, merr.WrapErrParameterInvalidMsg("duplicate field %s in class %s", spec.name, name)
		}
		names.Insert(spec.name)
	}
	c.structID = structuralID(c.name, c.goType, c.modifiers)
	return c, nil
}

// MustClass 与 NewClass 相同，失败时 panic，适用于包级变量初始化。
func MustClass[T any](name string, opts ...ClassOption) *Class {
	c, err := NewClass[T](name, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Serialize 显式声明该类型可序列化。
func Serialize() ClassOption {
	return func(c *Class) error {
		c.serializable = true
		return nil
	}
}

// Version 设置类型版本，版本号大于该值的字段不参与序列化。
func Version(v uint8) ClassOption {
	return func(c *Class) error {
		c.version = v
		return nil
	}
}

// Modifiers 覆盖修饰符位。
func Modifiers(m int32) ClassOption {
	return func(c *Class) error {
		c.modifiers = m
		return nil
	}
}

// Abstract 标记为抽象类型：没有无参构造器，无法被实例化。
func Abstract() ClassOption {
	return func(c *Class) error {
		c.modifiers |= ModAbstract
		c.newFn = nil
		return nil
	}
}

// Constructor 替换默认的 new(T) 构造器，fn 必须返回 *T。
func Constructor(fn func() any) ClassOption {
	return func(c *Class) error {
		c.newFn = fn
		return nil
	}
}

// Fields 追加字段，顺序即写入顺序。
func Fields(specs ...FieldSpec) ClassOption {
	return func(c *Class) error {
		c.fields = append(c.fields, specs...)
		return nil
	}
}

// Extends 声明父类型。up 返回子类型实例中嵌入的父类型实例。
// 父类型以指针嵌入时需由 Constructor 分配，否则编码与实例化返回 ErrInvalidValue。
func Extends[T, P any](parent *Class, up func(*T) *P) ClassOption {
	return func(c *Class) error {
		if parent == nil || up == nil {
			return merr.WrapErrParameterInvalidMsg("parent class or accessor is nil")
		}
		if c.goType != reflect.TypeFor[T]() {
			return merr.WrapErrParameterInvalid(c.goType.String(), reflect.TypeFor[T]().String(), "extends accessor receiver")
		}
		if parent.goType != reflect.TypeFor[P]() {
			return merr.WrapErrParameterInvalid(parent.goType.String(), reflect.TypeFor[P]().String(), "extends accessor result")
		}
		for p := parent; p != nil; p = p.parent {
			if p == c {
				return merr.WrapErrParameterInvalidMsg("class %s extends itself", c.name)
			}
		}
		c.parent = parent
		c.up = func(inst any) any { return up(inst.(*T)) }
		return nil
	}
}

func (c *Class) Name() string                { return c.name }
func (c *Class) GoType() reflect.Type        { return c.goType }
func (c *Class) Version() uint8              { return c.version }
func (c *Class) Modifiers() int32            { return c.modifiers }
func (c *Class) Parent() *Class              { return c.parent }
func (c *Class) IsSerializable() bool        { return c.serializable }
func (c *Class) StructuralID() int32         { return c.structID }
func (c *Class) IsAbstract() bool            { return c.modifiers&ModAbstract != 0 }
func (c *Class) HasDefaultConstructor() bool { return c.newFn != nil }

// New 通过无参构造器创建 *T。
func (c *Class) New() (any, error) {
	if c.newFn == nil {
		return nil, merr.WrapErrNoDefaultConstructor(c.name)
	}
	return c.newFn(), nil
}

// structuralID 由类型名、Go 类型标识与修饰符计算，仅用于检测两端定义漂移。
func structuralID(name string, goType reflect.Type, modifiers int32) int32 {
	d := xxhash.New()
	_, _ = d.WriteString(name)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(goType.PkgPath())
	_, _ = d.WriteString(".")
	_, _ = d.WriteString(goType.String())
	var mod [4]byte
	binary.BigEndian.PutUint32(mod[:], uint32(modifiers))
	_, _ = d.Write(mod[:])
	return int32(uint32(d.Sum64()))
}
