package objection

import (
	"reflect"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// Kind 为字段在流中的类别标记，解码时与本地字段比对。
type Kind uint8

const (
	KindPrimitive  Kind = 1
	KindString     Kind = 2
	KindArray      Kind = 3
	KindCollection Kind = 4
	KindMap        Kind = 5
	KindNested     Kind = 6
	KindCustom     Kind = 7
)

var kindNames = map[Kind]string{
	KindPrimitive:  "primitive",
	KindString:     "string",
	KindArray:      "array",
	KindCollection: "collection",
	KindMap:        "map",
	KindNested:     "nested",
	KindCustom:     "custom",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// FieldSpec 描述 Class 上的一个字段：名称、声明类型与读写函数。
type FieldSpec struct {
	name      string
	owner     reflect.Type
	typ       reflect.Type
	version   uint8
	transient bool
	get       func(inst any) any
	set       func(inst any, v reflect.Value) error
}

// FieldOption 配置 FieldSpec。
type FieldOption func(spec *FieldSpec)

// FieldOf 声明 T 上类型为 V 的字段。
func FieldOf[T, V any](name string, get func(*T) V, set func(*T, V), opts ...FieldOption) FieldSpec {
	spec := FieldSpec{
		name:  name,
		owner: reflect.TypeFor[T](),
		typ:   reflect.TypeFor[V](),
		get:   func(inst any) any { return get(inst.(*T)) },
	}
	spec.set = func(inst any, v reflect.Value) error {
		var val V
		if v.IsValid() {
			if raw := v.Interface(); raw != nil {
				typed, ok := raw.(V)
				if !ok {
					return merr.WrapErrInvalidValue(name, "expect "+spec.typ.String()+", got "+typeString(raw))
				}
				val = typed
			}
		}
		set(inst.(*T), val)
		return nil
	}
	for _, opt := range opts {
		opt(&spec)
	}
	return spec
}

// Transient 强制排除该字段。
func Transient() FieldOption {
	return func(spec *FieldSpec) {
		spec.transient = true
	}
}

// FieldVersion 设置字段版本，大于类型版本时该字段被忽略。
func FieldVersion(v uint8) FieldOption {
	return func(spec *FieldSpec) {
		spec.version = v
	}
}

func (s FieldSpec) Name() string       { return s.name }
func (s FieldSpec) Type() reflect.Type { return s.typ }
func (s FieldSpec) Version() uint8     { return s.version }
func (s FieldSpec) IsTransient() bool  { return s.transient }

// fieldSlot 为字段布局中的一项，access 将根实例映射到声明该字段的类型实例。
type fieldSlot struct {
	spec   *FieldSpec
	owner  *Class
	access func(inst any) any
}

func (s *fieldSlot) get(inst any) (any, error) {
	target, err := s.target(inst)
	if err != nil {
		return nil, err
	}
	return s.spec.get(target), nil
}

func (s *fieldSlot) set(inst any, v reflect.Value) error {
	target, err := s.target(inst)
	if err != nil {
		return err
	}
	return s.spec.set(target, v)
}

// target 返回声明该字段的实例。以指针嵌入且为 nil 的父类型返回 ErrInvalidValue。
func (s *fieldSlot) target(inst any) (any, error) {
	target := s.access(inst)
	if isNil(target) {
		return nil, merr.WrapErrInvalidValue(s.spec.name, "embedded parent "+s.owner.name+" is nil")
	}
	return target, nil
}

// FieldDescriptor 为 TypeDescriptor 中一个字段的元数据与值。
type FieldDescriptor struct {
	slot   *fieldSlot
	kind   Kind
	typ    reflect.Type
	codec  Codec
	owner  *TypeDescriptor
	value  any
	loaded bool
}

func (fd *FieldDescriptor) Name() string               { return fd.slot.spec.name }
func (fd *FieldDescriptor) Version() uint8             { return fd.slot.spec.version }
func (fd *FieldDescriptor) Kind() Kind                 { return fd.kind }
func (fd *FieldDescriptor) DeclaredType() reflect.Type { return fd.slot.spec.typ }
func (fd *FieldDescriptor) Owner() *TypeDescriptor     { return fd.owner }
func (fd *FieldDescriptor) DeclaringClass() *Class     { return fd.slot.owner }

// Type 返回字段在流中的有效类型：声明类型没有直接 Codec 时为 *TypeDescriptor。
func (fd *FieldDescriptor) Type() reflect.Type {
	return fd.typ
}

// Loaded 表示字段值是否已经读取或解码。
func (fd *FieldDescriptor) Loaded() bool {
	return fd.loaded
}

// Value 返回字段值。绑定实例时在首次访问读取一次，嵌套类型包装为 *TypeDescriptor。
func (fd *FieldDescriptor) Value() (any, error) {
	if fd.loaded || fd.owner == nil || fd.owner.instance == nil {
		return fd.value, nil
	}
	raw, err := fd.slot.get(fd.owner.instance)
	if err != nil {
		return nil, err
	}
	if fd.kind == KindNested {
		if isNil(raw) {
			return nil, merr.WrapErrInvalidValue(fd.Name(), "nil value of nested type "+fd.DeclaredType().String())
		}
		td, err := Describe(raw, fd.owner.reg)
		if err != nil {
			return nil, err
		}
		raw = td
	}
	fd.value = raw
	fd.loaded = true
	return fd.value, nil
}

// setValue 在解码时写入字段值。
func (fd *FieldDescriptor) setValue(v any) {
	fd.value = v
	fd.loaded = true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
