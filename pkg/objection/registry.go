package objection

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/lk2023060901/objection-go/pkg/log"
	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

const (
	defaultMaxElements     = 1 << 24
	defaultMaxStringLength = 16 << 20
)

// builtinNames 为容器与 map 元素类型预置的名称。
var builtinNames = []struct {
	name string
	typ  reflect.Type
}{
	{"int8", reflect.TypeFor[int8]()},
	{"uint8", reflect.TypeFor[uint8]()},
	{"bool", reflect.TypeFor[bool]()},
	{"int16", reflect.TypeFor[int16]()},
	{"uint16", reflect.TypeFor[uint16]()},
	{"char", reflect.TypeFor[Char]()},
	{"int32", reflect.TypeFor[int32]()},
	{"uint32", reflect.TypeFor[uint32]()},
	{"int64", reflect.TypeFor[int64]()},
	{"uint64", reflect.TypeFor[uint64]()},
	{"int", reflect.TypeFor[int]()},
	{"uint", reflect.TypeFor[uint]()},
	{"float32", reflect.TypeFor[float32]()},
	{"float64", reflect.TypeFor[float64]()},
	{"string", reflect.TypeFor[string]()},
}

// Registry 保存有序的 Codec 列表与解码允许的类型名表。
//
// 读操作可以并发执行，注册操作互斥。解码只会实例化名表中的类型，
// 未注册的类型名一律拒绝。
type Registry struct {
	log.Binder

	mu        sync.RWMutex
	codecs    []Codec
	names     map[string]reflect.Type
	typeNames map[reflect.Type]string
	classes   map[string]*Class
	types     map[reflect.Type]*Class

	layouts   *LayoutCache
	maxElems  int
	maxStrLen int

	nested descriptorCodec
	field  fieldCodec
}

// RegistryOption 配置 Registry。
type RegistryOption func(r *Registry)

// WithMaxElements 限制解码时单个数组、容器、map 或类型的元素个数。
func WithMaxElements(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxElems = n
		}
	}
}

// WithMaxStringLength 限制解码时单个字符串的字节数。
func WithMaxStringLength(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxStrLen = n
		}
	}
}

// WithLayoutCache 指定字段布局缓存，默认使用进程级共享缓存。
func WithLayoutCache(c *LayoutCache) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.layouts = c
		}
	}
}

// NewRegistry 创建安装了默认 Codec 的 Registry。
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		names:     make(map[string]reflect.Type, len(builtinNames)),
		typeNames: make(map[reflect.Type]string, len(builtinNames)),
		classes:   make(map[string]*Class),
		types:     make(map[reflect.Type]*Class),
		layouts:   defaultLayoutCache,
		maxElems:  defaultMaxElements,
		maxStrLen: defaultMaxStringLength,
	}
	r.codecs = []Codec{
		newNumberCodec[int8](1),
		newNumberCodec[uint8](1),
		boolCodec{},
		newNumberCodec[int16](2),
		newNumberCodec[uint16](2),
		newNumberCodec[int32](4),
		newNumberCodec[uint32](4),
		newNumberCodec[int64](8),
		newNumberCodec[uint64](8),
		newNumberCodec[int](8),
		newNumberCodec[uint](8),
		newNumberCodec[float32](4),
		newNumberCodec[float64](8),
		r.nested,
		r.field,
		stringCodec{},
		collectionCodec{},
		mapCodec{},
	}
	for _, b := range builtinNames {
		r.names[b.name] = b.typ
		r.typeNames[b.typ] = b.name
	}
	for _, opt := range opts {
		opt(r)
	}
	r.SetLogger(log.With(log.FieldModule("objection")).WithRateGroup("objection.reject", 1, 30))
	return r
}

// Register 将 Codec 追加到列表末尾。
func (r *Registry) Register(codecs ...Codec) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs = append(r.codecs, codecs...)
	return r
}

// RegisterFirst 将 Codec 插入到所有已注册 Codec 之前，用于覆盖内置处理。
func (r *Registry) RegisterFirst(codecs ...Codec) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs = append(append(make([]Codec, 0, len(codecs)+len(r.codecs)), codecs...), r.codecs...)
	return r
}

// Codecs 返回当前 Codec 列表的副本。
func (r *Registry) Codecs() []Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Codec(nil), r.codecs...)
}

// RegisterType 将 Class 加入解码允许的类型名表。同名 Class 被替换。
func (r *Registry) RegisterType(classes ...*Class) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		if c == nil {
			continue
		}
		r.registerLocked(c)
	}
	return r
}

func (r *Registry) registerLocked(c *Class) {
	if old, ok := r.classes[c.name]; ok && old != c {
		r.Logger().Warn("replace registered type", log.FieldType(c.name),
			zap.Stringer("old", old.goType), zap.Stringer("new", c.goType))
		delete(r.types, old.goType)
	}
	r.classes[c.name] = c
	r.types[c.goType] = c
	r.Logger().Debug("register type", log.FieldType(c.name), zap.Int32("structuralID", c.structID))
}

// registerIfAbsent 在编码写出嵌套类型时登记其名称，使同一 Registry 可以解码自身的输出。
func (r *Registry) registerIfAbsent(c *Class) {
	r.mu.RLock()
	_, ok := r.classes[c.name]
	r.mu.RUnlock()
	if ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[c.name]; !ok {
		r.registerLocked(c)
	}
}

// RegisterName 为容器与 map 元素类型登记名称。
func (r *Registry) RegisterName(name string, t reflect.Type) error {
	if name == "" || len(name) > maxNameLength {
		return merr.WrapErrParameterInvalidRange(1, maxNameLength, len(name), "type name")
	}
	if t == nil {
		return merr.WrapErrParameterInvalidMsg("type of %s is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[name] = t
	r.typeNames[t] = name
	return nil
}

// Class 按类型名查找已注册的 Class。
func (r *Registry) Class(name string) *Class {
	return r.classByName(name)
}

// Cache 返回字段布局缓存。
func (r *Registry) Cache() *LayoutCache {
	return r.layouts
}

// Resolve 返回第一个接受 t 的 Codec。一维数组或切片在没有匹配时使用内置数组 Codec。
func (r *Registry) Resolve(t reflect.Type) (Codec, error) {
	if t == nil {
		return nil, merr.WrapErrParameterInvalidMsg("resolve codec for nil type")
	}
	r.mu.RLock()
	for _, c := range r.codecs {
		if c.Accept(t) {
			r.mu.RUnlock()
			return c, nil
		}
	}
	r.mu.RUnlock()

	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		if ek := t.Elem().Kind(); ek == reflect.Slice || ek == reflect.Array {
			return nil, merr.WrapErrUnsupported(t.String(), "multi-dimensional array")
		}
		return arrayCodec{typ: t}, nil
	}
	return nil, merr.WrapErrNoCodec(t.String())
}

// bind 找到 v 对应的 Class 并返回可通过字段表访问的 *T 实例。
func (r *Registry) bind(v any) (*Class, any, error) {
	if isNil(v) {
		return nil, nil, merr.WrapErrInvalidValue("<root>", "nil value")
	}
	t := reflect.TypeOf(v)
	class := r.classFor(t)
	if class == nil {
		return nil, nil, merr.WrapErrNotSerializable(t.String())
	}
	switch t {
	case reflect.PointerTo(class.goType):
		return class, v, nil
	case class.goType:
		p := reflect.New(class.goType)
		p.Elem().Set(reflect.ValueOf(v))
		return class, p.Interface(), nil
	}
	return nil, nil, merr.WrapErrNotSerializable(t.String(), "class "+class.name+" is declared for "+class.goType.String())
}

// classFor 查找 t 或 t 指向的类型所对应的 Class，依次检查注册表与 Serializable 标记。
func (r *Registry) classFor(t reflect.Type) *Class {
	if t == nil || t.Kind() == reflect.Interface {
		return nil
	}
	base := t
	if t.Kind() == reflect.Pointer {
		base = t.Elem()
	}
	if c := r.classByType(base); c != nil {
		return c
	}

	var marker Serializable
	switch {
	case base.Implements(serializableType):
		marker, _ = reflect.Zero(base).Interface().(Serializable)
	case reflect.PointerTo(base).Implements(serializableType):
		marker, _ = reflect.New(base).Interface().(Serializable)
	}
	if marker == nil {
		return nil
	}
	if c := marker.ObjectionClass(); c != nil && c.goType == base {
		return c
	}
	return nil
}

func (r *Registry) classByName(name string) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[name]
}

func (r *Registry) classByType(t reflect.Type) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[t]
}

// typeName 返回容器元素写入流中的类型名。
func (r *Registry) typeName(t reflect.Type) (string, error) {
	if c := r.classFor(t); c != nil {
		return c.name, nil
	}
	r.mu.RLock()
	name, ok := r.typeNames[t]
	r.mu.RUnlock()
	if !ok {
		return "", merr.WrapErrTypeNotResolvable(t.String())
	}
	return name, nil
}

// lookupName 将流中的类型名映射为 Go 类型，Class 映射为 *T。
func (r *Registry) lookupName(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.names[name]; ok {
		return t, true
	}
	if c, ok := r.classes[name]; ok {
		return reflect.PointerTo(c.goType), true
	}
	return nil, false
}

func (r *Registry) resolveName(name []byte) (reflect.Type, error) {
	t, ok := r.lookupName(string(name))
	if !ok {
		r.Logger().RatedWarn(1, "reject unresolvable element type", log.FieldType(string(name)))
		return nil, merr.WrapErrTypeNotResolvable(string(name))
	}
	return t, nil
}

func (r *Registry) descriptorCodec() Codec { return r.nested }
func (r *Registry) fieldCodec() Codec      { return r.field }
func (r *Registry) maxElements() int       { return r.maxElems }
func (r *Registry) maxStringLength() int   { return r.maxStrLen }

// checkElements 在分配前校验流中声明的元素个数。
func (r *Registry) checkElements(what string, n uint32) error {
	if uint64(n) > uint64(r.maxElems) {
		return merr.WrapErrParameterTooLarge(what, int(n), r.maxElems)
	}
	return nil
}
