package objection

import (
	"reflect"
)

// Codec 编解码一种逻辑类型或一族类型。
//
// Registry 按注册顺序调用 Accept，第一个返回 true 的 Codec 生效，
// 因此覆盖内置类型的自定义 Codec 需要通过 RegisterFirst 注册。
type Codec interface {
	// Accept 判断能否处理类型 t。
	Accept(t reflect.Type) bool

	// Encode 将 v 写入 w。
	Encode(w *Writer, v any, ctx Context) error

	// Decode 从 r 读取一个 t 类型的值。
	Decode(r *Reader, t reflect.Type, ctx Context) (any, error)
}

// kinded 由内置 Codec 实现，用于确定字段类别标记；其它 Codec 视为 KindCustom。
type kinded interface {
	kind() Kind
}

func kindOf(c Codec) Kind {
	if k, ok := c.(kinded); ok {
		return k.kind()
	}
	return KindCustom
}

// Context 是单次编解码调用中逐层传递的只读视图。
type Context struct {
	typ   *TypeDescriptor
	field *FieldDescriptor
	reg   *Registry
}

// NewContext 创建仅携带 Registry 的根 Context。
func NewContext(reg *Registry) Context {
	return Context{reg: reg}
}

func (c Context) Type() *TypeDescriptor   { return c.typ }
func (c Context) Field() *FieldDescriptor { return c.field }
func (c Context) Registry() *Registry     { return c.reg }

// WithType 返回切换了当前类型的 Context，当前字段被清空。
func (c Context) WithType(td *TypeDescriptor) Context {
	c.typ = td
	c.field = nil
	return c
}

// WithField 返回切换了当前字段的 Context。
func (c Context) WithField(fd *FieldDescriptor) Context {
	c.field = fd
	return c
}

// fieldName 返回当前字段名，用于错误信息。
func (c Context) fieldName() string {
	if c.field != nil {
		return c.field.Name()
	}
	if c.typ != nil {
		return c.typ.Name()
	}
	return "<root>"
}
