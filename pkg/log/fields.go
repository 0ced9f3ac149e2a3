package log

import "go.uber.org/zap"

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameType      = "type"
	FieldNameField     = "field"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldType 返回一个包含类型名的 zap 字段。
func FieldType(name string) zap.Field {
	return zap.String(FieldNameType, name)
}

// FieldField 返回一个包含字段名的 zap 字段。
func FieldField(name string) zap.Field {
	return zap.String(FieldNameField, name)
}
