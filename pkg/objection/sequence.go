package objection

import (
	"cmp"
	"math"
	"reflect"
	"slices"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// arrayCodec 编解码一维切片或数组：count:u32 element*。
// 由 Registry.Resolve 按需为具体类型创建。
type arrayCodec struct {
	typ reflect.Type
}

func (arrayCodec) kind() Kind { return KindArray }

func (c arrayCodec) Accept(t reflect.Type) bool {
	return t == c.typ
}

func (c arrayCodec) Encode(w *Writer, v any, ctx Context) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return w.WriteUint32(0)
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "expect array, got "+rv.Type().String())
	}
	n := rv.Len()
	if uint64(n) > math.MaxUint32 {
		return merr.WrapErrParameterTooLarge("array", n, math.MaxUint32)
	}
	if err := w.WriteUint32(uint32(n)); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	el, err := ctx.reg.element(rv.Type().Elem())
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := el.encode(w, rv.Index(i).Interface(), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c arrayCodec) Decode(r *Reader, t reflect.Type, ctx Context) (any, error) {
	if t == nil {
		t = c.typ
	}
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := ctx.reg.checkElements("array", count); err != nil {
		return nil, err
	}
	n := int(count)

	var out reflect.Value
	switch t.Kind() {
	case reflect.Array:
		if n != t.Len() {
			return nil, merr.WrapErrInvalidValue(ctx.fieldName(), "array length mismatch for "+t.String())
		}
		out = reflect.New(t).Elem()
	case reflect.Slice:
		if n == 0 {
			return reflect.Zero(t).Interface(), nil
		}
		out = reflect.MakeSlice(t, n, n)
	default:
		return nil, merr.WrapErrUnsupported(t.String(), "array target must be a slice or array")
	}
	if n == 0 {
		return out.Interface(), nil
	}

	el, err := ctx.reg.element(t.Elem())
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		ev, err := el.decode(r, ctx)
		if err != nil {
			return nil, err
		}
		out.Index(i).Set(ev)
	}
	return out.Interface(), nil
}

// collectionCodec 编解码 Collection：
//
//	typeNameLen:u8 [typeName count:u32 element*]
//
// 元素类型取自第一个元素，空容器只写一个 0 字节。
type collectionCodec struct{}

func (collectionCodec) kind() Kind { return KindCollection }

func (collectionCodec) Accept(t reflect.Type) bool {
	return t.Implements(collectionType)
}

func (collectionCodec) Encode(w *Writer, v any, ctx Context) error {
	if isNil(v) {
		return w.WriteUint8(0)
	}
	coll, ok := v.(Collection)
	if !ok {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "expect Collection, got "+typeString(v))
	}
	if coll.Len() == 0 {
		return w.WriteUint8(0)
	}
	values := coll.Values()
	if values[0] == nil {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "first element of collection is nil")
	}
	elemType := reflect.TypeOf(values[0])
	name, err := ctx.reg.typeName(elemType)
	if err != nil {
		return err
	}
	el, err := ctx.reg.element(elemType)
	if err != nil {
		return err
	}
	if err := w.WriteName(name); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(values))); err != nil {
		return err
	}
	for _, value := range values {
		if err := el.encode(w, value, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (collectionCodec) Decode(r *Reader, t reflect.Type, ctx Context) (any, error) {
	name, err := r.ReadName()
	if err != nil {
		return nil, err
	}
	defer clear(name)

	coll, err := newCollection(t)
	if err != nil {
		return nil, err
	}
	if len(name) == 0 {
		return coll, nil
	}
	elemType, err := ctx.reg.resolveName(name)
	if err != nil {
		return nil, err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := ctx.reg.checkElements("collection", count); err != nil {
		return nil, err
	}
	el, err := ctx.reg.element(elemType)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		ev, err := el.decode(r, ctx)
		if err != nil {
			return nil, err
		}
		cv, err := coerce(ev.Interface(), coll.ElemType())
		if err != nil {
			return nil, err
		}
		if err := coll.Add(cv.Interface()); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

var anyMapType = reflect.TypeFor[map[any]any]()

// mapCodec 编解码 map：
//
//	keyTypeLen:u8 [keyType] valTypeLen:u8 [valType] count:u32 (key value)*
//
// 键值类型取自第一个条目，空 map 写作 00 00 00000000。
type mapCodec struct{}

func (mapCodec) kind() Kind { return KindMap }

func (mapCodec) Accept(t reflect.Type) bool {
	return t.Kind() == reflect.Map
}

func (mapCodec) Encode(w *Writer, v any, ctx Context) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Len() == 0 {
		if err := w.WriteUint8(0); err != nil {
			return err
		}
		if err := w.WriteUint8(0); err != nil {
			return err
		}
		return w.WriteUint32(0)
	}
	if rv.Kind() != reflect.Map {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "expect map, got "+rv.Type().String())
	}

	keys := sortedKeys(rv)
	keyType, valType := dynamicType(keys[0]), dynamicType(rv.MapIndex(keys[0]))
	if keyType == nil || valType == nil {
		return merr.WrapErrInvalidValue(ctx.fieldName(), "first entry of map is nil")
	}
	keyName, err := ctx.reg.typeName(keyType)
	if err != nil {
		return err
	}
	valName, err := ctx.reg.typeName(valType)
	if err != nil {
		return err
	}
	keyEl, err := ctx.reg.element(keyType)
	if err != nil {
		return err
	}
	valEl, err := ctx.reg.element(valType)
	if err != nil {
		return err
	}

	if err := w.WriteName(keyName); err != nil {
		return err
	}
	if err := w.WriteName(valName); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(keys))); err != nil {
		return err
	}
	for _, key := range keys {
		if err := keyEl.encode(w, key.Interface(), ctx); err != nil {
			return err
		}
		if err := valEl.encode(w, rv.MapIndex(key).Interface(), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (mapCodec) Decode(r *Reader, t reflect.Type, ctx Context) (any, error) {
	keyName, err := r.ReadName()
	if err != nil {
		return nil, err
	}
	defer clear(keyName)
	valName, err := r.ReadName()
	if err != nil {
		return nil, err
	}
	defer clear(valName)
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	mapType := t
	if t.Kind() != reflect.Map {
		if t.Kind() != reflect.Interface || !anyMapType.AssignableTo(t) {
			return nil, merr.WrapErrUnsupported(t.String(), "map target must be a map type")
		}
		mapType = anyMapType
	}
	if count == 0 {
		return reflect.MakeMap(mapType).Interface(), nil
	}
	if len(keyName) == 0 || len(valName) == 0 {
		return nil, merr.WrapErrInvalidValue(ctx.fieldName(), "non-empty map without entry types")
	}
	if err := ctx.reg.checkElements("map", count); err != nil {
		return nil, err
	}
	keyType, err := ctx.reg.resolveName(keyName)
	if err != nil {
		return nil, err
	}
	if !keyType.Comparable() {
		return nil, merr.WrapErrInvalidValue(ctx.fieldName(), "map key type "+keyType.String()+" is not comparable")
	}
	valType, err := ctx.reg.resolveName(valName)
	if err != nil {
		return nil, err
	}
	keyEl, err := ctx.reg.element(keyType)
	if err != nil {
		return nil, err
	}
	valEl, err := ctx.reg.element(valType)
	if err != nil {
		return nil, err
	}

	out := reflect.MakeMapWithSize(mapType, int(count))
	for i := uint32(0); i < count; i++ {
		kv, err := keyEl.decode(r, ctx)
		if err != nil {
			return nil, err
		}
		vv, err := valEl.decode(r, ctx)
		if err != nil {
			return nil, err
		}
		key, err := coerce(kv.Interface(), mapType.Key())
		if err != nil {
			return nil, err
		}
		val, err := coerce(vv.Interface(), mapType.Elem())
		if err != nil {
			return nil, err
		}
		if !key.Comparable() {
			return nil, merr.WrapErrInvalidValue(ctx.fieldName(), "map key of type "+typeString(key.Interface())+" is not comparable")
		}
		out.SetMapIndex(key, val)
	}
	return out.Interface(), nil
}

// dynamicType 返回值的运行时类型，接口中的 nil 返回 nil。
func dynamicType(v reflect.Value) reflect.Type {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		return v.Elem().Type()
	}
	return v.Type()
}

// sortedKeys 对可排序的键按升序排列，使输出稳定。
func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	switch m.Type().Key().Kind() {
	case reflect.String:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) })
	case reflect.Float32, reflect.Float64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) })
	}
	return keys
}
