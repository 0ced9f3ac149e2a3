package marshal

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/objection-go/internal/json"
	"github.com/lk2023060901/objection-go/pkg/objection"
)

type dumpType struct {
	Type         string      `json:"type"`
	Version      uint8       `json:"version"`
	StructuralID int32       `json:"structural_id"`
	Fields       []dumpField `json:"fields"`
}

type dumpField struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Version uint8  `json:"version"`
	Value   any    `json:"value"`
}

type dumpEntry struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

// Dump 以缩进 JSON 展示 TypeDescriptor 的结构与字段值，仅用于诊断。
func Dump(td *objection.TypeDescriptor) ([]byte, error) {
	view, err := dumpDescriptor(td)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(view, "", "  ")
}

func dumpDescriptor(td *objection.TypeDescriptor) (*dumpType, error) {
	view := &dumpType{
		Type:         td.Name(),
		Version:      td.Version(),
		StructuralID: td.StructuralID(),
		Fields:       make([]dumpField, 0, len(td.Fields())),
	}
	for _, fd := range td.Fields() {
		raw, err := fd.Value()
		if err != nil {
			return nil, errors.Wrapf(err, "dump field %s.%s", td.Name(), fd.Name())
		}
		value, err := dumpValue(raw)
		if err != nil {
			return nil, err
		}
		view.Fields = append(view.Fields, dumpField{
			Name:    fd.Name(),
			Kind:    fd.Kind().String(),
			Version: fd.Version(),
			Value:   value,
		})
	}
	return view, nil
}

func dumpValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *objection.TypeDescriptor:
		return dumpDescriptor(x)
	case objection.Collection:
		return dumpList(x.Values())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return dumpList(items)
	case reflect.Map:
		entries := make([]dumpEntry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := dumpValue(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			value, err := dumpValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			entries = append(entries, dumpEntry{Key: key, Value: value})
		}
		slices.SortFunc(entries, func(a, b dumpEntry) int {
			return strings.Compare(fmt.Sprint(a.Key), fmt.Sprint(b.Key))
		})
		return entries, nil
	}
	return v, nil
}

func dumpList(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		dv, err := dumpValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = dv
	}
	return out, nil
}
