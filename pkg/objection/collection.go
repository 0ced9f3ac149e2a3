package objection

import (
	"reflect"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// Collection 是可按元素编解码的容器。
type Collection interface {
	Len() int
	// Values 按遍历顺序返回元素。
	Values() []any
	// Add 追加一个元素，类型不符时返回 ErrInvalidValue。
	Add(v any) error
	// ElemType 返回元素的静态类型。
	ElemType() reflect.Type
}

// List 为有序可重复容器。
type List interface {
	Collection
	Get(i int) any
}

// Set 为去重容器。
type Set interface {
	Collection
	Contains(v any) bool
}

// Queue 为先进先出容器。
type Queue interface {
	Collection
	Peek() (any, bool)
	Poll() (any, bool)
}

var (
	collectionType = reflect.TypeFor[Collection]()
	listType       = reflect.TypeFor[List]()
	setType        = reflect.TypeFor[Set]()
	queueType      = reflect.TypeFor[Queue]()
)

func addElem[T any](items []T, v any) ([]T, error) {
	elem, ok := v.(T)
	if !ok && v != nil {
		return items, merr.WrapErrInvalidValue("element", "expect "+reflect.TypeFor[T]().String()+", got "+typeString(v))
	}
	return append(items, elem), nil
}

func toValues[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

// ArrayList 是基于切片的 List。
type ArrayList[T any] struct {
	items []T
}

var _ List = (*ArrayList[any])(nil)

func NewArrayList[T any](items ...T) *ArrayList[T] {
	return &ArrayList[T]{items: items}
}

func (l *ArrayList[T]) Len() int               { return len(l.items) }
func (l *ArrayList[T]) Values() []any          { return toValues(l.items) }
func (l *ArrayList[T]) ElemType() reflect.Type { return reflect.TypeFor[T]() }
func (l *ArrayList[T]) Get(i int) any          { return l.items[i] }
func (l *ArrayList[T]) Items() []T             { return l.items }

func (l *ArrayList[T]) Add(v any) (err error) {
	l.items, err = addElem(l.items, v)
	return err
}

// Append 追加强类型元素。
func (l *ArrayList[T]) Append(items ...T) {
	l.items = append(l.items, items...)
}

// HashSet 是保留插入顺序的 Set。
type HashSet[T comparable] struct {
	index map[T]struct{}
	order []T
}

var _ Set = (*HashSet[any])(nil)

func NewHashSet[T comparable](items ...T) *HashSet[T] {
	s := &HashSet[T]{}
	s.Insert(items...)
	return s
}

func (s *HashSet[T]) Len() int               { return len(s.order) }
func (s *HashSet[T]) Values() []any          { return toValues(s.order) }
func (s *HashSet[T]) ElemType() reflect.Type { return reflect.TypeFor[T]() }
func (s *HashSet[T]) Items() []T             { return s.order }

func (s *HashSet[T]) Contains(v any) bool {
	elem, ok := v.(T)
	if !ok || !hashable(v) {
		return false
	}
	_, ok = s.index[elem]
	return ok
}

// Insert 插入强类型元素，已存在的元素被忽略。
func (s *HashSet[T]) Insert(items ...T) {
	if s.index == nil {
		s.index = make(map[T]struct{}, len(items))
	}
	for _, item := range items {
		if _, ok := s.index[item]; ok {
			continue
		}
		s.index[item] = struct{}{}
		s.order = append(s.order, item)
	}
}

func (s *HashSet[T]) Add(v any) error {
	elem, ok := v.(T)
	if !ok && v != nil {
		return merr.WrapErrInvalidValue("element", "expect "+reflect.TypeFor[T]().String()+", got "+typeString(v))
	}
	if !hashable(v) {
		return merr.WrapErrInvalidValue("element", typeString(v)+" is not comparable")
	}
	s.Insert(elem)
	return nil
}

// hashable 判断 v 的动态值能否作为 map 的键，nil 视为可以。
func hashable(v any) bool {
	return v == nil || reflect.ValueOf(v).Comparable()
}

// ArrayDeque 是基于切片的 Queue。
type ArrayDeque[T any] struct {
	items []T
}

var _ Queue = (*ArrayDeque[any])(nil)

func NewArrayDeque[T any](items ...T) *ArrayDeque[T] {
	return &ArrayDeque[T]{items: items}
}

func (q *ArrayDeque[T]) Len() int               { return len(q.items) }
func (q *ArrayDeque[T]) Values() []any          { return toValues(q.items) }
func (q *ArrayDeque[T]) ElemType() reflect.Type { return reflect.TypeFor[T]() }
func (q *ArrayDeque[T]) Items() []T             { return q.items }

func (q *ArrayDeque[T]) Add(v any) (err error) {
	q.items, err = addElem(q.items, v)
	return err
}

// Push 在队尾追加强类型元素。
func (q *ArrayDeque[T]) Push(items ...T) {
	q.items = append(q.items, items...)
}

func (q *ArrayDeque[T]) Peek() (any, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

func (q *ArrayDeque[T]) Poll() (any, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	head := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return head, true
}

// newCollection 按目标类型构造空容器，接口类型替换为默认实现。
func newCollection(t reflect.Type) (Collection, error) {
	if t.Kind() == reflect.Interface {
		switch t {
		case setType:
			return &HashSet[any]{}, nil
		case queueType:
			return &ArrayDeque[any]{}, nil
		case listType, collectionType:
			return &ArrayList[any]{}, nil
		}
		for _, candidate := range []Collection{&ArrayList[any]{}, &HashSet[any]{}, &ArrayDeque[any]{}} {
			if reflect.TypeOf(candidate).Implements(t) {
				return candidate, nil
			}
		}
		return nil, merr.WrapErrUnsupported(t.String(), "no default implementation for collection interface")
	}
	if t.Kind() != reflect.Pointer || !t.Implements(collectionType) {
		return nil, merr.WrapErrUnsupported(t.String(), "collection target must be a pointer type")
	}
	return reflect.New(t.Elem()).Interface().(Collection), nil
}
