package objection

import (
	"github.com/lk2023060901/objection-go/pkg/metrics"
	"github.com/lk2023060901/objection-go/pkg/util/typeutil"
)

var defaultLayoutCache = NewLayoutCache()

// DefaultLayoutCache 返回进程级共享的字段布局缓存。
func DefaultLayoutCache() *LayoutCache {
	return defaultLayoutCache
}

// LayoutCache 按 Class 缓存参与序列化的字段布局。
//
// 布局只依赖 Class 本身，并发首次计算的结果相同，后写入者被丢弃。
// 缓存不会自动淘汰，需要时调用 Evict 或 Purge。
type LayoutCache struct {
	slots *typeutil.ConcurrentMap[*Class, []*fieldSlot]
}

func NewLayoutCache() *LayoutCache {
	return &LayoutCache{
		slots: typeutil.NewConcurrentMap[*Class, []*fieldSlot](),
	}
}

// Len 返回已缓存的 Class 数量。
func (c *LayoutCache) Len() int {
	return c.slots.Len()
}

// Evict 删除一个 Class 的缓存布局。
func (c *LayoutCache) Evict(class *Class) {
	c.slots.Remove(class)
	c.report()
}

// Purge 清空缓存。
func (c *LayoutCache) Purge() {
	for _, class := range c.slots.Keys() {
		c.slots.Remove(class)
	}
	c.report()
}

func (c *LayoutCache) layout(class *Class) []*fieldSlot {
	if slots, ok := c.slots.Get(class); ok {
		return slots
	}
	slots, loaded := c.slots.GetOrInsert(class, computeLayout(class))
	if !loaded {
		c.report()
	}
	return slots
}

func (c *LayoutCache) report() {
	if c == defaultLayoutCache {
		metrics.DescriptorCacheSize.Set(float64(c.Len()))
	}
}

// computeLayout 先列出自身字段，再依次列出各级父类型字段。
// 瞬态字段与版本高于类型版本的字段被跳过。
func computeLayout(class *Class) []*fieldSlot {
	var (
		slots  []*fieldSlot
		access = func(inst any) any { return inst }
	)
	for c := class; c != nil; c = c.parent {
		for i := range c.fields {
			spec := &c.fields[i]
			if spec.transient || spec.version > class.version {
				continue
			}
			slots = append(slots, &fieldSlot{spec: spec, owner: c, access: access})
		}
		if c.parent != nil {
			up, prev := c.up, access
			access = func(inst any) any {
				child := prev(inst)
				if isNil(child) {
					return nil
				}
				return up(child)
			}
		}
	}
	return slots
}
