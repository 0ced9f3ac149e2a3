package objection

import (
	"reflect"
	"strconv"
)

type Point struct {
	X int32
	Y int32
}

var pointClass = MustClass[Point]("example.Point",
	Serialize(),
	Fields(
		FieldOf("x", func(p *Point) int32 { return p.X }, func(p *Point, v int32) { p.X = v }),
		FieldOf("y", func(p *Point) int32 { return p.Y }, func(p *Point, v int32) { p.Y = v }),
	),
)

type Primitives struct {
	I int32
	F float32
	D float64
	C Char
	B int8
	S int16
	L int64
}

var primitivesClass = MustClass[Primitives]("example.Primitives",
	Serialize(),
	Fields(
		FieldOf("i", func(p *Primitives) int32 { return p.I }, func(p *Primitives, v int32) { p.I = v }),
		FieldOf("f", func(p *Primitives) float32 { return p.F }, func(p *Primitives, v float32) { p.F = v }),
		FieldOf("d", func(p *Primitives) float64 { return p.D }, func(p *Primitives, v float64) { p.D = v }),
		FieldOf("c", func(p *Primitives) Char { return p.C }, func(p *Primitives, v Char) { p.C = v }),
		FieldOf("b", func(p *Primitives) int8 { return p.B }, func(p *Primitives, v int8) { p.B = v }),
		FieldOf("s", func(p *Primitives) int16 { return p.S }, func(p *Primitives, v int16) { p.S = v }),
		FieldOf("l", func(p *Primitives) int64 { return p.L }, func(p *Primitives, v int64) { p.L = v }),
	),
)

type Ints struct {
	Values []int32
}

var intsClass = MustClass[Ints]("example.Ints",
	Serialize(),
	Fields(FieldOf("values", func(i *Ints) []int32 { return i.Values }, func(i *Ints, v []int32) { i.Values = v })),
)

type Triple struct {
	Values [3]int32
}

var tripleClass = MustClass[Triple]("example.Triple",
	Serialize(),
	Fields(FieldOf("values", func(t *Triple) [3]int32 { return t.Values }, func(t *Triple, v [3]int32) { t.Values = v })),
)

type Grid struct {
	Cells [][]int32
}

var gridClass = MustClass[Grid]("example.Grid",
	Serialize(),
	Fields(FieldOf("cells", func(g *Grid) [][]int32 { return g.Cells }, func(g *Grid, v [][]int32) { g.Cells = v })),
)

type Bag struct {
	Items *ArrayList[string]
}

var bagClass = MustClass[Bag]("example.Bag",
	Serialize(),
	Fields(FieldOf("items", func(b *Bag) *ArrayList[string] { return b.Items }, func(b *Bag, v *ArrayList[string]) { b.Items = v })),
)

type Dict struct {
	Entries map[string]int32
}

var dictClass = MustClass[Dict]("example.Dict",
	Serialize(),
	Fields(FieldOf("entries", func(d *Dict) map[string]int32 { return d.Entries }, func(d *Dict, v map[string]int32) { d.Entries = v })),
)

type Versioned struct {
	A int32
	B int32
}

var versionedClass = MustClass[Versioned]("example.Versioned",
	Serialize(),
	Version(1),
	Fields(
		FieldOf("a", func(v *Versioned) int32 { return v.A }, func(v *Versioned, x int32) { v.A = x }),
		FieldOf("b", func(v *Versioned) int32 { return v.B }, func(v *Versioned, x int32) { v.B = x }, FieldVersion(2)),
	),
)

type Base struct {
	ID int64
}

var baseClass = MustClass[Base]("example.Base",
	Serialize(),
	Fields(FieldOf("id", func(b *Base) int64 { return b.ID }, func(b *Base, v int64) { b.ID = v })),
)

type Derived struct {
	Base
	Name  string
	Cache string
}

var derivedClass = MustClass[Derived]("example.Derived",
	Serialize(),
	Extends(baseClass, func(d *Derived) *Base { return &d.Base }),
	Fields(
		FieldOf("name", func(d *Derived) string { return d.Name }, func(d *Derived, v string) { d.Name = v }),
		FieldOf("cache", func(d *Derived) string { return d.Cache }, func(d *Derived, v string) { d.Cache = v }, Transient()),
	),
)

type Shape struct {
	Sides int32
}

var shapeClass = MustClass[Shape]("example.Shape",
	Serialize(),
	Abstract(),
	Fields(FieldOf("sides", func(s *Shape) int32 { return s.Sides }, func(s *Shape, v int32) { s.Sides = v })),
)

type Line struct {
	From *Point
	To   Point
}

var lineClass = MustClass[Line]("example.Line",
	Serialize(),
	Fields(
		FieldOf("from", func(l *Line) *Point { return l.From }, func(l *Line, v *Point) { l.From = v }),
		FieldOf("to", func(l *Line) Point { return l.To }, func(l *Line, v Point) { l.To = v }),
	),
)

type Polygon struct {
	Name    string
	Points  []Point
	Tags    map[string]int32
	Anchors map[string]*Point
	Labels  *HashSet[string]
	Pending *ArrayDeque[int64]
	Path    *ArrayList[*Point]
	Loose   List
	Extra   any
}

var polygonClass = MustClass[Polygon]("example.Polygon",
	Serialize(),
	Fields(
		FieldOf("name", func(p *Polygon) string { return p.Name }, func(p *Polygon, v string) { p.Name = v }),
		FieldOf("points", func(p *Polygon) []Point { return p.Points }, func(p *Polygon, v []Point) { p.Points = v }),
		FieldOf("tags", func(p *Polygon) map[string]int32 { return p.Tags }, func(p *Polygon, v map[string]int32) { p.Tags = v }),
		FieldOf("anchors", func(p *Polygon) map[string]*Point { return p.Anchors }, func(p *Polygon, v map[string]*Point) { p.Anchors = v }),
		FieldOf("labels", func(p *Polygon) *HashSet[string] { return p.Labels }, func(p *Polygon, v *HashSet[string]) { p.Labels = v }),
		FieldOf("pending", func(p *Polygon) *ArrayDeque[int64] { return p.Pending }, func(p *Polygon, v *ArrayDeque[int64]) { p.Pending = v }),
		FieldOf("path", func(p *Polygon) *ArrayList[*Point] { return p.Path }, func(p *Polygon, v *ArrayList[*Point]) { p.Path = v }),
		FieldOf("loose", func(p *Polygon) List { return p.Loose }, func(p *Polygon, v List) { p.Loose = v }),
		FieldOf("extra", func(p *Polygon) any { return p.Extra }, func(p *Polygon, v any) { p.Extra = v }),
	),
)

// Marker 通过 Serializable 接口提供自己的 Class。
type Marker struct {
	N int32
}

var markerClass = MustClass[Marker]("example.Marker",
	Fields(FieldOf("n", func(m *Marker) int32 { return m.N }, func(m *Marker, v int32) { m.N = v })),
)

func (*Marker) ObjectionClass() *Class { return markerClass }

type Celsius float64

type Weather struct {
	Temp Celsius
}

var weatherClass = MustClass[Weather]("example.Weather",
	Serialize(),
	Fields(FieldOf("temp", func(w *Weather) Celsius { return w.Temp }, func(w *Weather, v Celsius) { w.Temp = v })),
)

// celsiusCodec 以十进制字符串写入温度。
type celsiusCodec struct{}

func (celsiusCodec) Accept(t reflect.Type) bool {
	return t == reflect.TypeFor[Celsius]()
}

func (celsiusCodec) Encode(w *Writer, v any, _ Context) error {
	return w.WriteString(strconv.FormatFloat(float64(v.(Celsius)), 'f', -1, 64))
}

func (celsiusCodec) Decode(r *Reader, _ reflect.Type, _ Context) (any, error) {
	s, err := r.ReadString(64)
	if err != nil {
		return nil, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return Celsius(f), nil
}

// headerLen 返回嵌套类型头部（不含字段）的字节数。
func headerLen(name string) int {
	return 1 + 1 + len(name) + 4 + 4 + 4
}

// Containers 的容器字段以接口声明，解码时替换为默认实现。
type Containers struct {
	Set    Set
	Queue  Queue
	List   List
	Points map[string]Point
	Index  map[any]int32
}

var containersClass = MustClass[Containers]("example.Containers",
	Serialize(),
	Fields(
		FieldOf("set", func(c *Containers) Set { return c.Set }, func(c *Containers, v Set) { c.Set = v }),
		FieldOf("queue", func(c *Containers) Queue { return c.Queue }, func(c *Containers, v Queue) { c.Queue = v }),
		FieldOf("list", func(c *Containers) List { return c.List }, func(c *Containers, v List) { c.List = v }),
		FieldOf("points", func(c *Containers) map[string]Point { return c.Points }, func(c *Containers, v map[string]Point) { c.Points = v }),
		FieldOf("index", func(c *Containers) map[any]int32 { return c.Index }, func(c *Containers, v map[any]int32) { c.Index = v }),
	),
)

// Child 以指针嵌入父类型，且没有分配父实例的构造器。
type Child struct {
	*Base
	N int32
}

var childClass = MustClass[Child]("example.Child",
	Serialize(),
	Extends(baseClass, func(c *Child) *Base { return c.Base }),
	Fields(FieldOf("n", func(c *Child) int32 { return c.N }, func(c *Child, v int32) { c.N = v })),
)

// Leaf 以指针嵌入父类型，由构造器分配父实例。
type Leaf struct {
	*Base
	N int32
}

var leafClass = MustClass[Leaf]("example.Leaf",
	Serialize(),
	Constructor(func() any { return &Leaf{Base: &Base{}} }),
	Extends(baseClass, func(l *Leaf) *Base { return l.Base }),
	Fields(FieldOf("n", func(l *Leaf) int32 { return l.N }, func(l *Leaf, v int32) { l.N = v })),
)
