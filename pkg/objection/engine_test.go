package objection

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

type EngineSuite struct {
	suite.Suite
	reg *Registry
}

func (s *EngineSuite) SetupTest() {
	s.reg = NewRegistry().RegisterType(
		pointClass, primitivesClass, intsClass, tripleClass, gridClass, bagClass, dictClass,
		versionedClass, baseClass, derivedClass, shapeClass, lineClass, polygonClass, weatherClass,
		containersClass, childClass, leafClass,
	)
}

func (s *EngineSuite) encode(v any) []byte {
	var buf bytes.Buffer
	_, err := Encode(v, &buf, s.reg)
	s.Require().NoError(err)
	return buf.Bytes()
}

func (s *EngineSuite) roundTrip(v any) any {
	td, err := Decode(bytes.NewReader(s.encode(v)), s.reg)
	s.Require().NoError(err)
	out, err := Materialize(td)
	s.Require().NoError(err)
	return out
}

func (s *EngineSuite) TestPointWireFormat() {
	data := s.encode(&Point{X: 1, Y: -2})

	var want bytes.Buffer
	want.WriteByte(0)
	want.WriteByte(byte(len("example.Point")))
	want.WriteString("example.Point")
	s.Require().NoError(binary.Write(&want, binary.BigEndian, uint32(ModPublic)))
	s.Require().NoError(binary.Write(&want, binary.BigEndian, uint32(pointClass.StructuralID())))
	s.Require().NoError(binary.Write(&want, binary.BigEndian, uint32(2)))
	want.Write([]byte{byte(KindPrimitive), 0, 1, 'x', 0, 0, 0, 1})
	want.Write([]byte{byte(KindPrimitive), 0, 1, 'y', 0xff, 0xff, 0xff, 0xfe})

	s.Equal(want.Bytes(), data)
}

func (s *EngineSuite) TestPrimitivesScenario() {
	in := &Primitives{I: 1, F: 2.2, D: 3.3, C: '\u0004', B: 5, S: 6, L: 7}
	data := s.encode(in)

	expected := headerLen("example.Primitives")
	for _, f := range []struct {
		name  string
		width int
	}{{"i", 4}, {"f", 4}, {"d", 8}, {"c", 2}, {"b", 1}, {"s", 2}, {"l", 8}} {
		expected += 3 + len(f.name) + f.width
	}
	s.Len(data, expected)

	out := s.roundTrip(in)
	s.Equal(in, out)
}

func (s *EngineSuite) TestArrayScenario() {
	data := s.encode(&Ints{Values: []int32{1, 2, 3}})
	s.True(bytes.HasSuffix(data, []byte{
		byte(KindArray), 0, 6, 'v', 'a', 'l', 'u', 'e', 's',
		0, 0, 0, 3,
		0, 0, 0, 1,
		0, 0, 0, 2,
		0, 0, 0, 3,
	}))

	out := s.roundTrip(&Ints{Values: []int32{1, 2, 3}})
	s.Equal(&Ints{Values: []int32{1, 2, 3}}, out)

	empty := s.roundTrip(&Ints{})
	s.Nil(empty.(*Ints).Values)
}

func (s *EngineSuite) TestFixedArray() {
	out := s.roundTrip(&Triple{Values: [3]int32{4, 5, 6}})
	s.Equal(&Triple{Values: [3]int32{4, 5, 6}}, out)
}

func (s *EngineSuite) TestMultiDimensionalArray() {
	_, err := Encode(&Grid{Cells: [][]int32{{1}}}, &bytes.Buffer{}, s.reg)
	s.ErrorIs(err, merr.ErrUnsupported)
}

func (s *EngineSuite) TestEmptyCollection() {
	data := s.encode(&Bag{})
	s.True(bytes.HasSuffix(data, []byte{byte(KindCollection), 0, 5, 'i', 't', 'e', 'm', 's', 0}))

	out := s.roundTrip(&Bag{Items: NewArrayList[string]()})
	s.Equal(0, out.(*Bag).Items.Len())
}

func (s *EngineSuite) TestEmptyMap() {
	data := s.encode(&Dict{})
	s.True(bytes.HasSuffix(data, []byte{
		byte(KindMap), 0, 7, 'e', 'n', 't', 'r', 'i', 'e', 's',
		0, 0, 0, 0, 0, 0,
	}))

	out := s.roundTrip(&Dict{Entries: map[string]int32{}})
	s.Empty(out.(*Dict).Entries)
}

func (s *EngineSuite) TestMapIsDeterministic() {
	in := &Dict{Entries: map[string]int32{"c": 3, "a": 1, "b": 2}}
	first := s.encode(in)
	for i := 0; i < 5; i++ {
		s.Equal(first, s.encode(in))
	}
	s.Equal(in, s.roundTrip(in))
}

func (s *EngineSuite) TestVersionFiltering() {
	td, err := Describe(&Versioned{A: 1, B: 2}, s.reg)
	s.Require().NoError(err)
	s.Require().Len(td.Fields(), 1)
	s.Equal("a", td.Fields()[0].Name())

	out := s.roundTrip(&Versioned{A: 1, B: 2})
	s.Equal(&Versioned{A: 1}, out)
}

func (s *EngineSuite) TestInheritance() {
	td, err := Describe(&Derived{Base: Base{ID: 9}, Name: "n", Cache: "c"}, s.reg)
	s.Require().NoError(err)
	names := make([]string, 0, len(td.Fields()))
	for _, fd := range td.Fields() {
		names = append(names, fd.Name())
	}
	s.Equal([]string{"name", "id"}, names)
	s.Equal(baseClass, td.Field("id").DeclaringClass())

	out := s.roundTrip(&Derived{Base: Base{ID: 9}, Name: "n", Cache: "c"})
	s.Equal(&Derived{Base: Base{ID: 9}, Name: "n"}, out)
}

func (s *EngineSuite) TestNestedGraph() {
	in := &Polygon{
		Name:    "square",
		Points:  []Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}},
		Tags:    map[string]int32{"w": 1, "h": 1},
		Anchors: map[string]*Point{"origin": {0, 0}},
		Labels:  NewHashSet("a", "b"),
		Pending: NewArrayDeque[int64](3, 1, 2),
		Path:    NewArrayList(&Point{1, 2}, &Point{3, 4}),
		Loose:   NewArrayList[int32](5, 6),
		Extra:   &Point{7, 8},
	}
	out := s.roundTrip(in).(*Polygon)

	s.Equal(in.Name, out.Name)
	if diff := cmp.Diff(in.Points, out.Points); diff != "" {
		s.Fail("points differ", diff)
	}
	if diff := cmp.Diff(in.Tags, out.Tags, cmpopts.EquateEmpty()); diff != "" {
		s.Fail("tags differ", diff)
	}
	if diff := cmp.Diff(in.Anchors, out.Anchors); diff != "" {
		s.Fail("anchors differ", diff)
	}
	s.Equal([]string{"a", "b"}, out.Labels.Items())
	s.True(out.Labels.Contains("b"))
	s.Equal([]int64{3, 1, 2}, out.Pending.Items())
	head, ok := out.Pending.Peek()
	s.True(ok)
	s.Equal(int64(3), head)
	s.Equal([]*Point{{1, 2}, {3, 4}}, out.Path.Items())
	s.Equal([]any{int32(5), int32(6)}, out.Loose.Values())
	s.Equal(&Point{7, 8}, out.Extra)
}

func (s *EngineSuite) TestNestedFields() {
	in := &Line{From: &Point{1, 2}, To: Point{3, 4}}
	s.Equal(in, s.roundTrip(in))

	_, err := Encode(&Line{}, &bytes.Buffer{}, s.reg)
	s.ErrorIs(err, merr.ErrInvalidValue)
}

func (s *EngineSuite) TestSerializableMarker() {
	reg := NewRegistry()
	var buf bytes.Buffer
	reg, err := Encode(&Marker{N: 5}, &buf, reg)
	s.Require().NoError(err)
	s.Equal(markerClass, reg.Class("example.Marker"))

	td, err := Decode(&buf, reg)
	s.Require().NoError(err)
	out, err := Materialize(td)
	s.Require().NoError(err)
	s.Equal(&Marker{N: 5}, out)
}

func (s *EngineSuite) TestNotSerializable() {
	plain := MustClass[Base]("example.Plain",
		Fields(FieldOf("id", func(b *Base) int64 { return b.ID }, func(b *Base, v int64) { b.ID = v })))
	_, err := DescribeClass(plain, s.reg)
	s.ErrorIs(err, merr.ErrNotSerializable)

	_, err = Encode(struct{}{}, &bytes.Buffer{}, s.reg)
	s.ErrorIs(err, merr.ErrNotSerializable)
}

func (s *EngineSuite) TestUnregisteredNameRejected() {
	data := s.encode(&Point{X: 1})
	_, err := Decode(bytes.NewReader(data), NewRegistry())
	s.ErrorIs(err, merr.ErrUnsafeOperation)
}

func (s *EngineSuite) TestChecksumMismatch() {
	data := s.encode(&Point{X: 1})

	type OtherPoint struct{ X, Y int32 }
	drifted := MustClass[OtherPoint]("example.Point", Serialize())
	_, err := Decode(bytes.NewReader(data), NewRegistry().RegisterType(drifted))
	s.ErrorIs(err, merr.ErrChecksumMismatch)

	final := MustClass[Point]("example.Point", Serialize(), Modifiers(ModPublic|ModFinal))
	_, err = Decode(bytes.NewReader(data), NewRegistry().RegisterType(final))
	s.ErrorIs(err, merr.ErrChecksumMismatch)
}

func (s *EngineSuite) TestUnknownField() {
	data := s.encode(&Point{X: 1, Y: 2})
	onlyX := MustClass[Point]("example.Point", Serialize(),
		Fields(FieldOf("x", func(p *Point) int32 { return p.X }, func(p *Point, v int32) { p.X = v })))
	_, err := Decode(bytes.NewReader(data), NewRegistry().RegisterType(onlyX))
	s.ErrorIs(err, merr.ErrUnknownField)
}

func (s *EngineSuite) TestVersionMismatch() {
	data := s.encode(&Point{X: 1, Y: 2})

	newer := MustClass[Point]("example.Point", Serialize(), Version(1),
		Fields(
			FieldOf("x", func(p *Point) int32 { return p.X }, func(p *Point, v int32) { p.X = v }),
			FieldOf("y", func(p *Point) int32 { return p.Y }, func(p *Point, v int32) { p.Y = v }, FieldVersion(1)),
		))
	_, err := Decode(bytes.NewReader(data), NewRegistry().RegisterType(newer))
	s.ErrorIs(err, merr.ErrVersionMismatch)

	retyped := MustClass[Point]("example.Point", Serialize(),
		Fields(
			FieldOf("x", func(p *Point) int32 { return p.X }, func(p *Point, v int32) { p.X = v }),
			FieldOf("y", func(p *Point) string { return "" }, func(p *Point, v string) {}),
		))
	_, err = Decode(bytes.NewReader(data), NewRegistry().RegisterType(retyped))
	s.ErrorIs(err, merr.ErrVersionMismatch)
}

func (s *EngineSuite) TestAbstractType() {
	data := s.encode(&Shape{Sides: 3})
	td, err := Decode(bytes.NewReader(data), s.reg)
	s.Require().NoError(err)
	_, err = Materialize(td)
	s.ErrorIs(err, merr.ErrNoDefaultConstructor)
}

func (s *EngineSuite) TestTypeNotResolvable() {
	_, err := Encode(&Polygon{Loose: NewArrayList(Celsius(1)), Extra: &Point{}}, &bytes.Buffer{}, s.reg)
	s.ErrorIs(err, merr.ErrTypeNotResolvable)

	reg := NewRegistry().RegisterType(polygonClass, pointClass)
	s.Require().NoError(reg.RegisterName("example.Celsius", reflect.TypeFor[Celsius]()))
	var buf bytes.Buffer
	_, err = Encode(&Polygon{Loose: NewArrayList(Celsius(1)), Extra: &Point{}}, &buf, reg)
	s.Require().NoError(err)

	_, err = Decode(&buf, NewRegistry().RegisterType(polygonClass, pointClass))
	s.ErrorIs(err, merr.ErrTypeNotResolvable)
}

func (s *EngineSuite) TestCustomCodec() {
	reg := NewRegistry().RegisterFirst(celsiusCodec{}).RegisterType(weatherClass)
	var buf bytes.Buffer
	_, err := Encode(&Weather{Temp: 21.5}, &buf, reg)
	s.Require().NoError(err)
	s.Equal(byte(KindCustom), buf.Bytes()[headerLen("example.Weather")])

	td, err := Decode(&buf, reg)
	s.Require().NoError(err)
	out, err := Materialize(td)
	s.Require().NoError(err)
	s.Equal(&Weather{Temp: 21.5}, out)
}

func (s *EngineSuite) TestDecodeLimits() {
	data := s.encode(&Ints{Values: []int32{1, 2, 3}})
	_, err := Decode(bytes.NewReader(data), NewRegistry(WithMaxElements(2)).RegisterType(intsClass))
	s.ErrorIs(err, merr.ErrParameterTooLarge)

	data = s.encode(&Polygon{Name: "a long polygon name", Extra: &Point{}})
	_, err = Decode(bytes.NewReader(data), NewRegistry(WithMaxStringLength(4)).RegisterType(polygonClass))
	s.ErrorIs(err, merr.ErrParameterTooLarge)
}

func (s *EngineSuite) TestTruncatedStream() {
	data := s.encode(&Point{X: 1, Y: 2})
	_, err := Decode(bytes.NewReader(data[:len(data)-2]), s.reg)
	s.ErrorIs(err, merr.ErrIoUnexpectEOF)
}

func (s *EngineSuite) TestDescribeValueCopy() {
	td, err := Describe(Point{X: 3}, s.reg)
	s.Require().NoError(err)
	v, err := td.Field("x").Value()
	s.Require().NoError(err)
	s.Equal(int32(3), v)
	s.True(td.Field("x").Loaded())

	out, err := Materialize(td)
	s.Require().NoError(err)
	s.Equal(&Point{X: 3}, out)
}

func (s *EngineSuite) TestAssign() {
	var p Point
	s.NoError(Assign(&p, &Point{X: 1}))
	s.Equal(Point{X: 1}, p)

	var pp *Point
	s.NoError(Assign(&pp, &Point{X: 2}))
	s.Equal(&Point{X: 2}, pp)

	var anything any
	s.NoError(Assign(&anything, &Point{X: 3}))
	s.Equal(&Point{X: 3}, anything)

	s.ErrorIs(Assign(p, &Point{}), merr.ErrParameterInvalid)
	s.ErrorIs(Assign(&p, "text"), merr.ErrInvalidValue)
}

// containersStream 手工构造只含一个字段的 example.Containers 流，body 写入字段值。
func (s *EngineSuite) containersStream(kind Kind, field string, body func(w *Writer) error) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	s.Require().NoError(w.WriteUint8(0))
	s.Require().NoError(w.WriteName("example.Containers"))
	s.Require().NoError(w.WriteUint32(uint32(containersClass.Modifiers())))
	s.Require().NoError(w.WriteUint32(uint32(containersClass.StructuralID())))
	s.Require().NoError(w.WriteUint32(1))
	s.Require().NoError(w.WriteUint8(uint8(kind)))
	s.Require().NoError(w.WriteUint8(0))
	s.Require().NoError(w.WriteName(field))
	s.Require().NoError(body(w))
	return buf.Bytes()
}

func (s *EngineSuite) TestUnhashableSetElement() {
	s.Require().NoError(s.reg.RegisterName("example.Int32s", reflect.TypeFor[[]int32]()))
	data := s.containersStream(KindCollection, "set", func(w *Writer) error {
		if err := w.WriteName("example.Int32s"); err != nil {
			return err
		}
		if err := w.WriteUint32(1); err != nil {
			return err
		}
		if err := w.WriteUint32(1); err != nil {
			return err
		}
		return w.WriteUint32(1)
	})

	s.NotPanics(func() {
		_, err := Decode(bytes.NewReader(data), s.reg)
		s.ErrorIs(err, merr.ErrInvalidValue)
	})
}

func (s *EngineSuite) TestUnhashableMapKey() {
	s.Require().NoError(s.reg.RegisterName("example.Int32s", reflect.TypeFor[[]int32]()))
	data := s.containersStream(KindMap, "index", func(w *Writer) error {
		if err := w.WriteName("example.Int32s"); err != nil {
			return err
		}
		if err := w.WriteName("int32"); err != nil {
			return err
		}
		if err := w.WriteUint32(1); err != nil {
			return err
		}
		if err := w.WriteUint32(1); err != nil {
			return err
		}
		if err := w.WriteUint32(1); err != nil {
			return err
		}
		return w.WriteUint32(2)
	})

	s.NotPanics(func() {
		_, err := Decode(bytes.NewReader(data), s.reg)
		s.ErrorIs(err, merr.ErrInvalidValue)
	})
}

func (s *EngineSuite) TestInterfaceContainersDefaultImpl() {
	for _, in := range []*Containers{
		{},
		{Set: NewHashSet[any](), Queue: NewArrayDeque[any](), List: NewArrayList[any]()},
	} {
		out, ok := s.roundTrip(in).(*Containers)
		s.Require().True(ok)
		s.IsType(&HashSet[any]{}, out.Set)
		s.IsType(&ArrayDeque[any]{}, out.Queue)
		s.IsType(&ArrayList[any]{}, out.List)
		s.Equal(0, out.Set.Len())
		s.Equal(0, out.Queue.Len())
		s.Equal(0, out.List.Len())
	}
}

func (s *EngineSuite) TestValueStructMapValues() {
	in := &Containers{Points: map[string]Point{"a": {X: 1, Y: 2}, "b": {X: -3, Y: 4}}}
	out, ok := s.roundTrip(in).(*Containers)
	s.Require().True(ok)
	s.Equal(in.Points, out.Points)
}

func (s *EngineSuite) TestNilPointerParent() {
	var buf bytes.Buffer
	_, err := Encode(&Child{N: 1}, &buf, s.reg)
	s.ErrorIs(err, merr.ErrInvalidValue)

	data := s.encode(&Child{Base: &Base{ID: 9}, N: 1})
	td, err := Decode(bytes.NewReader(data), s.reg)
	s.Require().NoError(err)
	s.NotPanics(func() {
		_, err = Materialize(td)
	})
	s.ErrorIs(err, merr.ErrInvalidValue)
}

func (s *EngineSuite) TestAllocatedPointerParent() {
	in := &Leaf{Base: &Base{ID: 9}, N: 1}
	s.Equal(in, s.roundTrip(in))
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}
